package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	tests := []struct {
		name        string
		contentType string
		size        int64
		want        bool
	}{
		{"jpeg", "image/jpeg", 1024, true},
		{"jpg alias", "image/jpg", 1024, true},
		{"png", "image/png", 1024, true},
		{"gif", "image/gif", 1024, true},
		{"mixed case", "Image/PNG", 1024, true},
		{"at the ceiling", "image/png", MaxImageSize, true},
		{"over the ceiling", "image/png", MaxImageSize + 1, false},
		{"zero size", "image/png", 0, false},
		{"negative size", "image/png", -1, false},
		{"webp", "image/webp", 1024, false},
		{"svg", "image/svg+xml", 1024, false},
		{"not an image", "application/pdf", 1024, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, store.Validate(tc.contentType, tc.size))
		})
	}
}

func TestUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "http://localhost:8080/")
	require.NoError(t, err)

	payload := "not really a png"
	blobURL, size, ct, err := store.Upload(context.Background(), strings.NewReader(payload), "image/png", "photo.png")
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), size)
	assert.Equal(t, "image/png", ct)
	assert.True(t, strings.HasPrefix(blobURL, "http://localhost:8080/blobs/"))
	assert.True(t, strings.HasSuffix(blobURL, ".png"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	require.NoError(t, store.Delete(context.Background(), blobURL))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Deleting again, or deleting a URL that never existed, is fine.
	assert.NoError(t, store.Delete(context.Background(), blobURL))
	assert.NoError(t, store.Delete(context.Background(), "http://localhost:8080/blobs/ghost.png"))
}

func TestUploadDistinctNames(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	first, _, _, err := store.Upload(context.Background(), strings.NewReader("a"), "image/jpeg", "a.jpg")
	require.NoError(t, err)
	second, _, _, err := store.Upload(context.Background(), strings.NewReader("b"), "image/jpeg", "a.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
