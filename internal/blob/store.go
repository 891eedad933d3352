// Package blob stores message image payloads. The store validates
// candidates against a MIME allow-list and a size ceiling before anything
// touches the message pipeline.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the upload size ceiling.
const MaxImageSize int64 = 5 << 20 // 5 MB

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Store is the blob collaborator boundary consumed by the message
// pipeline.
type Store interface {
	Upload(ctx context.Context, r io.Reader, contentType, filename string) (blobURL string, size int64, ct string, err error)
	Delete(ctx context.Context, blobURL string) error
	Validate(contentType string, size int64) bool
}

// DiskStore keeps blobs in a local directory served under baseURL/blobs/.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Validate reports whether an image with this content type and size is
// acceptable.
func (s *DiskStore) Validate(contentType string, size int64) bool {
	_, ok := allowedContentTypes[strings.ToLower(contentType)]
	return ok && size > 0 && size <= MaxImageSize
}

// Upload writes the stream to a new blob and returns its public URL,
// stored size, and content type. Blob names are random; the original
// filename only contributes its extension when the content type has no
// canonical one.
func (s *DiskStore) Upload(ctx context.Context, r io.Reader, contentType, filename string) (string, int64, string, error) {
	ext, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		ext = path.Ext(filename)
	}
	name := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", 0, "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(f.Name())
		return "", 0, "", fmt.Errorf("write blob: %w", err)
	}

	return s.baseURL + "/blobs/" + name, size, contentType, nil
}

// Delete removes the blob a URL points at. Unknown URLs and already-gone
// blobs are not errors.
func (s *DiskStore) Delete(ctx context.Context, blobURL string) error {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return nil
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
