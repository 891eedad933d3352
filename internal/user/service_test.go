package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-api/internal/apperr"
)

type memStore struct {
	users map[string]*User // keyed by username
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*User)}
}

func (s *memStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	if _, exists := s.users[u.Username]; exists {
		return nil, apperr.Invalid("username already taken")
	}
	created := *u
	created.ID = uuid.NewString()
	s.users[u.Username] = &created
	return &created, nil
}

func (s *memStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (s *memStore) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var out []User
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func TestRegisterHashesPassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "test-secret-key-0001")

	u, err := svc.Register(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "correct-horse", store.users["alice"].Password)
}

func TestLoginAndValidateToken(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "test-secret-key-0001")

	registered, err := svc.Register(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resp.ID)
	assert.NotEmpty(t, resp.AccessToken)

	id, username, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, id)
	assert.Equal(t, "alice", username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "test-secret-key-0001")

	_, err := svc.Register(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &CredentialsRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))

	_, err = svc.Login(context.Background(), &CredentialsRequest{Username: "nobody", Password: "whatever"})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "test-secret-key-0001")
	other := NewService(store, "another-secret-key-2")

	_, err := svc.Register(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	resp, err := other.Login(context.Background(), &CredentialsRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	_, _, err = svc.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))

	_, _, err = svc.ValidateToken("garbage")
	assert.Error(t, err)
}
