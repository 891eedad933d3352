package realtime

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionURLRoundTrip(t *testing.T) {
	relay := NewRelay(nil, "test-secret-key-0001", "ws://localhost:8080")

	connURL, err := relay.IssueClientConnectionURL("user-42")
	require.NoError(t, err)

	parsed, err := url.Parse(connURL)
	require.NoError(t, err)
	assert.Equal(t, "/ws", parsed.Path)

	token := parsed.Query().Get("access_token")
	require.NotEmpty(t, token)

	userID, err := relay.ValidateConnectionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestConnectionTokenScopes(t *testing.T) {
	relay := NewRelay(nil, "test-secret-key-0001", "ws://localhost:8080")

	connURL, err := relay.IssueClientConnectionURL("user-42")
	require.NoError(t, err)
	parsed, err := url.Parse(connURL)
	require.NoError(t, err)

	claims := &connectionClaims{}
	_, err = jwt.ParseWithClaims(parsed.Query().Get("access_token"), claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret-key-0001"), nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{ScopeSend, ScopeJoinLeave}, claims.Scopes)
	require.NotNil(t, claims.ExpiresAt)
	ttl := time.Until(claims.ExpiresAt.Time)
	assert.Greater(t, ttl, ConnectionTokenTTL-time.Minute)
	assert.LessOrEqual(t, ttl, ConnectionTokenTTL)
}

func TestValidateConnectionTokenRejectsBadTokens(t *testing.T) {
	relay := NewRelay(nil, "test-secret-key-0001", "ws://localhost:8080")

	_, err := relay.ValidateConnectionToken("not-a-token")
	assert.Error(t, err)

	// Signed with a different secret.
	other := NewRelay(nil, "another-secret-key-2", "ws://localhost:8080")
	connURL, err := other.IssueClientConnectionURL("user-42")
	require.NoError(t, err)
	parsed, err := url.Parse(connURL)
	require.NoError(t, err)
	_, err = relay.ValidateConnectionToken(parsed.Query().Get("access_token"))
	assert.Error(t, err)

	// Expired.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, connectionClaims{
		Scopes: []string{ScopeSend},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret-key-0001"))
	require.NoError(t, err)
	_, err = relay.ValidateConnectionToken(signed)
	assert.Error(t, err)

	// Missing subject.
	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, connectionClaims{
		Scopes: []string{ScopeSend},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err = anonymous.SignedString([]byte("test-secret-key-0001"))
	require.NoError(t, err)
	_, err = relay.ValidateConnectionToken(signed)
	assert.Error(t, err)
}
