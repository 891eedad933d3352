package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// ConnectionTokenTTL bounds how long an issued client connection URL stays
// valid.
const ConnectionTokenTTL = time.Hour

// Scopes granted to client connection tokens.
const (
	ScopeSend      = "chat.send"
	ScopeJoinLeave = "chat.joinLeave"
)

const (
	chatChannelPrefix = "chat:"
	userChannelPrefix = "user:"
	membersKeyPrefix  = "chatmembers:"
)

// Relay is the fan-out boundary, backed by redis pub/sub. Events published
// to a chat channel reach every server instance; each instance's Hub then
// delivers them to its own connected clients. Group membership lives in
// redis sets so every instance shares one view of who belongs to a chat.
type Relay struct {
	redis   *redis.Client
	secret  []byte
	baseURL string
}

func NewRelay(redisClient *redis.Client, secret, baseURL string) *Relay {
	return &Relay{redis: redisClient, secret: []byte(secret), baseURL: baseURL}
}

// Broadcast publishes an event to every member of a chat group.
func (r *Relay) Broadcast(ctx context.Context, groupID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.redis.Publish(ctx, chatChannelPrefix+groupID, payload).Err()
}

// SendToUser publishes an event to one user's private channel.
func (r *Relay) SendToUser(ctx context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.redis.Publish(ctx, userChannelPrefix+userID, payload).Err()
}

func (r *Relay) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	return r.redis.SAdd(ctx, membersKeyPrefix+groupID, userID).Err()
}

func (r *Relay) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return r.redis.SRem(ctx, membersKeyPrefix+groupID, userID).Err()
}

// GroupMembers returns the user ids currently registered in a chat group.
func (r *Relay) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	return r.redis.SMembers(ctx, membersKeyPrefix+groupID).Result()
}

type connectionClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// IssueClientConnectionURL returns the websocket URL a client connects
// with. The embedded credential is valid for ConnectionTokenTTL and scoped
// to send and join-leave permissions.
func (r *Relay) IssueClientConnectionURL(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, connectionClaims{
		Scopes: []string{ScopeSend, ScopeJoinLeave},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ConnectionTokenTTL)),
		},
	})

	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign connection token: %w", err)
	}
	return fmt.Sprintf("%s/ws?access_token=%s", r.baseURL, signed), nil
}

// ValidateConnectionToken checks an access token from a connection URL and
// returns the user id it was issued to.
func (r *Relay) ValidateConnectionToken(tokenString string) (string, error) {
	claims := &connectionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid connection token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("connection token has no subject")
	}
	return claims.Subject, nil
}
