package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"go-chat-api/internal/apperr"
)

// ErrVersionConflict is returned by Replace when the stored room has moved
// past the version the caller read. The service retries on it.
var ErrVersionConflict = errors.New("chat version conflict")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// roomRow is the flat table shape; participants live in a JSONB column.
type roomRow struct {
	ID            string         `db:"id"`
	Type          string         `db:"type"`
	Name          sql.NullString `db:"name"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
	LastMessageAt time.Time      `db:"last_message_at"`
	IsActive      bool           `db:"is_active"`
	Participants  []byte         `db:"participants"`
	Version       int64          `db:"version"`
}

func (rr *roomRow) toRoom() (*Room, error) {
	room := &Room{
		ID:            rr.ID,
		Type:          rr.Type,
		Name:          rr.Name.String,
		CreatedBy:     rr.CreatedBy,
		CreatedAt:     rr.CreatedAt,
		LastMessageAt: rr.LastMessageAt,
		IsActive:      rr.IsActive,
		Version:       rr.Version,
	}
	if err := json.Unmarshal(rr.Participants, &room.Participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return room, nil
}

func (r *Repository) Create(ctx context.Context, room *Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return apperr.Transient("failed to encode participants", err)
	}

	query := `
		INSERT INTO chats (id, type, name, created_by, created_at, last_message_at, is_active, participants, version)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, 1)
	`
	_, err = r.db.ExecContext(ctx, query,
		room.ID, room.Type, room.Name, room.CreatedBy,
		room.CreatedAt, room.LastMessageAt, room.IsActive, participants)
	if err != nil {
		return apperr.Transient("failed to create chat", err)
	}
	room.Version = 1
	return nil
}

func (r *Repository) Get(ctx context.Context, chatID string) (*Room, error) {
	var row roomRow
	query := `
		SELECT id, type, name, created_by, created_at, last_message_at, is_active, participants, version
		FROM chats WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("chat not found")
		}
		return nil, apperr.Transient("failed to fetch chat", err)
	}
	room, err := row.toRoom()
	if err != nil {
		return nil, apperr.Transient("failed to decode chat", err)
	}
	return room, nil
}

// ListForUser returns every chat the user is a member of, newest activity
// first. chatType narrows the result to "individual" or "group" when set.
func (r *Repository) ListForUser(ctx context.Context, userID, chatType string) ([]Room, error) {
	member, err := json.Marshal([]map[string]string{{"userId": userID}})
	if err != nil {
		return nil, apperr.Transient("failed to encode membership predicate", err)
	}

	query := `
		SELECT id, type, name, created_by, created_at, last_message_at, is_active, participants, version
		FROM chats
		WHERE participants @> $1 AND ($2 = '' OR type = $2)
		ORDER BY last_message_at DESC
	`
	var rows []roomRow
	if err := r.db.SelectContext(ctx, &rows, query, member, chatType); err != nil {
		return nil, apperr.Transient("failed to list chats", err)
	}

	rooms := make([]Room, 0, len(rows))
	for i := range rows {
		room, err := rows[i].toRoom()
		if err != nil {
			return nil, apperr.Transient("failed to decode chat", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

// Replace writes the whole room back, guarded by the version read with it.
// A stale version yields ErrVersionConflict so the caller can re-read and
// retry. On success room.Version reflects the new stored version.
func (r *Repository) Replace(ctx context.Context, room *Room) error {
	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return apperr.Transient("failed to encode participants", err)
	}

	query := `
		UPDATE chats
		SET name = NULLIF($2, ''), last_message_at = $3, is_active = $4,
		    participants = $5, version = version + 1
		WHERE id = $1 AND version = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.LastMessageAt, room.IsActive, participants, room.Version)
	if err != nil {
		return apperr.Transient("failed to update chat", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Transient("failed to update chat", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	room.Version++
	return nil
}
