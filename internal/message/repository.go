package message

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"go-chat-api/internal/apperr"
)

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type messageRow struct {
	ID        string    `db:"id"`
	ChatID    string    `db:"chat_id"`
	SenderID  string    `db:"sender_id"`
	Type      string    `db:"type"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (mr *messageRow) toMessage() (*Message, error) {
	msg := &Message{
		ID:        mr.ID,
		ChatID:    mr.ChatID,
		SenderID:  mr.SenderID,
		Type:      mr.Type,
		CreatedAt: mr.CreatedAt,
	}
	if err := json.Unmarshal(mr.Content, &msg.Content); err != nil {
		return nil, err
	}
	return msg, nil
}

const selectColumns = `id, chat_id, sender_id, type, content, created_at`

// Create persists the message, assigning its id and creation timestamp.
func (r *Repository) Create(ctx context.Context, msg *Message) (*Message, error) {
	msg.ID = uuid.NewString()
	msg.CreatedAt = r.now()

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, apperr.Transient("failed to encode message content", err)
	}

	query := `
		INSERT INTO messages (id, chat_id, sender_id, type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.Type, content, msg.CreatedAt)
	if err != nil {
		return nil, apperr.Transient("failed to create message", err)
	}
	return msg, nil
}

func (r *Repository) Get(ctx context.Context, messageID, chatID string) (*Message, error) {
	var row messageRow
	query := `SELECT ` + selectColumns + ` FROM messages WHERE chat_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &row, query, chatID, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, apperr.Transient("failed to fetch message", err)
	}
	msg, err := row.toMessage()
	if err != nil {
		return nil, apperr.Transient("failed to decode message", err)
	}
	return msg, nil
}

// Delete hard-deletes the message. There is no soft-delete flag; the
// tombstone ledger is the only surviving trace.
func (r *Repository) Delete(ctx context.Context, messageID, chatID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_id = $1 AND id = $2`, chatID, messageID)
	if err != nil {
		return apperr.Transient("failed to delete message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Transient("failed to delete message", err)
	}
	if n == 0 {
		return apperr.NotFound("message not found")
	}
	return nil
}

// List returns one page of the chat's history in chronological order.
// Pages are 1-indexed over the ascending history, so page 1 holds the
// oldest pageSize messages.
func (r *Repository) List(ctx context.Context, chatID string, page, pageSize int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	query := `
		SELECT ` + selectColumns + ` FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
		OFFSET $2 LIMIT $3
	`
	return r.selectMessages(ctx, query, chatID, (page-1)*pageSize, pageSize)
}

// After returns messages created strictly after ts, ascending.
func (r *Repository) After(ctx context.Context, chatID string, ts time.Time) ([]Message, error) {
	query := `
		SELECT ` + selectColumns + ` FROM messages
		WHERE chat_id = $1 AND created_at > $2
		ORDER BY created_at ASC, id ASC
	`
	return r.selectMessages(ctx, query, chatID, ts)
}

// Recent returns the newest limit messages. Selection is by descending
// creation time; the result is re-sorted ascending so callers always see
// chronological order.
func (r *Repository) Recent(ctx context.Context, chatID string, limit int) ([]Message, error) {
	query := `
		SELECT ` + selectColumns + ` FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	msgs, err := r.selectMessages(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// Before returns up to limit messages created strictly before the given
// time, selected newest-first and re-sorted ascending.
func (r *Repository) Before(ctx context.Context, chatID string, before time.Time, limit int) ([]Message, error) {
	query := `
		SELECT ` + selectColumns + ` FROM messages
		WHERE chat_id = $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	msgs, err := r.selectMessages(ctx, query, chatID, before, limit)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (r *Repository) selectMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Transient("failed to query messages", err)
	}
	msgs := make([]Message, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].toMessage()
		if err != nil {
			return nil, apperr.Transient("failed to decode message", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, nil
}

// reverse flips a descending-selected result into chronological order.
func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
