package tombstone

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"go-chat-api/internal/apperr"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts a new tombstone row. The ledger does not enforce
// uniqueness: a duplicate append for the same message id is accepted as a
// new record.
func (r *Repository) Append(ctx context.Context, t Tombstone) error {
	query := `
		INSERT INTO deleted_messages (message_id, chat_id, deleted_by, deleted_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, t.MessageID, t.ChatID, t.DeletedBy, t.DeletedAt)
	if err != nil {
		return apperr.Transient("failed to append tombstone", err)
	}
	return nil
}

// ListAfter returns tombstones with deletion time strictly after ts,
// ascending by deletion time.
func (r *Repository) ListAfter(ctx context.Context, ts time.Time) ([]Tombstone, error) {
	query := `
		SELECT message_id, chat_id, deleted_by, deleted_at
		FROM deleted_messages
		WHERE deleted_at > $1
		ORDER BY deleted_at ASC
	`
	var tombstones []Tombstone
	if err := r.db.SelectContext(ctx, &tombstones, query, ts); err != nil {
		return nil, apperr.Transient("failed to list tombstones", err)
	}
	return tombstones, nil
}
