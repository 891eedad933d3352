package tombstone

import (
	"context"
	"time"
)

// Store is the ledger persistence boundary.
type Store interface {
	Append(ctx context.Context, t Tombstone) error
	ListAfter(ctx context.Context, ts time.Time) ([]Tombstone, error)
}

// Service is the tombstone ledger.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Append records a deletion. It satisfies the coordinator's Ledger
// dependency.
func (s *Service) Append(ctx context.Context, messageID, chatID, deletedBy string, deletedAt time.Time) error {
	return s.store.Append(ctx, Tombstone{
		MessageID: messageID,
		ChatID:    chatID,
		DeletedBy: deletedBy,
		DeletedAt: deletedAt,
	})
}

// ListAfter returns deletions recorded strictly after ts, oldest first.
func (s *Service) ListAfter(ctx context.Context, ts time.Time) ([]Tombstone, error) {
	return s.store.ListAfter(ctx, ts)
}
