package tombstone

import "time"

// Tombstone is an append-only record marking that a message once existed
// and was deleted. Clients that were offline during a deletion list
// tombstones newer than their last sync point to reconcile local caches.
type Tombstone struct {
	MessageID string    `json:"messageId" db:"message_id"`
	ChatID    string    `json:"chatId" db:"chat_id"`
	DeletedBy string    `json:"deletedBy" db:"deleted_by"`
	DeletedAt time.Time `json:"deletedAt" db:"deleted_at"`
}
