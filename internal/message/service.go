package message

import (
	"context"
	"log/slog"
	"time"

	"go-chat-api/internal/apperr"
	"go-chat-api/internal/chat"
	"go-chat-api/internal/realtime"
	"go-chat-api/internal/telemetry"
)

// ChatDirectory is the slice of the chat directory the coordinator needs:
// membership checks before persisting and the recency bump after.
type ChatDirectory interface {
	Get(ctx context.Context, chatID string) (*chat.Room, error)
	BumpLastMessage(ctx context.Context, chatID string, ts time.Time) error
}

// Store is the message persistence boundary.
type Store interface {
	Create(ctx context.Context, msg *Message) (*Message, error)
	Get(ctx context.Context, messageID, chatID string) (*Message, error)
	Delete(ctx context.Context, messageID, chatID string) error
	List(ctx context.Context, chatID string, page, pageSize int) ([]Message, error)
	After(ctx context.Context, chatID string, ts time.Time) ([]Message, error)
	Recent(ctx context.Context, chatID string, limit int) ([]Message, error)
	Before(ctx context.Context, chatID string, before time.Time, limit int) ([]Message, error)
}

// Ledger records deletions so offline clients can reconcile on reconnect.
type Ledger interface {
	Append(ctx context.Context, messageID, chatID, deletedBy string, deletedAt time.Time) error
}

// Notifier broadcasts an event to a chat's fan-out group. Broadcasts are
// advisory: failures never fail the operation that triggered them.
type Notifier interface {
	Broadcast(ctx context.Context, groupID string, event realtime.Event) error
}

// BlobStore is the slice of the blob collaborator the delete path uses.
type BlobStore interface {
	Delete(ctx context.Context, url string) error
}

// Service is the message lifecycle coordinator. It checks every
// precondition before any mutation and sequences side effects so a failure
// after persistence leaves the system recoverable.
type Service struct {
	store     Store
	directory ChatDirectory
	ledger    Ledger
	notifier  Notifier
	blobs     BlobStore
	log       *slog.Logger
	now       func() time.Time
}

func NewService(store Store, directory ChatDirectory, ledger Ledger, notifier Notifier, blobs BlobStore, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		ledger:    ledger,
		notifier:  notifier,
		blobs:     blobs,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send validates the candidate message against chat state and sender
// membership, persists it, bumps the chat's recency, and broadcasts it to
// the chat group. The recency bump and the broadcast are best-effort: once
// the message is persisted it is durably visible via the query paths even
// if either of them fails.
func (s *Service) Send(ctx context.Context, chatID, msgType string, content Content, senderID string) (*Message, error) {
	room, err := s.directory.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, apperr.Invalid("cannot send messages to inactive chat")
	}
	if !room.IsParticipant(senderID) {
		return nil, apperr.Unauthorized("sender is not a participant in this chat")
	}

	msg := &Message{ChatID: chatID, SenderID: senderID, Type: msgType}
	switch msgType {
	case TypeText:
		if content.Text == "" {
			return nil, apperr.Invalid("text message cannot be empty")
		}
		msg.Content = Content{Text: content.Text}
	case TypeImage:
		// The blob collaborator has already validated and stored the
		// image; only an accepted (url, size, mime) triple reaches here.
		if content.ImageURL == "" {
			return nil, apperr.Invalid("image reference is required for image messages")
		}
		msg.Content = Content{
			ImageURL:      content.ImageURL,
			ImageSize:     content.ImageSize,
			ImageMimeType: content.ImageMimeType,
		}
	default:
		return nil, apperr.Invalid("invalid message type")
	}

	created, err := s.store.Create(ctx, msg)
	if err != nil {
		return nil, err
	}
	telemetry.MessagesSent.Inc()

	if err := s.directory.BumpLastMessage(ctx, chatID, created.CreatedAt); err != nil {
		// The message exists and is visible via queries; only the chat's
		// recency ordering is stale.
		s.log.Warn("failed to bump chat last-message time",
			"chat_id", chatID, "message_id", created.ID, "error", err)
	}

	s.broadcast(ctx, chatID, realtime.Event{Type: realtime.EventMessage, Data: created})
	return created, nil
}

// Delete hard-deletes a message. Permitted only within DeleteWindow of
// creation, and only for the original sender or a chat admin. On success a
// tombstone is appended, image blobs are cleaned up best-effort, and a
// deletion event is broadcast to the chat group.
func (s *Service) Delete(ctx context.Context, messageID, chatID, userID string) error {
	msg, err := s.store.Get(ctx, messageID, chatID)
	if err != nil {
		return err
	}

	now := s.now()
	if now.Sub(msg.CreatedAt) > DeleteWindow {
		return apperr.Invalid("messages can only be deleted within 15 minutes of sending")
	}

	if msg.SenderID != userID {
		room, err := s.directory.Get(ctx, chatID)
		if err != nil && !apperr.IsNotFound(err) {
			return err
		}
		if room == nil || !room.IsAdmin(userID) {
			return apperr.Unauthorized("user may not delete this message")
		}
	}

	if err := s.store.Delete(ctx, messageID, chatID); err != nil {
		return err
	}
	telemetry.MessagesDeleted.Inc()

	deletedAt := s.now()
	if err := s.ledger.Append(ctx, messageID, chatID, userID, deletedAt); err != nil {
		// The hard delete already happened; losing the tombstone only
		// degrades offline reconciliation.
		s.log.Error("failed to record tombstone",
			"message_id", messageID, "chat_id", chatID, "error", err)
	}

	if msg.Type == TypeImage && msg.Content.ImageURL != "" {
		if err := s.blobs.Delete(ctx, msg.Content.ImageURL); err != nil {
			s.log.Warn("failed to delete image blob",
				"message_id", messageID, "url", msg.Content.ImageURL, "error", err)
		}
	}

	s.broadcast(ctx, chatID, realtime.Event{
		Type: realtime.EventMessageDeleted,
		Data: realtime.MessageDeleted{MessageID: messageID, ChatID: chatID, DeletedAt: deletedAt},
	})
	return nil
}

func (s *Service) Get(ctx context.Context, messageID, chatID string) (*Message, error) {
	return s.store.Get(ctx, messageID, chatID)
}

// List returns one 1-indexed page of the chat's history, oldest first.
func (s *Service) List(ctx context.Context, chatID string, page, pageSize int) ([]Message, error) {
	return s.store.List(ctx, chatID, page, pageSize)
}

// Sync returns messages created strictly after the client's last sync
// point, ascending.
func (s *Service) Sync(ctx context.Context, chatID string, since time.Time) ([]Message, error) {
	return s.store.After(ctx, chatID, since)
}

// Recent returns the newest limit messages in chronological order.
func (s *Service) Recent(ctx context.Context, chatID string, limit int) ([]Message, error) {
	return s.store.Recent(ctx, chatID, limit)
}

// History returns up to limit messages from before the given time in
// chronological order.
func (s *Service) History(ctx context.Context, chatID string, before time.Time, limit int) ([]Message, error) {
	return s.store.Before(ctx, chatID, before, limit)
}

func (s *Service) broadcast(ctx context.Context, chatID string, ev realtime.Event) {
	if err := s.notifier.Broadcast(ctx, chatID, ev); err != nil {
		telemetry.BroadcastFailures.Inc()
		s.log.Error("failed to broadcast event",
			"event_type", ev.Type, "chat_id", chatID, "error", err)
	}
}
