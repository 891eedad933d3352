package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-chat-api/internal/apperr"
)

// replaceRetries bounds the re-read-and-retry loop on version conflicts.
const replaceRetries = 3

// Store is what the directory needs from the chat repository.
type Store interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, chatID string) (*Room, error)
	ListForUser(ctx context.Context, userID, chatType string) ([]Room, error)
	Replace(ctx context.Context, room *Room) error
}

// Notifier is the slice of the fan-out relay the directory uses: keeping
// the realtime group membership in sync with the chat's participant set.
type Notifier interface {
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
}

// Service is the chat directory: it owns room entities and participant
// membership.
type Service struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateGroup creates a multi-party chat. The creator joins as admin, the
// remaining participants as members; duplicate ids collapse to one entry.
func (s *Service) CreateGroup(ctx context.Context, chatType, name, creatorID string, participantIDs []string) (*Room, error) {
	if chatType != TypeGroup {
		return nil, apperr.Invalid("invalid chat type for group chat creation")
	}
	if name == "" {
		return nil, apperr.Invalid("group chat name is required")
	}

	now := s.now()
	room := &Room{
		ID:            uuid.NewString(),
		Type:          TypeGroup,
		Name:          name,
		CreatedBy:     creatorID,
		CreatedAt:     now,
		LastMessageAt: now,
		IsActive:      true,
		Participants: []Participant{
			{UserID: creatorID, Role: RoleAdmin, JoinedAt: now},
		},
	}
	for _, id := range participantIDs {
		if id == creatorID || room.IsParticipant(id) {
			continue
		}
		room.Participants = append(room.Participants, Participant{
			UserID: id, Role: RoleMember, JoinedAt: now,
		})
	}

	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}
	for _, p := range room.Participants {
		s.joinGroup(ctx, p.UserID, room.ID)
	}
	return room, nil
}

// CreateDirect creates a two-party chat. Membership is fixed at creation,
// both sides hold the member role.
func (s *Service) CreateDirect(ctx context.Context, userID, otherUserID string) (*Room, error) {
	if userID == otherUserID {
		return nil, apperr.Invalid("cannot create direct message chat with yourself")
	}

	now := s.now()
	room := &Room{
		ID:            uuid.NewString(),
		Type:          TypeIndividual,
		CreatedBy:     userID,
		CreatedAt:     now,
		LastMessageAt: now,
		IsActive:      true,
		Participants: []Participant{
			{UserID: userID, Role: RoleMember, JoinedAt: now},
			{UserID: otherUserID, Role: RoleMember, JoinedAt: now},
		},
	}

	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}
	s.joinGroup(ctx, userID, room.ID)
	s.joinGroup(ctx, otherUserID, room.ID)
	return room, nil
}

func (s *Service) Get(ctx context.Context, chatID string) (*Room, error) {
	return s.store.Get(ctx, chatID)
}

func (s *Service) ListForUser(ctx context.Context, userID, chatType string) ([]Room, error) {
	return s.store.ListForUser(ctx, userID, chatType)
}

// AddParticipant adds userID to a group chat. Adding a user who is already
// a member is a no-op success.
func (s *Service) AddParticipant(ctx context.Context, chatID, userID, role string) (*Room, error) {
	if role == "" {
		role = RoleMember
	}
	if role != RoleAdmin && role != RoleMember {
		return nil, apperr.Invalid("invalid participant role")
	}

	room, err := s.mutate(ctx, chatID, func(room *Room) error {
		if room.Type == TypeIndividual {
			return apperr.Invalid("cannot add users to individual chats")
		}
		if room.IsParticipant(userID) {
			return nil
		}
		room.Participants = append(room.Participants, Participant{
			UserID: userID, Role: role, JoinedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.joinGroup(ctx, userID, chatID)
	return room, nil
}

func (s *Service) RemoveParticipant(ctx context.Context, chatID, userID string) (*Room, error) {
	room, err := s.mutate(ctx, chatID, func(room *Room) error {
		if room.Type == TypeIndividual {
			return apperr.Invalid("cannot remove users from individual chats")
		}
		for i := range room.Participants {
			if room.Participants[i].UserID == userID {
				room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
				return nil
			}
		}
		return apperr.NotFound("user is not a participant")
	})
	if err != nil {
		return nil, err
	}
	if err := s.notifier.RemoveUserFromGroup(ctx, userID, chatID); err != nil {
		s.log.Warn("failed to remove user from realtime group",
			"user_id", userID, "chat_id", chatID, "error", err)
	}
	return room, nil
}

func (s *Service) UpdateRole(ctx context.Context, chatID, userID, role string) (*Room, error) {
	if role != RoleAdmin && role != RoleMember {
		return nil, apperr.Invalid("invalid participant role")
	}
	return s.mutate(ctx, chatID, func(room *Room) error {
		if room.Type == TypeIndividual {
			return apperr.Invalid("cannot update roles in individual chats")
		}
		p := room.Participant(userID)
		if p == nil {
			return apperr.NotFound("user is not a participant")
		}
		p.Role = role
		return nil
	})
}

// BumpLastMessage advances the chat's last-message timestamp. The value is
// monotonically non-decreasing: an older timestamp is a no-op.
func (s *Service) BumpLastMessage(ctx context.Context, chatID string, ts time.Time) error {
	_, err := s.mutate(ctx, chatID, func(room *Room) error {
		if !ts.After(room.LastMessageAt) {
			return nil
		}
		room.LastMessageAt = ts
		return nil
	})
	return err
}

func (s *Service) Deactivate(ctx context.Context, chatID string) error {
	_, err := s.mutate(ctx, chatID, func(room *Room) error {
		room.IsActive = false
		return nil
	})
	return err
}

// mutate implements read-modify-write with optimistic concurrency: it
// re-reads and reapplies fn on version conflict, a bounded number of times.
func (s *Service) mutate(ctx context.Context, chatID string, fn func(*Room) error) (*Room, error) {
	var lastErr error
	for attempt := 0; attempt < replaceRetries; attempt++ {
		room, err := s.store.Get(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if err := fn(room); err != nil {
			return nil, err
		}
		err = s.store.Replace(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperr.Transient("chat update kept conflicting", lastErr)
}

// joinGroup is advisory: a failed group registration never fails the chat
// mutation that triggered it.
func (s *Service) joinGroup(ctx context.Context, userID, chatID string) {
	if err := s.notifier.AddUserToGroup(ctx, userID, chatID); err != nil {
		s.log.Warn("failed to add user to realtime group",
			"user_id", userID, "chat_id", chatID, "error", err)
	}
}
