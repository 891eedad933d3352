package chat

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-chat-api/internal/apperr"
)

// memStore is an in-memory Store with the same versioning contract as the
// SQL repository. forceConflicts makes the next n Replace calls fail as if
// a concurrent writer had won, to exercise the retry loop.
type memStore struct {
	rooms          map[string]*Room
	forceConflicts int
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]*Room)}
}

func cloneRoom(r *Room) *Room {
	c := *r
	c.Participants = append([]Participant(nil), r.Participants...)
	return &c
}

func (s *memStore) Create(ctx context.Context, room *Room) error {
	room.Version = 1
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *memStore) Get(ctx context.Context, chatID string) (*Room, error) {
	room, ok := s.rooms[chatID]
	if !ok {
		return nil, apperr.NotFound("chat not found")
	}
	return cloneRoom(room), nil
}

func (s *memStore) ListForUser(ctx context.Context, userID, chatType string) ([]Room, error) {
	var out []Room
	for _, room := range s.rooms {
		if !room.IsParticipant(userID) {
			continue
		}
		if chatType != "" && room.Type != chatType {
			continue
		}
		out = append(out, *cloneRoom(room))
	}
	return out, nil
}

func (s *memStore) Replace(ctx context.Context, room *Room) error {
	stored, ok := s.rooms[room.ID]
	if !ok || stored.Version != room.Version {
		return ErrVersionConflict
	}
	if s.forceConflicts > 0 {
		s.forceConflicts--
		stored.Version++ // a concurrent writer won this round
		return ErrVersionConflict
	}
	replaced := cloneRoom(room)
	replaced.Version++
	s.rooms[room.ID] = replaced
	room.Version++
	return nil
}

type fakeNotifier struct {
	added   []string // "userID/groupID"
	removed []string
}

func (n *fakeNotifier) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	n.added = append(n.added, userID+"/"+groupID)
	return nil
}

func (n *fakeNotifier) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	n.removed = append(n.removed, userID+"/"+groupID)
	return nil
}

func newTestService() (*Service, *memStore, *fakeNotifier) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, slog.Default())
	return svc, store, notifier
}

func TestCreateDirectWithSelfFails(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateDirect(context.Background(), "u1", "u1")
	require.Error(t, err)
	assert.True(t, apperr.IsInvalid(err))
}

func TestCreateDirectHasExactlyTwoMembers(t *testing.T) {
	svc, _, notifier := newTestService()

	room, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)

	assert.Equal(t, TypeIndividual, room.Type)
	assert.True(t, room.IsActive)
	require.Len(t, room.Participants, 2)
	for _, p := range room.Participants {
		assert.Equal(t, RoleMember, p.Role)
	}
	assert.ElementsMatch(t,
		[]string{"u1/" + room.ID, "u2/" + room.ID},
		notifier.added)
}

func TestCreateGroupValidation(t *testing.T) {
	tests := []struct {
		name     string
		chatType string
		chatName string
	}{
		{"wrong type", TypeIndividual, "Standup"},
		{"unknown type", "broadcast", "Standup"},
		{"empty name", TypeGroup, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			_, err := svc.CreateGroup(context.Background(), tc.chatType, tc.chatName, "u1", nil)
			require.Error(t, err)
			assert.True(t, apperr.IsInvalid(err))
		})
	}
}

func TestCreateGroupCreatorIsAdmin(t *testing.T) {
	svc, _, _ := newTestService()

	// The creator in the participant list and duplicates both collapse.
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", []string{"u1", "u2", "u2", "u3"})
	require.NoError(t, err)

	require.Len(t, room.Participants, 3)
	assert.True(t, room.IsAdmin("u1"))
	assert.Equal(t, RoleMember, room.Participant("u2").Role)
	assert.Equal(t, RoleMember, room.Participant("u3").Role)
}

func TestIndividualChatMembershipIsImmutable(t *testing.T) {
	svc, store, _ := newTestService()
	room, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)

	_, err = svc.AddParticipant(context.Background(), room.ID, "u3", RoleMember)
	assert.True(t, apperr.IsInvalid(err))

	_, err = svc.RemoveParticipant(context.Background(), room.ID, "u2")
	assert.True(t, apperr.IsInvalid(err))

	_, err = svc.UpdateRole(context.Background(), room.ID, "u2", RoleAdmin)
	assert.True(t, apperr.IsInvalid(err))

	stored, err := store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Participants, 2)
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", []string{"u2"})
	require.NoError(t, err)

	updated, err := svc.AddParticipant(context.Background(), room.ID, "u2", RoleMember)
	require.NoError(t, err)
	assert.Len(t, updated.Participants, 2)
}

func TestAddParticipant(t *testing.T) {
	svc, _, notifier := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", nil)
	require.NoError(t, err)

	updated, err := svc.AddParticipant(context.Background(), room.ID, "u2", "")
	require.NoError(t, err)
	require.True(t, updated.IsParticipant("u2"))
	assert.Equal(t, RoleMember, updated.Participant("u2").Role)
	assert.Contains(t, notifier.added, "u2/"+room.ID)
}

func TestRemoveParticipant(t *testing.T) {
	svc, _, notifier := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", []string{"u2"})
	require.NoError(t, err)

	updated, err := svc.RemoveParticipant(context.Background(), room.ID, "u2")
	require.NoError(t, err)
	assert.False(t, updated.IsParticipant("u2"))
	assert.Contains(t, notifier.removed, "u2/"+room.ID)
}

func TestRemoveParticipantDistinguishesFailures(t *testing.T) {
	svc, _, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", nil)
	require.NoError(t, err)

	// Chat exists but the user is not a member.
	_, err = svc.RemoveParticipant(context.Background(), room.ID, "stranger")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Contains(t, err.Error(), "participant")

	// Chat itself is absent.
	_, err = svc.RemoveParticipant(context.Background(), "no-such-chat", "u1")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Contains(t, err.Error(), "chat")
}

func TestUpdateRole(t *testing.T) {
	svc, _, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", []string{"u2"})
	require.NoError(t, err)

	updated, err := svc.UpdateRole(context.Background(), room.ID, "u2", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin("u2"))

	_, err = svc.UpdateRole(context.Background(), room.ID, "stranger", RoleAdmin)
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.UpdateRole(context.Background(), room.ID, "u2", "owner")
	assert.True(t, apperr.IsInvalid(err))
}

func TestBumpLastMessageIsMonotonic(t *testing.T) {
	svc, store, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", nil)
	require.NoError(t, err)

	newer := room.LastMessageAt.Add(time.Minute)
	require.NoError(t, svc.BumpLastMessage(context.Background(), room.ID, newer))

	stored, err := store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastMessageAt.Equal(newer))

	// An older timestamp must not move the value backwards.
	require.NoError(t, svc.BumpLastMessage(context.Background(), room.ID, newer.Add(-time.Hour)))
	stored, err = store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastMessageAt.Equal(newer))
}

func TestDeactivate(t *testing.T) {
	svc, store, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), room.ID))

	stored, err := store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestMutateRetriesOnVersionConflict(t *testing.T) {
	svc, store, _ := newTestService()
	room, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", nil)
	require.NoError(t, err)

	store.forceConflicts = replaceRetries - 1
	_, err = svc.AddParticipant(context.Background(), room.ID, "u2", RoleMember)
	require.NoError(t, err)

	store.forceConflicts = replaceRetries
	_, err = svc.AddParticipant(context.Background(), room.ID, "u3", RoleMember)
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
}

func TestListForUserFiltersByType(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateGroup(context.Background(), TypeGroup, "Standup", "u1", []string{"u2"})
	require.NoError(t, err)
	_, err = svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)

	all, err := svc.ListForUser(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	groups, err := svc.ListForUser(context.Background(), "u1", TypeGroup)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Standup", groups[0].Name)

	none, err := svc.ListForUser(context.Background(), "stranger", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}
