package chat

import "time"

const (
	TypeIndividual = "individual"
	TypeGroup      = "group"

	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant is a user's membership record within a chat room. It is
// embedded in the room document, at most one entry per user id.
type Participant struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room is a conversation entity, either two-party ("individual") or
// multi-party ("group"). Rooms are never physically deleted, only
// deactivated. Version backs optimistic concurrency on whole-entity
// replace and is never exposed to clients.
type Room struct {
	ID            string        `json:"id" db:"id"`
	Type          string        `json:"type" db:"type"`
	Name          string        `json:"name,omitempty" db:"name"`
	CreatedBy     string        `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	LastMessageAt time.Time     `json:"lastMessageAt" db:"last_message_at"`
	IsActive      bool          `json:"isActive" db:"is_active"`
	Participants  []Participant `json:"participants"`
	Version       int64         `json:"-" db:"version"`
}

// Participant returns the membership record for userID, or nil.
func (r *Room) Participant(userID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

func (r *Room) IsParticipant(userID string) bool {
	return r.Participant(userID) != nil
}

func (r *Room) IsAdmin(userID string) bool {
	p := r.Participant(userID)
	return p != nil && p.Role == RoleAdmin
}
