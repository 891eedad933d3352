package message

import "time"

const (
	TypeText  = "text"
	TypeImage = "image"
)

// DeleteWindow is the span after creation during which a message may be
// deleted.
const DeleteWindow = 15 * time.Minute

// Content is the payload of a message. Exactly one branch is populated:
// Text for text messages, the Image* fields for image messages.
type Content struct {
	Text          string `json:"text,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	ImageSize     int64  `json:"imageSize,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
}

// Message is owned by its chat (chat id is the partition key). Id and
// creation timestamp are assigned at persistence time and immutable after.
type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"chatId" db:"chat_id"`
	SenderID  string    `json:"senderId" db:"sender_id"`
	Type      string    `json:"type" db:"type"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
