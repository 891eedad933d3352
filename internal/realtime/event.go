package realtime

import "time"

// Event is the envelope broadcast to realtime clients. Data is marshaled
// as-is under "data", mirroring what the REST API returns for the same
// entity so clients reuse one decoder.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	// EventMessage carries a full persisted message.
	EventMessage = "message"
	// EventMessageDeleted carries a MessageDeleted payload.
	EventMessageDeleted = "message-deleted"
)

// MessageDeleted is the payload of an EventMessageDeleted event.
type MessageDeleted struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	DeletedAt time.Time `json:"deletedAt"`
}
