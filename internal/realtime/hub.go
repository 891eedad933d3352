package realtime

import (
	"context"
	"log/slog"
	"strings"
)

// inbound is a raw event pulled off a redis channel.
type inbound struct {
	channel string
	payload []byte
}

// Hub delivers relay events to this instance's websocket clients. It
// maintains the set of active clients keyed by user id and routes each
// chat event only to connected members of the target group. The run loop
// is the only goroutine touching the client map, so no locking is needed.
type Hub struct {
	clients map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	events     chan inbound

	relay *Relay
	log   *slog.Logger
}

func NewHub(relay *Relay, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan inbound, 64),
		relay:      relay,
		log:        log,
	}
}

// Run manages client registration and event delivery until ctx is
// canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					close(client.Send)
				}
			}
			return

		case client := <-h.Register:
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]bool)
				h.clients[client.UserID] = conns
			}
			conns[client] = true

		case client := <-h.Unregister:
			if conns, ok := h.clients[client.UserID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.Send)
				}
				if len(conns) == 0 {
					delete(h.clients, client.UserID)
				}
			}

		case ev := <-h.events:
			h.deliver(ctx, ev)
		}
	}
}

// Subscribe pumps relay events into the hub until ctx is canceled. Run it
// in its own goroutine alongside Run.
func (h *Hub) Subscribe(ctx context.Context) {
	pubsub := h.relay.redis.PSubscribe(ctx, chatChannelPrefix+"*", userChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.events <- inbound{channel: msg.Channel, payload: []byte(msg.Payload)}
		}
	}
}

func (h *Hub) deliver(ctx context.Context, ev inbound) {
	switch {
	case strings.HasPrefix(ev.channel, userChannelPrefix):
		userID := strings.TrimPrefix(ev.channel, userChannelPrefix)
		h.sendToUser(userID, ev.payload)

	case strings.HasPrefix(ev.channel, chatChannelPrefix):
		chatID := strings.TrimPrefix(ev.channel, chatChannelPrefix)
		members, err := h.relay.GroupMembers(ctx, chatID)
		if err != nil {
			h.log.Error("failed to resolve group members",
				"chat_id", chatID, "error", err)
			return
		}
		for _, userID := range members {
			h.sendToUser(userID, ev.payload)
		}
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer: drop the connection rather than block the hub.
			close(client.Send)
			delete(h.clients[userID], client)
		}
	}
}
