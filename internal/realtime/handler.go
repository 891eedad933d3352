package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"go-chat-api/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients authenticate with the connection token instead.
	},
}

type Handler struct {
	hub   *Hub
	relay *Relay
	log   *slog.Logger
}

func NewHandler(hub *Hub, relay *Relay, log *slog.Logger) *Handler {
	return &Handler{hub: hub, relay: relay, log: log}
}

// Negotiate issues the caller a time-bounded connection URL for the
// websocket endpoint.
func (h *Handler) Negotiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	url, err := h.relay.IssueClientConnectionURL(userID)
	if err != nil {
		h.log.Error("failed to issue connection url", "user_id", userID, "error", err)
		http.Error(w, "failed to issue connection url", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// ServeWs upgrades a connection authenticated by the access_token query
// parameter from a negotiated connection URL.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("access_token")
	if tokenString == "" {
		http.Error(w, "Missing access token", http.StatusUnauthorized)
		return
	}

	userID, err := h.relay.ValidateConnectionToken(tokenString)
	if err != nil {
		http.Error(w, "Invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
