package tombstone

import (
	"encoding/json"
	"net/http"
	"time"

	"go-chat-api/internal/apperr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// ListDeleted serves the reconciliation list: every deletion recorded
// strictly after the client's last sync time, oldest first.
func (h *Handler) ListDeleted(w http.ResponseWriter, r *http.Request) {
	after, err := time.Parse(time.RFC3339, r.URL.Query().Get("after"))
	if err != nil {
		http.Error(w, "after must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	tombstones, err := h.service.ListAfter(r.Context(), after)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deletedMessages": tombstones})
}
