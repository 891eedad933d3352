package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"go-chat-api/internal/apperr"
	"go-chat-api/internal/middleware"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s, validate: validator.New()}
}

type createChatRequest struct {
	Type           string   `json:"type" validate:"required"`
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participantIds"`
}

type createDirectRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

type addParticipantRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=admin member"`
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.service.CreateGroup(r.Context(), req.Type, req.Name, userID, req.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, room)
}

func (h *Handler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.service.CreateDirect(r.Context(), userID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, room)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	chatID := chi.URLParam(r, "chatID")

	room, err := h.service.Get(r.Context(), chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !room.IsParticipant(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatType := r.URL.Query().Get("type")
	if chatType != "" && chatType != TypeIndividual && chatType != TypeGroup {
		http.Error(w, "invalid chat type filter", http.StatusBadRequest)
		return
	}

	rooms, err := h.service.ListForUser(r.Context(), userID, chatType)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rooms)
}

func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	targetID := chi.URLParam(r, "userID")

	if !h.requireAdmin(w, r, chatID) {
		return
	}

	var req addParticipantRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	room, err := h.service.AddParticipant(r.Context(), chatID, targetID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	targetID := chi.URLParam(r, "userID")

	if !h.requireAdmin(w, r, chatID) {
		return
	}

	room, err := h.service.RemoveParticipant(r.Context(), chatID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	targetID := chi.URLParam(r, "userID")

	if !h.requireAdmin(w, r, chatID) {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := h.service.UpdateRole(r.Context(), chatID, targetID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if !h.requireAdmin(w, r, chatID) {
		return
	}

	if err := h.service.Deactivate(r.Context(), chatID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin loads the chat and checks the requester's role. Individual
// chats have no admins, so membership mutations on them fall through to
// the service and fail there with the domain error.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, chatID string) bool {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}

	room, err := h.service.Get(r.Context(), chatID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if room.Type == TypeGroup && !room.IsAdmin(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	if room.Type == TypeIndividual && !room.IsParticipant(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}
