package message

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"go-chat-api/internal/apperr"
	"go-chat-api/internal/blob"
	"go-chat-api/internal/chat"
	"go-chat-api/internal/middleware"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	defaultLimit    = 50
)

// ChatReader is what the handler needs from the chat directory to verify
// membership before serving reads.
type ChatReader interface {
	Get(ctx context.Context, chatID string) (*chat.Room, error)
}

type Handler struct {
	service *Service
	chats   ChatReader
	blobs   blob.Store
	log     *slog.Logger
}

func NewHandler(s *Service, chats ChatReader, blobs blob.Store, log *slog.Logger) *Handler {
	return &Handler{service: s, chats: chats, blobs: blobs, log: log}
}

type sendRequest struct {
	Type    string  `json:"type"`
	Content Content `json:"content"`
}

// Send accepts a JSON body for text messages or a multipart form with an
// "image" file for image messages.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	chatID := chi.URLParam(r, "chatID")

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.sendImage(w, r, chatID, userID)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Image content must come through the multipart path so it passes
	// blob validation and upload; a JSON body may not fabricate the url.
	if req.Type == TypeImage {
		http.Error(w, "image messages must be sent as multipart form data", http.StatusBadRequest)
		return
	}
	if req.Type == TypeText && req.Content.Text == "" {
		http.Error(w, "text message cannot be empty", http.StatusBadRequest)
		return
	}

	msg, err := h.service.Send(r.Context(), chatID, req.Type, req.Content, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) sendImage(w http.ResponseWriter, r *http.Request, chatID, userID string) {
	if err := r.ParseMultipartForm(blob.MaxImageSize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required for image messages", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !h.blobs.Validate(contentType, header.Size) {
		http.Error(w, "invalid image file: must be jpg, png, or gif under 5MB", http.StatusBadRequest)
		return
	}

	url, size, ct, err := h.blobs.Upload(r.Context(), file, contentType, header.Filename)
	if err != nil {
		h.log.Error("image upload failed", "chat_id", chatID, "error", err)
		http.Error(w, "image upload failed", http.StatusInternalServerError)
		return
	}

	content := Content{ImageURL: url, ImageSize: size, ImageMimeType: ct}
	msg, err := h.service.Send(r.Context(), chatID, TypeImage, content, userID)
	if err != nil {
		// The message never existed; drop the orphaned blob.
		if derr := h.blobs.Delete(r.Context(), url); derr != nil {
			h.log.Warn("failed to clean up orphaned blob", "url", url, "error", derr)
		}
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.requireMembership(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 || pageSize < 1 {
		http.Error(w, "page and pageSize must be positive", http.StatusBadRequest)
		return
	}

	msgs, err := h.service.List(r.Context(), chatID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.requireMembership(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultLimit)
	if limit < 1 || limit > maxPageSize {
		http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return
	}

	msgs, err := h.service.Recent(r.Context(), chatID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.requireMembership(w, r)
	if !ok {
		return
	}

	before, err := time.Parse(time.RFC3339, r.URL.Query().Get("before"))
	if err != nil {
		http.Error(w, "before must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", defaultLimit)
	if limit < 1 || limit > maxPageSize {
		http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return
	}

	msgs, err := h.service.History(r.Context(), chatID, before, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.requireMembership(w, r)
	if !ok {
		return
	}

	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		http.Error(w, "since must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	msgs, err := h.service.Sync(r.Context(), chatID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.requireMembership(w, r)
	if !ok {
		return
	}

	msg, err := h.service.Get(r.Context(), chi.URLParam(r, "messageID"), chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	chatID := chi.URLParam(r, "chatID")
	messageID := chi.URLParam(r, "messageID")

	if err := h.service.Delete(r.Context(), messageID, chatID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireMembership resolves the chat and checks the requester belongs to
// it before any message read is served.
func (h *Handler) requireMembership(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	chatID := chi.URLParam(r, "chatID")

	room, err := h.chats.Get(r.Context(), chatID)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	if !room.IsParticipant(userID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}
	return chatID, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}
