package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/super3/nilo.chat-sub000/internal/metrics"
	"github.com/super3/nilo.chat-sub000/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryResponse represents the channel history response.
type HistoryResponse struct {
	Channel  string           `json:"channel"`
	Messages []models.Message `json:"messages"`
}

// PostMessageRequest represents the post message request body.
type PostMessageRequest struct {
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// GetMessages returns a channel's history, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	if !h.registry.IsValid(name) {
		h.Error(w, http.StatusBadRequest, "Invalid channel: "+name)
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := h.store.History(r.Context(), name, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("channel", name).Msg("history fetch failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	// The line format is the persisted record shape, one message per line.
	if r.URL.Query().Get("format") == "lines" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for i := range messages {
			fmt.Fprintln(w, messages[i].Line())
		}
		return
	}

	h.JSON(w, http.StatusOK, HistoryResponse{Channel: name, Messages: messages})
}

// PostMessage publishes a message through the same fanout bus the
// socket sessions use, so REST-submitted messages reach every
// connected client live.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.registry.IsValid(req.Channel) {
		h.Error(w, http.StatusBadRequest, "Invalid channel: "+req.Channel)
		return
	}
	if req.Message == "" {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if len([]rune(req.Message)) > models.MaxTextLen {
		h.Error(w, http.StatusBadRequest, "message too long (max 2000 characters)")
		return
	}
	req.Username = sanitizeName(req.Username)
	if req.Username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	stored, err := h.bus.Publish(r.Context(), &models.Message{
		Channel:  req.Channel,
		Username: req.Username,
		Text:     req.Message,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("channel", req.Channel).Msg("publish failed")
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	metrics.MessagesPublished.WithLabelValues("rest").Inc()

	h.JSON(w, http.StatusCreated, stored)
}
