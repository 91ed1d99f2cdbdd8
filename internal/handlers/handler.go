package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/bus"
	"github.com/super3/nilo.chat-sub000/internal/channel"
	"github.com/super3/nilo.chat-sub000/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	redis    *store.RedisStore
	bus      *bus.Bus
	registry *channel.Registry
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
// redis may be nil when rate limiting is not configured.
func NewHandler(data store.DataStore, redis *store.RedisStore, b *bus.Bus, registry *channel.Registry, logger zerolog.Logger) *Handler {
	return &Handler{store: data, redis: redis, bus: b, registry: registry, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits a name to 100 characters, removing
// control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}

	return name
}
