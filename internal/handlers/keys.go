package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/super3/nilo.chat-sub000/internal/api/middleware"
	"github.com/super3/nilo.chat-sub000/internal/models"
	"github.com/super3/nilo.chat-sub000/internal/store"
)

// CreateKeyRequest represents the key creation request body.
type CreateKeyRequest struct {
	AgentName string `json:"agent_name"`
}

// CreateKeyResponse carries the raw secret. This is the only time it
// is ever returned; only its hash is stored.
type CreateKeyResponse struct {
	ID        int64     `json:"id"`
	AgentName string    `json:"agent_name"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyListResponse represents the key list response, without secrets
// or hashes.
type KeyListResponse struct {
	Keys []models.APIKey `json:"keys"`
}

// GenerateSecret returns a high-entropy random API key.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateKey handles open agent key registration.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.AgentName = sanitizeName(req.AgentName)
	if req.AgentName == "" {
		h.Error(w, http.StatusBadRequest, "agent_name is required")
		return
	}

	secret, err := GenerateSecret()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to generate key")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash key")
		return
	}

	key, err := h.store.CreateKey(r.Context(), req.AgentName, string(hash))
	if err != nil {
		h.logger.Error().Err(err).Msg("key creation failed")
		h.Error(w, http.StatusInternalServerError, "failed to create key")
		return
	}

	h.JSON(w, http.StatusCreated, CreateKeyResponse{
		ID:        key.ID,
		AgentName: key.AgentName,
		APIKey:    secret,
		CreatedAt: key.CreatedAt,
	})
}

// ListKeys handles listing all keys (admin only). Secrets and hashes
// are never returned.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil || !identity.IsAdmin {
		h.Error(w, http.StatusForbidden, "admin access required")
		return
	}

	keys, err := h.store.ListKeys(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("key list failed")
		h.Error(w, http.StatusInternalServerError, "failed to list keys")
		return
	}
	if keys == nil {
		keys = []models.APIKey{}
	}

	h.JSON(w, http.StatusOK, KeyListResponse{Keys: keys})
}

// DeleteKey revokes a key. An agent may delete only its own key; an
// admin may delete any key. A missing key is reported distinctly from
// an ownership mismatch.
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid key ID")
		return
	}

	if !identity.IsAdmin && identity.KeyID != id {
		h.Error(w, http.StatusForbidden, "you can only delete your own key")
		return
	}

	key, err := h.store.GetKey(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "key not found")
			return
		}
		h.logger.Error().Err(err).Int64("key_id", id).Msg("key lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to delete key")
		return
	}

	deleted, err := h.store.DeleteKey(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("key_id", id).Msg("key deletion failed")
		h.Error(w, http.StatusInternalServerError, "failed to delete key")
		return
	}
	// Lost a race with another delete for the same id.
	if !deleted {
		h.Error(w, http.StatusNotFound, "key not found")
		return
	}

	h.logger.Info().Int64("key_id", id).Str("agent_name", key.AgentName).Msg("api key revoked")
	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
