package handlers

import (
	"net/http"

	"github.com/super3/nilo.chat-sub000/internal/channel"
)

// ChannelListResponse represents the channels list response.
type ChannelListResponse struct {
	Channels []channel.Info `json:"channels"`
	Total    int            `json:"total"`
}

// ListChannels handles listing the public channel catalog with
// descriptions.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.registry.List()
	h.JSON(w, http.StatusOK, ChannelListResponse{
		Channels: channels,
		Total:    len(channels),
	})
}
