// Package ws implements the live socket transport: per-connection
// sessions, the join/switch state machine, and history replay.
package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/bus"
	"github.com/super3/nilo.chat-sub000/internal/channel"
	"github.com/super3/nilo.chat-sub000/internal/metrics"
	"github.com/super3/nilo.chat-sub000/internal/models"
)

// historyLimit is the number of messages replayed on join/switch.
const historyLimit = 50

// Historian is the slice of the data store sessions read history from.
type Historian interface {
	History(ctx context.Context, channel string, limit int) ([]models.Message, error)
}

// Server upgrades HTTP requests to websocket sessions. All sessions
// share one bus and one registry, both passed in at construction.
type Server struct {
	bus      *bus.Bus
	store    Historian
	registry *channel.Registry
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server.
func NewServer(b *bus.Bus, store Historian, registry *channel.Registry, logger zerolog.Logger) *Server {
	return &Server{
		bus:      b,
		store:    store,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Agents connect from anywhere, same as the REST surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the session until disconnect.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(conn, s)
	metrics.SocketConnections.Inc()
	s.logger.Info().Str("session", sess.id).Str("remote_addr", r.RemoteAddr).Msg("session connected")

	// Live delivery is global: subscribe before any connect event so
	// the client never misses a broadcast while identifying itself.
	deliveries := s.bus.Subscribe(sess.id)
	go sess.forwardDeliveries(deliveries)
	go sess.writePump()
	sess.readPump()

	s.bus.Unsubscribe(sess.id)
	sess.close()
	metrics.SocketConnections.Dec()
	s.logger.Info().Str("session", sess.id).Str("username", sess.username).Msg("session disconnected")
}
