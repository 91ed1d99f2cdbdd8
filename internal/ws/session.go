package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/super3/nilo.chat-sub000/internal/bus"
	"github.com/super3/nilo.chat-sub000/internal/channel"
	"github.com/super3/nilo.chat-sub000/internal/metrics"
	"github.com/super3/nilo.chat-sub000/internal/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxEventSize = 16384
	sendBuffer   = 32
)

// Session is the per-socket state machine: identity, active channel
// and joined-channel set. It is owned by its connection's goroutines
// and never shared across sessions.
type Session struct {
	id     string
	conn   *websocket.Conn
	server *Server

	// Mutated only from the read pump.
	username string
	active   string
	joined   map[string]struct{}

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, server *Server) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		joined: make(map[string]struct{}),
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

// close releases session resources. In-flight publishes already
// dispatched to the store are not cancelled.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// queue hands an event to the write pump.
func (s *Session) queue(ev Event) {
	select {
	case s.send <- ev:
	case <-s.done:
	}
}

// forwardDeliveries turns bus deliveries into outbound chat events.
// It exits when the bus subscription is closed.
func (s *Session) forwardDeliveries(deliveries <-chan models.Message) {
	for msg := range deliveries {
		s.queue(chatEvent(msg))
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxEventSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev Event) {
	switch ev.Type {
	case EventConnect:
		s.handleConnect(ev)
	case EventJoinChannel:
		s.handleJoin(ev)
	case EventChatMessage:
		s.handleChat(ev)
	case EventUsernameChange:
		s.handleRename(ev)
	default:
		s.queue(errorEvent(fmt.Sprintf("unknown event type %q", ev.Type)))
	}
}

// handleConnect assigns identity, joins the requested channel plus the
// user's own direct channel, and replays history.
func (s *Session) handleConnect(ev Event) {
	if ev.Username == "" {
		s.queue(errorEvent("username is required"))
		return
	}
	if !s.server.registry.IsValid(ev.Channel) {
		s.queue(errorEvent("Invalid channel: " + ev.Channel))
		return
	}

	s.username = ev.Username
	s.joined[ev.Channel] = struct{}{}
	s.joined[channel.Direct(ev.Username)] = struct{}{}
	s.active = ev.Channel

	s.replay(ev.Channel)
}

// handleJoin switches the active channel: all joined public channels
// are left, the target is joined and its history replayed. Direct
// channels already joined persist so the user stays reachable on them.
func (s *Session) handleJoin(ev Event) {
	if !s.server.registry.IsValid(ev.Channel) {
		s.queue(errorEvent("Invalid channel: " + ev.Channel))
		return
	}

	for name := range s.joined {
		if s.server.registry.IsPublic(name) {
			delete(s.joined, name)
		}
	}
	s.joined[ev.Channel] = struct{}{}
	s.active = ev.Channel

	s.replay(ev.Channel)
}

func (s *Session) handleChat(ev Event) {
	if !s.server.registry.IsValid(ev.Channel) {
		s.queue(errorEvent("Invalid channel: " + ev.Channel))
		return
	}
	if ev.Text == "" {
		s.queue(errorEvent("message text is required"))
		return
	}
	if len([]rune(ev.Text)) > models.MaxTextLen {
		s.queue(errorEvent(fmt.Sprintf("message too long (max %d characters)", models.MaxTextLen)))
		return
	}

	username := ev.Username
	if username == "" {
		username = s.username
	}

	// Background context: a disconnect must not cancel a write the
	// session already initiated.
	_, err := s.server.bus.Publish(context.Background(), &models.Message{
		Channel:  ev.Channel,
		Username: username,
		Text:     ev.Text,
	})
	if err != nil {
		s.server.logger.Error().Err(err).Str("session", s.id).Str("channel", ev.Channel).Msg("publish failed")
		s.queue(errorEvent("failed to store message"))
		return
	}
	metrics.MessagesPublished.WithLabelValues("socket").Inc()
}

// handleRename updates the session identity and publishes a
// system-authored notification to everyone except this session.
func (s *Session) handleRename(ev Event) {
	if ev.NewUsername == "" {
		s.queue(errorEvent("new_username is required"))
		return
	}
	if s.active == "" {
		s.queue(errorEvent("connect before changing username"))
		return
	}

	old := ev.OldUsername
	if old == "" {
		old = s.username
	}

	delete(s.joined, channel.Direct(old))
	s.joined[channel.Direct(ev.NewUsername)] = struct{}{}
	s.username = ev.NewUsername

	_, err := s.server.bus.Publish(context.Background(), &models.Message{
		Channel:  s.active,
		Username: "system",
		Text:     fmt.Sprintf("%s changed their username to %s", old, ev.NewUsername),
	}, bus.WithExclude(s.id))
	if err != nil {
		s.server.logger.Error().Err(err).Str("session", s.id).Msg("rename notification failed")
		s.queue(errorEvent("failed to store message"))
		return
	}
	metrics.MessagesPublished.WithLabelValues("socket").Inc()
}

// replay sends a one-shot history event for a channel.
func (s *Session) replay(name string) {
	history, err := s.server.store.History(context.Background(), name, historyLimit)
	if err != nil {
		s.server.logger.Error().Err(err).Str("session", s.id).Str("channel", name).Msg("history fetch failed")
		s.queue(errorEvent("failed to load history"))
		return
	}
	if history == nil {
		history = []models.Message{}
	}

	metrics.HistoryReplays.Inc()
	s.queue(Event{Type: EventMessageHistory, Channel: name, Messages: history})
}
