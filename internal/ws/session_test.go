package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/bus"
	"github.com/super3/nilo.chat-sub000/internal/channel"
	"github.com/super3/nilo.chat-sub000/internal/models"
)

// memStore is an in-memory append-only message log.
type memStore struct {
	mu   sync.Mutex
	seq  int
	msgs []models.Message
}

func (m *memStore) AppendMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%026d", m.seq)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.msgs = append(m.msgs, *msg)
	return msg, nil
}

func (m *memStore) History(_ context.Context, channelName string, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.msgs {
		if msg.Channel == channelName {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) count(channelName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.Channel == channelName {
			n++
		}
	}
	return n
}

func newTestSocket(t *testing.T) (*memStore, string) {
	t.Helper()
	store := &memStore{}
	b := bus.New(store, zerolog.Nop())
	srv := NewServer(b, store, channel.NewRegistry(), zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(srv.Handle))
	t.Cleanup(ts.Close)
	return store, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

// connectAs sends the connect event and consumes the history replay.
func connectAs(t *testing.T, conn *websocket.Conn, username, channelName string) Event {
	t.Helper()
	if err := conn.WriteJSON(Event{Type: EventConnect, Username: username, Channel: channelName}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != EventMessageHistory {
		t.Fatalf("expected message_history after connect, got %q: %+v", ev.Type, ev)
	}
	if ev.Channel != channelName {
		t.Fatalf("history for %q, want %q", ev.Channel, channelName)
	}
	return ev
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	store, url := newTestSocket(t)

	a := dial(t, url)
	b := dial(t, url)
	connectAs(t, a, "alice", "general")
	connectAs(t, b, "bob", "general")

	if err := a.WriteJSON(Event{Type: EventChatMessage, Channel: "general", Username: "alice", Text: "hello"}); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		if ev.Type != EventChatMessage {
			t.Fatalf("expected chat_message, got %q", ev.Type)
		}
		if ev.Channel != "general" || ev.Username != "alice" || ev.Text != "hello" {
			t.Fatalf("unexpected delivery: %+v", ev)
		}
		if ev.Timestamp == nil || ev.Timestamp.IsZero() {
			t.Fatal("expected a store-assigned timestamp")
		}
	}

	if got := store.count("general"); got != 1 {
		t.Fatalf("expected 1 stored message, got %d", got)
	}
}

func TestDeliveryIsGlobalAcrossChannels(t *testing.T) {
	_, url := newTestSocket(t)

	a := dial(t, url)
	b := dial(t, url)
	connectAs(t, a, "alice", "general")
	connectAs(t, b, "bob", "feedback")

	if err := a.WriteJSON(Event{Type: EventChatMessage, Channel: "general", Username: "alice", Text: "ping"}); err != nil {
		t.Fatal(err)
	}

	// bob is active in feedback but still receives the general message
	// live, so his client can track unread counts.
	ev := readEvent(t, b)
	if ev.Type != EventChatMessage || ev.Channel != "general" {
		t.Fatalf("expected live general delivery, got %+v", ev)
	}
}

func TestHistoryReplayOnJoin(t *testing.T) {
	store, url := newTestSocket(t)

	for i := 0; i < 3; i++ {
		store.AppendMessage(context.Background(), &models.Message{
			Channel: "feedback", Username: "carol", Text: fmt.Sprintf("note %d", i),
		})
	}

	conn := dial(t, url)
	connectAs(t, conn, "alice", "general")

	if err := conn.WriteJSON(Event{Type: EventJoinChannel, Channel: "feedback"}); err != nil {
		t.Fatal(err)
	}

	ev := readEvent(t, conn)
	if ev.Type != EventMessageHistory || ev.Channel != "feedback" {
		t.Fatalf("expected feedback history, got %+v", ev)
	}
	if len(ev.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(ev.Messages))
	}
	for i := 1; i < len(ev.Messages); i++ {
		if ev.Messages[i].Timestamp.Before(ev.Messages[i-1].Timestamp) {
			t.Fatal("history not in ascending order")
		}
	}
}

func TestInvalidChannelRejectedBeforeStore(t *testing.T) {
	store, url := newTestSocket(t)

	conn := dial(t, url)
	connectAs(t, conn, "alice", "general")

	if err := conn.WriteJSON(Event{Type: EventChatMessage, Channel: "bogus", Username: "alice", Text: "hi"}); err != nil {
		t.Fatal(err)
	}

	ev := readEvent(t, conn)
	if ev.Type != EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
	if !strings.Contains(ev.Message, "Invalid channel") {
		t.Fatalf("unexpected error message %q", ev.Message)
	}
	if got := store.count("bogus"); got != 0 {
		t.Fatalf("invalid channel reached the store: %d messages", got)
	}
}

func TestRenameNotificationSkipsRenamer(t *testing.T) {
	store, url := newTestSocket(t)

	a := dial(t, url)
	b := dial(t, url)
	connectAs(t, a, "alice", "general")
	connectAs(t, b, "bob", "general")

	if err := a.WriteJSON(Event{Type: EventUsernameChange, NewUsername: "amy"}); err != nil {
		t.Fatal(err)
	}

	ev := readEvent(t, b)
	if ev.Type != EventChatMessage || ev.Username != "system" {
		t.Fatalf("expected system notification, got %+v", ev)
	}
	if ev.Text != "alice changed their username to amy" {
		t.Fatalf("unexpected notification text %q", ev.Text)
	}

	// The renaming session must not see its own notification.
	a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra Event
	if err := a.ReadJSON(&extra); err == nil {
		t.Fatalf("renamer received %+v", extra)
	} else if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatal(err)
	}

	// The notification is still part of the channel history.
	history, err := store.History(context.Background(), "general", 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, msg := range history {
		if msg.Text == "alice changed their username to amy" {
			found = true
		}
	}
	if !found {
		t.Fatal("rename notification missing from history")
	}
}
