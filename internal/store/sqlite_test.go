package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/super3/nilo.chat-sub000/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)

	msg, err := s.AppendMessage(context.Background(), &models.Message{
		Channel: "general", Username: "alice", Text: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" {
		t.Fatal("expected a store-assigned id")
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("expected a store-assigned timestamp")
	}
	if msg.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not UTC: %v", msg.Timestamp)
	}
}

func TestAppendKeepsCallerFields(t *testing.T) {
	s := newTestStore(t)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := s.AppendMessage(context.Background(), &models.Message{
		ID: "explicit-id", Channel: "general", Username: "alice", Text: "hello", Timestamp: ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "explicit-id" || !msg.Timestamp.Equal(ts) {
		t.Fatalf("caller fields overwritten: %+v", msg)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(context.Background(), &models.Message{
			Channel: "general", Username: "alice",
			Text: fmt.Sprintf("msg %d", i), Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := s.AppendMessage(context.Background(), &models.Message{
		Channel: "feedback", Username: "bob", Text: "other channel", Timestamp: base,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The most recent N messages, returned oldest first.
	msgs, err := s.History(context.Background(), "general", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"msg 2", "msg 3", "msg 4"} {
		if msgs[i].Text != want {
			t.Fatalf("msgs[%d] = %q, want %q", i, msgs[i].Text, want)
		}
	}
}

func TestHistoryEmptyChannel(t *testing.T) {
	s := newTestStore(t)

	msgs, err := s.History(context.Background(), "general", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestKeyCRUD(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateKey(context.Background(), "alice-bot", "hash-a")
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Fatal("expected an assigned key id")
	}

	got, err := s.GetKey(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AgentName != "alice-bot" || got.KeyHash != "hash-a" {
		t.Fatalf("unexpected key %+v", got)
	}

	if _, err := s.GetKey(context.Background(), 9999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.CreateKey(context.Background(), "bob-bot", "hash-b"); err != nil {
		t.Fatal(err)
	}
	keys, err := s.ListKeys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	deleted, err := s.DeleteKey(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected delete to report existing key")
	}
	deleted, err = s.DeleteKey(context.Background(), created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("expected second delete to report missing key")
	}
}
