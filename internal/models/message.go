package models

import (
	"fmt"
	"time"
)

// Message is a single chat message as stored and broadcast.
// Messages are immutable once stored; Timestamp is assigned by the
// store at append time, not by the producer.
type Message struct {
	ID        string    `json:"id"` // ULID
	Channel   string    `json:"channel"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxTextLen is the maximum accepted message body length in characters.
const MaxTextLen = 2000

// Line renders the message in the pipe-delimited persisted form
// "timestamp|username|message".
func (m *Message) Line() string {
	return fmt.Sprintf("%s|%s|%s", m.Timestamp.UTC().Format(time.RFC3339), m.Username, m.Text)
}
