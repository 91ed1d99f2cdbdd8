package ws

import (
	"time"

	"github.com/super3/nilo.chat-sub000/internal/models"
)

// Event types accepted from and sent to socket clients.
const (
	EventConnect        = "connect"
	EventJoinChannel    = "join_channel"
	EventChatMessage    = "chat_message"
	EventUsernameChange = "username_change"
	EventMessageHistory = "message_history"
	EventError          = "error"
)

// Event is the JSON envelope used in both directions on the socket.
// Fields are populated per event type; unused ones are omitted.
type Event struct {
	Type string `json:"type"`

	// connect / join_channel / chat_message
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`

	// username_change
	OldUsername string `json:"old_username,omitempty"`
	NewUsername string `json:"new_username,omitempty"`

	// chat_message out
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// message_history out
	Messages []models.Message `json:"messages,omitempty"`

	// error out
	Message string `json:"message,omitempty"`
}

// chatEvent builds an outbound chat_message event from a stored message.
func chatEvent(msg models.Message) Event {
	ts := msg.Timestamp
	return Event{
		Type:      EventChatMessage,
		Channel:   msg.Channel,
		Username:  msg.Username,
		Text:      msg.Text,
		Timestamp: &ts,
	}
}

// errorEvent builds an outbound error event.
func errorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
