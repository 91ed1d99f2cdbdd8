package store

import (
	"context"
	"errors"

	"github.com/super3/nilo.chat-sub000/internal/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// DataStore defines the interface for durable storage of messages and
// agent API keys. Both PostgresStore and SQLiteStore implement this
// interface. The message log is append-only: messages are never
// deleted or edited.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Message log. AppendMessage assigns the message ID and the
	// authoritative timestamp at write time when they are absent.
	// History returns at most limit messages, oldest first.
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	History(ctx context.Context, channel string, limit int) ([]models.Message, error)

	// API key operations. DeleteKey reports whether a key with the
	// given id existed.
	CreateKey(ctx context.Context, agentName, keyHash string) (*models.APIKey, error)
	GetKey(ctx context.Context, id int64) (*models.APIKey, error)
	ListKeys(ctx context.Context) ([]models.APIKey, error)
	DeleteKey(ctx context.Context, id int64) (bool, error)
}
