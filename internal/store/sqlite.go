package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/super3/nilo.chat-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations. Used as the
// development fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/nilo.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/nilo.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		username TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel, created_at);

	CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_name TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendMessage inserts a message, assigning its ID and timestamp when
// absent.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel, username, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Channel, msg.Username, msg.Text, msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns up to limit messages for a channel, oldest first.
func (s *SQLiteStore) History(ctx context.Context, channelName string, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel, username, body, created_at
		FROM messages
		WHERE channel = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, channelName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.Username, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseMessages(messages)
	return messages, nil
}

// CreateKey stores a new API key hash.
func (s *SQLiteStore) CreateKey(ctx context.Context, agentName, keyHash string) (*models.APIKey, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (agent_name, key_hash, created_at)
		VALUES (?, ?, ?)
	`, agentName, keyHash, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.APIKey{ID: id, AgentName: agentName, KeyHash: keyHash, CreatedAt: now}, nil
}

// GetKey retrieves an API key by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetKey(ctx context.Context, id int64) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agent_name, key_hash, created_at
		FROM api_keys WHERE id = ?
	`, id).Scan(&key.ID, &key.AgentName, &key.KeyHash, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return key, nil
}

// ListKeys returns all API keys, newest first.
func (s *SQLiteStore) ListKeys(ctx context.Context) ([]models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_name, key_hash, created_at
		FROM api_keys
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var key models.APIKey
		if err := rows.Scan(&key.ID, &key.AgentName, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteKey removes an API key, reporting whether it existed.
func (s *SQLiteStore) DeleteKey(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
