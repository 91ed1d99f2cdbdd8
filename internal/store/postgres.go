package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/super3/nilo.chat-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			username TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel, created_at);

		CREATE TABLE IF NOT EXISTS api_keys (
			id BIGSERIAL PRIMARY KEY,
			agent_name TEXT NOT NULL,
			key_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendMessage inserts a message, assigning its ID and timestamp when
// absent. The write-time timestamp is the ordering key for history.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, channel, username, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.Channel, msg.Username, msg.Text, msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns up to limit messages for a channel, oldest first.
// Retrieval is newest-first for the LIMIT, then reversed.
func (s *PostgresStore) History(ctx context.Context, channelName string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, channel, username, body, created_at
		FROM messages
		WHERE channel = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, channelName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.Username, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateKey stores a new API key hash.
func (s *PostgresStore) CreateKey(ctx context.Context, agentName, keyHash string) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (agent_name, key_hash)
		VALUES ($1, $2)
		RETURNING id, agent_name, key_hash, created_at
	`, agentName, keyHash).Scan(&key.ID, &key.AgentName, &key.KeyHash, &key.CreatedAt)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetKey retrieves an API key by ID. Returns ErrNotFound if absent.
func (s *PostgresStore) GetKey(ctx context.Context, id int64) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, agent_name, key_hash, created_at
		FROM api_keys WHERE id = $1
	`, id).Scan(&key.ID, &key.AgentName, &key.KeyHash, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return key, nil
}

// ListKeys returns all API keys, newest first.
func (s *PostgresStore) ListKeys(ctx context.Context) ([]models.APIKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_name, key_hash, created_at
		FROM api_keys
		ORDER BY created_at DESC
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
func (s *PostgresStore) DeleteKey(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// reverseMessages flips a descending retrieval into ascending order.
func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
