package models

import "time"

// APIKey is an agent credential. Only the bcrypt hash of the raw
// secret is ever stored; the raw secret exists once, at creation.
type APIKey struct {
	ID        int64     `json:"id"`
	AgentName string    `json:"agent_name"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
