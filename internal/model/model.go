// Package model defines the core domain types shared across the service.
package model

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single stored conversation turn. Records carry an
// explicit expiry stamp so both native TTL indexes and read-path
// filtering agree on when a record is dead.
type Message struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerKey   string    `json:"owner_key" bson:"owner_key"`
	Role       Role      `json:"role" bson:"role"`
	Content    string    `json:"content" bson:"content"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
}

// Turn is a role-tagged piece of conversation content as exchanged
// with clients and the model runtime.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty"`
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name" bson:"name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// HistoryStats summarizes the live records held for one owner.
type HistoryStats struct {
	OwnerKey string     `json:"owner_key"`
	Count    int64      `json:"count"`
	Oldest   *time.Time `json:"oldest,omitempty"`
	Newest   *time.Time `json:"newest,omitempty"`
}
