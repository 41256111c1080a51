package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tourplanner/travel-service/internal/model"
)

// HistoryQuery holds parameters for a bounded-recency history read.
type HistoryQuery struct {
	OwnerKey string
	Limit    int
	Now      time.Time
}

// Datastore defines the primary data access interface for the travel service.
// Implementations must treat expired records as absent on every read path,
// whether or not the backend evicts them natively.
type Datastore interface {
	// Messages
	AppendMessage(ctx context.Context, msg model.Message) error
	// RecentMessages returns up to Limit live messages for the owner,
	// oldest first. Owners with no live records get an empty slice.
	RecentMessages(ctx context.Context, q HistoryQuery) ([]model.Message, error)
	ClearMessages(ctx context.Context, ownerKey string) (int64, error)
	MessageStats(ctx context.Context, ownerKey string, now time.Time) (*model.HistoryStats, error)

	// Eviction. Backends with native expiring-record support may return
	// (0, nil) and let the engine sweep on its own schedule.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Users
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// EnsureIndexes creates the indexes the store needs. Safe to call
	// repeatedly.
	EnsureIndexes(ctx context.Context) error

	Close(ctx context.Context) error
}

// Loader creates a Datastore from config.
type Loader func(ctx context.Context) (Datastore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
