// Package memory implements the Datastore interface with in-process maps.
// Intended for tests and single-node development runs; records do not
// survive a restart. Expiry is enforced on read and by the reaper sweep.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tourplanner/travel-service/internal/model"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registrystore.Datastore, error) {
			return New(), nil
		},
	})
}

// Store implements registrystore.Datastore with mutex-guarded maps.
type Store struct {
	mu       sync.RWMutex
	messages map[string][]model.Message // owner key -> turns in append order
	users    map[string]model.User      // email -> user
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		messages: make(map[string][]model.Message),
		users:    make(map[string]model.User),
	}
}

func (s *Store) AppendMessage(ctx context.Context, msg model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.OwnerKey] = append(s.messages[msg.OwnerKey], msg)
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, q registrystore.HistoryQuery) ([]model.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var live []model.Message
	for _, m := range s.messages[q.OwnerKey] {
		if m.ExpiresAt.After(q.Now) {
			live = append(live, m)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].OccurredAt.Before(live[j].OccurredAt)
	})
	if len(live) > limit {
		live = live[len(live)-limit:]
	}

	out := make([]model.Message, len(live))
	copy(out, live)
	return out, nil
}

func (s *Store) ClearMessages(ctx context.Context, ownerKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.messages[ownerKey]))
	delete(s.messages, ownerKey)
	return n, nil
}

func (s *Store) MessageStats(ctx context.Context, ownerKey string, now time.Time) (*model.HistoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.HistoryStats{OwnerKey: ownerKey}
	for _, m := range s.messages[ownerKey] {
		if !m.ExpiresAt.After(now) {
			continue
		}
		occurred := m.OccurredAt
		stats.Count++
		if stats.Oldest == nil || occurred.Before(*stats.Oldest) {
			stats.Oldest = &occurred
		}
		if stats.Newest == nil || occurred.After(*stats.Newest) {
			stats.Newest = &occurred
		}
	}
	return stats, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for owner, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.ExpiresAt.After(now) {
				kept = append(kept, m)
			} else {
				deleted++
			}
		}
		if len(kept) == 0 {
			delete(s.messages, owner)
		} else {
			s.messages[owner] = kept
		}
	}
	return deleted, nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return nil, &registrystore.ConflictError{Message: "email already registered"}
	}
	s.users[user.Email] = user
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[email]
	if !ok {
		return nil, &registrystore.NotFoundError{Resource: "user", ID: email}
	}
	return &user, nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error { return nil }

func (s *Store) Close(ctx context.Context) error { return nil }
