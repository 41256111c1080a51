// Package history provides the time-windowed conversation record store.
//
// Every record lives for a fixed retention window from the moment it is
// written. The window is never renewed by later activity. Storage
// failures degrade to empty results so the chat path keeps working when
// the database is down.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tourplanner/travel-service/internal/model"
	"github.com/tourplanner/travel-service/internal/registry/store"
	"github.com/tourplanner/travel-service/internal/security"
)

// Service wraps a Datastore with owner-key normalization, per-call
// timeouts, and failure collapse. Callers never see storage errors on
// the chat path; they see empty history and boolean outcomes.
type Service struct {
	store     store.Datastore
	retention time.Duration
	limit     int
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a history Service over the given store. Retention
// is the fixed record lifetime, limit the default read window size,
// and timeout the per-call bound on store operations.
func NewService(st store.Datastore, retention time.Duration, limit int, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		store:     st,
		retention: retention,
		limit:     limit,
		timeout:   timeout,
		now:       time.Now,
	}
	if s.retention <= 0 {
		s.retention = 30 * time.Minute
	}
	if s.limit <= 0 {
		s.limit = 10
	}
	if s.timeout <= 0 {
		s.timeout = 3 * time.Second
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Retention returns the fixed record lifetime.
func (s *Service) Retention() time.Duration { return s.retention }

// NormalizeOwnerKey canonicalizes an owner key. Keys differing only in
// case or surrounding whitespace address the same history.
func NormalizeOwnerKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Append stores one turn for the owner. Only user and assistant turns
// may be stored; system turns belong to session assembly, not history.
// Returns false when the record could not be stored.
func (s *Service) Append(ctx context.Context, ownerKey string, role model.Role, content string) bool {
	ownerKey = NormalizeOwnerKey(ownerKey)
	if ownerKey == "" || content == "" {
		return false
	}
	if role != model.RoleUser && role != model.RoleAssistant {
		return false
	}

	now := s.now()
	msg := model.Message{
		OwnerKey:   ownerKey,
		Role:       role,
		Content:    content,
		OccurredAt: now,
		ExpiresAt:  now.Add(s.retention),
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	start := time.Now()
	err := s.store.AppendMessage(ctx, msg)
	security.ObserveStoreLatency("append", time.Since(start))
	if err != nil {
		log.Warn("history append failed", "owner", ownerKey, "error", err)
		return false
	}
	return true
}

// Recent returns up to limit live turns for the owner, oldest first.
// limit <= 0 uses the service default. Any storage failure returns an
// empty slice.
func (s *Service) Recent(ctx context.Context, ownerKey string, limit int) []model.Message {
	ownerKey = NormalizeOwnerKey(ownerKey)
	if ownerKey == "" {
		return []model.Message{}
	}
	if limit <= 0 {
		limit = s.limit
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	start := time.Now()
	msgs, err := s.store.RecentMessages(ctx, store.HistoryQuery{
		OwnerKey: ownerKey,
		Limit:    limit,
		Now:      s.now(),
	})
	security.ObserveStoreLatency("recent", time.Since(start))
	if err != nil {
		log.Warn("history read failed", "owner", ownerKey, "error", err)
		return []model.Message{}
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs
}

// ClearAll removes every record for the owner, expired or not. Returns
// false when the store could not be reached; the count is only
// meaningful when ok is true.
func (s *Service) ClearAll(ctx context.Context, ownerKey string) (deleted int64, ok bool) {
	ownerKey = NormalizeOwnerKey(ownerKey)
	if ownerKey == "" {
		return 0, false
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	start := time.Now()
	n, err := s.store.ClearMessages(ctx, ownerKey)
	security.ObserveStoreLatency("clear", time.Since(start))
	if err != nil {
		log.Warn("history clear failed", "owner", ownerKey, "error", err)
		return 0, false
	}
	return n, true
}

// Stats reports the live record count and time bounds for the owner.
// Failures collapse to an empty stats value.
func (s *Service) Stats(ctx context.Context, ownerKey string) model.HistoryStats {
	ownerKey = NormalizeOwnerKey(ownerKey)
	if ownerKey == "" {
		return model.HistoryStats{}
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	start := time.Now()
	stats, err := s.store.MessageStats(ctx, ownerKey, s.now())
	security.ObserveStoreLatency("stats", time.Since(start))
	if err != nil || stats == nil {
		if err != nil {
			log.Warn("history stats failed", "owner", ownerKey, "error", err)
		}
		return model.HistoryStats{OwnerKey: ownerKey}
	}
	return *stats
}
