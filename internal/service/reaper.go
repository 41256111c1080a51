package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
)

// ReaperService deletes expired conversation records on a configurable
// interval. Backends with native expiry still get swept; the pass is a
// no-op when nothing has expired.
type ReaperService struct {
	store    registrystore.Datastore
	interval time.Duration
	now      func() time.Time
}

// NewReaperService creates a new ReaperService.
func NewReaperService(store registrystore.Datastore, interval time.Duration) *ReaperService {
	return &ReaperService{store: store, interval: interval, now: time.Now}
}

// Start runs the reaper until ctx is cancelled.
func (s *ReaperService) Start(ctx context.Context) {
	if s == nil || s.store == nil || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ReaperService) runOnce(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		log.Error("Expired record sweep failed", "err", err)
	} else if n > 0 {
		log.Info("Expired record sweep", "deleted", n)
	}
}
