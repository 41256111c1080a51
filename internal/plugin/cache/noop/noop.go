package noop

import (
	"context"
	"time"

	"github.com/tourplanner/travel-service/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.JourneyCache, error) {
			return &noopJourneyCache{}, nil
		},
	})
}

type noopJourneyCache struct{}

func (n *noopJourneyCache) Available() bool { return false }
func (n *noopJourneyCache) Get(_ context.Context, _, _ string) (*cache.CachedJourney, error) {
	return nil, nil
}
func (n *noopJourneyCache) Set(_ context.Context, _, _ string, _ cache.CachedJourney, _ time.Duration) error {
	return nil
}

var _ cache.JourneyCache = (*noopJourneyCache)(nil)
