package cache

import (
	"context"
	"fmt"
	"time"
)

type journeyCacheKey struct{}

// WithJourneyCacheContext returns a new context carrying the given JourneyCache.
func WithJourneyCacheContext(ctx context.Context, c JourneyCache) context.Context {
	return context.WithValue(ctx, journeyCacheKey{}, c)
}

// JourneyCacheFromContext retrieves the JourneyCache from the context.
// Returns nil if none was set.
func JourneyCacheFromContext(ctx context.Context) JourneyCache {
	c, _ := ctx.Value(journeyCacheKey{}).(JourneyCache)
	return c
}

// CachedJourney holds a resolved journey lookup for an origin/destination pair.
type CachedJourney struct {
	Summary     string `json:"summary"`
	MapImageURL string `json:"map_image_url"`
}

// JourneyCache caches journey lookups so repeated route questions do not
// hit the maps API every turn.
type JourneyCache interface {
	Available() bool
	Get(ctx context.Context, origin, destination string) (*CachedJourney, error)
	Set(ctx context.Context, origin, destination string, journey CachedJourney, ttl time.Duration) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (JourneyCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
