package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tourplanner/travel-service/internal/config"
	registrycache "github.com/tourplanner/travel-service/internal/registry/cache"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.JourneyCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: TRAVEL_SERVICE_REDIS_URL is required")
	}
	ttl := cfg.JourneyCacheTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return LoadFromURLWithTTL(ctx, cfg.RedisURL, ttl)
}

// LoadFromURLWithTTL creates a JourneyCache with an explicit default TTL.
func LoadFromURLWithTTL(ctx context.Context, redisURL string, ttl time.Duration) (registrycache.JourneyCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisJourneyCache{client: client, ttl: ttl}, nil
}

type redisJourneyCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func journeyKey(origin, destination string) string {
	return fmt.Sprintf("journey:%s:%s",
		strings.ToLower(strings.TrimSpace(origin)),
		strings.ToLower(strings.TrimSpace(destination)))
}

func (c *redisJourneyCache) Available() bool {
	return true
}

func (c *redisJourneyCache) Get(ctx context.Context, origin, destination string) (*registrycache.CachedJourney, error) {
	data, err := c.client.Get(ctx, journeyKey(origin, destination)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cached registrycache.CachedJourney
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *redisJourneyCache) Set(ctx context.Context, origin, destination string, journey registrycache.CachedJourney, ttl time.Duration) error {
	data, err := json.Marshal(journey)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, journeyKey(origin, destination), data, ttl).Err()
}

var _ registrycache.JourneyCache = (*redisJourneyCache)(nil)
