package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedSource fronts a Repository with a Redis cache. Rule sets are
// read on every emission, so cache hits keep the hot path off the
// configuration table. Concurrent misses for the same key collapse
// into one repository load via singleflight.
type CachedSource struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedSource wraps the repository. A nil client degrades to a
// passthrough so tests and single-node deployments work without Redis.
func NewCachedSource(repo Repository, client *redis.Client, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{repo: repo, client: client, ttl: ttl}
}

// ActiveRules returns the active rule set for the event code.
func (s *CachedSource) ActiveRules(ctx context.Context, tenantID, businessID int64, eventCode string) ([]Rule, error) {
	if s.client == nil {
		return s.repo.ListActive(ctx, tenantID, businessID, eventCode)
	}
	key := cacheKey(tenantID, businessID, eventCode)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Rule
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// fall through on corrupt payloads and reload
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	loaded, err, _ := s.group.Do(key, func() (any, error) {
		fresh, err := s.repo.ListActive(ctx, tenantID, businessID, eventCode)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(fresh)
		if err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.([]Rule), nil
}

// Invalidate drops the cached rule set, called when rule configuration
// changes upstream.
func (s *CachedSource) Invalidate(ctx context.Context, tenantID, businessID int64, eventCode string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, cacheKey(tenantID, businessID, eventCode)).Err()
}

func cacheKey(tenantID, businessID int64, eventCode string) string {
	return fmt.Sprintf("rules:%d:%d:%s", tenantID, businessID, eventCode)
}
