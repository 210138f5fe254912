package memcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bsm/redislock"

	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/redis"
)

const (
	edgeMaxAge   = 24 * time.Hour
	edgeStaleTTL = 24 * time.Hour
	edgeLockTTL  = 10 * time.Second
)

// Edge is the edge-cache tier contract: a match/put interface keyed by the
// request's canonical URL. Implementations may serve stale entries; the
// caller revalidates via Revalidate.
type Edge interface {
	// Match returns the cached entry and whether it is stale. A nil entry is
	// a miss.
	Match(ctx context.Context, key string) (*CachedSVG, bool)
	// Put stores an entry. Called on a fire-and-forget side-channel; errors
	// must not propagate.
	Put(ctx context.Context, key string, value CachedSVG)
	// Revalidate reports whether this process won the right to refresh a
	// stale entry. At most one process revalidates a given key at a time.
	Revalidate(ctx context.Context, key string) bool
}

// RedisEdge serves the edge tier out of redis with stale-while-revalidate
// semantics: entries older than the max age but within the stale window are
// returned stale, and a redislock gates which process refreshes them.
type RedisEdge struct {
	cache *redis.Cache
	locks *redislock.Client
	now   func() time.Time
}

func NewRedisEdge(cache *redis.Cache) *RedisEdge {
	return &RedisEdge{
		cache: cache,
		locks: redis.NewLockClient(cache),
		now:   time.Now,
	}
}

func (e *RedisEdge) Match(ctx context.Context, key string) (*CachedSVG, bool) {
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		if _, notFound := err.(redis.ErrKeyNotFound); !notFound {
			logger.For(ctx).Warnf("edge cache read failed for %s: %s", key, err)
		}
		return nil, false
	}

	var value CachedSVG
	if err := json.Unmarshal(raw, &value); err != nil {
		logger.For(ctx).Warnf("edge cache entry for %s is corrupt: %s", key, err)
		return nil, false
	}

	stale := e.now().Sub(time.Unix(value.StoredAt, 0)) > edgeMaxAge
	return &value, stale
}

func (e *RedisEdge) Put(ctx context.Context, key string, value CachedSVG) {
	value.StoredAt = e.now().Unix()
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, edgeMaxAge+edgeStaleTTL); err != nil {
		logger.For(ctx).Warnf("edge cache write failed for %s: %s", key, err)
	}
}

func (e *RedisEdge) Revalidate(ctx context.Context, key string) bool {
	_, err := e.locks.Obtain(ctx, "revalidate:"+key, edgeLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return false
	}
	if err != nil {
		logger.For(ctx).Warnf("edge revalidation lock for %s: %s", key, err)
		return false
	}
	// The lock expires on its own; revalidation completing early is fine
	// since the refreshed entry resets the staleness clock.
	return true
}
