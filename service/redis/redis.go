package redis

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"

	"github.com/iconduit/go-iconduit/env"
	"github.com/iconduit/go-iconduit/util/retry"
)

type ErrKeyNotFound struct {
	Key string
}

func (k ErrKeyNotFound) Error() string {
	return "key not found: " + k.Key
}

type redisDB int

type CacheConfig struct {
	database    redisDB
	displayName string
	keyPrefix   string
}

const (
	indexDB redisDB = 0
	caches  redisDB = 1
)

// Every cache is uniquely defined by its database and key prefix. Display names are used for logging.

var (
	IndexCache        = CacheConfig{database: indexDB, keyPrefix: "", displayName: "iconIndex"}
	EdgeCache         = CacheConfig{database: caches, keyPrefix: "edge", displayName: "edge"}
	RateLimitersCache = CacheConfig{database: caches, keyPrefix: "limiter", displayName: "rateLimiters"}
)

func newClient(db redisDB) *redis.Client {
	redisURL := env.Get[string](context.Background(), "REDIS_URL")
	redisPass := env.GetString("REDIS_PASS")
	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: redisPass,
		DB:       int(db),
	})

	// Redis may still be coming up when the service starts; back off before
	// giving up on the connection.
	err := retry.RetryFunc(context.Background(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second*10)
		defer cancel()
		return client.Ping(ctx).Err()
	}, func(error) bool { return true }, retry.Retry{Base: 1, Cap: 8, Tries: 5})
	if err != nil {
		panic(err)
	}
	return client
}

// Cache represents an abstraction over a redis client
type Cache struct {
	client    *redis.Client
	keyPrefix string
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Prefix() string {
	return c.keyPrefix
}

// NewCache creates a new redis cache
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		client:    newClient(config.database),
		keyPrefix: config.keyPrefix,
	}
}

// NewLockClient returns a redislock client on the cache's connection.
func NewLockClient(cache *Cache) *redislock.Client {
	return redislock.New(cache.client)
}

// Set sets a value in the redis cache
func (c *Cache) Set(pCtx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(pCtx, c.getPrefixedKey(key), value, expiration).Err()
}

// SetNX sets a value in the redis cache if it doesn't already exist. Returns true if the key did not
// already exist and was set, false if the key did exist and therefore was not set.
func (c *Cache) SetNX(pCtx context.Context, key string, value []byte, expiration time.Duration) (bool, error) {
	cmd := c.client.SetNX(pCtx, c.getPrefixedKey(key), value, expiration)

	err := cmd.Err()
	if err != nil {
		return false, err
	}

	return cmd.Val(), nil
}

// Get gets a value from the redis cache
func (c *Cache) Get(pCtx context.Context, key string) ([]byte, error) {
	bs, err := c.client.Get(pCtx, c.getPrefixedKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound{Key: key}
		}
		return nil, err
	}
	return bs, nil
}

func (c *Cache) Delete(pCtx context.Context, key string) error {
	return c.client.Del(pCtx, c.getPrefixedKey(key)).Err()
}

// TTL returns the remaining time-to-live of a key.
func (c *Cache) TTL(pCtx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(pCtx, c.getPrefixedKey(key)).Result()
}

// Close closes the underlying redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) getPrefixedKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}

	return c.keyPrefix + ":" + key
}
