package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benny-conn/limiters"
	"github.com/gin-gonic/gin"

	iredis "github.com/iconduit/go-iconduit/service/redis"
	"github.com/iconduit/go-iconduit/util"
)

// KeyRateLimiter .
type KeyRateLimiter struct {
	rateDuration time.Duration
	rateAmount   int64
	reg          *limiters.Registry
	cache        *iredis.Cache
	clock        *limiters.SystemClock
	logger       *limiters.StdLogger

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int64
}

// NewKeyRateLimiter .
func NewKeyRateLimiter(rateAmount int64, every time.Duration, cache *iredis.Cache) *KeyRateLimiter {
	return &KeyRateLimiter{
		rateDuration: every,
		rateAmount:   rateAmount,
		reg:          limiters.NewRegistry(),
		clock:        limiters.NewSystemClock(),
		logger:       limiters.NewStdLogger(),
		cache:        cache,
		windows:      map[string]*window{},
	}
}

// ForKey will check if the key has exceeded the rate limit
func (i *KeyRateLimiter) ForKey(ctx context.Context, key string) (bool, time.Duration, error) {
	bucket := i.reg.GetOrCreate(key, func() interface{} {
		return limiters.NewTokenBucket(i.rateAmount, i.rateDuration, limiters.NewLockNoop(), limiters.NewTokenBucketRedis(i.cache.Client(), fmt.Sprintf("limiter:%s", key), i.rateDuration, false), i.clock, i.logger)
	}, time.Duration(i.rateAmount), i.clock.Now())

	w, err := bucket.(*limiters.TokenBucket).Limit(ctx)
	if err == limiters.ErrLimitExhausted {
		return false, w, nil
	} else if err != nil {
		return false, 0, fmt.Errorf("rate limiting err: %s", err)
	}

	return true, 0, nil
}

// Limit is the configured requests-per-window ceiling.
func (i *KeyRateLimiter) Limit() int64 {
	return i.rateAmount
}

// Count records one request for key and reports the remaining budget and the
// time the current window resets. The token bucket is the enforcement
// mechanism; this counter only feeds the advisory X-RateLimit headers.
func (i *KeyRateLimiter) Count(key string) (remaining int64, reset time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()

	// Drop expired windows so the map does not grow with every client IP the
	// process has ever seen. At most one full sweep per window span.
	if now.Sub(i.lastSweep) >= i.rateDuration {
		for k, old := range i.windows {
			if now.Sub(old.start) >= i.rateDuration {
				delete(i.windows, k)
			}
		}
		i.lastSweep = now
	}

	w, ok := i.windows[key]
	if !ok || now.Sub(w.start) >= i.rateDuration {
		w = &window{start: now}
		i.windows[key] = w
	}
	w.count++

	remaining = i.rateAmount - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, w.start.Add(i.rateDuration)
}

// RateLimited enforces a per-client-IP request budget. Every response carries
// the X-RateLimit headers; exhausted clients get a 429 with Retry-After.
func RateLimited(lim *KeyRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		remaining, reset := lim.Count(key)
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(lim.Limit(), 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		canContinue, retryAfter, err := lim.ForKey(c, key)
		if err != nil {
			// Fail open: a broken limiter must not take the service down.
			c.Error(err)
			c.Next()
			return
		}
		if !canContinue {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			h.Set("Retry-After", strconv.Itoa(seconds))
			util.RespondError(c, http.StatusTooManyRequests, util.ErrorBody{
				Code:    "RATE_LIMITED",
				Message: "Rate limit exceeded. Please slow down.",
			}, fmt.Errorf("rate limited: %s", key))
			c.Abort()
			return
		}

		c.Next()
	}
}
