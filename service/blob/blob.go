package blob

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/iconduit/go-iconduit/service/breaker"
	"github.com/iconduit/go-iconduit/service/coalesce"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/service/store"
	"github.com/iconduit/go-iconduit/validate"
)

const (
	maxConcurrentReads = 50
	batchWindow        = 10
	slowReadThreshold  = 500 * time.Millisecond

	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second
)

// Store fetches raw SVG bytes by content key. Keys are sanitized, concurrent
// fetches per key are deduplicated, backend reads run behind a circuit
// breaker and a FIFO connection-pool semaphore, and every body is validated
// as a safe SVG before release.
type Store struct {
	fetcher store.Fetcher
	breaker *breaker.Breaker
	sem     *semaphore.Weighted
	flights *coalesce.Group[store.FetchResult]
}

func NewStore(fetcher store.Fetcher) *Store {
	return &Store{
		fetcher: fetcher,
		breaker: breaker.New(breakerThreshold, breakerOpenFor),
		sem:     semaphore.NewWeighted(maxConcurrentReads),
		flights: coalesce.NewGroup[store.FetchResult](func(key string) {
			source, _, _ := strings.Cut(key, "/")
			metric.Default().DedupHit(source)
		}),
	}
}

// BreakerState exposes the breaker for health reporting.
func (s *Store) BreakerState() breaker.State {
	return s.breaker.State()
}

// Get fetches the object at key. Invalid keys and bodies failing SVG
// validation are misses, never errors; backend failures surface as
// persist.ErrStorage.
func (s *Store) Get(ctx context.Context, key, ifNoneMatch string) (store.FetchResult, error) {
	clean, err := validate.SanitizeKey(key)
	if err != nil {
		logger.For(ctx).Warnf("rejecting blob key: %s", err)
		metric.Default().Error("blob", "get", "invalid_key")
		return store.FetchResult{}, nil
	}

	flightKey := clean
	if ifNoneMatch != "" {
		flightKey += "\x00" + ifNoneMatch
	}

	res, _, err := s.flights.Do(ctx, flightKey, func(ctx context.Context) (store.FetchResult, error) {
		return s.fetchOne(ctx, clean, ifNoneMatch)
	})
	return res, err
}

func (s *Store) fetchOne(ctx context.Context, key, ifNoneMatch string) (store.FetchResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return store.FetchResult{}, err
	}
	defer s.sem.Release(1)

	var (
		res   store.FetchResult
		start = time.Now()
	)
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		res, fetchErr = s.fetcher.Fetch(ctx, key, ifNoneMatch)
		if fetchErr == store.ErrObjectNotExist {
			// A clean miss is a successful backend call.
			res = store.FetchResult{}
			return nil
		}
		return fetchErr
	})

	elapsed := time.Since(start)
	metric.Default().Observe("blob_read", elapsed)
	if elapsed > slowReadThreshold {
		metric.Default().SlowQuery("blob", "get")
		logger.For(ctx).Warnf("slow blob read for %s: %s", key, elapsed)
	}

	if err != nil {
		metric.Default().Error("blob", "get", "backend")
		return store.FetchResult{}, persist.ErrStorage{Op: "blob fetch " + key, Err: err}
	}

	if res.Object != nil {
		metric.Default().Bytes("in", len(res.Object.Body))
		if err := validate.ValidateSVGContent(res.Object.Body); err != nil {
			logger.For(ctx).Errorf("blob %s failed svg validation: %s", key, err)
			metric.Default().Error("blob", "get", "invalid_svg")
			return store.FetchResult{}, nil
		}
	}
	return res, nil
}

// BatchGet fetches many keys, deduplicating against in-flight fetches and
// chunking the remainder into windows of 10 concurrent backend reads. The
// result map is keyed by the caller's original keys.
func (s *Store) BatchGet(ctx context.Context, keys []string, etags map[string]string) map[string]store.FetchResult {
	results := make(map[string]store.FetchResult, len(keys))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(batchWindow).WithContext(ctx)
	for _, key := range keys {
		key := key
		p.Go(func(ctx context.Context) error {
			res, err := s.Get(ctx, key, etags[key])
			if err != nil {
				logger.For(ctx).Errorf("batch fetch of %s: %s", key, err)
				res = store.FetchResult{}
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait()
	return results
}
