package index

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/iconduit/go-iconduit/service/breaker"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/service/redis"
)

const (
	cacheTTL = 60 * time.Second

	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second

	keyIconIndex     = "icon-index"
	keyInvertedIndex = "inverted-index"
	keySynonyms      = "synonyms"
)

// KV is the key-value binding the index store reads from.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store loads and caches the icon index, inverted index, and synonym map.
// Backend reads run behind a circuit breaker; the inverted index and synonyms
// are optional collaborators whose absence degrades search to a linear scan.
type Store struct {
	kv      KV
	breaker *breaker.Breaker

	mu          sync.Mutex
	index       *persist.IconIndex
	indexETag   string
	indexAt     time.Time
	inverted    *persist.InvertedIndex
	invertedAt  time.Time
	synonyms    persist.SynonymMap
	synonymsAt  time.Time
}

func NewStore(kv KV) *Store {
	return &Store{
		kv:      kv,
		breaker: breaker.New(breakerThreshold, breakerOpenFor),
	}
}

// BreakerState exposes the breaker for health reporting.
func (s *Store) BreakerState() breaker.State {
	return s.breaker.State()
}

// fetch reads a key under the breaker. A missing key is a successful call
// (found=false), not a backend failure.
func (s *Store) fetch(ctx context.Context, key string) (raw []byte, found bool, err error) {
	stop := metric.Default().Timer("index_fetch")
	defer stop()

	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		var getErr error
		raw, getErr = s.kv.Get(ctx, key)
		if getErr != nil {
			if _, missing := getErr.(redis.ErrKeyNotFound); missing {
				return nil
			}
			return getErr
		}
		found = true
		return nil
	})
	if err != nil {
		metric.Default().Error("index", "fetch", "backend")
		return nil, false, persist.ErrStorage{Op: "index fetch " + key, Err: err}
	}
	if found {
		metric.Default().Bytes("in", len(raw))
	}
	return raw, found, nil
}

// GetIndex returns the icon index, serving the in-process copy within its
// 60 second TTL.
func (s *Store) GetIndex(ctx context.Context) (*persist.IconIndex, error) {
	idx, _, err := s.GetIndexWithETag(ctx, "")
	return idx, err
}

// GetIndexWithETag returns the index plus a strong ETag computed from a hash
// of the serialized bytes. When ifNoneMatch matches, the index is omitted and
// notModified is reported through a nil index with the matching etag.
func (s *Store) GetIndexWithETag(ctx context.Context, ifNoneMatch string) (*persist.IconIndex, string, error) {
	s.mu.Lock()
	if s.index != nil && time.Since(s.indexAt) < cacheTTL {
		idx, etag := s.index, s.indexETag
		s.mu.Unlock()
		if ifNoneMatch != "" && ifNoneMatch == etag {
			return nil, etag, nil
		}
		return idx, etag, nil
	}
	s.mu.Unlock()

	raw, found, err := s.fetch(ctx, keyIconIndex)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", persist.ErrStorage{Op: "index load", Err: fmt.Errorf("no index at key %s", keyIconIndex)}
	}

	var idx persist.IconIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, "", persist.ErrStorage{Op: "index decode", Err: err}
	}
	etag := fmt.Sprintf("%q", fmt.Sprintf("%x", sha256.Sum256(raw)))

	s.mu.Lock()
	s.index, s.indexETag, s.indexAt = &idx, etag, time.Now()
	s.mu.Unlock()

	if ifNoneMatch != "" && ifNoneMatch == etag {
		return nil, etag, nil
	}
	return &idx, etag, nil
}

// GetInvertedIndex returns the inverted index, or nil when the backend has
// none.
func (s *Store) GetInvertedIndex(ctx context.Context) (*persist.InvertedIndex, error) {
	s.mu.Lock()
	if s.inverted != nil && time.Since(s.invertedAt) < cacheTTL {
		inv := s.inverted
		s.mu.Unlock()
		return inv, nil
	}
	s.mu.Unlock()

	raw, found, err := s.fetch(ctx, keyInvertedIndex)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.For(ctx).Info("no inverted index available, search will fall back to linear scan")
		return nil, nil
	}

	var inv persist.InvertedIndex
	if err := json.Unmarshal(raw, &inv); err != nil {
		logger.For(ctx).Warnf("inverted index is corrupt, falling back to linear scan: %s", err)
		return nil, nil
	}

	s.mu.Lock()
	s.inverted, s.invertedAt = &inv, time.Now()
	s.mu.Unlock()
	return &inv, nil
}

// GetSynonyms returns the synonym map, or an empty map when the backend has
// none.
func (s *Store) GetSynonyms(ctx context.Context) (persist.SynonymMap, error) {
	s.mu.Lock()
	if s.synonyms != nil && time.Since(s.synonymsAt) < cacheTTL {
		syn := s.synonyms
		s.mu.Unlock()
		return syn, nil
	}
	s.mu.Unlock()

	raw, found, err := s.fetch(ctx, keySynonyms)
	if err != nil {
		return nil, err
	}
	syn := persist.SynonymMap{}
	if found {
		if err := json.Unmarshal(raw, &syn); err != nil {
			logger.For(ctx).Warnf("synonym map is corrupt, skipping expansion: %s", err)
			syn = persist.SynonymMap{}
		}
	}

	s.mu.Lock()
	s.synonyms, s.synonymsAt = syn, time.Now()
	s.mu.Unlock()
	return syn, nil
}

// Reset drops the in-process caches and closes the breaker. For tests only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index, s.inverted, s.synonyms = nil, nil, nil
	s.breaker.Reset()
}
