package memcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	memoryCapacity = 500
	memoryTTL      = 5 * time.Minute
)

// CachedSVG is the unit every cache tier stores: a transformed document and
// its validator.
type CachedSVG struct {
	SVG      string `json:"svg"`
	ETag     string `json:"etag"`
	StoredAt int64  `json:"storedAt"`
}

type memoryEntry struct {
	value        CachedSVG
	expiresAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

// Stats is the memory tier's hit accounting.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hitRate"`
}

// Memory is the per-process LRU tier for transformed SVGs, keyed by
// fingerprint. Reads promote to MRU; writes at capacity evict the LRU victim;
// entries expire after 5 minutes.
type Memory struct {
	mu        sync.Mutex
	lru       *lru.Cache
	ttl       time.Duration
	hits      uint64
	misses    uint64
	evictions uint64
	now       func() time.Time
}

func NewMemory() *Memory {
	m := &Memory{ttl: memoryTTL, now: time.Now}
	cache, err := lru.NewWithEvict(memoryCapacity, func(any, any) {
		m.evictions++
	})
	if err != nil {
		panic(err)
	}
	m.lru = cache
	return m
}

// Get returns the cached value for the fingerprint, promoting it to MRU.
func (m *Memory) Get(fingerprint string) (CachedSVG, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lru.Get(fingerprint)
	if !ok {
		m.misses++
		return CachedSVG{}, false
	}
	entry := v.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.lru.Remove(fingerprint)
		// TTL removal is not an eviction.
		m.evictions--
		m.misses++
		return CachedSVG{}, false
	}
	entry.accessCount++
	entry.lastAccessed = m.now()
	m.hits++
	return entry.value, true
}

// Set stores a value under the fingerprint, evicting the LRU victim at
// capacity.
func (m *Memory) Set(fingerprint string, value CachedSVG) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(fingerprint, &memoryEntry{
		value:        value,
		expiresAt:    m.now().Add(m.ttl),
		lastAccessed: m.now(),
	})
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		Size:      m.lru.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Reset clears the tier and its counters. For tests only.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
	m.hits, m.misses, m.evictions = 0, 0, 0
}
