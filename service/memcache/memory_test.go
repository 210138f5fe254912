package memcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_GetSet(t *testing.T) {
	a := assert.New(t)
	m := NewMemory()

	_, ok := m.Get("missing")
	a.False(ok)

	m.Set("fp", CachedSVG{SVG: "<svg/>", ETag: `"abc"`})
	got, ok := m.Get("fp")
	a.True(ok)
	a.Equal("<svg/>", got.SVG)
	a.Equal(`"abc"`, got.ETag)

	stats := m.Stats()
	a.Equal(uint64(1), stats.Hits)
	a.Equal(uint64(1), stats.Misses)
	a.Equal(0.5, stats.HitRate)
	a.Equal(1, stats.Size)
}

func TestMemory_TTLExpiry(t *testing.T) {
	a := assert.New(t)
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set("fp", CachedSVG{SVG: "<svg/>"})

	_, ok := m.Get("fp")
	a.True(ok)

	now = now.Add(memoryTTL + time.Second)
	_, ok = m.Get("fp")
	a.False(ok)

	// Expiry is not an eviction.
	a.Equal(uint64(0), m.Stats().Evictions)
	a.Equal(0, m.Stats().Size)
}

func TestMemory_CapacityEviction(t *testing.T) {
	a := assert.New(t)
	m := NewMemory()

	for i := 0; i < memoryCapacity+10; i++ {
		m.Set(fmt.Sprintf("fp-%d", i), CachedSVG{SVG: "<svg/>"})
	}

	stats := m.Stats()
	a.Equal(memoryCapacity, stats.Size)
	a.Equal(uint64(10), stats.Evictions)

	// The oldest entries were the victims.
	_, ok := m.Get("fp-0")
	a.False(ok)
	_, ok = m.Get(fmt.Sprintf("fp-%d", memoryCapacity+9))
	a.True(ok)
}

func TestMemory_Promotion(t *testing.T) {
	a := assert.New(t)
	m := NewMemory()

	for i := 0; i < memoryCapacity; i++ {
		m.Set(fmt.Sprintf("fp-%d", i), CachedSVG{SVG: "<svg/>"})
	}

	// Touch the LRU entry, then push one more; the victim must be fp-1.
	_, ok := m.Get("fp-0")
	a.True(ok)
	m.Set("overflow", CachedSVG{SVG: "<svg/>"})

	_, ok = m.Get("fp-0")
	a.True(ok)
	_, ok = m.Get("fp-1")
	a.False(ok)
}

func TestMemory_Reset(t *testing.T) {
	a := assert.New(t)
	m := NewMemory()

	m.Set("fp", CachedSVG{SVG: "<svg/>"})
	m.Get("fp")
	m.Reset()

	stats := m.Stats()
	a.Equal(uint64(0), stats.Hits)
	a.Equal(0, stats.Size)
}
