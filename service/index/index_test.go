package index

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iconduit/go-iconduit/service/persist"
	"github.com/iconduit/go-iconduit/service/redis"
)

// fakeKV is an in-memory KV binding with fault injection.
type fakeKV struct {
	data  map[string][]byte
	err   error
	calls int64
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.data[key]
	if !ok {
		return nil, redis.ErrKeyNotFound{Key: key}
	}
	return raw, nil
}

func testIndexJSON(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(persist.IconIndex{
		Icons: map[string]persist.IconRecord{
			"lucide:home": {ID: "lucide:home", Name: "home", Source: "lucide", Path: "lucide/home.svg"},
		},
		Stats: persist.IndexStats{TotalIcons: 1, Sources: []string{"lucide"}},
	})
	assert.NoError(t, err)
	return raw
}

func TestStore_GetIndex(t *testing.T) {
	a := assert.New(t)
	kv := &fakeKV{data: map[string][]byte{"icon-index": testIndexJSON(t)}}
	s := NewStore(kv)
	ctx := context.Background()

	idx, err := s.GetIndex(ctx)
	a.NoError(err)
	rec, ok := idx.Get("lucide", "home")
	a.True(ok)
	a.Equal("lucide/home.svg", rec.Path)

	// Served from the in-process copy within the TTL.
	_, err = s.GetIndex(ctx)
	a.NoError(err)
	a.Equal(int64(1), atomic.LoadInt64(&kv.calls))
}

func TestStore_GetIndexWithETag(t *testing.T) {
	a := assert.New(t)
	kv := &fakeKV{data: map[string][]byte{"icon-index": testIndexJSON(t)}}
	s := NewStore(kv)
	ctx := context.Background()

	idx, etag, err := s.GetIndexWithETag(ctx, "")
	a.NoError(err)
	a.NotNil(idx)
	a.NotEmpty(etag)

	// A matching validator elides the body.
	idx, etag2, err := s.GetIndexWithETag(ctx, etag)
	a.NoError(err)
	a.Nil(idx)
	a.Equal(etag, etag2)
}

func TestStore_MissingIndexIsStorageError(t *testing.T) {
	a := assert.New(t)
	s := NewStore(&fakeKV{data: map[string][]byte{}})

	_, err := s.GetIndex(context.Background())
	a.Error(err)
	var storageErr persist.ErrStorage
	a.ErrorAs(err, &storageErr)
}

func TestStore_OptionalCollaboratorsDegrade(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	t.Run("absent inverted index yields nil", func(t *testing.T) {
		s := NewStore(&fakeKV{data: map[string][]byte{}})
		inv, err := s.GetInvertedIndex(ctx)
		a.NoError(err)
		a.Nil(inv)
	})

	t.Run("corrupt inverted index yields nil", func(t *testing.T) {
		s := NewStore(&fakeKV{data: map[string][]byte{"inverted-index": []byte("{corrupt")}})
		inv, err := s.GetInvertedIndex(ctx)
		a.NoError(err)
		a.Nil(inv)
	})

	t.Run("absent synonyms yield empty map", func(t *testing.T) {
		s := NewStore(&fakeKV{data: map[string][]byte{}})
		syn, err := s.GetSynonyms(ctx)
		a.NoError(err)
		a.NotNil(syn)
		a.Empty(syn)
	})
}

func TestStore_BreakerTripsOnBackendFailures(t *testing.T) {
	a := assert.New(t)
	kv := &fakeKV{err: errors.New("connection refused")}
	s := NewStore(kv)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.GetIndex(ctx)
		a.Error(err)
	}

	calls := atomic.LoadInt64(&kv.calls)
	_, err := s.GetIndex(ctx)
	a.Error(err)
	// Open breaker fails fast without touching the backend.
	a.Equal(calls, atomic.LoadInt64(&kv.calls))
}

func TestStore_MissingKeyDoesNotTripBreaker(t *testing.T) {
	a := assert.New(t)
	kv := &fakeKV{data: map[string][]byte{}}
	s := NewStore(kv)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.GetInvertedIndex(ctx)
		a.NoError(err)
	}
	a.NotEqual("open", s.BreakerState().String())
}
