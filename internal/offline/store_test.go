package offline

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeImplementations(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func sampleResponse(body string) *Response {
	return &Response{
		URL:    abs("/a.js"),
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/javascript"}},
		Body:   []byte(body),
		Type:   TypeBasic,
	}
}

func TestStore_PutGetMatch(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			key := RequestKey(http.MethodGet, abs("/a.js"))

			cache, err := store.Open(ctx, "santos-precache-1")
			require.NoError(t, err)
			assert.Equal(t, "santos-precache-1", cache.Name())

			_, ok, err := cache.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, cache.Put(ctx, key, sampleResponse("v1")))
			require.NoError(t, cache.Put(ctx, key, sampleResponse("v2")))

			got, ok, err := cache.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			if diff := cmp.Diff(sampleResponse("v2"), got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}

			matched, ok, err := store.Match(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v2", string(matched.Body))

			keys, err := cache.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{key}, keys)
		})
	}
}

func TestStore_MatchSearchesOldestFirst(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			key := RequestKey(http.MethodGet, abs("/a.js"))

			first, err := store.Open(ctx, "first")
			require.NoError(t, err)
			second, err := store.Open(ctx, "second")
			require.NoError(t, err)

			require.NoError(t, second.Put(ctx, key, sampleResponse("second")))
			require.NoError(t, first.Put(ctx, key, sampleResponse("first")))

			got, ok, err := store.Match(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "first", string(got.Body))

			_, ok, err = store.Match(ctx, "GET "+abs("/missing"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_DeleteAndNames(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			key := RequestKey(http.MethodGet, abs("/a.js"))

			for _, n := range []string{"a", "b", "c"} {
				c, err := store.Open(ctx, n)
				require.NoError(t, err)
				require.NoError(t, c.Put(ctx, key, sampleResponse(n)))
			}
			// Reopening does not duplicate or reorder.
			_, err := store.Open(ctx, "a")
			require.NoError(t, err)

			names, err := store.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, names)

			existed, err := store.Delete(ctx, "a")
			require.NoError(t, err)
			assert.True(t, existed)

			existed, err = store.Delete(ctx, "a")
			require.NoError(t, err)
			assert.False(t, existed)

			names, err = store.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, names)

			got, ok, err := store.Match(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "b", string(got.Body))

			// Recreating a deleted cache starts empty.
			a, err := store.Open(ctx, "a")
			require.NoError(t, err)
			_, ok, err = a.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			cache, err := store.Open(ctx, "runtime")
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					key := RequestKey(http.MethodGet, abs("/asset/"+string(rune('a'+i))))
					assert.NoError(t, cache.Put(ctx, key, sampleResponse("x")))
				}()
			}
			wg.Wait()

			keys, err := cache.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 20)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache, err := store.Open(ctx, "c")
	require.NoError(t, err)

	resp := sampleResponse("original")
	require.NoError(t, cache.Put(ctx, "k", resp))
	resp.Body[0] = 'X'

	got, _, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	got.Header.Set("Content-Type", "changed")

	again, _, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again.Body))
	assert.Equal(t, "application/javascript", again.Header.Get("Content-Type"))
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	key := RequestKey(http.MethodGet, abs("/a.js"))

	s, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	cache, err := s.Open(ctx, "santos-precache-1")
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, key, sampleResponse("kept")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, ok, err := reopened.Match(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", string(got.Body))
	assert.Equal(t, TypeBasic, got.Type)
}
