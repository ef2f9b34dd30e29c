package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps the memory driver and counts how often each method
// reaches the backend.
type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (*Session, error) {
	c.gets++
	return c.Store.Get(ctx, id)
}

func TestCachedStoreServesRepeatReadsFromCache(t *testing.T) {
	backend := &countingStore{Store: newMemoryStore()}
	store := newCachedStore(backend, 8, time.Minute)
	defer store.Close()

	ctx := context.Background()
	s := New(nil)
	require.NoError(t, store.Create(ctx, s))

	for i := 0; i < 5; i++ {
		_, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, backend.gets, "create primes the cache; reads never hit the backend")
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	backend := &countingStore{Store: newMemoryStore()}
	store := newCachedStore(backend, 8, time.Minute)
	defer store.Close()

	ctx := context.Background()
	s := New(nil)
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, store.TransitionStatus(ctx, s.ID, StatusInitializing, StatusGeneratingWorld))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGeneratingWorld, got.Status, "reads after a write see the stored state")
	assert.Equal(t, 1, backend.gets, "the write invalidated the cached entry")
}

func TestCachedStoreReturnsIsolatedCopies(t *testing.T) {
	store := newCachedStore(newMemoryStore(), 8, time.Minute)
	defer store.Close()

	ctx := context.Background()
	s := New(map[string]string{"theme": "noir"})
	require.NoError(t, store.Create(ctx, s))

	first, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	first.Preferences["theme"] = "pastoral"

	second, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "noir", second.Preferences["theme"])
}

func TestCachedStoreEvictsLeastRecentlyUsed(t *testing.T) {
	backend := &countingStore{Store: newMemoryStore()}
	store := newCachedStore(backend, 2, time.Minute)
	defer store.Close()

	ctx := context.Background()
	a, b, c := New(nil), New(nil), New(nil)
	for _, s := range []*Session{a, b, c} {
		require.NoError(t, store.Create(ctx, s))
	}

	// Capacity 2: creating c evicted a.
	_, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.gets)

	_, err = store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.gets, "c is still cached")
}

func TestCachedStoreExpiresEntries(t *testing.T) {
	backend := &countingStore{Store: newMemoryStore()}
	store := newCachedStore(backend, 8, 10*time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	s := New(nil)
	require.NoError(t, store.Create(ctx, s))

	time.Sleep(25 * time.Millisecond)

	_, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.gets, "expired entries fall through to the backend")
}
