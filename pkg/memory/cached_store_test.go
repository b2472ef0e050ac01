package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personachat/pkg/cache"
	"personachat/pkg/logging"
)

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	Store
	recentCalls  int
	profileCalls int
}

func (s *countingStore) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	s.recentCalls++
	return s.Store.RecentMessages(ctx, userID, limit)
}

func (s *countingStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	s.profileCalls++
	return s.Store.GetProfile(ctx, userID)
}

func newTestCachedStore(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	inner := &countingStore{Store: newTestSQLiteStore(t)}
	return NewCachedStore(inner, cache.NewFromClient(client, "test"), logging.Discard()), inner, mr
}

func TestCachedStore_RecentMessages(t *testing.T) {
	store, inner, mr := newTestCachedStore(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, store.SaveMessage(ctx, Message{UserID: "u1", Text: fmt.Sprintf("m%d", i)}))
	}

	// Served from the list filled by SaveMessage
	recent, err := store.RecentMessages(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "m1", recent[0].Text)
	assert.Equal(t, "m5", recent[4].Text)
	assert.Equal(t, 0, inner.recentCalls)

	// After the cache is lost the store is read once and the list rewarmed
	mr.FlushAll()
	recent, err = store.RecentMessages(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "m1", recent[0].Text)
	assert.Equal(t, 1, inner.recentCalls)

	_, err = store.RecentMessages(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.recentCalls)
}

func TestCachedStore_ShortHistoryFallsThrough(t *testing.T) {
	store, inner, _ := newTestCachedStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMessage(ctx, Message{UserID: "u1", Text: "only"}))

	recent, err := store.RecentMessages(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 1, inner.recentCalls)
}

func TestCachedStore_Profile(t *testing.T) {
	store, inner, _ := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.IncrementInteractions(ctx, "u1")
	require.NoError(t, err)

	p, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.InteractionCount)

	p, err = store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.InteractionCount)
	assert.Equal(t, 2, inner.profileCalls)

	// Writes invalidate the cached document
	_, err = store.IncrementInteractions(ctx, "u1")
	require.NoError(t, err)
	p, err = store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.InteractionCount)
	assert.Equal(t, 3, inner.profileCalls)
}

func TestCachedStore_RedisDownFallsThrough(t *testing.T) {
	store, _, mr := newTestCachedStore(t)
	ctx := context.Background()

	mr.Close()

	require.NoError(t, store.SaveMessage(ctx, Message{UserID: "u1", Text: "still saved"}))
	recent, err := store.RecentMessages(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "still saved", recent[0].Text)
}
