package cache_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/cache"
	"nitedsync/internal/config"
	"nitedsync/internal/core"
)

func newStore(t *testing.T) *cache.Store {
	t.Helper()

	store := &cache.Store{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{CachePath: filepath.Join(t.TempDir(), "cache.db")},
	}
	require.NoError(t, store.Init(t.Context()))
	t.Cleanup(func() {
		require.NoError(t, store.Shutdown(t.Context()))
	})
	return store
}

func TestStore_PostsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()

	require.Empty(t, store.Posts(ctx))

	posts := []core.Post{
		{ID: "p1", AuthorID: "alice", Content: "hello", CreatedAt: 200},
		{ID: "p2", AuthorID: "bob", Content: "world", CreatedAt: 100},
	}
	require.NoError(t, store.StorePosts(ctx, posts))

	loaded := store.Posts(ctx)
	require.Len(t, loaded, 2)
	require.Equal(t, "p1", loaded[0].ID)
	require.Equal(t, "hello", loaded[0].Content)
}

func TestStore_SnapshotReplaces(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.StorePosts(ctx, []core.Post{{ID: "p1"}, {ID: "p2"}}))
	require.NoError(t, store.StorePosts(ctx, []core.Post{{ID: "p3"}}))

	loaded := store.Posts(ctx)
	require.Len(t, loaded, 1)
	require.Equal(t, "p3", loaded[0].ID)
}

func TestStore_CurrentUser(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()

	_, ok := store.CurrentUser(ctx)
	require.False(t, ok)

	profile := core.Profile{Key: "alice_example_com", Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, store.StoreCurrentUser(ctx, profile))

	loaded, ok := store.CurrentUser(ctx)
	require.True(t, ok)
	require.Equal(t, profile.Key, loaded.Key)
	require.Equal(t, profile.Name, loaded.Name)
}

func TestStore_Adjacency(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()

	require.Empty(t, store.Following(ctx))

	lists := map[string][]core.FollowEntry{
		"alice": {{ID: "u2", Key: "bob", Name: "Bob"}},
	}
	require.NoError(t, store.StoreFollowing(ctx, lists))

	loaded := store.Following(ctx)
	require.Len(t, loaded["alice"], 1)
	require.Equal(t, "Bob", loaded["alice"][0].Name)
}

func TestStore_StoriesRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()

	stories := []core.Story{{ID: "s1", AuthorID: "alice", CreatedAt: 100}}
	require.NoError(t, store.StoreStories(ctx, stories))

	loaded := store.Stories(ctx)
	require.Len(t, loaded, 1)
	require.Equal(t, "s1", loaded[0].ID)
}
