package session_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/cache"
	"nitedsync/internal/config"
	"nitedsync/internal/core"
	"nitedsync/internal/session"
)

func newCache(t *testing.T, cfg *config.Config) *cache.Store {
	t.Helper()

	store := &cache.Store{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	}
	require.NoError(t, store.Init(t.Context()))
	t.Cleanup(func() {
		require.NoError(t, store.Shutdown(t.Context()))
	})
	return store
}

func newSession(t *testing.T, cfg *config.Config) *session.Session {
	t.Helper()

	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(t.TempDir(), "cache.db")
	}

	s := &session.Session{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
		Cache:  newCache(t, cfg),
	}
	require.NoError(t, s.Init(t.Context()))
	return s
}

func TestSession_Unauthenticated(t *testing.T) {
	t.Parallel()

	s := newSession(t, &config.Config{})
	require.False(t, s.Authenticated())
}

func TestSession_FromFlags(t *testing.T) {
	t.Parallel()

	s := newSession(t, &config.Config{
		UserKey:   "alice@example.com",
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		UserPhoto: "https://example.com/a.png",
	})

	require.True(t, s.Authenticated())
	require.Equal(t, "alice_example_com", s.UserKey)
	require.Equal(t, core.Actor{Name: "Alice", Photo: "https://example.com/a.png"}, s.Actor())

	// The canonicalized profile is persisted for the next session.
	profile, ok := s.Cache.CurrentUser(t.Context())
	require.True(t, ok)
	require.Equal(t, "alice_example_com", profile.Key)
	require.NotZero(t, profile.LastActive)
}

func TestSession_FromCachedProfile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{CachePath: filepath.Join(t.TempDir(), "cache.db")}

	store := newCache(t, cfg)
	require.NoError(t, store.StoreCurrentUser(t.Context(), core.Profile{
		Key:  "bob_example_com",
		Name: "Bob",
	}))

	s := &session.Session{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
		Cache:  store,
	}
	require.NoError(t, s.Init(t.Context()))

	require.True(t, s.Authenticated())
	require.Equal(t, "bob_example_com", s.UserKey)
	require.Equal(t, "Bob", s.Name)
}

type memoryTree struct {
	puts map[string][]byte
}

func (m *memoryTree) Get(context.Context, string) ([]byte, error) { return nil, core.ErrKeyNotFound }

func (m *memoryTree) Put(_ context.Context, key string, value []byte) error {
	if m.puts == nil {
		m.puts = map[string][]byte{}
	}
	m.puts[key] = value
	return nil
}

func (m *memoryTree) Update(_ context.Context, key string, fn func([]byte) ([]byte, error)) error {
	value, err := fn(nil)
	if err != nil {
		return err
	}
	return m.Put(context.Background(), key, value)
}

func (m *memoryTree) Delete(context.Context, string) error { return nil }

func (m *memoryTree) Keys(context.Context) ([]string, error) { return nil, nil }

func (m *memoryTree) Watch(context.Context, string) (<-chan core.TreeEntry, error) {
	return nil, nil
}

func TestSession_PublishProfile(t *testing.T) {
	t.Parallel()

	t.Run("publishes under the canonical key", func(t *testing.T) {
		t.Parallel()

		s := newSession(t, &config.Config{
			UserKey:   "alice@example.com",
			UserName:  "Alice",
			UserPhoto: "https://example.com/a.png",
		})

		tree := &memoryTree{}
		require.NoError(t, s.PublishProfile(t.Context(), tree))

		payload, ok := tree.puts["alice_example_com"]
		require.True(t, ok)

		var profile core.Profile
		require.NoError(t, json.Unmarshal(payload, &profile))
		require.Equal(t, "alice_example_com", profile.Key)
		require.Equal(t, "Alice", profile.Name)
		require.Equal(t, "https://example.com/a.png", profile.Photo)
		require.Equal(t, s.StartedAt.UnixMilli(), profile.LastActive)
	})

	t.Run("no-op when unauthenticated", func(t *testing.T) {
		t.Parallel()

		s := newSession(t, &config.Config{})

		tree := &memoryTree{}
		require.NoError(t, s.PublishProfile(t.Context(), tree))
		require.Empty(t, tree.puts)
	})
}
