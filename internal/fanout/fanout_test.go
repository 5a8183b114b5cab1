package fanout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/core"
	"nitedsync/internal/session"
)

func newFanout(t *testing.T, startedAt time.Time) *Fanout {
	t.Helper()

	f := &Fanout{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Session: &session.Session{StartedAt: startedAt},
	}
	require.NoError(t, f.Init(t.Context()))
	return f
}

func TestFanout_isNew(t *testing.T) {
	t.Parallel()

	startedAt := time.Now()
	after := startedAt.Add(time.Minute).UnixMilli()
	before := startedAt.Add(-time.Minute).UnixMilli()

	t.Run("unknown record created after session start is new", func(t *testing.T) {
		t.Parallel()

		f := newFanout(t, startedAt)
		require.True(t, f.isNew("posts", "p1", after))
	})

	t.Run("record created before session start is not new", func(t *testing.T) {
		t.Parallel()

		f := newFanout(t, startedAt)
		require.False(t, f.isNew("posts", "p1", before))
	})

	t.Run("duplicate snapshot is never surfaced twice", func(t *testing.T) {
		t.Parallel()

		f := newFanout(t, startedAt)
		require.True(t, f.isNew("posts", "p1", after))
		require.False(t, f.isNew("posts", "p1", after))
	})

	t.Run("seen-but-old records are remembered too", func(t *testing.T) {
		t.Parallel()

		f := newFanout(t, startedAt)
		require.False(t, f.isNew("posts", "p1", before))
		require.False(t, f.isNew("posts", "p1", after))
	})

	t.Run("collections are independent", func(t *testing.T) {
		t.Parallel()

		f := newFanout(t, startedAt)
		require.True(t, f.isNew("posts", "x", after))
		require.True(t, f.isNew("stories", "x", after))
	})
}

func TestFanout_markSubscribed(t *testing.T) {
	t.Parallel()

	f := newFanout(t, time.Now())

	require.True(t, f.markSubscribed("posts"))
	require.False(t, f.markSubscribed("posts"))
	require.True(t, f.markSubscribed("stories"))
}

func TestFanout_isSelf(t *testing.T) {
	t.Parallel()

	f := newFanout(t, time.Now())
	f.Session.UserKey = "alice_example_com"

	require.True(t, f.isSelf("alice_example_com"))
	// Remote posts may still carry the raw email as the author id.
	require.True(t, f.isSelf("alice@example.com"))
	require.False(t, f.isSelf("bob@example.com"))
}

func TestPump_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	entries := make(chan core.TreeEntry)
	out := pump(ctx, entries)

	entries <- core.TreeEntry{Key: "k1"}
	first, err := (<-out).Unpack()
	require.NoError(t, err)
	require.Equal(t, "k1", first.Key)

	cancel()
	// Without the ctx guard this send would strand the pump goroutine and
	// the drain below would never finish.
	entries <- core.TreeEntry{Key: "k2"}

	// Drain until the pump closes the channel.
	for range out {
	}
}
