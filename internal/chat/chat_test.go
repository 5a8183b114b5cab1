package chat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/chat"
)

func TestThreadID(t *testing.T) {
	t.Parallel()

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, chat.ThreadID("alice", "bob"), chat.ThreadID("bob", "alice"))
	})

	t.Run("canonicalizes participants", func(t *testing.T) {
		t.Parallel()

		require.Equal(t,
			"alice_example_com_bob_example_com",
			chat.ThreadID("alice@example.com", "bob@example.com"),
		)
	})

	t.Run("orders lexicographically", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "abc_xyz", chat.ThreadID("xyz", "abc"))
	})
}
