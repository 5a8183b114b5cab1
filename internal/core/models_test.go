package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nitedsync/internal/core"
)

func TestPost_Normalize(t *testing.T) {
	t.Parallel()

	t.Run("repairs nil maps and slices", func(t *testing.T) {
		t.Parallel()

		post := core.Post{ID: "p1"}
		post.Normalize()

		require.NotNil(t, post.Reactions)
		require.NotNil(t, post.ReactionByUser)
		require.NotNil(t, post.Comments)
		require.NotNil(t, post.LikedBy)
	})

	t.Run("migrates legacy likedBy into the reaction map", func(t *testing.T) {
		t.Parallel()

		post := core.Post{
			ID:      "p1",
			LikedBy: []string{"alice", "bob"},
		}
		post.Normalize()

		require.Equal(t, core.ReactionLike, post.ReactionByUser["alice"])
		require.Equal(t, core.ReactionLike, post.ReactionByUser["bob"])
		require.ElementsMatch(t, []string{"alice", "bob"}, post.LikedBy)
	})

	t.Run("clamps negative counters", func(t *testing.T) {
		t.Parallel()

		post := core.Post{
			ID:         "p1",
			Reactions:  map[core.ReactionKind]int64{core.ReactionLike: -5, core.ReactionLove: 2},
			ShareCount: -3,
		}
		post.Normalize()

		require.Equal(t, int64(0), post.Reactions[core.ReactionLike])
		require.Equal(t, int64(2), post.Reactions[core.ReactionLove])
		require.Equal(t, int64(0), post.ShareCount)
		require.Equal(t, int64(2), post.Likes)
	})

	t.Run("drops invalid reaction kinds", func(t *testing.T) {
		t.Parallel()

		post := core.Post{
			ID: "p1",
			ReactionByUser: map[string]core.ReactionKind{
				"alice": core.ReactionLove,
				"bob":   core.ReactionKind("sparkle"),
			},
		}
		post.Normalize()

		require.Contains(t, post.ReactionByUser, "alice")
		require.NotContains(t, post.ReactionByUser, "bob")
	})

	t.Run("rebuilds the likedBy mirror", func(t *testing.T) {
		t.Parallel()

		post := core.Post{
			ID: "p1",
			ReactionByUser: map[string]core.ReactionKind{
				"alice": core.ReactionLike,
				"bob":   core.ReactionLove,
			},
			LikedBy: []string{"bob", "stale"},
		}
		post.Normalize()

		require.Equal(t, []string{"alice"}, post.LikedBy)
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		post := core.Post{
			ID:        "p1",
			LikedBy:   []string{"alice"},
			Reactions: map[core.ReactionKind]int64{core.ReactionLike: 1},
		}
		post.Normalize()
		before := post
		post.Normalize()

		require.Equal(t, before.Likes, post.Likes)
		require.Equal(t, before.LikedBy, post.LikedBy)
		require.Equal(t, before.ReactionByUser, post.ReactionByUser)
	})
}

func TestStory_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	story := core.Story{ID: "s1", CreatedAt: now.Add(-23 * time.Hour).UnixMilli()}
	require.False(t, story.Expired(now))

	story.CreatedAt = now.Add(-25 * time.Hour).UnixMilli()
	require.True(t, story.Expired(now))

	story.CreatedAt = now.Add(-core.StoryTTL).UnixMilli()
	require.True(t, story.Expired(now))
}

func TestFollowEntry_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("object form", func(t *testing.T) {
		t.Parallel()

		var entry core.FollowEntry
		err := json.Unmarshal([]byte(`{"id":"u1","key":"alice_example_com","name":"Alice"}`), &entry)
		require.NoError(t, err)
		require.Equal(t, "u1", entry.ID)
		require.Equal(t, "alice_example_com", entry.Key)
		require.Equal(t, "Alice", entry.Name)
	})

	t.Run("legacy bare string", func(t *testing.T) {
		t.Parallel()

		var entry core.FollowEntry
		err := json.Unmarshal([]byte(`"u1"`), &entry)
		require.NoError(t, err)
		require.Equal(t, core.FollowEntry{ID: "u1"}, entry)
	})

	t.Run("mixed list", func(t *testing.T) {
		t.Parallel()

		var entries []core.FollowEntry
		err := json.Unmarshal([]byte(`["u1",{"id":"u2","name":"Bob"}]`), &entries)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "u1", entries[0].ID)
		require.Equal(t, "Bob", entries[1].Name)
	})
}
