package ledger

import (
	"slices"

	"nitedsync/internal/core"
)

// ApplyReaction mutates a post's reaction state for one user. kind equal to
// the user's current kind, or ReactionNone, removes the reaction; any other
// kind replaces it. Counters never go negative and the LikedBy mirror is
// rebuilt to exactly the set of users whose current kind is "like".
// Returns true if anything changed.
func ApplyReaction(post *core.Post, userKey string, kind core.ReactionKind) bool {
	post.Normalize()

	previous, had := post.ReactionByUser[userKey]
	if kind == core.ReactionNone && !had {
		return false
	}

	if had {
		if post.Reactions[previous] > 0 {
			post.Reactions[previous]--
		}
		delete(post.ReactionByUser, userKey)
	}

	// Same kind again is a toggle-off.
	if kind != core.ReactionNone && !(had && previous == kind) {
		post.Reactions[kind]++
		post.ReactionByUser[userKey] = kind
	}

	syncLikedBy(post, userKey)
	post.Likes = post.TotalReactions()
	return true
}

func syncLikedBy(post *core.Post, userKey string) {
	isLike := post.ReactionByUser[userKey] == core.ReactionLike
	hasEntry := slices.Contains(post.LikedBy, userKey)

	switch {
	case isLike && !hasEntry:
		post.LikedBy = append(post.LikedBy, userKey)
	case !isLike && hasEntry:
		post.LikedBy = slices.DeleteFunc(post.LikedBy, func(key string) bool {
			return key == userKey
		})
	}
}
