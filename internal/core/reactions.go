package core

// ReactionKind is one of the six reactions a user can leave on a post.
// A user holds at most one active kind per post.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionHaha  ReactionKind = "haha"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"

	// ReactionNone removes the caller's current reaction.
	ReactionNone ReactionKind = ""
)

var reactionKinds = []ReactionKind{
	ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry,
}

// ReactionKinds returns the closed set of kinds in display order.
func ReactionKinds() []ReactionKind {
	return reactionKinds
}

func (k ReactionKind) Valid() bool {
	for _, kind := range reactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}
