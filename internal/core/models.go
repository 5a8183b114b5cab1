package core

import (
	"time"

	"github.com/samber/lo"
)

// Timestamps are unix milliseconds everywhere, matching the wire format of
// the remote tree.

const StoryTTL = 24 * time.Hour

type Media struct {
	URL    string `json:"url"`
	Kind   string `json:"kind"`
	Format string `json:"format"`
}

type Comment struct {
	ID          string `json:"id"`
	AuthorName  string `json:"userName"`
	AuthorPhoto string `json:"userPhoto,omitempty"`
	Text        string `json:"text"`
	CreatedAt   int64  `json:"timestamp"`
}

type Post struct {
	ID          string `json:"id"`
	AuthorID    string `json:"userId"`
	AuthorName  string `json:"userName"`
	AuthorPhoto string `json:"userPhoto,omitempty"`
	Content     string `json:"content"`
	Media       *Media `json:"media,omitempty"`

	Reactions      map[ReactionKind]int64  `json:"reactions"`
	ReactionByUser map[string]ReactionKind `json:"reactionUsers"`

	// LikedBy mirrors the set of users whose reaction is "like". It is a
	// legacy compatibility field and is rebuilt on every mutation.
	LikedBy []string `json:"likedBy"`

	// Likes is the derived sum of all reaction counters. It is recomputed
	// from Reactions whenever displayed, never trusted from storage.
	Likes int64 `json:"likes"`

	Comments   []Comment `json:"comments"`
	ShareCount int64     `json:"shares"`
	Hashtags   []string  `json:"hashtags,omitempty"`
	CreatedAt  int64     `json:"timestamp"`
}

// Normalize repairs malformed fields in place: nil maps, negative counters,
// missing comment lists and a stale LikedBy mirror. Corrupt data is fixed,
// never rejected. Idempotent.
func (p *Post) Normalize() {
	if p.Reactions == nil {
		p.Reactions = map[ReactionKind]int64{}
	}
	for _, kind := range ReactionKinds() {
		if p.Reactions[kind] < 0 {
			p.Reactions[kind] = 0
		}
	}
	if p.ReactionByUser == nil {
		p.ReactionByUser = map[string]ReactionKind{}
		// Migrate legacy likes into the per-user reaction map.
		for _, user := range p.LikedBy {
			p.ReactionByUser[user] = ReactionLike
		}
	}
	for user, kind := range p.ReactionByUser {
		if !kind.Valid() {
			delete(p.ReactionByUser, user)
		}
	}
	p.LikedBy = likedBy(p.ReactionByUser)
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	if p.ShareCount < 0 {
		p.ShareCount = 0
	}
	p.Likes = p.TotalReactions()
}

// TotalReactions recomputes the aggregate from the counters.
func (p *Post) TotalReactions() int64 {
	var total int64
	for _, count := range p.Reactions {
		if count > 0 {
			total += count
		}
	}
	return total
}

func likedBy(byUser map[string]ReactionKind) []string {
	users := lo.Keys(lo.PickByValues(byUser, []ReactionKind{ReactionLike}))
	if users == nil {
		users = []string{}
	}
	return users
}

type Story struct {
	ID          string `json:"id"`
	AuthorID    string `json:"userId"`
	AuthorName  string `json:"userName"`
	AuthorPhoto string `json:"userPhoto,omitempty"`
	Media       Media  `json:"media"`
	CreatedAt   int64  `json:"timestamp"`

	// Viewers maps canonical user key to the unix-ms time they viewed it.
	Viewers map[string]int64 `json:"viewers,omitempty"`
}

// Expired reports whether the story is past its 24 hour display window.
// Expired stories are excluded from display, not deleted.
func (s *Story) Expired(now time.Time) bool {
	return now.UnixMilli()-s.CreatedAt >= StoryTTL.Milliseconds()
}

// FollowEntry is one edge endpoint in an adjacency list. Legacy lists stored
// bare id strings; those decode with only ID set.
type FollowEntry struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Name  string `json:"name"`
	Photo string `json:"photoURL,omitempty"`
}

type NotificationKind string

const (
	NotificationLike     NotificationKind = "like"
	NotificationComment  NotificationKind = "comment"
	NotificationFollow   NotificationKind = "follow"
	NotificationReaction NotificationKind = "reaction"
)

type Actor struct {
	Name  string `json:"displayName"`
	Photo string `json:"photoURL,omitempty"`
}

// Notification lives under the recipient's namespace in the remote tree.
// Only the Read flag is ever mutated after creation.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"type"`
	Message   string           `json:"message"`
	Actor     Actor            `json:"user"`
	CreatedAt int64            `json:"timestamp"`
	Read      bool             `json:"read"`
}

type ChatMessage struct {
	ID          string `json:"id"`
	SenderKey   string `json:"senderId"`
	ReceiverKey string `json:"receiverId"`
	Text        string `json:"text"`
	CreatedAt   int64  `json:"timestamp"`
	Read        bool   `json:"read"`
}

// ChatThread is the per-user chat summary kept under users/{key}/chats.
type ChatThread struct {
	ThreadID    string `json:"threadId"`
	OtherKey    string `json:"otherId"`
	OtherName   string `json:"otherName"`
	LastMessage string `json:"lastMessage"`
	UpdatedAt   int64  `json:"updatedAt"`
	Unread      int    `json:"unread"`
}

type Profile struct {
	Key        string `json:"key"`
	Name       string `json:"userName"`
	Email      string `json:"email,omitempty"`
	Photo      string `json:"photoURL,omitempty"`
	Bio        string `json:"bio,omitempty"`
	PostsCount int64  `json:"postsCount"`
	LastActive int64  `json:"lastActive"`
}
