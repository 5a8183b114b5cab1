package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nitedsync/internal/cache"
	"nitedsync/internal/core"
	"nitedsync/internal/notify"
	"nitedsync/internal/remote"
	"nitedsync/internal/session"
	"nitedsync/internal/social"
)

var (
	reactionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nitedsync_reactions_applied_total",
		Help: "The total number of reaction mutations applied to the local cache",
	}, []string{"kind"})

	remoteWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nitedsync_remote_write_failures_total",
		Help: "The total number of failed remote tree writes, by bucket",
	}, []string{"bucket"})
)

// Ledger applies engagement mutations: local cache first, synchronously,
// then an asynchronous mirror of the changed record to the remote tree. A
// failed remote write is logged and dropped; local state is never rolled
// back, so local/remote divergence is possible and repaired only by the next
// reconciliation.
type Ledger struct {
	Logger   *slog.Logger
	Cache    *cache.Store
	Remote   *remote.NATS
	Notifier *notify.Dispatcher
	Session  *session.Session
}

func (l *Ledger) Init(context.Context) error {
	l.Logger = l.Logger.With("component", "ledger.Ledger")
	return nil
}

// CreatePost stores a new post authored by the session user.
func (l *Ledger) CreatePost(ctx context.Context, content string, media *core.Media) (core.Post, error) {
	if !l.Session.Authenticated() {
		return core.Post{}, core.ErrNotAuthenticated
	}

	post := core.Post{
		ID:          uuid.NewString(),
		AuthorID:    l.Session.UserKey,
		AuthorName:  l.Session.Name,
		AuthorPhoto: l.Session.Photo,
		Content:     content,
		Media:       media,
		Hashtags:    Hashtags(content),
		CreatedAt:   time.Now().UnixMilli(),
	}
	post.Normalize()

	posts := append([]core.Post{post}, l.Cache.Posts(ctx)...)
	if err := l.Cache.StorePosts(ctx, posts); err != nil {
		return core.Post{}, err
	}

	l.mirrorPost(post)
	return post, nil
}

// SetReaction applies the session user's reaction to a post. kind equal to
// the current one, or ReactionNone, removes it. A missing post is a logged
// no-op, not an error.
func (l *Ledger) SetReaction(ctx context.Context, postID string, kind core.ReactionKind) error {
	if !l.Session.Authenticated() {
		return core.ErrNotAuthenticated
	}
	if kind != core.ReactionNone && !kind.Valid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidReaction, kind)
	}

	posts := l.Cache.Posts(ctx)
	idx := slices.IndexFunc(posts, func(p core.Post) bool { return p.ID == postID })
	if idx < 0 {
		l.Logger.Error("post not found in cache, ignoring reaction", "post", postID)
		return nil
	}

	post := &posts[idx]
	if !ApplyReaction(post, l.Session.UserKey, kind) {
		return nil
	}
	reactionsApplied.WithLabelValues(string(kind)).Inc()

	if err := l.Cache.StorePosts(ctx, posts); err != nil {
		return err
	}
	l.mirrorPost(*post)

	current, reacted := post.ReactionByUser[l.Session.UserKey]
	authorKey := social.CanonicalKey(post.AuthorID)
	if reacted && authorKey != l.Session.UserKey {
		message := fmt.Sprintf("%s reacted %s to your post", l.Session.Name, current)
		l.Notifier.Dispatch(ctx, authorKey, core.NotificationReaction, message, l.Session.Actor())
	}
	return nil
}

// AddComment appends a comment to a post. Comments are append-only.
func (l *Ledger) AddComment(ctx context.Context, postID, text string) error {
	if !l.Session.Authenticated() {
		return core.ErrNotAuthenticated
	}

	posts := l.Cache.Posts(ctx)
	idx := slices.IndexFunc(posts, func(p core.Post) bool { return p.ID == postID })
	if idx < 0 {
		l.Logger.Error("post not found in cache, ignoring comment", "post", postID)
		return nil
	}

	post := &posts[idx]
	post.Comments = append(post.Comments, core.Comment{
		ID:          uuid.NewString(),
		AuthorName:  l.Session.Name,
		AuthorPhoto: l.Session.Photo,
		Text:        text,
		CreatedAt:   time.Now().UnixMilli(),
	})

	if err := l.Cache.StorePosts(ctx, posts); err != nil {
		return err
	}
	l.mirrorPost(*post)

	authorKey := social.CanonicalKey(post.AuthorID)
	if authorKey != l.Session.UserKey {
		message := fmt.Sprintf("%s commented on your post", l.Session.Name)
		l.Notifier.Dispatch(ctx, authorKey, core.NotificationComment, message, l.Session.Actor())
	}
	return nil
}

// SharePost increments a post's share counter.
func (l *Ledger) SharePost(ctx context.Context, postID string) error {
	if !l.Session.Authenticated() {
		return core.ErrNotAuthenticated
	}

	posts := l.Cache.Posts(ctx)
	idx := slices.IndexFunc(posts, func(p core.Post) bool { return p.ID == postID })
	if idx < 0 {
		l.Logger.Error("post not found in cache, ignoring share", "post", postID)
		return nil
	}

	posts[idx].ShareCount++
	if err := l.Cache.StorePosts(ctx, posts); err != nil {
		return err
	}
	l.mirrorPost(posts[idx])
	return nil
}

// DeletePost removes a post. Only the author may delete it.
func (l *Ledger) DeletePost(ctx context.Context, postID string) error {
	if !l.Session.Authenticated() {
		return core.ErrNotAuthenticated
	}

	posts := l.Cache.Posts(ctx)
	idx := slices.IndexFunc(posts, func(p core.Post) bool { return p.ID == postID })
	if idx < 0 {
		return core.ErrPostNotFound
	}
	if social.CanonicalKey(posts[idx].AuthorID) != l.Session.UserKey {
		return core.ErrNotOwner
	}

	posts = slices.Delete(posts, idx, idx+1)
	if err := l.Cache.StorePosts(ctx, posts); err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.Remote.Bucket(remote.BucketPosts).Delete(ctx, postID); err != nil {
			remoteWriteFailures.WithLabelValues(remote.BucketPosts).Inc()
			l.Logger.Error("failed to delete remote post", "post", postID, "error", err)
		}
	}()
	return nil
}

// mirrorPost pushes the mutated engagement fields to the remote tree in the
// background. The merge into the current remote value keeps fields this
// client did not touch.
func (l *Ledger) mirrorPost(post core.Post) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := l.Remote.Bucket(remote.BucketPosts).Update(ctx, post.ID, func(current []byte) ([]byte, error) {
			if current == nil {
				return json.Marshal(post)
			}

			var stored core.Post
			if err := json.Unmarshal(current, &stored); err != nil {
				// Remote record is corrupt, overwrite it wholesale.
				return json.Marshal(post)
			}
			stored.Reactions = post.Reactions
			stored.ReactionByUser = post.ReactionByUser
			stored.LikedBy = post.LikedBy
			stored.Likes = post.Likes
			stored.Comments = post.Comments
			stored.ShareCount = post.ShareCount
			return json.Marshal(stored)
		})
		if err != nil {
			remoteWriteFailures.WithLabelValues(remote.BucketPosts).Inc()
			l.Logger.Error("failed to mirror post", "post", post.ID, "error", err)
		}
	}()
}
