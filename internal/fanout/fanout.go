package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zhulik/pips"
	"github.com/zhulik/pips/apply"

	"nitedsync/internal/cache"
	"nitedsync/internal/core"
	"nitedsync/internal/gateway"
	"nitedsync/internal/merge"
	"nitedsync/internal/remote"
	"nitedsync/internal/session"
	"nitedsync/internal/social"
	"nitedsync/pkg/async"
)

var (
	eventsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nitedsync_fanout_events_observed_total",
		Help: "The total number of watch entries observed, by collection",
	}, []string{"collection"})

	newRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nitedsync_fanout_new_records_total",
		Help: "The total number of records surfaced as new, by collection",
	}, []string{"collection"})
)

// Fanout subscribes to the remote collections and drives incremental
// changes into the local cache and the feed gateway. A record is "new" only
// if its id is unknown to the last merged snapshot and it was created after
// session start. Subscriptions are established once; a failed subscription
// is logged and not retried, live updates for that collection simply stop.
type Fanout struct {
	Logger  *slog.Logger
	Cache   *cache.Store
	Remote  *remote.NATS
	Session *session.Session
	Hub     *gateway.Hub

	mu         sync.Mutex
	subscribed map[string]bool
	known      map[string]map[string]bool
}

func (f *Fanout) Init(context.Context) error {
	f.Logger = f.Logger.With("component", "fanout.Fanout")
	f.subscribed = map[string]bool{}
	f.known = map[string]map[string]bool{}
	return nil
}

// Consume subscribes to every collection relevant to the session and blocks
// until ctx is canceled. Safe to call again: already-subscribed collections
// are skipped.
func (f *Fanout) Consume(ctx context.Context) error {
	f.seed(ctx)

	var handles []*async.JobHandle[any]

	start := func(collection, bucket, pattern string, handle func(context.Context, core.TreeEntry) error) {
		if !f.markSubscribed(collection) {
			f.Logger.Warn("already subscribed, skipping", "collection", collection)
			return
		}
		handles = append(handles, async.Job(func(jobCtx context.Context) (any, error) {
			err := f.consume(jobCtx, collection, bucket, pattern, handle)
			if err != nil && jobCtx.Err() == nil {
				// A dead subscription stops this collection only.
				f.Logger.Error("subscription stopped", "collection", collection, "error", err)
			}
			return nil, nil
		}))
	}

	start("posts", remote.BucketPosts, ">", f.handlePost)
	start("stories", remote.BucketStories, ">", f.handleStory)
	if f.Session.Authenticated() {
		start("notifications", remote.BucketNotifications, f.Session.UserKey+".>", f.handleNotification)
		start("chats", remote.BucketChats, "threads."+f.Session.UserKey+".>", f.handleThread)
	}

	<-ctx.Done()
	for _, handle := range handles {
		handle.Stop()
		handle.Wait() //nolint:errcheck
	}
	return nil
}

func (f *Fanout) consume(ctx context.Context, collection, bucket, pattern string, handle func(context.Context, core.TreeEntry) error) error {
	entries, err := f.Remote.Bucket(bucket).Watch(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", bucket, err)
	}

	return pips.New[core.TreeEntry, any]().
		Then(apply.Filter(func(_ context.Context, entry core.TreeEntry) (bool, error) {
			return entry.Op == core.TreeOpPut, nil
		})).
		Then(apply.Each(func(_ context.Context, _ core.TreeEntry) error {
			eventsObserved.WithLabelValues(collection).Inc()
			return nil
		})).
		Then(apply.Map(func(ctx context.Context, entry core.TreeEntry) (any, error) {
			if err := handle(ctx, entry); err != nil {
				f.Logger.Error("failed to handle entry", "collection", collection, "key", entry.Key, "error", err)
			}
			return nil, nil
		})).
		Run(ctx, pump(ctx, entries)).
		Wait(ctx)
}

// pump wraps the watch channel for the pipeline. The send is guarded by ctx
// so a terminated pipeline never strands this goroutine.
func pump(ctx context.Context, entries <-chan core.TreeEntry) chan pips.D[core.TreeEntry] {
	ch := make(chan pips.D[core.TreeEntry])
	go func() {
		defer close(ch)
		for entry := range entries {
			select {
			case <-ctx.Done():
				return
			case ch <- pips.NewD(entry):
			}
		}
	}()
	return ch
}

// seed records the ids already present in the merged snapshots so the
// initial watch replay is never classified as new.
func (f *Fanout) seed(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	posts := map[string]bool{}
	for _, post := range f.Cache.Posts(ctx) {
		posts[post.ID] = true
	}
	f.known["posts"] = posts

	stories := map[string]bool{}
	for _, story := range f.Cache.Stories(ctx) {
		stories[story.ID] = true
	}
	f.known["stories"] = stories
}

// isNew reports whether the record should be surfaced and marks it known
// either way, so duplicate snapshots never double-insert.
func (f *Fanout) isNew(collection, id string, createdAt int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	known := f.known[collection]
	if known == nil {
		known = map[string]bool{}
		f.known[collection] = known
	}
	if known[id] {
		return false
	}
	known[id] = true

	return createdAt > f.Session.StartedAt.UnixMilli()
}

// isSelf matches an author id against the session user through the
// canonical key space, so raw email ids still count as the session user.
func (f *Fanout) isSelf(authorID string) bool {
	return social.CanonicalKey(authorID) == f.Session.UserKey
}

func (f *Fanout) markSubscribed(collection string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribed[collection] {
		return false
	}
	f.subscribed[collection] = true
	return true
}

func (f *Fanout) handlePost(ctx context.Context, entry core.TreeEntry) error {
	var post core.Post
	if err := json.Unmarshal(entry.Value, &post); err != nil {
		return err
	}
	post.Normalize()

	if !f.isNew("posts", post.ID, post.CreatedAt) {
		return nil
	}
	newRecords.WithLabelValues("posts").Inc()

	merged := merge.Posts(f.Cache.Posts(ctx), []core.Post{post})
	if err := f.Cache.StorePosts(ctx, merged); err != nil {
		return err
	}

	f.Hub.Publish(core.FeedEvent{Collection: "posts", Key: post.ID, Payload: post})
	if !f.isSelf(post.AuthorID) {
		f.Hub.Publish(core.FeedEvent{
			Collection: "posts",
			Key:        post.ID,
			Transient:  true,
			Message:    fmt.Sprintf("%s posted something new", post.AuthorName),
		})
	}
	return nil
}

func (f *Fanout) handleStory(ctx context.Context, entry core.TreeEntry) error {
	var story core.Story
	if err := json.Unmarshal(entry.Value, &story); err != nil {
		return err
	}

	if !f.isNew("stories", story.ID, story.CreatedAt) {
		return nil
	}
	newRecords.WithLabelValues("stories").Inc()

	merged := merge.Stories(time.Now(), f.Cache.Stories(ctx), []core.Story{story})
	if err := f.Cache.StoreStories(ctx, merged); err != nil {
		return err
	}

	f.Hub.Publish(core.FeedEvent{Collection: "stories", Key: story.ID, Payload: story})
	return nil
}

func (f *Fanout) handleNotification(_ context.Context, entry core.TreeEntry) error {
	var notification core.Notification
	if err := json.Unmarshal(entry.Value, &notification); err != nil {
		return err
	}

	if !f.isNew("notifications", notification.ID, notification.CreatedAt) {
		return nil
	}
	newRecords.WithLabelValues("notifications").Inc()

	f.Hub.Publish(core.FeedEvent{
		Collection: "notifications",
		Key:        notification.ID,
		Payload:    notification,
		Transient:  true,
		Message:    notification.Message,
	})
	return nil
}

func (f *Fanout) handleThread(_ context.Context, entry core.TreeEntry) error {
	var thread core.ChatThread
	if err := json.Unmarshal(entry.Value, &thread); err != nil {
		return err
	}

	// Threads are updated in place, so only the session-start filter
	// applies: every later update is worth surfacing.
	if thread.UpdatedAt <= f.Session.StartedAt.UnixMilli() {
		return nil
	}
	newRecords.WithLabelValues("chats").Inc()

	f.Hub.Publish(core.FeedEvent{Collection: "chats", Key: entry.Key, Payload: thread})
	return nil
}
