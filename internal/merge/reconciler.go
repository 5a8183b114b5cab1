package merge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"nitedsync/internal/cache"
	"nitedsync/internal/core"
	"nitedsync/internal/remote"
)

// Reconciler performs the initial sync of each collection: fetch the full
// remote snapshot, fold it into the cached one, write the merged result back
// as a full replace.
type Reconciler struct {
	Logger *slog.Logger
	Cache  *cache.Store
	Remote *remote.NATS
}

func (r *Reconciler) Init(context.Context) error {
	r.Logger = r.Logger.With("component", "merge.Reconciler")
	return nil
}

func (r *Reconciler) Sync(ctx context.Context) error {
	if err := r.syncPosts(ctx); err != nil {
		return err
	}
	if err := r.syncStories(ctx); err != nil {
		return err
	}
	if err := r.syncAdjacency(ctx, remote.BucketFollowing, r.Cache.Following, r.Cache.StoreFollowing); err != nil {
		return err
	}
	return r.syncAdjacency(ctx, remote.BucketFollowers, r.Cache.Followers, r.Cache.StoreFollowers)
}

func (r *Reconciler) syncPosts(ctx context.Context) error {
	var remotePosts []core.Post
	err := r.each(ctx, remote.BucketPosts, func(key string, value []byte) {
		var post core.Post
		if err := json.Unmarshal(value, &post); err != nil {
			r.Logger.Error("corrupt remote post, skipping", "key", key, "error", err)
			return
		}
		post.Normalize()
		remotePosts = append(remotePosts, post)
	})
	if err != nil {
		return err
	}

	merged := Posts(r.Cache.Posts(ctx), remotePosts)
	if err := r.Cache.StorePosts(ctx, merged); err != nil {
		return err
	}
	r.Logger.Info("posts reconciled", "remote", len(remotePosts), "merged", len(merged))
	return nil
}

func (r *Reconciler) syncStories(ctx context.Context) error {
	var remoteStories []core.Story
	err := r.each(ctx, remote.BucketStories, func(key string, value []byte) {
		var story core.Story
		if err := json.Unmarshal(value, &story); err != nil {
			r.Logger.Error("corrupt remote story, skipping", "key", key, "error", err)
			return
		}
		remoteStories = append(remoteStories, story)
	})
	if err != nil {
		return err
	}

	merged := Stories(time.Now(), r.Cache.Stories(ctx), remoteStories)
	if err := r.Cache.StoreStories(ctx, merged); err != nil {
		return err
	}
	r.Logger.Info("stories reconciled", "remote", len(remoteStories), "merged", len(merged))
	return nil
}

func (r *Reconciler) syncAdjacency(
	ctx context.Context,
	bucket string,
	load func(context.Context) map[string][]core.FollowEntry,
	store func(context.Context, map[string][]core.FollowEntry) error,
) error {
	lists := load(ctx)

	err := r.each(ctx, bucket, func(key string, value []byte) {
		var list []core.FollowEntry
		if err := json.Unmarshal(value, &list); err != nil {
			r.Logger.Error("corrupt remote adjacency list, skipping", "bucket", bucket, "key", key, "error", err)
			return
		}
		// Remote wins per user key, same as posts.
		lists[key] = list
	})
	if err != nil {
		return err
	}

	return store(ctx, lists)
}

func (r *Reconciler) each(ctx context.Context, bucket string, fn func(key string, value []byte)) error {
	tree := r.Remote.Bucket(bucket)

	keys, err := tree.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		value, err := tree.Get(ctx, key)
		if err != nil {
			r.Logger.Error("failed to fetch remote record", "bucket", bucket, "key", key, "error", err)
			continue
		}
		fn(key, value)
	}
	return nil
}
