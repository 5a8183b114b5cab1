package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"

	"nitedsync/internal/cache"
	"nitedsync/internal/core"
	"nitedsync/internal/notify"
	"nitedsync/internal/remote"
)

// Graph maintains the follow adjacency lists. An edge is stored redundantly
// in both lists (following/{follower}, followers/{followee}); the two remote
// writes are independent and not transactional, so Reconcile repairs any
// divergence on read.
type Graph struct {
	Logger   *slog.Logger
	Cache    *cache.Store
	Remote   *remote.NATS
	Notifier *notify.Dispatcher
}

func (g *Graph) Init(context.Context) error {
	g.Logger = g.Logger.With("component", "social.Graph")
	return nil
}

// IsFollowing reports whether follower already has an edge to followee,
// comparing by canonical key and tolerating legacy entry formats.
func (g *Graph) IsFollowing(ctx context.Context, followerKey, followeeID string) bool {
	followeeKey := CanonicalKey(followeeID)
	list := g.Cache.Following(ctx)[CanonicalKey(followerKey)]
	return slices.ContainsFunc(list, func(e core.FollowEntry) bool {
		return EntryKey(e) == followeeKey
	})
}

// ToggleFollow adds the edge if absent, removes it if present. Returns true
// when the edge now exists. A new edge dispatches a follow notification to
// the followee; removal emits nothing.
func (g *Graph) ToggleFollow(ctx context.Context, follower core.FollowEntry, followeeID, followeeName string) (bool, error) {
	if follower.Key == "" {
		return false, core.ErrNotAuthenticated
	}

	followerKey := CanonicalKey(follower.Key)
	followeeKey := CanonicalKey(followeeID)

	follower.Key = followerKey
	followee := core.FollowEntry{
		ID:    followeeID,
		Key:   followeeKey,
		Name:  followeeName,
		Photo: g.photoFor(ctx, followeeID),
	}

	following := g.Cache.Following(ctx)
	followers := g.Cache.Followers(ctx)

	followed, err := ToggleEdge(following, followers, follower, followee)
	if err != nil {
		return false, err
	}

	if err := g.Cache.StoreFollowing(ctx, following); err != nil {
		return followed, err
	}
	if err := g.Cache.StoreFollowers(ctx, followers); err != nil {
		return followed, err
	}

	g.mirror(remote.BucketFollowing, followerKey, following[followerKey])
	g.mirror(remote.BucketFollowers, followeeKey, followers[followeeKey])

	if followed {
		message := fmt.Sprintf("%s started following you", follower.Name)
		g.Notifier.Dispatch(ctx, followeeKey, core.NotificationFollow, message, core.Actor{
			Name:  follower.Name,
			Photo: follower.Photo,
		})
	}

	return followed, nil
}

// Reconcile repairs the both-lists-or-neither invariant by union: every edge
// found in one list is inserted into the other. Runs against the local cache
// and mirrors repaired lists remotely.
func (g *Graph) Reconcile(ctx context.Context) error {
	following := g.Cache.Following(ctx)
	followers := g.Cache.Followers(ctx)

	changedFollowers := map[string]bool{}
	for followerKey, list := range following {
		for _, followee := range list {
			followeeKey := EntryKey(followee)
			exists := slices.ContainsFunc(followers[followeeKey], func(e core.FollowEntry) bool {
				return EntryKey(e) == followerKey
			})
			if !exists {
				followers[followeeKey] = append(followers[followeeKey], core.FollowEntry{ID: followerKey, Key: followerKey})
				changedFollowers[followeeKey] = true
			}
		}
	}

	changedFollowing := map[string]bool{}
	for followeeKey, list := range followers {
		for _, follower := range list {
			followerKey := EntryKey(follower)
			exists := slices.ContainsFunc(following[followerKey], func(e core.FollowEntry) bool {
				return EntryKey(e) == followeeKey
			})
			if !exists {
				following[followerKey] = append(following[followerKey], core.FollowEntry{ID: followeeKey, Key: followeeKey})
				changedFollowing[followerKey] = true
			}
		}
	}

	if len(changedFollowers) == 0 && len(changedFollowing) == 0 {
		return nil
	}
	g.Logger.Info("repaired follow graph",
		"following", len(changedFollowing), "followers", len(changedFollowers))

	if err := g.Cache.StoreFollowing(ctx, following); err != nil {
		return err
	}
	if err := g.Cache.StoreFollowers(ctx, followers); err != nil {
		return err
	}
	for key := range changedFollowing {
		g.mirror(remote.BucketFollowing, key, following[key])
	}
	for key := range changedFollowers {
		g.mirror(remote.BucketFollowers, key, followers[key])
	}
	return nil
}

// MigrateLegacyKeys folds adjacency lists stored under the email-derived key
// into the account-id key, once per session. New code paths never read the
// legacy key.
func (g *Graph) MigrateLegacyKeys(ctx context.Context, userKey, email string) error {
	if email == "" {
		return nil
	}
	legacyKey := CanonicalKey(email)
	userKey = CanonicalKey(userKey)
	if legacyKey == userKey {
		return nil
	}

	for _, bucket := range []string{remote.BucketFollowing, remote.BucketFollowers} {
		tree := g.Remote.Bucket(bucket)

		legacy, err := g.loadList(ctx, tree, legacyKey)
		if err != nil || len(legacy) == 0 {
			continue
		}
		current, _ := g.loadList(ctx, tree, userKey)

		merged := lo.UniqBy(append(current, legacy...), EntryKey)
		payload, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if err := tree.Put(ctx, userKey, payload); err != nil {
			return err
		}
		if err := tree.Delete(ctx, legacyKey); err != nil {
			g.Logger.Warn("failed to delete legacy adjacency list", "bucket", bucket, "key", legacyKey, "error", err)
		}
		g.Logger.Info("merged legacy adjacency list", "bucket", bucket, "from", legacyKey, "to", userKey, "entries", len(merged))
	}
	return nil
}

func (g *Graph) loadList(ctx context.Context, tree core.TreeStore, key string) ([]core.FollowEntry, error) {
	data, err := tree.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var list []core.FollowEntry
	if err := json.Unmarshal(data, &list); err != nil {
		g.Logger.Error("corrupt adjacency list, ignoring", "key", key, "error", err)
		return nil, nil
	}
	return list, nil
}

// photoFor resolves a user's avatar. The published profile is authoritative;
// cached posts cover users who never announced one.
func (g *Graph) photoFor(ctx context.Context, userID string) string {
	data, err := g.Remote.Bucket(remote.BucketProfiles).Get(ctx, CanonicalKey(userID))
	if err == nil {
		var profile core.Profile
		if err := json.Unmarshal(data, &profile); err == nil && profile.Photo != "" {
			return profile.Photo
		}
	}

	post, found := lo.Find(g.Cache.Posts(ctx), func(p core.Post) bool {
		return p.AuthorID == userID
	})
	if !found {
		return ""
	}
	return post.AuthorPhoto
}

func (g *Graph) mirror(bucket, key string, list []core.FollowEntry) {
	payload, err := json.Marshal(list)
	if err != nil {
		g.Logger.Error("failed to marshal adjacency list", "bucket", bucket, "key", key, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := g.Remote.Bucket(bucket).Put(ctx, key, payload); err != nil {
			g.Logger.Error("failed to mirror adjacency list", "bucket", bucket, "key", key, "error", err)
		}
	}()
}
