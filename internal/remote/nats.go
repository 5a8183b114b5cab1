package remote

import (
	"context"
	"log/slog"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"nitedsync/internal/config"
	"nitedsync/internal/core"
	"nitedsync/pkg/retry"
)

// Buckets are the remote tree namespaces, one JetStream KV bucket each.
const (
	BucketPosts         = "posts"
	BucketStories       = "stories"
	BucketFollowing     = "following"
	BucketFollowers     = "followers"
	BucketNotifications = "notifications"
	BucketChats         = "chats"
	BucketProfiles      = "profiles"
)

var buckets = []string{
	BucketPosts, BucketStories, BucketFollowing, BucketFollowers,
	BucketNotifications, BucketChats, BucketProfiles,
}

// NATS owns the connection to the remote tree store and hands out its
// namespaces as TreeStore buckets.
type NATS struct {
	Logger *slog.Logger
	Config *config.Config

	JS jetstream.JetStream
	kv map[string]jetstream.KeyValue
}

func (n *NATS) Init(ctx context.Context) error {
	n.Logger = n.Logger.With("component", "remote.NATS")

	connect := retry.WrapWithRetry(func() error {
		nc, err := libnats.Connect(n.Config.NATSURL)
		if err != nil {
			return err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return err
		}
		n.JS = js
		return nil
	}, func(err error, attempt int) bool {
		n.Logger.Warn("remote tree connect failed, retrying", "attempt", attempt, "error", err)
		return true
	}, 5, time.Second)

	if err := connect(); err != nil {
		return err
	}

	if n.Config.NATSInit {
		if err := n.initBuckets(ctx); err != nil {
			return err
		}
	}

	n.kv = map[string]jetstream.KeyValue{}
	for _, name := range buckets {
		kv, err := n.JS.KeyValue(ctx, name)
		if err != nil {
			return err
		}
		n.kv[name] = kv
	}

	return nil
}

func (n *NATS) HealthCheck(context.Context) error {
	_, err := n.JS.Conn().RTT()
	return err
}

func (n *NATS) Shutdown(context.Context) error {
	return n.JS.Conn().Drain()
}

// Bucket returns the named namespace. Unknown names panic: the set of
// namespaces is closed and fixed at startup.
func (n *NATS) Bucket(name string) core.TreeStore {
	kv, ok := n.kv[name]
	if !ok {
		panic("unknown remote bucket: " + name)
	}
	return &KV{kv: kv, logger: n.Logger}
}

func (n *NATS) initBuckets(ctx context.Context) error {
	n.Logger.Info("initializing remote tree buckets")
	for _, name := range buckets {
		_, err := n.JS.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket: name,
		})
		if err != nil {
			return err
		}
		n.Logger.Info("bucket created or updated", "name", name)
	}
	return nil
}
