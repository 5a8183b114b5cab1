package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"nitedsync/internal/cache"
	"nitedsync/internal/chat"
	"nitedsync/internal/cmd/flags"
	"nitedsync/internal/fanout"
	"nitedsync/internal/gateway"
	"nitedsync/internal/ledger"
	"nitedsync/internal/merge"
	"nitedsync/internal/metrics"
	"nitedsync/internal/notify"
	"nitedsync/internal/remote"
	"nitedsync/internal/session"
	"nitedsync/internal/social"
	"nitedsync/internal/stories"
)

var syncCmd = &cli.Command{
	Name:  "sync",
	Usage: "Reconcile the local cache with the remote tree and stream live updates",
	Flags: []cli.Flag{
		flags.NATSUrl,
		flags.InitNATS,
		flags.CachePath,
		flags.GatewayListen,
		flags.MetricsListen,
		flags.UserKey,
		flags.UserName,
		flags.UserEmail,
		flags.UserPhoto,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			pal.Provide(&remote.NATS{}),
			pal.Provide(&cache.Store{}),
			pal.Provide(&session.Session{}),
			pal.Provide(&notify.Dispatcher{}),
			pal.Provide(&social.Graph{}),
			pal.Provide(&merge.Reconciler{}),
			pal.Provide(&ledger.Ledger{}),
			pal.Provide(&chat.Service{}),
			pal.Provide(&stories.Service{}),
			pal.Provide(&gateway.API{}),
			pal.Provide(&gateway.Hub{}),
			pal.Provide(&fanout.Fanout{}),
			pal.Provide(&metrics.Server{}),
			pal.Provide(&syncer{}),
		)
	},
}

// syncer drives the startup sequence: legacy key migration and the profile
// announcement, then the full reconciliation pass, then the graph invariant
// repair, then the live subscriptions. Ordering matters: the fan-out seeds
// its known-id set from the reconciled cache.
type syncer struct {
	Logger     *slog.Logger
	Session    *session.Session
	Remote     *remote.NATS
	Graph      *social.Graph
	Reconciler *merge.Reconciler
	Fanout     *fanout.Fanout
}

func (s *syncer) Run(ctx context.Context) error {
	for {
		err := s.run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			s.Logger.Error("sync failed, retrying in 1 second", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}
		return nil
	}
}

func (s *syncer) run(ctx context.Context) error {
	if s.Session.Authenticated() {
		err := s.Graph.MigrateLegacyKeys(ctx, s.Session.UserKey, s.Session.Email)
		if err != nil {
			return err
		}

		err = s.Session.PublishProfile(ctx, s.Remote.Bucket(remote.BucketProfiles))
		if err != nil {
			return err
		}
	}

	if err := s.Reconciler.Sync(ctx); err != nil {
		return err
	}

	if err := s.Graph.Reconcile(ctx); err != nil {
		return err
	}

	return s.Fanout.Consume(ctx)
}
