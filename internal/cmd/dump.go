package cmd

import (
	"context"
	"log/slog"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"

	"nitedsync/internal/cache"
	"nitedsync/internal/cmd/flags"
)

var dumpCmd = &cli.Command{
	Name:  "dump",
	Usage: "Pretty-print the local cache contents",
	Flags: []cli.Flag{
		flags.CachePath,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		cfg, err := parseConfig(c)
		if err != nil {
			return err
		}

		store := &cache.Store{Logger: slog.Default(), Config: cfg}
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Shutdown(ctx) //nolint:errcheck

		if profile, ok := store.CurrentUser(ctx); ok {
			pp.Println("currentUser", profile)
		}
		pp.Println("posts", store.Posts(ctx))
		pp.Println("stories", store.Stories(ctx))
		pp.Println("following", store.Following(ctx))
		pp.Println("followers", store.Followers(ctx))

		return nil
	},
}
