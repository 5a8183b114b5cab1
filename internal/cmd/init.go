package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"nitedsync/internal/cmd/flags"
	"nitedsync/internal/remote"
)

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "Create the remote tree buckets and exit",
	Flags: []cli.Flag{
		flags.NATSUrl,
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		cfg, err := parseConfig(c)
		if err != nil {
			return err
		}
		cfg.NATSInit = true

		n := &remote.NATS{Logger: slog.Default(), Config: cfg}
		if err := n.Init(ctx); err != nil {
			return err
		}
		return n.Shutdown(ctx)
	},
}
