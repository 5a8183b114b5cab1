package flags

import (
	"fmt"
	"slices"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var NATSUrl = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server backing the remote tree",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("NATS_URL"),
}

var InitNATS = &cli.BoolFlag{
	Name:        "nats-init",
	Aliases:     []string{"i"},
	Usage:       "Create the remote tree buckets before starting",
	DefaultText: "false",
	Value:       false,
	Sources:     cli.EnvVars("NATS_INIT"),
}

var LogLevel = &cli.StringFlag{
	Name:    "log-level",
	Aliases: []string{"l"},
	Usage:   "The level of the logs",
	Value:   "info",
	Validator: func(value string) error {
		if !slices.Contains(validLogLevels, value) {
			return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, validLogLevels)
		}
		return nil
	},
	Sources: cli.EnvVars("LOG_LEVEL"),
}

var CachePath = &cli.StringFlag{
	Name:    "cache-path",
	Usage:   "Path to the local cache database file",
	Value:   "nitedsync.db",
	Sources: cli.EnvVars("CACHE_PATH"),
}

var GatewayListen = &cli.StringFlag{
	Name:    "gateway-listen",
	Usage:   "Listen address for the feed gateway",
	Value:   ":8080",
	Sources: cli.EnvVars("GATEWAY_LISTEN"),
}

var MetricsListen = &cli.StringFlag{
	Name:    "metrics-listen",
	Usage:   "Listen address for the metrics server",
	Value:   ":9090",
	Sources: cli.EnvVars("METRICS_LISTEN"),
}

var UserKey = &cli.StringFlag{
	Name:    "user-key",
	Usage:   "Identity key of the local user, overrides the cached profile",
	Sources: cli.EnvVars("USER_KEY"),
}

var UserName = &cli.StringFlag{
	Name:    "user-name",
	Usage:   "Display name of the local user",
	Sources: cli.EnvVars("USER_NAME"),
}

var UserEmail = &cli.StringFlag{
	Name:    "user-email",
	Usage:   "Email of the local user, used for legacy key migration",
	Sources: cli.EnvVars("USER_EMAIL"),
}

var UserPhoto = &cli.StringFlag{
	Name:    "user-photo",
	Usage:   "Avatar URL of the local user",
	Sources: cli.EnvVars("USER_PHOTO"),
}
