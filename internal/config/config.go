package config

type Config struct {
	NATSURL  string `flag:"nats-url"`
	NATSInit bool   `flag:"nats-init"`
	LogLevel string `flag:"log-level"`

	CachePath string `flag:"cache-path"`

	GatewayAddr string `flag:"gateway-listen"`
	MetricsAddr string `flag:"metrics-listen"`

	UserKey   string `flag:"user-key"`
	UserName  string `flag:"user-name"`
	UserEmail string `flag:"user-email"`
	UserPhoto string `flag:"user-photo"`
}
