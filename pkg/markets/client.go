package markets

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"
)

var ErrAllProvidersFailed = errors.New("all market data providers failed")

type ClientConfig struct {
	CoinGeckoURL string
	CoinCapURL   string
	FearGreedURL string

	GNewsURL         string
	SpaceflightURL   string
	CryptoCompareURL string

	// GNewsAPIKey gates the GNews provider; without it the news chain starts
	// at Spaceflight.
	GNewsAPIKey string

	// RequestTimeout bounds every single provider call. When it fires the
	// losing call is canceled, not left running.
	RequestTimeout time.Duration

	RequestsPerSecond rate.Limit

	TransportSettings *resty.TransportSettings
}

var DefaultConfig = &ClientConfig{
	CoinGeckoURL:      "https://api.coingecko.com",
	CoinCapURL:        "https://api.coincap.io",
	FearGreedURL:      "https://api.alternative.me",
	GNewsURL:          "https://gnews.io",
	SpaceflightURL:    "https://api.spaceflightnewsapi.net",
	CryptoCompareURL:  "https://min-api.cryptocompare.com",
	RequestTimeout:    10 * time.Second,
	RequestsPerSecond: 2,
	TransportSettings: &resty.TransportSettings{
		DialerTimeout:         5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	},
}

// Client fetches market data with a primary/fallback provider chain and a
// short-lived response cache, mirroring the consumption pattern of the
// market widgets: read-only GETs, TTL 60-300s, stale data over no data.
type Client struct {
	cfg     *ClientConfig
	client  *resty.Client
	limiter *rate.Limiter
	cache   *ttlCache
}

func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig
	}
	if cfg.TransportSettings == nil {
		cfg.TransportSettings = DefaultConfig.TransportSettings
	}
	return &Client{
		cfg:     cfg,
		client:  resty.NewWithTransportSettings(cfg.TransportSettings),
		limiter: rate.NewLimiter(cfg.RequestsPerSecond, 1),
		cache:   newTTLCache(),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// withCache serves key from cache while fresh, otherwise runs loader. If
// loader fails and a stale entry exists, the stale entry is returned.
func withCache[T any](ctx context.Context, c *Client, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	if value, fresh, ok := c.cache.Get(key); ok && fresh {
		return value.(T), nil
	}

	fresh, err := loader(ctx)
	if err != nil {
		if value, _, ok := c.cache.Get(key); ok {
			return value.(T), nil
		}
		var zero T
		return zero, err
	}

	c.cache.Set(key, fresh, ttl)
	return fresh, nil
}

// call runs one provider request with its own deadline; the context is
// canceled as soon as the call returns, so a losing provider cannot land a
// late response over a fallback.
func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	return fn(callCtx)
}
