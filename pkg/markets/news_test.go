package markets_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"nitedsync/pkg/markets"
)

func newsTestConfig(gnews, spaceflight, cryptoCompare string) *markets.ClientConfig {
	return &markets.ClientConfig{
		CoinGeckoURL:      "http://invalid.invalid",
		CoinCapURL:        "http://invalid.invalid",
		FearGreedURL:      "http://invalid.invalid",
		GNewsURL:          gnews,
		SpaceflightURL:    spaceflight,
		CryptoCompareURL:  cryptoCompare,
		RequestTimeout:    time.Second,
		RequestsPerSecond: rate.Inf,
	}
}

func TestClient_News(t *testing.T) {
	t.Parallel()

	t.Run("gnews answers first when a key is configured", func(t *testing.T) {
		t.Parallel()

		gnews := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v4/search", r.URL.Path)
			require.Equal(t, "secret", r.URL.Query().Get("apikey"))
			require.Equal(t, "3", r.URL.Query().Get("max"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"articles":[{"title":"BTC rallies","description":"up only","url":"https://example.com/btc","image":"https://example.com/btc.png","publishedAt":"2026-08-30T10:00:00Z","source":{"name":"Example Wire"}}]}`))
		}))
		defer gnews.Close()

		cfg := newsTestConfig(gnews.URL, "http://invalid.invalid", "http://invalid.invalid")
		cfg.GNewsAPIKey = "secret"

		client := markets.NewClient(cfg)
		defer client.Close()

		articles, err := client.News(t.Context(), 3)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		require.Equal(t, "BTC rallies", articles[0].Title)
		require.Equal(t, "Example Wire", articles[0].Source)
	})

	t.Run("starts at spaceflight without a key", func(t *testing.T) {
		t.Parallel()

		spaceflight := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v4/articles/", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"results":[{"title":"Launch update","summary":"a launch","url":"https://example.com/l","image_url":"https://example.com/l.png","news_site":"SF News","published_at":"2026-08-30T09:00:00Z"}]}`))
		}))
		defer spaceflight.Close()

		client := markets.NewClient(newsTestConfig("http://invalid.invalid", spaceflight.URL, "http://invalid.invalid"))
		defer client.Close()

		articles, err := client.News(t.Context(), 5)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		require.Equal(t, "SF News", articles[0].Source)
	})

	t.Run("falls back to cryptocompare and trims to the limit", func(t *testing.T) {
		t.Parallel()

		spaceflight := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer spaceflight.Close()

		cryptoCompare := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/data/v2/news/", r.URL.Path)
			require.Equal(t, "EN", r.URL.Query().Get("lang"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"Data":[{"title":"one","body":"b1","url":"u1","imageurl":"i1","source":"cc","published_on":1756540800},{"title":"two","body":"b2","url":"u2","imageurl":"i2","source":"cc","published_on":1756540900}]}`))
		}))
		defer cryptoCompare.Close()

		client := markets.NewClient(newsTestConfig("http://invalid.invalid", spaceflight.URL, cryptoCompare.URL))
		defer client.Close()

		articles, err := client.News(t.Context(), 1)
		require.NoError(t, err)
		require.Len(t, articles, 1)
		require.Equal(t, "one", articles[0].Title)
		require.Equal(t, time.Unix(1756540800, 0).UTC(), articles[0].PublishedAt)
	})

	t.Run("all providers down", func(t *testing.T) {
		t.Parallel()

		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer down.Close()

		client := markets.NewClient(newsTestConfig("http://invalid.invalid", down.URL, down.URL))
		defer client.Close()

		_, err := client.News(t.Context(), 5)
		require.ErrorIs(t, err, markets.ErrAllProvidersFailed)
	})
}
