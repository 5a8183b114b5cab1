package markets_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"nitedsync/pkg/markets"
)

func testConfig(coinGecko, coinCap, fearGreed string) *markets.ClientConfig {
	return &markets.ClientConfig{
		CoinGeckoURL:      coinGecko,
		CoinCapURL:        coinCap,
		FearGreedURL:      fearGreed,
		RequestTimeout:    time.Second,
		RequestsPerSecond: rate.Inf,
	}
}

func TestClient_Global(t *testing.T) {
	t.Parallel()

	t.Run("primary provider", func(t *testing.T) {
		t.Parallel()

		gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v3/global", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":{"total_market_cap":{"usd":1000},"total_volume":{"usd":50},"market_cap_change_percentage_24h_usd":1.5}}`))
		}))
		defer gecko.Close()

		client := markets.NewClient(testConfig(gecko.URL, "http://invalid.invalid", "http://invalid.invalid"))
		defer client.Close()

		stats, err := client.Global(t.Context())
		require.NoError(t, err)
		require.Equal(t, float64(1000), stats.MarketCapUSD)
		require.Equal(t, float64(50), stats.VolumeUSD)
		require.Equal(t, 1.5, stats.MarketCapChange24h)
	})

	t.Run("falls back to the secondary provider", func(t *testing.T) {
		t.Parallel()

		gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer gecko.Close()

		coincap := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v2/assets", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"id":"bitcoin","priceUsd":"50000","marketCapUsd":"900","volumeUsd24Hr":"30"},{"id":"ethereum","priceUsd":"3000","marketCapUsd":"100","volumeUsd24Hr":"20"}]}`))
		}))
		defer coincap.Close()

		client := markets.NewClient(testConfig(gecko.URL, coincap.URL, "http://invalid.invalid"))
		defer client.Close()

		stats, err := client.Global(t.Context())
		require.NoError(t, err)
		require.Equal(t, float64(1000), stats.MarketCapUSD)
		require.Equal(t, float64(50), stats.VolumeUSD)
	})

	t.Run("all providers down", func(t *testing.T) {
		t.Parallel()

		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer down.Close()

		client := markets.NewClient(testConfig(down.URL, down.URL, down.URL))
		defer client.Close()

		_, err := client.Global(t.Context())
		require.ErrorIs(t, err, markets.ErrAllProvidersFailed)
	})
}

func TestClient_Prices(t *testing.T) {
	t.Parallel()

	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/simple/price", r.URL.Path)
		require.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":50000,"usd_24h_change":2.5},"ethereum":{"usd":3000,"usd_24h_change":-1.2}}`))
	}))
	defer gecko.Close()

	client := markets.NewClient(testConfig(gecko.URL, "http://invalid.invalid", "http://invalid.invalid"))
	defer client.Close()

	prices, err := client.Prices(t.Context(), "bitcoin", "ethereum")
	require.NoError(t, err)
	require.Equal(t, float64(50000), prices["bitcoin"].PriceUSD)
	require.Equal(t, 2.5, prices["bitcoin"].Change24h)
	require.Equal(t, -1.2, prices["ethereum"].Change24h)
}

func TestClient_Sentiment(t *testing.T) {
	t.Parallel()

	fng := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fng/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"value":"71","value_classification":"Greed"}]}`))
	}))
	defer fng.Close()

	client := markets.NewClient(testConfig("http://invalid.invalid", "http://invalid.invalid", fng.URL))
	defer client.Close()

	sentiment, err := client.Sentiment(t.Context())
	require.NoError(t, err)
	require.Equal(t, 71, sentiment.Value)
	require.Equal(t, "Greed", sentiment.Classification)
}

func TestClient_Exchanges(t *testing.T) {
	t.Parallel()

	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/exchanges", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"binance","name":"Binance","trust_score_rank":1,"trade_volume_24h_btc":150000.5}]`))
	}))
	defer gecko.Close()

	client := markets.NewClient(testConfig(gecko.URL, "http://invalid.invalid", "http://invalid.invalid"))
	defer client.Close()

	exchanges, err := client.Exchanges(t.Context())
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	require.Equal(t, "binance", exchanges[0].ID)
	require.Equal(t, 1, exchanges[0].TrustScoreRank)
}

func TestClient_CachesResponses(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"total_market_cap":{"usd":1},"total_volume":{"usd":1},"market_cap_change_percentage_24h_usd":0}}`))
	}))
	defer gecko.Close()

	client := markets.NewClient(testConfig(gecko.URL, "http://invalid.invalid", "http://invalid.invalid"))
	defer client.Close()

	_, err := client.Global(t.Context())
	require.NoError(t, err)
	_, err = client.Global(t.Context())
	require.NoError(t, err)

	require.Equal(t, int64(1), hits.Load())
}
