package markets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type GlobalStats struct {
	MarketCapUSD       float64
	VolumeUSD          float64
	MarketCapChange24h float64
}

type Price struct {
	ID        string
	PriceUSD  float64
	Change24h float64
}

type TrendingCoin struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Rank   int    `json:"market_cap_rank"`
}

type FearGreed struct {
	Value          int
	Classification string
}

type Exchange struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	TrustScoreRank int     `json:"trust_score_rank"`
	VolumeBTC24h   float64 `json:"trade_volume_24h_btc"`
}

// Global returns aggregate market stats, primary provider first, fallback
// second. TTL 60s.
func (c *Client) Global(ctx context.Context) (GlobalStats, error) {
	return withCache(ctx, c, "global", time.Minute, func(ctx context.Context) (GlobalStats, error) {
		stats, primaryErr := c.globalCoinGecko(ctx)
		if primaryErr == nil {
			return stats, nil
		}

		stats, fallbackErr := c.globalCoinCap(ctx)
		if fallbackErr == nil {
			return stats, nil
		}
		return GlobalStats{}, fmt.Errorf("%w: %s; %s", ErrAllProvidersFailed, primaryErr, fallbackErr)
	})
}

// Prices returns USD prices for the given asset ids. TTL 60s per id set.
func (c *Client) Prices(ctx context.Context, ids ...string) (map[string]Price, error) {
	key := "prices:" + strings.Join(ids, ",")
	return withCache(ctx, c, key, time.Minute, func(ctx context.Context) (map[string]Price, error) {
		prices, primaryErr := c.pricesCoinGecko(ctx, ids)
		if primaryErr == nil {
			return prices, nil
		}

		prices, fallbackErr := c.pricesCoinCap(ctx, ids)
		if fallbackErr == nil {
			return prices, nil
		}
		return nil, fmt.Errorf("%w: %s; %s", ErrAllProvidersFailed, primaryErr, fallbackErr)
	})
}

// Trending returns the currently trending coins. Single provider, TTL 300s.
func (c *Client) Trending(ctx context.Context) ([]TrendingCoin, error) {
	return withCache(ctx, c, "trending", 5*time.Minute, func(ctx context.Context) ([]TrendingCoin, error) {
		type item struct {
			Item TrendingCoin `json:"item"`
		}
		type response struct {
			Coins []item `json:"coins"`
		}

		var result response
		err := c.call(ctx, func(ctx context.Context) error {
			res, err := c.r(ctx).
				SetResult(&result).
				Get(c.cfg.CoinGeckoURL + "/api/v3/search/trending")
			if err != nil {
				return err
			}
			if res.IsError() {
				return fmt.Errorf("trending request failed: %s", res.Status())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		return lo.Map(result.Coins, func(i item, _ int) TrendingCoin {
			return i.Item
		}), nil
	})
}

// Exchanges returns the top exchanges by trust rank. Single provider,
// TTL 300s.
func (c *Client) Exchanges(ctx context.Context) ([]Exchange, error) {
	return withCache(ctx, c, "exchanges", 5*time.Minute, func(ctx context.Context) ([]Exchange, error) {
		var result []Exchange
		err := c.call(ctx, func(ctx context.Context) error {
			res, err := c.r(ctx).
				SetResult(&result).
				Get(c.cfg.CoinGeckoURL + "/api/v3/exchanges")
			if err != nil {
				return err
			}
			if res.IsError() {
				return fmt.Errorf("exchanges request failed: %s", res.Status())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// Sentiment returns the fear & greed index. Single provider, TTL 15m.
func (c *Client) Sentiment(ctx context.Context) (FearGreed, error) {
	return withCache(ctx, c, "feargreed", 15*time.Minute, func(ctx context.Context) (FearGreed, error) {
		type entry struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
		}
		type response struct {
			Data []entry `json:"data"`
		}

		var result response
		err := c.call(ctx, func(ctx context.Context) error {
			res, err := c.r(ctx).
				SetResult(&result).
				Get(c.cfg.FearGreedURL + "/fng/")
			if err != nil {
				return err
			}
			if res.IsError() {
				return fmt.Errorf("sentiment request failed: %s", res.Status())
			}
			return nil
		})
		if err != nil {
			return FearGreed{}, err
		}
		if len(result.Data) == 0 {
			return FearGreed{}, fmt.Errorf("sentiment response is empty")
		}

		value, err := strconv.Atoi(result.Data[0].Value)
		if err != nil {
			return FearGreed{}, err
		}
		return FearGreed{Value: value, Classification: result.Data[0].Classification}, nil
	})
}

func (c *Client) globalCoinGecko(ctx context.Context) (GlobalStats, error) {
	type response struct {
		Data struct {
			TotalMarketCap        map[string]float64 `json:"total_market_cap"`
			TotalVolume           map[string]float64 `json:"total_volume"`
			MarketCapChangePct24h float64            `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}

	var result response
	err := c.call(ctx, func(ctx context.Context) error {
		res, err := c.r(ctx).
			SetResult(&result).
			Get(c.cfg.CoinGeckoURL + "/api/v3/global")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("global request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return GlobalStats{}, err
	}

	return GlobalStats{
		MarketCapUSD:       result.Data.TotalMarketCap["usd"],
		VolumeUSD:          result.Data.TotalVolume["usd"],
		MarketCapChange24h: result.Data.MarketCapChangePct24h,
	}, nil
}

func (c *Client) globalCoinCap(ctx context.Context) (GlobalStats, error) {
	// CoinCap has no global endpoint; approximate from the top assets.
	prices, err := c.assetsCoinCap(ctx, nil)
	if err != nil {
		return GlobalStats{}, err
	}

	var stats GlobalStats
	for _, asset := range prices {
		stats.MarketCapUSD += asset.marketCapUSD
		stats.VolumeUSD += asset.volumeUSD
	}
	return stats, nil
}

func (c *Client) pricesCoinGecko(ctx context.Context, ids []string) (map[string]Price, error) {
	result := map[string]map[string]float64{}
	err := c.call(ctx, func(ctx context.Context) error {
		res, err := c.r(ctx).
			SetQueryParams(map[string]string{
				"ids":                 strings.Join(ids, ","),
				"vs_currencies":       "usd",
				"include_24hr_change": "true",
			}).
			SetResult(&result).
			Get(c.cfg.CoinGeckoURL + "/api/v3/simple/price")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("price request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prices := map[string]Price{}
	for id, fields := range result {
		prices[id] = Price{
			ID:        id,
			PriceUSD:  fields["usd"],
			Change24h: fields["usd_24h_change"],
		}
	}
	return prices, nil
}

type coinCapAsset struct {
	ID           string
	priceUSD     float64
	change24h    float64
	marketCapUSD float64
	volumeUSD    float64
}

func (c *Client) pricesCoinCap(ctx context.Context, ids []string) (map[string]Price, error) {
	assets, err := c.assetsCoinCap(ctx, ids)
	if err != nil {
		return nil, err
	}

	prices := map[string]Price{}
	for _, asset := range assets {
		prices[asset.ID] = Price{ID: asset.ID, PriceUSD: asset.priceUSD, Change24h: asset.change24h}
	}
	return prices, nil
}

func (c *Client) assetsCoinCap(ctx context.Context, ids []string) ([]coinCapAsset, error) {
	type asset struct {
		ID               string `json:"id"`
		PriceUSD         string `json:"priceUsd"`
		ChangePercent24h string `json:"changePercent24Hr"`
		MarketCapUSD     string `json:"marketCapUsd"`
		VolumeUSD24h     string `json:"volumeUsd24Hr"`
	}
	type response struct {
		Data []asset `json:"data"`
	}

	var result response
	err := c.call(ctx, func(ctx context.Context) error {
		req := c.r(ctx).SetResult(&result)
		if len(ids) > 0 {
			req.SetQueryParam("ids", strings.Join(ids, ","))
		}
		res, err := req.Get(c.cfg.CoinCapURL + "/v2/assets")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("assets request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(result.Data, func(a asset, _ int) coinCapAsset {
		return coinCapAsset{
			ID:           a.ID,
			priceUSD:     parseFloat(a.PriceUSD),
			change24h:    parseFloat(a.ChangePercent24h),
			marketCapUSD: parseFloat(a.MarketCapUSD),
			volumeUSD:    parseFloat(a.VolumeUSD24h),
		}
	}), nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
