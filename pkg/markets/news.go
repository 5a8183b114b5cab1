package markets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type NewsArticle struct {
	Title       string
	Description string
	URL         string
	Image       string
	Source      string
	PublishedAt time.Time
}

// News returns recent crypto headlines through the provider chain: GNews
// when an API key is configured, then Spaceflight, then CryptoCompare. Each
// provider normalizes into NewsArticle so callers never see which one
// answered. TTL 300s.
func (c *Client) News(ctx context.Context, limit int) ([]NewsArticle, error) {
	key := "news:" + strconv.Itoa(limit)
	return withCache(ctx, c, key, 5*time.Minute, func(ctx context.Context) ([]NewsArticle, error) {
		var errs []error

		if c.cfg.GNewsAPIKey != "" {
			articles, err := c.newsGNews(ctx, limit)
			if err == nil {
				return articles, nil
			}
			errs = append(errs, err)
		}

		articles, err := c.newsSpaceflight(ctx, limit)
		if err == nil {
			return articles, nil
		}
		errs = append(errs, err)

		articles, err = c.newsCryptoCompare(ctx, limit)
		if err == nil {
			return articles, nil
		}
		errs = append(errs, err)

		return nil, fmt.Errorf("%w: %s", ErrAllProvidersFailed, joinErrors(errs))
	})
}

func (c *Client) newsGNews(ctx context.Context, limit int) ([]NewsArticle, error) {
	type article struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		Image       string    `json:"image"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	}
	type response struct {
		Articles []article `json:"articles"`
	}

	var result response
	err := c.call(ctx, func(ctx context.Context) error {
		res, err := c.r(ctx).
			SetQueryParams(map[string]string{
				"q":      "crypto OR bitcoin",
				"lang":   "en",
				"max":    strconv.Itoa(limit),
				"apikey": c.cfg.GNewsAPIKey,
			}).
			SetResult(&result).
			Get(c.cfg.GNewsURL + "/api/v4/search")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("gnews request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(result.Articles, func(a article, _ int) NewsArticle {
		return NewsArticle{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Image:       a.Image,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		}
	}), nil
}

func (c *Client) newsSpaceflight(ctx context.Context, limit int) ([]NewsArticle, error) {
	type article struct {
		Title       string    `json:"title"`
		Summary     string    `json:"summary"`
		URL         string    `json:"url"`
		ImageURL    string    `json:"image_url"`
		NewsSite    string    `json:"news_site"`
		PublishedAt time.Time `json:"published_at"`
	}
	type response struct {
		Results []article `json:"results"`
	}

	var result response
	err := c.call(ctx, func(ctx context.Context) error {
		res, err := c.r(ctx).
			SetQueryParam("limit", strconv.Itoa(limit)).
			SetResult(&result).
			Get(c.cfg.SpaceflightURL + "/v4/articles/")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("spaceflight request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(result.Results, func(a article, _ int) NewsArticle {
		return NewsArticle{
			Title:       a.Title,
			Description: a.Summary,
			URL:         a.URL,
			Image:       a.ImageURL,
			Source:      a.NewsSite,
			PublishedAt: a.PublishedAt,
		}
	}), nil
}

func (c *Client) newsCryptoCompare(ctx context.Context, limit int) ([]NewsArticle, error) {
	type article struct {
		Title       string `json:"title"`
		Body        string `json:"body"`
		URL         string `json:"url"`
		ImageURL    string `json:"imageurl"`
		Source      string `json:"source"`
		PublishedOn int64  `json:"published_on"`
	}
	type response struct {
		Data []article `json:"Data"`
	}

	var result response
	err := c.call(ctx, func(ctx context.Context) error {
		res, err := c.r(ctx).
			SetQueryParam("lang", "EN").
			SetResult(&result).
			Get(c.cfg.CryptoCompareURL + "/data/v2/news/")
		if err != nil {
			return err
		}
		if res.IsError() {
			return fmt.Errorf("cryptocompare request failed: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	articles := lo.Map(result.Data, func(a article, _ int) NewsArticle {
		return NewsArticle{
			Title:       a.Title,
			Description: a.Body,
			URL:         a.URL,
			Image:       a.ImageURL,
			Source:      a.Source,
			PublishedAt: time.Unix(a.PublishedOn, 0).UTC(),
		}
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func joinErrors(errs []error) string {
	return strings.Join(lo.Map(errs, func(err error, _ int) string {
		return err.Error()
	}), "; ")
}
