package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	PageSize  = 10
	UserAgent = "Deathstroke-Search/1.0"
)

type Client struct {
	baseURL     string
	apiKey      string
	engineID    string
	resultCount int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *logrus.Logger
}

type Config struct {
	BaseURL     string
	APIKey      string
	EngineID    string
	ResultCount int
	RateLimit   float64 // requests per second, 0 = unlimited
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.ResultCount < PageSize {
		cfg.ResultCount = PageSize
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		engineID:    cfg.EngineID,
		resultCount: cfg.ResultCount,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Search fetches up to the configured result budget for query. Failed pages
// contribute nothing; the returned hits are ranked 1..n in arrival order.
func (c *Client) Search(ctx context.Context, query, locale string) []models.SearchResult {
	pages := c.resultCount / PageSize
	var items []Item

	for i := 0; i < pages; i++ {
		start := i*PageSize + 1

		page, err := c.fetchPage(ctx, query, locale, start)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"query": query,
				"page":  i + 1,
			}).Warn("Search API page failed")
			continue
		}
		if len(page.Items) == 0 {
			c.logger.WithFields(logrus.Fields{
				"query": query,
				"page":  i + 1,
			}).Debug("No items in search API response")
			continue
		}
		items = append(items, page.Items...)
	}

	results := make([]models.SearchResult, 0, len(items))
	for i, item := range items {
		results = append(results, models.SearchResult{
			Link:    item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
			Rank:    float64(i + 1),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"query":   query,
		"locale":  locale,
		"results": len(results),
	}).Debug("Search API completed")

	return results
}

func (c *Client) fetchPage(ctx context.Context, query, locale string, start int) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestURL := c.buildURL(query, locale, start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

func (c *Client) buildURL(query, locale string, start int) string {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("start", strconv.Itoa(start))

	// Only two-letter codes map onto a country restriction.
	if locale = strings.TrimSpace(locale); len(locale) == 2 {
		params.Set("cr", "country"+strings.ToUpper(locale))
	}

	return c.baseURL + "?" + params.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
