package fetcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultParallelism = 4
	DefaultUserAgent   = "Deathstroke-Search/1.0"

	indexKey = "link_index"
)

type Config struct {
	Timeout     time.Duration
	Parallelism int
	UserAgent   string
}

// PageFetcher downloads raw page bodies with colly.
type PageFetcher struct {
	config Config
	logger *logrus.Logger
}

func NewPageFetcher(cfg Config, logger *logrus.Logger) *PageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &PageFetcher{config: cfg, logger: logger}
}

// Fetch returns one body per link, in input order. A link that fails to load
// yields an empty string; the batch always completes.
func (f *PageFetcher) Fetch(ctx context.Context, links []string) []string {
	bodies := make([]string, len(links))
	if len(links) == 0 {
		return bodies
	}

	c, err := f.newCollector()
	if err != nil {
		f.logger.WithError(err).Error("Failed to configure page collector")
		return bodies
	}

	var mu sync.Mutex
	c.OnResponse(func(r *colly.Response) {
		idx, ok := linkIndex(r.Ctx, len(bodies))
		if !ok {
			return
		}
		mu.Lock()
		bodies[idx] = string(r.Body)
		mu.Unlock()

		f.logger.WithFields(logrus.Fields{
			"url":       r.Request.URL.String(),
			"status":    r.StatusCode,
			"body_size": len(r.Body),
		}).Debug("Page fetched")
	})

	c.OnError(func(r *colly.Response, err error) {
		fields := logrus.Fields{"status": r.StatusCode}
		if r.Request != nil {
			fields["url"] = r.Request.URL.String()
		}
		f.logger.WithError(err).WithFields(fields).Warn("Page fetch failed")
	})

	for i, link := range links {
		if ctx.Err() != nil {
			f.logger.WithError(ctx.Err()).Warn("Page fetch cancelled")
			break
		}

		reqCtx := colly.NewContext()
		reqCtx.Put(indexKey, strconv.Itoa(i))

		if err := c.Request("GET", link, nil, reqCtx, nil); err != nil {
			f.logger.WithError(err).WithField("url", link).Warn("Page fetch rejected")
		}
	}
	c.Wait()

	return bodies
}

func (f *PageFetcher) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.Async(true),
		// Duplicate links in one result set are fetched again rather than skipped.
		colly.AllowURLRevisit(),
	)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.config.Parallelism,
	}); err != nil {
		return nil, err
	}

	c.SetRequestTimeout(f.config.Timeout)
	return c, nil
}

func linkIndex(ctx *colly.Context, n int) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(ctx.Get(indexKey))
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
