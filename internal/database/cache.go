package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Cache key constants
const (
	SearchResultsKey    = "search:results:%s"
	SearchGenerationKey = "search:generation:%s"
	DefaultCacheTTL     = 10 * time.Minute
)

var ErrFeedbackUnsupported = errors.New("backing store does not report feedback")

// CachedStore puts a redis read-through cache in front of a models.ResultStore.
// Redis is an accelerator only: any redis failure falls through to the backing store.
//
// Every Insert bumps a per-identity generation key. A cache fill watches that
// key, so a set read while rows are still being inserted is never cached.
type CachedStore struct {
	store  models.ResultStore
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedStore(store models.ResultStore, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(identity models.QueryIdentity) string {
	return fmt.Sprintf(SearchResultsKey, identity)
}

func generationKey(identity models.QueryIdentity) string {
	return fmt.Sprintf(SearchGenerationKey, identity)
}

func (c *CachedStore) QueryResults(ctx context.Context, identity models.QueryIdentity) ([]models.SearchResult, error) {
	key := cacheKey(identity)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var results []models.SearchResult
		if err := json.Unmarshal(data, &results); err == nil {
			c.logger.WithField("query", identity).Debug("Stored results served from redis")
			return results, nil
		}
		c.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).Warn("Redis lookup failed")
	}

	var (
		results  []models.SearchResult
		storeErr error
		loaded   bool
	)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		results, storeErr = c.store.QueryResults(ctx, identity)
		loaded = true
		if storeErr != nil || len(results) == 0 {
			return storeErr
		}

		payload, err := json.Marshal(results)
		if err != nil {
			return fmt.Errorf("failed to marshal search results: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, generationKey(identity))

	if !loaded {
		c.logger.WithError(err).Warn("Redis watch failed, reading backing store")
		return c.store.QueryResults(ctx, identity)
	}
	if storeErr != nil {
		return nil, storeErr
	}
	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr):
		c.logger.WithField("query", identity).Debug("Results changed while loading, not cached")
	default:
		c.logger.WithError(err).Warn("Failed to cache stored results")
	}
	return results, nil
}

// Insert writes through, then bumps the identity's generation and drops its cached set.
func (c *CachedStore) Insert(ctx context.Context, result models.SearchResult) error {
	if err := c.store.Insert(ctx, result); err != nil {
		return err
	}
	if err := c.invalidate(ctx, result.Query); err != nil {
		c.logger.WithError(err).Warn("Failed to invalidate cached results")
	}
	return nil
}

func (c *CachedStore) UpdateRelevance(ctx context.Context, identity models.QueryIdentity, link string, delta float64) error {
	return c.store.UpdateRelevance(ctx, identity, link, delta)
}

// FeedbackTotals is served by the backing store; feedback is never cached.
func (c *CachedStore) FeedbackTotals(ctx context.Context, identity models.QueryIdentity) (map[string]float64, error) {
	reader, ok := c.store.(models.FeedbackReader)
	if !ok {
		return nil, ErrFeedbackUnsupported
	}
	return reader.FeedbackTotals(ctx, identity)
}

func (c *CachedStore) invalidate(ctx context.Context, identity models.QueryIdentity) error {
	genKey := generationKey(identity)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, 2*c.ttl)
		pipe.Del(ctx, cacheKey(identity))
		return nil
	})
	return err
}
