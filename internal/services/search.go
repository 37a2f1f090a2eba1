// internal/services/search.go
package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/sirupsen/logrus"
)

// RelevanceDelta is the rank credit recorded for one "relevant" mark.
const RelevanceDelta = 10.0

var ErrFeedbackUnavailable = errors.New("result store does not report feedback totals")

// SearchClient returns ranked hits for a query; failures yield an empty slice.
type SearchClient interface {
	Search(ctx context.Context, query, locale string) []models.SearchResult
}

// PageFetcher returns one body per link, "" for links that could not be fetched.
type PageFetcher interface {
	Fetch(ctx context.Context, links []string) []string
}

// Enhancer is the LLM stage. Each method returns its input unchanged alongside
// a non-nil error when the whole stage had to be abandoned.
type Enhancer interface {
	ExpandQuery(ctx context.Context, query, locale string) (string, error)
	RankSemantically(ctx context.Context, query string, results []models.SearchResult) ([]models.SearchResult, error)
	FilterContent(ctx context.Context, results []models.SearchResult) ([]models.SearchResult, error)
	GenerateImprovedSnippets(ctx context.Context, results []models.SearchResult) ([]models.SearchResult, error)
}

type SearchService struct {
	client   SearchClient
	fetcher  PageFetcher
	enhancer Enhancer
	store    models.ResultStore
	now      func() time.Time
	logger   *logrus.Logger
}

type Option func(*SearchService)

// WithClock overrides the timestamp stamped on fresh results.
func WithClock(now func() time.Time) Option {
	return func(s *SearchService) { s.now = now }
}

// NewSearchService wires the pipeline. enhancer may be nil, in which case
// queries are neither expanded nor re-ranked.
func NewSearchService(
	client SearchClient,
	fetcher PageFetcher,
	enhancer Enhancer,
	store models.ResultStore,
	logger *logrus.Logger,
	opts ...Option,
) *SearchService {
	s := &SearchService{
		client:   client,
		fetcher:  fetcher,
		enhancer: enhancer,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search serves stored results for the query identity when there are any, and
// otherwise runs a fresh search, enhances it and persists it. It never fails:
// every external problem degrades to a smaller or less refined result set.
func (s *SearchService) Search(ctx context.Context, rawQuery, locale string) []models.SearchResult {
	identity := models.NewQueryIdentity(rawQuery, locale)
	log := s.logger.WithFields(logrus.Fields{
		"query":  rawQuery,
		"locale": locale,
	})

	expanded := s.expand(ctx, rawQuery, locale)

	stored, err := s.store.QueryResults(ctx, identity)
	if err != nil {
		log.WithError(err).Warn("Stored results lookup failed, searching fresh")
	}
	if len(stored) > 0 {
		log.WithField("stored_results", len(stored)).Debug("Serving stored results")
		results := s.rescore(ctx, rawQuery, stored)
		sortByRank(results)
		return results
	}

	results := s.client.Search(ctx, expanded, locale)
	if len(results) == 0 && expanded != rawQuery {
		log.WithField("expanded_query", expanded).Info("Expanded query returned nothing, retrying with original query")
		results = s.client.Search(ctx, rawQuery, locale)
	}
	if len(results) == 0 {
		log.Info("No results found")
		return []models.SearchResult{}
	}

	results = s.attachBodies(ctx, results)
	if len(results) == 0 {
		log.Info("No result pages could be fetched")
		return []models.SearchResult{}
	}

	created := s.now()
	for i := range results {
		results[i].Query = identity
		results[i].CreatedAt = created
	}

	results = s.enhance(ctx, rawQuery, results)
	sortByRank(results)
	s.persist(ctx, results)

	log.WithField("results", len(results)).Info("Search completed")
	return results
}

// MarkRelevant records that link answered the query in the given locale.
func (s *SearchService) MarkRelevant(ctx context.Context, rawQuery, locale, link string) error {
	identity := models.NewQueryIdentity(rawQuery, locale)
	if err := s.store.UpdateRelevance(ctx, identity, link, RelevanceDelta); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"query": identity,
			"link":  link,
		}).Error("Failed to record relevance feedback")
		return err
	}
	return nil
}

// RelevanceTotals returns the summed feedback per link for the query in the given locale.
func (s *SearchService) RelevanceTotals(ctx context.Context, rawQuery, locale string) (map[string]float64, error) {
	reader, ok := s.store.(models.FeedbackReader)
	if !ok {
		return nil, ErrFeedbackUnavailable
	}
	return reader.FeedbackTotals(ctx, models.NewQueryIdentity(rawQuery, locale))
}

func (s *SearchService) expand(ctx context.Context, rawQuery, locale string) string {
	if s.enhancer == nil {
		return rawQuery
	}
	expanded, err := s.enhancer.ExpandQuery(ctx, rawQuery, locale)
	if err != nil || expanded == "" {
		s.logger.WithError(err).WithField("query", rawQuery).Warn("Query expansion failed, using original query")
		return rawQuery
	}
	return expanded
}

// attachBodies fetches every link and keeps only results with a non-empty body.
func (s *SearchService) attachBodies(ctx context.Context, results []models.SearchResult) []models.SearchResult {
	links := make([]string, len(results))
	for i, r := range results {
		links[i] = r.Link
	}
	bodies := s.fetcher.Fetch(ctx, links)

	kept := results[:0:0]
	for i, r := range results {
		if i >= len(bodies) || bodies[i] == "" {
			s.logger.WithField("link", r.Link).Debug("Dropping result without page body")
			continue
		}
		r.HTML = bodies[i]
		kept = append(kept, r)
	}
	return kept
}

type stage struct {
	name string
	run  func(context.Context, []models.SearchResult) ([]models.SearchResult, error)
}

func (s *SearchService) rescore(ctx context.Context, query string, results []models.SearchResult) []models.SearchResult {
	if s.enhancer == nil {
		return results
	}
	return s.runStages(ctx, results,
		stage{"semantic_rank", func(ctx context.Context, r []models.SearchResult) ([]models.SearchResult, error) {
			return s.enhancer.RankSemantically(ctx, query, r)
		}},
		stage{"content_filter", s.enhancer.FilterContent},
	)
}

func (s *SearchService) enhance(ctx context.Context, query string, results []models.SearchResult) []models.SearchResult {
	if s.enhancer == nil {
		return results
	}
	return s.runStages(ctx, results,
		stage{"semantic_rank", func(ctx context.Context, r []models.SearchResult) ([]models.SearchResult, error) {
			return s.enhancer.RankSemantically(ctx, query, r)
		}},
		stage{"content_filter", s.enhancer.FilterContent},
		stage{"snippets", s.enhancer.GenerateImprovedSnippets},
	)
}

// runStages applies stages in order. A failed stage keeps the previous output.
func (s *SearchService) runStages(ctx context.Context, results []models.SearchResult, stages ...stage) []models.SearchResult {
	for _, st := range stages {
		out, err := st.run(ctx, results)
		if err != nil || len(out) != len(results) {
			s.logger.WithError(err).WithField("stage", st.name).Warn("Enhancement stage abandoned")
			continue
		}
		results = out
	}
	return results
}

func (s *SearchService) persist(ctx context.Context, results []models.SearchResult) {
	failed := 0
	for _, r := range results {
		if err := s.store.Insert(ctx, r); err != nil {
			failed++
			s.logger.WithError(err).WithField("link", r.Link).Warn("Failed to store result")
		}
	}
	if failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"failed": failed,
			"total":  len(results),
		}).Warn("Some results were not stored")
	}
}

func sortByRank(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})
}
