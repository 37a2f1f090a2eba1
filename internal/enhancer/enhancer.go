// Package enhancer wraps an LLM behind four advisory search enhancements:
// query expansion, semantic reranking, quality filtering and snippet rewriting.
//
// Every step degrades to a neutral default when the model fails or answers
// something unparsable. Ranks are only ever adjusted, never reset, and results
// are never removed: a poor result is demoted instead.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

const (
	MaxScore           = 10.0
	NeutralScore       = 5.0
	MinRank            = 0.1
	TrustedScore       = 7.0
	FilterPenalty      = 50.0
	MaxExpansionTokens = 15
	SnippetTopN        = 5
	MinHTMLLength      = 100
	MaxHTMLChars       = 10000
	MinSnippetLength   = 20
	MaxSnippetLength   = 250
)

var ErrModelRequired = errors.New("LLM model is required")

type Enhancer struct {
	model   llms.Model
	pool    *ants.Pool
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *logrus.Logger
}

// Option configures an Enhancer.
type Option func(*Enhancer) error

// WithPoolSize bounds the number of concurrent LLM calls per stage.
func WithPoolSize(size int) Option {
	return func(e *Enhancer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithRateLimit caps LLM calls per second. Zero or less disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(e *Enhancer) error {
		if perSecond <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		return nil
	}
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Enhancer) error {
		if cfg.MaxRetries < 0 {
			cfg.MaxRetries = 0
		}
		e.retry = cfg
		return nil
	}
}

// New creates an enhancer around model. Call Close to release its worker pool.
func New(model llms.Model, logger *logrus.Logger, opts ...Option) (*Enhancer, error) {
	if model == nil {
		return nil, ErrModelRequired
	}

	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	e := &Enhancer{
		model:   model,
		pool:    pool,
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   DefaultRetryConfig(),
		logger:  logger,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

func (e *Enhancer) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// ExpandQuery asks the model for a broader query. The locale is only a hint in
// the prompt. The answer is cut to MaxExpansionTokens tokens.
func (e *Enhancer) ExpandQuery(ctx context.Context, query, locale string) (string, error) {
	text, err := e.generate(ctx, expandPrompt(query, locale), llms.WithTemperature(0.3))
	if err != nil {
		return "", err
	}

	expanded := TruncateTokens(text, MaxExpansionTokens)
	if expanded == "" {
		return "", ErrEmptyResponse
	}

	e.logger.WithFields(logrus.Fields{
		"original_query": query,
		"expanded_query": expanded,
	}).Debug("Query expanded")

	return expanded, nil
}

// RankSemantically scores every result against query and lowers its rank by
// half the score, never below MinRank. Failed scores count as NeutralScore.
func (e *Enhancer) RankSemantically(ctx context.Context, query string, results []models.SearchResult) ([]models.SearchResult, error) {
	out := models.CloneResults(results)
	scores := make([]float64, len(out))

	err := e.forEach(ctx, len(out), func(i int) {
		text, err := e.generate(ctx, scorePrompt(query, out[i].Title, out[i].Snippet), llms.WithTemperature(0))
		outcome := ParseScore(text)
		if err != nil {
			outcome = Failure[float64](err)
		}
		if !outcome.Ok() {
			e.logger.WithError(outcome.Err).WithField("link", out[i].Link).Warn("Semantic score unavailable, using neutral score")
		}
		scores[i] = outcome.Or(NeutralScore)
	})
	if err != nil {
		return results, err
	}

	for i := range out {
		score := scores[i]
		out[i].SemanticScore = &score
		out[i].Rank = AdjustRank(out[i].Rank, score)
	}

	return out, nil
}

// AdjustRank applies a semantic score to a positional rank.
func AdjustRank(rank, score float64) float64 {
	return math.Max(MinRank, rank-score/2)
}

// FilterContent asks for a quality verdict on every result not already scored
// TrustedScore or above. Filtered results get FilterPenalty added to their rank.
func (e *Enhancer) FilterContent(ctx context.Context, results []models.SearchResult) ([]models.SearchResult, error) {
	out := models.CloneResults(results)

	var candidates []int
	for i, r := range out {
		if r.Score() >= TrustedScore {
			continue
		}
		candidates = append(candidates, i)
	}

	verdicts := make([]Verdict, len(candidates))
	err := e.forEach(ctx, len(candidates), func(j int) {
		r := out[candidates[j]]
		text, err := e.generate(ctx, verdictPrompt(r.Title, r.Snippet), llms.WithTemperature(0))
		outcome := ParseVerdict(text)
		if err != nil {
			outcome = Failure[Verdict](err)
		}
		if !outcome.Ok() {
			e.logger.WithError(outcome.Err).WithField("link", r.Link).Debug("Quality verdict unavailable, keeping result")
		}
		verdicts[j] = outcome.Or(Keep)
	})
	if err != nil {
		return results, err
	}

	filtered := 0
	for j, idx := range candidates {
		if verdicts[j] == Filter {
			out[idx].Rank += FilterPenalty
			filtered++
		}
	}

	e.logger.WithFields(logrus.Fields{
		"judged":   len(candidates),
		"filtered": filtered,
	}).Debug("Content filter applied")

	return out, nil
}

// GenerateImprovedSnippets rewrites the snippets of the SnippetTopN best-ranked
// results that carry enough HTML. A rewrite outside the accepted length window
// leaves the original snippet in place.
func (e *Enhancer) GenerateImprovedSnippets(ctx context.Context, results []models.SearchResult) ([]models.SearchResult, error) {
	out := models.CloneResults(results)

	var targets []int
	for _, idx := range topByRank(out, SnippetTopN) {
		if utf8.RuneCountInString(out[idx].HTML) > MinHTMLLength {
			targets = append(targets, idx)
		}
	}

	snippets := make([]Outcome[string], len(targets))
	err := e.forEach(ctx, len(targets), func(j int) {
		r := out[targets[j]]
		text, err := e.generate(ctx, snippetPrompt(prefixRunes(r.HTML, MaxHTMLChars)), llms.WithTemperature(0.2))
		if err != nil {
			snippets[j] = Failure[string](err)
			return
		}
		snippets[j] = acceptSnippet(text)
	})
	if err != nil {
		return results, err
	}

	for j, idx := range targets {
		if !snippets[j].Ok() {
			e.logger.WithError(snippets[j].Err).WithField("link", out[idx].Link).Debug("Keeping original snippet")
			continue
		}
		out[idx].Snippet = snippets[j].Value
	}

	return out, nil
}

func acceptSnippet(text string) Outcome[string] {
	n := utf8.RuneCountInString(text)
	if n > MinSnippetLength && n < MaxSnippetLength {
		return Success(text)
	}
	return Failure[string](fmt.Errorf("snippet length %d outside (%d, %d)", n, MinSnippetLength, MaxSnippetLength))
}

// topByRank returns the indices of the n lowest-ranked results, ties in input order.
func topByRank(results []models.SearchResult, n int) []int {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return results[idx[a]].Rank < results[idx[b]].Rank
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	return idx
}

// forEach runs fn for 0..n-1 on the worker pool and waits for all of them.
// A cancelled context aborts the stage.
func (e *Enhancer) forEach(ctx context.Context, n int, fn func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to schedule LLM call: %w", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}
