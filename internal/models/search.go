package models

import (
	"context"
	"strings"
	"time"
)

// QueryIdentity is the cache key for a stored result set.
type QueryIdentity string

const countrySeparator = "__country_"

// NewQueryIdentity derives the identity of a query and an optional locale.
func NewQueryIdentity(rawQuery, locale string) QueryIdentity {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return QueryIdentity(rawQuery)
	}
	return QueryIdentity(rawQuery + countrySeparator + strings.ToUpper(locale))
}

func (q QueryIdentity) String() string { return string(q) }

// SearchResult is one ranked hit. Lower Rank is better.
type SearchResult struct {
	Link          string        `json:"link"`
	Title         string        `json:"title"`
	Snippet       string        `json:"snippet"`
	Rank          float64       `json:"rank"`
	HTML          string        `json:"html,omitempty"`
	SemanticScore *float64      `json:"semantic_score,omitempty"`
	Query         QueryIdentity `json:"query"`
	CreatedAt     time.Time     `json:"created"`
}

// Enhanced reports whether the result carries an LLM relevance score.
func (r SearchResult) Enhanced() bool {
	return r.SemanticScore != nil
}

// Score returns the semantic score, or 0 when the result was never scored.
func (r SearchResult) Score() float64 {
	if r.SemanticScore == nil {
		return 0
	}
	return *r.SemanticScore
}

// CloneResults copies a result slice so stages can mutate without touching their input.
func CloneResults(results []SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		if r.SemanticScore != nil {
			s := *r.SemanticScore
			r.SemanticScore = &s
		}
		out[i] = r
	}
	return out
}

// RelevanceFeedback is a user signal that Link answered Query well.
type RelevanceFeedback struct {
	Query QueryIdentity
	Link  string
	Delta float64
}

// ResultColumns is the persisted column order, used by exports.
var ResultColumns = []string{"query", "rank", "link", "title", "snippet", "html", "created"}

// ResultStore persists result sets keyed by query identity.
// Insert is append-only; UpdateRelevance records feedback independently of stored rows.
type ResultStore interface {
	QueryResults(ctx context.Context, identity QueryIdentity) ([]SearchResult, error)
	Insert(ctx context.Context, result SearchResult) error
	UpdateRelevance(ctx context.Context, identity QueryIdentity, link string, delta float64) error
}

// FeedbackReader reports the summed relevance feedback per link for an identity.
type FeedbackReader interface {
	FeedbackTotals(ctx context.Context, identity QueryIdentity) (map[string]float64, error)
}
