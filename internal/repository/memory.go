package repository

import (
	"context"
	"sync"

	"github.com/Ayash-Bera/deathstroke/internal/models"
)

// MemoryStore is an append-only, process-local models.ResultStore.
type MemoryStore struct {
	mu       sync.RWMutex
	results  map[models.QueryIdentity][]models.SearchResult
	feedback []models.RelevanceFeedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[models.QueryIdentity][]models.SearchResult),
	}
}

func (s *MemoryStore) QueryResults(ctx context.Context, identity models.QueryIdentity) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneResults(s.results[identity]), nil
}

func (s *MemoryStore) Insert(ctx context.Context, result models.SearchResult) error {
	row := models.NewResultRow(result)
	if err := row.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.Query] = append(s.results[result.Query], row.Result())
	return nil
}

func (s *MemoryStore) UpdateRelevance(ctx context.Context, identity models.QueryIdentity, link string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, models.RelevanceFeedback{Query: identity, Link: link, Delta: delta})
	return nil
}

func (s *MemoryStore) FeedbackTotals(ctx context.Context, identity models.QueryIdentity) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]float64)
	for _, f := range s.feedback {
		if f.Query == identity {
			totals[f.Link] += f.Delta
		}
	}
	return totals, nil
}
