package repository

import (
	"context"
	"fmt"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"gorm.io/gorm"
)

// ResultRepositoryImpl implements models.ResultStore on GORM.
type ResultRepositoryImpl struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepositoryImpl {
	return &ResultRepositoryImpl{db: db}
}

// QueryResults returns the rows stored for identity in insertion order.
func (r *ResultRepositoryImpl) QueryResults(ctx context.Context, identity models.QueryIdentity) ([]models.SearchResult, error) {
	var rows []models.ResultRow
	err := r.db.WithContext(ctx).
		Where("query = ?", string(identity)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.Result())
	}
	return results, nil
}

// Insert appends one row. Existing rows for the same identity and link are left alone.
func (r *ResultRepositoryImpl) Insert(ctx context.Context, result models.SearchResult) error {
	return r.db.WithContext(ctx).Create(models.NewResultRow(result)).Error
}

// UpdateRelevance records feedback whether or not matching result rows exist.
func (r *ResultRepositoryImpl) UpdateRelevance(ctx context.Context, identity models.QueryIdentity, link string, delta float64) error {
	return r.db.WithContext(ctx).Create(&models.FeedbackRow{
		Query: string(identity),
		Link:  link,
		Delta: delta,
	}).Error
}

// FeedbackTotals sums the recorded deltas per link for identity.
func (r *ResultRepositoryImpl) FeedbackTotals(ctx context.Context, identity models.QueryIdentity) (map[string]float64, error) {
	var rows []struct {
		Link  string
		Total float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.FeedbackRow{}).
		Select("link, SUM(delta) AS total").
		Where("query = ?", string(identity)).
		Group("link").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.Link] = row.Total
	}
	return totals, nil
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	Results *ResultRepositoryImpl
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Results: NewResultRepository(db),
	}
}
