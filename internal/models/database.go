package models

// GORM models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

var (
	ErrMissingQuery = errors.New("query identity is required")
	ErrMissingLink  = errors.New("link is required")
)

// ResultRow is one persisted search result. Column order follows ResultColumns.
type ResultRow struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Query         string    `json:"query" gorm:"column:query;not null;index"`
	Rank          float64   `json:"rank" gorm:"column:rank;not null"`
	Link          string    `json:"link" gorm:"column:link;not null"`
	Title         string    `json:"title" gorm:"column:title"`
	Snippet       string    `json:"snippet" gorm:"column:snippet"`
	HTML          string    `json:"html" gorm:"column:html;type:text"`
	Created       time.Time `json:"created" gorm:"column:created;not null"`
	SemanticScore *float64  `json:"semantic_score" gorm:"column:semantic_score"`
}

// FeedbackRow records a relevance signal. It has no foreign key to ResultRow.
type FeedbackRow struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Query     string    `json:"query" gorm:"column:query;not null;index"`
	Link      string    `json:"link" gorm:"column:link;not null"`
	Delta     float64   `json:"delta" gorm:"column:delta;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (ResultRow) TableName() string   { return "results" }
func (FeedbackRow) TableName() string { return "relevance_feedback" }

// NewResultRow maps a result onto its persisted layout.
func NewResultRow(r SearchResult) *ResultRow {
	row := &ResultRow{
		Query:   string(r.Query),
		Rank:    r.Rank,
		Link:    r.Link,
		Title:   r.Title,
		Snippet: r.Snippet,
		HTML:    r.HTML,
		Created: r.CreatedAt.UTC(),
	}
	if r.SemanticScore != nil {
		s := *r.SemanticScore
		row.SemanticScore = &s
	}
	return row
}

// Result converts a stored row back into a SearchResult.
func (row ResultRow) Result() SearchResult {
	return SearchResult{
		Link:          row.Link,
		Title:         row.Title,
		Snippet:       row.Snippet,
		Rank:          row.Rank,
		HTML:          row.HTML,
		SemanticScore: row.SemanticScore,
		Query:         QueryIdentity(row.Query),
		CreatedAt:     row.Created,
	}
}

// Record renders the row as text fields in ResultColumns order.
func (row ResultRow) Record() []string {
	return []string{
		row.Query,
		strconv.FormatFloat(row.Rank, 'f', -1, 64),
		row.Link,
		row.Title,
		row.Snippet,
		row.HTML,
		row.Created.UTC().Format(time.RFC3339),
	}
}

// Model validation methods
func (row *ResultRow) Validate() error {
	if row.Query == "" {
		return ErrMissingQuery
	}
	if row.Link == "" {
		return ErrMissingLink
	}
	if row.Rank <= 0 {
		return fmt.Errorf("rank must be positive, got %v", row.Rank)
	}
	return nil
}

func (row *FeedbackRow) Validate() error {
	if row.Query == "" {
		return ErrMissingQuery
	}
	if row.Link == "" {
		return ErrMissingLink
	}
	return nil
}

// GORM hooks
func (row *ResultRow) BeforeCreate(tx *gorm.DB) error {
	if row.Created.IsZero() {
		row.Created = time.Now().UTC()
	}
	return row.Validate()
}

func (row *FeedbackRow) BeforeCreate(tx *gorm.DB) error {
	return row.Validate()
}
