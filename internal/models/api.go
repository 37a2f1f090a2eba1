package models

type SearchRequest struct {
	Query       string `json:"query" binding:"required"`
	Locale      string `json:"locale"`
	IncludeHTML bool   `json:"include_html"`
}

type SearchResponse struct {
	Query        QueryIdentity  `json:"query"`
	Results      []SearchResult `json:"results"`
	Total        int            `json:"total"`
	ResponseTime int            `json:"response_time_ms"`
}

type FeedbackRequest struct {
	Query  string `json:"query" binding:"required"`
	Locale string `json:"locale"`
	Link   string `json:"link" binding:"required"`
}

// FeedbackTotalsResponse carries the summed relevance feedback per link.
type FeedbackTotalsResponse struct {
	Query  QueryIdentity      `json:"query"`
	Totals map[string]float64 `json:"totals"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
