// internal/api/handlers/search.go
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Ayash-Bera/deathstroke/internal/health"
	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/Ayash-Bera/deathstroke/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxQueryLength = 2000

// Searcher is the part of the search service the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, rawQuery, locale string) []models.SearchResult
	MarkRelevant(ctx context.Context, rawQuery, locale, link string) error
	RelevanceTotals(ctx context.Context, rawQuery, locale string) (map[string]float64, error)
}

type SearchHandler struct {
	searchService Searcher
	health        *health.HealthChecker
	timeout       time.Duration
	logger        *logrus.Logger
}

func NewSearchHandler(searchService Searcher, checker *health.HealthChecker, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		health:        checker,
		timeout:       60 * time.Second,
		logger:        logger,
	}
}

// Register mounts the handler's routes.
func (h *SearchHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HandleHealth)

	v1 := r.Group("/api/v1")
	v1.POST("/search", h.HandleSearch)
	v1.POST("/feedback", h.HandleFeedback)
	v1.GET("/feedback", h.HandleFeedbackTotals)
}

// HandleSearch processes search requests
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	startTime := time.Now()

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid search request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query cannot be empty", nil)
		return
	}
	if len(query) > maxQueryLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query too long (max 2000 characters)", nil)
		return
	}
	locale := strings.TrimSpace(req.Locale)

	h.logger.WithFields(logrus.Fields{
		"query":      query,
		"locale":     locale,
		"request_id": c.GetString("request_id"),
		"ip_address": c.ClientIP(),
	}).Info("Processing search request")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := h.searchService.Search(ctx, query, locale)
	if !req.IncludeHTML {
		for i := range results {
			results[i].HTML = ""
		}
	}

	responseTime := time.Since(startTime)
	response := models.SearchResponse{
		Query:        models.NewQueryIdentity(query, locale),
		Results:      results,
		Total:        len(results),
		ResponseTime: int(responseTime.Milliseconds()),
	}

	h.logger.WithFields(logrus.Fields{
		"results_count": len(results),
		"response_time": responseTime.Milliseconds(),
	}).Info("Search completed successfully")

	utils.SuccessResponse(c, http.StatusOK, "Search completed", response)
}

// HandleFeedback marks a result as relevant for a query
func (h *SearchHandler) HandleFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}

	query := strings.TrimSpace(req.Query)
	link := strings.TrimSpace(req.Link)
	if query == "" || link == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query and link are required", nil)
		return
	}

	if err := h.searchService.MarkRelevant(c.Request.Context(), query, strings.TrimSpace(req.Locale), link); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to save feedback", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"query":  query,
		"link":   link,
		"locale": req.Locale,
	}).Info("Feedback recorded")

	utils.SuccessResponse(c, http.StatusCreated, "Feedback recorded", nil)
}

// HandleFeedbackTotals reports the summed feedback per link for ?query= and ?locale=.
func (h *SearchHandler) HandleFeedbackTotals(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query is required", nil)
		return
	}
	locale := strings.TrimSpace(c.Query("locale"))

	totals, err := h.searchService.RelevanceTotals(c.Request.Context(), query, locale)
	if err != nil {
		h.logger.WithError(err).WithField("query", query).Error("Failed to load feedback totals")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load feedback", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Feedback totals", models.FeedbackTotalsResponse{
		Query:  models.NewQueryIdentity(query, locale),
		Totals: totals,
	})
}

// HandleHealth reports the last known dependency health.
func (h *SearchHandler) HandleHealth(c *gin.Context) {
	status := h.health.CheckCached(c.Request.Context())

	services := make(map[string]string, len(status.Services))
	for _, s := range status.Services {
		services[s.Name] = s.Status
	}

	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, models.HealthResponse{
		Status:    status.Status,
		Service:   "deathstroke",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
