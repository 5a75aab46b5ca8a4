package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
)

const maxSearchLimit = 100

// FactSearcher is the read side of the knowledge store.
type FactSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Fact, error)
}

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	store FactSearcher
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - store: knowledge store to query.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(store FactSearcher) *SearchHandler {
	return &SearchHandler{store: store}
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=100"`
}

// SearchResponse lists the facts matching a query.
type SearchResponse struct {
	Query   string        `json:"query"`
	Results []domain.Fact `json:"results"`
	Total   int           `json:"total"`
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	h.respond(c, req.Query, req.Limit)
}

// SearchGet handles GET /api/v1/search?q=&limit= for simple queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Query parameter 'limit' must be a positive integer",
			})
			return
		}
		limit = min(n, maxSearchLimit)
	}
	h.respond(c, query, limit)
}

func (h *SearchHandler) respond(c *gin.Context, query string, limit int) {
	ctx := c.Request.Context()
	facts, err := h.store.Search(ctx, query, limit)
	if err != nil {
		logger.CtxError(ctx, "Search failed: query=%q, error=%v", query, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}
	c.JSON(http.StatusOK, SearchResponse{
		Query:   query,
		Results: facts,
		Total:   len(facts),
	})
}
