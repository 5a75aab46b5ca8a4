package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"gorm.io/gorm"
)

// EpisodeReader is the read side of the episode repository.
type EpisodeReader interface {
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, t time.Time) (int64, error)
	ListBySource(ctx context.Context, sourceID string) ([]domain.EpisodeRecord, error)
	GetByIdentityKey(ctx context.Context, key string) (*domain.EpisodeRecord, error)
}

// RawPages returns archived tender pages.
type RawPages interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// RunStats exposes the counters of the ingest service.
type RunStats interface {
	Stats() domain.RunReport
}

// TenderHandler serves committed episodes and archived pages.
type TenderHandler struct {
	episodes EpisodeReader
	pages    RawPages
	stats    RunStats
}

// NewTenderHandler creates a tender handler. pages and stats may be nil.
func NewTenderHandler(episodes EpisodeReader, pages RawPages, stats RunStats) *TenderHandler {
	return &TenderHandler{episodes: episodes, pages: pages, stats: stats}
}

// StatsResponse summarizes the store and the ingest counters.
type StatsResponse struct {
	TotalEpisodes  int64             `json:"total_episodes"`
	EpisodesLast24 int64             `json:"episodes_last_24h"`
	Ingest         *domain.RunReport `json:"ingest,omitempty"`
}

// GetStats handles GET /api/v1/stats.
func (h *TenderHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.episodes.Count(ctx)
	if err != nil {
		logger.CtxError(ctx, "Failed to count episodes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}
	recent, err := h.episodes.CountSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		logger.CtxError(ctx, "Failed to count recent episodes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	resp := StatsResponse{TotalEpisodes: total, EpisodesLast24: recent}
	if h.stats != nil {
		report := h.stats.Stats()
		resp.Ingest = &report
	}
	c.JSON(http.StatusOK, resp)
}

// ListEpisodes handles GET /api/v1/tenders/:id/episodes.
func (h *TenderHandler) ListEpisodes(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	recs, err := h.episodes.ListBySource(ctx, id)
	if err != nil {
		logger.CtxError(ctx, "Failed to list episodes: tender_id=%s, error=%v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list episodes"})
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No episodes for tender " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tender_id": id,
		"episodes":  recs,
		"total":     len(recs),
	})
}

// GetEpisode handles GET /api/v1/episodes/:key.
func (h *TenderHandler) GetEpisode(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	rec, err := h.episodes.GetByIdentityKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Episode not found"})
		return
	}
	if err != nil {
		logger.CtxError(ctx, "Failed to get episode: identity_key=%s, error=%v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get episode"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetRaw handles GET /api/v1/tenders/:id/raw and returns the archived page.
func (h *TenderHandler) GetRaw(c *gin.Context) {
	if h.pages == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Raw page archive is disabled"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	body, err := h.pages.Get(ctx, id)
	if err != nil {
		logger.CtxWarn(ctx, "Raw page unavailable: tender_id=%s, error=%v", id, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Raw page not found"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}
