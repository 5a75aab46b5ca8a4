package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/tenderkg/internal/api/handler"
	"github.com/timmy/tenderkg/internal/api/middleware"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/logger"
)

// Handlers groups the handlers mounted by SetupRouter.
type Handlers struct {
	Health *handler.HealthHandler
	Search *handler.SearchHandler
	Tender *handler.TenderHandler
	Admin  *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes. gatherer backs
// /metrics; a nil gatherer uses the default Prometheus registry.
func SetupRouter(h Handlers, gatherer prometheus.Gatherer, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger.GetDefault()))
	r.Use(middleware.CORS(cfg.CORS))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/admin", h.Admin.AdminPage)

	v1 := r.Group("/api/v1")
	{
		// Search
		v1.GET("/search", h.Search.SearchGet)
		v1.POST("/search", h.Search.Search)

		// Stats
		v1.GET("/stats", h.Tender.GetStats)

		// Tenders
		v1.GET("/tenders/:id/episodes", h.Tender.ListEpisodes)
		v1.GET("/tenders/:id/raw", h.Tender.GetRaw)

		// Episodes
		v1.GET("/episodes/:key", h.Tender.GetEpisode)

		// Ingest
		v1.POST("/ingest", h.Admin.TriggerIngest)
		v1.GET("/ingest/status", h.Admin.GetIngestStatus)
		v1.GET("/ingest/jobs", h.Admin.ListJobs)
	}

	return r
}
