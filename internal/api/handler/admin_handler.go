package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/service"
	"github.com/timmy/tenderkg/internal/source"
	"github.com/timmy/tenderkg/internal/source/idlist"
)

// Ingester runs a batch ingestion.
type Ingester interface {
	IngestFromSource(ctx context.Context, src source.Source, limit int, opts *service.IngestOptions) (*domain.RunReport, error)
}

// JobLister returns persisted ingest jobs.
type JobLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.IngestJob, error)
}

var errIngestTarget = errors.New("either ids or source is required")

// AdminHandler handles admin operations. At most one ingest runs at a time.
type AdminHandler struct {
	base    context.Context
	ingest  Ingester
	sources map[string]source.Source
	jobs    JobLister

	// Ingest job state
	mu            sync.RWMutex
	wg            sync.WaitGroup
	isRunning     bool
	lastReport    *domain.RunReport
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - base: context the background ingest runs under; cancel it to stop a run.
//   - ingest: ingest service instance.
//   - sources: named sources selectable by the "source" field.
//   - jobs: job history; may be nil.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(base context.Context, ingest Ingester, sources map[string]source.Source, jobs JobLister) *AdminHandler {
	if sources == nil {
		sources = map[string]source.Source{}
	}
	return &AdminHandler{
		base:    base,
		ingest:  ingest,
		sources: sources,
		jobs:    jobs,
	}
}

// IngestRequest represents the ingest API request. Either IDs or Source is required.
type IngestRequest struct {
	IDs    []string `json:"ids"`
	Source string   `json:"source"`
	Limit  int      `json:"limit" binding:"omitempty,min=1,max=10000"`
	Force  bool     `json:"force"`
}

// IngestStatusResponse represents the ingest status.
type IngestStatusResponse struct {
	IsRunning     bool              `json:"is_running"`
	LastRunTime   string            `json:"last_run_time,omitempty"`
	LastRunStatus string            `json:"last_run_status,omitempty"`
	LastReport    *domain.RunReport `json:"last_report,omitempty"`
}

// TriggerIngest handles POST /api/v1/ingest. The run continues in the
// background; poll GetIngestStatus for the outcome.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerIngest(c *gin.Context) {
	ctx := c.Request.Context()

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid ingest request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := h.resolveSource(req)
	if err != nil {
		logger.CtxWarn(ctx, "Ingest request rejected: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Ingest request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Ingest is already running"})
		return
	}
	h.isRunning = true
	h.wg.Add(1)
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting ingest: source=%s, limit=%d, force=%v, client_ip=%s",
		src.GetSourceID(), req.Limit, req.Force, c.ClientIP())

	// The run outlives the request; keep its request ID for correlation.
	runCtx := logger.SetRequestID(h.base, logger.GetFieldString(ctx, logger.FieldRequestID))
	go h.run(runCtx, src, req)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Ingest started",
		"source":  src.GetSourceID(),
	})
}

func (h *AdminHandler) resolveSource(req IngestRequest) (source.Source, error) {
	var ids []string
	for _, id := range req.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		return idlist.NewAdapter("api", ids), nil
	}
	if req.Source == "" {
		return nil, errIngestTarget
	}
	src, ok := h.sources[req.Source]
	if !ok {
		return nil, errors.Newf("unknown source: %s", req.Source)
	}
	return src, nil
}

func (h *AdminHandler) run(ctx context.Context, src source.Source, req IngestRequest) {
	defer h.wg.Done()

	start := time.Now()
	report, err := h.ingest.IngestFromSource(ctx, src, req.Limit, &service.IngestOptions{Force: req.Force})

	h.mu.Lock()
	h.isRunning = false
	h.lastReport = report
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     h.Status().LastRunStatus,
	}).Info(ctx, "Ingest finished: source=%s", src.GetSourceID())
}

// Wait blocks until a running ingest has returned.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}

// Status returns a snapshot of the ingest state.
func (h *AdminHandler) Status() IngestStatusResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := IngestStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastReport:    h.lastReport,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	return resp
}

// GetIngestStatus handles GET /api/v1/ingest/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetIngestStatus(c *gin.Context) {
	resp := h.Status()
	logger.CtxDebug(c.Request.Context(), "Ingest status requested: client_ip=%s, is_running=%v", c.ClientIP(), resp.IsRunning)
	c.JSON(http.StatusOK, resp)
}

// ListJobs handles GET /api/v1/ingest/jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []domain.IngestJob{}})
		return
	}
	ctx := c.Request.Context()
	jobs, err := h.jobs.ListRecent(ctx, 20)
	if err != nil {
		logger.CtxError(ctx, "Failed to list ingest jobs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// AdminPage serves a minimal page for triggering and watching ingests.
func (h *AdminHandler) AdminPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(adminPage))
}

const adminPage = `<!DOCTYPE html>
<html lang="zh-TW">
<head>
<meta charset="UTF-8">
<title>Tender ingest</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; }
textarea { width: 100%; height: 8rem; }
pre { background: #f4f4f4; padding: 1rem; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Tender ingest</h1>
<p>One tender identifier per line.</p>
<textarea id="ids"></textarea>
<p><label><input type="checkbox" id="force"> Force re-processing</label></p>
<button id="start">Start</button>
<pre id="status"></pre>
<script>
async function refresh() {
  const resp = await fetch('/api/v1/ingest/status');
  document.getElementById('status').textContent = JSON.stringify(await resp.json(), null, 2);
}
document.getElementById('start').onclick = async () => {
  const ids = document.getElementById('ids').value.split('\n').map(s => s.trim()).filter(Boolean);
  const resp = await fetch('/api/v1/ingest', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({ids: ids, force: document.getElementById('force').checked})
  });
  if (!resp.ok) { alert((await resp.json()).error); }
  refresh();
};
setInterval(refresh, 3000);
refresh();
</script>
</body>
</html>`
