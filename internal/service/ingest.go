package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/timmy/tenderkg/internal/dedup"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/episode"
	"github.com/timmy/tenderkg/internal/extractor"
	"github.com/timmy/tenderkg/internal/fetcher"
	"github.com/timmy/tenderkg/internal/filter"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/metrics"
	"github.com/timmy/tenderkg/internal/preview"
	"github.com/timmy/tenderkg/internal/repository"
	"github.com/timmy/tenderkg/internal/source"
)

// layerLocal labels identifiers skipped because this process already handled them.
const layerLocal = "local"

// Archiver keeps a copy of fetched pages.
type Archiver interface {
	Put(ctx context.Context, doc *domain.RawDocument) (string, bool, error)
}

// IngestDeps are the collaborators of the ingestion pipeline. Fetcher and
// Store are required; the rest are optional.
type IngestDeps struct {
	Fetcher fetcher.DocumentFetcher
	Store   KnowledgeStore
	Filter  *filter.Filter
	Preview *preview.Gate
	Archive Archiver
	Jobs    *repository.JobRepository
	Metrics *metrics.Recorder
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	Workers           int
	BatchSize         int
	MaxRecordedErrors int
	Episode           episode.Options
}

// IngestOptions holds options for ingestion
type IngestOptions struct {
	Force bool // If true, re-process identifiers already handled by this process
}

// IngestService drives tender identifiers through fetch, extraction,
// filtering, deduplication, preview and commit. One service owns the
// statistics of its lifetime and is safe for concurrent use.
type IngestService struct {
	fetcher   fetcher.DocumentFetcher
	store     KnowledgeStore
	filter    *filter.Filter
	preview   *preview.Gate
	archive   Archiver
	jobs      *repository.JobRepository
	metrics   *metrics.Recorder
	extractor *extractor.Extractor
	builder   *episode.Builder
	dedup     *dedup.Gate
	stats     *domain.RunStatistics

	workers         int
	batchSize       int
	includeSections bool

	mu      sync.Mutex
	claimed map[string]int // id -> holds
}

// NewIngestService creates a new ingest service
func NewIngestService(deps IngestDeps, cfg *IngestConfig) (*IngestService, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("ingest: fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("ingest: knowledge store is required")
	}
	if cfg == nil {
		cfg = &IngestConfig{}
	}

	f := deps.Filter
	if f == nil {
		var err error
		if f, err = filter.New(nil); err != nil {
			return nil, err
		}
	}
	gate := deps.Preview
	if gate == nil {
		gate = preview.NewGate(nil, nil)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	return &IngestService{
		fetcher:   deps.Fetcher,
		store:     deps.Store,
		filter:    f,
		preview:   gate,
		archive:   deps.Archive,
		jobs:      deps.Jobs,
		metrics:   deps.Metrics,
		extractor: extractor.New(),
		builder:   episode.NewBuilder(cfg.Episode),
		dedup:     dedup.NewGate(deps.Store),
		stats:     domain.NewRunStatistics(cfg.MaxRecordedErrors),
		workers:   workers,
		batchSize: batchSize,
		claimed:   make(map[string]int),

		includeSections: cfg.Episode.IncludeSections,
	}, nil
}

func (s *IngestService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}

// Stats returns the counters accumulated since the service was created.
func (s *IngestService) Stats() domain.RunReport {
	return s.stats.Snapshot()
}

// Process runs one identifier through the pipeline and returns the units
// that were committed. Per-identifier failures are counted in the
// statistics and reported as an empty result; only cancellation of ctx is
// returned as an error.
func (s *IngestService) Process(ctx context.Context, id string, force bool) ([]domain.CandidateUnit, error) {
	ctx = logger.SetTenderID(ctx, id)
	s.stats.AddProcessed()
	s.metrics.IdentifierProcessed()
	s.enter(ctx, domain.StageStart)

	if !s.claim(id, force) {
		s.stats.AddDuplicate()
		s.metrics.UnitDuplicate(layerLocal)
		s.log(ctx).Debug("Identifier already handled in this process, skipping")
		s.enter(ctx, domain.StageDone)
		return nil, nil
	}

	units, aborted, err := s.process(ctx, id)
	if aborted {
		s.release(id)
		s.enter(ctx, domain.StageAborted)
		return units, err
	}
	s.enter(ctx, domain.StageDone)
	return units, nil
}

// process returns aborted when the identifier should be retried by a later
// call. err is only ever a context error.
func (s *IngestService) process(ctx context.Context, id string) ([]domain.CandidateUnit, bool, error) {
	s.enter(ctx, domain.StageFetching)
	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, id)
	if err == nil && doc == nil {
		err = errors.Newf("fetcher returned no document for %s", id)
	}
	s.metrics.ObserveFetch(time.Since(start), fetchOutcome(err))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, true, ctxErr
		}
		s.fail(ctx, id, domain.StageFetching, err)
		return nil, true, nil
	}
	s.archivePage(ctx, doc)

	s.enter(ctx, domain.StageExtracting)
	fields, err := s.extractor.Extract(ctx, doc.Body)
	if err != nil {
		s.fail(ctx, id, domain.StageExtracting, err)
		return nil, true, nil
	}
	if fields.CaseName == nil {
		s.stats.AddSoftSkip()
		s.log(ctx).Warn("Tender has no case name, skipping")
		return nil, false, nil
	}

	var sections []domain.Section
	if s.includeSections {
		if sections, err = s.extractor.Sections(doc.Body); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to read page sections")
			sections = nil
		}
	}
	candidates := s.builder.Build(id, fields, sections)

	s.enter(ctx, domain.StageFiltering)
	if !s.filter.IsOrganizationAllowed(fields.Organization) {
		n := len(candidates)
		s.stats.AddFiltered(n)
		s.metrics.UnitsFiltered(string(domain.RejectOrganizationNotAllowed), n)
		s.log(ctx).WithField("organization", domain.Value(fields.Organization)).
			Info("Organization not in allow-list, dropping tender")
		return nil, false, nil
	}
	accepted := make([]domain.CandidateUnit, 0, len(candidates))
	for _, unit := range candidates {
		verdict := s.filter.Evaluate(unit)
		if !verdict.Accepted {
			s.stats.AddFiltered(1)
			s.metrics.UnitsFiltered(string(verdict.Reason), 1)
			s.log(ctx).WithFields(logger.Fields{
				"title":  unit.Title,
				"reason": verdict.Reason,
				"term":   verdict.Term,
			}).Info("Unit rejected by content filter")
			continue
		}
		accepted = append(accepted, unit.WithContent(verdict.Content))
	}

	s.enter(ctx, domain.StageDeduplicating)
	batch := dedup.NewBatch()
	fresh := make([]domain.CandidateUnit, 0, len(accepted))
	for _, unit := range accepted {
		decision := s.dedup.Check(ctx, batch, unit)
		if decision.LookupErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, true, ctxErr
			}
			s.fail(ctx, id, domain.StageDeduplicating,
				errors.Wrapf(decision.LookupErr, "duplicate lookup for %q", unit.Title))
		}
		if decision.Duplicate {
			s.stats.AddDuplicate()
			s.metrics.UnitDuplicate(string(decision.Layer))
			s.log(ctx).WithFields(logger.Fields{
				"title": unit.Title,
				"layer": decision.Layer,
			}).Debug("Skipping duplicate unit")
			continue
		}
		fresh = append(fresh, unit)
	}
	if len(fresh) == 0 {
		return nil, false, nil
	}

	s.enter(ctx, domain.StagePreviewing)
	approved, err := s.preview.Review(ctx, id, fresh)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, true, ctxErr
		}
		s.fail(ctx, id, domain.StagePreviewing, err)
		return nil, true, nil
	}
	if !approved {
		s.stats.AddPreviewRejected(len(fresh))
		s.metrics.PreviewRejected(len(fresh))
		s.log(ctx).WithField(logger.FieldCount, len(fresh)).Info("Preview rejected, nothing committed")
		return nil, false, nil
	}

	s.enter(ctx, domain.StageCommitting)
	committed := make([]domain.CandidateUnit, 0, len(fresh))
	refTime := time.Now()
	for _, unit := range fresh {
		if err := ctx.Err(); err != nil {
			return committed, true, err
		}
		in := domain.EpisodeInput{
			Unit:              unit,
			SourceID:          id,
			SourceDescription: episode.SourceDescription(id),
			ReferenceTime:     refTime,
		}
		if err := s.store.AddUnit(ctx, in); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return committed, true, ctxErr
			}
			s.fail(ctx, id, domain.StageCommitting, errors.Wrapf(err, "commit %q", unit.Title))
			continue
		}
		s.stats.AddWrite()
		s.metrics.UnitCommitted()
		s.dedup.Remember(unit.IdentityKey())
		committed = append(committed, unit)
	}

	s.log(ctx).WithField(logger.FieldCount, len(committed)).Info("Tender committed")
	return committed, false, nil
}

func (s *IngestService) archivePage(ctx context.Context, doc *domain.RawDocument) {
	if s.archive == nil {
		return
	}
	key, uploaded, err := s.archive.Put(ctx, doc)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to archive raw page")
		return
	}
	if uploaded {
		s.log(ctx).WithField("key", key).Debug("Archived raw page")
	}
}

func (s *IngestService) enter(ctx context.Context, stage domain.Stage) {
	s.log(ctx).WithField(logger.FieldStage, stage).Debug("Stage transition")
}

func (s *IngestService) fail(ctx context.Context, id string, stage domain.Stage, err error) {
	s.stats.RecordError("%s [%s]: %v", id, stage, err)
	s.metrics.Error(string(stage))
	s.log(ctx).WithError(err).WithField(logger.FieldStage, stage).Error("Tender processing failed")
}

// claim marks id as handled. It reports false when id was already claimed
// and force is not set. Every successful claim adds one hold; an id stays
// claimed while any hold remains.
func (s *IngestService) claim(id string, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[id] > 0 && !force {
		return false
	}
	s.claimed[id]++
	return true
}

// release drops the hold of one aborted call.
func (s *IngestService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[id] <= 1 {
		delete(s.claimed, id)
		return
	}
	s.claimed[id]--
}

// fetchOutcome labels a Fetch result for the duration histogram. A
// classified FetchError wins over a context error it wraps.
func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case fetcher.IsKind(err, fetcher.KindRetriesExhausted):
		return "retries_exhausted"
	case fetcher.IsKind(err, fetcher.KindTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failure"
	}
}

// IngestFromSource ingests up to limit identifiers from src with a bounded
// worker pool. A limit of zero or less means no limit. The report covers
// this call only and is returned even when ctx is canceled, together with
// the context error.
func (s *IngestService) IngestFromSource(ctx context.Context, src source.Source, limit int, opts *IngestOptions) (*domain.RunReport, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	jobID := uuid.New().String()
	ctx = logger.SetJobID(ctx, jobID)
	ctx = logger.SetSource(ctx, src.GetSourceID())

	before := s.stats.Snapshot()
	job := s.startJob(ctx, jobID, src.GetSourceID(), before.EndTime)

	s.log(ctx).WithFields(logger.Fields{
		"limit":   limit,
		"force":   opts.Force,
		"workers": s.workers,
	}).Info("Starting ingestion")

	items := make(chan source.TenderItem, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, items, opts)
		}(i)
	}

	s.produce(ctx, src, limit, items)
	close(items)
	wg.Wait()

	report := s.stats.Snapshot().Since(before)
	s.finishJob(ctx, job, report)

	s.log(ctx).WithFields(logger.Fields{
		"processed": report.TotalProcessed,
		"written":   report.SuccessfulWrites,
		"filtered":  report.FilteredCount,
		"skipped":   report.SkippedDuplicateCount,
		"errors":    report.ErrorCount,
		"duration":  report.Duration().String(),
	}).Info("Ingestion completed")

	return &report, ctx.Err()
}

// produce pages identifiers out of src into items until the source is
// exhausted, limit is reached or ctx is canceled.
func (s *IngestService) produce(ctx context.Context, src source.Source, limit int, items chan<- source.TenderItem) {
	cursor := ""
	fetched := 0
	for ctx.Err() == nil {
		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				return
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		batch, next, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			if ctx.Err() == nil {
				s.stats.RecordError("list %s: %v", src.GetSourceID(), err)
				s.metrics.Error("listing")
				s.log(ctx).WithError(err).Error("Failed to fetch batch")
			}
			return
		}
		if len(batch) == 0 {
			return
		}
		fetched += len(batch)

		for _, item := range batch {
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}

		if next == "" {
			return
		}
		cursor = next
	}
}

func (s *IngestService) worker(ctx context.Context, workerID int, items <-chan source.TenderItem, opts *IngestOptions) {
	for item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := s.Process(ctx, item.ID, opts.Force); err != nil {
			s.log(ctx).WithField("worker", workerID).WithError(err).
				Debugf("Processing of %s interrupted", item.ID)
			return
		}
	}
}

func (s *IngestService) startJob(ctx context.Context, jobID, sourceID string, startedAt time.Time) *domain.IngestJob {
	if s.jobs == nil {
		return nil
	}
	job := &domain.IngestJob{
		ID:        jobID,
		SourceID:  sourceID,
		Status:    domain.JobStatusRunning,
		StartedAt: startedAt,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record ingest job")
		return nil
	}
	return job
}

func (s *IngestService) finishJob(ctx context.Context, job *domain.IngestJob, report domain.RunReport) {
	if job == nil {
		return
	}
	job.ApplyReport(report)
	job.Status = domain.JobStatusCompleted
	if ctx.Err() != nil {
		job.Status = domain.JobStatusCanceled
	}
	completed := report.EndTime
	job.CompletedAt = &completed
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to update ingest job")
	}
}
