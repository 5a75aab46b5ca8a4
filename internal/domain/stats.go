package domain

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxRecordedErrors caps the error messages kept for the run report.
const DefaultMaxRecordedErrors = 50

// RunStatistics accumulates counters for the lifetime of one orchestrator.
// Counters are updated atomically so workers can share one instance.
type RunStatistics struct {
	TotalProcessed        int64
	SuccessfulWrites      int64
	FilteredCount         int64
	PreviewRejectedCount  int64
	SkippedDuplicateCount int64
	SoftSkipCount         int64
	ErrorCount            int64

	startTime time.Time
	maxErrors int

	mu     sync.Mutex
	errors []string
}

// NewRunStatistics creates statistics that keep at most maxErrors messages.
func NewRunStatistics(maxErrors int) *RunStatistics {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxRecordedErrors
	}
	return &RunStatistics{
		startTime: time.Now(),
		maxErrors: maxErrors,
	}
}

func (s *RunStatistics) AddProcessed()            { atomic.AddInt64(&s.TotalProcessed, 1) }
func (s *RunStatistics) AddWrite()                { atomic.AddInt64(&s.SuccessfulWrites, 1) }
func (s *RunStatistics) AddFiltered(n int)        { atomic.AddInt64(&s.FilteredCount, int64(n)) }
func (s *RunStatistics) AddPreviewRejected(n int) { atomic.AddInt64(&s.PreviewRejectedCount, int64(n)) }
func (s *RunStatistics) AddDuplicate()            { atomic.AddInt64(&s.SkippedDuplicateCount, 1) }
func (s *RunStatistics) AddSoftSkip()             { atomic.AddInt64(&s.SoftSkipCount, 1) }

// RecordError counts an error and keeps its message while under the cap.
// The count always grows; only the detail is capped, oldest first.
func (s *RunStatistics) RecordError(format string, args ...interface{}) {
	atomic.AddInt64(&s.ErrorCount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) < s.maxErrors {
		s.errors = append(s.errors, fmt.Sprintf(format, args...))
	}
}

// Snapshot returns a consistent copy of the counters.
func (s *RunStatistics) Snapshot() RunReport {
	s.mu.Lock()
	errs := make([]string, len(s.errors))
	copy(errs, s.errors)
	s.mu.Unlock()

	return RunReport{
		TotalProcessed:        atomic.LoadInt64(&s.TotalProcessed),
		SuccessfulWrites:      atomic.LoadInt64(&s.SuccessfulWrites),
		FilteredCount:         atomic.LoadInt64(&s.FilteredCount),
		PreviewRejectedCount:  atomic.LoadInt64(&s.PreviewRejectedCount),
		SkippedDuplicateCount: atomic.LoadInt64(&s.SkippedDuplicateCount),
		SoftSkipCount:         atomic.LoadInt64(&s.SoftSkipCount),
		ErrorCount:            atomic.LoadInt64(&s.ErrorCount),
		Errors:                errs,
		StartTime:             s.startTime,
		EndTime:               time.Now(),
	}
}

// RunReport is an immutable view of RunStatistics suitable for logs and the CLI.
type RunReport struct {
	TotalProcessed        int64     `json:"total_processed"`
	SuccessfulWrites      int64     `json:"successful_writes"`
	FilteredCount         int64     `json:"filtered_count"`
	PreviewRejectedCount  int64     `json:"preview_rejected_count"`
	SkippedDuplicateCount int64     `json:"skipped_duplicate_count"`
	SoftSkipCount         int64     `json:"soft_skip_count"`
	ErrorCount            int64     `json:"error_count"`
	Errors                []string  `json:"errors,omitempty"`
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
}

// Duration is the wall time covered by the report.
func (r RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// HiddenErrors is the number of counted errors whose message was not kept.
func (r RunReport) HiddenErrors() int64 {
	hidden := r.ErrorCount - int64(len(r.Errors))
	if hidden < 0 {
		return 0
	}
	return hidden
}

// Since returns the activity between prev and r, where both are snapshots of
// the same RunStatistics and prev was taken first.
func (r RunReport) Since(prev RunReport) RunReport {
	out := RunReport{
		TotalProcessed:        r.TotalProcessed - prev.TotalProcessed,
		SuccessfulWrites:      r.SuccessfulWrites - prev.SuccessfulWrites,
		FilteredCount:         r.FilteredCount - prev.FilteredCount,
		PreviewRejectedCount:  r.PreviewRejectedCount - prev.PreviewRejectedCount,
		SkippedDuplicateCount: r.SkippedDuplicateCount - prev.SkippedDuplicateCount,
		SoftSkipCount:         r.SoftSkipCount - prev.SoftSkipCount,
		ErrorCount:            r.ErrorCount - prev.ErrorCount,
		StartTime:             prev.EndTime,
		EndTime:               r.EndTime,
	}
	if len(r.Errors) > len(prev.Errors) {
		out.Errors = append([]string(nil), r.Errors[len(prev.Errors):]...)
	}
	return out
}
