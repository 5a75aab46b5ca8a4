package domain

import "time"

// JobStatus represents the status of an ingest job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IngestJob persists the report of one batch ingestion run.
type IngestJob struct {
	ID                    string      `gorm:"type:text;primaryKey" json:"id"`
	SourceID              string      `gorm:"type:text;not null;index" json:"source_id"`
	Status                JobStatus   `gorm:"type:text;default:running" json:"status"`
	TotalProcessed        int64       `gorm:"default:0" json:"total_processed"`
	SuccessfulWrites      int64       `gorm:"default:0" json:"successful_writes"`
	FilteredCount         int64       `gorm:"default:0" json:"filtered_count"`
	PreviewRejectedCount  int64       `gorm:"default:0" json:"preview_rejected_count"`
	SkippedDuplicateCount int64       `gorm:"default:0" json:"skipped_duplicate_count"`
	SoftSkipCount         int64       `gorm:"default:0" json:"soft_skip_count"`
	ErrorCount            int64       `gorm:"default:0" json:"error_count"`
	ErrorLog              StringArray `gorm:"type:text" json:"error_log,omitempty"`
	StartedAt             time.Time   `json:"started_at"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// TableName returns the database table name for IngestJob.
func (IngestJob) TableName() string {
	return "ingest_jobs"
}

// ApplyReport copies the counters of a run report onto the job.
func (j *IngestJob) ApplyReport(r RunReport) {
	j.TotalProcessed = r.TotalProcessed
	j.SuccessfulWrites = r.SuccessfulWrites
	j.FilteredCount = r.FilteredCount
	j.PreviewRejectedCount = r.PreviewRejectedCount
	j.SkippedDuplicateCount = r.SkippedDuplicateCount
	j.SoftSkipCount = r.SoftSkipCount
	j.ErrorCount = r.ErrorCount
	j.ErrorLog = StringArray(r.Errors)
	j.StartedAt = r.StartTime
}
