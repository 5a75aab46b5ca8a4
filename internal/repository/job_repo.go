package repository

import (
	"context"

	"github.com/timmy/tenderkg/internal/domain"
	"gorm.io/gorm"
)

// JobRepository persists batch ingestion runs.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update saves every field of job.
func (r *JobRepository) Update(ctx context.Context, job *domain.IngestJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// GetByID retrieves a job. Returns gorm.ErrRecordNotFound when absent.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	var job domain.IngestJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the latest jobs, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.IngestJob, error) {
	var jobs []domain.IngestJob
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
