package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EpisodeRepository is the authoritative record of committed episodes.
type EpisodeRepository struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EpisodeRepository: repository instance bound to db.
func NewEpisodeRepository(db *gorm.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// Upsert creates an episode or refreshes the one with the same identity key.
// Replaying a write is harmless.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rec: episode record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *EpisodeRepository) Upsert(ctx context.Context, rec *domain.EpisodeRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "content", "content_hash", "source_id", "source_description",
			"vector_point_id", "embedding_model", "reference_time", "updated_at",
		}),
	}).Create(rec).Error
}

// ExistsByIdentityKey checks if an episode with the given identity key exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: identity key (title + "_" + content hash).
// Returns:
//   - bool: true if a record exists.
//   - error: non-nil if the lookup fails.
func (r *EpisodeRepository) ExistsByIdentityKey(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.EpisodeRecord{}).
		Where("identity_key = ?", key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByIdentityKey retrieves an episode by identity key.
// Returns gorm.ErrRecordNotFound when absent.
func (r *EpisodeRepository) GetByIdentityKey(ctx context.Context, key string) (*domain.EpisodeRecord, error) {
	var rec domain.EpisodeRecord
	if err := r.db.WithContext(ctx).First(&rec, "identity_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// SearchText matches query as a substring of title or content, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: text to look for; empty matches everything.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.EpisodeRecord: matching records.
//   - error: non-nil if the query fails.
func (r *EpisodeRepository) SearchText(ctx context.Context, query string, limit int) ([]domain.EpisodeRecord, error) {
	var recs []domain.EpisodeRecord
	q := r.db.WithContext(ctx)
	if query != "" {
		pattern := "%" + escapeLike(query) + "%"
		q = q.Where("title LIKE ? ESCAPE '\\' OR content LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if err := q.Order("updated_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// ListBySource retrieves the episodes committed for one tender.
func (r *EpisodeRepository) ListBySource(ctx context.Context, sourceID string) ([]domain.EpisodeRecord, error) {
	var recs []domain.EpisodeRecord
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("created_at ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Count returns the number of stored episodes.
func (r *EpisodeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.EpisodeRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountSince returns the number of episodes written at or after t.
func (r *EpisodeRepository) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.EpisodeRecord{}).
		Where("updated_at >= ?", t).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByIdentityKey removes an episode. Deleting a missing key is not an error.
func (r *EpisodeRepository) DeleteByIdentityKey(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Where("identity_key = ?", key).Delete(&domain.EpisodeRecord{}).Error
	return errors.Wrapf(err, "delete episode %s", key)
}

func escapeLike(s string) string {
	var out []rune
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
