package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/logger"
	"github.com/timmy/tenderkg/internal/repository"
)

// KnowledgeStore is the temporal knowledge graph the pipeline writes into.
type KnowledgeStore interface {
	AddUnit(ctx context.Context, in domain.EpisodeInput) error
	UnitExists(ctx context.Context, identityKey string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Fact, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	GetModel() string
}

// VectorIndex is the part of QdrantRepository the knowledge service uses.
type VectorIndex interface {
	Upsert(ctx context.Context, pointID string, vector []float32, payload *repository.EpisodePayload) error
	Search(ctx context.Context, vector []float32, topK int, sourceID string) ([]repository.SearchResult, error)
	Delete(ctx context.Context, pointID string) error
}

// DefaultSearchLimit is used when a search asks for no specific limit.
const DefaultSearchLimit = 10

// KnowledgeService stores episodes in the database and, when a vector index
// is configured, indexes them for semantic search.
type KnowledgeService struct {
	episodes   *repository.EpisodeRepository
	vectors    VectorIndex
	embedder   Embedder
	collection string
}

// NewKnowledgeService creates a knowledge service. vectors and embedder may
// both be nil, in which case search falls back to text matching.
func NewKnowledgeService(episodes *repository.EpisodeRepository, vectors VectorIndex, embedder Embedder, collection string) *KnowledgeService {
	if vectors == nil || embedder == nil {
		vectors, embedder = nil, nil
	}
	return &KnowledgeService{
		episodes:   episodes,
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
	}
}

// VectorEnabled reports whether episodes are indexed for semantic search.
func (s *KnowledgeService) VectorEnabled() bool {
	return s.vectors != nil
}

// AddUnit commits one unit. The write is an upsert on the identity key, so
// replaying it is harmless. When the database write fails after the vector
// was indexed, the vector is removed again.
func (s *KnowledgeService) AddUnit(ctx context.Context, in domain.EpisodeInput) error {
	unit := in.Unit
	key := unit.IdentityKey()
	refTime := in.ReferenceTime
	if refTime.IsZero() {
		refTime = time.Now()
	}

	rec := &domain.EpisodeRecord{
		ID:                uuid.New().String(),
		IdentityKey:       key,
		Title:             unit.Title,
		Content:           unit.Content,
		ContentHash:       unit.ContentHash,
		SourceID:          in.SourceID,
		SourceDescription: in.SourceDescription,
		ReferenceTime:     refTime,
	}

	var pointID string
	if s.vectors != nil {
		vector, err := s.embedder.Embed(ctx, unit.Title+"\n"+unit.Content)
		if err != nil {
			return errors.Wrapf(err, "embed %s", key)
		}
		pointID = generateDeterministicPointID(key, s.collection)
		payload := &repository.EpisodePayload{
			IdentityKey:       key,
			Title:             unit.Title,
			Content:           unit.Content,
			SourceID:          in.SourceID,
			SourceDescription: in.SourceDescription,
		}
		if err := s.vectors.Upsert(ctx, pointID, vector, payload); err != nil {
			return errors.Wrapf(err, "index %s", key)
		}
		rec.VectorPointID = pointID
		rec.EmbeddingModel = s.embedder.GetModel()
	}

	if err := s.episodes.Upsert(ctx, rec); err != nil {
		if pointID != "" {
			if delErr := s.vectors.Delete(context.WithoutCancel(ctx), pointID); delErr != nil {
				logger.FromContext(ctx).WithError(delErr).WithField("point_id", pointID).
					Error("Failed to roll back vector after database failure")
			}
		}
		return errors.Wrapf(err, "store %s", key)
	}
	return nil
}

// UnitExists reports whether a unit with identityKey was committed.
func (s *KnowledgeService) UnitExists(ctx context.Context, identityKey string) (bool, error) {
	exists, err := s.episodes.ExistsByIdentityKey(ctx, identityKey)
	if err != nil {
		return false, errors.Wrap(err, "check episode existence")
	}
	return exists, nil
}

// Search returns the facts most relevant to query.
func (s *KnowledgeService) Search(ctx context.Context, query string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if s.vectors == nil {
		return s.searchText(ctx, query, limit)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "embed query")
	}
	hits, err := s.vectors.Search(ctx, vector, limit, "")
	if err != nil {
		return nil, errors.Wrap(err, "vector search")
	}

	facts := make([]domain.Fact, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload == nil {
			continue
		}
		facts = append(facts, domain.Fact{
			IdentityKey: hit.Payload.IdentityKey,
			Title:       hit.Payload.Title,
			Fact:        hit.Payload.Content,
			SourceID:    hit.Payload.SourceID,
			Score:       hit.Score,
		})
	}
	return facts, nil
}

func (s *KnowledgeService) searchText(ctx context.Context, query string, limit int) ([]domain.Fact, error) {
	recs, err := s.episodes.SearchText(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "text search")
	}
	facts := make([]domain.Fact, len(recs))
	for i, rec := range recs {
		facts[i] = domain.Fact{
			IdentityKey: rec.IdentityKey,
			Title:       rec.Title,
			Fact:        rec.Content,
			SourceID:    rec.SourceID,
		}
	}
	return facts, nil
}

// generateDeterministicPointID derives a stable Qdrant point ID so that
// re-indexing the same unit overwrites its point instead of adding one.
func generateDeterministicPointID(identityKey, collection string) string {
	namespace := uuid.NewSHA1(uuid.NameSpaceURL, []byte("tenderkg:"+collection))
	return uuid.NewSHA1(namespace, []byte(identityKey)).String()
}
