package service

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/timmy/tenderkg/internal/config"
	"github.com/timmy/tenderkg/internal/logger"
)

const defaultEmbeddingEndpoint = "https://api.jina.ai/v1/embeddings"

// Jina task names select passage or query optimised embeddings.
const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

// EmbeddingService handles text embedding generation
type EmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *config.EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetLogger(logger.GetDefault())
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEmbeddingEndpoint
	}

	return &EmbeddingService{
		client:     client,
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Jina API request/response structures
type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates an embedding for a single passage
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates passage embeddings for multiple texts, in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return s.call(ctx, taskPassage, texts)
}

// EmbedQuery generates an embedding optimized for query/search
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := s.call(ctx, taskQuery, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (s *EmbeddingService) call(ctx context.Context, task string, texts []string) ([][]float32, error) {
	req := jinaRequest{
		Model:         s.model,
		Task:          task,
		Dimensions:    s.dimensions,
		Input:         texts,
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call embedding API")
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return nil, errors.Newf("embedding API error: %s", resp.Detail)
		}
		return nil, errors.Newf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, errors.Newf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, errors.Newf("embedding %d missing from response", i)
		}
	}
	return embeddings, nil
}
