package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"ragserver/internal/ai"
	"ragserver/internal/config"
	"ragserver/internal/model"
	appErr "ragserver/internal/pkg/errors"
	"ragserver/internal/repo"
)

type RetrievalService struct {
	chunks   ChunkStore
	embedder ai.IEmbedder
	cfg      config.RetrievalConfig
}

func NewRetrievalService(chunks ChunkStore, embedder ai.IEmbedder, cfg config.RetrievalConfig) *RetrievalService {
	return &RetrievalService{chunks: chunks, embedder: embedder, cfg: cfg}
}

type RetrieveOptions struct {
	// TopK zero means the configured default; negative is rejected.
	TopK       int
	MinScore   float64
	DocumentID string
}

func (s *RetrievalService) EmbeddingModelName() string {
	return s.embedder.ModelName()
}

// Retrieve embeds the query and ranks stored chunks against it. Embedding
// failure fails the whole request; there are no partial results.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", appErr.ErrInvalid)
	}
	if opts.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", appErr.ErrInvalid)
	}
	if opts.TopK == 0 {
		opts.TopK = s.cfg.DefaultTopK
	}
	if opts.TopK > s.cfg.MaxTopK {
		opts.TopK = s.cfg.MaxTopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", query), zap.Int("top_k", opts.TopK))

	queryVec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("failed to embed query", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbedding, err)
	}
	hits, err := s.chunks.Search(ctx, queryVec, repo.SearchOptions{
		TopK:       opts.TopK,
		MinScore:   opts.MinScore,
		DocumentID: opts.DocumentID,
	})
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
	}
	logger.Debug("retrieval finished", zap.Int("hits", len(hits)))
	return hits, nil
}
