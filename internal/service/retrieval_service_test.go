package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ragserver/internal/config"
	"ragserver/internal/model"
	appErr "ragserver/internal/pkg/errors"
	"ragserver/internal/service"
)

func newRetrievalService(chunks *fakeChunkStore, embedder *fakeEmbedder) *service.RetrievalService {
	return service.NewRetrievalService(chunks, embedder, config.RetrievalConfig{
		DefaultTopK: 5,
		MaxTopK:     20,
	})
}

func TestRetrieveValidatesQuery(t *testing.T) {
	svc := newRetrievalService(newFakeChunkStore(), &fakeEmbedder{})

	_, err := svc.Retrieve(context.Background(), "   ", service.RetrieveOptions{})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Retrieve(context.Background(), "query", service.RetrieveOptions{TopK: -1})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRetrieveAppliesTopKDefaultsAndCap(t *testing.T) {
	chunks := newFakeChunkStore()
	svc := newRetrievalService(chunks, &fakeEmbedder{})

	_, err := svc.Retrieve(context.Background(), "query", service.RetrieveOptions{})
	require.NoError(t, err)
	require.Equal(t, 5, chunks.lastSearch.TopK)

	_, err = svc.Retrieve(context.Background(), "query", service.RetrieveOptions{TopK: 3})
	require.NoError(t, err)
	require.Equal(t, 3, chunks.lastSearch.TopK)

	_, err = svc.Retrieve(context.Background(), "query", service.RetrieveOptions{TopK: 500})
	require.NoError(t, err)
	require.Equal(t, 20, chunks.lastSearch.TopK)
}

func TestRetrievePassesFiltersThrough(t *testing.T) {
	chunks := newFakeChunkStore()
	chunks.searchHits = []model.SearchHit{{ChunkID: 1, Text: "hit", Score: 0.9}}
	svc := newRetrievalService(chunks, &fakeEmbedder{})

	hits, err := svc.Retrieve(context.Background(), "query", service.RetrieveOptions{
		TopK:       2,
		MinScore:   0.4,
		DocumentID: "doc-9",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 0.4, chunks.lastSearch.MinScore)
	require.Equal(t, "doc-9", chunks.lastSearch.DocumentID)
	require.NotEmpty(t, chunks.lastVector)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("backend down")}
	svc := newRetrievalService(newFakeChunkStore(), embedder)

	_, err := svc.Retrieve(context.Background(), "query", service.RetrieveOptions{})
	require.ErrorIs(t, err, appErr.ErrEmbedding)
}

func TestRetrieveStorageFailure(t *testing.T) {
	chunks := newFakeChunkStore()
	chunks.searchErr = errors.New("connection refused")
	svc := newRetrievalService(chunks, &fakeEmbedder{})

	_, err := svc.Retrieve(context.Background(), "query", service.RetrieveOptions{})
	require.ErrorIs(t, err, appErr.ErrStorage)
}
