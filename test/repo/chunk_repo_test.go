package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ragserver/internal/model"
	appErr "ragserver/internal/pkg/errors"
	"ragserver/internal/repo"
	"ragserver/test/testutil"
)

func seedDocument(t *testing.T, docs *repo.DocumentRepo, checksum string) string {
	t.Helper()
	id, err := docs.Upsert(context.Background(), "doc "+checksum, checksum+".txt", checksum, time.Now().Unix())
	require.NoError(t, err)
	return id
}

func TestChunkRepoSearchOrderingAndThreshold(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	docID := seedDocument(t, docs, "sum-search")

	require.NoError(t, chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "exact", Embedding: testutil.Vec(1)},
		{DocumentID: docID, ChunkIndex: 1, Text: "close", Embedding: testutil.Vec(1, 1)},
		{DocumentID: docID, ChunkIndex: 2, Text: "orthogonal", Embedding: testutil.Vec(0, 1)},
		{DocumentID: docID, ChunkIndex: 3, Text: "pending", Embedding: nil},
	}))

	query := testutil.Vec(1)
	hits, err := chunks.Search(context.Background(), query, repo.SearchOptions{TopK: 10})
	require.NoError(t, err)
	// The NULL-embedding chunk never shows up.
	require.Len(t, hits, 3)
	require.Equal(t, "exact", hits[0].Text)
	require.Equal(t, "close", hits[1].Text)
	require.Equal(t, "orthogonal", hits[2].Text)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
	require.InDelta(t, 0.7071, hits[1].Score, 1e-3)
	require.InDelta(t, 0.0, hits[2].Score, 1e-6)

	hits, err = chunks.Search(context.Background(), query, repo.SearchOptions{TopK: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = chunks.Search(context.Background(), query, repo.SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "exact", hits[0].Text)

	_, err = chunks.Search(context.Background(), query, repo.SearchOptions{TopK: 0})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestChunkRepoSearchScopedToDocument(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	docA := seedDocument(t, docs, "sum-a")
	docB := seedDocument(t, docs, "sum-b")

	require.NoError(t, chunks.Replace(context.Background(), docA, []*model.Chunk{
		{DocumentID: docA, ChunkIndex: 0, Text: "from a", Embedding: testutil.Vec(1)},
	}))
	require.NoError(t, chunks.Replace(context.Background(), docB, []*model.Chunk{
		{DocumentID: docB, ChunkIndex: 0, Text: "from b", Embedding: testutil.Vec(1)},
	}))

	hits, err := chunks.Search(context.Background(), testutil.Vec(1), repo.SearchOptions{TopK: 10, DocumentID: docB})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "from b", hits[0].Text)
	require.Equal(t, docB, hits[0].DocumentID)
}

func TestChunkRepoReplaceSwapsWholeSet(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	docID := seedDocument(t, docs, "sum-replace")

	require.NoError(t, chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "old 0", Embedding: testutil.Vec(1)},
		{DocumentID: docID, ChunkIndex: 1, Text: "old 1", Embedding: testutil.Vec(1)},
		{DocumentID: docID, ChunkIndex: 2, Text: "old 2", Embedding: testutil.Vec(1)},
	}))
	require.NoError(t, chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "new 0", Embedding: testutil.Vec(0, 1)},
	}))

	count, err := chunks.CountByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	hits, err := chunks.Search(context.Background(), testutil.Vec(0, 1), repo.SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "new 0", hits[0].Text)
}

func TestChunkRepoReplaceRollsBackOnFailure(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	docID := seedDocument(t, docs, "sum-rollback")

	require.NoError(t, chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "keep me", Embedding: testutil.Vec(1)},
	}))

	// A duplicate chunk index violates the unique constraint mid-insert;
	// the old set must survive the failed replacement.
	err := chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "new 0", Embedding: testutil.Vec(1)},
		{DocumentID: docID, ChunkIndex: 0, Text: "dup 0", Embedding: testutil.Vec(1)},
	})
	require.ErrorIs(t, err, appErr.ErrConflict)

	hits, err := chunks.Search(context.Background(), testutil.Vec(1), repo.SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "keep me", hits[0].Text)
}

func TestChunkRepoPendingEmbeddingLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	docID := seedDocument(t, docs, "sum-pending")

	require.NoError(t, chunks.Replace(context.Background(), docID, []*model.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Text: "has vector", Embedding: testutil.Vec(1)},
		{DocumentID: docID, ChunkIndex: 1, Text: "needs vector", Embedding: nil},
	}))

	pending, err := chunks.ListPendingEmbedding(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "needs vector", pending[0].Text)

	require.NoError(t, chunks.UpdateEmbedding(context.Background(), pending[0].ID, testutil.Vec(0, 1)))

	pending, err = chunks.ListPendingEmbedding(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, chunks.UpdateEmbedding(context.Background(), 999999, testutil.Vec(1)), appErr.ErrNotFound)
}
