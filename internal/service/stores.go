package service

import (
	"context"

	"ragserver/internal/model"
	"ragserver/internal/repo"
)

// Store interfaces cover exactly what the services need from the repo
// layer; the repo structs satisfy them.

type DocumentStore interface {
	Upsert(ctx context.Context, title, sourcePath, checksum string, now int64) (string, error)
	GetByID(ctx context.Context, docID string) (*model.Document, error)
	GetByChecksum(ctx context.Context, checksum string) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	Delete(ctx context.Context, docID string) error
}

type ChunkStore interface {
	Replace(ctx context.Context, documentID string, chunks []*model.Chunk) error
	Search(ctx context.Context, queryVec []float32, opts repo.SearchOptions) ([]model.SearchHit, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
	ListPendingEmbedding(ctx context.Context, limit int) ([]*model.Chunk, error)
	UpdateEmbedding(ctx context.Context, chunkID int64, embedding []float32) error
}
