package service_test

import (
	"context"
	"errors"
	"fmt"

	"ragserver/internal/model"
	appErr "ragserver/internal/pkg/errors"
	"ragserver/internal/repo"
)

type fakeDocumentStore struct {
	docs   map[string]*model.Document
	nextID int
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]*model.Document{}}
}

func (f *fakeDocumentStore) Upsert(ctx context.Context, title, sourcePath, checksum string, now int64) (string, error) {
	for _, doc := range f.docs {
		if doc.Checksum == checksum {
			doc.Title = title
			doc.SourcePath = sourcePath
			return doc.ID, nil
		}
	}
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	f.docs[id] = &model.Document{ID: id, Title: title, SourcePath: sourcePath, Checksum: checksum, Ctime: now}
	return id, nil
}

func (f *fakeDocumentStore) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	doc, ok := f.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocumentStore) GetByChecksum(ctx context.Context, checksum string) (*model.Document, error) {
	for _, doc := range f.docs {
		if doc.Checksum == checksum {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeDocumentStore) List(ctx context.Context) ([]model.Document, error) {
	out := make([]model.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, docID string) error {
	if _, ok := f.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(f.docs, docID)
	return nil
}

type fakeChunkStore struct {
	chunks      map[string][]*model.Chunk
	nextChunkID int64

	searchHits []model.SearchHit
	searchErr  error
	lastSearch repo.SearchOptions
	lastVector []float32
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: map[string][]*model.Chunk{}}
}

func (f *fakeChunkStore) Replace(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	stored := make([]*model.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		copied := *chunk
		f.nextChunkID++
		copied.ID = f.nextChunkID
		copied.DocumentID = documentID
		stored = append(stored, &copied)
	}
	f.chunks[documentID] = stored
	return nil
}

func (f *fakeChunkStore) Search(ctx context.Context, queryVec []float32, opts repo.SearchOptions) ([]model.SearchHit, error) {
	f.lastSearch = opts
	f.lastVector = queryVec
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	return len(f.chunks[documentID]), nil
}

func (f *fakeChunkStore) ListPendingEmbedding(ctx context.Context, limit int) ([]*model.Chunk, error) {
	var pending []*model.Chunk
	for _, chunks := range f.chunks {
		for _, chunk := range chunks {
			if chunk.Embedding == nil {
				pending = append(pending, chunk)
				if len(pending) >= limit {
					return pending, nil
				}
			}
		}
	}
	return pending, nil
}

func (f *fakeChunkStore) UpdateEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	for _, chunks := range f.chunks {
		for _, chunk := range chunks {
			if chunk.ID == chunkID {
				chunk.Embedding = embedding
				return nil
			}
		}
	}
	return appErr.ErrNotFound
}

// fakeEmbedder returns a fixed-size vector for any text; texts listed in
// failOn get an error instead.
type fakeEmbedder struct {
	calls  int
	failOn map[string]bool
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn[text] {
		return nil, errors.New("embed backend down")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embedder"
}

type fakeGenerator struct {
	output string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}
