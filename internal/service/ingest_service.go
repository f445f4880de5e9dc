package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"ragserver/internal/ai"
	"ragserver/internal/chunker"
	"ragserver/internal/extract"
	"ragserver/internal/filestore"
	"ragserver/internal/model"
	appErr "ragserver/internal/pkg/errors"
)

type IngestService struct {
	documents DocumentStore
	chunks    ChunkStore
	embedder  ai.IEmbedder
	splitter  *chunker.Chunker
	files     filestore.Store
	maxBytes  int64
}

func NewIngestService(documents DocumentStore, chunks ChunkStore, embedder ai.IEmbedder, splitter *chunker.Chunker, files filestore.Store, maxBytes int64) *IngestService {
	return &IngestService{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		splitter:  splitter,
		files:     files,
		maxBytes:  maxBytes,
	}
}

type IngestResult struct {
	DocumentID   string `json:"document_id"`
	ChunkCount   int    `json:"chunk_count"`
	Title        string `json:"title"`
	Deduplicated bool   `json:"deduplicated"`
}

// Ingest runs the full pipeline for one uploaded file: checksum dedup,
// extraction, chunking, passage embedding, and an atomic chunk replacement.
// A chunk whose embedding fails is still stored (without a vector) and
// picked up later by the re-embed job; only a total embedding failure
// aborts the request.
func (s *IngestService) Ingest(ctx context.Context, filename, title string, data []byte) (*IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("filename", filename))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", appErr.ErrInvalid, s.maxBytes)
	}
	fileType := extract.FileType(filename)
	if fileType == "" {
		return nil, fmt.Errorf("%w: unsupported file type", appErr.ErrInvalid)
	}
	if title = strings.TrimSpace(title); title == "" {
		title = filename
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	// Byte-identical re-upload: same checksum, same deterministic chunk
	// sequence, so the stored set is already correct.
	if existing, err := s.documents.GetByChecksum(ctx, checksum); err == nil {
		count, err := s.chunks.CountByDocument(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
		}
		if count > 0 {
			logger.Info("duplicate ingest, reusing document",
				zap.String("document_id", existing.ID),
				zap.Int("chunk_count", count),
			)
			return &IngestResult{DocumentID: existing.ID, ChunkCount: count, Title: existing.Title, Deduplicated: true}, nil
		}
	} else if !appErr.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
	}

	pages, err := extract.Pages(filename, data)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		"title":     title,
		"file_type": fileType,
		"filename":  filename,
	}
	var candidates []chunker.Candidate
	for _, page := range pages {
		candidates = append(candidates, s.splitter.ChunkPage(page.Text, page.Number, len(candidates), meta)...)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no readable text", appErr.ErrInvalid)
	}

	chunks := make([]*model.Chunk, 0, len(candidates))
	failed := 0
	for _, cand := range candidates {
		embedding, err := s.embedder.Embed(ctx, cand.Text, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("chunk embedding failed, deferring to re-embed job",
				zap.Int("chunk_index", cand.Index),
				zap.Error(err),
			)
			embedding = nil
			failed++
		}
		chunks = append(chunks, &model.Chunk{
			PageNumber: cand.PageNumber,
			ChunkIndex: cand.Index,
			Text:       cand.Text,
			Metadata:   cand.Metadata,
			Embedding:  embedding,
		})
	}
	if failed == len(chunks) {
		return nil, fmt.Errorf("%w: all %d chunks failed to embed", appErr.ErrEmbedding, failed)
	}

	docID, err := s.documents.Upsert(ctx, title, "upload:"+filename, checksum, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
	}
	if err := s.chunks.Replace(ctx, docID, chunks); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
	}
	s.archive(ctx, checksum, filename, data)

	logger.Info("ingestion complete",
		zap.String("document_id", docID),
		zap.Int("chunk_count", len(chunks)),
		zap.Int("pending_embeddings", failed),
	)
	return &IngestResult{DocumentID: docID, ChunkCount: len(chunks), Title: title}, nil
}

func (s *IngestService) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	count, err := s.chunks.CountByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorage, err)
	}
	doc.ChunkCount = count
	return doc, nil
}

func (s *IngestService) ListDocuments(ctx context.Context) ([]model.Document, error) {
	return s.documents.List(ctx)
}

func (s *IngestService) DeleteDocument(ctx context.Context, docID string) error {
	return s.documents.Delete(ctx, docID)
}

// ProcessPendingEmbeddings embeds chunks left without a vector by earlier
// per-chunk failures. Called from the cron job.
func (s *IngestService) ProcessPendingEmbeddings(ctx context.Context, batch int) error {
	logger := logutil.GetLogger(ctx)
	pending, err := s.chunks.ListPendingEmbedding(ctx, batch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	done := 0
	for _, chunk := range pending {
		embedding, err := s.embedder.Embed(ctx, chunk.Text, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("re-embed failed", zap.Int64("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		if err := s.chunks.UpdateEmbedding(ctx, chunk.ID, embedding); err != nil {
			if appErr.IsNotFound(err) {
				// Chunk set was replaced while we were embedding.
				continue
			}
			return err
		}
		done++
	}
	logger.Info("re-embed pass finished", zap.Int("pending", len(pending)), zap.Int("embedded", done))
	return nil
}

// archive keeps the original bytes so the source of a document can be
// recovered. Failure only loses the archive copy, never the ingestion.
func (s *IngestService) archive(ctx context.Context, checksum, filename string, data []byte) {
	if s.files == nil {
		return
	}
	key := checksum + strings.ToLower(filepath.Ext(filename))
	reader := newByteReader(data)
	if err := s.files.Save(ctx, key, reader, int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("failed to archive source file", zap.String("key", key), zap.Error(err))
	}
}

type byteReader struct {
	*bytes.Reader
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{Reader: bytes.NewReader(data)}
}

func (b *byteReader) Close() error {
	return nil
}
