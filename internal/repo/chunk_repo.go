package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"ragserver/internal/model"
	"ragserver/internal/pkg/dbutil"
	appErr "ragserver/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Replace swaps the whole chunk set of a document in one transaction.
// Readers either see the old set or the new one, never a partial mix.
func (r *ChunkRepo) Replace(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO chunks (document_id, page_number, chunk_index, chunk_text, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, chunk := range chunks {
		meta := chunk.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		blob, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		var embedding interface{}
		if chunk.Embedding != nil {
			embedding = pgvector.NewVector(chunk.Embedding)
		}
		if _, err := tx.ExecContext(ctx, insert,
			documentID,
			chunk.PageNumber,
			chunk.ChunkIndex,
			chunk.Text,
			blob,
			embedding,
		); err != nil {
			if dbutil.IsUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate chunk index %d", appErr.ErrConflict, chunk.ChunkIndex)
			}
			return err
		}
	}
	return tx.Commit()
}

type SearchOptions struct {
	TopK       int
	MinScore   float64
	DocumentID string
}

// Search ranks chunks by cosine similarity to the query vector. Score is
// 1 - cosine distance, computed by pgvector; ties break on chunk_index so
// ranking is deterministic. Chunks still waiting for an embedding are
// skipped.
func (r *ChunkRepo) Search(ctx context.Context, queryVec []float32, opts SearchOptions) ([]model.SearchHit, error) {
	if opts.TopK <= 0 {
		return nil, appErr.ErrInvalid
	}
	var sb strings.Builder
	args := []interface{}{pgvector.NewVector(queryVec)}
	sb.WriteString(`
		SELECT c.id, c.document_id, d.title, d.source_path, c.page_number, c.chunk_index, c.chunk_text,
			(1 - (c.embedding <=> $1)) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
	`)
	if opts.DocumentID != "" {
		args = append(args, opts.DocumentID)
		fmt.Fprintf(&sb, " AND c.document_id = $%d", len(args))
	}
	if opts.MinScore > 0 {
		args = append(args, opts.MinScore)
		fmt.Fprintf(&sb, " AND (1 - (c.embedding <=> $1)) >= $%d", len(args))
	}
	args = append(args, opts.TopK)
	fmt.Fprintf(&sb, " ORDER BY score DESC, c.chunk_index ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []model.SearchHit
	for rows.Next() {
		var hit model.SearchHit
		if err := rows.Scan(
			&hit.ChunkID,
			&hit.DocumentID,
			&hit.DocumentTitle,
			&hit.SourcePath,
			&hit.PageNumber,
			&hit.ChunkIndex,
			&hit.Text,
			&hit.Score,
		); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chunks WHERE document_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, documentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListPendingEmbedding returns chunks persisted without a vector; the
// re-embed job drains them.
func (r *ChunkRepo) ListPendingEmbedding(ctx context.Context, limit int) ([]*model.Chunk, error) {
	const query = `
		SELECT id, document_id, page_number, chunk_index, chunk_text
		FROM chunks
		WHERE embedding IS NULL
		ORDER BY id ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.PageNumber, &chunk.ChunkIndex, &chunk.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) UpdateEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	const query = `UPDATE chunks SET embedding = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, pgvector.NewVector(embedding), chunkID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
