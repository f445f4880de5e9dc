package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"ragserver/internal/model"
	"ragserver/internal/pkg/dbutil"
	appErr "ragserver/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert keys documents by content checksum: re-ingesting identical bytes
// returns the existing row, a changed file gets a fresh one. Title and
// source path follow the latest request either way.
func (r *DocumentRepo) Upsert(ctx context.Context, title, sourcePath, checksum string, now int64) (string, error) {
	const query = `
		INSERT INTO documents (title, source_path, checksum, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (checksum) DO UPDATE SET
			title = EXCLUDED.title,
			source_path = EXCLUDED.source_path
		RETURNING id
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, title, sourcePath, checksum, now).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": docID,
	}
	return r.getOne(ctx, where)
}

func (r *DocumentRepo) GetByChecksum(ctx context.Context, checksum string) (*model.Document, error) {
	where := map[string]interface{}{
		"checksum": checksum,
	}
	return r.getOne(ctx, where)
}

func (r *DocumentRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id", "title", "source_path", "checksum", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr = dbutil.Rebind(sqlStr)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Checksum, &doc.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) List(ctx context.Context) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.title, d.source_path, d.checksum, d.ctime, COUNT(c.id) AS chunk_count
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id, d.title, d.source_path, d.checksum, d.ctime
		ORDER BY d.ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Checksum, &doc.Ctime, &doc.ChunkCount); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document; its chunks go with it via FK cascade.
func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, docID)
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
