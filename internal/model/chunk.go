package model

// Chunk is one bounded segment of a document's text. Chunks are written
// once during ingestion and never mutated; re-ingestion replaces the whole
// set for a document.
type Chunk struct {
	ID         int64             `json:"id"`
	DocumentID string            `json:"document_id"`
	PageNumber int               `json:"page_number"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"chunk_text"`
	Metadata   map[string]string `json:"metadata"`
	// Embedding is nil while the chunk is waiting for the re-embed job.
	Embedding []float32 `json:"-"`
}

// SearchHit is a chunk joined with its document and a cosine similarity
// score in [-1, 1].
type SearchHit struct {
	ChunkID       int64   `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	SourcePath    string  `json:"source_path"`
	PageNumber    int     `json:"page_number"`
	ChunkIndex    int     `json:"chunk_index"`
	Text          string  `json:"chunk_text"`
	Score         float64 `json:"score"`
}
