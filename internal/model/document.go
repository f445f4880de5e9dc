package model

type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path"`
	Checksum   string `json:"checksum"`
	ChunkCount int    `json:"chunk_count"`
	Ctime      int64  `json:"ctime"`
}
