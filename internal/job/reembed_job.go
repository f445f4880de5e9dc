package job

import (
	"context"

	"ragserver/internal/service"
)

// ReembedJob retries embedding for chunks stored with a NULL vector
// after their provider call failed during ingest.
type ReembedJob struct {
	ingest *service.IngestService
	batch  int
}

func NewReembedJob(ingest *service.IngestService, batch int) *ReembedJob {
	return &ReembedJob{ingest: ingest, batch: batch}
}

func (j *ReembedJob) Name() string {
	return "reembed_pending_chunks"
}

func (j *ReembedJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	batch := j.batch
	if batch <= 0 {
		batch = 64
	}
	return j.ingest.ProcessPendingEmbeddings(ctx, batch)
}
