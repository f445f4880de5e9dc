package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// WrapRetryToEmbedder retries transient embed failures a bounded number of
// times with doubling backoff. Exhausting the retries returns the last
// error; callers decide whether that degrades the request or just one chunk.
func WrapRetryToEmbedder(e IEmbedder, retries int, backoff time.Duration) IEmbedder {
	if e == nil || retries <= 0 {
		return e
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retryEmbedder{next: e, retries: retries, backoff: backoff}
}

type retryEmbedder struct {
	next    IEmbedder
	retries int
	backoff time.Duration
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	wait := r.backoff
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			logutil.GetLogger(ctx).Warn("retrying embed",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		res, err := r.next.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
