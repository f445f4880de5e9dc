package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyEmbedder struct {
	failTimes int
	calls     int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, errors.New("transient")
	}
	return []float32{1}, nil
}

func (f *flakyEmbedder) ModelName() string {
	return "flaky"
}

func TestRetryEmbedderRecovers(t *testing.T) {
	flaky := &flakyEmbedder{failTimes: 2}
	wrapped := WrapRetryToEmbedder(flaky, 3, time.Millisecond)

	vec, err := wrapped.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{1}, vec)
	require.Equal(t, 3, flaky.calls)
	require.Equal(t, "flaky", wrapped.ModelName())
}

func TestRetryEmbedderExhausted(t *testing.T) {
	flaky := &flakyEmbedder{failTimes: 100}
	wrapped := WrapRetryToEmbedder(flaky, 2, time.Millisecond)

	_, err := wrapped.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.Error(t, err)
	// One initial attempt plus two retries.
	require.Equal(t, 3, flaky.calls)
}

func TestRetryEmbedderHonorsContext(t *testing.T) {
	flaky := &flakyEmbedder{failTimes: 100}
	wrapped := WrapRetryToEmbedder(flaky, 5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wrapped.Embed(ctx, "text", TaskRetrievalDocument)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, flaky.calls)
}

func TestRetryWrapNoops(t *testing.T) {
	flaky := &flakyEmbedder{}
	require.Equal(t, IEmbedder(flaky), WrapRetryToEmbedder(flaky, 0, 0))
	require.Nil(t, WrapRetryToEmbedder(nil, 3, 0))
}
