package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "generated by " + model, nil
}

func (stubProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func TestProviderRegistry(t *testing.T) {
	Register("Stub-Test", func(args interface{}) (IProvider, error) {
		return stubProvider{}, nil
	})

	p, err := NewProvider("stub-test", nil)
	require.NoError(t, err)
	require.Equal(t, "stub", p.Name())

	// Lookup is case and whitespace insensitive.
	_, err = NewProvider("  STUB-TEST ", nil)
	require.NoError(t, err)

	_, err = NewProvider("", nil)
	require.Error(t, err)
	_, err = NewProvider("no-such-provider", nil)
	require.Error(t, err)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	e := NewEmbedder(stubProvider{}, "m")
	vecs, err := EmbedBatch(context.Background(), e, []string{"a", "bb", "ccc"}, TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, []float32{1}, vecs[0])
	require.Equal(t, []float32{2}, vecs[1])
	require.Equal(t, []float32{3}, vecs[2])
}

func TestEmbedBatchFailsFast(t *testing.T) {
	broken := &stubEmbedder{err: errors.New("down")}
	_, err := EmbedBatch(context.Background(), broken, []string{"a", "b"}, TaskRetrievalQuery)
	require.Error(t, err)
	require.Equal(t, 1, broken.calls)
}
