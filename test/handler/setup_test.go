package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"ragserver/internal/chunker"
	"ragserver/internal/config"
	"ragserver/internal/handler"
	"ragserver/internal/repo"
	"ragserver/internal/service"
	"ragserver/test/testutil"
)

// deterministicEmbedder maps text onto the test vector space without any
// network dependency. Texts sharing a first byte land close together.
type deterministicEmbedder struct {
	fail bool
}

func (d *deterministicEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if d.fail {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, testutil.TestEmbeddingDim)
	for i, r := range []rune(text) {
		vec[i%testutil.TestEmbeddingDim] += float32(r % 97)
	}
	return vec, nil
}

func (d *deterministicEmbedder) ModelName() string {
	return "test-embedder"
}

type scriptedGenerator struct {
	output string
	err    error
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

type routerOptions struct {
	embedFail bool
	generator *scriptedGenerator
}

func setupRouter(t *testing.T, opts routerOptions) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	docRepo := repo.NewDocumentRepo(db)
	chunkRepo := repo.NewChunkRepo(db)

	embedder := &deterministicEmbedder{fail: opts.embedFail}
	splitter := chunker.New(chunker.Config{MaxChars: 120, Overlap: 20})
	ingestService := service.NewIngestService(docRepo, chunkRepo, embedder, splitter, nil, 1024*1024)
	retrievalService := service.NewRetrievalService(chunkRepo, embedder, config.RetrievalConfig{
		DefaultTopK: 5,
		MaxTopK:     50,
	})
	var answerService *service.AnswerService
	if opts.generator != nil {
		answerService = service.NewAnswerService(retrievalService, opts.generator, "scripted-llm", time.Second)
	} else {
		answerService = service.NewAnswerService(retrievalService, nil, "", time.Second)
	}

	deps := handler.RouterDeps{
		Ingest:   handler.NewIngestHandler(ingestService),
		Search:   handler.NewSearchHandler(retrievalService, 0),
		Answer:   handler.NewAnswerHandler(answerService),
		Document: handler.NewDocumentHandler(ingestService),
		Health:   handler.NewHealthHandler(db, embedder.ModelName(), opts.generator != nil),
	}
	engine := handler.NewRouter(nil, 0, deps)
	return engine, cleanup
}

func uploadFile(t *testing.T, router http.Handler, filename, title, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if title != "" {
		require.NoError(t, writer.WriteField("title", title))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func postJSON(t *testing.T, router http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	blob, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(blob))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func dataField(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}
