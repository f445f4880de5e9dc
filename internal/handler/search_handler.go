package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragserver/internal/pkg/errcode"
	"ragserver/internal/pkg/response"
	"ragserver/internal/service"
)

type SearchHandler struct {
	retrieval    *service.RetrievalService
	previewChars int
}

func NewSearchHandler(retrieval *service.RetrievalService, previewChars int) *SearchHandler {
	return &SearchHandler{retrieval: retrieval, previewChars: previewChars}
}

type searchRequest struct {
	Query        string  `json:"query"`
	TopK         int     `json:"top_k"`
	MinScore     float64 `json:"min_score"`
	DocumentID   string  `json:"document_id"`
	PreviewChars int     `json:"preview_chars"`
}

type searchResult struct {
	ChunkText     string  `json:"chunk_text"`
	Score         float64 `json:"score"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	PageNumber    int     `json:"page_number"`
	ChunkIndex    int     `json:"chunk_index"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	hits, err := h.retrieval.Retrieve(c.Request.Context(), req.Query, service.RetrieveOptions{
		TopK:       req.TopK,
		MinScore:   req.MinScore,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	preview := req.PreviewChars
	if preview <= 0 {
		preview = h.previewChars
	}
	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, searchResult{
			ChunkText:     previewText(hit.Text, preview),
			Score:         hit.Score,
			DocumentID:    hit.DocumentID,
			DocumentTitle: hit.DocumentTitle,
			PageNumber:    hit.PageNumber,
			ChunkIndex:    hit.ChunkIndex,
		})
	}
	response.Success(c, gin.H{"query": req.Query, "results": results})
}

func previewText(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
