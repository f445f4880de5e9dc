package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragserver/internal/pkg/errcode"
	"ragserver/internal/pkg/response"
	"ragserver/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Ingest accepts a multipart upload (file, optional title) and runs the
// ingestion pipeline.
func (h *IngestHandler) Ingest(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "cannot open upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "cannot read upload")
		return
	}
	title := c.PostForm("title")

	result, err := h.ingest.Ingest(c.Request.Context(), fileHeader.Filename, title, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
