package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db             *sql.DB
	embeddingModel string
	aiConfigured   bool
}

func NewHealthHandler(db *sql.DB, embeddingModel string, aiConfigured bool) *HealthHandler {
	return &HealthHandler{db: db, embeddingModel: embeddingModel, aiConfigured: aiConfigured}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	dbOK := true
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status = "degraded"
		dbOK = false
	}
	// Degraded still answers 200 so operators get the detail fields
	// instead of a bare failure.
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"db_reachable":    dbOK,
		"embedding_model": h.embeddingModel,
		"ai_configured":   h.aiConfigured,
	})
}
