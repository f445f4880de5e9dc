package handler

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"ragserver/internal/middleware"
)

type RouterDeps struct {
	Ingest   *IngestHandler
	Search   *SearchHandler
	Answer   *AnswerHandler
	Document *DocumentHandler
	Health   *HealthHandler
}

func NewRouter(allowlist []string, ingestWindow time.Duration, deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(allowlist))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	api := engine.Group("/api/v1")
	api.GET("/health", deps.Health.Health)
	if ingestWindow > 0 {
		api.POST("/ingest", middleware.RateLimit(ingestWindow), deps.Ingest.Ingest)
	} else {
		api.POST("/ingest", deps.Ingest.Ingest)
	}
	api.POST("/search", deps.Search.Search)
	api.POST("/answer", deps.Answer.Answer)
	api.GET("/documents", deps.Document.List)
	api.GET("/documents/:id", deps.Document.Get)
	api.DELETE("/documents/:id", deps.Document.Delete)
	return engine
}
