package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"ragserver/internal/ai"
	"ragserver/internal/chunker"
	"ragserver/internal/config"
	"ragserver/internal/db"
	"ragserver/internal/embedcache"
	"ragserver/internal/filestore"
	"ragserver/internal/handler"
	"ragserver/internal/job"
	"ragserver/internal/repo"
	"ragserver/internal/schedule"
	"ragserver/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragserver",
		Short: "ragserver backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragserver",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbc, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(dbc, cfg.AI.EmbeddingDim); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, dbc)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildEmbedder(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	var entries []ai.EmbedderEntry
	for pc := &cfg.AI.Embedding; pc != nil; pc = pc.Fallback {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedding provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     pc.Model,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	var embedder ai.IEmbedder
	if len(entries) == 1 {
		embedder = entries[0].Embedder
	} else {
		embedder = ai.NewGroupEmbedder(entries)
	}
	if cfg.AI.MaxRetries > 0 {
		embedder = ai.WrapRetryToEmbedder(embedder, cfg.AI.MaxRetries, 0)
	}
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize,
		time.Duration(cfg.AI.CacheTTLHours)*time.Hour)
	return embedder, nil
}

func buildGenerator(cfg *config.Config) (ai.IGenerator, error) {
	if cfg.AI.Generation.Provider == "" {
		return nil, nil
	}
	var entries []ai.GeneratorEntry
	for pc := &cfg.AI.Generation; pc != nil; pc = pc.Fallback {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init generation provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return ai.NewGroupGenerator(entries), nil
}

func runServer(cfg *config.Config, dbc *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_model", cfg.AI.Embedding.Model),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(dbc)
	chunkRepo := repo.NewChunkRepo(dbc)
	cacheRepo := repo.NewEmbeddingCacheRepo(dbc)

	embedder, err := buildEmbedder(cfg, cacheRepo)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	var store filestore.Store
	if cfg.FileStore.Type != "" {
		store, err = filestore.New(cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
	}

	splitter := chunker.New(chunker.Config{
		MaxChars: cfg.Chunker.MaxChars,
		Overlap:  cfg.Chunker.OverlapChars,
	})
	maxBytes := int64(cfg.Ingest.MaxFileSizeMB) * 1024 * 1024
	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

	ingestService := service.NewIngestService(docRepo, chunkRepo, embedder, splitter, store, maxBytes)
	retrievalService := service.NewRetrievalService(chunkRepo, embedder, cfg.Retrieval)
	answerService := service.NewAnswerService(retrievalService, generator, cfg.AI.Generation.Model, aiTimeout)

	deps := handler.RouterDeps{
		Ingest:   handler.NewIngestHandler(ingestService),
		Search:   handler.NewSearchHandler(retrievalService, cfg.Retrieval.PreviewChars),
		Answer:   handler.NewAnswerHandler(answerService),
		Document: handler.NewDocumentHandler(ingestService),
		Health:   handler.NewHealthHandler(dbc, cfg.AI.Embedding.Model, generator != nil),
	}
	ingestWindow := time.Duration(cfg.Ingest.RateLimitSeconds) * time.Second
	engine := handler.NewRouter(cfg.CORSAllowlist, ingestWindow, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewReembedJob(ingestService, cfg.Jobs.ReembedBatch), cfg.Jobs.ReembedSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheKeepDays), cfg.Jobs.CacheCleanupSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: engine}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
