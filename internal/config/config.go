package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	AI            AIConfig         `json:"ai"`
	Chunker       ChunkerConfig    `json:"chunker"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Ingest        IngestConfig     `json:"ingest"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Jobs          JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
	// Fallback, when set, is tried after the primary provider fails.
	Fallback *AIProviderConfig `json:"fallback"`
}

type AIConfig struct {
	Embedding      AIProviderConfig `json:"embedding"`
	EmbeddingDim   int              `json:"embedding_dim"`
	Generation     AIProviderConfig `json:"generation"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	MaxRetries     int              `json:"max_retries"`
	CacheSize      int              `json:"cache_size"`
	CacheTTLHours  int              `json:"cache_ttl_hours"`
}

type ChunkerConfig struct {
	MaxChars     int `json:"max_chars"`
	OverlapChars int `json:"overlap_chars"`
}

type RetrievalConfig struct {
	DefaultTopK     int     `json:"default_top_k"`
	MaxTopK         int     `json:"max_top_k"`
	DefaultMinScore float64 `json:"default_min_score"`
	PreviewChars    int     `json:"preview_chars"`
}

type IngestConfig struct {
	MaxFileSizeMB    int `json:"max_file_size_mb"`
	RateLimitSeconds int `json:"rate_limit_seconds"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	ReembedSpec      string `json:"reembed_spec"`
	ReembedBatch     int    `json:"reembed_batch"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheKeepDays    int    `json:"cache_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Embedding.Provider == "" {
		return nil, fmt.Errorf("ai.embedding.provider is required")
	}
	if cfg.AI.Embedding.Model == "" {
		return nil, fmt.Errorf("ai.embedding.model is required")
	}
	if cfg.AI.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("ai.embedding_dim is required")
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.MaxRetries < 0 {
		cfg.AI.MaxRetries = 0
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 4096
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 2
	}
	if cfg.Chunker.MaxChars <= 0 {
		cfg.Chunker.MaxChars = 900
	}
	if cfg.Chunker.OverlapChars < 0 {
		cfg.Chunker.OverlapChars = 0
	}
	if cfg.Chunker.OverlapChars == 0 {
		cfg.Chunker.OverlapChars = 150
	}
	if cfg.Chunker.OverlapChars >= cfg.Chunker.MaxChars {
		return nil, fmt.Errorf("chunker.overlap_chars must be smaller than chunker.max_chars")
	}
	if cfg.Retrieval.DefaultTopK <= 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.MaxTopK <= 0 {
		cfg.Retrieval.MaxTopK = 200
	}
	if cfg.Retrieval.PreviewChars < 0 {
		cfg.Retrieval.PreviewChars = 0
	}
	if cfg.Ingest.MaxFileSizeMB <= 0 {
		cfg.Ingest.MaxFileSizeMB = 32
	}
	if cfg.Jobs.ReembedSpec == "" {
		cfg.Jobs.ReembedSpec = "*/5 * * * *"
	}
	if cfg.Jobs.ReembedBatch <= 0 {
		cfg.Jobs.ReembedBatch = 64
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "30 3 * * *"
	}
	if cfg.Jobs.CacheKeepDays <= 0 {
		cfg.Jobs.CacheKeepDays = 30
	}
	return &cfg, nil
}
