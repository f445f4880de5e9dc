package testutil

import (
	"database/sql"
	"os"
	"testing"

	"ragserver/internal/config"
	"ragserver/internal/db"
)

// TestEmbeddingDim is the vector size the test schema is created with.
// Keep test vectors this long.
const TestEmbeddingDim = 8

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "ragserver",
		Password: "ragserver_pass",
		DBName:   "ragserver_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn, TestEmbeddingDim); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	truncate(t, conn)
	return conn, func() {
		_ = conn.Close()
	}
}

func truncate(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, table := range []string{"chunks", "documents", "embedding_cache"} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// Vec pads or trims values to the schema's embedding size.
func Vec(values ...float32) []float32 {
	out := make([]float32, TestEmbeddingDim)
	copy(out, values)
	return out
}
