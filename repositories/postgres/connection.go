package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/sorobai/backend/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema creates the pgvector extension and the tables. dimensions fixes
// the embedding column width and must match the embedding model.
func (db *DB) InitSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}

	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		-- Documentation fragments
		CREATE TABLE IF NOT EXISTS soroban_chunks (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			chunk_index INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Request log
		CREATE TABLE IF NOT EXISTS chat_requests (
			id UUID PRIMARY KEY,
			request_id VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL,
			query TEXT NOT NULL,
			mode VARCHAR(20) NOT NULL,
			language VARCHAR(5) NOT NULL,
			k INTEGER NOT NULL,
			model VARCHAR(100),
			context_used INTEGER NOT NULL DEFAULT 0,
			sources JSONB,
			is_valid BOOLEAN,
			error_count INTEGER NOT NULL DEFAULT 0,
			warning_count INTEGER NOT NULL DEFAULT 0,
			regenerated BOOLEAN NOT NULL DEFAULT false,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			total_tokens INTEGER,
			latency_ms INTEGER,
			error_message TEXT,
			ip_address VARCHAR(45),
			user_agent TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_soroban_chunks_file ON soroban_chunks ((metadata->>'file'));
		CREATE INDEX IF NOT EXISTS idx_soroban_chunks_language ON soroban_chunks ((metadata->>'language_doc'));
		CREATE INDEX IF NOT EXISTS idx_soroban_chunks_embedding ON soroban_chunks USING hnsw (embedding vector_cosine_ops);

		CREATE INDEX IF NOT EXISTS idx_chat_requests_created_at ON chat_requests(created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_requests_request_id ON chat_requests(request_id);
	`, dimensions)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully", zap.Int("dimensions", dimensions))
	return nil
}
