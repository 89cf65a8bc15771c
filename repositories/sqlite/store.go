package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/upb/sorobai/backend/repositories"
	"github.com/upb/sorobai/backend/repositories/sqlite/migrations"
)

// Store is a SQLite database holding fragments and chat requests.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewStore opens (or creates) the database file at path and applies pending
// migrations.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent inserts.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the database answers queries.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

// Repositories returns every repository backed by this store.
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Fragments:    &fragmentStore{store: s},
		ChatRequests: &chatRequestStore{store: s},
		Transactions: &txManager{store: s},
		Health:       s,
	}
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("migration applied", zap.String("name", name))
	}

	return nil
}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) exec(ctx context.Context) executor {
	if tx, ok := repositories.TransactionFromContext(ctx); ok {
		if t, ok := tx.(*transaction); ok {
			return t.tx
		}
	}
	return s.db
}

type txManager struct {
	store *Store
}

var _ repositories.TransactionManager = (*txManager)(nil)

func (m *txManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	tx, err := m.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &transaction{tx: tx, ctx: ctx}, nil
}

func (m *txManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	txCtx := repositories.ContextWithTransaction(ctx, t)

	if err := fn(txCtx, t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			m.store.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err))
		}
		return err
	}
	return t.Commit()
}

type transaction struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (t *transaction) Context() context.Context {
	return t.ctx
}
