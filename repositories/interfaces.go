package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/sorobai/backend/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

type txContextKey struct{}

// ContextWithTransaction returns a context carrying tx. Repositories called
// with the returned context run their statements inside tx.
func ContextWithTransaction(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TransactionFromContext retrieves the transaction stored by ContextWithTransaction
func TransactionFromContext(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(Transaction)
	return tx, ok
}

// FragmentRepository stores documentation fragments and answers similarity queries
type FragmentRepository interface {
	// Insert stores a fragment with its embedding
	Insert(ctx context.Context, fragment *models.Fragment) error

	// Search returns up to limit fragments ordered by descending cosine similarity.
	// Sparse data yields fewer results, never an error.
	Search(ctx context.Context, embedding []float32, limit int) ([]*models.Fragment, error)

	// FindByFile returns the fragments of one source file in chunk order
	FindByFile(ctx context.Context, file string, limit int) ([]*models.Fragment, error)

	// DeleteAll removes every fragment and returns how many were removed
	DeleteAll(ctx context.Context) (int64, error)

	// CountByLanguage returns the number of fragments per documentation language
	CountByLanguage(ctx context.Context) (map[models.Language]int, error)
}

// ChatRequestRepository handles the request log
type ChatRequestRepository interface {
	// Create persists a finished request
	Create(ctx context.Context, req *models.ChatRequest) error

	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatRequest, error)

	// List returns requests newest first
	List(ctx context.Context, limit, offset int) ([]*models.ChatRequest, error)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Fragments    FragmentRepository
	ChatRequests ChatRequestRepository
	Transactions TransactionManager
	Health       Pinger
}
