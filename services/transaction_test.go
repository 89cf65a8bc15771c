package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/sorobai/backend/repositories"
)

// fakeTx records how a transaction ended
type fakeTx struct {
	commitErr   error
	rollbackErr error
	commits     int
	rollbacks   int
}

func (f *fakeTx) Commit() error {
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback() error {
	f.rollbacks++
	return f.rollbackErr
}

func (f *fakeTx) Context() context.Context {
	return context.Background()
}

type fakeTxManager struct {
	tx       *fakeTx
	beginErr error
}

func (m *fakeTxManager) Begin(context.Context) (repositories.Transaction, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, m.tx)
}

func TestRunInTransaction(t *testing.T) {
	storeErr := errors.New("insert failed")

	tests := []struct {
		name          string
		tx            *fakeTx
		beginErr      error
		fnErr         error
		wantErr       string
		wantCommits   int
		wantRollbacks int
		wantResult    int
	}{
		{
			name:        "commits on success",
			tx:          &fakeTx{},
			wantCommits: 1,
			wantResult:  3,
		},
		{
			name:          "rolls back when the work fails",
			tx:            &fakeTx{},
			fnErr:         storeErr,
			wantErr:       "insert failed",
			wantRollbacks: 1,
		},
		{
			name:          "reports a failed rollback with the cause",
			tx:            &fakeTx{rollbackErr: errors.New("conn reset")},
			fnErr:         storeErr,
			wantErr:       "rollback: conn reset",
			wantRollbacks: 1,
		},
		{
			name:     "begin failure",
			tx:       &fakeTx{},
			beginErr: errors.New("pool exhausted"),
			wantErr:  "failed to begin transaction: pool exhausted",
		},
		{
			name:        "commit failure does not roll back again",
			tx:          &fakeTx{commitErr: errors.New("disk full")},
			wantErr:     "failed to commit transaction: disk full",
			wantCommits: 1,
			wantResult:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := &fakeTxManager{tx: tt.tx, beginErr: tt.beginErr}

			got, err := RunInTransaction(context.Background(), mgr, func(context.Context) (int, error) {
				if tt.fnErr != nil {
					return 0, tt.fnErr
				}
				return 3, nil
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				if tt.fnErr != nil {
					assert.ErrorIs(t, err, tt.fnErr)
				}
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantResult, got)
			assert.Equal(t, tt.wantCommits, tt.tx.commits)
			assert.Equal(t, tt.wantRollbacks, tt.tx.rollbacks)
		})
	}
}

func TestRunInTransaction_PanicRollsBack(t *testing.T) {
	tx := &fakeTx{}
	mgr := &fakeTxManager{tx: tx}

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = RunInTransaction(context.Background(), mgr, func(context.Context) (int, error) {
			panic("boom")
		})
	})
	assert.Equal(t, 1, tx.rollbacks)
	assert.Zero(t, tx.commits)
}

func TestRunInTransaction_ContextCarriesTransaction(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{}

	_, err := RunInTransaction(ctx, &fakeTxManager{tx: tx}, func(txCtx context.Context) (struct{}, error) {
		got, ok := repositories.TransactionFromContext(txCtx)
		assert.True(t, ok)
		assert.Same(t, tx, got)
		return struct{}{}, nil
	})

	require.NoError(t, err)
	_, ok := repositories.TransactionFromContext(ctx)
	assert.False(t, ok, "the caller's context is left untouched")
}
