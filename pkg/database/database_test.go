package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Моки ---

type mockDB struct {
	mock.Mock
}

func (m *mockDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	args := m.Called(ctx, txOptions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

// Остальные методы интерфейса DB в транзакционных тестах не участвуют.
// Заглушки:
func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *mockDB) Close()                                                        {}
func (m *mockDB) Ping(ctx context.Context) error                                { return nil }

type mockTx struct {
	mock.Mock
}

func (m *mockTx) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockTx) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Заглушки остальных методов Tx
func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *mockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *mockTx) Conn() *pgx.Conn                                               { return nil }

func newTxMocks(t *testing.T) (*mockDB, *mockTx) {
	t.Helper()
	return new(mockDB), new(mockTx)
}

// --- Тесты ---

func TestWithTransaction_Commit(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	tx.On("Commit", ctx).Return(nil)

	called := false
	err := WithTransaction(ctx, db, func(tx pgx.Tx) error {
		called = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()
	wantErr := errors.New("db error")

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	tx.On("Rollback", ctx).Return(nil)

	err := WithTransaction(ctx, db, func(tx pgx.Tx) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	// При панике тоже должен быть откат
	tx.On("Rollback", ctx).Return(nil)

	assert.Panics(t, func() {
		_ = WithTransaction(ctx, db, func(tx pgx.Tx) error {
			panic("unexpected")
		})
	})

	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransaction_BeginError(t *testing.T) {
	db, _ := newTxMocks(t)
	ctx := context.Background()
	beginErr := errors.New("pool exhausted")

	db.On("BeginTx", ctx, mock.Anything).Return(nil, beginErr)

	err := WithTransaction(ctx, db, func(tx pgx.Tx) error {
		t.Fatal("функция не должна вызываться при ошибке BeginTx")
		return nil
	})

	assert.ErrorIs(t, err, beginErr)
	db.AssertExpectations(t)
}

func TestWithTransactionResult_ReturnsValue(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	tx.On("Commit", ctx).Return(nil)

	id, err := WithTransactionResult(ctx, db, func(tx pgx.Tx) (int64, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransactionResult_ZeroOnError(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()
	wantErr := errors.New("insert failed")

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	tx.On("Rollback", ctx).Return(nil)

	id, err := WithTransactionResult(ctx, db, func(tx pgx.Tx) (int64, error) {
		return 7, wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Zero(t, id)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestWithTransactionResult_CommitError(t *testing.T) {
	db, tx := newTxMocks(t)
	ctx := context.Background()
	commitErr := errors.New("serialization failure")

	db.On("BeginTx", ctx, mock.Anything).Return(tx, nil)
	tx.On("Commit", ctx).Return(commitErr)

	_, err := WithTransactionResult(ctx, db, func(tx pgx.Tx) (string, error) {
		return "ok", nil
	})

	assert.ErrorIs(t, err, commitErr)
	db.AssertExpectations(t)
	tx.AssertExpectations(t)
}
