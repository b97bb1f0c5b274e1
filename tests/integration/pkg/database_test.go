//go:build integration

package pkg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/database"
	"fleetrouting/tests/integration/testutil"
)

func connectPostgres(t *testing.T) *database.PostgresDB {
	t.Helper()
	testutil.SkipIfNotIntegration(t)

	ctx, cancel := testutil.Context(t)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, testutil.PostgresConfig())
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	testutil.Cleanup(t, db.Close)
	return db
}

// scratchTable создаёт одноразовую таблицу и удаляет её после теста
func scratchTable(t *testing.T, db *database.PostgresDB, schema string) string {
	t.Helper()

	ctx, cancel := testutil.Context(t)
	defer cancel()

	table := "it_" + testutil.RandomString(8)
	_, err := db.Exec(ctx, fmt.Sprintf("CREATE TABLE %s %s", table, schema))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := testutil.Context(t)
		defer cancel()
		_, _ = db.Exec(ctx, "DROP TABLE IF EXISTS "+table)
	})
	return table
}

func TestPostgresDB_Connect(t *testing.T) {
	db := connectPostgres(t)
	ctx, cancel := testutil.Context(t)
	defer cancel()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.HealthCheck(ctx))
	assert.NotNil(t, db.Stats())
}

func TestPostgresDB_ExecQuery(t *testing.T) {
	db := connectPostgres(t)
	ctx, cancel := testutil.Context(t)
	defer cancel()

	table := scratchTable(t, db, "(id TEXT PRIMARY KEY, value INT)")

	_, err = db.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id, value) VALUES ($1, $2)", table), "k1", 42)
	require.NoError(t, err)

	var value int
	require.NoError(t, db.QueryRow(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = $1", table), "k1").Scan(&value))
	assert.Equal(t, 42, value)
}

func TestWithTransaction_RealDatabase(t *testing.T) {
	db := connectPostgres(t)
	ctx, cancel := testutil.Context(t)
	defer cancel()

	table := scratchTable(t, db, "(id TEXT PRIMARY KEY)")

	// Коммит
	err := database.WithTransaction(ctx, db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id) VALUES ($1)", table), "committed")
		return err
	})
	require.NoError(t, err)

	// Откат
	rollbackErr := errors.New("force rollback")
	err = database.WithTransaction(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id) VALUES ($1)", table), "discarded"); err != nil {
			return err
		}
		return rollbackErr
	})
	require.ErrorIs(t, err, rollbackErr)

	var count int
	require.NoError(t, db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count))
	assert.Equal(t, 1, count)
}
