// Package testdb opens a migrated in-memory database for tests.
package testdb

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"stockapp/m/internal/database"
	"stockapp/m/internal/migrations"
)

const memoryDSN = "file::memory:?_pragma=foreign_keys(1)"

// Open returns a fresh schema that is closed when the test ends.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, memoryDSN, database.Pool{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}
