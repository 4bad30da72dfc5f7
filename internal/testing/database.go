// Package testing holds shared test helpers.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/db"
)

// CreateTestDB opens an in-memory SQLite database with the real schema
// applied, so test schema always matches production schema. Closed via
// t.Cleanup.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = testDB.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(testDB, nil), "migrations must apply")

	t.Cleanup(func() { testDB.Close() })
	return testDB
}
