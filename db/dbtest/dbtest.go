// Package dbtest opens throwaway SQLite databases with every table created.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
)

// DSN returns a file-backed SQLite DSN inside the test's temp dir.
func DSN(t testing.TB) string {
	return "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open creates a database with all tables. It is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()
	database, err := db.NewDB(ctx, db.Options{
		Driver:   db.SQLiteDriver,
		DSN:      DSN(t),
		MaxConns: 16,
		Logger:   logr.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, tables.Init(ctx, database))
	return database
}

// Conn opens a pinned connection on database, closed when the test ends.
func Conn(t testing.TB, database *db.DB) *db.Conn {
	t.Helper()
	c := database.Conn(t.Name())
	require.NoError(t, c.Open(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}
