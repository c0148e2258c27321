//go:build !cgo_sqlite

package db

import (
	_ "modernc.org/sqlite" // pure Go SQLite
)

// SQLiteDriver is the database/sql driver name of the SQLite build in use.
const SQLiteDriver = "sqlite"
