//go:build cgo

// DuckDB links against libduckdb and is only available in CGO builds.
package db

import (
	_ "github.com/marcboeker/go-duckdb"
)

// DuckDBDriver is the database/sql driver name of DuckDB.
const DuckDBDriver = "duckdb"
