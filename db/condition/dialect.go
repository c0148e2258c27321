package condition

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderStyle selects how bound parameters appear in statement text.
type PlaceholderStyle int

const (
	// NamedAt renders @name and binds with sql.Named.
	NamedAt PlaceholderStyle = iota
	// NamedDollar renders $name and binds with sql.Named.
	NamedDollar
	// Positional renders ? and binds by order.
	Positional
)

// Dialect captures the syntax differences between the supported databases.
type Dialect struct {
	Name         string
	Quote        byte
	Placeholders PlaceholderStyle
	// OffsetLimit renders "LIMIT n OFFSET m" instead of "LIMIT m,n".
	OffsetLimit bool
	// Returning fetches generated ids with INSERT ... RETURNING.
	Returning bool
}

var (
	SQLite = Dialect{Name: "sqlite", Quote: '`', Placeholders: NamedAt}
	MySQL  = Dialect{Name: "mysql", Quote: '`', Placeholders: Positional}
	DuckDB = Dialect{Name: "duckdb", Quote: '"', Placeholders: NamedDollar, OffsetLimit: true, Returning: true}

	// Default is used by New.
	Default = SQLite
)

// ForDriver returns the dialect spoken by a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "duckdb":
		return DuckDB, nil
	}
	return Dialect{}, fmt.Errorf("no SQL dialect for driver %q", driver)
}

// QuoteIdent quotes a single identifier.
func (d Dialect) QuoteIdent(name string) string {
	q := string(d.Quote)
	return q + name + q
}

// QuoteQualified quotes schema.name.
func (d Dialect) QuoteQualified(schema, name string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(name)
}

// Placeholder renders the placeholder for a parameter called name.
func (d Dialect) Placeholder(name string) string {
	switch d.Placeholders {
	case Positional:
		return "?"
	case NamedDollar:
		return "$" + name
	default:
		return "@" + name
	}
}

// Arg wraps a value for the driver.
func (d Dialect) Arg(name string, v any) any {
	if d.Placeholders == Positional {
		return v
	}
	return sql.Named(name, v)
}

// Limit renders a LIMIT clause selecting count rows starting at start.
func (d Dialect) Limit(start, count int64) string {
	if d.OffsetLimit {
		return "LIMIT " + strconv.FormatInt(count, 10) + " OFFSET " + strconv.FormatInt(start, 10)
	}
	return "LIMIT " + strconv.FormatInt(start, 10) + "," + strconv.FormatInt(count, 10)
}

func (d Dialect) validIdent(name string) bool {
	return name != "" && !strings.ContainsAny(name, ";"+string(d.Quote))
}
