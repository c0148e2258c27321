package db

import (
	"fmt"
	"strings"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// createTable renders the statements that create t and its indexes.
func createTable(d condition.Dialect, t *schema.Table) []string {
	var stmts, defs, trailing []string
	auto, hasAuto := t.AutoIncrement()
	autoName := ""
	if hasAuto {
		autoName = auto.Columns[0].Name
	}
	sequence := "seq_" + t.Name

	for _, c := range t.Columns {
		def := d.QuoteIdent(c.Name) + " " + columnType(d, c)
		if c.Name == autoName {
			switch d.Name {
			case condition.SQLite.Name:
				// SQLite only auto-increments an INTEGER PRIMARY KEY declared inline.
				def = d.QuoteIdent(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
			case condition.MySQL.Name:
				def += " NOT NULL AUTO_INCREMENT"
			case condition.DuckDB.Name:
				stmts = append(stmts, "CREATE SEQUENCE IF NOT EXISTS "+d.QuoteIdent(sequence))
				def += " DEFAULT nextval('" + sequence + "')"
			}
		}
		defs = append(defs, def)
	}

	for _, idx := range t.Indexes {
		cols := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			cols[i] = d.QuoteIdent(c.Name)
		}
		list := "(" + strings.Join(cols, ", ") + ")"
		switch {
		case idx.Kind == schema.Primary:
			if d.Name == condition.SQLite.Name && idx.AutoIncrement {
				continue
			}
			defs = append(defs, "PRIMARY KEY "+list)
		case idx.Kind == schema.Unique:
			defs = append(defs, "UNIQUE "+list)
		case d.Name == condition.MySQL.Name:
			defs = append(defs, "KEY "+d.QuoteIdent(idx.Name)+" "+list)
		default:
			// Index names are global outside MySQL.
			trailing = append(trailing, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s %s",
				d.QuoteIdent(t.Name+"_"+idx.Name), d.QuoteIdent(t.Name), list))
		}
	}

	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(t.Name), strings.Join(defs, ", ")))
	return append(stmts, trailing...)
}

func columnType(d condition.Dialect, c schema.Column) string {
	switch d.Name {
	case condition.DuckDB.Name:
		return duckType(c)
	case condition.MySQL.Name:
		return mysqlType(c)
	}
	// SQLite keeps MySQL-style names; DATETIME matters because the driver
	// parses values of columns declared that way into time.Time.
	switch c.Type {
	case schema.VarChar, schema.Char, schema.Enum:
		return fmt.Sprintf("VARCHAR(%d)", c.MaxLength)
	case schema.Text, schema.MediumText:
		return "TEXT"
	case schema.Bool:
		return "BOOLEAN"
	case schema.Float, schema.Double:
		return "REAL"
	case schema.Decimal:
		return "NUMERIC"
	case schema.DateTime:
		return "DATETIME"
	case schema.Blob, schema.MediumBlob:
		return "BLOB"
	}
	return "INTEGER"
}

func mysqlType(c schema.Column) string {
	switch c.Type {
	case schema.VarChar, schema.Enum:
		return fmt.Sprintf("VARCHAR(%d)", c.MaxLength)
	case schema.Char:
		return fmt.Sprintf("CHAR(%d)", c.MaxLength)
	case schema.Bool:
		return "TINYINT(1)"
	case schema.Decimal:
		return "DECIMAL(18,4)"
	}
	return c.Type.String()
}

func duckType(c schema.Column) string {
	switch c.Type {
	case schema.VarChar, schema.Char, schema.Text, schema.MediumText, schema.Enum:
		return "VARCHAR"
	case schema.Bool:
		return "BOOLEAN"
	case schema.TinyInt:
		return "TINYINT"
	case schema.UTinyInt:
		return "UTINYINT"
	case schema.SmallInt:
		return "SMALLINT"
	case schema.USmallInt:
		return "USMALLINT"
	case schema.MediumInt, schema.Int:
		return "INTEGER"
	case schema.UMediumInt, schema.UInt:
		return "UINTEGER"
	case schema.BigInt:
		return "BIGINT"
	case schema.UBigInt:
		return "UBIGINT"
	case schema.Float:
		return "REAL"
	case schema.Double:
		return "DOUBLE"
	case schema.Decimal:
		return "DECIMAL(18,4)"
	case schema.DateTime:
		return "TIMESTAMP"
	}
	return "BLOB"
}
