package condition

import (
	"fmt"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// Match returns a builder matching a row whose columns hold exactly values.
func Match(columns []schema.Column, values []any) *Builder {
	return New().MatchAll(columns, values)
}

// MatchAll appends an AND-chain comparing every column with its value. nil
// values compare with IS NULL.
func (b *Builder) MatchAll(columns []schema.Column, values []any) *Builder {
	if b.err != nil {
		return b
	}
	if len(columns) != len(values) {
		return b.fail("Match", fmt.Sprintf("%d columns but %d values", len(columns), len(values)))
	}
	if len(columns) == 0 {
		return b.fail("Match", "no columns to match")
	}
	for i, c := range columns {
		if i > 0 {
			b.And()
		}
		b.Column(c.Name)
		if values[i] == nil {
			b.IsNull()
		} else {
			b.Equals(values[i], c.Type)
		}
	}
	return b
}

// AnyOf returns a builder matching rows whose column equals one of values.
func AnyOf(column schema.Column, values ...any) *Builder {
	return New().AnyOf(column, values...)
}

// AnyOf appends an OR-chain of equalities on column, grouped when there is
// more than one value.
func (b *Builder) AnyOf(column schema.Column, values ...any) *Builder {
	if b.err != nil {
		return b
	}
	if len(values) == 0 {
		return b.fail("AnyOf", "no values")
	}
	grouped := len(values) > 1
	if grouped {
		b.NewGroup()
	}
	for i, v := range values {
		if i > 0 {
			b.Or()
		}
		b.Column(column.Name)
		if v == nil {
			b.IsNull()
		} else {
			b.Equals(v, column.Type)
		}
	}
	if grouped {
		b.ExitGroup()
	}
	return b
}
