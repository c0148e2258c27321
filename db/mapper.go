package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

var (
	// ErrNoSnapshot is returned when an entity cannot be traced back to a stored row.
	ErrNoSnapshot = errors.New("entity cannot be traced back to a stored row")
	// ErrDialectMismatch is returned for conditions built for another database.
	ErrDialectMismatch = errors.New("condition was built for a different SQL dialect")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source is anything entity statements can run on: a Conn, the shared DB, or
// an Executor inside a transaction.
type Source interface {
	Executor() (*Executor, error)
}

// Range limits a select to Count rows starting at row Start.
type Range struct {
	Start int64
	Count int64
}

// Executor builds and runs entity statements on one connection or transaction.
type Executor struct {
	q       querier
	dialect condition.Dialect
	log     logr.Logger
}

// Executor returns e itself so that an Executor is also a Source.
func (e *Executor) Executor() (*Executor, error) { return e, nil }

// Condition returns an empty builder for the executor's dialect.
func (e *Executor) Condition() *condition.Builder { return condition.NewFor(e.dialect) }

// statement accumulates SQL text with its arguments.
type statement struct {
	d    condition.Dialect
	text strings.Builder
	args []any
	n    int
}

func (s *statement) bind(t schema.Type, v any) string {
	if v == nil {
		return "NULL"
	}
	name := fmt.Sprintf("v%d", s.n)
	s.n++
	s.args = append(s.args, s.d.Arg(name, schema.BindValue(t, v)))
	return s.d.Placeholder(name)
}

func (s *statement) where(cond *condition.Builder) error {
	if cond == nil {
		s.text.WriteString(" WHERE TRUE")
		return nil
	}
	if cond.Dialect() != s.d {
		return ErrDialectMismatch
	}
	text, err := cond.String()
	if err != nil {
		return err
	}
	s.text.WriteString(" WHERE ")
	s.text.WriteString(text)
	s.args = append(s.args, cond.Args()...)
	return nil
}

func (e *Executor) quoteColumns(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = e.dialect.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// Insert writes ent as a new row. If the table has an auto-increment index the
// generated id is written back into the entity and returned.
func (e *Executor) Insert(ctx context.Context, ent schema.Entity) (int64, error) {
	t, row := ent.Table(), ent.Row()
	if err := row.Validate(); err != nil {
		return 0, err
	}
	auto, hasAuto := t.AutoIncrement()
	autoPos := -1
	if hasAuto {
		autoPos = t.IndexOf(auto.Columns[0].Name)
	}

	st := &statement{d: e.dialect}
	var names, values []string
	for i, c := range t.Columns {
		v := row.Get(i)
		if i == autoPos && v == nil {
			continue
		}
		names = append(names, c.Name)
		values = append(values, st.bind(c.Type, v))
	}
	fmt.Fprintf(&st.text, "INSERT INTO %s (%s) VALUES (%s)",
		e.dialect.QuoteIdent(t.Name), e.quoteColumns(names), strings.Join(values, ", "))

	var id int64
	switch {
	case !hasAuto:
		if _, err := e.q.ExecContext(ctx, st.text.String(), st.args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
	case e.dialect.Returning:
		st.text.WriteString(" RETURNING " + e.dialect.QuoteIdent(auto.Columns[0].Name))
		if err := e.q.QueryRowContext(ctx, st.text.String(), st.args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
	default:
		res, err := e.q.ExecContext(ctx, st.text.String(), st.args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert into %s: last insert id: %w", t.Name, err)
		}
	}

	if hasAuto {
		narrowed, err := schema.Narrow(auto.Columns[0].Type, id)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		if err := row.Set(autoPos, narrowed); err != nil {
			return 0, err
		}
	}
	row.TakeSnapshot()
	e.log.V(logging.TRACE).Info("Inserted row", "table", t.Name, "id", id)
	return id, nil
}

// identity builds the predicate that selects ent's stored row: its primary
// key if the table has one, else an exact match on values.
func (e *Executor) identity(t *schema.Table, values []any) *condition.Builder {
	if pk, ok := t.Primary(); ok {
		keys := make([]any, len(pk.Columns))
		for i, c := range pk.Columns {
			keys[i] = values[t.IndexOf(c.Name)]
		}
		return e.Condition().MatchAll(pk.Columns, keys)
	}
	return e.Condition().MatchAll(t.Columns, values)
}

// Update writes ent's current fields over the row it was loaded from.
func (e *Executor) Update(ctx context.Context, ent schema.Entity) (int64, error) {
	t, row := ent.Table(), ent.Row()
	if !row.HasSnapshot() {
		return 0, fmt.Errorf("update %s: %w", t.Name, ErrNoSnapshot)
	}
	if err := row.Validate(); err != nil {
		return 0, err
	}

	st := &statement{d: e.dialect}
	sets := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		sets[i] = e.dialect.QuoteIdent(c.Name) + " = " + st.bind(c.Type, row.Get(i))
	}
	fmt.Fprintf(&st.text, "UPDATE %s SET %s", e.dialect.QuoteIdent(t.Name), strings.Join(sets, ", "))
	if err := st.where(e.identity(t, row.Snapshot())); err != nil {
		return 0, fmt.Errorf("update %s: %w", t.Name, err)
	}

	res, err := e.q.ExecContext(ctx, st.text.String(), st.args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", t.Name, err)
	}
	row.TakeSnapshot()
	return n, nil
}

// Delete removes ent's row: by current primary key when the table has one,
// else by an exact match on the snapshot.
func (e *Executor) Delete(ctx context.Context, ent schema.Entity) (int64, error) {
	t, row := ent.Table(), ent.Row()
	var values []any
	if _, ok := t.Primary(); ok {
		values = row.Fields()
	} else {
		if !row.HasSnapshot() {
			return 0, fmt.Errorf("delete from %s: %w", t.Name, ErrNoSnapshot)
		}
		values = row.Snapshot()
	}

	st := &statement{d: e.dialect}
	st.text.WriteString("DELETE FROM " + e.dialect.QuoteIdent(t.Name))
	if err := st.where(e.identity(t, values)); err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	res, err := e.q.ExecContext(ctx, st.text.String(), st.args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	row.ClearSnapshot()
	return n, nil
}

// SelectRows returns the raw values of columns for every matching row. A nil
// or empty column list selects all columns; a nil condition matches all rows.
func (e *Executor) SelectRows(ctx context.Context, t *schema.Table, columns []string, cond *condition.Builder, rng *Range) ([][]any, error) {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	types := make([]schema.Type, len(columns))
	for i, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("select from %s: unknown column %q", t.Name, name)
		}
		types[i] = c.Type
	}

	st := &statement{d: e.dialect}
	fmt.Fprintf(&st.text, "SELECT %s FROM %s", e.quoteColumns(columns), e.dialect.QuoteIdent(t.Name))
	if err := st.where(cond); err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.Name, err)
	}
	if rng != nil {
		st.text.WriteString(" " + e.dialect.Limit(rng.Start, rng.Count))
	}

	rows, err := e.q.QueryContext(ctx, st.text.String(), st.args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.Name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select from %s: %w", t.Name, err)
		}
		for i, v := range raw {
			if raw[i], err = schema.Normalize(types[i], v); err != nil {
				return nil, fmt.Errorf("select from %s: column %s: %w", t.Name, columns[i], err)
			}
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// Count returns the number of rows matching cond.
func (e *Executor) Count(ctx context.Context, t *schema.Table, cond *condition.Builder) (int64, error) {
	st := &statement{d: e.dialect}
	st.text.WriteString("SELECT COUNT(*) FROM " + e.dialect.QuoteIdent(t.Name))
	if err := st.where(cond); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Name, err)
	}
	var n int64
	if err := e.q.QueryRowContext(ctx, st.text.String(), st.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Name, err)
	}
	return n, nil
}

// EntityPtr is satisfied by pointers to mapped entity structs.
type EntityPtr[E any] interface {
	*E
	schema.Entity
}

// Select loads every matching row as an entity with its snapshot taken.
func Select[E any, P EntityPtr[E]](ctx context.Context, src Source, cond *condition.Builder, rng *Range) ([]P, error) {
	e, err := src.Executor()
	if err != nil {
		return nil, err
	}
	t := P(new(E)).Table()
	rows, err := e.SelectRows(ctx, t, t.ColumnNames(), cond, rng)
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(rows))
	for _, values := range rows {
		p := P(new(E))
		if err := p.Row().SetAll(values); err != nil {
			return nil, fmt.Errorf("load %s: %w", t.Name, err)
		}
		p.Row().TakeSnapshot()
		out = append(out, p)
	}
	return out, nil
}

// First returns the first matching entity, or nil when nothing matches.
func First[E any, P EntityPtr[E]](ctx context.Context, src Source, cond *condition.Builder) (P, error) {
	found, err := Select[E, P](ctx, src, cond, &Range{Start: 0, Count: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Related looks up the entity whose single-column primary key equals key. It
// returns nil when key is nil or no row matches.
func Related[E any, P EntityPtr[E]](ctx context.Context, src Source, key any) (P, error) {
	if key == nil {
		return nil, nil
	}
	e, err := src.Executor()
	if err != nil {
		return nil, err
	}
	t := P(new(E)).Table()
	pk, ok := t.Primary()
	if !ok || len(pk.Columns) != 1 {
		return nil, fmt.Errorf("%s has no single-column primary key", t.Name)
	}
	return First[E, P](ctx, e, e.Condition().Column(pk.Columns[0].Name).Equals(key, pk.Columns[0].Type))
}
