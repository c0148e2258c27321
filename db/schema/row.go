package schema

import (
	"fmt"
	"reflect"
)

// Entity is implemented by every mapped table type. Row exposes the entity's
// field values, positionally aligned with Table().Columns.
type Entity interface {
	Table() *Table
	Row() *Row
}

// Row holds the field values of one entity plus the snapshot of what was last
// read from or written to the database. The zero value is unbound; entities
// bind it lazily to their table.
type Row struct {
	table    *Table
	fields   []any
	snapshot []any
}

// Bind attaches the row to t and allocates its fields. Binding an already
// bound row is a no-op.
func (r *Row) Bind(t *Table) *Row {
	if r.table == nil {
		r.table = t
		r.fields = make([]any, len(t.Columns))
	}
	return r
}

// Table returns the table the row is bound to.
func (r *Row) Table() *Table { return r.table }

// Fields returns the live field slice.
func (r *Row) Fields() []any { return r.fields }

// Get returns field i.
func (r *Row) Get(i int) any { return r.fields[i] }

// Set validates v against column i and stores it.
func (r *Row) Set(i int, v any) error {
	if i < 0 || i >= len(r.fields) {
		return fmt.Errorf("%w: field %d out of range for %s", ErrMetadata, i, r.table.Name)
	}
	if err := r.table.Columns[i].Check(v); err != nil {
		return err
	}
	r.fields[i] = v
	return nil
}

// SetAll replaces every field. values must align with the table's columns.
func (r *Row) SetAll(values []any) error {
	if len(values) != len(r.table.Columns) {
		return fmt.Errorf("%w: got %d values for %d columns of %s", ErrMetadata, len(values), len(r.table.Columns), r.table.Name)
	}
	for i, c := range r.table.Columns {
		if err := c.Check(values[i]); err != nil {
			return err
		}
	}
	copy(r.fields, values)
	return nil
}

// Validate re-checks every field against its column.
func (r *Row) Validate() error {
	for i, c := range r.table.Columns {
		if err := c.Check(r.fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// HasSnapshot reports whether the row can be traced back to a stored record.
func (r *Row) HasSnapshot() bool { return r.snapshot != nil }

// Snapshot returns a copy of the last known persisted values, or nil.
func (r *Row) Snapshot() []any {
	if r.snapshot == nil {
		return nil
	}
	return cloneValues(r.snapshot)
}

// TakeSnapshot records the current fields as the persisted state.
func (r *Row) TakeSnapshot() { r.snapshot = cloneValues(r.fields) }

// ClearSnapshot forgets the persisted state.
func (r *Row) ClearSnapshot() { r.snapshot = nil }

// Equal reports whether two rows of the same table hold equal field values.
func (r *Row) Equal(o *Row) bool {
	return r.table == o.table && reflect.DeepEqual(r.fields, o.fields)
}

func cloneValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out[i] = v
	}
	return out
}
