package schema

import (
	"fmt"
	"strings"
)

// Table is the immutable description of one database table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
}

// NewTable validates the metadata and returns the table description.
func NewTable(name string, columns []Column, indexes ...Index) (*Table, error) {
	if !validIdentifier(name) {
		return nil, fmt.Errorf("%w: bad table name %q", ErrMetadata, name)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %q has no columns", ErrMetadata, name)
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !validIdentifier(c.Name) {
			return nil, fmt.Errorf("%w: bad column name %q in %q", ErrMetadata, c.Name, name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q in %q", ErrMetadata, c.Name, name)
		}
		seen[c.Name] = true
	}

	primaries, autos := 0, 0
	for _, idx := range indexes {
		if idx.Kind == Primary {
			primaries++
		}
		if idx.AutoIncrement {
			autos++
		}
		if err := idx.checkAutoIncrement(); err != nil {
			return nil, err
		}
		for _, c := range idx.Columns {
			if !seen[c.Name] {
				return nil, fmt.Errorf("%w: index %q references unknown column %q", ErrMetadata, idx.Name, c.Name)
			}
		}
	}
	if primaries > 1 {
		return nil, fmt.Errorf("%w: table %q has %d primary indexes", ErrMetadata, name, primaries)
	}
	if autos > 1 {
		return nil, fmt.Errorf("%w: table %q has %d auto-increment indexes", ErrMetadata, name, autos)
	}

	return &Table{
		Name:    name,
		Columns: append([]Column(nil), columns...),
		Indexes: append([]Index(nil), indexes...),
	}, nil
}

// MustTable is like NewTable but panics on invalid metadata.
func MustTable(name string, columns []Column, indexes ...Index) *Table {
	t, err := NewTable(name, columns, indexes...)
	if err != nil {
		panic(err)
	}
	return t
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IndexOf returns the position of the named column, or -1.
func (t *Table) IndexOf(column string) int {
	for i, c := range t.Columns {
		if c.Name == column {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	if i := t.IndexOf(name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

// Index returns the index with the given name.
func (t *Table) Index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// IndexesOf returns all indexes of the given kind.
func (t *Table) IndexesOf(kind IndexKind) []Index {
	var out []Index
	for _, idx := range t.Indexes {
		if idx.Kind == kind {
			out = append(out, idx)
		}
	}
	return out
}

// Primary returns the primary index if the table has one.
func (t *Table) Primary() (Index, bool) {
	if pk := t.IndexesOf(Primary); len(pk) > 0 {
		return pk[0], true
	}
	return Index{}, false
}

// AutoIncrement returns the auto-increment index if the table has one.
func (t *Table) AutoIncrement() (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.AutoIncrement {
			return idx, true
		}
	}
	return Index{}, false
}

func (t *Table) String() string {
	return t.Name + "(" + strings.Join(t.ColumnNames(), ", ") + ")"
}
