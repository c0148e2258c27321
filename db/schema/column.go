package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMetadata is returned for malformed column, index or table descriptions.
	ErrMetadata = errors.New("invalid schema metadata")
	// ErrLength is returned when a value exceeds its column's max length.
	ErrLength = errors.New("value exceeds column length")
)

// Column describes a single table column. MaxLength is the byte length of text
// and binary values and the digit count of integers. 0 means unbounded.
type Column struct {
	Name      string
	MaxLength uint
	Type      Type
}

// Col is shorthand for a Column literal.
func Col(name string, maxLength uint, t Type) Column {
	return Column{Name: name, MaxLength: maxLength, Type: t}
}

// Check validates v against the column's declared type and length.
func (c Column) Check(v any) error {
	if v == nil {
		return nil
	}
	if !c.Type.Accepts(v) {
		return fmt.Errorf("column %q (%s) cannot hold %T", c.Name, c.Type, v)
	}
	if c.MaxLength == 0 {
		return nil
	}
	var n int
	switch x := v.(type) {
	case string:
		n = len(x)
	case []byte:
		n = len(x)
	default:
		if !c.Type.IsInteger() {
			return nil
		}
		n = len(strings.TrimPrefix(fmt.Sprint(x), "-"))
	}
	if uint(n) > c.MaxLength {
		return fmt.Errorf("%w: %q is %d long, max %d", ErrLength, c.Name, n, c.MaxLength)
	}
	return nil
}

func (c Column) String() string {
	return fmt.Sprintf("%s %s(%d)", c.Name, c.Type, c.MaxLength)
}

func validIdentifier(name string) bool {
	return name != "" && !strings.ContainsAny(name, ";`\"")
}

// IndexKind is the kind of an index.
type IndexKind int

const (
	Plain IndexKind = iota
	Unique
	Primary
)

func (k IndexKind) String() string {
	switch k {
	case Primary:
		return "PRIMARY"
	case Unique:
		return "UNIQUE"
	default:
		return "INDEX"
	}
}

// Index describes a table index. NewIndex names primary indexes PRIMARY.
type Index struct {
	Name          string
	Kind          IndexKind
	Columns       []Column
	AutoIncrement bool
}

// NewIndex validates and builds an index over columns.
func NewIndex(name string, kind IndexKind, autoIncrement bool, columns ...Column) (Index, error) {
	if len(columns) == 0 {
		return Index{}, fmt.Errorf("%w: index %q has no columns", ErrMetadata, name)
	}
	if kind == Primary {
		name = "PRIMARY"
	}
	if !validIdentifier(name) {
		return Index{}, fmt.Errorf("%w: bad index name %q", ErrMetadata, name)
	}
	idx := Index{
		Name:          name,
		Kind:          kind,
		Columns:       append([]Column(nil), columns...),
		AutoIncrement: autoIncrement,
	}
	if err := idx.checkAutoIncrement(); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func (idx Index) checkAutoIncrement() error {
	if !idx.AutoIncrement {
		return nil
	}
	if len(idx.Columns) != 1 {
		return fmt.Errorf("%w: auto-increment index %q must have exactly one column", ErrMetadata, idx.Name)
	}
	if c := idx.Columns[0]; !c.Type.IsNumeric() {
		return fmt.Errorf("%w: auto-increment column %q is %s, not numeric", ErrMetadata, c.Name, c.Type)
	}
	return nil
}

// MustIndex is like NewIndex but panics on invalid metadata. It is meant for
// package-level table declarations.
func MustIndex(name string, kind IndexKind, autoIncrement bool, columns ...Column) Index {
	idx, err := NewIndex(name, kind, autoIncrement, columns...)
	if err != nil {
		panic(err)
	}
	return idx
}
