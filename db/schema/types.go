// Package schema describes tables declaratively: columns, indexes, and the
// rows that entities carry around in memory.
package schema

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Type is the declared SQL type of a column.
type Type int

const (
	VarChar Type = iota
	Char
	Text
	MediumText
	Enum
	Bool
	TinyInt
	UTinyInt
	SmallInt
	USmallInt
	MediumInt
	UMediumInt
	Int
	UInt
	BigInt
	UBigInt
	Float
	Double
	Decimal
	DateTime
	Blob
	MediumBlob
)

var typeNames = map[Type]string{
	VarChar:    "VARCHAR",
	Char:       "CHAR",
	Text:       "TEXT",
	MediumText: "MEDIUMTEXT",
	Enum:       "ENUM",
	Bool:       "BOOL",
	TinyInt:    "TINYINT",
	UTinyInt:   "TINYINT UNSIGNED",
	SmallInt:   "SMALLINT",
	USmallInt:  "SMALLINT UNSIGNED",
	MediumInt:  "MEDIUMINT",
	UMediumInt: "MEDIUMINT UNSIGNED",
	Int:        "INT",
	UInt:       "INT UNSIGNED",
	BigInt:     "BIGINT",
	UBigInt:    "BIGINT UNSIGNED",
	Float:      "FLOAT",
	Double:     "DOUBLE",
	Decimal:    "DECIMAL",
	DateTime:   "DATETIME",
	Blob:       "BLOB",
	MediumBlob: "MEDIUMBLOB",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsInteger reports whether t is one of the integer widths.
func (t Type) IsInteger() bool {
	return t >= TinyInt && t <= UBigInt
}

// IsNumeric reports whether t can back an auto-increment column.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t == Float || t == Double || t == Decimal
}

// IsText reports whether values of t are carried as Go strings.
func (t Type) IsText() bool {
	switch t {
	case VarChar, Char, Text, MediumText, Enum:
		return true
	}
	return false
}

// IsBinary reports whether values of t are carried as []byte.
func (t Type) IsBinary() bool {
	return t == Blob || t == MediumBlob
}

// Accepts reports whether v has a Go type that fits a column of type t.
// nil is accepted everywhere.
func (t Type) Accepts(v any) bool {
	if v == nil {
		return true
	}
	switch {
	case t.IsText():
		_, ok := v.(string)
		return ok
	case t.IsBinary():
		switch v.(type) {
		case []byte, string:
			return true
		}
		return false
	case t == Bool:
		_, ok := v.(bool)
		return ok
	case t == DateTime:
		_, ok := v.(time.Time)
		return ok
	case t.IsInteger():
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case t == Float, t == Double, t == Decimal:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
		return false
	}
	return false
}

// Normalize converts a value scanned from a driver into the Go type used for
// columns of type t. Integers are narrowed to the declared width.
func Normalize(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t.IsText():
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
		return fmt.Sprint(v), nil
	case t.IsBinary():
		switch x := v.(type) {
		case []byte:
			return bytes.Clone(x), nil
		case string:
			return []byte(x), nil
		}
	case t == Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case t.IsInteger():
		if t == UBigInt {
			return toUint64(v)
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return Narrow(t, n)
	case t == Float:
		f, err := toFloat64(v)
		return float32(f), err
	case t == Double, t == Decimal:
		return toFloat64(v)
	case t == DateTime:
		return toTime(v)
	}
	return nil, fmt.Errorf("cannot convert %T into %s", v, t)
}

// Narrow converts n to the Go integer type matching the declared width of t.
func Narrow(t Type, n int64) (any, error) {
	var lo, hi int64
	switch t {
	case TinyInt:
		lo, hi = math.MinInt8, math.MaxInt8
	case UTinyInt:
		lo, hi = 0, math.MaxUint8
	case SmallInt:
		lo, hi = math.MinInt16, math.MaxInt16
	case USmallInt:
		lo, hi = 0, math.MaxUint16
	case MediumInt, Int:
		lo, hi = math.MinInt32, math.MaxInt32
	case UMediumInt, UInt:
		lo, hi = 0, math.MaxUint32
	case UBigInt:
		if n < 0 {
			return nil, fmt.Errorf("value %d out of range for %s", n, t)
		}
		return uint64(n), nil
	default:
		return n, nil
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("value %d out of range for %s", n, t)
	}
	switch t {
	case TinyInt:
		return int8(n), nil
	case UTinyInt:
		return uint8(n), nil
	case SmallInt:
		return int16(n), nil
	case USmallInt:
		return uint16(n), nil
	case MediumInt, Int:
		return int32(n), nil
	default:
		return uint32(n), nil
	}
}

// BindValue prepares v for a driver argument of type t.
func BindValue(t Type, v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(time.Second)
	case string:
		if t.IsBinary() {
			return []byte(x)
		}
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", v)
}

func toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case []byte:
		return strconv.ParseUint(string(x), 10, 64)
	case string:
		return strconv.ParseUint(x, 10, 64)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("value %d out of range for %s", n, UBigInt)
	}
	return uint64(n), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	n, err := toInt64(v)
	return float64(n), err
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case []byte:
		s = string(x)
	case string:
		s = x
	case int64:
		return time.Unix(x, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a time", v)
	}
	s = strings.TrimSpace(s)
	// Go's time.String() form appends a zone abbreviation and monotonic clock.
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range append([]string{"2006-01-02 15:04:05.999999999 -0700 MST"}, timeLayouts...) {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}
