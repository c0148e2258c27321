package query

import (
	"context"
	"time"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Listing is a validated "get" request: which columns, which rows, which
// page and which translations.
type Listing struct {
	Table     *schema.Table
	Columns   []string
	Criteria  map[string]string
	Range     *db.Range
	Languages []string
	// NameColumn is replaced by its translations when Languages is set.
	NameColumn string
}

// ParseListing reads columns, criteria, language, start and amount from args.
// The returned response is non-nil when an argument is invalid.
func ParseListing(args api.Args, t *schema.Table, nameColumn string) (*Listing, *api.Response) {
	l := &Listing{Table: t, NameColumn: nameColumn}
	var invalid []string

	if args.Has("columns") {
		cols, ok := args.Strings("columns")
		if ok {
			for _, c := range cols {
				if t.IndexOf(c) < 0 {
					ok = false
					break
				}
			}
		}
		if !ok {
			invalid = append(invalid, "columns")
		}
		l.Columns = cols
	}
	if args.Has("criteria") {
		criteria, ok := args.StringMap("criteria")
		if ok {
			for key, value := range criteria {
				if t.IndexOf(key) < 0 {
					ok = false
					break
				}
				if _, err := ParseExpression(value); err != nil {
					ok = false
					break
				}
			}
		}
		if !ok {
			invalid = append(invalid, "criteria")
		}
		l.Criteria = criteria
	}
	if args.Has("language") {
		langs, ok := args.Strings("language")
		if ok {
			for _, lang := range langs {
				if tables.LanguageItems.IndexOf(lang) < 1 {
					ok = false
					break
				}
			}
		}
		if !ok || nameColumn == "" {
			invalid = append(invalid, "language")
		}
		l.Languages = langs
	}

	start, amount := int64(0), int64(-1)
	if args.Has("start") {
		n, ok := args.Int("start")
		if !ok || n < 0 {
			invalid = append(invalid, "start")
		}
		start = n
	}
	if args.Has("amount") {
		n, ok := args.Int("amount")
		if !ok || n < 0 {
			invalid = append(invalid, "amount")
		}
		amount = n
	}
	if len(invalid) > 0 {
		return nil, api.InvalidArguments(invalid...)
	}
	if start > 0 || amount >= 0 {
		if amount < 0 {
			amount = 1<<62 - 1
		}
		l.Range = &db.Range{Start: start, Count: amount}
	}

	if len(l.Columns) == 0 {
		l.Columns = t.ColumnNames()
	}
	if l.Languages != nil && !contains(l.Columns, nameColumn) {
		l.Columns = append(l.Columns, nameColumn)
	}
	return l, nil
}

// Condition builds the WHERE clause of the listing on top of base, which may
// be nil.
func (l *Listing) Condition(e *db.Executor, base *condition.Builder) (*condition.Builder, error) {
	b := base
	if b == nil {
		b = e.Condition()
	}
	if len(l.Criteria) > 0 {
		if err := ApplyCriteria(b, l.Table, l.Criteria); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Run selects the listing and encodes every row as an object keyed by column.
func (l *Listing) Run(ctx context.Context, src db.Source, base *condition.Builder) ([]map[string]any, error) {
	e, err := src.Executor()
	if err != nil {
		return nil, err
	}
	cond, err := l.Condition(e, base)
	if err != nil {
		return nil, err
	}
	rows, err := e.SelectRows(ctx, l.Table, l.Columns, cond, l.Range)
	if err != nil {
		return nil, err
	}
	out := Objects(l.Columns, rows)
	if l.Languages != nil {
		if err := AttachTranslations(ctx, e, out, l.NameColumn, l.Languages); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Objects encodes raw rows as objects keyed by column. Times become epoch
// milliseconds.
func Objects(columns []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		obj := make(map[string]any, len(columns))
		for j, c := range columns {
			obj[c] = EncodeValue(row[j])
		}
		out[i] = obj
	}
	return out
}

// EncodeValue converts a column value to its JSON form.
func EncodeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}

// AttachTranslations replaces the language id stored under field in every
// object with a map of its translations. An empty languages list means all.
func AttachTranslations(ctx context.Context, src db.Source, objects []map[string]any, field string, languages []string) error {
	var ids []any
	for _, obj := range objects {
		if id, ok := obj[field].(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if len(languages) == 0 {
		languages = tables.Languages
	}

	e, err := src.Executor()
	if err != nil {
		return err
	}
	columns := append([]string{"id"}, languages...)
	rows, err := e.SelectRows(ctx, tables.LanguageItems, columns, e.Condition().AnyOf(tables.LanguageItems.Columns[0], ids...), nil)
	if err != nil {
		return err
	}
	byID := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		tr := make(map[string]any, len(languages))
		for i, lang := range languages {
			if row[i+1] != nil {
				tr[lang] = row[i+1]
			}
		}
		id, _ := row[0].(string)
		byID[id] = tr
	}
	for _, obj := range objects {
		if id, ok := obj[field].(string); ok {
			if tr, found := byID[id]; found {
				obj[field] = tr
			} else {
				obj[field] = map[string]any{}
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
