// Package query turns the listing arguments shared by several request types
// (columns, criteria, paging, languages) into mapper calls and response rows.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// Expression is one criteria value: alternatives joined by OR, each either a
// LIKE pattern or a literal to compare with.
//
//	LIKE Sony% OR 'Nintendo Co' OR Philips
type Expression struct {
	Terms []*Term `@@ ( "OR" @@ )*`
}

// Term is a single alternative.
type Term struct {
	Like  bool     `@"LIKE"?`
	Words []string `( @String | @Word )+`
}

// Value joins the words of the term with single spaces.
func (t *Term) Value() string { return strings.Join(t.Words, " ") }

var criteriaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `\b(?:LIKE|OR)\b`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'`},
	{Name: "Word", Pattern: `[^\s']+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var criteriaParser = participle.MustBuild[Expression](
	participle.Lexer(criteriaLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// ParseExpression parses one criteria value.
func ParseExpression(s string) (*Expression, error) {
	expr, err := criteriaParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("criteria %q: %w", s, err)
	}
	return expr, nil
}

// ApplyCriteria ANDs one group per criteria entry onto b. Keys must be columns
// of t; entries are applied in key order so the SQL is stable.
func ApplyCriteria(b *condition.Builder, t *schema.Table, criteria map[string]string) error {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		col, ok := t.Column(key)
		if !ok {
			return fmt.Errorf("criteria: %s has no column %q", t.Name, key)
		}
		expr, err := ParseExpression(criteria[key])
		if err != nil {
			return err
		}
		b.And().NewGroup()
		for i, term := range expr.Terms {
			if i > 0 {
				b.Or()
			}
			b.Column(col.Name)
			if term.Like {
				b.Like(term.Value())
			} else {
				b.Equals(term.Value(), col.Type)
			}
		}
		b.ExitGroup()
	}
	return b.Err()
}
