// Package condition assembles parameter-bound SQL WHERE predicates through
// chained calls. Every call is checked against the predicate grammar when it
// is made; the first violation sticks to the builder and no SQL is produced
// from it afterwards.
package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// ErrGrammar is wrapped by every GrammarError.
var ErrGrammar = errors.New("invalid condition")

// GrammarError reports the call that broke the predicate grammar.
type GrammarError struct {
	Op     string
	Reason string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("condition: %s: %s", e.Op, e.Reason)
}

func (e *GrammarError) Unwrap() error { return ErrGrammar }

// Op is a binary operator token.
type Op string

const (
	OpEquals         Op = "="
	OpNotEquals      Op = "!="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpLike           Op = "LIKE"
	OpIs             Op = "IS"
	OpAdd            Op = "+"
	OpSubtract       Op = "-"
	OpMultiply       Op = "*"
	OpDivide         Op = "/"
	OpModulo         Op = "%"
)

func (o Op) valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpLike, OpIs, OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
		return true
	}
	return false
}

// Param is one bound parameter.
type Param struct {
	Name  string
	Type  schema.Type
	Value any
}

// Builder assembles one predicate. It is not safe for concurrent use.
type Builder struct {
	dialect Dialect
	id      string

	text   string
	cursor int
	depth  int
	params []Param

	// expecting is set while an operand slot is open.
	expecting bool
	// unfinished is set while an operator, connective or NOT waits for its operand.
	unfinished bool
	// modifying is set between NOT and the operand it applies to.
	modifying bool

	verified string
	verifyOK bool
	err      error
}

// New returns an empty builder for the default dialect.
func New() *Builder { return NewFor(Default) }

// NewFor returns an empty builder for d.
func NewFor(d Dialect) *Builder {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Builder{
		dialect:   d,
		id:        "c" + id[:10],
		expecting: true,
	}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() Dialect { return b.dialect }

// Err returns the first grammar violation, if any.
func (b *Builder) Err() error { return b.err }

// Depth returns the number of open groups.
func (b *Builder) Depth() int { return b.depth }

// Parameters returns a copy of the bound parameters in placeholder order.
func (b *Builder) Parameters() []Param {
	return append([]Param(nil), b.params...)
}

// Args returns the bound parameters as driver arguments.
func (b *Builder) Args() []any {
	args := make([]any, len(b.params))
	for i, p := range b.params {
		args[i] = b.dialect.Arg(p.Name, schema.BindValue(p.Type, p.Value))
	}
	return args
}

func (b *Builder) fail(op, reason string) *Builder {
	if b.err == nil {
		b.err = &GrammarError{Op: op, Reason: reason}
	}
	return b
}

func (b *Builder) insert(s string) {
	b.text = b.text[:b.cursor] + s + b.text[b.cursor:]
	b.cursor += len(s)
}

// atGroupStart reports whether nothing has been written to the current group.
func (b *Builder) atGroupStart() bool {
	if b.text == "" {
		return true
	}
	return b.depth > 0 && b.cursor > 0 && b.text[b.cursor-1] == '(' && b.text[b.cursor] == ')'
}

// term records that the open operand slot has been filled.
func (b *Builder) term() *Builder {
	b.expecting = false
	b.unfinished = false
	b.modifying = false
	return b
}

// Column appends a quoted column name.
func (b *Builder) Column(name string) *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("Column", "expected an operator, not a column")
	}
	if !b.dialect.validIdent(name) {
		return b.fail("Column", fmt.Sprintf("invalid column name %q", name))
	}
	b.insert(b.dialect.QuoteIdent(name))
	return b.term()
}

// QualifiedColumn appends a quoted schema.column reference.
func (b *Builder) QualifiedColumn(table, name string) *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("Column", "expected an operator, not a column")
	}
	if !b.dialect.validIdent(table) || !b.dialect.validIdent(name) {
		return b.fail("Column", fmt.Sprintf("invalid column name %q.%q", table, name))
	}
	b.insert(b.dialect.QuoteQualified(table, name))
	return b.term()
}

// Operand binds v as a parameter of type t and appends its placeholder.
func (b *Builder) Operand(v any, t schema.Type) *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("Operand", "expected an operator, not an operand")
	}
	name := fmt.Sprintf("%s_p%d", b.id, len(b.params))
	b.params = append(b.params, Param{Name: name, Type: t, Value: v})
	b.insert(b.dialect.Placeholder(name))
	return b.term()
}

// Null appends the NULL literal in an operand slot.
func (b *Builder) Null() *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("Null", "expected an operator, not an operand")
	}
	b.insert("NULL")
	return b.term()
}

// Operator appends a binary operator after an operand.
func (b *Builder) Operator(op Op) *Builder {
	if b.err != nil {
		return b
	}
	if !op.valid() {
		return b.fail("Operator", fmt.Sprintf("unknown operator %q", op))
	}
	if b.expecting {
		return b.fail("Operator", fmt.Sprintf("expected an operand before %q", op))
	}
	b.insert(" " + string(op) + " ")
	b.expecting = true
	b.unfinished = true
	return b
}

// Not prefixes the next operand with NOT.
func (b *Builder) Not() *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("Not", "NOT must precede an operand")
	}
	if b.atGroupStart() || strings.HasSuffix(b.text[:b.cursor], " ") {
		b.insert("NOT ")
	} else {
		b.insert(" NOT ")
	}
	b.modifying = true
	b.unfinished = true
	return b
}

// And joins the expression so far with the next one. At the start of a group
// it does nothing.
func (b *Builder) And() *Builder { return b.connective("And", " AND ") }

// Or is like And with OR.
func (b *Builder) Or() *Builder { return b.connective("Or", " OR ") }

func (b *Builder) connective(op, token string) *Builder {
	if b.err != nil || b.atGroupStart() {
		return b
	}
	if b.expecting || b.unfinished {
		return b.fail(op, "the expression before it is unfinished")
	}
	b.insert(token)
	b.expecting = true
	b.unfinished = true
	return b
}

// NewGroup opens a parenthesised group in the current operand slot.
func (b *Builder) NewGroup() *Builder {
	if b.err != nil {
		return b
	}
	if !b.expecting {
		return b.fail("NewGroup", "a group can only start where an operand is expected")
	}
	b.insert("()")
	b.cursor--
	b.depth++
	b.expecting = true
	b.unfinished = false
	b.modifying = false
	return b
}

// ExitGroup closes the innermost group.
func (b *Builder) ExitGroup() *Builder {
	if b.err != nil {
		return b
	}
	if b.depth == 0 {
		return b.fail("ExitGroup", "cannot exit the main clause")
	}
	if b.atGroupStart() {
		return b.fail("ExitGroup", "cannot close an empty group")
	}
	if b.expecting || b.unfinished {
		return b.fail("ExitGroup", "the group is unfinished")
	}
	b.cursor++
	b.depth--
	return b.term()
}

// Verify checks that the predicate is complete. The result is cached against
// the current text.
func (b *Builder) Verify() error {
	if b.err != nil {
		return b.err
	}
	if b.verifyOK && b.verified == b.text {
		return nil
	}
	if b.depth != 0 {
		if b.atGroupStart() {
			return &GrammarError{Op: "Verify", Reason: "empty group"}
		}
		return &GrammarError{Op: "Verify", Reason: fmt.Sprintf("%d unclosed group(s)", b.depth)}
	}
	if b.unfinished {
		return &GrammarError{Op: "Verify", Reason: "the condition is unfinished"}
	}
	b.verified = b.text
	b.verifyOK = true
	return nil
}

// String verifies and returns the predicate text. An empty builder yields TRUE.
func (b *Builder) String() (string, error) {
	if err := b.Verify(); err != nil {
		return "", err
	}
	if b.text == "" {
		return "TRUE", nil
	}
	return b.text, nil
}

// Empty reports whether nothing was appended.
func (b *Builder) Empty() bool { return b.text == "" }

// Equals appends "= operand".
func (b *Builder) Equals(v any, t schema.Type) *Builder {
	return b.Operator(OpEquals).Operand(v, t)
}

// NotEquals appends "!= operand".
func (b *Builder) NotEquals(v any, t schema.Type) *Builder {
	return b.Operator(OpNotEquals).Operand(v, t)
}

func (b *Builder) LessThan(v int64) *Builder {
	return b.Operator(OpLess).Operand(v, schema.BigInt)
}

func (b *Builder) LessThanOrEqual(v int64) *Builder {
	return b.Operator(OpLessOrEqual).Operand(v, schema.BigInt)
}

func (b *Builder) GreaterThan(v int64) *Builder {
	return b.Operator(OpGreater).Operand(v, schema.BigInt)
}

func (b *Builder) GreaterThanOrEqual(v int64) *Builder {
	return b.Operator(OpGreaterOrEqual).Operand(v, schema.BigInt)
}

// Like appends "LIKE pattern".
func (b *Builder) Like(pattern string) *Builder {
	return b.Operator(OpLike).Operand(pattern, schema.VarChar)
}

func (b *Builder) Add(v int64) *Builder      { return b.Operator(OpAdd).Operand(v, schema.BigInt) }
func (b *Builder) Subtract(v int64) *Builder { return b.Operator(OpSubtract).Operand(v, schema.BigInt) }
func (b *Builder) Multiply(v int64) *Builder { return b.Operator(OpMultiply).Operand(v, schema.BigInt) }
func (b *Builder) Divide(v int64) *Builder   { return b.Operator(OpDivide).Operand(v, schema.BigInt) }
func (b *Builder) Modulo(v int64) *Builder   { return b.Operator(OpModulo).Operand(v, schema.BigInt) }

// IsNull appends "IS NULL".
func (b *Builder) IsNull() *Builder { return b.Operator(OpIs).Null() }

// IsNotNull appends "IS NOT NULL".
func (b *Builder) IsNotNull() *Builder { return b.Operator(OpIs).Not().Null() }
