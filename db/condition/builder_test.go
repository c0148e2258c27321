package condition

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

func TestBuilderExample(t *testing.T) {
	b := New().Column("age").GreaterThan(18).And().Column("name").Like("A%")

	text, err := b.String()
	require.NoError(t, err)

	params := b.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "`age` > @"+params[0].Name+" AND `name` LIKE @"+params[1].Name, text)
	assert.Equal(t, int64(18), params[0].Value)
	assert.Equal(t, "A%", params[1].Value)
	assert.NotEqual(t, params[0].Name, params[1].Name)
	assert.Regexp(t, regexp.MustCompile(`^c[0-9a-f]{10}_p0$`), params[0].Name)
}

func TestBuilderEmptyIsTrue(t *testing.T) {
	text, err := New().String()
	require.NoError(t, err)
	assert.Equal(t, "TRUE", text)
	assert.True(t, New().Empty())
}

func TestBuilderParameterNamesDoNotCollide(t *testing.T) {
	a := New().Column("x").Equals(1, schema.Int)
	b := New().Column("x").Equals(1, schema.Int)
	assert.NotEqual(t, a.Parameters()[0].Name, b.Parameters()[0].Name)
}

func TestBuilderGroupsAndNot(t *testing.T) {
	b := New().
		Not().NewGroup().
		Column("a").Equals(1, schema.Int).Or().Column("b").IsNull().
		ExitGroup().
		And().Column("c").Operator(OpEquals).Not().Operand("x", schema.VarChar).
		And().NewGroup().And().Column("d").IsNotNull().ExitGroup()

	text, err := b.String()
	require.NoError(t, err)
	p := b.Parameters()
	require.Len(t, p, 2)
	assert.Equal(t,
		"NOT (`a` = @"+p[0].Name+" OR `b` IS NULL) AND `c` = NOT @"+p[1].Name+" AND (`d` IS NOT NULL)",
		text)
	assert.Equal(t, 0, b.Depth())
}

func TestBuilderQualifiedColumn(t *testing.T) {
	text, err := New().QualifiedColumn("loans", "end").IsNull().String()
	require.NoError(t, err)
	assert.Equal(t, "`loans`.`end` IS NULL", text)
}

func TestBuilderFailsAtOffendingCall(t *testing.T) {
	type step func(*Builder) *Builder
	col := func(name string) step { return func(b *Builder) *Builder { return b.Column(name) } }
	op := func(o Op) step { return func(b *Builder) *Builder { return b.Operator(o) } }
	operand := func(v any) step { return func(b *Builder) *Builder { return b.Operand(v, schema.BigInt) } }
	not := func(b *Builder) *Builder { return b.Not() }
	and := func(b *Builder) *Builder { return b.And() }
	group := func(b *Builder) *Builder { return b.NewGroup() }
	exit := func(b *Builder) *Builder { return b.ExitGroup() }

	tests := []struct {
		name  string
		steps []step
	}{
		{"operator after operator", []step{col("a"), op(OpEquals), op(OpEquals)}},
		{"operand after operand", []step{operand(1), operand(2)}},
		{"column after operand", []step{operand(1), col("a")}},
		{"operator at start", []step{op(OpLess)}},
		{"exit main clause", []step{col("a"), exit}},
		{"close empty group", []step{group, exit}},
		{"close unfinished group", []step{group, col("a"), op(OpEquals), exit}},
		{"and after unfinished", []step{col("a"), op(OpEquals), and}},
		{"not after operand", []step{col("a"), not}},
		{"group after operand", []step{col("a"), group}},
		{"statement terminator", []step{col("a; DROP TABLE users")}},
		{"quote in name", []step{col("a`b")}},
		{"unknown operator", []step{col("a"), op(Op("<>"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			last := len(tt.steps) - 1
			for i, s := range tt.steps[:last] {
				s(b)
				require.NoError(t, b.Err(), "step %d failed early", i)
			}
			tt.steps[last](b)
			err := b.Err()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrGrammar))
			var ge *GrammarError
			require.True(t, errors.As(err, &ge))

			_, err = b.String()
			assert.Error(t, err)
		})
	}
}

func TestBuilderErrorIsSticky(t *testing.T) {
	b := New().Column("a").Column("b")
	require.Error(t, b.Err())
	b.Equals(1, schema.Int)
	assert.Empty(t, b.Parameters())
	_, err := b.String()
	assert.ErrorIs(t, err, ErrGrammar)
}

func TestBuilderVerifyDoesNotPoison(t *testing.T) {
	b := New().Column("a").Operator(OpEquals)
	_, err := b.String()
	require.Error(t, err)
	require.NoError(t, b.Err())

	b.Operand(3, schema.Int)
	text, err := b.String()
	require.NoError(t, err)
	assert.Contains(t, text, "`a` = @")

	b2 := New().NewGroup()
	assert.Error(t, b2.Verify())
	b2.Column("x")
	assert.Error(t, b2.Verify())
	b2.ExitGroup()
	assert.NoError(t, b2.Verify())
}

func TestBuilderStringIsIdempotent(t *testing.T) {
	b := New().Column("a").Equals("x", schema.VarChar).Or().Column("b").LessThan(4)
	first, err := b.String()
	require.NoError(t, err)
	second, err := b.String()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, b.Parameters(), 2)
}

func TestMatch(t *testing.T) {
	cols := []schema.Column{schema.Col("id", 11, schema.Int), schema.Col("name", 50, schema.VarChar)}

	b := Match(cols, []any{int32(4), nil})
	text, err := b.String()
	require.NoError(t, err)
	p := b.Parameters()
	require.Len(t, p, 1)
	assert.Equal(t, "`id` = @"+p[0].Name+" AND `name` IS NULL", text)

	assert.ErrorIs(t, Match(cols, []any{1}).Err(), ErrGrammar)
	assert.ErrorIs(t, Match(nil, nil).Err(), ErrGrammar)
}

func TestAnyOf(t *testing.T) {
	c := schema.Col("product", 50, schema.VarChar)

	b := New().Column("x").IsNull().And().AnyOf(c, "a", "b")
	text, err := b.String()
	require.NoError(t, err)
	p := b.Parameters()
	require.Len(t, p, 2)
	assert.Equal(t, "`x` IS NULL AND (`product` = @"+p[0].Name+" OR `product` = @"+p[1].Name+")", text)

	single, err := AnyOf(c, "a").String()
	require.NoError(t, err)
	assert.Regexp(t, "^`product` = @c[0-9a-f]+_p0$", single)

	assert.Error(t, AnyOf(c).Err())
}

func TestDialects(t *testing.T) {
	my := NewFor(MySQL).Column("a").Equals(1, schema.Int).And().Column("b").Like("x%")
	text, err := my.String()
	require.NoError(t, err)
	assert.Equal(t, "`a` = ? AND `b` LIKE ?", text)
	assert.Equal(t, []any{1, "x%"}, my.Args())
	assert.Equal(t, "LIMIT 10,5", MySQL.Limit(10, 5))

	duck := NewFor(DuckDB).Column("a").Equals(1, schema.Int)
	text, err = duck.String()
	require.NoError(t, err)
	assert.Equal(t, `"a" = $`+duck.Parameters()[0].Name, text)
	assert.Equal(t, "LIMIT 5 OFFSET 10", DuckDB.Limit(10, 5))
	assert.Error(t, NewFor(DuckDB).Column(`a"b`).Err())

	named := New().Column("a").Equals(1, schema.Int).Args()
	require.Len(t, named, 1)
	arg, ok := named[0].(sql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, 1, arg.Value)

	d, err := ForDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = ForDriver("oracle")
	assert.Error(t, err)
}

// genPredicate drives b through a random but grammatical call sequence.
func genPredicate(r *rand.Rand, b *Builder, depth int) {
	n := 1 + r.Intn(3)
	for i := 0; i < n; i++ {
		if i > 0 {
			if r.Intn(2) == 0 {
				b.And()
			} else {
				b.Or()
			}
		}
		genComparison(r, b, depth)
	}
}

func genComparison(r *rand.Rand, b *Builder, depth int) {
	if r.Intn(4) == 0 {
		b.Not()
	}
	if depth < 3 && r.Intn(3) == 0 {
		b.NewGroup()
		genPredicate(r, b, depth+1)
		b.ExitGroup()
		return
	}
	switch r.Intn(5) {
	case 0:
		b.Column("a").GreaterThan(r.Int63n(10))
	case 1:
		b.Column("b").Equals("v", schema.VarChar)
	case 2:
		b.Column("a").IsNull()
	case 3:
		b.Column("a").Add(1).Operator(OpLessOrEqual).Operand(int64(5), schema.BigInt)
	default:
		b.Column("b").Like("v%")
	}
}

func TestBuilderRandomSequencesAreValidSQL(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", "file:condition_fuzz?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, "CREATE TABLE t (a INTEGER, b TEXT)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t VALUES (1, 'v'), (NULL, 'w'), (7, NULL)")
	require.NoError(t, err)

	r := rand.New(rand.NewSource(1819))
	for i := 0; i < 200; i++ {
		b := New()
		genPredicate(r, b, 0)
		require.NoError(t, b.Err())

		text, err := b.String()
		require.NoError(t, err)

		var n int
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t WHERE "+text, b.Args()...).Scan(&n)
		require.NoError(t, err, "predicate %q", text)
	}
}
