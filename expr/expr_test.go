package expr_test

import (
	"testing"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/args"
	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDB struct{ dbapi.Database }

func (stubDB) PrimaryKey(table string) (dbapi.PrimaryKeyInfo, error) {
	return dbapi.PrimaryKeyInfo{Columns: []string{"id"}}, nil
}

func newCtx(t *testing.T, sink *args.Sink, aliases ...*alias.Alias) *gencontext.Context {
	t.Helper()
	root := gencontext.NewRoot(stubDB{}, sink)
	sub, err := root.SubqueryContext(aliases, nil)
	require.NoError(t, err)
	return sub
}

func TestBareColumnRendersUnqualified(t *testing.T) {
	ctx := newCtx(t, args.NewBindable())
	sql, err := expr.Column{Name: "name"}.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"name"`, sql)
}

func TestQualifiedColumnOmitsQualifierForSingleAlias(t *testing.T) {
	player := alias.FromTable("player", "")
	ctx := newCtx(t, args.NewBindable(), player)

	sql, err := expr.QualifiedColumn{Alias: player, Name: "name"}.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"name"`, sql)
}

func TestQualifiedColumnUsesQualifierForMultipleAliases(t *testing.T) {
	book := alias.FromTable("book", "")
	author := alias.FromTable("person", "")
	ctx := newCtx(t, args.NewBindable(), book, author)

	sql, err := expr.QualifiedColumn{Alias: author, Name: "id"}.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"person"."id"`, sql)
}

func TestS1FilterRendersBoundArgument(t *testing.T) {
	sink := args.NewBindable()
	player := alias.FromTable("player", "")
	ctx := newCtx(t, sink, player)

	filter := expr.Equal(expr.Column{Name: "name"}.Qualify(player), expr.Lit{Value: "Alice"})
	sql, err := filter.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"name" = ?`, sql)
	assert.Equal(t, []any{"Alice"}, sink.Values())
}

func TestArgumentOrderMatchesPlaceholderOrder(t *testing.T) {
	sink := args.NewBindable()
	ctx := newCtx(t, sink)

	e := expr.AssociativeBinary{
		Op: "AND",
		Exprs: []expr.Expr{
			expr.Equal(expr.Column{Name: "a"}, expr.Lit{Value: 1}),
			expr.Equal(expr.Column{Name: "b"}, expr.Lit{Value: 2}),
			expr.Equal(expr.Column{Name: "c"}, expr.Lit{Value: 3}),
		},
	}
	sql, err := e.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `("a" = ? AND "b" = ? AND "c" = ?)`, sql)
	assert.Equal(t, []any{1, 2, 3}, sink.Values())
}

func TestInEmptyCollectionRewrite(t *testing.T) {
	ctx := newCtx(t, args.NewBindable())

	in := expr.In{Expr: expr.Column{Name: "id"}}
	sql, err := in.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", sql)

	notIn := expr.In{Expr: expr.Column{Name: "id"}, Negated: true}
	sql, err = notIn.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", sql)
}

func TestInNonEmptyCollection(t *testing.T) {
	sink := args.NewBindable()
	ctx := newCtx(t, sink)

	in := expr.In{
		Expr:       expr.Column{Name: "id"},
		Collection: []expr.Expr{expr.Lit{Value: 1}, expr.Lit{Value: 2}, expr.Lit{Value: 3}},
	}
	sql, err := in.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"id" IN (?, ?, ?)`, sql)
	assert.Equal(t, []any{1, 2, 3}, sink.Values())
}

func TestCountStarRendersCountStar(t *testing.T) {
	ctx := newCtx(t, args.NewBindable())
	sql, err := expr.CountStar{}.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(*)", sql)
}

func TestCountOfQualifiedAllColumnsFailsWhenQualifierResolves(t *testing.T) {
	book := alias.FromTable("book", "")
	person := alias.FromTable("person", "")
	ctx := newCtx(t, args.NewBindable(), book, person)

	c := expr.CountExpr{Arg: expr.QualifiedAllColumns{Alias: person}}
	_, err := c.Render(ctx)
	assert.Error(t, err)
}

func TestCountOfOpaqueSelectionLiteralFails(t *testing.T) {
	ctx := newCtx(t, args.NewBindable())
	c := expr.CountExpr{Arg: expr.OpaqueSelectionExpr{Text: "1"}}
	_, err := c.Render(ctx)
	assert.Error(t, err)
}

func TestCollate(t *testing.T) {
	ctx := newCtx(t, args.NewBindable())
	sql, err := expr.Collate{Expr: expr.Column{Name: "name"}, Collation: "NOCASE"}.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"name" COLLATE NOCASE`, sql)
}

func TestSQLLiteralBindsCapturedValues(t *testing.T) {
	sink := args.NewBindable()
	ctx := newCtx(t, sink)

	lit := expr.SQLLiteral{Text: "length(?) > ?", Args: []expr.Captured{{Value: "x"}, {Value: 3}}}
	sql, err := lit.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "length(?) > ?", sql)
	assert.Equal(t, []any{"x", 3}, sink.Values())
}

func TestSQLLiteralRawModeInlinesLiterals(t *testing.T) {
	ctx := newCtx(t, args.NewRaw())

	lit := expr.SQLLiteral{Text: "age > ?", Args: []expr.Captured{{Value: 18}}}
	sql, err := lit.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "age > 18", sql)
}

func TestFastPrimaryKeySingleColumn(t *testing.T) {
	player := alias.FromTable("player", "")
	ctx := newCtx(t, args.NewBindable(), player)

	pk := expr.FastPrimaryKey{Table: "player"}.Qualify(player)
	sql, err := pk.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"id"`, sql)
}

func TestQualifyIsIdempotent(t *testing.T) {
	a := alias.FromTable("player", "")
	b := alias.FromTable("team", "")

	col := expr.Column{Name: "name"}.Qualify(a)
	stillA := col.Qualify(b)
	assert.Equal(t, col, stillA)
}
