package prefetch_test

import (
	"testing"

	"github.com/relq/sqlitegen/args"
	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/prefetch"
	"github.com/relq/sqlitegen/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDB struct{ dbapi.Database }

func (stubDB) PrimaryKey(table string) (dbapi.PrimaryKeyInfo, error) {
	return dbapi.PrimaryKeyInfo{Columns: []string{"id"}}, nil
}

func rootCtx() *gencontext.Context {
	return gencontext.NewRoot(stubDB{}, args.NewBindable())
}

func TestS4SingleColumnLiteralPrefetch(t *testing.T) {
	base := &relation.Relation{
		Source:    relation.Source{TableName: "book"},
		Selection: []expr.Selection{expr.Star{}},
	}

	result, err := prefetch.BuildLiteralQuery(rootCtx(), base, prefetch.Pivot{ParentColumn: "id", ChildColumn: "authorId"}, []any{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, `SELECT *, "authorId" AS "grdb_authorId" FROM "book" WHERE "authorId" IN (?, ?, ?)`, result.SQL)
	assert.Equal(t, []any{1, 2, 3}, result.Arguments)
}

func TestLiteralPrefetchCombinesWithExistingFilter(t *testing.T) {
	base := &relation.Relation{
		Source:    relation.Source{TableName: "book"},
		Selection: []expr.Selection{expr.Star{}},
		Filter:    expr.Equal(expr.Column{Name: "published"}, expr.Lit{Value: true}),
	}

	result, err := prefetch.BuildLiteralQuery(rootCtx(), base, prefetch.Pivot{ParentColumn: "id", ChildColumn: "authorId"}, []any{1, 2})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT *, "authorId" AS "grdb_authorId" FROM "book" WHERE ("published" = ? AND "authorId" IN (?, ?))`,
		result.SQL)
	assert.Equal(t, []any{true, 1, 2}, result.Arguments)
}

func TestLiteralPrefetchRejectsEmptyValues(t *testing.T) {
	base := &relation.Relation{Source: relation.Source{TableName: "book"}, Selection: []expr.Selection{expr.Star{}}}
	_, err := prefetch.BuildLiteralQuery(rootCtx(), base, prefetch.Pivot{ParentColumn: "id", ChildColumn: "authorId"}, nil)
	assert.Error(t, err)
}

func TestRowValuePrefetchBuildsCTEAndRowValueIN(t *testing.T) {
	parentBase := &relation.Relation{
		Source:    relation.Source{TableName: "author"},
		Selection: []expr.Selection{expr.Star{}},
		Filter:    expr.Equal(expr.Column{Name: "active"}, expr.Lit{Value: true}),
	}
	childBase := &relation.Relation{
		Source:    relation.Source{TableName: "book"},
		Selection: []expr.Selection{expr.Star{}},
	}

	result, err := prefetch.BuildRowValueQuery(rootCtx(), parentBase, childBase, []prefetch.Pivot{
		{ParentColumn: "country", ChildColumn: "authorCountry"},
		{ParentColumn: "id", ChildColumn: "authorId"},
	})
	require.NoError(t, err)

	expected := `WITH "base" AS (SELECT "country", "id" FROM "author" WHERE "active" = ?) ` +
		`SELECT *, "authorCountry" AS "grdb_authorCountry", "authorId" AS "grdb_authorId" ` +
		`FROM "book" WHERE ("authorCountry", "authorId") IN "base"`
	assert.Equal(t, expected, result.SQL)
	assert.Equal(t, []any{true}, result.Arguments)
}

func TestRowValuePrefetchRejectsEmptyPivots(t *testing.T) {
	parentBase := &relation.Relation{Source: relation.Source{TableName: "author"}, Selection: []expr.Selection{expr.Star{}}}
	childBase := &relation.Relation{Source: relation.Source{TableName: "book"}, Selection: []expr.Selection{expr.Star{}}}
	_, err := prefetch.BuildRowValueQuery(rootCtx(), parentBase, childBase, nil)
	assert.Error(t, err)
}
