package relation_test

import (
	"testing"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playerSelectStar() *relation.Relation {
	return &relation.Relation{
		Source:    relation.Source{TableName: "player"},
		Selection: []expr.Selection{expr.Star{}},
		Filter:    expr.Equal(expr.Column{Name: "name"}, expr.Lit{Value: "Alice"}),
	}
}

func TestQualifyAssignsSourceAlias(t *testing.T) {
	q, err := relation.Qualify(playerSelectStar())
	require.NoError(t, err)

	tableName, ok := q.Source.Alias.TableName()
	assert.True(t, ok)
	assert.Equal(t, "player", tableName)
}

func TestQualifyQualifiesFilter(t *testing.T) {
	q, err := relation.Qualify(playerSelectStar())
	require.NoError(t, err)

	assert.IsType(t, expr.Binary{}, q.Filter)
	bin := q.Filter.(expr.Binary)
	assert.IsType(t, expr.QualifiedColumn{}, bin.Left)
}

func TestAllAliasesPreOrder(t *testing.T) {
	r := &relation.Relation{
		Source:    relation.Source{TableName: "book"},
		Selection: []expr.Selection{expr.Star{}},
		Children: []relation.Child{
			{
				Name: "author",
				Kind: relation.OneOptional,
				Relation: &relation.Relation{
					Source:    relation.Source{TableName: "person", Alias: alias.FromTable("person", "")},
					Selection: []expr.Selection{expr.Star{}},
				},
			},
		},
	}

	q, err := relation.Qualify(r)
	require.NoError(t, err)

	all := q.AllAliases()
	require.Len(t, all, 2)
	bookName, _ := all[0].TableName()
	authorName, _ := all[1].TableName()
	assert.Equal(t, "book", bookName)
	assert.Equal(t, "person", authorName)
}

func TestAllSelectionsConcatenatesJoinedChildrenOnly(t *testing.T) {
	r := &relation.Relation{
		Source:    relation.Source{TableName: "book"},
		Selection: []expr.Selection{expr.Star{}},
		Children: []relation.Child{
			{
				Name: "author",
				Kind: relation.OneOptional,
				Relation: &relation.Relation{
					Source:    relation.Source{TableName: "person"},
					Selection: []expr.Selection{expr.Star{}},
				},
			},
			{
				Name: "reviews",
				Kind: relation.All,
				Relation: &relation.Relation{
					Source:    relation.Source{TableName: "review"},
					Selection: []expr.Selection{expr.Star{}},
				},
			},
		},
	}

	q, err := relation.Qualify(r)
	require.NoError(t, err)

	assert.Len(t, q.AllSelections(), 2)
	assert.Len(t, q.Joins, 1)
	assert.Len(t, q.Prefetch, 1)
	assert.Equal(t, "reviews", q.Prefetch[0].Name)
}

func TestSelectOnlyClearsSelectionAndDistinct(t *testing.T) {
	r := &relation.Relation{
		Source:    relation.Source{TableName: "player"},
		Selection: []expr.Selection{expr.Star{}},
		Distinct:  true,
		Children: []relation.Child{
			{
				Name: "team",
				Kind: relation.OneRequired,
				Relation: &relation.Relation{
					Source:    relation.Source{TableName: "team"},
					Selection: []expr.Selection{expr.Star{}},
				},
			},
		},
	}

	q, err := relation.Qualify(r)
	require.NoError(t, err)

	rewritten := q.SelectOnly(expr.Plain{Expr: expr.Column{Name: "id"}})
	assert.False(t, rewritten.Distinct)
	assert.Len(t, rewritten.Selection, 1)
	assert.Empty(t, rewritten.Joins[0].Relation.Selection)

	// original is untouched
	assert.True(t, q.Distinct)
	assert.NotEmpty(t, q.Joins[0].Relation.Selection)
}

func TestQualifyFailsWithoutTableNameOrAlias(t *testing.T) {
	r := &relation.Relation{Selection: []expr.Selection{expr.Star{}}}
	_, err := relation.Qualify(r)
	assert.Error(t, err)
}
