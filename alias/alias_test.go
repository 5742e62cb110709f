package alias_test

import (
	"testing"

	"github.com/relq/sqlitegen/alias"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisambiguateSelfJoin(t *testing.T) {
	book := alias.FromTable("book", "")
	author := alias.FromTable("person", "")
	translator := alias.FromTable("person", "")
	award := alias.FromTable("award", "")

	names, err := alias.Disambiguate([]*alias.Alias{book, author, translator, award})
	require.NoError(t, err)

	assert.Equal(t, "person1", names[author])
	assert.Equal(t, "person2", names[translator])
	_, bookPresent := names[book]
	assert.False(t, bookPresent)
	_, awardPresent := names[award]
	assert.False(t, awardPresent)
}

func TestDisambiguateIsIdempotent(t *testing.T) {
	a := alias.FromTable("person", "")
	b := alias.FromTable("person", "")

	first, err := alias.Disambiguate([]*alias.Alias{a, b})
	require.NoError(t, err)
	second, err := alias.Disambiguate([]*alias.Alias{a, b})
	require.NoError(t, err)

	assert.Equal(t, first[a], second[a])
	assert.Equal(t, first[b], second[b])
}

func TestDisambiguateRejectsDuplicateIdentity(t *testing.T) {
	a := alias.FromTable("person", "")
	_, err := alias.Disambiguate([]*alias.Alias{a, a})
	assert.Error(t, err)
}

func TestDisambiguateAllowsOneUserNamedMember(t *testing.T) {
	a := alias.FromTable("person", "author")
	b := alias.FromTable("person", "")

	names, err := alias.Disambiguate([]*alias.Alias{a, b})
	require.NoError(t, err)

	// Grouping is by identity name: a is "author" and b is "person", so
	// they fall into different groups and both keep their identity names
	// (absent from the map).
	_, aPresent := names[a]
	assert.False(t, aPresent)
	_, bPresent := names[b]
	assert.False(t, bPresent)
}

func TestDisambiguateRejectsTwoUserNamedMembers(t *testing.T) {
	a := alias.FromTable("person", "author")
	b := alias.FromTable("person", "Author")
	_, err := alias.Disambiguate([]*alias.Alias{a, b})
	assert.Error(t, err)
}

func TestMergeCompatible(t *testing.T) {
	a := alias.FromTable("player", "")
	b := alias.FromTable("player", "")

	common, ok := alias.Merge(a, b)
	require.True(t, ok)
	assert.NotNil(t, common)
	assert.True(t, alias.Same(a, b))
}

func TestMergeIncompatibleTableNames(t *testing.T) {
	a := alias.FromTable("player", "")
	b := alias.FromTable("team", "")

	_, ok := alias.Merge(a, b)
	assert.False(t, ok)
	assert.False(t, alias.Same(a, b))
}

func TestMergeIncompatibleUserNames(t *testing.T) {
	a := alias.FromTable("player", "p1")
	b := alias.FromTable("player", "p2")

	_, ok := alias.Merge(a, b)
	assert.False(t, ok)
	assert.False(t, alias.Same(a, b))
}

func TestBecomeProxyPropagatesUserName(t *testing.T) {
	a := alias.FromTable("player", "p")
	b := alias.FromTable("player", "")

	require.NoError(t, a.BecomeProxy(b))
	assert.Equal(t, "p", b.UserName())
	assert.True(t, alias.Same(a, b))
}

func TestSetTableNameUndefinedToTable(t *testing.T) {
	a := alias.New("")
	require.NoError(t, a.SetTableName("player"))
	name, isTable := a.TableName()
	assert.True(t, isTable)
	assert.Equal(t, "player", name)
}

func TestSetTableNameRejectsMismatch(t *testing.T) {
	a := alias.FromTable("player", "")
	assert.Error(t, a.SetTableName("team"))
}

func TestSetTableNameCaseInsensitive(t *testing.T) {
	a := alias.FromTable("Player", "")
	assert.NoError(t, a.SetTableName("player"))
}
