package args_test

import (
	"testing"

	"github.com/relq/sqlitegen/args"
	"github.com/stretchr/testify/assert"
)

func TestBindableAppendsInOrder(t *testing.T) {
	s := args.NewBindable()
	assert.True(t, s.Append("Alice"))
	assert.True(t, s.Append(1, 2))
	assert.Equal(t, []any{"Alice", 1, 2}, s.Values())
	assert.Equal(t, 3, s.Len())
}

func TestRawRejectsNonEmpty(t *testing.T) {
	s := args.NewRaw()
	assert.True(t, s.Raw())
	assert.True(t, s.Append()) // empty append is always fine, even in raw mode
	assert.False(t, s.Append("x"))
	assert.Equal(t, 0, s.Len())
}
