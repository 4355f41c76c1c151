package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/internal/symtab"
)

func TestNewSymbolsAreDistinct(t *testing.T) {
	a := symtab.New("x")
	b := symtab.New("x")
	require.False(t, a.Equal(b), "two calls to New must never collide, even for the same name")
	require.True(t, a.Equal(a))
}

func TestSymbolString(t *testing.T) {
	s := symtab.New("count")
	require.Contains(t, s.String(), "count")
}
