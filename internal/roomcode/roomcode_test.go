package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := Generate()

		parts := strings.Split(code, "-")
		require.Len(t, parts, 3, "code %q", code)
		for _, part := range parts {
			require.NotEmpty(t, part)
			require.Equal(t, strings.ToLower(part), part, "code %q must be lowercase", code)
		}
		require.True(t, IsWellFormed(code), "code %q", code)
	}
}

func TestIsWellFormed(t *testing.T) {
	require.True(t, IsWellFormed("kitten-waffle-stardust"))
	require.True(t, IsWellFormed("solo"))
	require.False(t, IsWellFormed(""))
	require.False(t, IsWellFormed("Has-Upper-Case"))
	require.False(t, IsWellFormed("spaces are bad"))
}
