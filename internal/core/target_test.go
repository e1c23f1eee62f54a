package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget("  https://example.com/pricing ")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/pricing", got)

	_, err = ParseTarget("")
	require.ErrorIs(t, err, ErrMissingURL)

	for _, raw := range []string{"example.com", "ftp://example.com", "https://", "http://%zz"} {
		_, err := ParseTarget(raw)
		require.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
