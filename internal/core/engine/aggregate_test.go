package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/core"
)

func TestCombineScores(t *testing.T) {
	both := CombineScores(core.Int(90), core.Int(80))
	require.NotNil(t, both)
	require.Equal(t, 87.0, *both)

	require.Equal(t, 90.0, *CombineScores(core.Int(90), nil))
	require.Equal(t, 42.0, *CombineScores(nil, core.Int(42)))
	require.Nil(t, CombineScores(nil, nil))
}

func TestCombineScoresRoundsToOneDecimal(t *testing.T) {
	// 0.7*77 + 0.3*64 = 73.1
	require.Equal(t, 73.1, *CombineScores(core.Int(77), core.Int(64)))
	// 0.7*55 + 0.3*56 = 55.3
	require.Equal(t, 55.3, *CombineScores(core.Int(55), core.Int(56)))
	require.Equal(t, 0.0, *CombineScores(core.Int(0), core.Int(0)))
}
