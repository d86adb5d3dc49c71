package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/promptops/batchrelay/internal/errors"
)

func seq(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestRanks(t *testing.T) {
	got := ranks([]float64{3, 1, 4, 1, 5})
	assert.Equal(t, []float64{3, 1.5, 4, 1.5, 5}, got)
}

func TestTieCorrectionSum(t *testing.T) {
	// One pair and one triple: (2^3-2) + (3^3-3) = 30.
	assert.InDelta(t, 30, tieCorrectionSum([]float64{1, 1, 2, 3, 3, 3}), 1e-9)
	assert.InDelta(t, 0, tieCorrectionSum([]float64{1, 2, 3}), 1e-9)
}

func TestKruskalWallis_SeparatedGroups(t *testing.T) {
	groups := []Group{
		{Name: "low", Values: seq(1, 10)},
		{Name: "mid", Values: seq(101, 110)},
		{Name: "high", Values: seq(201, 210)},
	}
	res, err := KruskalWallis(groups)
	require.NoError(t, err)
	assert.InDelta(t, 25.806, res.Statistic, 0.01)
	assert.Less(t, res.PValue, 0.001)
	assert.Equal(t, InterpSignificant, res.Interpretation)
	assert.True(t, res.Significant())
}

func TestKruskalWallis_OverlappingGroups(t *testing.T) {
	groups := []Group{
		{Name: "a", Values: seq(1, 6)},
		{Name: "b", Values: seq(2, 7)},
	}
	res, err := KruskalWallis(groups)
	require.NoError(t, err)
	assert.Greater(t, res.PValue, 0.05)
	assert.Equal(t, InterpNotSignificant, res.Interpretation)
}

func TestKruskalWallis_Validation(t *testing.T) {
	_, err := KruskalWallis([]Group{{Name: "only", Values: seq(1, 5)}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	_, err = KruskalWallis([]Group{{Name: "a", Values: seq(1, 5)}, {Name: "empty"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
}

func TestLevene(t *testing.T) {
	tight := Group{Name: "tight", Values: []float64{10, 10.1, 9.9, 10, 10.05, 9.95, 10.02, 9.98}}
	wide := Group{Name: "wide", Values: []float64{0, 20, -10, 30, -20, 40, -30, 50}}

	res, err := Levene([]Group{tight, wide})
	require.NoError(t, err)
	assert.Less(t, res.PValue, 0.05)
	assert.Equal(t, InterpSignificant, res.Interpretation)

	same, err := Levene([]Group{
		{Name: "a", Values: seq(1, 10)},
		{Name: "b", Values: seq(51, 60)},
	})
	require.NoError(t, err)
	assert.Greater(t, same.PValue, 0.05)
	assert.Equal(t, InterpNotSignificant, same.Interpretation)
}

func TestNormalityCheck(t *testing.T) {
	// Symmetric mound-shaped sample passes.
	symmetric := []float64{1, 2, 2, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 6, 6, 7}
	res := NormalityCheck(symmetric)
	assert.Greater(t, res.PValue, 0.05)

	// One extreme outlier among constants fails.
	skewed := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 100}
	res = NormalityCheck(skewed)
	assert.LessOrEqual(t, res.PValue, 0.05)

	// Too small to judge: treated as passing.
	tiny := NormalityCheck([]float64{1, 2, 3})
	assert.InDelta(t, 1, tiny.PValue, 1e-9)
}

func TestGroupsNormal(t *testing.T) {
	assert.True(t, GroupsNormal([]Group{
		{Name: "a", Values: []float64{1, 2, 2, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 6, 6, 7}},
	}))
	assert.False(t, GroupsNormal([]Group{
		{Name: "a", Values: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 100}},
	}))
}

func TestDunn(t *testing.T) {
	groups := []Group{
		{Name: "low", Values: seq(1, 10)},
		{Name: "mid", Values: seq(101, 110)},
		{Name: "high", Values: seq(201, 210)},
	}
	rows, err := Dunn(groups, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var lowHigh *PairwiseComparison
	for i := range rows {
		if rows[i].Group1 == "low" && rows[i].Group2 == "high" {
			lowHigh = &rows[i]
		}
	}
	require.NotNil(t, lowHigh)
	// Average ranks 5.5 vs 25.5 with se = sqrt(77.5 * 0.2).
	assert.InDelta(t, 5.08, lowHigh.ZScore, 0.01)
	assert.InDelta(t, -200, lowHigh.MeanDiff, 1e-9)
	assert.InDelta(t, -200, lowHigh.MedianDiff, 1e-9)
	assert.Less(t, lowHigh.PValue, 0.001)
	assert.InDelta(t, lowHigh.PValue*3, lowHigh.PAdjusted, 1e-12)
	assert.True(t, lowHigh.Reject)
}

func TestDunn_NoDifference(t *testing.T) {
	rows, err := Dunn([]Group{
		{Name: "a", Values: seq(1, 6)},
		{Name: "b", Values: seq(2, 7)},
	}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Greater(t, rows[0].PValue, 0.05)
	assert.False(t, rows[0].Reject)
}
