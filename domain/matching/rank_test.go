package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalScore_Tiers(t *testing.T) {
	assert.InDelta(t, 0.9*0.8+0.1*0.5, FinalScore(0.8, 0.5), 1e-9)
	assert.InDelta(t, 0.9*0.7+0.1*0.0, FinalScore(0.7, 0), 1e-9)
	assert.InDelta(t, 0.7*0.6+0.3*0.5, FinalScore(0.6, 0.5), 1e-9)
	assert.InDelta(t, 0.7*0.5+0.3*1.0, FinalScore(0.5, 1), 1e-9)
	assert.InDelta(t, 0.4*0.3+0.6*1.0, FinalScore(0.3, 1), 1e-9)
}

func TestFinalCeiling_BoundsEveryLowerSemanticScore(t *testing.T) {
	for _, ceilingAt := range []float64{0, 0.3, 0.49, 0.5, 0.65, 0.7, 0.85, 0.9, 1} {
		ceiling := FinalCeiling(ceilingAt)
		for s := 0.0; s <= ceilingAt; s += 0.005 {
			assert.LessOrEqual(t, FinalScore(s, 1), ceiling+1e-9, "semantic %.3f under %.2f", s, ceilingAt)
		}
	}

	assert.InDelta(t, 0.901, FinalCeiling(0.89), 1e-9)
	// Weak matches with a perfect reputation approach 0.8.
	assert.InDelta(t, 0.8, FinalCeiling(0.65), 1e-9)
	assert.InDelta(t, 0.6, FinalCeiling(0), 1e-9)
}

func TestRank_ThresholdAndCut(t *testing.T) {
	var candidates []Candidate
	for i := range 15 {
		candidates = append(candidates, Candidate{ServiceID: int64(i + 1), Semantic: 0.75 + float64(i)*0.01})
	}
	candidates = append(candidates, Candidate{ServiceID: 99, Semantic: 0.2, Interaction: 0.1})

	ranked := Rank(candidates, 0.40, 10)

	require.Len(t, ranked, 10)
	assert.Equal(t, int64(15), ranked[0].ServiceID)
	for i, c := range ranked {
		assert.GreaterOrEqual(t, c.Final, 0.40)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Final, c.Final)
		}
		assert.NotEqual(t, int64(99), c.ServiceID)
	}
}

func TestRank_TieBreak(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	candidates := []Candidate{
		{ServiceID: 3, Semantic: 0.8, Interaction: 0.1, CreatedAt: older},
		{ServiceID: 2, Semantic: 0.8, Interaction: 0.1, CreatedAt: newer},
		{ServiceID: 1, Semantic: 0.8, Interaction: 0.1, CreatedAt: newer},
	}

	ranked := Rank(candidates, 0, 10)

	var ids []int64
	for _, c := range ranked {
		ids = append(ids, c.ServiceID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestBefore_SemanticBreaksEqualFinal(t *testing.T) {
	high := Candidate{ServiceID: 9, Final: 0.5, Semantic: 0.6}
	low := Candidate{ServiceID: 1, Final: 0.5, Semantic: 0.3}

	assert.True(t, before(high, low))
	assert.False(t, before(low, high))
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, 0.4, 10))
}

func TestAggregate_KeepsMaxPerService(t *testing.T) {
	a := NewAggregate()
	a.Add(1, 0.5)
	a.Add(2, 0.9)
	a.Add(1, 0.8)
	a.Add(1, 0.6)

	s, ok := a.Score(1)
	require.True(t, ok)
	assert.InDelta(t, 0.8, s, 1e-9)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []int64{2, 1}, a.IDs(0))
	assert.Equal(t, []int64{2}, a.IDs(1))
}
