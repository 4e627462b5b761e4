package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestTopK(t *testing.T) {
	entries := []Stored[string]{
		{Key: "far", Embedding: []float64{0, 1}},
		{Key: "near", Embedding: []float64{1, 0.1}},
		{Key: "exact", Embedding: []float64{1, 0}},
	}

	top := TopK([]float64{1, 0}, entries, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "exact", top[0].Key)
	assert.Equal(t, "near", top[1].Key)
	assert.Nil(t, TopK([]float64{1, 0}, entries, 0))
}

func TestNearest_Threshold(t *testing.T) {
	entries := []Stored[int]{{Key: 1, Embedding: []float64{1, 1}}}

	_, ok := Nearest([]float64{1, 0}, entries, 0.95)
	assert.False(t, ok)

	hit, ok := Nearest([]float64{1, 1.01}, entries, 0.95)
	assert.True(t, ok)
	assert.Equal(t, 1, hit.Key)
}

func TestIDs(t *testing.T) {
	assert.Equal(t, "12:titre:texte", RecordID(12, "titre", "texte"))
	a := CacheID("salon de coiffure", "assistance_generale", "fr")
	b := CacheID(" salon de coiffure ", "assistance_generale", "fr")
	c := CacheID("salon de coiffure", "assistance_generale", "en")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
