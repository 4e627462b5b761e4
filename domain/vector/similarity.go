package vector

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Stored pairs a key with its embedding.
type Stored[K comparable] struct {
	Key       K
	Embedding []float64
}

// Scored pairs a key with its similarity to a probe.
type Scored[K comparable] struct {
	Key   K
	Score float64
}

// Nearest returns the entry most similar to probe, or false if none reaches threshold.
func Nearest[K comparable](probe []float64, entries []Stored[K], threshold float64) (Scored[K], bool) {
	top := TopK(probe, entries, 1)
	if len(top) == 0 || top[0].Score < threshold {
		return Scored[K]{}, false
	}
	return top[0], true
}

// TopK returns the k entries most similar to probe, highest first.
func TopK[K comparable](probe []float64, entries []Stored[K], k int) []Scored[K] {
	if len(entries) == 0 || k <= 0 {
		return nil
	}

	scored := make([]Scored[K], 0, len(entries))
	for _, e := range entries {
		scored = append(scored, Scored[K]{Key: e.Key, Score: CosineSimilarity(probe, e.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
