package matching

import (
	"sort"
	"time"
)

// DefaultResultLimit is the maximum number of results a search returns.
const DefaultResultLimit = 10

// FinalScore fuses the semantic and interaction scores with the tiered rule:
// strong semantic matches are dominated by similarity, weak ones lean on
// reputation.
func FinalScore(semantic, interaction float64) float64 {
	switch {
	case semantic >= 0.70:
		return 0.9*semantic + 0.1*interaction
	case semantic >= 0.50:
		return 0.7*semantic + 0.3*interaction
	default:
		return 0.4*semantic + 0.6*interaction
	}
}

// FinalCeiling returns the highest final score reachable by a candidate
// whose semantic score is at most semantic. Weak tiers lean on reputation,
// so a lower semantic score can still fuse higher.
func FinalCeiling(semantic float64) float64 {
	ceiling := 0.4*min(semantic, 0.50) + 0.6
	if semantic >= 0.50 {
		ceiling = max(ceiling, 0.7*min(semantic, 0.70)+0.3)
	}
	if semantic >= 0.70 {
		ceiling = max(ceiling, 0.9*semantic+0.1)
	}
	return ceiling
}

// Candidate is a service under consideration for a search.
type Candidate struct {
	ServiceID   int64
	Semantic    float64
	Interaction float64
	Final       float64
	CreatedAt   time.Time
	Location    *Point
}

// Aggregate keeps the best per-field semantic score for every service.
type Aggregate struct {
	scores map[int64]float64
	order  []int64
}

// NewAggregate creates an empty Aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{scores: make(map[int64]float64)}
}

// Add records a field-level similarity for a service.
func (a *Aggregate) Add(serviceID int64, score float64) {
	current, ok := a.scores[serviceID]
	if !ok {
		a.order = append(a.order, serviceID)
		a.scores[serviceID] = score
		return
	}
	if score > current {
		a.scores[serviceID] = score
	}
}

// Len returns the number of distinct services.
func (a *Aggregate) Len() int { return len(a.order) }

// Score returns the best semantic score of a service.
func (a *Aggregate) Score(serviceID int64) (float64, bool) {
	s, ok := a.scores[serviceID]
	return s, ok
}

// IDs returns the services, best first, capped at limit when limit > 0.
func (a *Aggregate) IDs(limit int) []int64 {
	ids := make([]int64, len(a.order))
	copy(ids, a.order)
	sort.SliceStable(ids, func(i, j int) bool {
		if a.scores[ids[i]] != a.scores[ids[j]] {
			return a.scores[ids[i]] > a.scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// Rank scores candidates, drops those under threshold, sorts them and cuts
// to limit. Ties break on semantic score, then newer creation, then lower id.
func Rank(candidates []Candidate, threshold float64, limit int) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Final = FinalScore(c.Semantic, c.Interaction)
		if c.Final < threshold {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return before(kept[i], kept[j])
	})

	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// before orders ranked candidates.
func before(a, b Candidate) bool {
	if a.Final != b.Final {
		return a.Final > b.Final
	}
	if a.Semantic != b.Semantic {
		return a.Semantic > b.Semantic
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ServiceID < b.ServiceID
}
