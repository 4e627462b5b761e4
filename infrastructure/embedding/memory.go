package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/yukpo/yukpo/domain/matching"
	"github.com/yukpo/yukpo/domain/vector"
)

const memoryDimensions = 256

// MemoryIndex is an in-process vector.Index backed by hashed bag-of-words
// embeddings. It serves local runs without an embedding service and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	embeds  int
}

type memoryEntry struct {
	record    vector.Record
	embedding []float64
}

var _ vector.Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]memoryEntry)}
}

// Embed hashes the tokens of value into a unit vector.
func (m *MemoryIndex) Embed(_ context.Context, value, _ string) ([]float64, error) {
	m.mu.Lock()
	m.embeds++
	m.mu.Unlock()
	return hashEmbedding(value), nil
}

// Embeds returns how many times Embed was called.
func (m *MemoryIndex) Embeds() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embeds
}

// Upsert stores a record. Records without an id are keyed by service, field
// and type.
func (m *MemoryIndex) Upsert(_ context.Context, record vector.Record) error {
	if record.ID == "" {
		record.ID = vector.RecordID(record.ServiceID, record.Field, record.TypeDonnee)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = memoryEntry{record: record, embedding: hashEmbedding(record.Value)}
	return nil
}

// Query returns the TopK records most similar to q.Text that pass its filters.
func (m *MemoryIndex) Query(_ context.Context, q vector.Query) ([]vector.Match, error) {
	if q.TopK <= 0 {
		return nil, nil
	}
	probe := hashEmbedding(q.Text)

	m.mu.RLock()
	matches := make([]vector.Match, 0, len(m.records))
	for _, e := range m.records {
		if !admits(q, e.record) {
			continue
		}
		matches = append(matches, vector.Match{Score: vector.CosineSimilarity(probe, e.embedding), Record: e.record})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})
	if len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

// Delete removes every record of a service.
func (m *MemoryIndex) Delete(_ context.Context, serviceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.records {
		if e.record.ServiceID == serviceID && e.record.TypeMetier != vector.MetierIA {
			delete(m.records, id)
		}
	}
	return nil
}

// SetActive flips the flag of a service's records. An empty typeDonnee or
// AnyType matches every type.
func (m *MemoryIndex) SetActive(_ context.Context, serviceID int64, typeDonnee string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.records {
		if e.record.ServiceID != serviceID || e.record.TypeMetier == vector.MetierIA {
			continue
		}
		if typeDonnee != "" && typeDonnee != AnyType && e.record.TypeDonnee != typeDonnee {
			continue
		}
		e.record.Active = active
		m.records[id] = e
	}
	return nil
}

// Records returns a snapshot of every stored record.
func (m *MemoryIndex) Records() []vector.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vector.Record, 0, len(m.records))
	for _, e := range m.records {
		out = append(out, e.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func admits(q vector.Query, r vector.Record) bool {
	switch {
	case q.ActiveOnly && !r.Active:
		return false
	case q.TypeMetier != "" && r.TypeMetier != q.TypeMetier:
		return false
	case q.TypeDonnee != "" && r.TypeDonnee != q.TypeDonnee:
		return false
	case q.Field != "" && r.Field != q.Field:
		return false
	case q.Intent != "" && r.Intent != q.Intent:
		return false
	case q.Langue != "" && r.Langue != q.Langue:
		return false
	case q.Mode != "" && r.Mode != q.Mode:
		return false
	}
	if q.Circle == nil {
		return true
	}
	if r.GPSLat == nil || r.GPSLon == nil {
		return false
	}
	centre := matching.Point{Lat: q.Circle.Lat, Lon: q.Circle.Lon}
	return centre.Distance(matching.Point{Lat: *r.GPSLat, Lon: *r.GPSLon}) <= q.Circle.RadiusKM
}

func hashEmbedding(text string) []float64 {
	vec := make([]float64, memoryDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%memoryDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
