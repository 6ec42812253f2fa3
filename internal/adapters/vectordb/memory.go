// Package vectordb provides vector index adapters.
// Clean Architecture: Adapters implementing ports.VectorIndex.
package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

// InMemoryIndex is a simple in-memory vector index. Useful for tests and
// single-process deployments; the SQLite or Qdrant adapters can be
// swapped in without changing usecases.
type InMemoryIndex struct {
	mu      sync.RWMutex
	records map[string]ports.VectorRecord
}

// NewInMemoryIndex creates a new in-memory vector index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		records: make(map[string]ports.VectorRecord),
	}
}

// Upsert saves records, replacing any with the same id.
func (s *InMemoryIndex) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return nil
}

// Query returns the topK records most similar to the vector, optionally
// restricted to those whose numeric metadata field lies inside filter.
func (s *InMemoryIndex) Query(ctx context.Context, vector []float32, filter *ports.RangeFilter, topK int) ([]ports.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []ports.Match
	for _, rec := range s.records {
		if filter != nil && !matchesRange(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, ports.Match{
			ID:       rec.ID,
			Score:    cosineSimilarity(vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}

	// Sort by score descending; ties break on id for stable output.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Clear removes all data from the index.
func (s *InMemoryIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]ports.VectorRecord)
	return nil
}

// matchesRange reports whether the record's filter field is a number
// within [GTE, LTE]. Records lacking the field never match.
func matchesRange(meta map[string]any, filter *ports.RangeFilter) bool {
	raw, ok := meta[filter.Field]
	if !ok {
		return false
	}
	var val float64
	switch v := raw.(type) {
	case float64:
		val = v
	case float32:
		val = float64(v)
	case int:
		val = float64(v)
	case int64:
		val = float64(v)
	default:
		return false
	}
	return val >= filter.GTE && val <= filter.LTE
}

// cosineSimilarity calculates cosine similarity between two vectors.
// A zero vector on either side yields 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
