// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the interpolation pipeline logic.
package usecases

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

const (
	dateLayout = "2006-01-02"

	// DefaultTopK and DefaultDayWindow mirror the retriever settings
	// shared with the ingestion side.
	DefaultTopK      = 6
	DefaultDayWindow = 3
)

// Retriever combines temporal filtering and semantic similarity to
// produce a ranked passage list for a (date, query) pair.
type Retriever struct {
	embedder  ports.EmbeddingService
	index     ports.VectorIndex
	topK      int
	dayWindow int
}

// NewRetriever creates a Retriever with injected dependencies.
func NewRetriever(embedder ports.EmbeddingService, index ports.VectorIndex, topK, dayWindow int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if dayWindow <= 0 {
		dayWindow = DefaultDayWindow
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		topK:      topK,
		dayWindow: dayWindow,
	}
}

// Search returns up to k passages around date, ranked by the index's
// similarity order: date-windowed matches first, then semantic backfill.
// k or dayWindow <= 0 fall back to the configured defaults.
//
// An index query failure degrades to an empty result (logged, not
// propagated) so a sparse index never aborts the whole pipeline.
func (r *Retriever) Search(ctx context.Context, date, query string, k, dayWindow int) ([]entities.Passage, error) {
	if r.embedder == nil || r.index == nil {
		return nil, ErrRetrieverUnavailable
	}
	if k <= 0 {
		k = r.topK
	}
	if dayWindow <= 0 {
		dayWindow = r.dayWindow
	}

	target, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}

	// Window bounds as midnight-UTC unix seconds, inclusive both ends.
	start := target.AddDate(0, 0, -dayWindow).Unix()
	end := target.AddDate(0, 0, dayWindow).Unix()
	filter := &ports.RangeFilter{Field: "date", GTE: float64(start), LTE: float64(end)}

	// Empty query: zero vector. Cosine similarity against zero is
	// degenerate, so ranking in this branch is whatever the index
	// yields under the filter. That is intentional.
	var vector []float32
	if query != "" {
		vector, err = r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
	} else {
		vector = make([]float32, r.embedder.Dimension())
	}

	matches, err := r.index.Query(ctx, vector, filter, k)
	if err != nil {
		log.Printf("[WARN] vector index query failed: %v", err)
		return []entities.Passage{}, nil
	}

	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m.ID] = true
	}

	// Backfill: when the window is sparse, top up from an unfiltered
	// similarity query so the caller still receives up to k passages.
	if len(matches) < k {
		broader, err := r.index.Query(ctx, vector, nil, 2*k)
		if err != nil {
			log.Printf("[WARN] vector index backfill query failed: %v", err)
			return []entities.Passage{}, nil
		}
		for _, m := range broader {
			if seen[m.ID] {
				continue
			}
			matches = append(matches, m)
			seen[m.ID] = true
			if len(matches) >= k {
				break
			}
		}
	}

	passages := make([]entities.Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, passageFromMatch(m))
	}
	return passages, nil
}

// passageFromMatch converts an index match into a Passage, resolving the
// stored timestamp back to an ISO date string.
func passageFromMatch(m ports.Match) entities.Passage {
	return entities.Passage{
		Text: metaString(m.Metadata, "text"),
		Metadata: entities.PassageMeta{
			Date:     resolveDate(m),
			Location: metaString(m.Metadata, "location"),
		},
		Score: m.Score,
	}
}

// resolveDate parses the stored timestamp defensively: indexes sometimes
// return numbers as strings. A missing or malformed timestamp falls back
// to the match id, which is the ISO date by ingestion convention.
func resolveDate(m ports.Match) string {
	ts, ok := m.Metadata["date"]
	if !ok || ts == nil {
		return m.ID
	}
	var epoch float64
	switch v := ts.(type) {
	case float64:
		epoch = v
	case float32:
		epoch = float64(v)
	case int:
		epoch = float64(v)
	case int64:
		epoch = float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return m.ID
		}
		epoch = f
	default:
		return m.ID
	}
	return time.Unix(int64(epoch), 0).UTC().Format(dateLayout)
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
