package usecases

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

// fakeEmbedder implements ports.EmbeddingService for testing.
type fakeEmbedder struct {
	dim        int
	embedCalls []string
	err        error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.embedCalls = append(f.embedCalls, text)
	vec := make([]float32, f.dim)
	vec[0] = 1
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

// fakeIndex implements ports.VectorIndex over a fixed record set with
// per-record scores. It records the filters it was queried with.
type fakeIndex struct {
	records  []ports.VectorRecord
	scores   map[string]float64
	filters  []*ports.RangeFilter
	vectors  [][]float32
	err      error
	upserted []ports.VectorRecord
}

func (f *fakeIndex) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, filter *ports.RangeFilter, topK int) ([]ports.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.filters = append(f.filters, filter)
	f.vectors = append(f.vectors, vector)

	var matches []ports.Match
	for _, rec := range f.records {
		if filter != nil {
			v, ok := rec.Metadata[filter.Field].(float64)
			if !ok || v < filter.GTE || v > filter.LTE {
				continue
			}
		}
		matches = append(matches, ports.Match{ID: rec.ID, Score: f.scores[rec.ID], Metadata: rec.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *fakeIndex) Clear(ctx context.Context) error { return nil }

func midnightTS(t *testing.T, date string) float64 {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	require.NoError(t, err)
	return float64(parsed.Unix())
}

func diaryRecord(t *testing.T, date, text string) ports.VectorRecord {
	t.Helper()
	return ports.VectorRecord{
		ID:     date,
		Vector: []float32{1, 0},
		Metadata: map[string]any{
			"text":     text,
			"date":     midnightTS(t, date),
			"location": "富山市",
		},
	}
}

func TestSearchWindowBoundsInclusive(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	index := &fakeIndex{
		records: []ports.VectorRecord{
			diaryRecord(t, "2025-09-21", "window start"),
			diaryRecord(t, "2025-09-27", "window end"),
		},
		scores: map[string]float64{"2025-09-21": 0.9, "2025-09-27": 0.8},
	}
	r := NewRetriever(embedder, index, 6, 3)

	passages, err := r.Search(context.Background(), "2025-09-24", "walk", 0, 0)
	require.NoError(t, err)

	// Entries at exactly D-3 and D+3 are eligible.
	require.Len(t, passages, 2)
	assert.Equal(t, "2025-09-21", passages[0].Metadata.Date)
	assert.Equal(t, "2025-09-27", passages[1].Metadata.Date)

	require.NotEmpty(t, index.filters)
	require.NotNil(t, index.filters[0])
	assert.Equal(t, "date", index.filters[0].Field)
	assert.Equal(t, midnightTS(t, "2025-09-21"), index.filters[0].GTE)
	assert.Equal(t, midnightTS(t, "2025-09-27"), index.filters[0].LTE)
}

func TestSearchBackfillDeduplicates(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	index := &fakeIndex{
		records: []ports.VectorRecord{
			diaryRecord(t, "2025-09-23", "in window"),
			diaryRecord(t, "2025-09-24", "in window too"),
			diaryRecord(t, "2025-05-01", "far away"),
			diaryRecord(t, "2025-04-01", "farther away"),
		},
		scores: map[string]float64{
			"2025-09-23": 0.9,
			"2025-09-24": 0.85,
			"2025-05-01": 0.95, // would outrank windowed hits unfiltered
			"2025-04-01": 0.5,
		},
	}
	r := NewRetriever(embedder, index, 6, 3)

	passages, err := r.Search(context.Background(), "2025-09-24", "q", 4, 3)
	require.NoError(t, err)
	require.Len(t, passages, 4)

	// Windowed matches come first; backfill appended after, no duplicates.
	assert.Equal(t, "2025-09-23", passages[0].Metadata.Date)
	assert.Equal(t, "2025-09-24", passages[1].Metadata.Date)
	assert.Equal(t, "2025-05-01", passages[2].Metadata.Date)
	assert.Equal(t, "2025-04-01", passages[3].Metadata.Date)

	seen := make(map[string]bool)
	for _, p := range passages {
		assert.False(t, seen[p.Metadata.Date], "duplicate passage for %s", p.Metadata.Date)
		seen[p.Metadata.Date] = true
	}

	// Two queries: windowed then unfiltered backfill.
	require.Len(t, index.filters, 2)
	assert.NotNil(t, index.filters[0])
	assert.Nil(t, index.filters[1])
}

func TestSearchEmptyQueryUsesZeroVector(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	index := &fakeIndex{
		records: []ports.VectorRecord{diaryRecord(t, "2025-09-24", "entry")},
		scores:  map[string]float64{"2025-09-24": 0.5},
	}
	r := NewRetriever(embedder, index, 6, 3)

	_, err := r.Search(context.Background(), "2025-09-24", "", 0, 0)
	require.NoError(t, err)

	assert.Empty(t, embedder.embedCalls, "empty query must not be embedded")
	require.NotEmpty(t, index.vectors)
	assert.Equal(t, make([]float32, 4), index.vectors[0])
}

func TestSearchScenarioAllEntriesInWindow(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	index := &fakeIndex{
		records: []ports.VectorRecord{
			diaryRecord(t, "2025-09-22", "二日前"),
			diaryRecord(t, "2025-09-23", "前日"),
			diaryRecord(t, "2025-09-24", "当日"),
		},
		scores: map[string]float64{"2025-09-22": 0.3, "2025-09-23": 0.2, "2025-09-24": 0.1},
	}
	r := NewRetriever(embedder, index, 6, 3)

	passages, err := r.Search(context.Background(), "2025-09-24", "", 6, 3)
	require.NoError(t, err)
	require.Len(t, passages, 3)
	// Order follows the index's own similarity order.
	assert.Equal(t, "2025-09-22", passages[0].Metadata.Date)
	assert.Equal(t, "2025-09-23", passages[1].Metadata.Date)
	assert.Equal(t, "2025-09-24", passages[2].Metadata.Date)
}

func TestSearchUnavailableWithoutCollaborators(t *testing.T) {
	r := NewRetriever(nil, nil, 0, 0)
	_, err := r.Search(context.Background(), "2025-09-24", "", 0, 0)
	assert.ErrorIs(t, err, ErrRetrieverUnavailable)
}

func TestSearchRejectsUnparseableDate(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{dim: 2}, &fakeIndex{}, 0, 0)
	_, err := r.Search(context.Background(), "not-a-date", "", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

func TestSearchQueryFailureDegradesToEmpty(t *testing.T) {
	index := &fakeIndex{err: errors.New("index exploded")}
	r := NewRetriever(&fakeEmbedder{dim: 2}, index, 0, 0)

	passages, err := r.Search(context.Background(), "2025-09-24", "q", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSearchEmbeddingFailurePropagates(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2, err: errors.New("model offline")}
	r := NewRetriever(embedder, &fakeIndex{}, 0, 0)

	_, err := r.Search(context.Background(), "2025-09-24", "q", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
}

func TestResolveDateDefensiveParsing(t *testing.T) {
	ts := midnightTS(t, "2025-09-22")

	tests := []struct {
		name string
		meta map[string]any
		want string
	}{
		{"numeric timestamp", map[string]any{"date": ts}, "2025-09-22"},
		{"string timestamp", map[string]any{"date": "1758499200"}, time.Unix(1758499200, 0).UTC().Format("2006-01-02")},
		{"malformed string", map[string]any{"date": "garbage"}, "2025-09-22"},
		{"missing timestamp", map[string]any{}, "2025-09-22"},
		{"nil timestamp", map[string]any{"date": nil}, "2025-09-22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDate(ports.Match{ID: "2025-09-22", Metadata: tt.meta})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassageFromMatchCopiesFields(t *testing.T) {
	p := passageFromMatch(ports.Match{
		ID:    "2025-09-22",
		Score: 0.42,
		Metadata: map[string]any{
			"text":     "朝から雨だった。",
			"date":     midnightTS(t, "2025-09-22"),
			"location": "富山市",
		},
	})
	assert.Equal(t, entities.Passage{
		Text:     "朝から雨だった。",
		Metadata: entities.PassageMeta{Date: "2025-09-22", Location: "富山市"},
		Score:    0.42,
	}, p)
}
