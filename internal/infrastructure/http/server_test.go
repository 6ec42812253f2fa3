package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-h/diaryrag/internal/adapters/diarystore"
	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
	"github.com/mizuki-h/diaryrag/internal/domain/usecases"
)

type stubEmbedder struct{ dim int }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return s.dim }

type stubIndex struct{}

func (s *stubIndex) Upsert(ctx context.Context, records []ports.VectorRecord) error { return nil }
func (s *stubIndex) Query(ctx context.Context, vector []float32, filter *ports.RangeFilter, topK int) ([]ports.Match, error) {
	return nil, nil
}
func (s *stubIndex) Clear(ctx context.Context) error { return nil }

type stubStore struct {
	entries map[string]entities.DiaryEntry
	saveErr error
}

func (s *stubStore) Save(ctx context.Context, entries []entities.DiaryEntry) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, e := range entries {
		s.entries[e.Date] = e
	}
	return nil
}

func (s *stubStore) GetByDate(ctx context.Context, date string) (*entities.DiaryEntry, error) {
	e, ok := s.entries[date]
	if !ok {
		return nil, diarystore.ErrNotFound
	}
	return &e, nil
}

func (s *stubStore) SaveEnrichment(ctx context.Context, e entities.Enrichment) error { return nil }
func (s *stubStore) Close() error                                                    { return nil }

func newTestHandler(t *testing.T, store *stubStore) http.Handler {
	t.Helper()

	dir := t.TempDir()
	template := "{date}\n{context}\n{hint}\n{style_guide}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interpolate.md"), []byte(template), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style_guide.md"), []byte("常体"), 0o644))

	generator, err := usecases.NewGenerator(nil, dir, ports.GenerationParams{})
	require.NoError(t, err)

	embedder := &stubEmbedder{dim: 2}
	index := &stubIndex{}
	retriever := usecases.NewRetriever(embedder, index, 6, 3)
	orchestrator := usecases.NewOrchestrator(retriever, generator)
	ingest := usecases.NewIngestUseCase(embedder, index, store, nil)

	return NewServer(orchestrator, ingest, store, ":0").Handler()
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string]entities.DiaryEntry)}
}

func TestInterpolateEndpoint(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	body := `{"date":"2025-09-24","hint":"休日"}`
	req := httptest.NewRequest(http.MethodPost, "/interpolate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp entities.InterpolationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-09-24", resp.Date)
	assert.Contains(t, resp.Text, "2025-09-24 の記録")
	assert.NotNil(t, resp.Citations)
	assert.Empty(t, resp.Citations)
}

func TestInterpolateEndpointRejectsBadInput(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "{not json", http.StatusBadRequest},
		{"missing date", http.MethodPost, `{"hint":"x"}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/interpolate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestInterpolateEndpointNeverFailsOnBadDate(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/interpolate",
		strings.NewReader(`{"date":"not-a-date"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Pipeline errors degrade to an error-text payload, not a 5xx.
	require.Equal(t, http.StatusOK, rec.Code)

	var resp entities.InterpolationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Text, "Error during retrieval: "))
	assert.Empty(t, resp.Citations)
}

func TestIngestEndpoint(t *testing.T) {
	store := newStubStore()
	handler := newTestHandler(t, store)

	body := `{"diaries":[{"date":"2025-09-22","body":"雨。"},{"date":"2025-09-23","body":"晴れ。"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp entities.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.IngestedCount)
	assert.Len(t, store.entries, 2)
}

func TestIngestEndpointEmptyBatch(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"diaries":[]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndpointStoreFailure(t *testing.T) {
	store := newStubStore()
	store.saveErr = errors.New("disk full")
	handler := newTestHandler(t, store)

	body := `{"diaries":[{"date":"2025-09-22","body":"雨。"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDiaryEndpoint(t *testing.T) {
	store := newStubStore()
	store.entries["2025-09-22"] = entities.DiaryEntry{Date: "2025-09-22", Body: "雨。"}
	handler := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/diary/2025-09-22", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entry entities.DiaryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "雨。", entry.Body)
}

func TestDiaryEndpointNotFound(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/diary/1999-01-01", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, newStubStore())

	req := httptest.NewRequest(http.MethodOptions, "/interpolate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
