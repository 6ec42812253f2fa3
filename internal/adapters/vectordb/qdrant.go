package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

// QdrantIndex is a minimal REST client to Qdrant implementing
// ports.VectorIndex. It assumes cosine distance and creates the
// collection on first use.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewQdrantIndex creates the Qdrant adapter.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "diary-rag-index"
	}
	return &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist yet.
func (s *QdrantIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 OK if the collection exists with the same schema.
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

// Upsert saves records with their embeddings and payloads.
func (s *QdrantIndex) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	points := make([]map[string]any, len(records))
	for i, rec := range records {
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		// Qdrant point ids must be uuids or integers; keep the record id
		// (the ISO date) in the payload and surface it on query.
		payload["record_id"] = rec.ID
		points[i] = map[string]any{
			"id":      pointID(rec.ID),
			"vector":  rec.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

// Query runs a similarity search, pushing the range filter down into a
// Qdrant payload range condition.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, filter *ports.RangeFilter, topK int) ([]ports.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter != nil {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": filter.Field,
					"range": map[string]any{
						"gte": filter.GTE,
						"lte": filter.LTE,
					},
				},
			},
		}
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]ports.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := fmt.Sprint(r.ID)
		if v, ok := r.Payload["record_id"].(string); ok && v != "" {
			id = v
		}
		matches = append(matches, ports.Match{
			ID:       id,
			Score:    r.Score,
			Metadata: r.Payload,
		})
	}
	return matches, nil
}

// Clear drops the collection, best effort.
func (s *QdrantIndex) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// pointID maps a record id to a stable unsigned integer Qdrant accepts.
func pointID(id string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a 64
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}

func (s *QdrantIndex) putJSON(ctx context.Context, url string, body any) error {
	return s.sendJSON(ctx, http.MethodPut, url, body, nil)
}

func (s *QdrantIndex) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.sendJSON(ctx, http.MethodPost, url, body, out)
}

func (s *QdrantIndex) sendJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
