package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mizuki-h/diaryrag/internal/domain/ports"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex implements ports.VectorIndex with SQLite-based persistence.
// Similarity is computed brute force over the candidate rows; the date
// range filter is pushed down into SQL so windowed queries stay cheap.
type SQLiteIndex struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteIndex creates a persistent vector index under dataPath.
func NewSQLiteIndex(dataPath string) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "vectors.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		date_ts REAL,
		metadata BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_date_ts ON vectors(date_ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert saves records with their embeddings.
func (s *SQLiteIndex) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO vectors (id, embedding, date_ts, metadata)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		embeddingJSON, err := json.Marshal(rec.Vector)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}

		var dateTS sql.NullFloat64
		if ts, ok := numericMeta(rec.Metadata, "date"); ok {
			dateTS = sql.NullFloat64{Float64: ts, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, rec.ID, embeddingJSON, dateTS, metadataJSON); err != nil {
			return fmt.Errorf("inserting vector: %w", err)
		}
	}

	return tx.Commit()
}

// Query finds the records most similar to the query vector. A filter on
// the "date" field is evaluated in SQL; other fields fall back to an
// in-process metadata check.
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, filter *ports.RangeFilter, topK int) ([]ports.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, embedding, metadata FROM vectors`
	var args []any
	inProcessFilter := filter
	if filter != nil && filter.Field == "date" {
		query += ` WHERE date_ts IS NOT NULL AND date_ts >= ? AND date_ts <= ?`
		args = append(args, filter.GTE, filter.LTE)
		inProcessFilter = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []ports.Match
	for rows.Next() {
		var id string
		var embeddingJSON, metadataJSON []byte

		if err := rows.Scan(&id, &embeddingJSON, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			continue // Skip corrupted embeddings
		}
		var metadata map[string]any
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			continue
		}
		if inProcessFilter != nil && !matchesRange(metadata, inProcessFilter) {
			continue
		}

		matches = append(matches, ports.Match{
			ID:       id,
			Score:    cosineSimilarity(vector, embedding),
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

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
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM vectors")
	return err
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Count returns the number of stored vectors.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&count)
	return count, err
}

func numericMeta(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
