// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
// Embed must be deterministic for identical input within a deployment.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed dimensionality of produced vectors.
	Dimension() int
}

// RangeFilter restricts index matches to records whose numeric metadata
// field lies within [GTE, LTE], inclusive on both ends.
type RangeFilter struct {
	Field string
	GTE   float64
	LTE   float64
}

// VectorRecord is an embedding plus metadata stored in a vector index.
// By convention the record ID is the entry's ISO date string.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Match is a single similarity hit returned by a vector index.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorIndex persists and queries diary embeddings.
// Query returns matches ordered by descending score; filter may be nil.
type VectorIndex interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, filter *RangeFilter, topK int) ([]Match, error)
	Clear(ctx context.Context) error
}

// GenerationParams are the sampling knobs passed to a text backend.
type GenerationParams struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// TextGenerator produces free text from a prompt. The backend may be
// absent at deployment time; callers must treat errors as recoverable.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// DiaryStore is the relational home of raw diary entries and their
// enrichment records.
type DiaryStore interface {
	Save(ctx context.Context, entries []entities.DiaryEntry) error
	GetByDate(ctx context.Context, date string) (*entities.DiaryEntry, error)
	SaveEnrichment(ctx context.Context, e entities.Enrichment) error
	Close() error
}

// Enricher fetches weather and daylight facts for a date and place.
type Enricher interface {
	Enrich(ctx context.Context, date, place string) (*entities.Enrichment, error)
}

// FileWatcher monitors a directory for dropped diary files.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
