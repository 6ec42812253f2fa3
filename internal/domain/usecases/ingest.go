package usecases

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

// IngestUseCase writes diary entries into the relational store and the
// vector index. The vector record id is the entry's ISO date: the
// retriever relies on that convention when a stored timestamp cannot be
// parsed back into a date.
type IngestUseCase struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
	store    ports.DiaryStore
	enricher ports.Enricher // optional
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// enricher may be nil to disable weather enrichment.
func NewIngestUseCase(embedder ports.EmbeddingService, index ports.VectorIndex, store ports.DiaryStore, enricher ports.Enricher) *IngestUseCase {
	return &IngestUseCase{
		embedder: embedder,
		index:    index,
		store:    store,
		enricher: enricher,
	}
}

// Ingest persists entries and indexes their embeddings. Returns the
// number of entries ingested. Enrichment failures are logged and
// skipped; they never fail the ingest.
func (uc *IngestUseCase) Ingest(ctx context.Context, entries []entities.DiaryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, ErrNoDiaries
	}

	for _, entry := range entries {
		if _, err := time.ParseInLocation(dateLayout, entry.Date, time.UTC); err != nil {
			return 0, fmt.Errorf("parsing entry date %q: %w", entry.Date, err)
		}
		if strings.TrimSpace(entry.Body) == "" {
			return 0, fmt.Errorf("entry %s has an empty body", entry.Date)
		}
	}

	if err := uc.store.Save(ctx, entries); err != nil {
		return 0, fmt.Errorf("saving entries: %w", err)
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Body
	}
	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding entries: %w", err)
	}

	records := make([]ports.VectorRecord, len(entries))
	for i, entry := range entries {
		midnight, _ := time.ParseInLocation(dateLayout, entry.Date, time.UTC)
		records[i] = ports.VectorRecord{
			ID:     entry.Date,
			Vector: embeddings[i],
			Metadata: map[string]any{
				"text":     entry.Body,
				"date":     float64(midnight.Unix()),
				"location": entry.Location,
			},
		}
	}
	if err := uc.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting vectors: %w", err)
	}

	if uc.enricher != nil {
		for _, entry := range entries {
			if entry.Location == "" {
				continue
			}
			enrichment, err := uc.enricher.Enrich(ctx, entry.Date, entry.Location)
			if err != nil {
				log.Printf("[WARN] enrichment failed for %s (%s): %v", entry.Date, entry.Location, err)
				continue
			}
			if err := uc.store.SaveEnrichment(ctx, *enrichment); err != nil {
				log.Printf("[WARN] saving enrichment for %s: %v", entry.Date, err)
			}
		}
	}

	return len(entries), nil
}
