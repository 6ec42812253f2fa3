package usecases

import (
	"context"
	"log"

	"github.com/mizuki-h/diaryrag/internal/domain/entities"
)

// snippetRunes is how much of a passage a citation quotes.
const snippetRunes = 100

// Orchestrator sequences retrieval, context assembly, generation and
// citation construction into a single synchronous pipeline per request.
// It holds no mutable state across requests.
type Orchestrator struct {
	retriever *Retriever
	generator *Generator
}

// NewOrchestrator wires the pipeline stages.
func NewOrchestrator(retriever *Retriever, generator *Generator) *Orchestrator {
	return &Orchestrator{retriever: retriever, generator: generator}
}

// Interpolate runs the pipeline for one request. It never fails: a
// retrieval error degrades to an error-text response with empty
// citations, so callers always receive a well-formed shape.
func (o *Orchestrator) Interpolate(ctx context.Context, req entities.InterpolationRequest) entities.InterpolationResponse {
	passages, err := o.retriever.Search(ctx, req.Date, req.Hint, 0, 0)
	if err != nil {
		log.Printf("[ERROR] retrieval failed for %s: %v", req.Date, err)
		return entities.InterpolationResponse{
			Date:      req.Date,
			Text:      "Error during retrieval: " + err.Error(),
			Citations: []entities.Citation{},
		}
	}

	contextText := BuildContext(ContextItemsFromPassages(passages))
	text := o.generator.GenerateInterpolation(ctx, req.Date, contextText, req.Hint)

	citations := make([]entities.Citation, 0, len(passages))
	for _, p := range passages {
		date := p.Metadata.Date
		if date == "" {
			date = req.Date
		}
		citations = append(citations, entities.Citation{
			Snippet: snippet(p.Text),
			Date:    date,
		})
	}

	return entities.InterpolationResponse{
		Date:      req.Date,
		Text:      text,
		Citations: citations,
	}
}

// snippet quotes the first 100 runes of a passage plus an ellipsis marker.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetRunes {
		runes = runes[:snippetRunes]
	}
	return string(runes) + "..."
}
