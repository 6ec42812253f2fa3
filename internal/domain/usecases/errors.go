package usecases

import "errors"

var (
	// ErrRetrieverUnavailable indicates the embedding service or vector
	// index was never wired in; retrieval cannot run at all.
	ErrRetrieverUnavailable = errors.New("retriever is not properly initialized")

	// ErrGeneratorUnavailable indicates no text-generation backend is
	// configured. Recoverable: callers switch to the fallback synthesizer.
	ErrGeneratorUnavailable = errors.New("text generation backend unavailable")

	// ErrNoDiaries indicates an ingest call carried no entries.
	ErrNoDiaries = errors.New("no diaries provided to ingest")
)
