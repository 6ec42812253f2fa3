// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
// Handlers are thin glue; all pipeline logic lives in usecases.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mizuki-h/diaryrag/internal/adapters/diarystore"
	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
	"github.com/mizuki-h/diaryrag/internal/domain/usecases"
)

// Server is the HTTP server for the diary interpolation API.
type Server struct {
	orchestrator *usecases.Orchestrator
	ingest       *usecases.IngestUseCase
	store        ports.DiaryStore
	addr         string
}

// NewServer creates a new HTTP server.
func NewServer(orchestrator *usecases.Orchestrator, ingest *usecases.IngestUseCase, store ports.DiaryStore, addr string) *Server {
	return &Server{
		orchestrator: orchestrator,
		ingest:       ingest,
		store:        store,
		addr:         addr,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/interpolate", s.handleInterpolate)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/diary/", s.handleDiary)
	mux.HandleFunc("/api/health", s.handleHealth)
	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	log.Printf("[INFO] diaryrag server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// handleInterpolate runs the retrieval-and-generation pipeline for one
// date. The pipeline itself never fails; only malformed requests get a
// non-200 status.
func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req entities.InterpolationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	resp := s.orchestrator.Interpolate(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// handleIngest writes new diary entries into the store and the index.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req entities.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count, err := s.ingest.Ingest(r.Context(), req.Diaries)
	if err != nil {
		if errors.Is(err, usecases.ErrNoDiaries) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[ERROR] ingest failed: %v", err)
		http.Error(w, "Failed to ingest diaries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entities.IngestResponse{
		Status:        "success",
		IngestedCount: count,
	})
}

// handleDiary returns the raw diary entry for /diary/{date}.
func (s *Server) handleDiary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimPrefix(r.URL.Path, "/diary/")
	if date == "" || strings.Contains(date, "/") {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	entry, err := s.store.GetByDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, diarystore.ErrNotFound) {
			http.Error(w, "Diary not found for the specified date", http.StatusNotFound)
			return
		}
		log.Printf("[ERROR] reading diary for %s: %v", date, err)
		http.Error(w, "Failed to retrieve diary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] encoding response: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
