package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mizuki-h/diaryrag/internal/adapters/diarystore"
	"github.com/mizuki-h/diaryrag/internal/adapters/embedding"
	"github.com/mizuki-h/diaryrag/internal/adapters/enrich"
	"github.com/mizuki-h/diaryrag/internal/adapters/filewatcher"
	"github.com/mizuki-h/diaryrag/internal/adapters/llm"
	"github.com/mizuki-h/diaryrag/internal/adapters/loader"
	"github.com/mizuki-h/diaryrag/internal/adapters/vectordb"
	"github.com/mizuki-h/diaryrag/internal/config"
	"github.com/mizuki-h/diaryrag/internal/domain/entities"
	"github.com/mizuki-h/diaryrag/internal/domain/ports"
	"github.com/mizuki-h/diaryrag/internal/domain/usecases"
	httpserver "github.com/mizuki-h/diaryrag/internal/infrastructure/http"
)

func main() {
	// .env holds API keys; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "diaryrag",
		Short: "Diary interpolation service: retrieves past entries and generates plausible passages",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newIngestCmd(&configPath))
	root.AddCommand(newInterpolateCmd(&configPath))
	return root
}

// app bundles the wired pipeline for the commands.
type app struct {
	cfg          *config.AppConfig
	store        *diarystore.SQLiteStore
	orchestrator *usecases.Orchestrator
	ingest       *usecases.IngestUseCase
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp wires adapters into usecases from the config file.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	index, err := buildVectorIndex(cfg, embedder.Dimension())
	if err != nil {
		return nil, err
	}

	store, err := diarystore.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening diary store: %w", err)
	}

	var backend ports.TextGenerator
	if cfg.Generation.Type == "ollama" {
		backend = llm.NewOllamaAdapter(cfg.Generation.BaseURL, cfg.Generation.Model)
	}

	generator, err := usecases.NewGenerator(backend, cfg.PromptsDir, ports.GenerationParams{
		MaxNewTokens: cfg.Generation.MaxNewTokens,
		Temperature:  cfg.Generation.Temperature,
		TopP:         cfg.Generation.TopP,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("constructing generator: %w", err)
	}

	var enricher ports.Enricher
	if cfg.Ingest.Enrich {
		enricher = enrich.NewOpenMeteoEnricher()
	}

	retriever := usecases.NewRetriever(embedder, index, cfg.Retriever.TopK, cfg.Retriever.DayWindow)

	return &app{
		cfg:          cfg,
		store:        store,
		orchestrator: usecases.NewOrchestrator(retriever, generator),
		ingest:       usecases.NewIngestUseCase(embedder, index, store, enricher),
	}, nil
}

func buildEmbedder(cfg *config.AppConfig) (ports.EmbeddingService, error) {
	switch cfg.Embedder.Type {
	case "ollama":
		c := cfg.Embedder.Ollama
		return embedding.NewOllamaAdapter(c.BaseURL, c.Model, c.Dimension), nil
	case "openai":
		c := cfg.Embedder.OpenAI
		if c == nil {
			return nil, fmt.Errorf("embedder type openai requires an openai config block")
		}
		return embedding.NewOpenAIAdapter(embedding.OpenAIConfig{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Dimension: c.Dimension,
			Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}
}

func buildVectorIndex(cfg *config.AppConfig, dimension int) (ports.VectorIndex, error) {
	switch cfg.VectorIndex.Type {
	case "memory":
		return vectordb.NewInMemoryIndex(), nil
	case "sqlite":
		return vectordb.NewSQLiteIndex(cfg.VectorIndex.DataPath)
	case "qdrant":
		c := cfg.VectorIndex.Qdrant
		if c == nil {
			return nil, fmt.Errorf("vector index type qdrant requires a qdrant config block")
		}
		idx := vectordb.NewQdrantIndex(vectordb.QdrantConfig{
			URL:        c.URL,
			APIKey:     os.Getenv(c.APIKeyEnv),
			Collection: c.Collection,
			Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
		})
		if err := idx.Init(context.Background(), dimension); err != nil {
			return nil, fmt.Errorf("initializing qdrant collection: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector index type %q", cfg.VectorIndex.Type)
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Ingest.WatchDir != "" {
				go watchDiaryDir(ctx, a, a.cfg.Ingest.WatchDir)
			}

			server := httpserver.NewServer(a.orchestrator, a.ingest, a.store, a.cfg.Server.Addr)
			if err := server.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// watchDiaryDir ingests diary files dropped into dir while the server runs.
func watchDiaryDir(ctx context.Context, a *app, dir string) {
	fileLoader := loader.NewDiaryFileLoader()
	watcher, err := filewatcher.NewFSNotifyWatcher(fileLoader.SupportedExtensions())
	if err != nil {
		log.Printf("[ERROR] starting file watcher: %v", err)
		return
	}
	defer watcher.Stop()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		log.Printf("[ERROR] watching %s: %v", dir, err)
		return
	}
	log.Printf("[INFO] watching %s for diary files", dir)

	for event := range events {
		if event.Operation == ports.FileDeleted {
			continue
		}
		entries, err := fileLoader.Load(event.Path)
		if err != nil {
			log.Printf("[WARN] loading %s: %v", event.Path, err)
			continue
		}
		count, err := a.ingest.Ingest(ctx, entries)
		if err != nil {
			log.Printf("[WARN] ingesting %s: %v", event.Path, err)
			continue
		}
		log.Printf("[INFO] ingested %d entries from %s", count, event.Path)
	}
}

func newIngestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest diary entry files into the store and vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			fileLoader := loader.NewDiaryFileLoader()
			total := 0
			for _, path := range args {
				entries, err := fileLoader.Load(path)
				if err != nil {
					return err
				}
				count, err := a.ingest.Ingest(cmd.Context(), entries)
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
				total += count
			}
			fmt.Printf("ingested %d entries\n", total)
			return nil
		},
	}
}

func newInterpolateCmd(configPath *string) *cobra.Command {
	var hint string

	cmd := &cobra.Command{
		Use:   "interpolate <date>",
		Short: "Generate an interpolated diary passage for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			resp := a.orchestrator.Interpolate(cmd.Context(), entities.InterpolationRequest{
				Date: args[0],
				Hint: hint,
			})

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "optional hint about the day")
	return cmd
}
