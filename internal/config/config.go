// Package config loads the application configuration from YAML with a
// defaults cascade. Secrets (API keys) stay in the environment.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// OllamaEmbedderConfig configures the Ollama embeddings adapter.
type OllamaEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// OpenAIEmbedderConfig configures the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"` // "ollama" or "openai"
	Ollama *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorIndexConfig selects and configures the vector index implementation.
type VectorIndexConfig struct {
	Type     string        `yaml:"type"` // "memory", "sqlite" or "qdrant"
	DataPath string        `yaml:"data_path"`
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty"`
}

// GenerationConfig configures the text-generation backend and its
// sampling parameters. Type "none" disables the backend entirely; the
// deterministic fallback then serves every request.
type GenerationConfig struct {
	Type         string  `yaml:"type"` // "ollama" or "none"
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	MaxNewTokens int     `yaml:"max_new_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
}

// RetrieverConfig holds the search parameters shared with ingestion.
type RetrieverConfig struct {
	TopK      int `yaml:"top_k"`
	DayWindow int `yaml:"day_window"`
}

// IngestConfig configures the ingestion side.
type IngestConfig struct {
	WatchDir string `yaml:"watch_dir"` // empty disables the watcher
	Enrich   bool   `yaml:"enrich"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	StorePath   string            `yaml:"store_path"`
	PromptsDir  string            `yaml:"prompts_dir"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Generation  GenerationConfig  `yaml:"generation"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// Load reads a config from the given path. A missing file yields the
// defaults rather than an error.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./data/diary_enriched.sqlite"
	}
	if cfg.PromptsDir == "" {
		cfg.PromptsDir = "./prompts"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "ollama"
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.BaseURL == "" {
			cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.Dimension == 0 {
			cfg.Embedder.Ollama.Dimension = 768
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.Dimension == 0 {
			cfg.Embedder.OpenAI.Dimension = 1536
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = "sqlite"
	}
	if cfg.VectorIndex.DataPath == "" {
		cfg.VectorIndex.DataPath = "./data"
	}
	if cfg.VectorIndex.Type == "qdrant" && cfg.VectorIndex.Qdrant != nil {
		if cfg.VectorIndex.Qdrant.Collection == "" {
			cfg.VectorIndex.Qdrant.Collection = "diary-rag-index"
		}
		if cfg.VectorIndex.Qdrant.APIKeyEnv == "" {
			cfg.VectorIndex.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.VectorIndex.Qdrant.TimeoutSecs == 0 {
			cfg.VectorIndex.Qdrant.TimeoutSecs = 15
		}
	}

	if cfg.Generation.Type == "" {
		cfg.Generation.Type = "ollama"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "http://localhost:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3.2"
	}
	if cfg.Generation.MaxNewTokens == 0 {
		cfg.Generation.MaxNewTokens = 320
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.7
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.9
	}

	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 6
	}
	if cfg.Retriever.DayWindow == 0 {
		cfg.Retriever.DayWindow = 3
	}
}
