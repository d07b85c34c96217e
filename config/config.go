package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in the config file.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	IndexMemory = "memory"
	IndexSQLite = "sqlite"
	IndexChroma = "chroma"

	PDFLangchain = "langchain"
	PDFUnidoc    = "unidoc"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                int `yaml:"port"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs"`
}

// IndexConfig selects the vector index and the namespace served.
type IndexConfig struct {
	Provider   string `yaml:"provider"`
	Name       string `yaml:"name"`
	Namespace  string `yaml:"namespace"`
	ChromaURL  string `yaml:"chroma_url"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ModelConfig selects and configures one model provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// APIKey reads the key from the environment variable named by APIKeyEnv.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// ChainConfig configures retrieval.
type ChainConfig struct {
	TopK int `yaml:"top_k"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size int `yaml:"size"`
	// Overlap is nil when unset, so an explicit 0 survives defaulting.
	Overlap *int `yaml:"overlap,omitempty"`
}

// OverlapChars returns the configured overlap, or 0 when unset.
func (c ChunkerConfig) OverlapChars() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// RetryConfig bounds every call to an embedding, generation or index
// service.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms"`
	CallTimeoutSecs  int `yaml:"call_timeout_secs"`
}

// InitialBackoff returns the first retry wait.
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the longest retry wait.
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMS) * time.Millisecond
}

// CallTimeout returns the per-attempt deadline.
func (r RetryConfig) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutSecs) * time.Second
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Dir               string  `yaml:"dir"`
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Strict            bool    `yaml:"strict"`
	PDFExtractor      string  `yaml:"pdf_extractor"`
	UnidocLicense     string  `yaml:"unidoc_license,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig  `yaml:"server"`
	Index     IndexConfig   `yaml:"index"`
	Embedder  ModelConfig   `yaml:"embedder"`
	Generator ModelConfig   `yaml:"generator"`
	Chain     ChainConfig   `yaml:"chain"`
	Chunker   ChunkerConfig `yaml:"chunker"`
	Retry     RetryConfig   `yaml:"retry"`
	Ingest    IngestConfig  `yaml:"ingest"`
}

// Load reads .env (when present) and the config at path, then applies
// defaults and environment overrides. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Index:     IndexConfig{Provider: IndexSQLite},
		Embedder:  ModelConfig{Provider: ProviderOpenAI},
		Generator: ModelConfig{Provider: ProviderOpenAI},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = 10
	}

	if cfg.Index.Provider == "" {
		cfg.Index.Provider = IndexSQLite
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "rental-copilot"
	}
	if cfg.Index.Namespace == "" {
		cfg.Index.Namespace = "default"
	}
	if cfg.Index.SQLitePath == "" {
		cfg.Index.SQLitePath = filepath.Join("data", "index.db")
	}

	applyModelDefaults(&cfg.Embedder, true)
	applyModelDefaults(&cfg.Generator, false)

	if cfg.Chain.TopK == 0 {
		cfg.Chain.TopK = 4
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 200
		cfg.Chunker.Overlap = &overlap
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoffMS == 0 {
		cfg.Retry.InitialBackoffMS = 500
	}
	if cfg.Retry.MaxBackoffMS == 0 {
		cfg.Retry.MaxBackoffMS = 5000
	}
	if cfg.Retry.CallTimeoutSecs == 0 {
		cfg.Retry.CallTimeoutSecs = 60
	}

	if cfg.Ingest.Dir == "" {
		cfg.Ingest.Dir = "docs"
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 64
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.PDFExtractor == "" {
		cfg.Ingest.PDFExtractor = PDFLangchain
	}
}

func applyModelDefaults(m *ModelConfig, embedder bool) {
	if m.Provider == "" {
		m.Provider = ProviderOpenAI
	}
	switch m.Provider {
	case ProviderOpenAI:
		if m.APIKeyEnv == "" {
			m.APIKeyEnv = "OPENAI_API_KEY"
		}
		if m.Model == "" {
			m.Model = "gpt-4o-mini"
			if embedder {
				m.Model = "text-embedding-3-small"
			}
		}
	case ProviderGemini:
		if m.APIKeyEnv == "" {
			m.APIKeyEnv = "GEMINI_API_KEY"
		}
		if m.Model == "" {
			m.Model = "gemini-2.5-flash"
			if embedder {
				m.Model = "text-embedding-004"
			}
		}
	case ProviderOllama:
		if m.BaseURL == "" {
			m.BaseURL = "http://localhost:11434"
		}
		if m.Model == "" {
			m.Model = "llama3.2"
			if embedder {
				m.Model = "nomic-embed-text"
			}
		}
	}
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("RAG_INDEX_NAME"); v != "" {
		cfg.Index.Name = v
	}
	if v := os.Getenv("RAG_NAMESPACE"); v != "" {
		cfg.Index.Namespace = v
	}
	if v := os.Getenv("CHROMA_URL"); v != "" {
		cfg.Index.ChromaURL = v
	}
	if v := os.Getenv("UNIDOC_LICENSE_KEY"); v != "" {
		cfg.Ingest.UnidocLicense = v
	}
}

// Validate rejects configurations the application cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Index.Provider {
	case IndexMemory, IndexSQLite, IndexChroma:
	default:
		errs = append(errs, fmt.Errorf("unknown index provider %q", c.Index.Provider))
	}
	for name, m := range map[string]ModelConfig{"embedder": c.Embedder, "generator": c.Generator} {
		switch m.Provider {
		case ProviderOpenAI, ProviderGemini, ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("unknown %s provider %q", name, m.Provider))
		}
	}
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker size must be positive, got %d", c.Chunker.Size))
	}
	if overlap := c.Chunker.OverlapChars(); overlap < 0 || overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker overlap must be in [0, %d), got %d", c.Chunker.Size, overlap))
	}
	if c.Chain.TopK <= 0 {
		errs = append(errs, fmt.Errorf("chain top_k must be positive, got %d", c.Chain.TopK))
	}
	switch c.Ingest.PDFExtractor {
	case PDFLangchain:
	case PDFUnidoc:
		if c.Ingest.UnidocLicense == "" {
			errs = append(errs, errors.New("pdf_extractor unidoc needs a license key (UNIDOC_LICENSE_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pdf extractor %q", c.Ingest.PDFExtractor))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
