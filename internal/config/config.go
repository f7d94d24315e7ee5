// Package config manages global (~/.config/ragdesk/config.toml) and
// per-project (.ragdesk/config.toml) configuration for ragdesk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/ragdesk/ragdesk/internal/adapter"
)

// Config holds the effective settings. The project file is decoded over the
// global one, so only the keys it sets take precedence.
type Config struct {
	Model     string          `toml:"model"`
	Embedder  string          `toml:"embedder"`
	Keys      KeysConfig      `toml:"keys"`
	Models    ModelsConfig    `toml:"models"`
	Ollama    OllamaConfig    `toml:"ollama"`
	Ingest    IngestConfig    `toml:"ingest"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Server    ServerConfig    `toml:"server"`
	Output    OutputConfig    `toml:"output"`
}

type KeysConfig struct {
	Anthropic string `toml:"anthropic,omitempty"`
	OpenAI    string `toml:"openai,omitempty"`
	Gemini    string `toml:"gemini,omitempty"`
}

// ModelsConfig names the completion model per hosted provider. Empty means
// the adapter default.
type ModelsConfig struct {
	Claude string `toml:"claude,omitempty"`
	OpenAI string `toml:"openai,omitempty"`
	Gemini string `toml:"gemini,omitempty"`
}

type OllamaConfig struct {
	Host            string `toml:"host"`
	EmbedModel      string `toml:"embed_model"`
	CompletionModel string `toml:"completion_model"`
}

type IngestConfig struct {
	KnowledgeBase string `toml:"knowledge_base"`
	ChunkSize     int    `toml:"chunk_size"`
	ChunkOverlap  int    `toml:"chunk_overlap"`
	BatchSize     int    `toml:"batch_size"`
}

type RetrievalConfig struct {
	TopK             int     `toml:"top_k"`
	MaxContextTokens int     `toml:"max_context_tokens"`
	MaxAnswerTokens  int     `toml:"max_answer_tokens"`
	Temperature      float64 `toml:"temperature"`
}

type ServerConfig struct {
	Addr          string `toml:"addr"`
	SessionMaxAge int    `toml:"session_max_age_days"`
}

// OutputConfig controls terminal output of ask and chat.
type OutputConfig struct {
	Stream bool `toml:"stream"`
}

// ConfigError reports an invalid or incomplete setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Model:    adapter.ProviderOpenAI,
		Embedder: adapter.ProviderLocal,
		Ollama: OllamaConfig{
			Host:            "http://localhost:11434",
			EmbedModel:      "nomic-embed-text",
			CompletionModel: "llama2",
		},
		Ingest: IngestConfig{
			KnowledgeBase: "knowledge_base",
			ChunkSize:     500,
			ChunkOverlap:  50,
			BatchSize:     32,
		},
		Retrieval: RetrievalConfig{
			TopK:             3,
			MaxContextTokens: 2000,
			MaxAnswerTokens:  1024,
			Temperature:      0.7,
		},
		Server: ServerConfig{
			Addr:          ":5000",
			SessionMaxAge: 30,
		},
		Output: OutputConfig{
			Stream: true,
		},
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragdesk", "config.toml"), nil
}

// ProjectConfigDirPath returns the path to the project's .ragdesk/ directory.
func ProjectConfigDirPath(root string) string {
	return filepath.Join(root, ".ragdesk")
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, ".ragdesk", "config.toml")
}

// ProjectDBPath returns the path to the project's SQLite database
// (sessions, turns and analytics).
func ProjectDBPath(root string) string {
	return filepath.Join(root, ".ragdesk", "ragdesk.db")
}

// ProjectIndexPath returns the path to the persisted vector index.
func ProjectIndexPath(root string) string {
	return filepath.Join(root, ".ragdesk", "index.db")
}

// KnowledgeBasePath resolves the knowledge base directory against root.
func (c Config) KnowledgeBasePath(root string) string {
	if filepath.IsAbs(c.Ingest.KnowledgeBase) {
		return c.Ingest.KnowledgeBase
	}
	return filepath.Join(root, c.Ingest.KnowledgeBase)
}

// Load returns the effective config for a project root: defaults, then the
// global file, then the project file, then the environment (.env included).
// The result is not validated; call Validate before constructing providers.
func Load(root string) (Config, error) {
	cfg := Default()

	if path, err := GlobalConfigPath(); err == nil {
		if err := decodeIfExists(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load global: %w", err)
		}
	}
	if err := decodeIfExists(ProjectConfigPath(root), &cfg); err != nil {
		return cfg, fmt.Errorf("config: load project: %w", err)
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: load .env: %w", err)
	}
	applyEnv(&cfg)

	return cfg, nil
}

func decodeIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func applyEnv(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Model, "MODEL_TYPE")
	set(&cfg.Embedder, "EMBEDDER_TYPE")
	set(&cfg.Keys.Anthropic, "ANTHROPIC_API_KEY")
	set(&cfg.Keys.OpenAI, "OPENAI_API_KEY")
	set(&cfg.Keys.Gemini, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	set(&cfg.Models.Gemini, "GEMINI_MODEL")
	set(&cfg.Ollama.CompletionModel, "OLLAMA_MODEL")
	set(&cfg.Ollama.Host, "OLLAMA_BASE_URL")
	set(&cfg.Server.Addr, "RAGDESK_ADDR")
}

// Validate checks provider selection and credentials. It returns a
// *ConfigError describing the first problem found.
func (c Config) Validate() error {
	switch c.Model {
	case adapter.ProviderClaude, adapter.ProviderOpenAI, adapter.ProviderGemini, adapter.ProviderOllama:
	case adapter.ProviderLocal:
		return &ConfigError{Field: "model", Reason: "the local provider only supports embeddings"}
	default:
		return &ConfigError{Field: "model", Reason: fmt.Sprintf("unknown provider %q", c.Model)}
	}
	if err := c.checkEmbedder(); err != nil {
		return err
	}
	if err := c.checkKey("model", c.Model); err != nil {
		return err
	}
	if err := c.ValidateEmbedding(); err != nil {
		return err
	}
	if c.Retrieval.TopK <= 0 {
		return &ConfigError{Field: "retrieval.top_k", Reason: "must be positive"}
	}
	return nil
}

// ValidateEmbedding checks only what ingesting and searching need: the
// embedding provider, its key and the chunking parameters.
func (c Config) ValidateEmbedding() error {
	if err := c.checkEmbedder(); err != nil {
		return err
	}
	if err := c.checkKey("embedder", c.Embedder); err != nil {
		return err
	}
	if c.Ingest.ChunkSize <= 0 {
		return &ConfigError{Field: "ingest.chunk_size", Reason: "must be positive"}
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return &ConfigError{Field: "ingest.chunk_overlap", Reason: "must be in [0, chunk_size)"}
	}
	return nil
}

func (c Config) checkEmbedder() error {
	switch c.Embedder {
	case adapter.ProviderOpenAI, adapter.ProviderGemini, adapter.ProviderOllama, adapter.ProviderLocal:
		return nil
	case adapter.ProviderClaude:
		return &ConfigError{Field: "embedder", Reason: "claude does not provide embeddings"}
	default:
		return &ConfigError{Field: "embedder", Reason: fmt.Sprintf("unknown provider %q", c.Embedder)}
	}
}

func (c Config) checkKey(field, provider string) error {
	var key, env string
	switch provider {
	case adapter.ProviderClaude:
		key, env = c.Keys.Anthropic, "ANTHROPIC_API_KEY"
	case adapter.ProviderOpenAI:
		key, env = c.Keys.OpenAI, "OPENAI_API_KEY"
	case adapter.ProviderGemini:
		key, env = c.Keys.Gemini, "GOOGLE_API_KEY"
	default:
		return nil
	}
	if key == "" {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("%s requires %s", provider, env)}
	}
	return nil
}

// ModelOptions returns the adapter options for the completion provider.
func (c Config) ModelOptions() adapter.Options {
	return c.ProviderOptions(c.Model)
}

// EmbedderOptions returns the adapter options for the embedding provider.
func (c Config) EmbedderOptions() adapter.Options {
	return c.ProviderOptions(c.Embedder)
}

// ProviderOptions returns the adapter options for any provider.
func (c Config) ProviderOptions(provider string) adapter.Options {
	opts := adapter.Options{Host: c.Ollama.Host, EmbedModel: c.Ollama.EmbedModel}
	switch provider {
	case adapter.ProviderClaude:
		opts.APIKey, opts.Model = c.Keys.Anthropic, c.Models.Claude
	case adapter.ProviderOpenAI:
		opts.APIKey, opts.Model = c.Keys.OpenAI, c.Models.OpenAI
	case adapter.ProviderGemini:
		opts.APIKey, opts.Model = c.Keys.Gemini, c.Models.Gemini
	case adapter.ProviderOllama:
		opts.Model = c.Ollama.CompletionModel
	}
	return opts
}

// SaveProject writes cfg to .ragdesk/config.toml. API keys are left out;
// they belong in the global file, .env or the environment.
func SaveProject(root string, cfg Config) error {
	cfg.Keys = KeysConfig{}

	dir := ProjectConfigDirPath(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir project: %w", err)
	}

	f, err := os.Create(ProjectConfigPath(root))
	if err != nil {
		return fmt.Errorf("config: create project config: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
