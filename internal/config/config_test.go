package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME at an empty directory and clears provider env vars so
// the developer's machine cannot leak into the result.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{
		"MODEL_TYPE", "EMBEDDER_TYPE", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"GOOGLE_API_KEY", "GEMINI_API_KEY", "GEMINI_MODEL", "OLLAMA_MODEL",
		"OLLAMA_BASE_URL", "RAGDESK_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Model != "openai" {
		t.Errorf("model: got %q, want %q", cfg.Model, "openai")
	}
	if cfg.Embedder != "local" {
		t.Errorf("embedder: got %q, want %q", cfg.Embedder, "local")
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("chunking: got %d/%d, want 500/50", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("top k: got %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Temperature != 0.7 {
		t.Errorf("temperature: got %f, want 0.7", cfg.Retrieval.Temperature)
	}
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("ollama host: got %q", cfg.Ollama.Host)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if !cfg.Output.Stream {
		t.Error("output should stream by default")
	}
}

func TestProjectPaths(t *testing.T) {
	root := "/home/user/support"
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dir", ProjectConfigDirPath(root), filepath.Join(root, ".ragdesk")},
		{"config", ProjectConfigPath(root), filepath.Join(root, ".ragdesk", "config.toml")},
		{"db", ProjectDBPath(root), filepath.Join(root, ".ragdesk", "ragdesk.db")},
		{"index", ProjectIndexPath(root), filepath.Join(root, ".ragdesk", "index.db")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestKnowledgeBasePath(t *testing.T) {
	cfg := Default()
	if got := cfg.KnowledgeBasePath("/srv"); got != filepath.Join("/srv", "knowledge_base") {
		t.Errorf("relative: got %q", got)
	}
	cfg.Ingest.KnowledgeBase = "/data/kb"
	if got := cfg.KnowledgeBasePath("/srv"); got != "/data/kb" {
		t.Errorf("absolute: got %q", got)
	}
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != Default().Model {
		t.Errorf("expected defaults, got model %q", cfg.Model)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	isolate(t)

	globalPath, err := GlobalConfigPath()
	if err != nil {
		t.Fatalf("GlobalConfigPath: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(globalPath), 0o755); err != nil {
		t.Fatal(err)
	}
	global := "model = \"gemini\"\n[retrieval]\ntop_k = 7\n"
	if err := os.WriteFile(globalPath, []byte(global), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	if err := os.MkdirAll(ProjectConfigDirPath(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProjectConfigPath(root), []byte("model = \"ollama\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "ollama" {
		t.Errorf("model: got %q, want project override %q", cfg.Model, "ollama")
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("top k: got %d, want global value 7", cfg.Retrieval.TopK)
	}
	if cfg.Ingest.ChunkSize != 500 {
		t.Errorf("chunk size: got %d, want default 500", cfg.Ingest.ChunkSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MODEL_TYPE", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gemini" {
		t.Errorf("model: got %q", cfg.Model)
	}
	if cfg.Keys.Gemini != "g-key" {
		t.Errorf("gemini key: got %q", cfg.Keys.Gemini)
	}
	if cfg.Ollama.Host != "http://ollama:11434" {
		t.Errorf("ollama host: got %q", cfg.Ollama.Host)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	os.Unsetenv("OPENAI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keys.OpenAI != "from-dotenv" {
		t.Errorf("openai key: got %q, want value from .env", cfg.Keys.OpenAI)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Keys.OpenAI = "sk-test"

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown model", func(c *Config) { c.Model = "huggingface" }, "model"},
		{"local as model", func(c *Config) { c.Model = "local" }, "model"},
		{"claude as embedder", func(c *Config) { c.Embedder = "claude" }, "embedder"},
		{"unknown embedder", func(c *Config) { c.Embedder = "faiss" }, "embedder"},
		{"missing key", func(c *Config) { c.Keys.OpenAI = "" }, "model"},
		{"gemini embedder without key", func(c *Config) { c.Embedder = "gemini" }, "embedder"},
		{"ollama needs no key", func(c *Config) { c.Model = "ollama"; c.Keys.OpenAI = "" }, ""},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = 500 }, "ingest.chunk_overlap"},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }, "ingest.chunk_size"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("field: got %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Model = "gemini"
	cfg.Keys.Gemini = "g"
	cfg.Models.Gemini = "gemini-pro"
	cfg.Embedder = "ollama"

	m := cfg.ModelOptions()
	if m.APIKey != "g" || m.Model != "gemini-pro" {
		t.Errorf("model options: %+v", m)
	}
	e := cfg.EmbedderOptions()
	if e.Host != "http://localhost:11434" || e.EmbedModel != "nomic-embed-text" {
		t.Errorf("embedder options: %+v", e)
	}
}

func TestSaveProject_RoundTrip(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	cfg := Default()
	cfg.Model = "claude"
	cfg.Ingest.KnowledgeBase = "docs"
	if err := SaveProject(root, cfg); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model != "claude" || loaded.Ingest.KnowledgeBase != "docs" {
		t.Errorf("unexpected config after reload: model=%q kb=%q", loaded.Model, loaded.Ingest.KnowledgeBase)
	}
}

func TestSaveProject_OmitsKeys(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	cfg := Default()
	cfg.Keys.OpenAI = "sk-secret"
	if err := SaveProject(root, cfg); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	data, err := os.ReadFile(ProjectConfigPath(root))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Errorf("API key written to project config:\n%s", data)
	}
	if !strings.Contains(string(data), "stream = true") {
		t.Errorf("output settings missing:\n%s", data)
	}
}

func TestValidateEmbedding_IgnoresCompletionProvider(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateEmbedding(); err != nil {
		t.Fatalf("local embedder without keys: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should still require the openai key")
	}

	cfg.Embedder = "openai"
	var cerr *ConfigError
	if err := cfg.ValidateEmbedding(); !errors.As(err, &cerr) || cerr.Field != "embedder" {
		t.Fatalf("expected embedder key error, got %v", err)
	}
}
