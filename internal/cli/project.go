package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/config"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/ingest"
	"github.com/ragdesk/ragdesk/internal/prompt"
	"github.com/ragdesk/ragdesk/internal/rag"
)

// project is a resolved project root with its effective configuration.
type project struct {
	root string
	cfg  config.Config
}

// findRoot returns --dir when given, else the nearest directory at or above
// the working directory that holds .ragdesk/, else the working directory.
func findRoot() (string, error) {
	if projectDir != "" {
		return filepath.Abs(projectDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	dir, _ := filepath.Abs(cwd)
	for {
		if info, err := os.Stat(config.ProjectConfigDirPath(dir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// loadProject resolves the root and loads its config. full selects
// Validate over the embedding-only ValidateEmbedding.
func loadProject(full bool) (*project, error) {
	root, err := findRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if full {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateEmbedding()
	}
	if err != nil {
		return nil, err
	}
	return &project{root: root, cfg: cfg}, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (p *project) embedder() (adapter.LLMAdapter, error) {
	return adapter.New(p.cfg.Embedder, p.cfg.EmbedderOptions())
}

func (p *project) llm() (adapter.LLMAdapter, error) {
	return adapter.New(p.cfg.Model, p.cfg.ModelOptions())
}

// responder wires the completion provider to a token-budgeted formatter.
// When the tokenizer cannot be initialised the context is not budgeted.
func (p *project) responder(llm adapter.LLMAdapter, logger *zap.Logger) *rag.Responder {
	var counter prompt.Counter
	if tok, err := prompt.NewTokenizer(); err == nil {
		counter = tok
	} else {
		logger.Warn("tokenizer unavailable, context will not be budgeted", zap.Error(err))
	}
	formatter := prompt.NewFormatter(counter, p.cfg.Retrieval.MaxContextTokens)
	return rag.NewResponder(llm, formatter, rag.Options{
		TopK:        p.cfg.Retrieval.TopK,
		MaxTokens:   p.cfg.Retrieval.MaxAnswerTokens,
		Temperature: p.cfg.Retrieval.Temperature,
	})
}

func (p *project) openDB() (*db.DB, error) {
	database, err := db.Open(config.ProjectDBPath(p.root))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

func (p *project) indexPath() string {
	return config.ProjectIndexPath(p.root)
}

// loadIndex reads the persisted index, pointing at ingest when none exists
// or when it was built by a different embedder than the configured one.
func (p *project) loadIndex(ctx context.Context, embedder adapter.Embedder) (*index.Index, error) {
	idx, err := index.Load(ctx, p.indexPath(), embedder)
	switch {
	case errors.Is(err, index.ErrNotFound):
		return nil, fmt.Errorf("%w; run `ragdesk ingest` first", err)
	case errors.Is(err, index.ErrEmbedderMismatch):
		return nil, fmt.Errorf("%w; run `ragdesk ingest` to rebuild with embedder %q", err, p.cfg.Embedder)
	}
	return idx, err
}

// ingestStats describes one ingestion pass.
type ingestStats struct {
	Documents int
	Chunks    int
}

// rebuildIndex loads the knowledge base, splits it, embeds every chunk and
// persists the result. The previous index file is replaced only on success.
func (p *project) rebuildIndex(ctx context.Context, embedder adapter.Embedder, progress func(done, total int)) (*index.Index, ingestStats, error) {
	docs, err := ingest.LoadDirectory(p.cfg.KnowledgeBasePath(p.root))
	if err != nil {
		return nil, ingestStats{}, err
	}
	chunks := ingest.NewSplitter(p.cfg.Ingest.ChunkSize, p.cfg.Ingest.ChunkOverlap).SplitAll(docs)
	stats := ingestStats{Documents: len(docs), Chunks: len(chunks)}

	idx, err := index.Build(ctx, embedder, chunks, index.BuildOptions{
		BatchSize: p.cfg.Ingest.BatchSize,
		Progress:  progress,
	})
	if err != nil {
		return nil, stats, err
	}

	if err := os.MkdirAll(config.ProjectConfigDirPath(p.root), 0o755); err != nil {
		return nil, stats, fmt.Errorf("create project directory: %w", err)
	}
	ensureGitignore(p.root)
	if err := idx.Save(ctx, p.indexPath()); err != nil {
		return nil, stats, err
	}
	return idx, stats, nil
}

// ensureGitignore appends .ragdesk/ to .gitignore if not already present.
func ensureGitignore(root string) {
	path := filepath.Join(root, ".gitignore")
	content, err := os.ReadFile(path)
	if err == nil && strings.Contains(string(content), ".ragdesk/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString(".ragdesk/\n")
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
