package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreMatcher wraps a gitignore pattern matcher.
type ignoreMatcher struct {
	gi *gitignore.GitIgnore
}

// newIgnoreMatcher loads .gitignore from dir. Without one, nothing is ignored.
func newIgnoreMatcher(dir string) *ignoreMatcher {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return &ignoreMatcher{}
	}
	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return &ignoreMatcher{}
	}
	return &ignoreMatcher{gi: gi}
}

func (m *ignoreMatcher) match(name string) bool {
	if m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(name)
}

// LoadDirectory reads every *.txt file directly inside dir, in name order.
// Source is the file name and Category the name without ".txt".
func LoadDirectory(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read knowledge base: %w", err)
	}

	ignore := newIgnoreMatcher(dir)

	var docs []Document
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") || ignore.match(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("ingest: read %s: %w", name, err)
		}
		docs = append(docs, Document{
			Text:     string(data),
			Source:   name,
			Category: strings.TrimSuffix(name, ".txt"),
		})
	}
	return docs, nil
}
