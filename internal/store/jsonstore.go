package store

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// DocumentStore persists whole JSON documents in a data directory, one file
// per document name. Every write replaces the full document; there are no
// partial updates. A single process owns the directory.
type DocumentStore struct {
	dir string
}

// New creates the data directory if needed and returns a store over it.
func New(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &DocumentStore{dir: dir}, nil
}

// Read unmarshals the document stored under name into v and reports whether
// a usable document was found. Missing and corrupt documents both report
// false; neither is an error, the caller starts from fresh state.
func (s *DocumentStore) Read(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

// Write replaces the document stored under name with the JSON encoding of v.
func (s *DocumentStore) Write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
