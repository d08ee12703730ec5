// Package loader turns document files into plain text suitable for
// ingestion. Each loader handles one family of formats; a registry picks
// the loader from the file extension.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Result is the text extracted from one file.
type Result struct {
	Text     string
	Format   string
	Metadata map[string]string
}

// Loader extracts text from a specific document format.
type Loader interface {
	Load(ctx context.Context, path string) (*Result, error)
	SupportedFormats() []string
}

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates a registry with the built-in loaders registered.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	for _, l := range []Loader{&TextLoader{}, &PDFLoader{}, &XLSXLoader{}} {
		for _, f := range l.SupportedFormats() {
			r.loaders[f] = l
		}
	}
	return r
}

// Register adds or replaces the loader for a format.
func (r *Registry) Register(format string, l Loader) {
	r.loaders[strings.ToLower(format)] = l
}

// Get returns the loader for a format.
func (r *Registry) Get(format string) (Loader, error) {
	l, ok := r.loaders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no loader for format: %s", format)
	}
	return l, nil
}

// Load resolves the loader from the file extension and runs it.
func (r *Registry) Load(ctx context.Context, path string) (*Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot determine format of %s", path)
	}
	l, err := r.Get(ext)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, path)
}
