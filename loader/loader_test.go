package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestTextLoader(t *testing.T) {
	path := writeFile(t, "note.txt", "  hello world\n")

	result, err := NewRegistry().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("text: %q", result.Text)
	}
	if result.Format != "text" {
		t.Errorf("format: %q", result.Format)
	}
}

func TestMarkdownResolvesToTextLoader(t *testing.T) {
	path := writeFile(t, "README.md", "# Title\n\nbody")

	result, err := NewRegistry().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(result.Text, "# Title") {
		t.Errorf("markdown must pass through untouched, got %q", result.Text)
	}
}

func TestUnknownFormat(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Load(context.Background(), "slides.pptx"); err == nil {
		t.Error("expected error for unregistered format")
	}
	if _, err := r.Load(context.Background(), "noextension"); err == nil {
		t.Error("expected error for missing extension")
	}
}

func TestRegisterOverride(t *testing.T) {
	r := NewRegistry()
	r.Register("TXT", &TextLoader{})
	if _, err := r.Get("txt"); err != nil {
		t.Errorf("extension lookup must be case-insensitive: %v", err)
	}
}

func TestSupportedFormats(t *testing.T) {
	r := NewRegistry()
	for _, f := range []string{"txt", "md", "pdf", "xlsx"} {
		if _, err := r.Get(f); err != nil {
			t.Errorf("format %s must be registered: %v", f, err)
		}
	}
}
