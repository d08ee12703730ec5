package loader

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextLoader handles plain text and markdown files.
type TextLoader struct{}

func (l *TextLoader) SupportedFormats() []string { return []string{"txt", "md", "markdown"} }

func (l *TextLoader) Load(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return &Result{
		Text:   strings.TrimSpace(string(data)),
		Format: "text",
	}, nil
}
