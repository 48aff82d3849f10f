package storage

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// TextSink appends each page to a single growing text file, wrapped in
// START/END delimiters
type TextSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewTextSink opens (or creates) path for appending
func NewTextSink(path string) (*TextSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open content file: %w", err)
	}
	return &TextSink{file: file}, nil
}

// Write appends one delimited page block
func (t *TextSink) Write(url, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	upper := strings.ToUpper(url)
	block := fmt.Sprintf("\n####### START %s #######\n\n%s\n\n####### END %s #######\n\n", upper, content, upper)
	if _, err := t.file.WriteString(block); err != nil {
		return fmt.Errorf("failed to append page %s: %w", url, err)
	}
	return nil
}

// Close closes the underlying file
func (t *TextSink) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
