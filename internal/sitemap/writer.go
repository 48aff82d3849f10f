package sitemap

import (
	"bytes"
	"fmt"

	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/google/renameio/v2"
)

// Writer rewrites one DOT file on every export. The file is replaced
// atomically, so a reader never sees a half-written graph.
type Writer struct {
	path string
}

// NewWriter creates a Writer targeting path
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the file the writer replaces
func (w *Writer) Path() string {
	return w.path
}

// Export renders snap and swaps it into place
func (w *Writer) Export(snap memory.Snapshot) error {
	var buf bytes.Buffer
	if err := Render(&buf, snap); err != nil {
		return fmt.Errorf("rendering sitemap: %w", err)
	}
	if err := renameio.WriteFile(w.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing sitemap %s: %w", w.path, err)
	}
	return nil
}
