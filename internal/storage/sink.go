package storage

import (
	"fmt"
	"path/filepath"
	"time"
)

// Output formats understood by OpenSink
const (
	FormatText   = "txt"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// Sink receives the text of every stored page, keyed by URL
type Sink interface {
	Write(url, content string) error
	Close() error
}

// OpenSink creates the content sink for the given output format inside dir
func OpenSink(format, dir, seedURL, runID string, now time.Time) (Sink, error) {
	path := filepath.Join(dir, ContentFileName(seedURL, format, now))

	switch format {
	case FormatText:
		return NewTextSink(path)
	case FormatXLSX:
		return NewXLSXSink(path), nil
	case FormatSQLite:
		return NewStorage(path, runID)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
