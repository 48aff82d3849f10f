package storage

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// XLSXSink buffers pages and writes a two-column (url, content) workbook on Close
type XLSXSink struct {
	mu    sync.Mutex
	path  string
	pages []Page
}

// NewXLSXSink creates a sink that will write its workbook to path
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

// Write buffers a page until Close
func (x *XLSXSink) Write(url, content string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pages = append(x.pages, Page{URL: url, Content: content})
	return nil
}

// Close writes the workbook with the pages in write order
func (x *XLSXSink) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return WriteWorkbook(x.path, x.pages)
}

// WriteWorkbook writes a header row and then one (url, content) row per page
func WriteWorkbook(path string, pages []Page) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &[]any{"url", "content"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, page := range pages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &[]any{page.URL, page.Content}); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", page.URL, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
