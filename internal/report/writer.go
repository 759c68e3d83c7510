package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Theme selects the table style. It is cosmetic.
type Theme string

const (
	ThemeGrid    Theme = "grid"
	ThemeStriped Theme = "striped"
)

// ParseTheme defaults unknown themes to grid.
func ParseTheme(s string) Theme {
	if Theme(strings.ToLower(s)) == ThemeStriped {
		return ThemeStriped
	}
	return ThemeGrid
}

// Document is everything a Writer renders.
type Document struct {
	Title       string
	Location    string
	GeneratedAt time.Time
	Notes       []string
	Table       *Table
	Theme       Theme
	// HighlightLastRow styles the final row, used for TOTAL.
	HighlightLastRow bool
}

// Writer renders a document in one file format.
type Writer interface {
	Write(w io.Writer, doc *Document) error
	Extension() string
	ContentType() string
}

// WriterFor returns the writer for "pdf" or "xlsx".
func WriterFor(format string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "pdf":
		return NewPDFWriter(), nil
	case "xlsx":
		return NewXLSXWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName derives the download name from the title and date, e.g.
// "Summary_Report_2025-03-01.pdf". The same title and day always give the
// same name.
func FileName(title string, day time.Time, ext string) string {
	base := whitespace.ReplaceAllString(strings.TrimSpace(title), "_")
	return fmt.Sprintf("%s_%s.%s", base, day.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

// FileNameFor names doc's file for w.
func FileNameFor(doc *Document, w Writer) string {
	return FileName(doc.Title, doc.GeneratedAt, w.Extension())
}

// Save renders doc into dir under its deterministic name and returns the path.
func Save(dir string, doc *Document, w Writer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, FileNameFor(doc, w))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	if err := w.Write(f, doc); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	return path, nil
}
