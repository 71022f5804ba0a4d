package extract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FileExtractor reads local text, markdown, and HTML files.
type FileExtractor struct{}

// NewFileExtractor creates a FileExtractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract reads the file at target. HTML files go through the same
// extraction as fetched pages; everything else is treated as plain text.
func (f *FileExtractor) Extract(_ context.Context, target string) (*Extraction, error) {
	raw, err := os.ReadFile(target)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", target)
	}

	var ex *Extraction
	switch strings.ToLower(filepath.Ext(target)) {
	case ".html", ".htm":
		ex, err = FromHTML(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
	default:
		text := string(raw)
		ex = &Extraction{
			Text:      text,
			Title:     firstHeading(text),
			WordCount: countWords(text),
		}
	}

	if strings.TrimSpace(ex.Text) == "" {
		return nil, &ExtractionError{Target: target, Reason: "file is empty or contains no extractable text"}
	}
	if ex.Title == "" {
		ex.Title = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	}
	return ex, nil
}

// firstHeading returns the first markdown H1 text, if the file opens with one.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
		return ""
	}
	return ""
}
