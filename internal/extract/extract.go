// Package extract turns scan targets (URLs and local files) into clean
// article text ready for pattern detection.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// minExtractWords is the floor below which a page is considered to have no
// readable article body (JavaScript-rendered, paywalled, or empty).
const minExtractWords = 20

// Extraction is the clean text pulled out of one target.
type Extraction struct {
	Title         string
	Text          string
	PublishedDate *time.Time
	WordCount     int
}

// Extractor resolves a target into clean text.
type Extractor interface {
	Extract(ctx context.Context, target string) (*Extraction, error)
}

// FetchError reports a failed HTTP fetch. StatusCode is zero for
// network-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a page that fetched fine but yielded no usable
// article text. It is always permanent.
type ExtractionError struct {
	Target string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Target, e.Reason)
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
