package engine

import (
	"strings"
)

// minExtractedLen is the minimum concatenated text length to accept an
// extraction. Shorter output means an image-only scan with no text layer.
const minExtractedLen = 10

// Extractor turns uploaded document bytes into plain text via the
// page-extraction collaborator. All failures become *ExtractionError.
type Extractor struct {
	pages PageExtractor
}

// NewExtractor creates an Extractor over the given page extractor.
func NewExtractor(pages PageExtractor) *Extractor {
	return &Extractor{pages: pages}
}

// Extract concatenates per-page text with a blank-line separator.
// Returns *ExtractionError wrapping ErrEmptyOrUnreadable when the result is
// empty or shorter than minExtractedLen characters.
func (e *Extractor) Extract(data []byte) (string, error) {
	pages, err := e.pages.ExtractPages(data)
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	text := strings.Join(parts, "\n\n")

	if len(strings.TrimSpace(text)) < minExtractedLen {
		return "", &ExtractionError{Err: ErrEmptyOrUnreadable}
	}
	return text, nil
}
