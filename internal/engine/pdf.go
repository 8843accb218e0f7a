package engine

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFPageExtractor extracts per-page plain text using ledongthuc/pdf.
type PDFPageExtractor struct{}

// ExtractPages reads every page's text layer. Pages that fail individually
// (broken fonts, no text content) are skipped rather than failing the whole
// document. The pdf package panics on some malformed inputs, so the panic is
// converted to an error here at the collaborator boundary.
func (PDFPageExtractor) ExtractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
