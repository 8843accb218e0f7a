package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJoinsPages(t *testing.T) {
	e := NewExtractor(&StubPageExtractor{Pages: []string{"page one text", "  ", "page two text"}})

	text, err := e.Extract([]byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "page one text\n\npage two text", text)
}

func TestExtractEmptyTextLayer(t *testing.T) {
	e := NewExtractor(&StubPageExtractor{Pages: []string{" ", ""}})

	_, err := e.Extract([]byte("scanned image pdf"))

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.ErrorIs(t, err, ErrEmptyOrUnreadable)
}

func TestExtractBelowMinimumLength(t *testing.T) {
	e := NewExtractor(&StubPageExtractor{Pages: []string{"short"}})

	_, err := e.Extract([]byte("pdf"))
	assert.ErrorIs(t, err, ErrEmptyOrUnreadable)
}

func TestExtractWrapsReaderErrors(t *testing.T) {
	cause := errors.New("malformed xref table")
	e := NewExtractor(&StubPageExtractor{Err: cause})

	_, err := e.Extract([]byte("corrupt"))

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.ErrorIs(t, err, cause)
}
