package model

import "time"

// Source type constants
const (
	SourcePDF    = "pdf"
	SourceText   = "text"
	SourceManual = "manual"
)

// Field length limits enforced before persistence. Exceeding them is a
// validation error, never a silent truncation.
const (
	MaxTitleLen    = 500
	MaxCitationLen = 1000
)

// MinSourceTextLen is the minimum source text length accepted by the
// generation pipeline.
const MinSourceTextLen = 50

// Brief represents a generated or manually entered research brief.
type Brief struct {
	ID          string  `json:"id"`
	Owner       string  `json:"owner"`
	Title       string  `json:"title"`
	Citation    string  `json:"citation"`
	Summary     string  `json:"summary"`
	SourceText  string  `json:"source_text"`
	SourceType  string  `json:"source_type"`
	URL         *string `json:"url,omitempty"`
	PDFFilename *string `json:"pdf_filename,omitempty"`
	PDFData     []byte  `json:"-"`
	ContentHash *string `json:"content_hash,omitempty"`
	// ModelName records the model that generated the brief, or a free-text
	// source label for manual entries (e.g. "ChatGPT").
	ModelName *string `json:"model_name,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// BriefWithTags is a Brief together with its tag names.
type BriefWithTags struct {
	Brief
	Tags []string `json:"tags"`
}

// BriefUpdate carries the editable fields of a brief. Nil fields are left
// unchanged.
type BriefUpdate struct {
	Title    *string `json:"title,omitempty"`
	Citation *string `json:"citation,omitempty"`
	Summary  *string `json:"summary,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// BriefFilter holds query parameters for listing briefs.
type BriefFilter struct {
	Owner   string
	Tag     string
	Query   string
	Page    int
	PerPage int
}

// NewBrief creates a new Brief with timestamps set.
func NewBrief(id, owner, title, citation, summary, sourceText, sourceType string) Brief {
	now := time.Now().UTC().Format(time.RFC3339)
	return Brief{
		ID:         id,
		Owner:      owner,
		Title:      title,
		Citation:   citation,
		Summary:    summary,
		SourceText: sourceText,
		SourceType: sourceType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
