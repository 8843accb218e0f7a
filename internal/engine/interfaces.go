package engine

import (
	"context"

	"github.com/ewagner/briefstack/internal/model"
)

// ModelClient abstracts the generative model collaborator. Implementations
// own their model-specific parameter quirks; callers only see prompt in,
// raw response text out.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// ModelName reports the model identifier recorded on generated briefs.
	ModelName() string
}

// PageExtractor abstracts the PDF text-extraction collaborator: given binary
// document bytes, returns extracted plain text per page, or fails.
type PageExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

// URLFetcher abstracts readable-text extraction from a web page.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BriefStore is the persistence surface the pipeline writes through.
// CreateBrief is atomic: on failure nothing is persisted, including tags.
type BriefStore interface {
	CreateBrief(ctx context.Context, brief model.Brief, tags []string) error
}

// DuplicateStore provides the global duplicate lookups. Both checks span all
// owners: the same institutional document uploaded by different users is
// still flagged.
type DuplicateStore interface {
	FindDuplicateByFilename(ctx context.Context, filename string) (*model.Brief, error)
	FindDuplicateByHash(ctx context.Context, hash string) (*model.Brief, error)
}

// TagStore provides tag reads and reconciliation writes for a brief.
type TagStore interface {
	GetTagNames(ctx context.Context, briefID string) ([]string, error)
	ApplyTagChanges(ctx context.Context, briefID string, toAdd, toRemove []string) error
}
