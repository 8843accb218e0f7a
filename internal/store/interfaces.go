package store

import (
	"context"

	"github.com/ewagner/briefstack/internal/model"
)

// ListResult pairs a page of briefs with the total match count for paging.
type ListResult struct {
	Briefs  []model.BriefWithTags `json:"briefs"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// BriefReader provides read access to briefs.
type BriefReader interface {
	GetBrief(ctx context.Context, owner, id string) (*model.BriefWithTags, error)
	ListBriefs(ctx context.Context, f model.BriefFilter) (*ListResult, error)
	GetPDF(ctx context.Context, owner, id string) (filename string, data []byte, err error)
}

// BriefWriter provides write access to briefs.
type BriefWriter interface {
	CreateBrief(ctx context.Context, brief model.Brief, tags []string) error
	UpdateBrief(ctx context.Context, owner, id string, update model.BriefUpdate) error
	DeleteBrief(ctx context.Context, owner, id string) error
}

// DuplicateFinder provides the cross-owner duplicate lookups.
type DuplicateFinder interface {
	FindDuplicateByFilename(ctx context.Context, filename string) (*model.Brief, error)
	FindDuplicateByHash(ctx context.Context, hash string) (*model.Brief, error)
}

// TagRepository provides tag reads and reconciliation writes.
type TagRepository interface {
	GetTagNames(ctx context.Context, briefID string) ([]string, error)
	ApplyTagChanges(ctx context.Context, briefID string, toAdd, toRemove []string) error
	ListTagsWithCounts(ctx context.Context, owner string) ([]model.TagWithCount, error)
}

// BriefRepository combines all brief-related operations for the API layer.
type BriefRepository interface {
	BriefReader
	BriefWriter
	TagRepository
}
