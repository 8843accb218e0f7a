package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ewagner/briefstack/internal/logger"
	"github.com/ewagner/briefstack/internal/model"
)

// Fingerprint computes the content digest used for duplicate detection.
// Deterministic over the raw bytes; not a security boundary.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DuplicateMatch is the result of a duplicate check.
type DuplicateMatch struct {
	IsDuplicate bool
	Existing    *model.Brief
	Reason      string
}

// DuplicateChecker checks an uploaded document against existing records by
// filename first, then by content fingerprint. Both checks are global across
// owners. Internal store faults fail open: an upload is never blocked by a
// broken dedup lookup.
type DuplicateChecker struct {
	store DuplicateStore
	log   *logger.Logger
}

// NewDuplicateChecker creates a DuplicateChecker.
func NewDuplicateChecker(store DuplicateStore, log *logger.Logger) *DuplicateChecker {
	return &DuplicateChecker{store: store, log: log}
}

// Check reports whether filename or content matches an existing record.
// The reason string names which signal matched so callers can report precisely.
func (c *DuplicateChecker) Check(ctx context.Context, filename string, data []byte) DuplicateMatch {
	if filename != "" {
		existing, err := c.store.FindDuplicateByFilename(ctx, filename)
		if err != nil {
			c.log.Warn("duplicate check by filename failed, continuing", "filename", filename, "error", err)
		} else if existing != nil {
			return DuplicateMatch{
				IsDuplicate: true,
				Existing:    existing,
				Reason:      fmt.Sprintf("duplicate filename: %q", filename),
			}
		}
	}

	hash := Fingerprint(data)
	existing, err := c.store.FindDuplicateByHash(ctx, hash)
	if err != nil {
		c.log.Warn("duplicate check by content hash failed, continuing", "filename", filename, "error", err)
		return DuplicateMatch{}
	}
	if existing != nil {
		return DuplicateMatch{
			IsDuplicate: true,
			Existing:    existing,
			Reason:      "duplicate content (hash match)",
		}
	}
	return DuplicateMatch{}
}
