package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/ewagner/briefstack/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

func testBrief(owner, title string) model.Brief {
	return model.NewBrief(uuid.New().String(), owner, title,
		"Author (2026). "+title+".",
		"• a finding",
		"source text long enough to be plausible for a stored brief record",
		model.SourceText)
}

func TestCreateAndGetBrief(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "First Brief")
	if err := s.CreateBrief(ctx, brief, []string{"ml", "papers"}); err != nil {
		t.Fatalf("create brief: %v", err)
	}

	got, err := s.GetBrief(ctx, "alice", brief.ID)
	if err != nil {
		t.Fatalf("get brief: %v", err)
	}
	if got.Title != "First Brief" {
		t.Errorf("title = %q, want %q", got.Title, "First Brief")
	}
	if got.Summary != "• a finding" {
		t.Errorf("summary = %q", got.Summary)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "ml" || got.Tags[1] != "papers" {
		t.Errorf("tags = %v, want [ml papers]", got.Tags)
	}
}

func TestGetBriefOwnerScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "Private")
	if err := s.CreateBrief(ctx, brief, nil); err != nil {
		t.Fatalf("create brief: %v", err)
	}

	if _, err := s.GetBrief(ctx, "bob", brief.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get as other owner: err = %v, want ErrNotFound", err)
	}
}

func TestListBriefsFilterAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testBrief("alice", "Deep Learning Survey")
	b := testBrief("alice", "Databases in Practice")
	c := testBrief("bob", "Unrelated")
	if err := s.CreateBrief(ctx, a, []string{"ml"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBrief(ctx, b, []string{"db"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBrief(ctx, c, nil); err != nil {
		t.Fatal(err)
	}

	// Owner scoping.
	res, err := s.ListBriefs(ctx, model.BriefFilter{Owner: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 2 || len(res.Briefs) != 2 {
		t.Fatalf("total = %d, briefs = %d, want 2/2", res.Total, len(res.Briefs))
	}

	// Tag filter.
	res, err = s.ListBriefs(ctx, model.BriefFilter{Owner: "alice", Tag: "ML"})
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if res.Total != 1 || res.Briefs[0].ID != a.ID {
		t.Errorf("tag filter returned %d results", res.Total)
	}

	// Text search over title.
	res, err = s.ListBriefs(ctx, model.BriefFilter{Owner: "alice", Query: "Databases"})
	if err != nil {
		t.Fatalf("list by query: %v", err)
	}
	if res.Total != 1 || res.Briefs[0].ID != b.ID {
		t.Errorf("query filter returned %d results", res.Total)
	}

	// Paging: one per page, total still reports both.
	res, err = s.ListBriefs(ctx, model.BriefFilter{Owner: "alice", Page: 1, PerPage: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if res.Total != 2 || len(res.Briefs) != 1 {
		t.Errorf("page 1: total = %d, briefs = %d, want 2/1", res.Total, len(res.Briefs))
	}
}

func TestUpdateBrief(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "Old Title")
	if err := s.CreateBrief(ctx, brief, nil); err != nil {
		t.Fatal(err)
	}

	newTitle := "New Title"
	if err := s.UpdateBrief(ctx, "alice", brief.ID, model.BriefUpdate{Title: &newTitle}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetBrief(ctx, "alice", brief.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New Title" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Citation != brief.Citation {
		t.Errorf("citation changed unexpectedly: %q", got.Citation)
	}
	if got.UpdatedAt < got.CreatedAt {
		t.Errorf("updated_at %q before created_at %q", got.UpdatedAt, got.CreatedAt)
	}

	if err := s.UpdateBrief(ctx, "alice", "missing-id", model.BriefUpdate{Title: &newTitle}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBrief(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "Doomed")
	if err := s.CreateBrief(ctx, brief, []string{"tmp"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteBrief(ctx, "alice", brief.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetBrief(ctx, "alice", brief.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
	names, err := s.GetTagNames(ctx, brief.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("tag links survived delete: %v", names)
	}

	if err := s.DeleteBrief(ctx, "alice", brief.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateLookupsAreCrossOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "Shared Report")
	brief.SourceType = model.SourcePDF
	name := "annual-report.pdf"
	hash := "deadbeef"
	brief.PDFFilename = &name
	brief.ContentHash = &hash
	brief.PDFData = []byte("%PDF-1.4 fake")
	if err := s.CreateBrief(ctx, brief, nil); err != nil {
		t.Fatal(err)
	}

	byName, err := s.FindDuplicateByFilename(ctx, "annual-report.pdf")
	if err != nil {
		t.Fatalf("find by filename: %v", err)
	}
	if byName == nil || byName.ID != brief.ID {
		t.Errorf("find by filename = %v", byName)
	}

	byHash, err := s.FindDuplicateByHash(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("find by hash: %v", err)
	}
	if byHash == nil || byHash.ID != brief.ID {
		t.Errorf("find by hash = %v", byHash)
	}

	none, err := s.FindDuplicateByFilename(ctx, "never-seen.pdf")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for unknown filename, got %v", none)
	}
}

func TestApplyTagChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "Tagged")
	if err := s.CreateBrief(ctx, brief, []string{"go", "db"}); err != nil {
		t.Fatal(err)
	}

	if err := s.ApplyTagChanges(ctx, brief.ID, []string{"web"}, []string{"db"}); err != nil {
		t.Fatalf("apply tag changes: %v", err)
	}

	names, err := s.GetTagNames(ctx, brief.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "go" || names[1] != "web" {
		t.Errorf("tags = %v, want [go web]", names)
	}
}

func TestListTagsWithCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testBrief("alice", "A")
	b := testBrief("alice", "B")
	other := testBrief("bob", "Other")
	if err := s.CreateBrief(ctx, a, []string{"ml", "papers"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBrief(ctx, b, []string{"ml"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBrief(ctx, other, []string{"ml", "bob-only"}); err != nil {
		t.Fatal(err)
	}

	tags, err := s.ListTagsWithCounts(ctx, "alice")
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want 2 entries", tags)
	}
	if tags[0].Name != "ml" || tags[0].Count != 2 {
		t.Errorf("first tag = %+v, want ml/2", tags[0])
	}
	if tags[1].Name != "papers" || tags[1].Count != 1 {
		t.Errorf("second tag = %+v, want papers/1", tags[1])
	}
}

func TestGetPDF(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brief := testBrief("alice", "With Document")
	name := "doc.pdf"
	brief.PDFFilename = &name
	brief.PDFData = []byte("%PDF-1.4 payload")
	if err := s.CreateBrief(ctx, brief, nil); err != nil {
		t.Fatal(err)
	}

	filename, data, err := s.GetPDF(ctx, "alice", brief.ID)
	if err != nil {
		t.Fatalf("get pdf: %v", err)
	}
	if filename != "doc.pdf" || string(data) != "%PDF-1.4 payload" {
		t.Errorf("got %q / %q", filename, data)
	}

	// A text-sourced brief has no document to download.
	textBrief := testBrief("alice", "No Document")
	if err := s.CreateBrief(ctx, textBrief, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.GetPDF(ctx, "alice", textBrief.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get pdf without blob: err = %v, want ErrNotFound", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := New(db); err != nil {
		t.Fatalf("first init: %v", err)
	}
	// Re-running against an up-to-date database must be a no-op.
	if _, err := New(db); err != nil {
		t.Fatalf("second init: %v", err)
	}

	var version int
	if err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, currentSchemaVersion)
	}
}
