package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ewagner/briefstack/internal/model"
)

// ErrNotFound is returned when a brief does not exist or belongs to another
// owner.
var ErrNotFound = errors.New("not found")

// Verify at compile time that Store implements all interfaces.
var (
	_ BriefReader     = (*Store)(nil)
	_ BriefWriter     = (*Store)(nil)
	_ DuplicateFinder = (*Store)(nil)
	_ TagRepository   = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 3

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
		s.migrateV2, // v1 → v2: add url column for web-sourced briefs
		s.migrateV3, // v2 → v3: add model_name column
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS briefs (
		id           TEXT PRIMARY KEY,
		owner        TEXT NOT NULL,
		title        TEXT NOT NULL,
		citation     TEXT NOT NULL,
		summary      TEXT NOT NULL,
		source_text  TEXT NOT NULL,
		source_type  TEXT NOT NULL,
		pdf_filename TEXT,
		pdf_data     BLOB,
		content_hash TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_briefs_owner ON briefs(owner, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_briefs_filename ON briefs(pdf_filename);
	CREATE INDEX IF NOT EXISTS idx_briefs_hash ON briefs(content_hash);

	CREATE TABLE IF NOT EXISTS tags (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS brief_tags (
		brief_id TEXT NOT NULL REFERENCES briefs(id),
		tag_id   TEXT NOT NULL REFERENCES tags(id),
		PRIMARY KEY (brief_id, tag_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the url column for briefs created from web pages (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`ALTER TABLE briefs ADD COLUMN url TEXT`)
	return err
}

// migrateV3 adds the model_name column (v2 → v3).
func (s *Store) migrateV3() error {
	_, err := s.db.Exec(`ALTER TABLE briefs ADD COLUMN model_name TEXT`)
	return err
}

const briefColumns = `id, owner, title, citation, summary, source_text, source_type, pdf_filename, content_hash, url, model_name, created_at, updated_at`

// ---------------------------------------------------------------------------
// Briefs
// ---------------------------------------------------------------------------

// CreateBrief inserts a brief and links its tags in a single transaction, so a
// failure part-way never leaves an untagged or orphaned record.
func (s *Store) CreateBrief(ctx context.Context, brief model.Brief, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO briefs (id, owner, title, citation, summary, source_text, source_type, pdf_filename, pdf_data, content_hash, url, model_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		brief.ID, brief.Owner, brief.Title, brief.Citation, brief.Summary,
		brief.SourceText, brief.SourceType, brief.PDFFilename, brief.PDFData,
		brief.ContentHash, brief.URL, brief.ModelName, brief.CreatedAt, brief.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert brief: %w", err)
	}

	for _, name := range tags {
		tagID, err := findOrCreateTag(ctx, tx, name)
		if err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO brief_tags (brief_id, tag_id) VALUES (?, ?)`,
			brief.ID, tagID,
		); err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// GetBrief returns one brief with its tags. Source text and summary are
// included; the PDF blob is not.
func (s *Store) GetBrief(ctx context.Context, owner, id string) (*model.BriefWithTags, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+briefColumns+` FROM briefs WHERE id = ? AND owner = ?`, id, owner)
	brief, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tags, err := s.GetTagNames(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.BriefWithTags{Brief: *brief, Tags: tags}, nil
}

// ListBriefs returns one page of an owner's briefs, newest first, with tags
// attached and the total match count for paging. The PDF blob is never
// selected here.
func (s *Store) ListBriefs(ctx context.Context, f model.BriefFilter) (*ListResult, error) {
	conditions := []string{"b.owner = ?"}
	args := []interface{}{f.Owner}

	if f.Tag != "" {
		conditions = append(conditions, `b.id IN (
			SELECT bt.brief_id FROM brief_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE t.name = ?)`)
		args = append(args, strings.ToLower(strings.TrimSpace(f.Tag)))
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		conditions = append(conditions, "(b.title LIKE ? OR b.citation LIKE ? OR b.summary LIKE ?)")
		args = append(args, like, like, like)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM briefs b`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count briefs: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 20
	}

	query := `SELECT ` + prefixColumns("b", briefColumns) + ` FROM briefs b` + where +
		` ORDER BY b.created_at DESC, b.id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	briefs := []model.BriefWithTags{}
	for rows.Next() {
		brief, err := scanBrief(rows)
		if err != nil {
			return nil, err
		}
		briefs = append(briefs, model.BriefWithTags{Brief: *brief})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range briefs {
		tags, err := s.GetTagNames(ctx, briefs[i].ID)
		if err != nil {
			return nil, err
		}
		briefs[i].Tags = tags
	}

	return &ListResult{Briefs: briefs, Total: total, Page: page, PerPage: perPage}, nil
}

// UpdateBrief applies the non-nil fields of update to an owner's brief.
func (s *Store) UpdateBrief(ctx context.Context, owner, id string, update model.BriefUpdate) error {
	var sets []string
	var args []interface{}

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Citation != nil {
		sets = append(sets, "citation = ?")
		args = append(args, *update.Citation)
	}
	if update.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *update.Summary)
	}
	if update.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *update.URL)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id, owner)

	res, err := s.db.ExecContext(ctx,
		`UPDATE briefs SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBrief removes a brief and its tag links.
func (s *Store) DeleteBrief(ctx context.Context, owner, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM brief_tags WHERE brief_id = ?`, id); err != nil {
		return fmt.Errorf("delete tag links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM briefs WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete brief: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// GetPDF returns the stored original document for download.
func (s *Store) GetPDF(ctx context.Context, owner, id string) (string, []byte, error) {
	var filename sql.NullString
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT pdf_filename, pdf_data FROM briefs WHERE id = ? AND owner = ?`, id, owner,
	).Scan(&filename, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if len(data) == 0 {
		return "", nil, ErrNotFound
	}
	name := filename.String
	if name == "" {
		name = "document.pdf"
	}
	return name, data, nil
}

// ---------------------------------------------------------------------------
// Duplicate lookups
// ---------------------------------------------------------------------------

// FindDuplicateByFilename returns the oldest brief stored under the given
// original filename, across all owners, or nil if none exists.
func (s *Store) FindDuplicateByFilename(ctx context.Context, filename string) (*model.Brief, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+briefColumns+` FROM briefs WHERE pdf_filename = ? ORDER BY created_at ASC LIMIT 1`,
		filename)
	brief, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return brief, err
}

// FindDuplicateByHash returns the oldest brief with the given content
// fingerprint, across all owners, or nil if none exists.
func (s *Store) FindDuplicateByHash(ctx context.Context, hash string) (*model.Brief, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+briefColumns+` FROM briefs WHERE content_hash = ? ORDER BY created_at ASC LIMIT 1`,
		hash)
	brief, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return brief, err
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// GetTagNames returns a brief's tag names in alphabetical order.
func (s *Store) GetTagNames(ctx context.Context, briefID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN brief_tags bt ON bt.tag_id = t.id
		WHERE bt.brief_id = ?
		ORDER BY t.name ASC`, briefID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ApplyTagChanges adds and removes tag links for a brief in one transaction.
// Tag rows themselves are kept even when their last link is removed, so tag
// identity is stable across edits.
func (s *Store) ApplyTagChanges(ctx context.Context, briefID string, toAdd, toRemove []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, name := range toAdd {
		tagID, err := findOrCreateTag(ctx, tx, name)
		if err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO brief_tags (brief_id, tag_id) VALUES (?, ?)`,
			briefID, tagID,
		); err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}

	for _, name := range toRemove {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM brief_tags WHERE brief_id = ? AND tag_id IN (
				SELECT id FROM tags WHERE name = ?)`,
			briefID, name,
		); err != nil {
			return fmt.Errorf("unlink tag %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// ListTagsWithCounts returns every tag used by the owner's briefs together
// with how many of their briefs carry it, most used first.
func (s *Store) ListTagsWithCounts(ctx context.Context, owner string) ([]model.TagWithCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, COUNT(bt.brief_id) AS n
		FROM tags t
		JOIN brief_tags bt ON bt.tag_id = t.id
		JOIN briefs b ON b.id = bt.brief_id
		WHERE b.owner = ?
		GROUP BY t.id, t.name
		ORDER BY n DESC, t.name ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []model.TagWithCount{}
	for rows.Next() {
		var t model.TagWithCount
		if err := rows.Scan(&t.ID, &t.Name, &t.Count); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// findOrCreateTag returns the ID for a tag name, creating the row if needed.
func findOrCreateTag(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, id, name); err != nil {
		return "", err
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBrief(row scanner) (*model.Brief, error) {
	var brief model.Brief
	err := row.Scan(&brief.ID, &brief.Owner, &brief.Title, &brief.Citation,
		&brief.Summary, &brief.SourceText, &brief.SourceType, &brief.PDFFilename,
		&brief.ContentHash, &brief.URL, &brief.ModelName, &brief.CreatedAt, &brief.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &brief, nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}
