package engine

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ewagner/briefstack/internal/logger"
	"github.com/ewagner/briefstack/internal/model"
)

// Limits holds the pipeline's policy constants. They are configuration, not
// technical limits; defaults preserve the historical 25MB/100MB caps.
type Limits struct {
	MaxPDFBytes     int64
	MaxBatchBytes   int64
	PromptCharLimit int
}

// DefaultLimits returns the standard policy values.
func DefaultLimits() Limits {
	return Limits{
		MaxPDFBytes:     25 * 1024 * 1024,
		MaxBatchBytes:   100 * 1024 * 1024,
		PromptCharLimit: 150000,
	}
}

// Pipeline drives brief assembly end to end: extraction, duplicate checking,
// model invocation, normalization, validation, persistence. All processing is
// synchronous within the calling request; batch files run sequentially so a
// single submission never fans out load on the model service.
type Pipeline struct {
	store     BriefStore
	tags      TagStore
	modelc    ModelClient
	extractor *Extractor
	fetcher   URLFetcher
	dupes     *DuplicateChecker
	limits    Limits
	log       *logger.Logger
}

// NewPipeline creates a Pipeline with the given collaborators.
func NewPipeline(store BriefStore, tags TagStore, mc ModelClient, extractor *Extractor, fetcher URLFetcher, dupes *DuplicateChecker, limits Limits, log *logger.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		tags:      tags,
		modelc:    mc,
		extractor: extractor,
		fetcher:   fetcher,
		dupes:     dupes,
		limits:    limits,
		log:       log,
	}
}

// PDFFile is one uploaded file in a submission.
type PDFFile struct {
	Filename string
	Data     []byte
}

// ManualInput holds user-typed fields for a brief created without any model
// invocation. SourceLabel is a free-text provenance label (e.g. "ChatGPT"),
// not a system-selected model.
type ManualInput struct {
	Title       string
	Citation    string
	Summary     string
	SourceText  string
	URL         string
	SourceLabel string
}

// CreateFromText runs the pipeline over pasted text. No duplicate check is
// performed: dedup is defined only over binary document identity.
func (p *Pipeline) CreateFromText(ctx context.Context, owner, text, rawTags string) (*model.Brief, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < model.MinSourceTextLen {
		return nil, ErrSourceTooShort
	}

	fields, err := p.generate(ctx, text)
	if err != nil {
		p.log.Error("brief generation failed", "owner", owner, "source", model.SourceText, "error", err)
		return nil, err
	}

	brief := model.NewBrief(uuid.New().String(), owner, fields.Title, fields.Citation, fields.Summary, text, model.SourceText)
	name := p.modelc.ModelName()
	brief.ModelName = &name

	return p.persist(ctx, brief, rawTags)
}

// CreateFromURL fetches readable text from a web page and runs the text path,
// recording the source URL on the brief.
func (p *Pipeline) CreateFromURL(ctx context.Context, owner, pageURL, rawTags string) (*model.Brief, error) {
	text, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		p.log.Error("url fetch failed", "owner", owner, "url", pageURL, "error", err)
		return nil, &ExtractionError{Err: err}
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < model.MinSourceTextLen {
		return nil, ErrSourceTooShort
	}

	fields, err := p.generate(ctx, text)
	if err != nil {
		p.log.Error("brief generation failed", "owner", owner, "source", model.SourceText, "url", pageURL, "error", err)
		return nil, err
	}

	brief := model.NewBrief(uuid.New().String(), owner, fields.Title, fields.Citation, fields.Summary, text, model.SourceText)
	brief.URL = &pageURL
	name := p.modelc.ModelName()
	brief.ModelName = &name

	return p.persist(ctx, brief, rawTags)
}

// CreateFromPDF runs the single-file path: extract, dedup check, invoke,
// normalize, persist. A duplicate short-circuits with *DuplicateError
// carrying the existing record's ID.
func (p *Pipeline) CreateFromPDF(ctx context.Context, owner string, file PDFFile, rawTags string) (*model.Brief, error) {
	if int64(len(file.Data)) > p.limits.MaxPDFBytes {
		return nil, &FileTooLargeError{Filename: file.Filename, Size: int64(len(file.Data)), Limit: p.limits.MaxPDFBytes}
	}

	outcome, brief := p.processPDF(ctx, owner, file, rawTags)
	switch outcome.Status {
	case model.BatchSuccess:
		return brief, nil
	case model.BatchDuplicate:
		var id string
		if outcome.BriefID != nil {
			id = *outcome.BriefID
		}
		return nil, &DuplicateError{Reason: outcome.Message, BriefID: id, Filename: file.Filename}
	default:
		return nil, outcome.err
	}
}

// CreateFromPDFBatch processes every file independently and returns one
// outcome per file, in order. Size caps are enforced up front: a batch over
// the per-file or aggregate limit is rejected before any model call is made,
// so no invocation cost is spent on a submission destined to fail.
func (p *Pipeline) CreateFromPDFBatch(ctx context.Context, owner string, files []PDFFile, rawTags string) ([]model.BatchOutcome, error) {
	var total int64
	for _, f := range files {
		size := int64(len(f.Data))
		if size > p.limits.MaxPDFBytes {
			return nil, &FileTooLargeError{Filename: f.Filename, Size: size, Limit: p.limits.MaxPDFBytes}
		}
		total += size
	}
	if total > p.limits.MaxBatchBytes {
		return nil, &BatchTooLargeError{Size: total, Limit: p.limits.MaxBatchBytes}
	}

	outcomes := make([]model.BatchOutcome, 0, len(files))
	for _, f := range files {
		outcome, _ := p.processPDF(ctx, owner, f, rawTags)
		outcomes = append(outcomes, outcome.BatchOutcome)
	}
	return outcomes, nil
}

// SingleSuccess reports whether a batch consists of exactly one successful
// file, so the caller can respond as a single-result creation.
func SingleSuccess(outcomes []model.BatchOutcome) (string, bool) {
	if len(outcomes) == 1 && outcomes[0].Status == model.BatchSuccess && outcomes[0].BriefID != nil {
		return *outcomes[0].BriefID, true
	}
	return "", false
}

// pdfOutcome pairs the reportable outcome with the underlying error for
// single-file callers.
type pdfOutcome struct {
	model.BatchOutcome
	err error
}

// processPDF runs the whole single-file pipeline and never lets an error
// escape untyped: every failure becomes an error outcome attributed to this
// file, leaving other files in the batch unaffected.
func (p *Pipeline) processPDF(ctx context.Context, owner string, file PDFFile, rawTags string) (pdfOutcome, *model.Brief) {
	fail := func(err error) (pdfOutcome, *model.Brief) {
		p.log.Error("pdf brief failed", "owner", owner, "filename", file.Filename, "error", err)
		return pdfOutcome{
			BatchOutcome: model.BatchOutcome{Filename: file.Filename, Status: model.BatchError, Message: err.Error()},
			err:          err,
		}, nil
	}

	if len(file.Data) == 0 {
		return fail(&ExtractionError{Err: ErrEmptyOrUnreadable})
	}

	if match := p.dupes.Check(ctx, file.Filename, file.Data); match.IsDuplicate {
		p.log.Info("duplicate pdf skipped", "owner", owner, "filename", file.Filename, "reason", match.Reason)
		var id *string
		if match.Existing != nil {
			id = &match.Existing.ID
		}
		return pdfOutcome{
			BatchOutcome: model.BatchOutcome{
				Filename: file.Filename,
				Status:   model.BatchDuplicate,
				Message:  match.Reason,
				BriefID:  id,
			},
		}, nil
	}

	text, err := p.extractor.Extract(file.Data)
	if err != nil {
		return fail(err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < model.MinSourceTextLen {
		return fail(ErrSourceTooShort)
	}

	fields, err := p.generate(ctx, text)
	if err != nil {
		return fail(err)
	}

	hash := Fingerprint(file.Data)
	brief := model.NewBrief(uuid.New().String(), owner, fields.Title, fields.Citation, fields.Summary, text, model.SourcePDF)
	brief.PDFFilename = &file.Filename
	brief.PDFData = file.Data
	brief.ContentHash = &hash
	name := p.modelc.ModelName()
	brief.ModelName = &name

	saved, err := p.persist(ctx, brief, rawTags)
	if err != nil {
		return fail(err)
	}

	p.log.Info("brief created from pdf", "owner", owner, "filename", file.Filename, "brief_id", saved.ID)
	return pdfOutcome{
		BatchOutcome: model.BatchOutcome{
			Filename: file.Filename,
			Status:   model.BatchSuccess,
			Message:  "research brief created successfully",
			BriefID:  &saved.ID,
		},
	}, saved
}

// CreateManual persists user-typed fields directly. No model is invoked;
// the source label is stored where generated briefs record the model name.
func (p *Pipeline) CreateManual(ctx context.Context, owner string, in ManualInput, rawTags string) (*model.Brief, error) {
	title := strings.TrimSpace(in.Title)
	citation := strings.TrimSpace(in.Citation)
	summary := strings.TrimSpace(in.Summary)
	sourceText := strings.TrimSpace(in.SourceText)

	if isEmptyRichText(summary) {
		summary = ""
	}

	brief := model.NewBrief(uuid.New().String(), owner, title, citation, summary, sourceText, model.SourceManual)
	if u := strings.TrimSpace(in.URL); u != "" {
		brief.URL = &u
	}
	if label := strings.TrimSpace(in.SourceLabel); label != "" {
		brief.ModelName = &label
	}

	return p.persist(ctx, brief, rawTags)
}

// generate is the shared invoke-then-normalize step for model-backed paths.
func (p *Pipeline) generate(ctx context.Context, text string) (BriefFields, error) {
	prompt := buildBriefPrompt(text, p.limits.PromptCharLimit)
	raw, err := p.modelc.Complete(ctx, prompt)
	if err != nil {
		return BriefFields{}, err
	}
	return Normalize(raw)
}

// persist validates the assembled record and writes it with its tags in one
// atomic store operation. A persist failure leaves nothing behind and is safe
// to retry.
func (p *Pipeline) persist(ctx context.Context, brief model.Brief, rawTags string) (*model.Brief, error) {
	if err := validateRecord(brief); err != nil {
		return nil, err
	}
	if err := p.store.CreateBrief(ctx, brief, ParseTags(rawTags)); err != nil {
		p.log.Error("persist brief failed", "owner", brief.Owner, "brief_id", brief.ID, "error", err)
		return nil, err
	}
	return &brief, nil
}

// UpdateTags reconciles a brief's tag set against raw comma-separated input.
func (p *Pipeline) UpdateTags(ctx context.Context, briefID, rawInput string) error {
	current, err := p.tags.GetTagNames(ctx, briefID)
	if err != nil {
		return err
	}
	toAdd, toRemove := ReconcileTags(current, ParseTags(rawInput))
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}
	return p.tags.ApplyTagChanges(ctx, briefID, toAdd, toRemove)
}

// validateRecord rejects a record with missing required fields, enumerating
// them rather than persisting a partial row.
func validateRecord(brief model.Brief) error {
	var missing []string
	if brief.Title == "" {
		missing = append(missing, "title")
	}
	if brief.Citation == "" {
		missing = append(missing, "citation")
	}
	if brief.Summary == "" {
		missing = append(missing, "summary")
	}
	if brief.SourceText == "" {
		missing = append(missing, "source_text")
	}
	if len(missing) > 0 {
		return &RequiredFieldsError{Fields: missing}
	}

	if n := utf8.RuneCountInString(brief.Title); n > model.MaxTitleLen {
		return &FieldTooLongError{Field: "title", Length: n, Limit: model.MaxTitleLen}
	}
	if n := utf8.RuneCountInString(brief.Citation); n > model.MaxCitationLen {
		return &FieldTooLongError{Field: "citation", Length: n, Limit: model.MaxCitationLen}
	}
	return nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// emptyEditorMarkers are the placeholder shells rich-text editors emit for an
// empty document.
var emptyEditorMarkers = map[string]bool{
	"<p><br></p>":  true,
	"<p><br/></p>": true,
	"<p></p>":      true,
	"<br>":         true,
	"<br/>":        true,
}

// isEmptyRichText reports whether an HTML summary is an empty editor shell:
// a known placeholder marker, or markup whose text content is blank.
func isEmptyRichText(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	if emptyEditorMarkers[strings.ToLower(strings.ReplaceAll(trimmed, " ", ""))] {
		return true
	}
	stripped := htmlTagPattern.ReplaceAllString(trimmed, "")
	stripped = strings.ReplaceAll(stripped, "&nbsp;", " ")
	return strings.TrimSpace(stripped) == ""
}
