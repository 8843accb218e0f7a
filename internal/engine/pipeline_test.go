package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewagner/briefstack/internal/logger"
	"github.com/ewagner/briefstack/internal/model"
)

const validSource = "This source text is comfortably longer than the fifty character minimum required by the pipeline."

const cannedResponse = `{
	"title": "Attention Is All You Need",
	"citation": "Vaswani et al. (2017). NeurIPS.",
	"summary": {"Key Findings": ["Transformers replace recurrence entirely"], "Conclusions": "Attention suffices"}
}`

// fakeModel counts calls and returns a fixed response or error.
type fakeModel struct {
	response string
	err      error
	calls    int
}

func (m *fakeModel) Complete(_ context.Context, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *fakeModel) ModelName() string { return "fake-model" }

// memStore is an in-memory BriefStore + DuplicateStore + TagStore.
type memStore struct {
	briefs    []model.Brief
	briefTags map[string][]string
	createErr error
}

func newMemStore() *memStore {
	return &memStore{briefTags: map[string][]string{}}
}

func (s *memStore) CreateBrief(_ context.Context, brief model.Brief, tags []string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.briefs = append(s.briefs, brief)
	s.briefTags[brief.ID] = append([]string{}, tags...)
	return nil
}

func (s *memStore) FindDuplicateByFilename(_ context.Context, filename string) (*model.Brief, error) {
	for i := range s.briefs {
		if s.briefs[i].PDFFilename != nil && *s.briefs[i].PDFFilename == filename {
			return &s.briefs[i], nil
		}
	}
	return nil, nil
}

func (s *memStore) FindDuplicateByHash(_ context.Context, hash string) (*model.Brief, error) {
	for i := range s.briefs {
		if s.briefs[i].ContentHash != nil && *s.briefs[i].ContentHash == hash {
			return &s.briefs[i], nil
		}
	}
	return nil, nil
}

func (s *memStore) GetTagNames(_ context.Context, briefID string) ([]string, error) {
	return s.briefTags[briefID], nil
}

func (s *memStore) ApplyTagChanges(_ context.Context, briefID string, toAdd, toRemove []string) error {
	current := s.briefTags[briefID]
	next := []string{}
	removeSet := map[string]bool{}
	for _, n := range toRemove {
		removeSet[n] = true
	}
	for _, n := range current {
		if !removeSet[n] {
			next = append(next, n)
		}
	}
	s.briefTags[briefID] = append(next, toAdd...)
	return nil
}

func newTestPipeline(store *memStore, m *fakeModel) *Pipeline {
	log := logger.NewNop()
	return NewPipeline(
		store, store, m,
		NewExtractor(&StubPageExtractor{}),
		&StubURLFetcher{},
		NewDuplicateChecker(store, log),
		DefaultLimits(), log,
	)
}

func TestCreateFromText(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	brief, err := p.CreateFromText(context.Background(), "alice", validSource, "ml, Papers")
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", brief.Title)
	assert.Equal(t, model.SourceText, brief.SourceType)
	assert.Contains(t, brief.Summary, "Key Findings:")
	require.NotNil(t, brief.ModelName)
	assert.Equal(t, "fake-model", *brief.ModelName)

	require.Len(t, store.briefs, 1)
	assert.Equal(t, []string{"ml", "papers"}, store.briefTags[brief.ID])
}

func TestCreateFromTextTooShort(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	_, err := p.CreateFromText(context.Background(), "alice", "too short", "")
	require.ErrorIs(t, err, ErrSourceTooShort)
	assert.Zero(t, m.calls)
	assert.Empty(t, store.briefs)
}

func TestCreateFromTextModelFailureNothingPersisted(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{err: &InvokeError{Kind: KindRateLimited, Message: "slow down"}}
	p := newTestPipeline(store, m)

	_, err := p.CreateFromText(context.Background(), "alice", validSource, "")

	var ie *InvokeError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, store.briefs)
}

func TestCreateFromURLRecordsSource(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	brief, err := p.CreateFromURL(context.Background(), "alice", "https://example.com/paper", "")
	require.NoError(t, err)

	require.NotNil(t, brief.URL)
	assert.Equal(t, "https://example.com/paper", *brief.URL)
	assert.Equal(t, model.SourceText, brief.SourceType)
}

func TestBatchIsolation(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	files := []PDFFile{
		{Filename: "a.pdf", Data: []byte("first document bytes")},
		{Filename: "b.pdf", Data: nil}, // empty upload
		{Filename: "c.pdf", Data: []byte("third document bytes")},
	}

	outcomes, err := p.CreateFromPDFBatch(context.Background(), "alice", files, "")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, model.BatchSuccess, outcomes[0].Status)
	assert.Equal(t, model.BatchError, outcomes[1].Status)
	assert.Equal(t, model.BatchSuccess, outcomes[2].Status)
	assert.Equal(t, "b.pdf", outcomes[1].Filename)

	counts := model.CountOutcomes(outcomes)
	assert.Equal(t, model.BatchCounts{Success: 2, Error: 1}, counts)
	assert.Len(t, store.briefs, 2)
}

func TestBatchPerFileCapRejectedBeforeModelCalls(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)
	p.limits.MaxPDFBytes = 10

	files := []PDFFile{
		{Filename: "small.pdf", Data: []byte("ok")},
		{Filename: "big.pdf", Data: []byte("this exceeds ten bytes")},
	}

	_, err := p.CreateFromPDFBatch(context.Background(), "alice", files, "")

	var fileErr *FileTooLargeError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "big.pdf", fileErr.Filename)
	assert.Zero(t, m.calls, "no model call may happen for a rejected batch")
	assert.Empty(t, store.briefs)
}

func TestBatchAggregateCapRejected(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)
	p.limits.MaxPDFBytes = 100
	p.limits.MaxBatchBytes = 50

	files := []PDFFile{
		{Filename: "a.pdf", Data: make([]byte, 30)},
		{Filename: "b.pdf", Data: make([]byte, 30)},
	}

	_, err := p.CreateFromPDFBatch(context.Background(), "alice", files, "")

	var batchErr *BatchTooLargeError
	require.ErrorAs(t, err, &batchErr)
	assert.Zero(t, m.calls)
}

func TestBatchDuplicateByFilename(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	first, err := p.CreateFromPDF(context.Background(), "alice",
		PDFFile{Filename: "report.pdf", Data: []byte("original bytes")}, "")
	require.NoError(t, err)
	m.calls = 0

	// Same filename, different bytes, different owner: still a duplicate.
	outcomes, err := p.CreateFromPDFBatch(context.Background(), "bob",
		[]PDFFile{{Filename: "report.pdf", Data: []byte("other bytes")}}, "")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, model.BatchDuplicate, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Message, `duplicate filename: "report.pdf"`)
	require.NotNil(t, outcomes[0].BriefID)
	assert.Equal(t, first.ID, *outcomes[0].BriefID)
	assert.Zero(t, m.calls, "duplicates must not reach the model")
}

func TestBatchDuplicateByContentHash(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	data := []byte("identical document bytes")
	_, err := p.CreateFromPDF(context.Background(), "alice",
		PDFFile{Filename: "v1.pdf", Data: data}, "")
	require.NoError(t, err)

	outcomes, err := p.CreateFromPDFBatch(context.Background(), "alice",
		[]PDFFile{{Filename: "renamed.pdf", Data: data}}, "")
	require.NoError(t, err)

	assert.Equal(t, model.BatchDuplicate, outcomes[0].Status)
	assert.Equal(t, "duplicate content (hash match)", outcomes[0].Message)
}

func TestCreateFromPDFSuccessStoresDocument(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	data := []byte("pdf bytes here")
	brief, err := p.CreateFromPDF(context.Background(), "alice",
		PDFFile{Filename: "paper.pdf", Data: data}, "")
	require.NoError(t, err)

	assert.Equal(t, model.SourcePDF, brief.SourceType)
	require.NotNil(t, brief.PDFFilename)
	assert.Equal(t, "paper.pdf", *brief.PDFFilename)
	require.NotNil(t, brief.ContentHash)
	assert.Equal(t, Fingerprint(data), *brief.ContentHash)
	assert.Equal(t, data, brief.PDFData)
}

func TestCreateFromPDFDuplicateError(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	file := PDFFile{Filename: "dup.pdf", Data: []byte("bytes")}
	first, err := p.CreateFromPDF(context.Background(), "alice", file, "")
	require.NoError(t, err)

	_, err = p.CreateFromPDF(context.Background(), "alice", file, "")

	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.BriefID)
}

func TestSingleSuccess(t *testing.T) {
	id := "abc"
	single := []model.BatchOutcome{{Status: model.BatchSuccess, BriefID: &id}}
	got, ok := SingleSuccess(single)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok = SingleSuccess([]model.BatchOutcome{{Status: model.BatchError}})
	assert.False(t, ok)

	_, ok = SingleSuccess(append(single, model.BatchOutcome{Status: model.BatchError}))
	assert.False(t, ok)
}

func TestCreateManual(t *testing.T) {
	store := newMemStore()
	m := &fakeModel{response: cannedResponse}
	p := newTestPipeline(store, m)

	brief, err := p.CreateManual(context.Background(), "alice", ManualInput{
		Title:       "Hand-written brief",
		Citation:    "Me (2026)",
		Summary:     "• the only point",
		SourceText:  validSource,
		SourceLabel: "ChatGPT",
	}, "notes")
	require.NoError(t, err)

	assert.Equal(t, model.SourceManual, brief.SourceType)
	require.NotNil(t, brief.ModelName)
	assert.Equal(t, "ChatGPT", *brief.ModelName)
	assert.Zero(t, m.calls, "manual entry must not invoke the model")
	assert.Equal(t, []string{"notes"}, store.briefTags[brief.ID])
}

func TestCreateManualEmptyRichTextShellRejected(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(store, &fakeModel{})

	for _, shell := range []string{"<p><br></p>", "<p></p>", "<br>", "  <p> &nbsp; </p>  "} {
		_, err := p.CreateManual(context.Background(), "alice", ManualInput{
			Title:      "T",
			Citation:   "C",
			Summary:    shell,
			SourceText: validSource,
		}, "")

		var required *RequiredFieldsError
		require.ErrorAs(t, err, &required, "shell %q", shell)
		assert.Contains(t, required.Fields, "summary")
	}
}

func TestCreateManualMissingFieldsEnumerated(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(store, &fakeModel{})

	_, err := p.CreateManual(context.Background(), "alice", ManualInput{}, "")

	var required *RequiredFieldsError
	require.ErrorAs(t, err, &required)
	assert.ElementsMatch(t, []string{"title", "citation", "summary", "source_text"}, required.Fields)
}

func TestUpdateTagsReconciles(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(store, &fakeModel{})
	store.briefTags["b1"] = []string{"go", "db"}

	err := p.UpdateTags(context.Background(), "b1", "GO, web")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"go", "web"}, store.briefTags["b1"])
}

func TestPersistFailureSurfaces(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("disk full")
	p := newTestPipeline(store, &fakeModel{response: cannedResponse})

	_, err := p.CreateFromText(context.Background(), "alice", validSource, "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "disk full"))
}
