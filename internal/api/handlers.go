package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/ewagner/briefstack/internal/engine"
	"github.com/ewagner/briefstack/internal/model"
	"github.com/ewagner/briefstack/internal/store"
)

// multipartMemory is how much of a multipart upload is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// ---------------------------------------------------------------------------
// POST /api/briefs/text
// ---------------------------------------------------------------------------

type createTextRequest struct {
	SourceText string `json:"source_text"`
	Tags       string `json:"tags"`
}

func (s *Server) handleCreateFromText(w http.ResponseWriter, r *http.Request) {
	var req createTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	brief, err := s.pipeline.CreateFromText(r.Context(), owner(r), req.SourceText, req.Tags)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, brief)
}

// ---------------------------------------------------------------------------
// POST /api/briefs/pdf
// ---------------------------------------------------------------------------

type batchResponse struct {
	Results []model.BatchOutcome `json:"results"`
	Counts  model.BatchCounts    `json:"counts"`
}

func (s *Server) handleCreateFromPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["pdf_file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "at least one pdf_file is required")
		return
	}

	files := make([]engine.PDFFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload %q", h.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload %q", h.Filename))
			return
		}
		files = append(files, engine.PDFFile{Filename: h.Filename, Data: data})
	}

	outcomes, err := s.pipeline.CreateFromPDFBatch(r.Context(), owner(r), files, r.FormValue("tags"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	// A single successful file responds as a plain creation, like the text
	// path does.
	if id, ok := engine.SingleSuccess(outcomes); ok {
		brief, err := s.store.GetBrief(r.Context(), owner(r), id)
		if err != nil {
			s.log.Error("load created brief failed", "brief_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, brief)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Results: outcomes,
		Counts:  model.CountOutcomes(outcomes),
	})
}

// ---------------------------------------------------------------------------
// POST /api/briefs/url
// ---------------------------------------------------------------------------

type createURLRequest struct {
	URL  string `json:"url"`
	Tags string `json:"tags"`
}

func (s *Server) handleCreateFromURL(w http.ResponseWriter, r *http.Request) {
	var req createURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	brief, err := s.pipeline.CreateFromURL(r.Context(), owner(r), req.URL, req.Tags)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, brief)
}

// ---------------------------------------------------------------------------
// POST /api/briefs/manual
// ---------------------------------------------------------------------------

type createManualRequest struct {
	Title       string `json:"title"`
	Citation    string `json:"citation"`
	Summary     string `json:"summary"`
	SourceText  string `json:"source_text"`
	URL         string `json:"url"`
	SourceLabel string `json:"source_name"`
	Tags        string `json:"tags"`
}

func (s *Server) handleCreateManual(w http.ResponseWriter, r *http.Request) {
	var req createManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	brief, err := s.pipeline.CreateManual(r.Context(), owner(r), engine.ManualInput{
		Title:       req.Title,
		Citation:    req.Citation,
		Summary:     req.Summary,
		SourceText:  req.SourceText,
		URL:         req.URL,
		SourceLabel: req.SourceLabel,
	}, req.Tags)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, brief)
}

// ---------------------------------------------------------------------------
// GET /api/briefs
// ---------------------------------------------------------------------------

func (s *Server) handleListBriefs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BriefFilter{
		Owner:   owner(r),
		Tag:     q.Get("tag"),
		Query:   q.Get("q"),
		Page:    intParam(q.Get("page"), 1),
		PerPage: intParam(q.Get("per_page"), 20),
	}

	result, err := s.store.ListBriefs(r.Context(), filter)
	if err != nil {
		s.log.Error("list briefs failed", "owner", filter.Owner, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list briefs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// ---------------------------------------------------------------------------
// GET /api/briefs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	brief, err := s.store.GetBrief(r.Context(), owner(r), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "brief not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get brief")
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

// ---------------------------------------------------------------------------
// PUT /api/briefs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleUpdateBrief(w http.ResponseWriter, r *http.Request) {
	var update model.BriefUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if update.Title != nil {
		if *update.Title == "" {
			writeError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		if utf8.RuneCountInString(*update.Title) > model.MaxTitleLen {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("title exceeds %d characters", model.MaxTitleLen))
			return
		}
	}
	if update.Citation != nil {
		if *update.Citation == "" {
			writeError(w, http.StatusBadRequest, "citation cannot be empty")
			return
		}
		if utf8.RuneCountInString(*update.Citation) > model.MaxCitationLen {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("citation exceeds %d characters", model.MaxCitationLen))
			return
		}
	}

	id := r.PathValue("id")
	err := s.store.UpdateBrief(r.Context(), owner(r), id, update)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "brief not found")
		return
	}
	if err != nil {
		s.log.Error("update brief failed", "brief_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update brief")
		return
	}

	brief, err := s.store.GetBrief(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get brief")
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

// ---------------------------------------------------------------------------
// DELETE /api/briefs/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteBrief(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteBrief(r.Context(), owner(r), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "brief not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete brief")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// PUT /api/briefs/{id}/tags
// ---------------------------------------------------------------------------

type updateTagsRequest struct {
	Tags string `json:"tags"`
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	var req updateTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.PathValue("id")
	// Ownership check before touching tag links.
	if _, err := s.store.GetBrief(r.Context(), owner(r), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "brief not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get brief")
		return
	}

	if err := s.pipeline.UpdateTags(r.Context(), id, req.Tags); err != nil {
		s.log.Error("update tags failed", "brief_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update tags")
		return
	}

	names, err := s.store.GetTagNames(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": names})
}

// ---------------------------------------------------------------------------
// GET /api/briefs/{id}/download
// ---------------------------------------------------------------------------

func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.store.GetPDF(r.Context(), owner(r), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no document stored for this brief")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ---------------------------------------------------------------------------
// GET /api/tags
// ---------------------------------------------------------------------------

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTagsWithCounts(r.Context(), owner(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
