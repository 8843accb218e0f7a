package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewagner/briefstack/internal/engine"
	"github.com/ewagner/briefstack/internal/logger"
	"github.com/ewagner/briefstack/internal/store"
)

// defaultOwner is assumed when the request carries no X-Owner header.
const defaultOwner = "local"

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store      store.BriefRepository
	pipeline   *engine.Pipeline
	log        *logger.Logger
	mux        *http.ServeMux
	corsOrigin string
	maxBody    int64
}

// New creates a new API server. maxBody caps request bodies and should be
// sized to the batch upload limit plus form overhead.
func New(repo store.BriefRepository, pipeline *engine.Pipeline, log *logger.Logger, corsOrigin string, maxBody int64) *Server {
	srv := &Server{
		store:      repo,
		pipeline:   pipeline,
		log:        log,
		mux:        http.NewServeMux(),
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/briefs/text", s.handleCreateFromText)
	s.mux.HandleFunc("POST /api/briefs/pdf", s.handleCreateFromPDF)
	s.mux.HandleFunc("POST /api/briefs/url", s.handleCreateFromURL)
	s.mux.HandleFunc("POST /api/briefs/manual", s.handleCreateManual)
	s.mux.HandleFunc("GET /api/briefs", s.handleListBriefs)
	s.mux.HandleFunc("GET /api/briefs/{id}", s.handleGetBrief)
	s.mux.HandleFunc("PUT /api/briefs/{id}", s.handleUpdateBrief)
	s.mux.HandleFunc("DELETE /api/briefs/{id}", s.handleDeleteBrief)
	s.mux.HandleFunc("PUT /api/briefs/{id}/tags", s.handleUpdateTags)
	s.mux.HandleFunc("GET /api/briefs/{id}/download", s.handleDownloadPDF)
	s.mux.HandleFunc("GET /api/tags", s.handleListTags)
}

// owner resolves the acting owner from the request.
func owner(r *http.Request) string {
	if o := r.Header.Get("X-Owner"); o != "" {
		return o
	}
	return defaultOwner
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for the configured origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*" // TODO: restrict in production
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Owner")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to the configured maximum.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps pipeline errors to HTTP responses. Input problems
// are the client's fault; model failures are an upstream dependency failure,
// not a server bug.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var (
		dupErr      *engine.DuplicateError
		fileErr     *engine.FileTooLargeError
		batchErr    *engine.BatchTooLargeError
		invokeErr   *engine.InvokeError
		jsonErr     *engine.InvalidJSONError
		missingErr  *engine.MissingFieldError
		tooLongErr  *engine.FieldTooLongError
		requiredErr *engine.RequiredFieldsError
		extractErr  *engine.ExtractionError
	)
	switch {
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":    dupErr.Error(),
			"brief_id": dupErr.BriefID,
		})
	case errors.As(err, &fileErr), errors.As(err, &batchErr):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, engine.ErrSourceTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &requiredErr), errors.As(err, &tooLongErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &jsonErr), errors.As(err, &missingErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &extractErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invokeErr):
		writeError(w, http.StatusBadGateway, invokeErr.Error())
	default:
		s.log.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
