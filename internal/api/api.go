// Package api implements the hosted collation HTTP API.
//
// The API stores witness sets as projects and runs the collation
// pipeline on them:
//
//	POST   /collations             collate an uploaded witness set
//	GET    /collations             list projects
//	GET    /collations/{id}        fetch a project with its results
//	DELETE /collations/{id}        delete a project
//	POST   /collations/{id}/stemma infer a stemma for a project
//	GET    /collations/{id}/graph  render the variant graph
//	GET    /healthz                liveness probe
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/pipeline"
	"github.com/textcritica/collate/pkg/store"
)

// Config wires the API's collaborators.
type Config struct {
	Store  store.Store
	Runner *pipeline.Runner
	Logger *log.Logger
}

// Server handles HTTP requests for the collation API.
type Server struct {
	store  store.Store
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router
}

// New creates the API handler.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		store:  cfg.Store,
		runner: cfg.Runner,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/collations", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Post("/stemma", s.handleStemma)
			r.Get("/graph", s.handleGraph)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request with method, path, status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error response shape.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps a domain error to an HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)

	var body errorBody
	body.Error.Code = string(code)
	body.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, body)
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeProjectNotFound, errors.ErrCodeWitnessNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidMethod, errors.ErrCodeInvalidEncoding, errors.ErrCodeEmptyWitness:
		return http.StatusBadRequest
	case errors.ErrCodeInsufficientData, errors.ErrCodeAlignmentDegeneracy, errors.ErrCodeStemmaAmbiguous:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
