package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/textcritica/collate/pkg/apparatus"
	"github.com/textcritica/collate/pkg/cache"
	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/pipeline"
	"github.com/textcritica/collate/pkg/render"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/store"
	"github.com/textcritica/collate/pkg/vgraph"
)

// createRequest is the body for POST /collations. The embedded pipeline
// options carry the witnesses and all collation and stemma settings.
// Durations are given in nanoseconds, matching Go's JSON encoding.
type createRequest struct {
	Name string `json:"name,omitempty"`
	pipeline.Options
}

// statsBody is the JSON shape of pipeline statistics.
type statsBody struct {
	WitnessCount int           `json:"witness_count"`
	UnitCount    int           `json:"unit_count"`
	VariantCount int           `json:"variant_count"`
	CollateTime  time.Duration `json:"collate_time"`
	StemmaTime   time.Duration `json:"stemma_time,omitempty"`
}

// cacheBody reports which pipeline stages were served from cache.
type cacheBody struct {
	CollateHit bool `json:"collate_hit"`
	StemmaHit  bool `json:"stemma_hit"`
}

// createResponse is the body for a successful POST /collations.
type createResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	CollationHash string          `json:"collation_hash"`
	Collation     *collate.Result `json:"collation"`
	Stemma        *stemma.Result  `json:"stemma,omitempty"`
	Stats         statsBody       `json:"stats"`
	Cache         cacheBody       `json:"cache"`
	CreatedAt     time.Time       `json:"created_at"`
}

// handleCreate collates an uploaded witness set and stores it as a project.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidFormat, err, "malformed request body"))
		return
	}

	opts := req.Options
	opts.Formats = []string{pipeline.FormatJSON}
	opts.Logger = s.logger

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	project := &store.Project{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Witnesses: req.Witnesses,
		Collation: result.Collation,
		Stemma:    result.Stemma,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		ID:            project.ID,
		Name:          project.Name,
		CollationHash: result.CollationHash,
		Collation:     result.Collation,
		Stemma:        result.Stemma,
		Stats: statsBody{
			WitnessCount: result.Stats.WitnessCount,
			UnitCount:    result.Stats.UnitCount,
			VariantCount: result.Stats.VariantCount,
			CollateTime:  result.Stats.CollateTime,
			StemmaTime:   result.Stats.StemmaTime,
		},
		Cache: cacheBody{
			CollateHit: result.CacheInfo.CollateHit,
			StemmaHit:  result.CacheInfo.StemmaHit,
		},
		CreatedAt: project.CreatedAt,
	})
}

// projectSummary is one row of the GET /collations listing.
type projectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	WitnessCount int       `json:"witness_count"`
	HasStemma    bool      `json:"has_stemma"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, projectSummary{
			ID:           p.ID,
			Name:         p.Name,
			WitnessCount: len(p.Witnesses),
			HasStemma:    p.Stemma != nil,
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": summaries})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stemmaRequest is the body for POST /collations/{id}/stemma. All
// fields are optional; zero values select the defaults.
type stemmaRequest struct {
	Method        string        `json:"method,omitempty"`
	Seed          int           `json:"seed,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty"`
	TimeBudget    time.Duration `json:"time_budget,omitempty"`
	Refresh       bool          `json:"refresh,omitempty"`
}

// stemmaResponse is the body for a successful stemma inference.
type stemmaResponse struct {
	ID     string         `json:"id"`
	Stemma *stemma.Result `json:"stemma"`
	Cached bool           `json:"cached"`
}

// handleStemma infers a stemma from a project's stored collation and
// saves it back onto the project.
func (s *Server) handleStemma(w http.ResponseWriter, r *http.Request) {
	var req stemmaRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.Wrap(errors.ErrCodeInvalidFormat, err, "malformed request body"))
			return
		}
	}

	project, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if project.Collation == nil {
		writeError(w, errors.New(errors.ErrCodeInsufficientData,
			"project %s has no collation", project.ID))
		return
	}

	// The stored collation anchors the cache key, the same way the
	// pipeline keys stemmata off fresh collations.
	data, err := apparatus.MarshalJSON(project.Collation)
	if err != nil {
		writeError(w, err)
		return
	}
	hash := cache.Hash(data)

	opts := pipeline.Options{
		Witnesses:     project.Witnesses,
		StemmaMethod:  req.Method,
		Seed:          req.Seed,
		MaxIterations: req.MaxIterations,
		TimeBudget:    req.TimeBudget,
		Refresh:       req.Refresh,
		Logger:        s.logger,
	}
	st, hit, err := s.runner.InferWithCacheInfo(r.Context(), project.Collation, hash, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	project.Stemma = st
	project.UpdatedAt = time.Now().UTC()
	if err := s.store.Put(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stemmaResponse{ID: project.ID, Stemma: st, Cached: hit})
}

// handleGraph renders a project's variant graph. The format query
// parameter selects dot, svg, or png; detailed=true labels units.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if project.Collation == nil {
		writeError(w, errors.New(errors.ErrCodeInsufficientData,
			"project %s has no collation", project.ID))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	detailed := r.URL.Query().Get("detailed") == "true"

	g, err := vgraph.Build(project.Collation)
	if err != nil {
		writeError(w, err)
		return
	}
	dot := render.GraphToDOT(g, render.GraphOptions{Detailed: detailed})

	var out []byte
	var contentType string
	switch format {
	case pipeline.FormatDOT:
		out, contentType = []byte(dot), "text/vnd.graphviz"
	case pipeline.FormatSVG:
		contentType = "image/svg+xml"
		out, err = render.RenderSVG(r.Context(), dot)
	case pipeline.FormatPNG:
		contentType = "image/png"
		out, err = render.RenderPNG(r.Context(), dot)
	default:
		writeError(w, errors.New(errors.ErrCodeInvalidInput,
			"invalid graph format %q (must be one of: dot, svg, png)", format))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
