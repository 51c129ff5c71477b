package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/textcritica/collate/pkg/apparatus"
	"github.com/textcritica/collate/pkg/cache"
	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/observability"
	"github.com/textcritica/collate/pkg/render"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/vgraph"
	"github.com/textcritica/collate/pkg/witness"
)

// Runner executes the pipeline with caching. It is stateless apart
// from the cache and logger; multiple goroutines can share one Runner.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching; a nil
// keyer selects the DefaultKeyer.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete tokenize → collate → infer → export flow.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	result := &Result{Artifacts: make(map[string][]byte)}

	collateStart := time.Now()
	observability.Pipeline().OnCollateStart(ctx, len(opts.Witnesses))
	res, hash, collateHit, err := r.CollateWithCacheInfo(ctx, opts)
	observability.Pipeline().OnCollateComplete(ctx, len(opts.Witnesses), unitCount(res), time.Since(collateStart), err)
	if err != nil {
		return nil, fmt.Errorf("collate: %w", err)
	}
	result.Collation = res
	result.CollationHash = hash
	result.CacheInfo.CollateHit = collateHit
	result.Stats.CollateTime = time.Since(collateStart)
	result.Stats.WitnessCount = len(res.Witnesses)
	result.Stats.UnitCount = len(res.Units)
	for _, u := range res.Units {
		if !u.IsUniform() {
			result.Stats.VariantCount++
		}
	}

	r.Logger.Info("collated witnesses",
		"witnesses", result.Stats.WitnessCount,
		"units", result.Stats.UnitCount,
		"variants", result.Stats.VariantCount,
		"duration", result.Stats.CollateTime)

	g, err := vgraph.Build(res)
	if err != nil {
		return nil, fmt.Errorf("build variant graph: %w", err)
	}
	result.Graph = g

	if opts.Stemma {
		stemmaStart := time.Now()
		observability.Pipeline().OnStemmaStart(ctx, opts.StemmaMethod, len(res.Witnesses))
		st, stemmaHit, err := r.InferWithCacheInfo(ctx, res, hash, opts)
		observability.Pipeline().OnStemmaComplete(ctx, opts.StemmaMethod, time.Since(stemmaStart), err)
		if err != nil {
			return nil, fmt.Errorf("infer stemma: %w", err)
		}
		result.Stemma = st
		result.CacheInfo.StemmaHit = stemmaHit
		result.Stats.StemmaTime = time.Since(stemmaStart)

		r.Logger.Info("inferred stemma",
			"method", st.Method,
			"kind", st.Kind,
			"ambiguous", st.Ambiguous,
			"duration", result.Stats.StemmaTime)
	}

	exportStart := time.Now()
	observability.Pipeline().OnExportStart(ctx, opts.Formats)
	artifacts, exportHit, err := r.ExportWithCacheInfo(ctx, res, g, hash, opts)
	observability.Pipeline().OnExportComplete(ctx, opts.Formats, time.Since(exportStart), err)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	result.Artifacts = artifacts
	result.CacheInfo.ExportHit = exportHit
	result.Stats.ExportTime = time.Since(exportStart)

	r.Logger.Info("exported artifacts",
		"formats", opts.Formats,
		"duration", result.Stats.ExportTime)

	return result, nil
}

// Tokenize converts raw witness inputs to tokenized witnesses, with
// caching keyed by input content and normalization settings.
func (r *Runner) Tokenize(ctx context.Context, opts Options) ([]*witness.Witness, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	cacheKey := r.Keyer.WitnessKey(opts.setHash(), opts.WitnessKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var ws []*witness.Witness
			if err := json.Unmarshal(data, &ws); err == nil {
				return ws, nil
			}
		}
	}

	tok := witness.NewTokenizer(opts.Normalization)
	ws := make([]*witness.Witness, 0, len(opts.Witnesses))
	for _, in := range opts.Witnesses {
		w, err := tok.Tokenize(in.ID, in.Text, in.Meta)
		if err != nil {
			return nil, err
		}
		ws = append(ws, w)
	}

	if data, err := json.Marshal(ws); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLWitness)
	}
	return ws, nil
}

// CollateWithCacheInfo aligns the witnesses with caching. It returns
// the collation, its content hash, and whether the cache was hit.
func (r *Runner) CollateWithCacheInfo(ctx context.Context, opts Options) (*collate.Result, string, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, "", false, err
	}
	r.applyLogger(&opts)

	ws, err := r.Tokenize(ctx, opts)
	if err != nil {
		return nil, "", false, err
	}

	// The key hashes the tokenized witnesses, so normalization changes
	// flow into it without being spelled out in the key options.
	tokData, _ := json.Marshal(ws)
	cacheKey := r.Keyer.CollationKey(cache.Hash(tokData), opts.CollationKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			res, err := apparatus.ReadJSON(bytes.NewReader(data))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "collation")
				return res, cache.Hash(data), true, nil
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "collation")

	res, err := collate.Collate(ctx, ws, &collate.Options{
		Costs:    opts.Costs,
		TieBreak: opts.TieBreak,
		Workers:  opts.Workers,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, "", false, err
	}

	data, err := apparatus.MarshalJSON(res)
	if err != nil {
		return nil, "", false, err
	}
	if !opts.Refresh {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLCollation)
		observability.Cache().OnCacheSet(ctx, "collation", len(data))
	}
	return res, cache.Hash(data), false, nil
}

// Collate is a convenience wrapper discarding the cache hit info.
func (r *Runner) Collate(ctx context.Context, opts Options) (*collate.Result, error) {
	res, _, _, err := r.CollateWithCacheInfo(ctx, opts)
	return res, err
}

// InferWithCacheInfo infers a stemma with caching.
func (r *Runner) InferWithCacheInfo(ctx context.Context, res *collate.Result, collationHash string, opts Options) (*stemma.Result, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	cacheKey := r.Keyer.StemmaKey(collationHash, opts.StemmaKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var st stemma.Result
			if err := json.Unmarshal(data, &st); err == nil {
				observability.Cache().OnCacheHit(ctx, "stemma")
				return &st, true, nil
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "stemma")

	st, err := stemma.Infer(ctx, res, &stemma.Options{
		Method:        stemma.Method(opts.StemmaMethod),
		TimeBudget:    opts.TimeBudget,
		MaxIterations: opts.MaxIterations,
		Seed:          uint64(opts.Seed),
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(st); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLStemma)
		observability.Cache().OnCacheSet(ctx, "stemma", len(data))
	}
	return st, false, nil
}

// Infer is a convenience wrapper discarding the cache hit info.
func (r *Runner) Infer(ctx context.Context, res *collate.Result, collationHash string, opts Options) (*stemma.Result, error) {
	st, _, err := r.InferWithCacheInfo(ctx, res, collationHash, opts)
	return st, err
}

// ExportWithCacheInfo renders the requested formats with per-format
// caching keyed on the collation hash.
func (r *Runner) ExportWithCacheInfo(ctx context.Context, res *collate.Result, g *vgraph.Graph, collationHash string, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	allCached := !opts.Refresh
	if allCached {
		for _, format := range opts.Formats {
			cacheKey := r.Keyer.ArtifactKey(collationHash, opts.ArtifactKeyOpts(format))
			if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
				artifacts[format] = data
			} else {
				allCached = false
				break
			}
		}
	}
	if allCached && len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil
	}

	for _, format := range opts.Formats {
		data, err := r.export(ctx, res, g, format, opts)
		if err != nil {
			return nil, false, fmt.Errorf("export %s: %w", format, err)
		}
		artifacts[format] = data
		cacheKey := r.Keyer.ArtifactKey(collationHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
	}
	return artifacts, false, nil
}

func (r *Runner) export(ctx context.Context, res *collate.Result, g *vgraph.Graph, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		return apparatus.MarshalJSON(res)
	case FormatText:
		var buf bytes.Buffer
		if err := apparatus.WriteText(res, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatDOT:
		return []byte(render.GraphToDOT(g, render.GraphOptions{Detailed: opts.Detailed})), nil
	case FormatSVG:
		dot := render.GraphToDOT(g, render.GraphOptions{Detailed: opts.Detailed})
		return render.RenderSVG(ctx, dot)
	case FormatPNG:
		dot := render.GraphToDOT(g, render.GraphOptions{Detailed: opts.Detailed})
		return render.RenderPNG(ctx, dot)
	default:
		return nil, ValidateFormat(format)
	}
}

// RenderStemma renders an inferred stemma to one of the graphic
// formats, with caching keyed on the stemma content.
func (r *Runner) RenderStemma(ctx context.Context, st *stemma.Result, format string, detailed bool) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	cacheKey := r.Keyer.ArtifactKey(cache.Hash(data), cache.ArtifactKeyOpts{Format: format, Detailed: detailed})

	if cached, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		return cached, nil
	}

	dot := render.StemmaToDOT(st)
	var out []byte
	switch format {
	case FormatDOT:
		out = []byte(dot)
	case FormatSVG:
		out, err = render.RenderSVG(ctx, dot)
	case FormatPNG:
		out, err = render.RenderPNG(ctx, dot)
	default:
		return nil, ValidateFormat(format)
	}
	if err != nil {
		return nil, err
	}
	_ = r.Cache.Set(ctx, cacheKey, out, cache.TTLArtifact)
	return out, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func unitCount(res *collate.Result) int {
	if res == nil {
		return 0
	}
	return len(res.Units)
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
