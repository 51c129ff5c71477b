// Package pipeline runs the tokenize → collate → infer → export flow
// shared by the CLI and the hosted API.
//
// Every stage is a pure function of its inputs, so each result is
// cached under a content-derived key. A change to any witness, cost, or
// option invalidates exactly the stages it affects: editing a witness
// recollates everything, while switching the stemma method reuses the
// cached collation.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/textcritica/collate/pkg/align"
	"github.com/textcritica/collate/pkg/cache"
	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/store"
	"github.com/textcritica/collate/pkg/vgraph"
	"github.com/textcritica/collate/pkg/witness"
)

// Format constants for output artifacts.
const (
	FormatJSON = "json" // collation table as JSON
	FormatText = "text" // plain-text critical apparatus
	FormatDOT  = "dot"  // variant graph as Graphviz DOT
	FormatSVG  = "svg"  // variant graph rendered to SVG
	FormatPNG  = "png"  // variant graph rendered to PNG
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatText: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// Options contains all configuration for a pipeline run.
// The struct supports JSON serialization for API requests.
type Options struct {
	// Witness inputs
	Witnesses     []store.WitnessInput `json:"witnesses"`
	Normalization witness.Config       `json:"normalization,omitempty"`

	// Collation options
	Costs    *align.Costs `json:"costs,omitempty"`
	TieBreak string       `json:"tie_break,omitempty"`
	Workers  int          `json:"workers,omitempty"`

	// Stemma options. Stemma inference runs only when Stemma is true.
	Stemma        bool          `json:"stemma,omitempty"`
	StemmaMethod  string        `json:"stemma_method,omitempty"`
	TimeBudget    time.Duration `json:"time_budget,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty"`
	Seed          int           `json:"seed,omitempty"`

	// Export options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Refresh bypasses the cache and recomputes every stage.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Collation is the aligned variation table.
	Collation *collate.Result

	// CollationHash is the content hash of the collation, used as the
	// base for downstream cache keys and exposed in API responses.
	CollationHash string

	// Graph is the variant graph built from the collation.
	Graph *vgraph.Graph

	// Stemma is the inferred tree, present when Options.Stemma is set.
	Stemma *stemma.Result

	// Artifacts contains exported outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	WitnessCount int
	TokenCount   int
	UnitCount    int
	VariantCount int // units with more than one reading
	CollateTime  time.Duration
	StemmaTime   time.Duration
	ExportTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	CollateHit bool
	StemmaHit  bool
	ExportHit  bool
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid format %q (must be one of: json, text, dot, svg, png)", format)
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent; calling it twice has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Witnesses) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no witnesses given")
	}
	if o.Costs == nil {
		costs := align.DefaultCosts()
		o.Costs = &costs
	}
	if o.TieBreak == "" {
		o.TieBreak = collate.TieBreakIngestionOrder
	}
	if o.StemmaMethod == "" {
		o.StemmaMethod = string(stemma.MethodDistance)
	}
	if o.TimeBudget == 0 {
		o.TimeBudget = stemma.DefaultTimeBudget
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = stemma.DefaultMaxIterations
	}
	if o.Seed == 0 {
		o.Seed = stemma.DefaultSeed
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	for _, f := range o.Formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// setHash derives the content hash of the witness inputs. Witness
// order matters: ingestion order breaks alignment ties.
func (o *Options) setHash() string {
	data, _ := json.Marshal(o.Witnesses)
	return cache.Hash(data)
}

// WitnessKeyOpts returns cache key options for tokenization.
func (o *Options) WitnessKeyOpts() cache.WitnessKeyOpts {
	rules, _ := json.Marshal(struct {
		Abbrev   map[string]string `json:"abbrev"`
		Spelling map[string]string `json:"spelling"`
	}{o.Normalization.ExpandAbbreviations, o.Normalization.SpellingVariants})
	sum := sha256.Sum256(rules)
	return cache.WitnessKeyOpts{
		CaseFold:         o.Normalization.CaseFold,
		StripPunctuation: o.Normalization.StripPunctuation,
		RulesHash:        hex.EncodeToString(sum[:]),
	}
}

// CollationKeyOpts returns cache key options for collation.
func (o *Options) CollationKeyOpts() cache.CollationKeyOpts {
	return cache.CollationKeyOpts{
		Substitution:  o.Costs.Substitution,
		Insertion:     o.Costs.Insertion,
		Deletion:      o.Costs.Deletion,
		Transposition: o.Costs.Transposition,
		TieBreak:      o.TieBreak,
	}
}

// StemmaKeyOpts returns cache key options for stemma inference.
func (o *Options) StemmaKeyOpts() cache.StemmaKeyOpts {
	return cache.StemmaKeyOpts{
		Method:        o.StemmaMethod,
		Seed:          o.Seed,
		MaxIterations: o.MaxIterations,
	}
}

// ArtifactKeyOpts returns cache key options for one export format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		Detailed: o.Detailed,
	}
}
