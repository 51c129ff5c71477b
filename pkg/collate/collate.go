// Package collate aligns multiple witnesses into an ordered sequence of
// variation units.
//
// Multiple sequence alignment is NP-hard, so the engine uses progressive
// alignment: all pairwise distances are computed first (in parallel),
// then the two closest partial alignments are merged repeatedly until a
// single alignment remains. Each merge is a profile-vs-profile global
// alignment whose column costs average the substitution cost over all
// column entries.
//
// Collation never fails on ambiguous cost ties. Ties are resolved by
// witness ingestion order (lowest witness first) and reported as
// ALIGNMENT_DEGENERACY diagnostics on the result.
package collate

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/textcritica/collate/pkg/align"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/witness"
)

// TieBreakIngestionOrder resolves merge-order ties by lowest witness
// ingestion index. It is the only recognized tie-break policy.
const TieBreakIngestionOrder = "ingestion_order"

// Cell is the reading of one witness at one variation unit: either a
// normalized reading or an explicit gap. Exactly one of the two holds.
type Cell struct {
	Reading string `json:"reading,omitempty"`
	Gap     bool   `json:"gap,omitempty"`
}

// VariationUnit is one aligned column across all witnesses. Every
// witness in the collation contributes exactly one cell.
type VariationUnit struct {
	Index int             `json:"index"`
	Cells map[string]Cell `json:"cells"`
}

// Readings returns the distinct non-gap readings at this unit, sorted.
func (u VariationUnit) Readings() []string {
	seen := map[string]bool{}
	for _, c := range u.Cells {
		if !c.Gap {
			seen[c.Reading] = true
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// IsUniform reports whether every witness attests the same reading with
// no gaps. Uniform units carry no variation and are skipped by the
// apparatus text renderer.
func (u VariationUnit) IsUniform() bool {
	first, ok := "", false
	for _, c := range u.Cells {
		if c.Gap {
			return false
		}
		if !ok {
			first, ok = c.Reading, true
		} else if c.Reading != first {
			return false
		}
	}
	return true
}

// Diagnostic is a non-fatal condition observed during collation,
// attached to the result instead of aborting the pipeline.
type Diagnostic struct {
	Code    errors.Code `json:"code"`
	Witness string      `json:"witness,omitempty"`
	Message string      `json:"message"`
}

// Result is a complete collation: the witness ingestion order, the
// ordered variation units, and any diagnostics raised along the way.
type Result struct {
	Witnesses   []string        `json:"witnesses"`
	Units       []VariationUnit `json:"units"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}

// Options configures a collation run.
type Options struct {
	// Costs is the pairwise cost model. Nil selects align.DefaultCosts.
	Costs *align.Costs
	// TieBreak names the tie resolution policy. Only "ingestion_order"
	// is recognized; empty selects it.
	TieBreak string
	// Workers bounds the distance-matrix worker pool. Zero or negative
	// selects GOMAXPROCS.
	Workers int
	// Logger receives debug progress. Nil discards.
	Logger *log.Logger
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Costs == nil {
		c := align.DefaultCosts()
		out.Costs = &c
	}
	if out.TieBreak == "" {
		out.TieBreak = TieBreakIngestionOrder
	}
	if out.Logger == nil {
		out.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return out
}

// Collate aligns the witnesses into an ordered list of variation units.
//
// Witness order is significant: it fixes tie resolution, so permuting
// the input can change how ties resolve but never the set of distinct
// readings per unit. Empty witnesses are flagged with an EMPTY_WITNESS
// diagnostic and contribute only gaps.
func Collate(ctx context.Context, witnesses []*witness.Witness, opts *Options) (*Result, error) {
	o := opts.withDefaults()
	if o.TieBreak != TieBreakIngestionOrder {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown tie_break policy %q", o.TieBreak)
	}
	if len(witnesses) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no witnesses supplied")
	}
	seen := map[string]bool{}
	for _, w := range witnesses {
		if w.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "witness with empty identifier")
		}
		if seen[w.ID] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate witness identifier %q", w.ID)
		}
		seen[w.ID] = true
	}

	res := &Result{}
	for _, w := range witnesses {
		res.Witnesses = append(res.Witnesses, w.ID)
	}

	// Empty witnesses join as all-gap rows after alignment.
	var active []int
	for i, w := range witnesses {
		if w.Len() == 0 {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    errors.ErrCodeEmptyWitness,
				Witness: w.ID,
				Message: "witness has no tokens; collated as all gaps",
			})
			continue
		}
		active = append(active, i)
	}

	cols, diags, err := alignActive(ctx, witnesses, active, o)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = append(res.Diagnostics, diags...)

	for idx, col := range cols {
		unit := VariationUnit{Index: idx, Cells: make(map[string]Cell, len(witnesses))}
		for i, w := range witnesses {
			if reading, ok := col[i]; ok {
				unit.Cells[w.ID] = Cell{Reading: reading}
			} else {
				unit.Cells[w.ID] = Cell{Gap: true}
			}
		}
		res.Units = append(res.Units, unit)
	}

	o.Logger.Debug("collation complete",
		"witnesses", len(witnesses),
		"units", len(res.Units),
		"diagnostics", len(res.Diagnostics))
	return res, nil
}

// alignActive progressively merges the non-empty witnesses and returns
// the final profile columns (witness index -> reading, absent = gap).
func alignActive(ctx context.Context, witnesses []*witness.Witness, active []int, o Options) ([]column, []Diagnostic, error) {
	switch len(active) {
	case 0:
		return nil, nil, nil
	case 1:
		return singletonProfile(witnesses[active[0]], active[0]).cols, nil, nil
	}

	dist, err := distanceMatrix(ctx, witnesses, active, o)
	if err != nil {
		return nil, nil, err
	}

	profiles := make([]*profile, len(active))
	for i, wi := range active {
		profiles[i] = singletonProfile(witnesses[wi], wi)
	}

	var diags []Diagnostic
	for len(profiles) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pi, pj, tied := closestPair(profiles, dist)
		if tied {
			diags = append(diags, Diagnostic{
				Code:    errors.ErrCodeAlignmentDegeneracy,
				Message: "equal merge distances; tie resolved by ingestion order",
			})
		}
		merged := mergeProfiles(profiles[pi], profiles[pj], *o.Costs)
		o.Logger.Debug("merged alignment",
			"left", len(profiles[pi].members),
			"right", len(profiles[pj].members),
			"columns", len(merged.cols))

		// Remove pj first; pi < pj always holds.
		profiles = slices.Delete(profiles, pj, pj+1)
		profiles[pi] = merged
	}
	return profiles[0].cols, diags, nil
}

// closestPair selects the two profiles with the smallest average-linkage
// distance. Ties resolve toward the pair containing the lowest witness
// ingestion index; the returned flag reports whether a tie occurred.
func closestPair(profiles []*profile, dist [][]float64) (int, int, bool) {
	bi, bj := 0, 1
	best := linkage(profiles[0], profiles[1], dist)
	tied := false
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			if i == 0 && j == 1 {
				continue
			}
			d := linkage(profiles[i], profiles[j], dist)
			switch {
			case d < best:
				best, bi, bj, tied = d, i, j, false
			case d == best:
				tied = true
			}
		}
	}
	return bi, bj, tied
}

// linkage is the average pairwise witness distance between two profiles.
func linkage(p, q *profile, dist [][]float64) float64 {
	var sum float64
	for _, a := range p.members {
		for _, b := range q.members {
			sum += dist[a][b]
		}
	}
	return sum / float64(len(p.members)*len(q.members))
}
