// Package stemma infers genealogical relationships among witnesses from
// a collation.
//
// Two strategies are provided. The distance method runs deterministic
// average-linkage agglomerative clustering over pairwise witness
// dissimilarity and always yields a rooted binary tree. The parsimony
// method treats each variation unit as a character whose states are its
// readings and hill-climbs over tree rearrangements (NNI moves) to
// minimize Fitch mutation count, under an iteration and wall-clock
// budget with cooperative cancellation.
//
// Ambiguity is a first-class output: a witness that appears to descend
// from two ancestors is reported as a network with an explicit
// contamination edge, never forced into a tree or turned into an error.
package stemma

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
)

// Method selects the inference strategy.
type Method string

// Recognized inference methods.
const (
	MethodDistance  Method = "distance"
	MethodParsimony Method = "parsimony"
)

// Kind reports the structural shape of an inference result.
type Kind string

const (
	// KindTree is a strict rooted tree: every witness has one ancestor.
	KindTree Kind = "tree"
	// KindNetwork is a DAG containing at least one contamination edge.
	KindNetwork Kind = "network"
)

// Node is a vertex of the stemma. Leaves carry the witness ID they
// represent; internal nodes are hypothetical ancestors with an empty
// Witness field.
type Node struct {
	ID      string `json:"id"`
	Witness string `json:"witness,omitempty"`
}

// Edge is a derivation relationship: To derives from From. Support is a
// confidence score in [0, 1]. Contamination marks a secondary ancestry
// edge that turns the result into a network.
type Edge struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Support       float64 `json:"support"`
	Contamination bool    `json:"contamination,omitempty"`
}

// Result is an inferred stemma: a tree or, when contamination was
// detected, a DAG. Score is the Fitch mutation count for parsimony runs
// and zero for distance runs. Iterations counts hill-climb steps taken.
type Result struct {
	Method     Method `json:"method"`
	Kind       Kind   `json:"kind"`
	Root       string `json:"root"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
	Ambiguous  bool   `json:"ambiguous,omitempty"`
	Score      int    `json:"score,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
}

// Options configures stemma inference.
type Options struct {
	// Method selects distance or parsimony inference. Empty selects distance.
	Method Method
	// TimeBudget bounds the parsimony search wall-clock time.
	// Zero selects DefaultTimeBudget.
	TimeBudget time.Duration
	// MaxIterations bounds the number of hill-climb steps.
	// Zero selects DefaultMaxIterations.
	MaxIterations int
	// Seed makes the parsimony search reproducible. Zero selects DefaultSeed.
	Seed uint64
	// Logger receives debug progress. Nil discards.
	Logger *log.Logger
}

// Default search budgets and seed.
const (
	DefaultTimeBudget    = 10 * time.Second
	DefaultMaxIterations = 200
	DefaultSeed          = 42
)

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Method == "" {
		out.Method = MethodDistance
	}
	if out.TimeBudget <= 0 {
		out.TimeBudget = DefaultTimeBudget
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = DefaultMaxIterations
	}
	if out.Seed == 0 {
		out.Seed = DefaultSeed
	}
	if out.Logger == nil {
		out.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return out
}

// Infer builds a stemma from a collation result.
//
// Returns INSUFFICIENT_DATA when fewer than two witnesses are present: a
// stemma requires comparison. The parsimony search honors ctx
// cancellation and its budgets by returning the best tree found so far.
func Infer(ctx context.Context, res *collate.Result, opts *Options) (*Result, error) {
	o := opts.withDefaults()
	if res == nil || len(res.Witnesses) < 2 {
		return nil, errors.New(errors.ErrCodeInsufficientData,
			"stemma inference requires at least 2 witnesses")
	}

	dist := DistanceMatrix(res)

	switch o.Method {
	case MethodDistance:
		return inferDistance(res.Witnesses, dist, o)
	case MethodParsimony:
		return inferParsimony(ctx, res, dist, o)
	default:
		return nil, errors.New(errors.ErrCodeInvalidMethod, "unknown stemma method %q", o.Method)
	}
}

// DistanceMatrix derives pairwise witness dissimilarity from the
// collation: the fraction of comparable variation units (where not both
// witnesses are gapped) whose readings disagree. Values fall in [0, 1];
// the matrix is symmetric with a zero diagonal, indexed by witness
// ingestion order.
func DistanceMatrix(res *collate.Result) [][]float64 {
	n := len(res.Witnesses)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			wi, wj := res.Witnesses[i], res.Witnesses[j]
			counted, differing := 0, 0
			for _, u := range res.Units {
				ci, cj := u.Cells[wi], u.Cells[wj]
				if ci.Gap && cj.Gap {
					continue
				}
				counted++
				if ci.Gap != cj.Gap || ci.Reading != cj.Reading {
					differing++
				}
			}
			d := 0.0
			if counted > 0 {
				d = float64(differing) / float64(counted)
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// phylo is a rooted binary tree over witness leaves. Node indices
// 0..nLeaves-1 are leaves in witness ingestion order; the rest are
// hypothetical ancestors.
type phylo struct {
	ids      []string
	parent   []int
	children [][]int
	root     int
	nLeaves  int
}

func (t *phylo) clone() *phylo {
	out := &phylo{
		ids:      append([]string(nil), t.ids...),
		parent:   append([]int(nil), t.parent...),
		children: make([][]int, len(t.children)),
		root:     t.root,
		nLeaves:  t.nLeaves,
	}
	for i, c := range t.children {
		out.children[i] = append([]int(nil), c...)
	}
	return out
}

// leavesBelow returns the sorted leaf indices in the subtree rooted at v.
func (t *phylo) leavesBelow(v int) []int {
	if v < t.nLeaves {
		return []int{v}
	}
	var out []int
	for _, c := range t.children[v] {
		out = append(out, t.leavesBelow(c)...)
	}
	// children recursion yields ascending order per subtree; merge-sort
	// is overkill for stemma sizes, a simple insertion sort suffices.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
