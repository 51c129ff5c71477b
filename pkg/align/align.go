// Package align implements global pairwise alignment of token sequences.
//
// The aligner runs a Needleman-Wunsch style dynamic program over the
// (m+1)x(n+1) edit graph with configurable substitution, insertion,
// deletion and adjacent-transposition costs. Alignment is always global:
// every token of both sequences is consumed by exactly one step.
//
// Two memory modes are supported. FullMatrix stores the whole DP matrix
// and can backtrace the optimal path; RollingRows keeps only the last
// three rows and supports distance-only queries in O(min(m,n)) memory.
//
// Tie-breaking is deterministic: substitutions are preferred over
// insertion+deletion pairs, and between equal-cost gap choices the
// backtrace extends the current gap run, minimizing gap transitions.
package align

import (
	"errors"
)

// ErrPathNeedsFullMatrix indicates that path recovery requires FullMatrix mode.
var ErrPathNeedsFullMatrix = errors.New("align: ReturnPath requires MemoryMode=FullMatrix")

// Costs holds the weights of the edit operations.
// Substitution applies only when normalized forms differ; equal forms
// always cost zero. A negative Transposition disables transpositions.
type Costs struct {
	Substitution  float64 `json:"substitution" toml:"substitution"`
	Insertion     float64 `json:"insertion" toml:"insertion"`
	Deletion      float64 `json:"deletion" toml:"deletion"`
	Transposition float64 `json:"transposition" toml:"transposition"`
}

// DefaultCosts returns the unit-cost model: every non-matching operation
// costs 1.
func DefaultCosts() Costs {
	return Costs{Substitution: 1, Insertion: 1, Deletion: 1, Transposition: 1}
}

// MemoryMode controls how the aligner stores its DP matrix.
type MemoryMode int

const (
	// FullMatrix mode: store all rows, support path recovery, uses O(m*n) memory.
	FullMatrix MemoryMode = iota

	// RollingRows mode: keep only three rows, no path recovery, uses O(min(m,n)) memory.
	RollingRows
)

// Op identifies one alignment step.
type Op int

const (
	// OpMatch consumes one token from each sequence with equal normalized forms.
	OpMatch Op = iota
	// OpSubstitute consumes one token from each sequence with differing forms.
	OpSubstitute
	// OpDelete consumes a token of A against a gap in B.
	OpDelete
	// OpInsert consumes a token of B against a gap in A.
	OpInsert
	// OpTranspose consumes two adjacent tokens from each sequence that
	// appear in swapped order.
	OpTranspose
)

// String returns a short name for the operation.
func (o Op) String() string {
	switch o {
	case OpMatch:
		return "match"
	case OpSubstitute:
		return "substitute"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	case OpTranspose:
		return "transpose"
	}
	return "unknown"
}

// Step is one edge of the alignment path. A and B are token indices into
// the input sequences; -1 marks the gapped side for inserts and deletes.
// OpTranspose steps cover positions (A, B) and (A+1, B+1) crosswise.
type Step struct {
	Op Op
	A  int
	B  int
}

// Alignment is a minimum-cost global alignment path and its total cost.
type Alignment struct {
	Cost  float64
	Steps []Step
}

// Options configures a pairwise alignment run.
type Options struct {
	// Costs is the operation cost model. Nil selects DefaultCosts.
	Costs *Costs
	// ReturnPath backtraces the optimal path; requires FullMatrix.
	ReturnPath bool
	// MemoryMode selects FullMatrix or RollingRows storage.
	MemoryMode MemoryMode
}

// Distance returns the minimum alignment cost between the normalized
// sequences a and b using O(min(m,n)) memory.
func Distance(a, b []string, costs Costs) float64 {
	// Keep the shorter sequence as the row to minimize memory.
	if len(b) > len(a) {
		a, b = b, a
		costs.Insertion, costs.Deletion = costs.Deletion, costs.Insertion
	}
	res, _ := Align(a, b, &Options{Costs: &costs, MemoryMode: RollingRows})
	return res.Cost
}

// Align computes a minimum-cost global alignment of a and b.
//
// Empty sequences align as all-gaps; two identical sequences yield a
// zero-cost all-match path. Returns ErrPathNeedsFullMatrix when
// ReturnPath is set together with RollingRows.
func Align(a, b []string, opts *Options) (Alignment, error) {
	costs := DefaultCosts()
	wantPath := false
	mem := FullMatrix
	if opts != nil {
		if opts.Costs != nil {
			costs = *opts.Costs
		}
		wantPath = opts.ReturnPath
		mem = opts.MemoryMode
	}
	if wantPath && mem != FullMatrix {
		return Alignment{}, ErrPathNeedsFullMatrix
	}

	m, n := len(a), len(b)

	// DP storage: full matrix, or three rolling rows (transpositions
	// look back two rows).
	rows := m + 1
	if mem == RollingRows {
		rows = 3
	}
	dp := make([][]float64, rows)
	for i := range dp {
		dp[i] = make([]float64, n+1)
	}

	row := func(i int) []float64 {
		if mem == RollingRows {
			return dp[i%3]
		}
		return dp[i]
	}

	for j := 1; j <= n; j++ {
		row(0)[j] = float64(j) * costs.Insertion
	}
	for i := 1; i <= m; i++ {
		cur, up := row(i), row(i-1)
		cur[0] = float64(i) * costs.Deletion
		for j := 1; j <= n; j++ {
			best := up[j-1] + subCost(a[i-1], b[j-1], costs)
			if del := up[j] + costs.Deletion; del < best {
				best = del
			}
			if ins := cur[j-1] + costs.Insertion; ins < best {
				best = ins
			}
			if transposable(a, b, i, j, costs) {
				if tr := row(i - 2)[j-2] + costs.Transposition; tr < best {
					best = tr
				}
			}
			cur[j] = best
		}
	}

	result := Alignment{Cost: row(m)[n]}
	if wantPath {
		result.Steps = backtrace(dp, a, b, costs)
	}
	return result, nil
}

// subCost is zero for equal normalized forms, else the substitution weight.
func subCost(x, y string, costs Costs) float64 {
	if x == y {
		return 0
	}
	return costs.Substitution
}

// transposable reports whether a transposition step may end at cell (i, j):
// the last two tokens of each prefix are swapped, distinct forms.
func transposable(a, b []string, i, j int, costs Costs) bool {
	return costs.Transposition >= 0 &&
		i >= 2 && j >= 2 &&
		a[i-1] == b[j-2] && a[i-2] == b[j-1] &&
		a[i-1] != a[i-2]
}

// backtrace recovers one minimum-cost path from a full DP matrix.
//
// Candidate order encodes the tie-break rule: diagonal (match or
// substitution) first, then transposition, then the gap direction that
// extends the previous gap run, so equal-cost paths resolve to the one
// with the fewest gap transitions.
func backtrace(dp [][]float64, a, b []string, costs Costs) []Step {
	var steps []Step
	i, j := len(a), len(b)
	var lastOp Op = OpMatch

	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+subCost(a[i-1], b[j-1], costs):
			op := OpMatch
			if a[i-1] != b[j-1] {
				op = OpSubstitute
			}
			steps = append(steps, Step{Op: op, A: i - 1, B: j - 1})
			lastOp = op
			i, j = i-1, j-1
		case transposable(a, b, i, j, costs) && dp[i][j] == dp[i-2][j-2]+costs.Transposition:
			steps = append(steps, Step{Op: OpTranspose, A: i - 2, B: j - 2})
			lastOp = OpTranspose
			i, j = i-2, j-2
		case i > 0 && dp[i][j] == dp[i-1][j]+costs.Deletion && (lastOp == OpDelete || j == 0 || dp[i][j] != dp[i][j-1]+costs.Insertion):
			steps = append(steps, Step{Op: OpDelete, A: i - 1, B: -1})
			lastOp = OpDelete
			i--
		default:
			steps = append(steps, Step{Op: OpInsert, A: -1, B: j - 1})
			lastOp = OpInsert
			j--
		}
	}

	// Steps were collected back-to-front.
	for l, r := 0, len(steps)-1; l < r; l, r = l+1, r-1 {
		steps[l], steps[r] = steps[r], steps[l]
	}
	return steps
}
