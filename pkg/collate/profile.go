package collate

import (
	"github.com/textcritica/collate/pkg/align"
	"github.com/textcritica/collate/pkg/witness"
)

// column maps witness ingestion index to the normalized reading at one
// aligned position. Absent entries are gaps.
type column map[int]string

// profile is a partial multi-witness alignment: an ordered sequence of
// columns over a fixed member set.
type profile struct {
	members []int // witness ingestion indices, ascending
	cols    []column
}

// singletonProfile wraps a single witness as a one-member profile.
func singletonProfile(w *witness.Witness, idx int) *profile {
	p := &profile{members: []int{idx}}
	for _, tok := range w.Tokens {
		p.cols = append(p.cols, column{idx: tok.Normalized})
	}
	return p
}

// columnCost is the average substitution cost between all entry pairs of
// two columns. Equal readings cost zero, so homogeneous columns merge
// for free.
func columnCost(a, b column, costs align.Costs) float64 {
	var sum float64
	for _, x := range a {
		for _, y := range b {
			if x != y {
				sum += costs.Substitution
			}
		}
	}
	return sum / float64(len(a)*len(b))
}

// mergeProfiles aligns two profiles column-against-column with a global
// DP and returns the merged profile. Gap steps cost the insertion or
// deletion weight per column. Ties in the backtrace prefer the diagonal,
// then extending the current gap run, mirroring the pairwise aligner.
func mergeProfiles(p, q *profile, costs align.Costs) *profile {
	m, n := len(p.cols), len(q.cols)
	dp := make([][]float64, m+1)
	for i := range dp {
		dp[i] = make([]float64, n+1)
	}
	for i := 1; i <= m; i++ {
		dp[i][0] = float64(i) * costs.Deletion
	}
	for j := 1; j <= n; j++ {
		dp[0][j] = float64(j) * costs.Insertion
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			best := dp[i-1][j-1] + columnCost(p.cols[i-1], q.cols[j-1], costs)
			if del := dp[i-1][j] + costs.Deletion; del < best {
				best = del
			}
			if ins := dp[i][j-1] + costs.Insertion; ins < best {
				best = ins
			}
			dp[i][j] = best
		}
	}

	// Backtrace into merged columns, collected back-to-front.
	merged := &profile{members: mergeMembers(p.members, q.members)}
	var rev []column
	i, j := m, n
	lastGap := 0 // 0 none, 1 deletion run, 2 insertion run
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+columnCost(p.cols[i-1], q.cols[j-1], costs):
			rev = append(rev, joinColumns(p.cols[i-1], q.cols[j-1]))
			lastGap = 0
			i, j = i-1, j-1
		case i > 0 && dp[i][j] == dp[i-1][j]+costs.Deletion && (lastGap == 1 || j == 0 || dp[i][j] != dp[i][j-1]+costs.Insertion):
			rev = append(rev, cloneColumn(p.cols[i-1]))
			lastGap = 1
			i--
		default:
			rev = append(rev, cloneColumn(q.cols[j-1]))
			lastGap = 2
			j--
		}
	}
	for k := len(rev) - 1; k >= 0; k-- {
		merged.cols = append(merged.cols, rev[k])
	}
	return merged
}

func joinColumns(a, b column) column {
	out := make(column, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func cloneColumn(a column) column {
	out := make(column, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// mergeMembers merges two ascending index slices into one.
func mergeMembers(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
