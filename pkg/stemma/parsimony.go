package stemma

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/textcritica/collate/pkg/collate"
)

// gapState is the character state of a witness gapped at a unit.
const gapState = "-"

// contaminationSimilarity is the highest distance at which a witness
// still counts as textually close to a candidate ancestor, and
// contaminationDivergence the lowest at which two candidate ancestors
// count as unrelated to each other. A witness close to two mutually
// unrelated witnesses is flagged as contaminated.
const (
	contaminationSimilarity = 0.6
	contaminationDivergence = 0.75
)

// inferParsimony searches tree space for a minimum-mutation topology.
//
// The search starts from the distance tree and applies nearest-neighbor
// interchange moves under hill-climbing, bounded by MaxIterations, the
// TimeBudget and ctx. It always returns the best tree found so far.
// Edge support is the fraction of visited iterations in which the
// edge's leaf bipartition was part of the current tree.
func inferParsimony(ctx context.Context, res *collate.Result, dist [][]float64, o Options) (*Result, error) {
	chars := characters(res)
	tree, _ := buildUPGMA(res.Witnesses, dist)
	score := fitchScore(tree, chars)

	rng := rand.New(rand.NewSource(int64(o.Seed)))
	deadline := time.Now().Add(o.TimeBudget)
	counts := map[string]int{}
	iterations := 0

	for iterations < o.MaxIterations {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}
		iterations++
		recordBipartitions(tree, counts)

		candidate := randomNNI(tree, rng)
		if candidate == nil {
			break // too few internal edges to rearrange
		}
		if s := fitchScore(candidate, chars); s < score {
			tree, score = candidate, s
			o.Logger.Debug("accepted rearrangement", "score", s, "iteration", iterations)
		}
	}

	result := &Result{
		Method:     MethodParsimony,
		Kind:       KindTree,
		Root:       tree.ids[tree.root],
		Score:      score,
		Iterations: iterations,
	}
	for i, id := range tree.ids {
		n := Node{ID: id}
		if i < tree.nLeaves {
			n.Witness = id
		}
		result.Nodes = append(result.Nodes, n)
	}
	for p := range tree.children {
		for _, c := range tree.children[p] {
			result.Edges = append(result.Edges, Edge{
				From:    tree.ids[p],
				To:      tree.ids[c],
				Support: bipartitionSupport(tree, c, counts, iterations),
			})
		}
	}

	for _, cont := range detectContamination(dist) {
		result.Edges = append(result.Edges, Edge{
			From:          res.Witnesses[cont.source],
			To:            res.Witnesses[cont.leaf],
			Support:       1 - dist[cont.leaf][cont.source],
			Contamination: true,
		})
		result.Kind = KindNetwork
		result.Ambiguous = true
		o.Logger.Debug("contamination detected",
			"witness", res.Witnesses[cont.leaf],
			"source", res.Witnesses[cont.source])
	}

	o.Logger.Debug("parsimony stemma built",
		"score", score,
		"iterations", iterations,
		"kind", result.Kind)
	return result, nil
}

// characters converts the collation into one character per variation
// unit, indexed by witness ingestion order. Gaps are a state of their own.
func characters(res *collate.Result) [][]string {
	chars := make([][]string, len(res.Units))
	for i, u := range res.Units {
		states := make([]string, len(res.Witnesses))
		for j, w := range res.Witnesses {
			if c := u.Cells[w]; c.Gap {
				states[j] = gapState
			} else {
				states[j] = c.Reading
			}
		}
		chars[i] = states
	}
	return chars
}

// fitchScore counts the minimum state changes over all characters using
// Fitch's small-parsimony pass: intersect child state sets where
// possible, union (one mutation) where not.
func fitchScore(t *phylo, chars [][]string) int {
	total := 0
	for _, states := range chars {
		var walk func(v int) map[string]bool
		walk = func(v int) map[string]bool {
			if v < t.nLeaves {
				return map[string]bool{states[v]: true}
			}
			left := walk(t.children[v][0])
			right := walk(t.children[v][1])
			inter := map[string]bool{}
			for s := range left {
				if right[s] {
					inter[s] = true
				}
			}
			if len(inter) > 0 {
				return inter
			}
			total++
			for s := range right {
				left[s] = true
			}
			return left
		}
		walk(t.root)
	}
	return total
}

// randomNNI returns a copy of t with one random nearest-neighbor
// interchange applied, or nil when the tree has no eligible edge.
// An NNI picks an internal node v with parent p and swaps one child of
// v with v's sibling.
func randomNNI(t *phylo, rng *rand.Rand) *phylo {
	var eligible []int
	for v := t.nLeaves; v < len(t.ids); v++ {
		if v != t.root && t.parent[v] >= 0 {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	v := eligible[rng.Intn(len(eligible))]
	child := t.children[v][rng.Intn(2)]
	p := t.parent[v]
	sibling := t.children[p][0]
	if sibling == v {
		sibling = t.children[p][1]
	}

	out := t.clone()
	replaceChild(out, p, sibling, child)
	replaceChild(out, v, child, sibling)
	out.parent[sibling] = v
	out.parent[child] = p
	return out
}

func replaceChild(t *phylo, parent, old, repl int) {
	for i, c := range t.children[parent] {
		if c == old {
			t.children[parent][i] = repl
			return
		}
	}
}

// recordBipartitions increments the presence counter of every internal
// edge's leaf bipartition in the current tree.
func recordBipartitions(t *phylo, counts map[string]int) {
	for v := t.nLeaves; v < len(t.ids); v++ {
		if v == t.root {
			continue
		}
		counts[bipartitionKey(t, v)]++
	}
}

// bipartitionKey canonically names the leaf set below v.
func bipartitionKey(t *phylo, v int) string {
	leaves := t.leavesBelow(v)
	parts := make([]string, len(leaves))
	for i, l := range leaves {
		parts[i] = fmt.Sprint(l)
	}
	return strings.Join(parts, ",")
}

// bipartitionSupport scores the edge into node c. Leaf edges and runs
// without iterations score 1; internal edges score the fraction of
// iterations whose tree contained the same bipartition.
func bipartitionSupport(t *phylo, c int, counts map[string]int, iterations int) float64 {
	if c < t.nLeaves || iterations == 0 {
		return 1
	}
	return float64(counts[bipartitionKey(t, c)]) / float64(iterations)
}

// contamination marks leaf as plausibly descending from source in
// addition to its tree parent.
type contamination struct {
	leaf   int
	source int
}

// detectContamination flags witnesses that sit textually close to two
// witnesses that are unrelated to each other - the classic signature of
// a copy made from more than one exemplar. The secondary source is the
// farther of the two candidates (ties resolve to the higher ingestion
// index, keeping the earlier witness as the primary relative).
func detectContamination(dist [][]float64) []contamination {
	var out []contamination
	n := len(dist)
	for c := 0; c < n; c++ {
		bestDiv := 0.0
		source := -1
		for a := 0; a < n; a++ {
			if a == c || dist[c][a] > contaminationSimilarity {
				continue
			}
			for b := a + 1; b < n; b++ {
				if b == c || dist[c][b] > contaminationSimilarity {
					continue
				}
				div := dist[a][b]
				if div < contaminationDivergence || div <= dist[c][a] || div <= dist[c][b] {
					continue
				}
				if div > bestDiv {
					bestDiv = div
					if dist[c][b] >= dist[c][a] {
						source = b
					} else {
						source = a
					}
				}
			}
		}
		if source >= 0 {
			out = append(out, contamination{leaf: c, source: source})
		}
	}
	return out
}
