package stemma

import "fmt"

// inferDistance runs deterministic average-linkage agglomerative
// clustering (UPGMA) and reports the resulting rooted binary tree.
// Edge support decays with the merge height of the parent: shallow
// merges (near-identical witnesses) score close to 1.
func inferDistance(witnessIDs []string, dist [][]float64, o Options) (*Result, error) {
	tree, heights := buildUPGMA(witnessIDs, dist)

	res := &Result{
		Method: MethodDistance,
		Kind:   KindTree,
		Root:   tree.ids[tree.root],
	}
	for i, id := range tree.ids {
		n := Node{ID: id}
		if i < tree.nLeaves {
			n.Witness = id
		}
		res.Nodes = append(res.Nodes, n)
	}
	for p := range tree.children {
		for _, c := range tree.children[p] {
			res.Edges = append(res.Edges, Edge{
				From:    tree.ids[p],
				To:      tree.ids[c],
				Support: 1 / (1 + heights[p]),
			})
		}
	}

	o.Logger.Debug("distance stemma built",
		"witnesses", tree.nLeaves,
		"root", res.Root)
	return res, nil
}

// cluster is one active group during agglomeration. members holds leaf
// indices; members[0] is the lowest, fixing deterministic tie-breaks.
type cluster struct {
	node    int
	members []int
}

// buildUPGMA agglomerates leaves into a rooted binary tree and returns
// it with per-node merge heights (leaves have height 0).
//
// Ties in merge distance resolve toward the pair seen first when
// scanning clusters in creation order, which orders by lowest witness
// ingestion index.
func buildUPGMA(witnessIDs []string, dist [][]float64) (*phylo, []float64) {
	n := len(witnessIDs)
	total := 2*n - 1
	t := &phylo{
		ids:      make([]string, n, total),
		parent:   make([]int, total),
		children: make([][]int, total),
		nLeaves:  n,
	}
	heights := make([]float64, total)
	for i := range t.parent {
		t.parent[i] = -1
	}
	copy(t.ids, witnessIDs)

	clusters := make([]cluster, n)
	for i := 0; i < n; i++ {
		clusters[i] = cluster{node: i, members: []int{i}}
	}

	next := n
	anc := 0
	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := avgLinkage(clusters[0], clusters[1], dist)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if i == 0 && j == 1 {
					continue
				}
				if d := avgLinkage(clusters[i], clusters[j], dist); d < best {
					best, bi, bj = d, i, j
				}
			}
		}

		anc++
		t.ids = append(t.ids, fmt.Sprintf("anc%d", anc))
		a, b := clusters[bi], clusters[bj]
		t.children[next] = []int{a.node, b.node}
		t.parent[a.node] = next
		t.parent[b.node] = next
		heights[next] = best / 2

		merged := cluster{node: next, members: append(append([]int{}, a.members...), b.members...)}
		clusters[bi] = merged
		clusters = append(clusters[:bj], clusters[bj+1:]...)
		next++
	}

	t.root = clusters[0].node
	return t, heights
}

// avgLinkage is the mean pairwise distance between two clusters.
func avgLinkage(a, b cluster, dist [][]float64) float64 {
	var sum float64
	for _, x := range a.members {
		for _, y := range b.members {
			sum += dist[x][y]
		}
	}
	return sum / float64(len(a.members)*len(b.members))
}
