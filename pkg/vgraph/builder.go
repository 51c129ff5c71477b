package vgraph

import (
	"fmt"
	"slices"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
)

// Boundary node identifiers.
const (
	StartID = "start"
	EndID   = "end"
)

// nodeID names the node for a reading at a variation unit. Witnesses
// sharing a normalized reading at a unit share the node.
func nodeID(rank int, reading string) string {
	return fmt.Sprintf("u%d:%s", rank, reading)
}

// Build compacts a collation result into a variant graph.
//
// Variation units are walked in order; witnesses with identical
// normalized readings at a unit reuse the same node, so the node count
// at each rank never exceeds the number of distinct readings there.
// Every witness, including all-gap ones, gets a start-to-end path.
func Build(res *collate.Result) (*Graph, error) {
	if res == nil || len(res.Witnesses) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty collation result")
	}

	g := New(res.Witnesses)
	g.units = len(res.Units)

	if err := g.AddNode(Node{ID: StartID, Rank: -1, Kind: NodeKindStart}); err != nil {
		return nil, err
	}
	if err := g.AddNode(Node{ID: EndID, Rank: len(res.Units), Kind: NodeKindEnd}); err != nil {
		return nil, err
	}

	last := make(map[string]string, len(res.Witnesses))
	for _, w := range res.Witnesses {
		last[w] = StartID
	}

	for _, unit := range res.Units {
		for _, w := range res.Witnesses {
			cell, ok := unit.Cells[w]
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidInput,
					"unit %d has no cell for witness %s", unit.Index, w)
			}
			if cell.Gap {
				continue
			}
			id := nodeID(unit.Index, cell.Reading)
			if _, exists := g.Node(id); !exists {
				if err := g.AddNode(Node{ID: id, Rank: unit.Index, Reading: cell.Reading}); err != nil {
					return nil, err
				}
			}
			if err := g.AddTraversal(last[w], id, w); err != nil {
				return nil, err
			}
			last[w] = id
		}
	}

	for _, w := range res.Witnesses {
		if err := g.AddTraversal(last[w], EndID, w); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ToUnits exports the graph back into an ordered list of variation
// units. Rebuilding a graph from its own exported units yields an
// isomorphic graph.
func (g *Graph) ToUnits() ([]collate.VariationUnit, error) {
	cells := make([]map[string]collate.Cell, g.units)
	for i := range cells {
		cells[i] = make(map[string]collate.Cell, len(g.witnesses))
		for _, w := range g.witnesses {
			cells[i][w] = collate.Cell{Gap: true}
		}
	}

	for _, w := range g.witnesses {
		src, ok := g.Source()
		if !ok {
			return nil, ErrBrokenWitnessPath
		}
		cur := src.ID
		for cur != EndID {
			next := ""
			for _, succ := range g.outgoing[cur] {
				idx := g.edgeIndex[[2]string{cur, succ}]
				if slices.Contains(g.edges[idx].Witnesses, w) {
					next = succ
					break
				}
			}
			if next == "" {
				return nil, fmt.Errorf("%w: witness %s stops at %s", ErrBrokenWitnessPath, w, cur)
			}
			if n := g.nodes[next]; n.Kind == NodeKindReading {
				cells[n.Rank][w] = collate.Cell{Reading: n.Reading}
			}
			cur = next
		}
	}

	units := make([]collate.VariationUnit, g.units)
	for i := range units {
		units[i] = collate.VariationUnit{Index: i, Cells: cells[i]}
	}
	return units, nil
}
