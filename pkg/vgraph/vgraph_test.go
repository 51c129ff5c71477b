package vgraph

import (
	"context"
	"reflect"
	"testing"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/witness"
)

func collation(t *testing.T, texts map[string]string, order []string) *collate.Result {
	t.Helper()
	tok := witness.NewTokenizer(witness.Config{})
	var ws []*witness.Witness
	for _, id := range order {
		w, err := tok.Tokenize(id, texts[id], nil)
		if err != nil {
			t.Fatalf("Tokenize(%s) error = %v", id, err)
		}
		ws = append(ws, w)
	}
	res, err := collate.Collate(context.Background(), ws, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	return res
}

func TestBuild_RoundTrip(t *testing.T) {
	texts := map[string]string{
		"W1": "the cat sat on the mat",
		"W2": "the big cat sat on a mat",
		"W3": "the cat sat on a mat today",
		"W4": "",
	}
	order := []string{"W1", "W2", "W3", "W4"}
	res := collation(t, texts, order)

	g, err := Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tok := witness.NewTokenizer(witness.Config{})
	for _, id := range order {
		w, _ := tok.Tokenize(id, texts[id], nil)
		path, err := g.PathFor(id)
		if err != nil {
			t.Fatalf("PathFor(%s) error = %v", id, err)
		}
		want := w.Normalized()
		if len(path) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(path, want) {
			t.Errorf("PathFor(%s) = %v, want %v", id, path, want)
		}
	}
}

func TestBuild_SharedReadingsMergeNodes(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c",
		"W2": "a x c",
		"W3": "a b c",
	}, []string{"W1", "W2", "W3"})

	g, err := Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Node count per rank never exceeds the distinct readings there.
	perRank := map[int]int{}
	for _, n := range g.Nodes() {
		if n.Kind == NodeKindReading {
			perRank[n.Rank]++
		}
	}
	for _, u := range res.Units {
		if got, want := perRank[u.Index], len(u.Readings()); got > want {
			t.Errorf("rank %d has %d nodes, want <= %d", u.Index, got, want)
		}
	}

	// "a" and "c" are attested by all three witnesses as single nodes.
	if perRank[0] != 1 {
		t.Errorf("rank 0 nodes = %d, want 1", perRank[0])
	}
	if perRank[1] != 2 {
		t.Errorf("rank 1 nodes = %d, want 2 (b and x)", perRank[1])
	}
}

func TestBuild_SingleSourceAndSink(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "x y",
		"W2": "x z",
	}, []string{"W1", "W2"})

	g, err := Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	src, ok := g.Source()
	if !ok || src.ID != StartID {
		t.Errorf("Source() = %v, %v; want start node", src, ok)
	}
	sink, ok := g.Sink()
	if !ok || sink.ID != EndID {
		t.Errorf("Sink() = %v, %v; want end node", sink, ok)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestToUnits_Idempotent(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "the cat sat",
		"W2": "the big cat sat",
		"W3": "a cat sat",
	}, []string{"W1", "W2", "W3"})

	g1, err := Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	units, err := g1.ToUnits()
	if err != nil {
		t.Fatalf("ToUnits() error = %v", err)
	}

	g2, err := Build(&collate.Result{Witnesses: res.Witnesses, Units: units})
	if err != nil {
		t.Fatalf("rebuild error = %v", err)
	}

	// Isomorphism: same node set (by rank+reading) and same edge set.
	key := func(g *Graph) map[string][]string {
		out := map[string][]string{}
		for _, e := range g.Edges() {
			out[e.From+"->"+e.To] = e.Witnesses
		}
		return out
	}
	if g1.NodeCount() != g2.NodeCount() {
		t.Errorf("NodeCount: %d vs %d", g1.NodeCount(), g2.NodeCount())
	}
	if !reflect.DeepEqual(key(g1), key(g2)) {
		t.Errorf("edge sets differ:\n%v\n%v", key(g1), key(g2))
	}
}

func TestGraph_ValidateRejectsCycle(t *testing.T) {
	g := New([]string{"W1"})
	g.AddNode(Node{ID: StartID, Rank: -1, Kind: NodeKindStart})
	g.AddNode(Node{ID: EndID, Rank: 2, Kind: NodeKindEnd})
	g.AddNode(Node{ID: "u0:a", Rank: 0, Reading: "a"})
	g.AddNode(Node{ID: "u1:b", Rank: 1, Reading: "b"})
	g.AddTraversal(StartID, "u0:a", "W1")
	g.AddTraversal("u0:a", "u1:b", "W1")
	g.AddTraversal("u1:b", "u0:a", "W1") // cycle
	g.AddTraversal("u1:b", EndID, "W1")

	if err := g.Validate(); err != ErrGraphHasCycle {
		t.Errorf("Validate() = %v, want ErrGraphHasCycle", err)
	}
}

func TestGraph_AddNodeErrors(t *testing.T) {
	g := New(nil)
	if err := g.AddNode(Node{}); err != ErrInvalidNodeID {
		t.Errorf("AddNode(empty) = %v, want ErrInvalidNodeID", err)
	}
	if err := g.AddNode(Node{ID: "n"}); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	if err := g.AddNode(Node{ID: "n"}); err != ErrDuplicateNodeID {
		t.Errorf("AddNode(dup) = %v, want ErrDuplicateNodeID", err)
	}
	if err := g.AddTraversal("n", "missing", "W1"); err != ErrUnknownTargetNode {
		t.Errorf("AddTraversal() = %v, want ErrUnknownTargetNode", err)
	}
	if err := g.AddTraversal("missing", "n", "W1"); err != ErrUnknownSourceNode {
		t.Errorf("AddTraversal() = %v, want ErrUnknownSourceNode", err)
	}
}
