package render

import (
	"context"
	"strings"
	"testing"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/vgraph"
	"github.com/textcritica/collate/pkg/witness"
)

func fixture(t *testing.T) *collate.Result {
	t.Helper()
	tok := witness.NewTokenizer(witness.Config{})
	var ws []*witness.Witness
	for _, in := range []struct{ id, text string }{
		{"W1", "the cat sat"},
		{"W2", "the big cat sat"},
		{"W3", "the cat slept"},
	} {
		w, err := tok.Tokenize(in.id, in.text, nil)
		if err != nil {
			t.Fatalf("Tokenize() error = %v", err)
		}
		ws = append(ws, w)
	}
	res, err := collate.Collate(context.Background(), ws, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	return res
}

func TestGraphToDOT(t *testing.T) {
	res := fixture(t)
	g, err := vgraph.Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	dot := GraphToDOT(g, GraphOptions{})

	if !strings.HasPrefix(dot, "digraph variants {") {
		t.Errorf("unexpected header:\n%s", dot)
	}
	for _, want := range []string{`"start"`, `"end"`, `label="big"`, `label="W2"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s:\n%s", want, dot)
		}
	}

	// Shared readings collapse to one node; "the" appears once.
	if n := strings.Count(dot, `label="the"`); n != 1 {
		t.Errorf(`label="the" appears %d times, want 1`, n)
	}

	// Deterministic output for identical input.
	if again := GraphToDOT(g, GraphOptions{}); again != dot {
		t.Error("DOT output not deterministic")
	}
}

func TestGraphToDOT_Detailed(t *testing.T) {
	res := fixture(t)
	g, err := vgraph.Build(res)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	dot := GraphToDOT(g, GraphOptions{Detailed: true})
	if !strings.Contains(dot, "unit ") {
		t.Errorf("detailed DOT missing unit ranks:\n%s", dot)
	}
}

func TestStemmaToDOT(t *testing.T) {
	res := fixture(t)
	st, err := stemma.Infer(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	dot := StemmaToDOT(st)
	if !strings.HasPrefix(dot, "digraph stemma {") {
		t.Errorf("unexpected header:\n%s", dot)
	}
	for _, w := range res.Witnesses {
		if !strings.Contains(dot, `"`+w+`"`) {
			t.Errorf("DOT missing witness %s:\n%s", w, dot)
		}
	}
	if !strings.Contains(dot, "shape=ellipse") {
		t.Errorf("DOT missing hypothetical ancestors:\n%s", dot)
	}
}

func TestStemmaToDOT_ContaminationEdges(t *testing.T) {
	s := &stemma.Result{
		Method: stemma.MethodParsimony,
		Kind:   stemma.KindNetwork,
		Root:   "anc0",
		Nodes: []stemma.Node{
			{ID: "anc0"},
			{ID: "A", Witness: "A"},
			{ID: "B", Witness: "B"},
		},
		Edges: []stemma.Edge{
			{From: "anc0", To: "A", Support: 0.8},
			{From: "anc0", To: "B", Support: 0.8},
			{From: "A", To: "B", Support: 0.5, Contamination: true},
		},
	}

	dot := StemmaToDOT(s)
	if !strings.Contains(dot, "style=dashed, color=red") {
		t.Errorf("DOT missing dashed contamination edge:\n%s", dot)
	}
}
