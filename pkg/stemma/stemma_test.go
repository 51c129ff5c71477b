package stemma

import (
	"context"
	"testing"
	"time"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
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

// parentOf finds the tree parent of a node ID (ignoring contamination edges).
func parentOf(res *Result, id string) string {
	for _, e := range res.Edges {
		if e.To == id && !e.Contamination {
			return e.From
		}
	}
	return ""
}

func TestInfer_InsufficientData(t *testing.T) {
	res := collation(t, map[string]string{"W1": "a b"}, []string{"W1"})
	_, err := Infer(context.Background(), res, nil)
	if !errors.Is(err, errors.ErrCodeInsufficientData) {
		t.Errorf("Infer() error = %v, want INSUFFICIENT_DATA", err)
	}
}

func TestInfer_UnknownMethod(t *testing.T) {
	res := collation(t, map[string]string{"W1": "a", "W2": "a"}, []string{"W1", "W2"})
	_, err := Infer(context.Background(), res, &Options{Method: "oracle"})
	if !errors.Is(err, errors.ErrCodeInvalidMethod) {
		t.Errorf("Infer() error = %v, want INVALID_METHOD", err)
	}
}

func TestInfer_DistanceGroupsSiblings(t *testing.T) {
	// Scenario: "a b c", "a x c", "a b c" - witnesses 1 and 3 are siblings.
	res := collation(t, map[string]string{
		"W1": "a b c",
		"W2": "a x c",
		"W3": "a b c",
	}, []string{"W1", "W2", "W3"})

	st, err := Infer(context.Background(), res, &Options{Method: MethodDistance})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if st.Kind != KindTree {
		t.Errorf("Kind = %v, want tree", st.Kind)
	}
	if p1, p3 := parentOf(st, "W1"), parentOf(st, "W3"); p1 == "" || p1 != p3 {
		t.Errorf("W1 parent %q, W3 parent %q; want shared ancestor", p1, p3)
	}
	if p1, p2 := parentOf(st, "W1"), parentOf(st, "W2"); p1 == p2 {
		t.Errorf("W1 and W2 share parent %q; want W2 more distant", p1)
	}
}

func TestInfer_StructuralValidity(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "the cat sat on the mat",
		"W2": "the big cat sat on a mat",
		"W3": "the cat sat on a mat",
		"W4": "the hound sat on the mat",
	}, []string{"W1", "W2", "W3", "W4"})

	for _, method := range []Method{MethodDistance, MethodParsimony} {
		st, err := Infer(context.Background(), res, &Options{Method: method})
		if err != nil {
			t.Fatalf("Infer(%s) error = %v", method, err)
		}

		// Every witness is a leaf with exactly one non-contamination parent.
		leaves := 0
		for _, n := range st.Nodes {
			if n.Witness == "" {
				continue
			}
			leaves++
			parents := 0
			children := 0
			for _, e := range st.Edges {
				if e.To == n.ID && !e.Contamination {
					parents++
				}
				if e.From == n.ID && !e.Contamination {
					children++
				}
			}
			if parents != 1 {
				t.Errorf("%s: witness %s has %d parents, want 1", method, n.ID, parents)
			}
			if children != 0 {
				t.Errorf("%s: witness %s has %d children, want 0 (leaves only)", method, n.ID, children)
			}
		}
		if leaves != 4 {
			t.Errorf("%s: %d witness leaves, want 4", method, leaves)
		}

		// Support scores stay within [0, 1].
		for _, e := range st.Edges {
			if e.Support < 0 || e.Support > 1 {
				t.Errorf("%s: edge %s->%s support = %v, want [0,1]", method, e.From, e.To, e.Support)
			}
		}
	}
}

func TestInfer_ParsimonyContamination(t *testing.T) {
	// A witness interleaving two unrelated witnesses shows descent from
	// both: the result must be a network with a contamination edge.
	res := collation(t, map[string]string{
		"A": "alpha beta gamma delta",
		"B": "one two three four",
		"C": "alpha one beta two gamma three delta four",
	}, []string{"A", "B", "C"})

	st, err := Infer(context.Background(), res, &Options{Method: MethodParsimony})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	if st.Kind != KindNetwork {
		t.Fatalf("Kind = %v, want network", st.Kind)
	}
	if !st.Ambiguous {
		t.Error("Ambiguous = false, want true")
	}
	found := false
	for _, e := range st.Edges {
		if e.Contamination && e.To == "C" {
			found = true
		}
	}
	if !found {
		t.Errorf("Edges = %+v, want contamination edge into C", st.Edges)
	}
}

func TestInfer_ParsimonyCleanTreeStaysTree(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c",
		"W2": "a x c",
		"W3": "a b c",
	}, []string{"W1", "W2", "W3"})

	st, err := Infer(context.Background(), res, &Options{Method: MethodParsimony})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if st.Kind != KindTree {
		t.Errorf("Kind = %v, want tree (no contamination)", st.Kind)
	}
	if st.Ambiguous {
		t.Error("Ambiguous = true, want false")
	}
}

func TestInfer_ParsimonyHonorsBudget(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c d e f",
		"W2": "a b x d e f",
		"W3": "a y c d e f",
		"W4": "a b c d z f",
		"W5": "q b c d e f",
	}, []string{"W1", "W2", "W3", "W4", "W5"})

	st, err := Infer(context.Background(), res, &Options{
		Method:        MethodParsimony,
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if st.Iterations > 5 {
		t.Errorf("Iterations = %d, want <= 5", st.Iterations)
	}
	if st.Root == "" || len(st.Edges) == 0 {
		t.Error("budgeted run returned no tree; want best tree so far")
	}
}

func TestInfer_ParsimonyCancellation(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c",
		"W2": "a x c",
		"W3": "y b c",
	}, []string{"W1", "W2", "W3"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := Infer(ctx, res, &Options{Method: MethodParsimony, TimeBudget: time.Minute})
	if err != nil {
		t.Fatalf("Infer() error = %v (cancellation must return best-so-far)", err)
	}
	if st.Root == "" {
		t.Error("cancelled run returned no tree")
	}
}

func TestInfer_ParsimonyDeterministicWithSeed(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c d",
		"W2": "a x c d",
		"W3": "a b y d",
		"W4": "z b c d",
	}, []string{"W1", "W2", "W3", "W4"})

	first, err := Infer(context.Background(), res, &Options{Method: MethodParsimony, Seed: 7})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	again, err := Infer(context.Background(), res, &Options{Method: MethodParsimony, Seed: 7})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if first.Score != again.Score || first.Root != again.Root || len(first.Edges) != len(again.Edges) {
		t.Error("same seed produced different stemmata")
	}
}

func TestDistanceMatrix(t *testing.T) {
	res := collation(t, map[string]string{
		"W1": "a b c",
		"W2": "a x c",
		"W3": "a b c",
	}, []string{"W1", "W2", "W3"})

	dist := DistanceMatrix(res)
	if got := dist[0][2]; got != 0 {
		t.Errorf("dist(W1,W3) = %v, want 0", got)
	}
	want := 1.0 / 3.0
	if got := dist[0][1]; got != want {
		t.Errorf("dist(W1,W2) = %v, want %v", got, want)
	}
	for i := range dist {
		if dist[i][i] != 0 {
			t.Errorf("dist[%d][%d] = %v, want 0", i, i, dist[i][i])
		}
		for j := range dist {
			if dist[i][j] != dist[j][i] {
				t.Errorf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
}
