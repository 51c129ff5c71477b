package collate

import (
	"context"
	"reflect"
	"testing"

	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/witness"
)

func mustWitness(t *testing.T, id, text string) *witness.Witness {
	t.Helper()
	w, err := witness.NewTokenizer(witness.Config{}).Tokenize(id, text, nil)
	if err != nil {
		t.Fatalf("Tokenize(%q) error = %v", id, err)
	}
	return w
}

// rowFor extracts the non-gap readings of one witness across all units.
func rowFor(res *Result, id string) []string {
	var out []string
	for _, u := range res.Units {
		if c := u.Cells[id]; !c.Gap {
			out = append(out, c.Reading)
		}
	}
	return out
}

func TestCollate_InsertedToken(t *testing.T) {
	// "the cat sat" vs "the big cat sat": 4 units, unit 1 is a gap in W1.
	res, err := Collate(context.Background(), []*witness.Witness{
		mustWitness(t, "W1", "the cat sat"),
		mustWitness(t, "W2", "the big cat sat"),
	}, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}

	if len(res.Units) != 4 {
		t.Fatalf("len(Units) = %d, want 4", len(res.Units))
	}

	u := res.Units[1]
	if c := u.Cells["W1"]; !c.Gap {
		t.Errorf("unit 1 W1 = %+v, want gap", c)
	}
	if c := u.Cells["W2"]; c.Gap || c.Reading != "big" {
		t.Errorf("unit 1 W2 = %+v, want reading %q", c, "big")
	}
}

func TestCollate_IdenticalWitnesses(t *testing.T) {
	res, err := Collate(context.Background(), []*witness.Witness{
		mustWitness(t, "W1", "a b c"),
		mustWitness(t, "W2", "a b c"),
	}, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if len(res.Units) != 3 {
		t.Fatalf("len(Units) = %d, want 3", len(res.Units))
	}
	for _, u := range res.Units {
		if !u.IsUniform() {
			t.Errorf("unit %d = %+v, want uniform", u.Index, u.Cells)
		}
	}
}

func TestCollate_PerWitnessOrderPreserved(t *testing.T) {
	ws := []*witness.Witness{
		mustWitness(t, "W1", "a b c d e"),
		mustWitness(t, "W2", "a x c e"),
		mustWitness(t, "W3", "b c d y e"),
	}
	res, err := Collate(context.Background(), ws, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}

	// Every witness contributes exactly one cell per unit.
	for _, u := range res.Units {
		if len(u.Cells) != len(ws) {
			t.Fatalf("unit %d has %d cells, want %d", u.Index, len(u.Cells), len(ws))
		}
	}

	// Removing gaps reconstructs each witness's normalized sequence.
	for _, w := range ws {
		if got := rowFor(res, w.ID); !reflect.DeepEqual(got, w.Normalized()) {
			t.Errorf("row %s = %v, want %v", w.ID, got, w.Normalized())
		}
	}

	// No unit is empty of content across all witnesses.
	for _, u := range res.Units {
		if len(u.Readings()) == 0 {
			t.Errorf("unit %d is all gaps", u.Index)
		}
	}
}

func TestCollate_EmptyWitnessDiagnostic(t *testing.T) {
	res, err := Collate(context.Background(), []*witness.Witness{
		mustWitness(t, "W1", "a b"),
		mustWitness(t, "W2", ""),
		mustWitness(t, "W3", "a b"),
	}, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v (empty witness must not abort)", err)
	}

	found := false
	for _, d := range res.Diagnostics {
		if d.Code == errors.ErrCodeEmptyWitness && d.Witness == "W2" {
			found = true
		}
	}
	if !found {
		t.Errorf("Diagnostics = %+v, want EMPTY_WITNESS for W2", res.Diagnostics)
	}

	for _, u := range res.Units {
		if c := u.Cells["W2"]; !c.Gap {
			t.Errorf("unit %d W2 = %+v, want gap", u.Index, c)
		}
	}
}

func TestCollate_PermutationKeepsReadingSets(t *testing.T) {
	build := func(order []string) *Result {
		texts := map[string]string{
			"W1": "the cat sat on the mat",
			"W2": "the big cat sat on a mat",
			"W3": "the cat sat on a mat",
		}
		var ws []*witness.Witness
		for _, id := range order {
			ws = append(ws, mustWitness(t, id, texts[id]))
		}
		res, err := Collate(context.Background(), ws, nil)
		if err != nil {
			t.Fatalf("Collate(%v) error = %v", order, err)
		}
		return res
	}

	// Collect the multiset of per-unit distinct reading sets.
	sets := func(res *Result) map[string]int {
		out := map[string]int{}
		for _, u := range res.Units {
			key := ""
			for _, r := range u.Readings() {
				key += r + "|"
			}
			out[key]++
		}
		return out
	}

	a := build([]string{"W1", "W2", "W3"})
	b := build([]string{"W3", "W1", "W2"})
	if !reflect.DeepEqual(sets(a), sets(b)) {
		t.Errorf("reading sets differ across ingestion orders:\n%v\n%v", sets(a), sets(b))
	}
}

func TestCollate_Deterministic(t *testing.T) {
	ws := func() []*witness.Witness {
		return []*witness.Witness{
			mustWitness(t, "W1", "a b c d"),
			mustWitness(t, "W2", "a c d"),
			mustWitness(t, "W3", "a b x d"),
		}
	}
	first, err := Collate(context.Background(), ws(), nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	for range 5 {
		again, err := Collate(context.Background(), ws(), nil)
		if err != nil {
			t.Fatalf("Collate() error = %v", err)
		}
		if !reflect.DeepEqual(first.Units, again.Units) {
			t.Fatal("repeated collation produced different units")
		}
	}
}

func TestCollate_InputValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := Collate(ctx, nil, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("no witnesses: error = %v, want INVALID_INPUT", err)
	}

	dup := []*witness.Witness{mustWitness(t, "W1", "a"), mustWitness(t, "W1", "b")}
	if _, err := Collate(ctx, dup, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("duplicate IDs: error = %v, want INVALID_INPUT", err)
	}

	bad := &Options{TieBreak: "coin_flip"}
	if _, err := Collate(ctx, dup[:1], bad); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("bad tie_break: error = %v, want INVALID_CONFIG", err)
	}
}

func TestCollate_SingleWitness(t *testing.T) {
	res, err := Collate(context.Background(), []*witness.Witness{
		mustWitness(t, "W1", "a b c"),
	}, nil)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if len(res.Units) != 3 {
		t.Errorf("len(Units) = %d, want 3", len(res.Units))
	}
}
