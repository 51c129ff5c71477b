package align

import (
	"reflect"
	"testing"
)

func words(ws ...string) []string { return ws }

func TestAlign_Identical(t *testing.T) {
	a := words("the", "cat", "sat")
	res, err := Align(a, a, &Options{ReturnPath: true})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if res.Cost != 0 {
		t.Errorf("Cost = %v, want 0", res.Cost)
	}
	for _, s := range res.Steps {
		if s.Op != OpMatch {
			t.Errorf("step %+v, want all matches", s)
		}
	}
	if len(res.Steps) != 3 {
		t.Errorf("len(Steps) = %d, want 3", len(res.Steps))
	}
}

func TestAlign_SingleInsertion(t *testing.T) {
	// Scenario: "the cat sat" vs "the big cat sat" - one insertion, cost 1.
	a := words("the", "cat", "sat")
	b := words("the", "big", "cat", "sat")
	res, err := Align(a, b, &Options{ReturnPath: true})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if res.Cost != 1 {
		t.Errorf("Cost = %v, want 1", res.Cost)
	}

	want := []Step{
		{Op: OpMatch, A: 0, B: 0},
		{Op: OpInsert, A: -1, B: 1},
		{Op: OpMatch, A: 1, B: 2},
		{Op: OpMatch, A: 2, B: 3},
	}
	if !reflect.DeepEqual(res.Steps, want) {
		t.Errorf("Steps = %+v, want %+v", res.Steps, want)
	}
}

func TestAlign_EmptySequences(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		wantCost float64
		wantOps  []Op
	}{
		{name: "both empty", a: nil, b: nil, wantCost: 0, wantOps: nil},
		{name: "a empty", a: nil, b: words("x", "y"), wantCost: 2, wantOps: []Op{OpInsert, OpInsert}},
		{name: "b empty", a: words("x", "y"), b: nil, wantCost: 2, wantOps: []Op{OpDelete, OpDelete}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Align(tt.a, tt.b, &Options{ReturnPath: true})
			if err != nil {
				t.Fatalf("Align() error = %v", err)
			}
			if res.Cost != tt.wantCost {
				t.Errorf("Cost = %v, want %v", res.Cost, tt.wantCost)
			}
			var ops []Op
			for _, s := range res.Steps {
				ops = append(ops, s.Op)
			}
			if !reflect.DeepEqual(ops, tt.wantOps) {
				t.Errorf("ops = %v, want %v", ops, tt.wantOps)
			}
		})
	}
}

func TestAlign_PrefersSubstitutionOverIndelPair(t *testing.T) {
	a := words("a", "x", "c")
	b := words("a", "y", "c")
	res, err := Align(a, b, &Options{ReturnPath: true})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if res.Cost != 1 {
		t.Errorf("Cost = %v, want 1", res.Cost)
	}
	want := []Step{
		{Op: OpMatch, A: 0, B: 0},
		{Op: OpSubstitute, A: 1, B: 1},
		{Op: OpMatch, A: 2, B: 2},
	}
	if !reflect.DeepEqual(res.Steps, want) {
		t.Errorf("Steps = %+v, want %+v", res.Steps, want)
	}
}

func TestAlign_Transposition(t *testing.T) {
	a := words("the", "cat", "black")
	b := words("the", "black", "cat")
	res, err := Align(a, b, &Options{ReturnPath: true})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if res.Cost != 1 {
		t.Errorf("Cost = %v, want 1 (single transposition)", res.Cost)
	}
	found := false
	for _, s := range res.Steps {
		if s.Op == OpTranspose {
			found = true
		}
	}
	if !found {
		t.Errorf("Steps = %+v, want a transposition step", res.Steps)
	}
}

func TestAlign_TranspositionDisabled(t *testing.T) {
	costs := DefaultCosts()
	costs.Transposition = -1
	a := words("cat", "black")
	b := words("black", "cat")
	res, err := Align(a, b, &Options{Costs: &costs})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if res.Cost != 2 {
		t.Errorf("Cost = %v, want 2 (two substitutions)", res.Cost)
	}
}

func TestAlign_PathNeedsFullMatrix(t *testing.T) {
	_, err := Align(words("a"), words("b"), &Options{ReturnPath: true, MemoryMode: RollingRows})
	if err != ErrPathNeedsFullMatrix {
		t.Errorf("error = %v, want ErrPathNeedsFullMatrix", err)
	}
}

func TestDistance_MatchesAlign(t *testing.T) {
	tests := []struct {
		a, b []string
	}{
		{words("the", "cat", "sat"), words("the", "big", "cat", "sat")},
		{words("a", "b", "c", "d"), words("a", "c", "b")},
		{nil, words("x")},
		{words("p", "q"), words("p", "q")},
	}
	for _, tt := range tests {
		full, err := Align(tt.a, tt.b, nil)
		if err != nil {
			t.Fatalf("Align() error = %v", err)
		}
		if d := Distance(tt.a, tt.b, DefaultCosts()); d != full.Cost {
			t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, d, full.Cost)
		}
	}
}

func TestAlign_Deterministic(t *testing.T) {
	a := words("a", "b", "c", "d", "e")
	b := words("a", "c", "e", "f")
	first, err := Align(a, b, &Options{ReturnPath: true})
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	for range 10 {
		again, _ := Align(a, b, &Options{ReturnPath: true})
		if !reflect.DeepEqual(first, again) {
			t.Fatal("repeated alignment produced a different path")
		}
	}
}
