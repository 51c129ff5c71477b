package apparatus

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/witness"
)

func collation(t *testing.T) *collate.Result {
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

func TestJSON_RoundTrip(t *testing.T) {
	res := collation(t)

	var buf bytes.Buffer
	if err := WriteJSON(res, &buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !reflect.DeepEqual(back.Witnesses, res.Witnesses) {
		t.Errorf("Witnesses = %v, want %v", back.Witnesses, res.Witnesses)
	}
	if !reflect.DeepEqual(back.Units, res.Units) {
		t.Errorf("Units differ after round trip")
	}
}

func TestReadJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: "nope"},
		{name: "no witnesses", in: `{"witnesses":[],"units":[]}`},
		{name: "duplicate witness", in: `{"witnesses":["W1","W1"],"units":[]}`},
		{
			name: "missing cell",
			in:   `{"witnesses":["W1","W2"],"units":[{"index":0,"cells":{"W1":{"reading":"a"}}}]}`,
		},
		{
			name: "unknown witness in cell",
			in:   `{"witnesses":["W1"],"units":[{"index":0,"cells":{"W9":{"reading":"a"}}}]}`,
		},
		{
			name: "wrong unit index",
			in:   `{"witnesses":["W1"],"units":[{"index":3,"cells":{"W1":{"reading":"a"}}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.in))
			if !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("ReadJSON() error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestWriteText(t *testing.T) {
	res := collation(t)

	var buf bytes.Buffer
	if err := WriteText(res, &buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	// "big" appears only in W2; the other two witnesses omit it.
	if !strings.Contains(out, "big] W2") {
		t.Errorf("output missing big entry:\n%s", out)
	}
	if !strings.Contains(out, "om. W1 W3") {
		t.Errorf("output missing omission sigla:\n%s", out)
	}

	// The uniform "the" unit must not appear.
	if strings.Contains(out, "the]") {
		t.Errorf("uniform unit leaked into apparatus:\n%s", out)
	}

	// Majority reading is listed first at the sat/slept unit.
	if !strings.Contains(out, "sat] W1 W2 | slept] W3") {
		t.Errorf("output missing ordered variant entries:\n%s", out)
	}
}
