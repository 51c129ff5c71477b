package witness

import (
	"reflect"
	"testing"

	"github.com/textcritica/collate/pkg/errors"
)

func TestTokenize_Basic(t *testing.T) {
	tok := NewTokenizer(Config{})
	w, err := tok.Tokenize("W1", "the cat sat", nil)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}

	want := []string{"the", "cat", "sat"}
	if got := w.Normalized(); !reflect.DeepEqual(got, want) {
		t.Errorf("Normalized() = %v, want %v", got, want)
	}

	// Offsets must slice back to the surface forms.
	for _, tk := range w.Tokens {
		if got := "the cat sat"[tk.Start:tk.End]; got != tk.Surface {
			t.Errorf("offsets [%d:%d] = %q, want %q", tk.Start, tk.End, got, tk.Surface)
		}
	}
}

func TestTokenize_InvalidEncoding(t *testing.T) {
	tok := NewTokenizer(Config{})
	_, err := tok.Tokenize("W1", "bad \xff byte", nil)
	if err == nil {
		t.Fatal("Tokenize() error = nil, want INVALID_ENCODING")
	}
	if !errors.Is(err, errors.ErrCodeInvalidEncoding) {
		t.Errorf("error code = %v, want INVALID_ENCODING", errors.GetCode(err))
	}
}

func TestTokenize_Empty(t *testing.T) {
	tok := NewTokenizer(Config{})
	w, err := tok.Tokenize("W1", "  \n\t ", nil)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	tok := NewTokenizer(Config{CaseFold: true, StripPunctuation: true})
	a, _ := tok.Tokenize("W1", "The Sunne, riseth.", nil)
	b, _ := tok.Tokenize("W1", "The Sunne, riseth.", nil)
	if !reflect.DeepEqual(a.Tokens, b.Tokens) {
		t.Error("identical input produced different token sequences")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		surface string
		want    string
	}{
		{
			name:    "no normalization",
			cfg:     Config{},
			surface: "Sunne,",
			want:    "Sunne,",
		},
		{
			name:    "case fold",
			cfg:     Config{CaseFold: true},
			surface: "Sunne",
			want:    "sunne",
		},
		{
			name:    "strip punctuation",
			cfg:     Config{StripPunctuation: true},
			surface: "sunne,",
			want:    "sunne",
		},
		{
			name:    "punctuation-only token keeps empty normalized form",
			cfg:     Config{StripPunctuation: true},
			surface: "—",
			want:    "",
		},
		{
			name: "abbreviation expansion",
			cfg: Config{
				CaseFold:            true,
				ExpandAbbreviations: map[string]string{"dns": "dominus"},
			},
			surface: "DNS",
			want:    "dominus",
		},
		{
			name: "spelling variant after expansion",
			cfg: Config{
				CaseFold:         true,
				StripPunctuation: true,
				SpellingVariants: map[string]string{"sunne": "sun"},
			},
			surface: "Sunne,",
			want:    "sun",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := NewTokenizer(tt.cfg)
			if got := tok.Normalize(tt.surface); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.surface, got, tt.want)
			}
		})
	}
}

func TestTokenize_PunctuationNeverDropsTokens(t *testing.T) {
	tok := NewTokenizer(Config{StripPunctuation: true})
	w, err := tok.Tokenize("W1", "a — b", nil)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (punctuation-only chunk must be kept)", w.Len())
	}
	if w.Tokens[1].Surface != "—" {
		t.Errorf("Tokens[1].Surface = %q, want %q", w.Tokens[1].Surface, "—")
	}
	if w.Tokens[1].Normalized != "" {
		t.Errorf("Tokens[1].Normalized = %q, want empty", w.Tokens[1].Normalized)
	}
}
