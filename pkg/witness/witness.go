// Package witness models transcribed versions of a text and turns raw
// transcriptions into comparable token sequences.
//
// A Witness is one transcribed copy of the underlying text. It is created
// once at ingestion by a Tokenizer and never mutated afterwards; every
// downstream stage (alignment, collation, graph building) treats it as a
// read-only snapshot.
//
// Tokenization splits the raw text on whitespace and records byte offsets,
// then applies the configured normalization steps in a fixed order:
// case folding, punctuation stripping, abbreviation expansion, spelling
// canonicalization. The same input and configuration always produce the
// same token sequence.
package witness

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/textcritica/collate/pkg/errors"
)

// Metadata stores arbitrary key-value pairs attached to a witness.
// The collation core treats it as opaque; it is carried through exports
// for consumers (shelf marks, sigla, dates). Metadata maps are never nil
// after ingestion.
type Metadata map[string]any

// Token is a single comparable unit of a witness.
//
// Surface preserves the text exactly as transcribed. Normalized is the
// form alignment compares; it may be empty when the token was pure
// punctuation and strip_punctuation is enabled. Start and End are byte
// offsets of the surface form in the original text.
type Token struct {
	Surface    string `json:"surface"`
	Normalized string `json:"normalized"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// Witness is an ordered sequence of tokens from one transcription.
// Immutable once built - callers must not modify Tokens after ingestion.
type Witness struct {
	ID     string   `json:"id"`
	Meta   Metadata `json:"meta,omitempty"`
	Tokens []Token  `json:"tokens"`
}

// Len returns the number of tokens in the witness.
func (w *Witness) Len() int { return len(w.Tokens) }

// Normalized returns the normalized forms of all tokens in order.
// This is the sequence the aligner and collation engine operate on.
func (w *Witness) Normalized() []string {
	out := make([]string, len(w.Tokens))
	for i, t := range w.Tokens {
		out[i] = t.Normalized
	}
	return out
}

// Config controls normalization during tokenization.
// The zero value performs whitespace tokenization with no normalization
// beyond copying the surface form.
type Config struct {
	// CaseFold lowercases normalized forms.
	CaseFold bool `json:"case_fold" toml:"case_fold"`

	// StripPunctuation removes punctuation runes from normalized forms.
	// Surface forms are never altered.
	StripPunctuation bool `json:"strip_punctuation" toml:"strip_punctuation"`

	// ExpandAbbreviations maps abbreviated forms to their expansion
	// (e.g. "dns" -> "dominus"). Applied after case folding, so keys
	// should be lowercase when CaseFold is set.
	ExpandAbbreviations map[string]string `json:"expand_abbreviations,omitempty" toml:"expand_abbreviations"`

	// SpellingVariants maps historical spellings to a canonical form
	// (e.g. "sunne" -> "sun"). Applied last.
	SpellingVariants map[string]string `json:"spelling_variants,omitempty" toml:"spelling_variants"`
}

// Tokenizer converts raw transcription text into witnesses.
// It is deterministic and side-effect free; a single Tokenizer can be
// shared across goroutines.
type Tokenizer struct {
	cfg Config
}

// NewTokenizer creates a tokenizer with the given normalization config.
func NewTokenizer(cfg Config) *Tokenizer {
	return &Tokenizer{cfg: cfg}
}

// Tokenize splits text into tokens and applies normalization.
// Returns an INVALID_ENCODING error when text is not valid UTF-8.
// Whitespace is the only content that does not surface as a token;
// punctuation-only chunks are kept (possibly with an empty normalized
// form) so nothing is silently dropped.
func (t *Tokenizer) Tokenize(id, text string, meta Metadata) (*Witness, error) {
	if !utf8.ValidString(text) {
		return nil, errors.New(errors.ErrCodeInvalidEncoding, "witness %s: text is not valid UTF-8", id)
	}
	if meta == nil {
		meta = Metadata{}
	}

	w := &Witness{ID: id, Meta: meta}
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				w.Tokens = append(w.Tokens, t.token(text[start:i], start, i))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		w.Tokens = append(w.Tokens, t.token(text[start:], start, len(text)))
	}
	return w, nil
}

// token builds a single token from a whitespace-delimited chunk.
func (t *Tokenizer) token(surface string, start, end int) Token {
	return Token{
		Surface:    surface,
		Normalized: t.Normalize(surface),
		Start:      start,
		End:        end,
	}
}

// Normalize applies the configured normalization steps to a single
// surface form. Exposed so consumers can normalize query terms the same
// way ingested witnesses were normalized.
func (t *Tokenizer) Normalize(surface string) string {
	norm := surface
	if t.cfg.CaseFold {
		norm = strings.ToLower(norm)
	}
	if t.cfg.StripPunctuation {
		norm = strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				return -1
			}
			return r
		}, norm)
	}
	if exp, ok := t.cfg.ExpandAbbreviations[norm]; ok {
		norm = exp
	}
	if canon, ok := t.cfg.SpellingVariants[norm]; ok {
		norm = canon
	}
	return norm
}
