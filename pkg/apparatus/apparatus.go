// Package apparatus serializes collation results for consumers: a JSON
// document that round-trips losslessly, and a plain-text critical
// apparatus for human readers.
//
// The JSON form is the canonical exchange format between the collation
// core and visualization or editing collaborators; feeding an exported
// document back into the variant graph builder reproduces an isomorphic
// graph.
package apparatus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/errors"
)

// WriteJSON encodes a collation result as indented JSON.
// The output can be re-imported with [ReadJSON] for round-trip processing.
func WriteJSON(res *collate.Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// MarshalJSON returns the JSON form of a collation result as bytes.
func MarshalJSON(res *collate.Result) ([]byte, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportJSON writes a collation result to a JSON file at path.
func ExportJSON(res *collate.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(res, f)
}

// ReadJSON decodes a collation result from JSON and validates its
// structural invariants: every unit must carry exactly one cell per
// witness.
func ReadJSON(r io.Reader) (*collate.Result, error) {
	var res collate.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode collation")
	}
	if err := validate(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ImportJSON reads a collation result from a JSON file at path.
func ImportJSON(path string) (*collate.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

func validate(res *collate.Result) error {
	if len(res.Witnesses) == 0 {
		return errors.New(errors.ErrCodeInvalidFormat, "collation names no witnesses")
	}
	ids := map[string]bool{}
	for _, w := range res.Witnesses {
		if ids[w] {
			return errors.New(errors.ErrCodeInvalidFormat, "duplicate witness %q", w)
		}
		ids[w] = true
	}
	for i, u := range res.Units {
		if u.Index != i {
			return errors.New(errors.ErrCodeInvalidFormat, "unit %d has index %d", i, u.Index)
		}
		if len(u.Cells) != len(res.Witnesses) {
			return errors.New(errors.ErrCodeInvalidFormat,
				"unit %d has %d cells, want %d", i, len(u.Cells), len(res.Witnesses))
		}
		for w := range u.Cells {
			if !ids[w] {
				return errors.New(errors.ErrCodeInvalidFormat, "unit %d cites unknown witness %q", i, w)
			}
		}
	}
	return nil
}
