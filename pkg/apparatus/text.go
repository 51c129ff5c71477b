package apparatus

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/textcritica/collate/pkg/collate"
)

// gapSiglum marks an omission in the printed apparatus.
const gapSiglum = "om."

// WriteText renders a collation as a plain-text critical apparatus.
//
// Uniform units print as running text; units with variation print one
// entry per distinct reading, each followed by the sigla of the
// witnesses attesting it, in the classic lemma] variant notation:
//
//	3 sat] W1 W2 | sleeps] W3 | om. W4
//
// The majority reading is listed first; omissions last.
func WriteText(res *collate.Result, w io.Writer) error {
	for _, u := range res.Units {
		if u.IsUniform() {
			continue
		}
		entries, omitted := groupReadings(res, u)
		line := make([]string, 0, len(entries)+1)
		for _, e := range entries {
			line = append(line, fmt.Sprintf("%s] %s", e.reading, strings.Join(e.sigla, " ")))
		}
		if len(omitted) > 0 {
			line = append(line, fmt.Sprintf("%s %s", gapSiglum, strings.Join(omitted, " ")))
		}
		if _, err := fmt.Fprintf(w, "%d %s\n", u.Index, strings.Join(line, " | ")); err != nil {
			return err
		}
	}
	return nil
}

type entry struct {
	reading string
	sigla   []string
}

// groupReadings buckets witnesses by reading, ordering entries by
// descending attestation count, then alphabetically by reading.
func groupReadings(res *collate.Result, u collate.VariationUnit) ([]entry, []string) {
	byReading := map[string][]string{}
	var omitted []string
	for _, wid := range res.Witnesses {
		c := u.Cells[wid]
		if c.Gap {
			omitted = append(omitted, wid)
			continue
		}
		byReading[c.Reading] = append(byReading[c.Reading], wid)
	}

	entries := make([]entry, 0, len(byReading))
	for r, sigla := range byReading {
		entries = append(entries, entry{reading: r, sigla: sigla})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].sigla) != len(entries[j].sigla) {
			return len(entries[i].sigla) > len(entries[j].sigla)
		}
		return entries[i].reading < entries[j].reading
	})
	return entries, omitted
}
