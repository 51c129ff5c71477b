// Package render generates Graphviz DOT for variant graphs and stemmata
// and rasterizes it to SVG or PNG.
//
// The collation core never renders graphics itself; these exports exist
// for visualization collaborators. DOT output is deterministic so
// rendered artifacts are cacheable by content hash.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/vgraph"
)

// GraphOptions configures variant graph DOT generation.
type GraphOptions struct {
	// Detailed includes unit ranks in node labels.
	Detailed bool
}

// GraphToDOT converts a variant graph to Graphviz DOT. Witnesses
// traversing an edge appear as the edge label, so each witness's path
// can be followed through the rendered graph.
func GraphToDOT(g *vgraph.Graph, opts GraphOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph variants {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := n.Reading
		if n.IsBoundary() {
			label = n.ID
		} else if opts.Detailed {
			label = fmt.Sprintf("%s\nunit %d", n.Reading, n.Rank)
		}
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if n.IsBoundary() {
			attrs = append(attrs, "shape=circle", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, strings.Join(e.Witnesses, " "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// StemmaToDOT converts an inferred stemma to Graphviz DOT. Witness
// leaves render as filled boxes, hypothetical ancestors as ellipses,
// and contamination edges as dashed red arrows labelled with their
// support score.
func StemmaToDOT(s *stemma.Result) string {
	var buf bytes.Buffer
	buf.WriteString("digraph stemma {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontsize=14];\n")
	buf.WriteString("\n")

	for _, n := range s.Nodes {
		if n.Witness != "" {
			fmt.Fprintf(&buf, "  %q [shape=box, style=\"rounded,filled\", fillcolor=white];\n", n.ID)
		} else {
			fmt.Fprintf(&buf, "  %q [shape=ellipse, style=dashed, label=%q];\n", n.ID, n.ID)
		}
	}

	buf.WriteString("\n")
	for _, e := range s.Edges {
		if e.Contamination {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=red, label=\"%.2f\"];\n", e.From, e.To, e.Support)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=\"%.2f\"];\n", e.From, e.To, e.Support)
	}

	buf.WriteString("}\n")
	return buf.String()
}
