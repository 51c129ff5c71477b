package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textcritica/collate/pkg/apparatus"
	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/pipeline"
	"github.com/textcritica/collate/pkg/render"
	"github.com/textcritica/collate/pkg/stemma"
	"github.com/textcritica/collate/pkg/vgraph"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	formats  string // comma-separated output formats
	output   string // output file or base path
	kind     string // input kind: auto, collation, stemma
	detailed bool   // include unit ranks in graph labels
}

// renderCommand creates the render command for turning saved results
// into graphics.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{kind: "auto"}

	cmd := &cobra.Command{
		Use:   "render <result.json>",
		Short: "Render a saved collation or stemma to DOT, SVG, or PNG",
		Long: `Render a saved result to a graphic. Collation JSON (from 'run')
renders as a variant graph; stemma JSON (from 'stemma') renders as a
tree with hypothetical ancestors and dashed contamination edges.

Examples:
  collate render out.json                      # variant graph SVG
  collate render out.stemma.json -f png -o stemma.png
  collate render out.json -f dot,svg -o graph  # graph.dot and graph.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), dot, png (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVar(&opts.kind, "kind", opts.kind, "input kind: auto (default), collation, stemma")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include unit numbers in graph labels")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	kind := opts.kind
	if kind == "auto" {
		detected, err := detectKind(input)
		if err != nil {
			return err
		}
		kind = detected
	}

	formats := parseFormats(opts.formats, pipeline.FormatSVG)
	for _, f := range formats {
		switch f {
		case pipeline.FormatDOT, pipeline.FormatSVG, pipeline.FormatPNG:
		default:
			return errors.New(errors.ErrCodeInvalidInput,
				"invalid render format %q (must be one of: dot, svg, png)", f)
		}
	}

	var dot string
	switch kind {
	case "collation":
		res, err := apparatus.ImportJSON(input)
		if err != nil {
			return err
		}
		g, err := vgraph.Build(res)
		if err != nil {
			return err
		}
		logger.Infof("Built variant graph: %d nodes, %d edges", len(g.Nodes()), len(g.Edges()))
		dot = render.GraphToDOT(g, render.GraphOptions{Detailed: opts.detailed})
	case "stemma":
		st, err := readStemmaFile(input)
		if err != nil {
			return err
		}
		logger.Infof("Loaded %s stemma (%s)", st.Method, st.Kind)
		dot = render.StemmaToDOT(st)
	default:
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid kind %q (must be auto, collation, or stemma)", kind)
	}

	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case pipeline.FormatDOT:
			data = []byte(dot)
		case pipeline.FormatSVG:
			data, err = render.RenderSVG(ctx, dot)
		case pipeline.FormatPNG:
			data, err = render.RenderPNG(ctx, dot)
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	output := opts.output
	if output == "" && len(formats) > 1 {
		output = strings.TrimSuffix(input, filepath.Ext(input))
	}
	return writeArtifacts(artifacts, formats, output, false)
}

// detectKind sniffs whether a JSON file holds a collation or a stemma.
func detectKind(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var probe struct {
		Units  json.RawMessage `json:"units"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", path)
	}
	switch {
	case probe.Units != nil:
		return "collation", nil
	case probe.Method != "":
		return "stemma", nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "%s is neither a collation nor a stemma", path)
}

func readStemmaFile(path string) (*stemma.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st stemma.Result
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse stemma %s", path)
	}
	if st.Root == "" || len(st.Nodes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "stemma %s has no nodes", path)
	}
	return &st, nil
}
