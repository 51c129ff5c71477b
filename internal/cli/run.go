package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textcritica/collate/pkg/config"
	"github.com/textcritica/collate/pkg/pipeline"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	configPath  string // TOML config file
	output      string // output file path or base path for multiple formats
	formats     string // comma-separated output formats
	stemma      bool   // also infer a stemma
	workers     int    // distance matrix worker count
	refresh     bool   // recompute, bypassing the cache
	noCache     bool   // disable caching entirely
	detailed    bool   // include unit ranks in DOT labels
	interactive bool   // pick witnesses interactively from a directory
}

// runCommand creates the run command, the main entry point: witness
// files in, apparatus and variant graph out.
func (c *CLI) runCommand() *cobra.Command {
	opts := runOpts{}

	cmd := &cobra.Command{
		Use:   "run <witnesses...>",
		Short: "Collate witness texts into an apparatus and variant graph",
		Long: `Collate witness texts into a variation table, critical apparatus,
and variant graph.

Arguments may be plain-text files (one witness each, ID taken from the
filename), directories of .txt files, or a JSON witness-set document.

Examples:
  collate run witnesses/                        # all .txt files in a directory
  collate run W1.txt W2.txt W3.txt -f text      # printed apparatus
  collate run witnesses.json -f json,dot -o out # out.json and out.dot
  collate run witnesses/ --stemma               # also infer a stemma`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRun(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "TOML config file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): json (default), text, dot, svg, png (comma-separated)")
	cmd.Flags().BoolVar(&opts.stemma, "stemma", false, "also infer a stemma and write <base>.stemma.json")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "distance matrix workers (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cache and recompute")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include unit numbers in graph labels")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick witnesses interactively from a directory")

	return cmd
}

func (c *CLI) runRun(ctx context.Context, args []string, opts runOpts) error {
	logger := loggerFromContext(ctx)

	inputs, err := loadWitnesses(args)
	if err != nil {
		return err
	}
	if opts.interactive {
		inputs, err = selectWitnesses(inputs)
		if err != nil {
			return err
		}
	}
	logger.Infof("Loaded %d witnesses", len(inputs))

	popts, err := pipelineOptions(opts.configPath)
	if err != nil {
		return err
	}
	popts.Witnesses = inputs
	popts.Stemma = opts.stemma
	popts.Workers = opts.workers
	popts.Formats = parseFormats(opts.formats, pipeline.FormatJSON)
	popts.Detailed = opts.detailed
	popts.Refresh = opts.refresh
	popts.Logger = logger

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Collating...")
	spinner.Start()
	prog := newProgress(logger)

	result, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Collation failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Collated %d witnesses into %d units (%d with variation)",
		result.Stats.WitnessCount, result.Stats.UnitCount, result.Stats.VariantCount))

	for _, d := range result.Collation.Diagnostics {
		printWarning("%s: %s", d.Code, d.Message)
	}

	if err := writeArtifacts(result.Artifacts, popts.Formats, opts.output, result.CacheInfo.ExportHit); err != nil {
		return err
	}

	if opts.stemma && result.Stemma != nil {
		path := stemmaPath(opts.output)
		if err := writeJSONFile(path, result.Stemma); err != nil {
			return err
		}
		printFile(path)
		if result.Stemma.Ambiguous {
			printWarning("stemma is ambiguous (%s)", result.Stemma.Kind)
		}
	}

	return nil
}

// pipelineOptions builds pipeline options from an optional config file.
func pipelineOptions(path string) (pipeline.Options, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return pipeline.Options{}, err
		}
		cfg = loaded
	}
	costs := cfg.AlignCosts()
	return pipeline.Options{
		Normalization: cfg.Normalization,
		Costs:         &costs,
		TieBreak:      cfg.Collation.TieBreak,
		Workers:       cfg.Collation.Workers,
		StemmaMethod:  cfg.Stemma.Method,
		TimeBudget:    cfg.StemmaTimeBudget(),
		MaxIterations: cfg.Stemma.MaxIterations,
		Seed:          cfg.Stemma.Seed,
	}, nil
}

// stemmaPath derives the stemma output path from the artifact base path.
func stemmaPath(output string) string {
	base := "stemma"
	if output != "" {
		base = strings.TrimSuffix(output, filepath.Ext(output))
	}
	return base + ".stemma.json"
}

// writeArtifacts writes each rendered format to disk. With a single
// format and no output path, the artifact goes to stdout.
func writeArtifacts(artifacts map[string][]byte, formats []string, output string, cached bool) error {
	if len(formats) == 1 && output == "" {
		_, err := os.Stdout.Write(artifacts[formats[0]])
		return err
	}

	base := output
	if base == "" {
		base = "collation"
	}
	ext := filepath.Ext(base)
	if len(formats) == 1 && ext != "" {
		// Honor an explicit filename for a single format.
		if err := os.WriteFile(base, artifacts[formats[0]], 0644); err != nil {
			return err
		}
		printFile(base)
		printCacheStatus(cached)
		return nil
	}
	base = strings.TrimSuffix(base, ext)

	for _, format := range formats {
		path := fmt.Sprintf("%s.%s", base, formatExt(format))
		if err := os.WriteFile(path, artifacts[format], 0644); err != nil {
			return err
		}
		printFile(path)
	}
	printCacheStatus(cached)
	return nil
}

// formatExt maps a format name to a file extension.
func formatExt(format string) string {
	if format == pipeline.FormatText {
		return "txt"
	}
	return format
}

// writeJSONFile writes v as indented JSON to path.
func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
