package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/textcritica/collate/pkg/apparatus"
	"github.com/textcritica/collate/pkg/cache"
	"github.com/textcritica/collate/pkg/collate"
	"github.com/textcritica/collate/pkg/pipeline"
	"github.com/textcritica/collate/pkg/store"
)

// stemmaOpts holds the command-line flags for the stemma command.
type stemmaOpts struct {
	configPath    string
	fromCollation string // saved collation JSON instead of witness files
	method        string
	seed          int
	maxIterations int
	timeBudget    time.Duration
	format        string
	output        string
	refresh       bool
	noCache       bool
}

// stemmaCommand creates the stemma command for inferring transmission
// history from witness variation.
func (c *CLI) stemmaCommand() *cobra.Command {
	opts := stemmaOpts{}

	cmd := &cobra.Command{
		Use:   "stemma [witnesses...]",
		Short: "Infer a stemma codicum from witness variation",
		Long: `Infer a stemma hypothesis: a rooted tree (or, when contamination is
detected, a DAG) relating the witnesses through hypothetical ancestors.

Two inference methods are available:
  distance    cluster witnesses by pairwise variation distance (fast,
              deterministic)
  parsimony   search for the tree minimizing the number of implied
              textual changes (seeded hill-climb, honors --time-budget)

Examples:
  collate stemma witnesses/
  collate stemma witnesses/ --method parsimony --seed 7
  collate stemma --from-collation out.json -f svg -o stemma.svg`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStemma(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&opts.fromCollation, "from-collation", "", "saved collation JSON to infer from")
	cmd.Flags().StringVar(&opts.method, "method", "", "inference method: distance (default), parsimony")
	cmd.Flags().IntVar(&opts.seed, "seed", 0, "random seed for parsimony search (default 42)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "parsimony iteration budget (default 200)")
	cmd.Flags().DurationVar(&opts.timeBudget, "time-budget", 0, "parsimony time budget (default 10s)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: json (default), dot, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cache and recompute")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runStemma(ctx context.Context, args []string, opts stemmaOpts) error {
	logger := loggerFromContext(ctx)

	if opts.fromCollation == "" && len(args) == 0 {
		return fmt.Errorf("give witness files or --from-collation")
	}

	popts, err := pipelineOptions(opts.configPath)
	if err != nil {
		return err
	}
	popts.Stemma = true
	popts.Refresh = opts.refresh
	popts.Logger = logger
	if opts.method != "" {
		popts.StemmaMethod = opts.method
	}
	if opts.seed != 0 {
		popts.Seed = opts.seed
	}
	if opts.maxIterations != 0 {
		popts.MaxIterations = opts.maxIterations
	}
	if opts.timeBudget != 0 {
		popts.TimeBudget = opts.timeBudget
	}

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var (
		res  *collate.Result
		hash string
	)
	if opts.fromCollation != "" {
		res, err = apparatus.ImportJSON(opts.fromCollation)
		if err != nil {
			return err
		}
		data, err := apparatus.MarshalJSON(res)
		if err != nil {
			return err
		}
		hash = cache.Hash(data)
		// Witness inputs are unused on this path but must be non-empty
		// for option validation.
		popts.Witnesses = witnessPlaceholders(res.Witnesses)
	} else {
		popts.Witnesses, err = loadWitnesses(args)
		if err != nil {
			return err
		}
		spinner := newSpinnerWithContext(ctx, "Collating...")
		spinner.Start()
		var hit bool
		res, hash, hit, err = runner.CollateWithCacheInfo(ctx, popts)
		if err != nil {
			spinner.StopWithError("Collation failed")
			return err
		}
		spinner.Stop()
		printCacheStatus(hit)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Inferring stemma (%s)...", popts.StemmaMethod))
	spinner.Start()
	prog := newProgress(logger)

	st, err := runner.Infer(ctx, res, hash, popts)
	if err != nil {
		spinner.StopWithError("Inference failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Inferred %s stemma over %d witnesses", st.Method, len(res.Witnesses)))

	if st.Ambiguous {
		printWarning("stemma is ambiguous: contamination detected, result is a %s", st.Kind)
	}

	format := opts.format
	if format == "" || format == pipeline.FormatJSON {
		if opts.output == "" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		if err := writeJSONFile(opts.output, st); err != nil {
			return err
		}
		printFile(opts.output)
		return nil
	}

	data, err := runner.RenderStemma(ctx, st, format, false)
	if err != nil {
		return err
	}
	if opts.output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return err
	}
	printFile(opts.output)
	return nil
}

// witnessPlaceholders builds witness inputs that stand in for an
// imported collation during option validation.
func witnessPlaceholders(ids []string) []store.WitnessInput {
	inputs := make([]store.WitnessInput, len(ids))
	for i, id := range ids {
		inputs[i] = store.WitnessInput{ID: id}
	}
	return inputs
}
