package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/lawnchairsociety/wfcgen/internal/logger"
	"github.com/lawnchairsociety/wfcgen/internal/sample"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"github.com/spf13/cobra"
)

var (
	genSample      string
	genRows        int
	genCols        int
	genSeed        int64
	genPropagation string
	genCollapse    string
	genMaxSteps    int
	genAttempts    int
	genTimeout     time.Duration
	genSeedTiles   []string
	genNumber      int
	genParallel    int
	genOutput      string
	genFormat      string
	genSeparator   string
	genSave        bool
)

func init() {
	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one or more grids from a sample",
		Long: `Generate grids from a sample file. Samples are YAML (name, description, rows)
or plain text with one row of tile symbols per line.

Examples:
  wfcgen generate -s samples/coast.txt -r 20 -c 60
  wfcgen generate -s samples/coast.yaml -r 10 -c 10 --seed 42 --propagation fixpoint
  wfcgen generate -s samples/checker.txt -r 8 -c 8 --seed-tile 0,0,A -o out/grid.yaml
  wfcgen generate -s samples/coast.txt -n 8 --parallel 4 -o out/coast.txt`,
		RunE: runGenerate,
	}

	f := genCmd.Flags()
	f.StringVarP(&genSample, "sample", "s", "", "Sample file (.yaml/.yml or text)")
	f.IntVarP(&genRows, "rows", "r", 0, "Output rows")
	f.IntVarP(&genCols, "cols", "c", 0, "Output columns")
	f.Int64Var(&genSeed, "seed", 0, "Random seed (0 = time based)")
	f.StringVar(&genPropagation, "propagation", "", "Propagation mode: single or fixpoint")
	f.StringVar(&genCollapse, "collapse", "", "Collapse policy: weighted or uniform")
	f.IntVar(&genMaxSteps, "max-steps", 0, "Step bound per attempt (0 = unbounded)")
	f.IntVar(&genAttempts, "attempts", 0, "Fresh restarts allowed after a contradiction")
	f.DurationVar(&genTimeout, "timeout", 0, "Wall-clock bound per grid")
	f.StringArrayVar(&genSeedTiles, "seed-tile", nil, "Pre-place a tile, as row,col,tile (repeatable)")
	f.IntVarP(&genNumber, "number", "n", 1, "Number of grids to generate")
	f.IntVar(&genParallel, "parallel", 0, "Grids generated concurrently when -n > 1")
	f.StringVarP(&genOutput, "output", "o", "", "Output file; .yaml/.yml writes YAML (empty for stdout)")
	f.StringVar(&genFormat, "format", "text", "Stdout format: text, box or yaml")
	f.StringVar(&genSeparator, "sep", "", "Separator between symbols in text output")
	f.BoolVar(&genSave, "save", false, "Record runs in the configured database")

	rootCmd.AddCommand(genCmd)
}

// generateConfig merges the config file's generate section with explicitly set flags.
func generateConfig(cmd *cobra.Command) (*wfc.Config, error) {
	g := cfg.Generate
	flags := cmd.Flags()
	if flags.Changed("rows") {
		g.Rows = genRows
	}
	if flags.Changed("cols") {
		g.Cols = genCols
	}
	if flags.Changed("seed") {
		g.Seed = genSeed
	}
	if flags.Changed("propagation") {
		g.Propagation = genPropagation
	}
	if flags.Changed("collapse") {
		g.Collapse = genCollapse
	}
	if flags.Changed("max-steps") {
		g.MaxSteps = genMaxSteps
	}
	if flags.Changed("attempts") {
		g.MaxAttempts = genAttempts
	}
	if flags.Changed("timeout") {
		g.Timeout = genTimeout
	}

	wcfg, err := g.ToWFC()
	if err != nil {
		return nil, err
	}
	if wcfg.SeedTiles, err = sample.ParseSeeds(genSeedTiles); err != nil {
		return nil, err
	}
	return wcfg, nil
}

func loadSample() (*sample.Sample, *wfc.Model, error) {
	path := genSample
	if path == "" {
		path = cfg.Generate.Sample
	}
	if path == "" {
		return nil, nil, errors.New("no sample given: use --sample or set generate.sample")
	}

	smp, err := sample.Load(path)
	if err != nil {
		return nil, nil, err
	}
	model, err := smp.Model()
	if err != nil {
		return nil, nil, err
	}
	return smp, model, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	smp, model, err := loadSample()
	if err != nil {
		return err
	}
	wcfg, err := generateConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("generating",
		"sample", smp.Name,
		"tiles", model.Size(),
		"rules", model.RuleCount(),
		"rows", wcfg.Rows,
		"cols", wcfg.Cols,
		"seed", wcfg.Seed,
		"count", genNumber,
	)

	var results []*wfc.Result
	var genErr error
	if genNumber > 1 {
		parallel := genParallel
		if parallel <= 0 {
			parallel = cfg.Generate.Parallel
		}
		results, genErr = wfc.GenerateBatch(ctx, model, wcfg, genNumber, parallel, logger.Slog())
	} else {
		g := wfc.NewGenerator(model, wcfg)
		g.SetLogger(logger.Slog())
		var res *wfc.Result
		res, genErr = g.Generate(ctx)
		if res != nil {
			results = []*wfc.Result{res}
		}
	}

	if genSave && len(results) > 0 {
		if err := saveRuns(ctx, smp, wcfg, results); err != nil {
			return err
		}
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		if err := emitResult(cmd, smp.Name, res, i, len(results)); err != nil {
			return err
		}
		if !res.Success() {
			printConflicts(cmd, res)
		}
	}

	return genErr
}

func saveRuns(ctx context.Context, smp *sample.Sample, wcfg *wfc.Config, results []*wfc.Result) error {
	st, err := store.OpenWithConfig(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, res := range results {
		if res == nil {
			continue
		}
		run := store.NewRun(smp.Name, smp.Rows, wcfg, res)
		if err := st.SaveRun(ctx, run); err != nil {
			return err
		}
		logger.Always("run saved", "id", run.ID, "seed", run.Seed, "success", run.Success)
	}
	return nil
}

// emitResult writes one result to the output file (suffixed with its index in a batch) or stdout.
func emitResult(cmd *cobra.Command, name string, res *wfc.Result, index, total int) error {
	if genOutput == "" {
		out := cmd.OutOrStdout()
		if total > 1 {
			fmt.Fprintf(out, "# grid %d/%d (seed %d)\n", index+1, total, res.Seed)
		}
		switch genFormat {
		case "yaml":
			return sample.EncodeYAML(out, name, res)
		case "box":
			fmt.Fprint(out, renderBox(res.Tiles))
		default:
			fmt.Fprint(out, sample.FormatText(res.Tiles, genSeparator))
		}
		return nil
	}

	path := genOutput
	if total > 1 {
		ext := filepath.Ext(path)
		path = fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(path, ext), index+1, ext)
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = sample.WriteYAML(path, name, res)
	default:
		err = sample.WriteText(path, res)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Grid written to %s\n", path)
	return nil
}

func printConflicts(cmd *cobra.Command, res *wfc.Result) {
	for _, c := range res.Conflicts {
		fmt.Fprintf(cmd.ErrOrStderr(), "contradiction: %s\n", c)
	}
}
