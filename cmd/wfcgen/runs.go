package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lawnchairsociety/wfcgen/internal/logger"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/spf13/cobra"
)

var (
	runsLimit int

	migrateFrom   string
	migrateDryRun bool
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored generation runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE:  runRunsList,
	}
	listCmd.Flags().IntVar(&runsLimit, "limit", store.DefaultListLimit, "Maximum runs to list")
	listCmd.Flags().StringVarP(&genSample, "sample", "s", "", "Only runs of this sample file")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run and its grid",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy runs from a SQLite file into the configured database",
		Long: `Copy every run from a SQLite file into the database configured under
database: (normally PostgreSQL). Runs already present are skipped, so an
interrupted migration can be rerun.`,
		Example: `  wfcgen runs migrate --from data/wfcgen.db --config prod.yaml
  wfcgen runs migrate --from data/wfcgen.db --dry-run`,
		RunE: runRunsMigrate,
	}
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "data/wfcgen.db", "Source SQLite file")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Count runs without writing anything")

	runsCmd.AddCommand(listCmd, showCmd, migrateCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	opts := store.ListOptions{Limit: runsLimit}
	if genSample != "" {
		smp, _, err := loadSample()
		if err != nil {
			return err
		}
		opts.SampleHash = store.Fingerprint(smp.Rows)
	}

	st, err := store.OpenWithConfig(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSAMPLE\tSIZE\tSEED\tATTEMPTS\tSTEPS\tSUCCESS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%d\t%d\t%v\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.SampleName,
			r.Rows, r.Cols, r.Seed, r.Attempts, r.Steps, r.Success)
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, err := store.OpenWithConfig(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "Created:     %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Sample:      %s (%s)\n", run.SampleName, run.SampleHash)
	fmt.Fprintf(out, "Size:        %dx%d\n", run.Rows, run.Cols)
	fmt.Fprintf(out, "Seed:        %d\n", run.Seed)
	fmt.Fprintf(out, "Mode:        %s propagation, %s collapse\n", run.Propagation, run.Collapse)
	fmt.Fprintf(out, "Attempts:    %d (%d steps, %s)\n", run.Attempts, run.Steps, run.Duration)
	fmt.Fprintf(out, "Success:     %v", run.Success)
	if run.Conflicts > 0 {
		fmt.Fprintf(out, " (%d conflicts)", run.Conflicts)
	}
	fmt.Fprint(out, "\n\n")

	tiles := make([][]rune, len(run.Tiles))
	for i, row := range run.Tiles {
		tiles[i] = []rune(row)
	}
	fmt.Fprint(out, renderBox(tiles))
	return nil
}

func runRunsMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLitePath == migrateFrom {
		return fmt.Errorf("source and destination are the same database: %s", migrateFrom)
	}

	src, err := store.Open(migrateFrom)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dst, err := store.OpenWithConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer dst.Close()

	logger.Info("migrating runs", "from", migrateFrom, "to", cfg.Database.Driver, "dry_run", migrateDryRun)

	stats, err := store.CopyRuns(cmd.Context(), dst, src, migrateDryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Copied %d runs, skipped %d already present\n", stats.Copied, stats.Skipped)
	if migrateDryRun {
		fmt.Fprintln(out, "(dry run, nothing was written)")
	}
	return nil
}
