package main

import (
	"fmt"
	"math"

	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"github.com/spf13/cobra"
)

var rulesDir string

func init() {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the tile weights and adjacency rules learned from a sample",
		Example: `  wfcgen rules -s samples/coast.txt
  wfcgen rules -s samples/coast.txt --dir down`,
		RunE: runRules,
	}
	rulesCmd.Flags().StringVarP(&genSample, "sample", "s", "", "Sample file (.yaml/.yml or text)")
	rulesCmd.Flags().StringVar(&rulesDir, "dir", "", "Only show one direction (up, right, down, left)")
	rootCmd.AddCommand(rulesCmd)

	entropyCmd := &cobra.Command{
		Use:   "entropy",
		Short: "Show the entropy contribution of each tile in a sample",
		RunE:  runEntropy,
	}
	entropyCmd.Flags().StringVarP(&genSample, "sample", "s", "", "Sample file (.yaml/.yml or text)")
	rootCmd.AddCommand(entropyCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	smp, model, err := loadSample()
	if err != nil {
		return err
	}

	var only *wfc.Direction
	if rulesDir != "" {
		d, err := wfc.ParseDirection(rulesDir)
		if err != nil {
			return err
		}
		only = &d
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sample %q: %dx%d, %d tiles, %d rules\n\n",
		smp.Name, len(smp.Rows), len([]rune(smp.Rows[0])), model.Size(), model.RuleCount())
	fmt.Fprint(out, renderLegend(model))
	fmt.Fprintln(out)
	fmt.Fprint(out, renderRules(model, only))
	return nil
}

func runEntropy(cmd *cobra.Command, args []string) error {
	_, model, err := loadSample()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s %8s %10s %10s\n", "tile", "weight", "p", "-p ln p")
	for _, t := range model.Tiles() {
		p := model.Probability(t)
		fmt.Fprintf(out, "%-6s %8d %10.6f %10.6f\n", t, model.Weight(t), p, -p*math.Log(p))
	}
	fmt.Fprintf(out, "\nfull-domain entropy: %.6f nats\n", model.Entropy(model.Tiles()))
	return nil
}
