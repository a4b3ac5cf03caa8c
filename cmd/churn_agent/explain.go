package main

import (
	"fmt"

	"github.com/jonathan/churn-predictor/internal/explain"
	"github.com/jonathan/churn-predictor/internal/features"
	"github.com/jonathan/churn-predictor/internal/observability"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain one customer's churn score",
	Long:  "Computes exact TreeSHAP attributions for a customer record and prints a waterfall of the largest contributions.",
	RunE:  runExplain,
}

var (
	explainModel string
	explainInput string
	explainTop   int
	explainJSON  bool
)

func init() {
	explainCmd.Flags().StringVarP(&explainModel, "model", "m", "", "Path to the model artifact (defaults to CHURN_MODEL_PATH)")
	explainCmd.Flags().StringVarP(&explainInput, "input", "i", "", "Path to a customer record JSON file, or - for stdin (required)")
	explainCmd.Flags().IntVar(&explainTop, "top", 10, "Number of contributions to show (at most 10)")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "Print the full attribution set as JSON")

	if err := explainCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, _ []string) error {
	if explainTop <= 0 {
		return fmt.Errorf("--top must be positive, got %d", explainTop)
	}

	scorer, err := loadScorer(explainModel)
	if err != nil {
		return err
	}

	record, err := readRecord(cmd.InOrStdin(), explainInput)
	if err != nil {
		return err
	}

	vector, err := features.Build(record, scorer.Columns(), scorer.CategoricalFields())
	if err != nil {
		return err
	}
	attr, err := explain.New(scorer).Explain(cmd.Context(), vector)
	if err != nil {
		return fmt.Errorf("failed to explain record: %w", err)
	}

	if explainJSON {
		return printJSON(cmd.OutOrStdout(), attr)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintAttribution(attr, explainTop)
	return nil
}
