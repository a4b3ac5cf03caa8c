package main

import (
	"fmt"

	"github.com/jonathan/churn-predictor/internal/features"
	"github.com/jonathan/churn-predictor/internal/observability"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one customer record",
	Long:  "Validates a customer record JSON file against the feature schema and prints its churn probability rounded to four decimal places.",
	RunE:  runPredict,
}

var (
	predictModel string
	predictInput string
	predictJSON  bool
)

func init() {
	predictCmd.Flags().StringVarP(&predictModel, "model", "m", "", "Path to the model artifact (defaults to CHURN_MODEL_PATH)")
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "", "Path to a customer record JSON file, or - for stdin (required)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Print a JSON object instead of text")

	if err := predictCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	scorer, err := loadScorer(predictModel)
	if err != nil {
		return err
	}

	record, err := readRecord(cmd.InOrStdin(), predictInput)
	if err != nil {
		return err
	}

	vector, err := features.Build(record, scorer.Columns(), scorer.CategoricalFields())
	if err != nil {
		return err
	}
	p, err := scorer.Predict(vector)
	if err != nil {
		return fmt.Errorf("failed to score record: %w", err)
	}

	if predictJSON {
		return printJSON(cmd.OutOrStdout(), map[string]float64{"churn_probability": round4(p)})
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintPrediction(p)
	return nil
}
