package main

import (
	"github.com/jonathan/churn-predictor/internal/observability"
	"github.com/spf13/cobra"
)

var inspectModelCmd = &cobra.Command{
	Use:   "inspect-model",
	Short: "Validate a model artifact and print its summary",
	Long:  "Loads a model artifact with every load-time check (schema, tree structure, covers, feature layout) and prints what it contains.",
	RunE:  runInspectModel,
}

var (
	inspectModelPath string
	inspectModelJSON bool
)

func init() {
	inspectModelCmd.Flags().StringVarP(&inspectModelPath, "model", "m", "", "Path to the model artifact (defaults to CHURN_MODEL_PATH)")
	inspectModelCmd.Flags().BoolVar(&inspectModelJSON, "json", false, "Print the summary as JSON")

	rootCmd.AddCommand(inspectModelCmd)
}

func runInspectModel(cmd *cobra.Command, _ []string) error {
	scorer, err := loadScorer(inspectModelPath)
	if err != nil {
		return err
	}

	info := scorer.Info()
	summary := observability.ModelSummary{
		Name:          info.Name,
		Description:   info.Description,
		TrainedAt:     info.TrainedAt,
		Metrics:       info.Metrics,
		Features:      scorer.Columns(),
		Categorical:   scorer.CategoricalFields(),
		Trees:         len(scorer.Trees()),
		ExpectedValue: scorer.ExpectedValue(),
		Fingerprint:   scorer.Fingerprint(),
	}

	if inspectModelJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"model_info":     info,
			"feature_names":  summary.Features,
			"cat_features":   summary.Categorical,
			"trees":          summary.Trees,
			"bias":           scorer.Bias(),
			"expected_value": summary.ExpectedValue,
			"fingerprint":    summary.Fingerprint,
		})
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintModel(summary)
	return nil
}
