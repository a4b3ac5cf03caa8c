package main

import (
	"fmt"

	"github.com/jonathan/churn-predictor/internal/config"
	"github.com/jonathan/churn-predictor/internal/dataset"
	"github.com/jonathan/churn-predictor/internal/features"
	"github.com/jonathan/churn-predictor/internal/observability"
	"github.com/jonathan/churn-predictor/internal/ranking"
	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank reference customers by churn risk",
	Long:  "Scores every customer of a reference dataset in one batch and prints or writes the K most likely to churn. Equal probabilities keep dataset order.",
	RunE:  runRank,
}

var (
	rankModel   string
	rankDataset string
	rankK       int
	rankOutput  string
)

func init() {
	rankCmd.Flags().StringVarP(&rankModel, "model", "m", "", "Path to the model artifact (defaults to CHURN_MODEL_PATH)")
	rankCmd.Flags().StringVarP(&rankDataset, "dataset", "d", "", "Path to the customers CSV (defaults to the configured dataset)")
	rankCmd.Flags().IntVarP(&rankK, "k", "k", 10, "Number of customers to return")
	rankCmd.Flags().StringVarP(&rankOutput, "out", "o", "", "Write the ranking as JSON to this path instead of printing it")

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	scorer, err := loadScorer(rankModel)
	if err != nil {
		return err
	}

	var ds *dataset.Dataset
	if rankDataset != "" {
		ds, err = dataset.LoadCSV(rankDataset)
	} else {
		var cfg *config.Config
		if cfg, err = config.Load(configPath); err == nil {
			ds, err = loadDataset(cmd.Context(), cfg)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if ds == nil {
		return fmt.Errorf("no dataset: pass --dataset or set CHURN_DATASET_PATH or DATABASE_URL")
	}

	builder, err := features.NewBuilder(scorer.Columns(), scorer.CategoricalFields())
	if err != nil {
		return err
	}
	ranked, err := ranking.NewService(scorer, builder).Rank(cmd.Context(), ds.Customers(), rankK)
	if err != nil {
		return err
	}

	if rankOutput != "" {
		if err := writeJSON(rankOutput, ranked); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ranked %d of %d customers to %s\n", len(ranked.Ranked), ranked.Total, rankOutput)
		return nil
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRanking(ranked)
	return nil
}
