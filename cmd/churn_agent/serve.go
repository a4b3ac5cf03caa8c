package main

import (
	"context"
	"fmt"

	"github.com/jonathan/churn-predictor/internal/config"
	"github.com/jonathan/churn-predictor/internal/logging"
	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/server"
	"github.com/jonathan/churn-predictor/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes prediction, explanation and ranking endpoints. The model and reference dataset are loaded once at startup; any load error aborts startup.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := buildServer(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return srv.Start()
}

// buildServer loads every startup dependency and wires the server.
func buildServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*server.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	scorer, err := model.Load(cfg.ModelPath, model.WithWorkers(cfg.ScorerWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.String("name", scorer.Info().Name),
		zap.Int("trees", len(scorer.Trees())),
		zap.String("fingerprint", scorer.Fingerprint()),
	)

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference dataset: %w", err)
	}
	if ds != nil {
		logger.Info("reference dataset loaded", zap.String("source", ds.Source()), zap.Int("customers", ds.Len()))
	} else {
		logger.Warn("no reference dataset configured; /customers routes are disabled")
	}

	cache, err := newExplainCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rateCfg, err := ratelimit.LoadConfig()
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{
		Port:         cfg.Port,
		TopKDefault:  cfg.TopKDefault,
		TopKMax:      cfg.TopKMax,
		RateLimit:    rateCfg,
		ExplainCache: cache,
		Logger:       logger,
	}, scorer, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}
