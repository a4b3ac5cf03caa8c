package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonathan/churn-predictor/internal/config"
	"github.com/jonathan/churn-predictor/internal/dataset"
	"github.com/jonathan/churn-predictor/internal/explain"
	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

// loadScorer loads the artifact at path, or the configured one when path is empty.
func loadScorer(path string) (*model.Scorer, error) {
	workers := 0
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.ModelPath
		workers = cfg.ScorerWorkers
	}

	scorer, err := model.Load(path, model.WithWorkers(workers))
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return scorer, nil
}

// readRecord reads one customer record as JSON from path, or stdin for "-".
func readRecord(stdin io.Reader, path string) (types.CustomerRecord, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return types.CustomerRecord{}, fmt.Errorf("failed to read input %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return types.CustomerRecord{}, fmt.Errorf("failed to parse input JSON: %w", err)
	}

	record, err := schema.Validate(raw)
	if err != nil {
		return types.CustomerRecord{}, err
	}
	return record, nil
}

// loadDataset loads the configured reference customers. It returns nil when
// neither a CSV path nor a database URL is set.
func loadDataset(ctx context.Context, cfg *config.Config) (*dataset.Dataset, error) {
	switch {
	case cfg.DatasetPath != "":
		return dataset.LoadCSV(cfg.DatasetPath)
	case cfg.DatabaseURL != "":
		return dataset.LoadPostgres(ctx, cfg.DatabaseURL, cfg.DatasetTable)
	default:
		return nil, nil
	}
}

// newExplainCache builds the configured explanation cache; nil means none.
func newExplainCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (explain.Cache, error) {
	ttl := time.Duration(cfg.ExplainCacheTTL)
	switch cfg.ExplainCache {
	case config.CacheMemory:
		return explain.NewMemoryCache(ttl), nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("explanation cache connected", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
		return explain.NewRedisCache(client, ttl), nil
	default:
		return nil, nil
	}
}

// writeJSON writes v as indented JSON to path, creating parent directories.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}

// printJSON writes v as indented JSON to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// round4 rounds a probability to the four decimal places the API reports.
func round4(p float64) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 4, 64), 64)
	if err != nil {
		return p
	}
	return v
}
