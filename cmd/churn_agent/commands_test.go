package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/churn-predictor/internal/config"
	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/ranking"
	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/testutil"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPredictCommand_JSON(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	out, err := runCLI(t, "", "predict", "--model", testutil.ModelPath(), "--input", input, "--json")
	require.NoError(t, err)

	var resp map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, testutil.RecordRounded, resp["churn_probability"])
}

func TestPredictCommand_Text(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	out, err := runCLI(t, "", "predict", "--model", testutil.GzipModelPath(), "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "CHURN PREDICTION")
	assert.Contains(t, out, "0.4134")
}

func TestPredictCommand_StdinAndConfiguredModel(t *testing.T) {
	isolateEnv(t)
	data, err := json.Marshal(testutil.RawRecord())
	require.NoError(t, err)

	// no --model: falls back to CHURN_MODEL_PATH
	out, err := runCLI(t, string(data), "predict", "--input", "-", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"churn_probability": 0.4134`)
}

func TestPredictCommand_InvalidRecord(t *testing.T) {
	isolateEnv(t)
	raw := testutil.RawRecord()
	raw["InternetService"] = "Satellite"
	input := writeRecord(t, raw)

	_, err := runCLI(t, "", "predict", "--model", testutil.ModelPath(), "--input", input)
	require.Error(t, err)

	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr), err.Error())
	assert.Equal(t, "InternetService", verr.Field)
}

func TestPredictCommand_Errors(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	_, err := runCLI(t, "", "predict", "--model", testutil.ModelPath())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, err = runCLI(t, "", "predict", "--model", filepath.Join(t.TempDir(), "missing.json"), "--input", input)
	var lerr *model.LoadError
	require.True(t, errors.As(err, &lerr))

	_, err = runCLI(t, "", "predict", "--model", testutil.ModelPath(), "--input", filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read input")
}

func TestExplainCommand_Text(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	out, err := runCLI(t, "", "explain", "--model", testutil.ModelPath(), "--input", input, "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "FEATURE CONTRIBUTIONS")
	assert.Contains(t, out, "Contract = Month-to-month")
	assert.Contains(t, out, "16 other features")
	assert.Contains(t, out, "churn probability 0.4134")
}

func TestExplainCommand_JSON(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	out, err := runCLI(t, "", "explain", "--model", testutil.ModelPath(), "--input", input, "--json")
	require.NoError(t, err)

	var attr types.AttributionSet
	require.NoError(t, json.Unmarshal([]byte(out), &attr), out)
	assert.InDelta(t, testutil.RecordMargin, attr.Sum(), 1e-6)
	for i, f := range attr.Features {
		assert.InDelta(t, testutil.RecordContributions[f], attr.Contributions[i], 1e-10, f)
	}
}

func TestExplainCommand_BadTop(t *testing.T) {
	isolateEnv(t)
	input := writeRecord(t, testutil.RawRecord())

	_, err := runCLI(t, "", "explain", "--model", testutil.ModelPath(), "--input", input, "--top", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--top")
}

func TestRankCommand_Print(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "", "rank", "--model", testutil.ModelPath(), "--dataset", testutil.DatasetPath(), "--k", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Top 2 of 12")
	assert.Contains(t, out, "9237-HQITU")
	assert.Contains(t, out, "9305-CDSKC")
	assert.NotContains(t, out, "7590-VHVEG")
}

func TestRankCommand_Out(t *testing.T) {
	isolateEnv(t)
	outPath := filepath.Join(t.TempDir(), "nested", "ranked.json")

	out, err := runCLI(t, "", "rank", "--model", testutil.ModelPath(), "--dataset", testutil.DatasetPath(), "--k", "100", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Ranked 12 of 12 customers")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var ranked types.RankedCustomers
	require.NoError(t, json.Unmarshal(data, &ranked))
	require.Len(t, ranked.Ranked, 12)
	assert.Equal(t, "5575-GNVDE", ranked.Ranked[9].CustomerID)
	assert.Equal(t, "6388-TABGU", ranked.Ranked[10].CustomerID)
	assert.Equal(t, ranked.Ranked[9].ChurnProbability, ranked.Ranked[10].ChurnProbability)
}

func TestRankCommand_Errors(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "", "rank", "--model", testutil.ModelPath(), "--dataset", testutil.DatasetPath(), "--k", "0")
	var argErr *ranking.InvalidArgumentError
	require.True(t, errors.As(err, &argErr))

	_, err = runCLI(t, "", "rank", "--model", testutil.ModelPath())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset")

	// dataset from the environment
	t.Setenv("CHURN_DATASET_PATH", testutil.DatasetPath())
	out, err := runCLI(t, "", "rank", "--model", testutil.ModelPath(), "--k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "9237-HQITU")
}

func TestInspectModelCommand(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "", "inspect-model", "--model", testutil.ModelPath())
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL ARTIFACT")
	assert.Contains(t, out, "telco-churn-gbdt-fixture")
	assert.Contains(t, out, "19 (15 categorical)")
	assert.Contains(t, out, "roc_auc")

	out, err = runCLI(t, "", "inspect-model", "--model", testutil.GzipModelPath(), "--json")
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)
	assert.EqualValues(t, 3, summary["trees"])
	assert.InDelta(t, testutil.ExpectedValue, summary["expected_value"], 1e-12)
}

func TestInspectModelCommand_Corrupt(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format": "churn-gbdt"`), 0o644))

	_, err := runCLI(t, "", "inspect-model", "--model", path)
	var lerr *model.LoadError
	require.True(t, errors.As(err, &lerr), err)
}

func TestBuildServer(t *testing.T) {
	cfg := config.Defaults()
	cfg.ModelPath = testutil.ModelPath()
	cfg.DatasetPath = testutil.DatasetPath()
	cfg.ExplainCache = config.CacheNone
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	srv, err := buildServer(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/customers/top?k=1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "9237-HQITU")
}

func TestBuildServer_StartupFailures(t *testing.T) {
	cfg := config.Defaults()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")
	_, err := buildServer(context.Background(), &cfg, zap.NewNop())
	var lerr *model.LoadError
	require.True(t, errors.As(err, &lerr))

	badCSV := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(badCSV, []byte("customerID,gender\nX,Female\n"), 0o644))
	cfg = config.Defaults()
	cfg.ModelPath = testutil.ModelPath()
	cfg.DatasetPath = badCSV
	_, err = buildServer(context.Background(), &cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference dataset")
}
