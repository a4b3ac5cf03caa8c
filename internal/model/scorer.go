package model

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	// ArtifactFormat is the only artifact format Load accepts.
	ArtifactFormat = "churn-gbdt"

	expectedValueTolerance = 1e-6
	minRowsPerWorker       = 64
)

// Scorer evaluates a tree ensemble. It is immutable after Load and safe for
// concurrent use.
type Scorer struct {
	columns            []string
	categoricalFields  []string
	categoricalIndices []int
	categorical        []bool
	bias               float64
	expectedValue      float64
	trees              []*Tree
	info               Info
	fingerprint        string
	workers            int
}

// Option configures a Scorer at load time.
type Option func(*Scorer)

// WithWorkers bounds the goroutines PredictBatch fans out to. n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Load reads, validates and compiles the artifact at path.
func Load(path string, opts ...Option) (*Scorer, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data, opts...)
}

// Parse compiles an artifact already held in memory. name is used in errors only.
func Parse(name string, data []byte, opts ...Option) (*Scorer, error) {
	a, err := decodeArtifact(name, data)
	if err != nil {
		return nil, err
	}

	s, err := compile(a)
	if err != nil {
		return nil, &LoadError{Path: name, Message: "invalid artifact", Cause: err}
	}
	s.fingerprint = fingerprint(data)
	s.workers = runtime.GOMAXPROCS(0)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func compile(a *artifact) (*Scorer, error) {
	columns := make(map[string]int, len(a.FeatureNames))
	for i, name := range a.FeatureNames {
		columns[name] = i
	}

	categorical := make([]bool, len(a.FeatureNames))
	for _, name := range a.CatFeatures {
		i, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("categorical feature %q is not in feature_names", name)
		}
		categorical[i] = true
	}

	var catIdx []int
	var catNames []string
	for i, isCat := range categorical {
		if isCat {
			catIdx = append(catIdx, i)
			catNames = append(catNames, a.FeatureNames[i])
		}
	}

	trees := make([]*Tree, len(a.Trees))
	expected := a.Bias
	for i, rt := range a.Trees {
		t, err := compileTree(rt, columns, categorical)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = t
		expected += t.Expected()
	}

	if a.ExpectedValue != nil && math.Abs(*a.ExpectedValue-expected) > expectedValueTolerance {
		return nil, fmt.Errorf("declared expected_value %v does not match computed %v", *a.ExpectedValue, expected)
	}

	return &Scorer{
		columns:            append([]string(nil), a.FeatureNames...),
		categoricalFields:  catNames,
		categoricalIndices: catIdx,
		categorical:        categorical,
		bias:               a.Bias,
		expectedValue:      expected,
		trees:              trees,
		info:               a.Info,
	}, nil
}

// Columns returns the column order the model was trained with.
func (s *Scorer) Columns() []string {
	return append([]string(nil), s.columns...)
}

// CategoricalFields returns the names of the categorical columns, in column order.
func (s *Scorer) CategoricalFields() []string {
	return append([]string(nil), s.categoricalFields...)
}

// ExpectedValue returns the cover-weighted mean raw margin, including the bias.
func (s *Scorer) ExpectedValue() float64 { return s.expectedValue }

// Bias returns the raw-margin offset added before the trees.
func (s *Scorer) Bias() float64 { return s.bias }

// Info returns the artifact's descriptive block.
func (s *Scorer) Info() Info { return s.info }

// Fingerprint returns the hex BLAKE2b-256 digest of the artifact content.
func (s *Scorer) Fingerprint() string { return s.fingerprint }

// Trees returns the compiled trees in evaluation order.
func (s *Scorer) Trees() []*Tree {
	return append([]*Tree(nil), s.trees...)
}

// Predict returns the churn probability for one vector.
func (s *Scorer) Predict(v types.FeatureVector) (float64, error) {
	m, err := s.Margin(v)
	if err != nil {
		return 0, err
	}
	return Sigmoid(m), nil
}

// Margin returns the raw log-odds output for one vector.
func (s *Scorer) Margin(v types.FeatureVector) (float64, error) {
	if err := s.checkLayout(v.Columns, v.CategoricalIndices); err != nil {
		return 0, err
	}
	if err := s.checkRow(v.Values); err != nil {
		return 0, err
	}
	return s.margin(v.Values), nil
}

// PredictBatch scores every row of batch and returns probabilities in row order.
func (s *Scorer) PredictBatch(ctx context.Context, batch types.FeatureBatch) ([]float64, error) {
	if err := s.checkLayout(batch.Columns, batch.CategoricalIndices); err != nil {
		return nil, err
	}
	for i, row := range batch.Rows {
		if err := s.checkRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	n := batch.Len()
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}

	chunk := (n + s.workers - 1) / s.workers
	if chunk < minRowsPerWorker {
		chunk = minRowsPerWorker
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				out[i] = Sigmoid(s.margin(batch.Rows[i]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// margin sums bias first, then trees in artifact order, so results are bit-identical
// across calls and across single and batch paths.
func (s *Scorer) margin(row []types.Value) float64 {
	m := s.bias
	for _, t := range s.trees {
		m += t.Eval(row)
	}
	return m
}

func (s *Scorer) checkLayout(columns []string, catIdx []int) error {
	if len(columns) != len(s.columns) {
		return &schema.MismatchError{
			Message: fmt.Sprintf("vector has %d columns, model expects %d", len(columns), len(s.columns)),
		}
	}
	for i, c := range columns {
		if c != s.columns[i] {
			return &schema.MismatchError{
				Field:   c,
				Message: fmt.Sprintf("column %d is %q, model expects %q", i, c, s.columns[i]),
			}
		}
	}
	if len(catIdx) != len(s.categoricalIndices) {
		return &schema.MismatchError{Message: "categorical positions differ from the model's"}
	}
	for i, idx := range catIdx {
		if idx != s.categoricalIndices[i] {
			return &schema.MismatchError{Message: "categorical positions differ from the model's"}
		}
	}
	return nil
}

func (s *Scorer) checkRow(row []types.Value) error {
	if len(row) != len(s.columns) {
		return &schema.MismatchError{
			Message: fmt.Sprintf("row has %d values, model expects %d", len(row), len(s.columns)),
		}
	}
	for i, v := range row {
		want := types.Numeric
		if s.categorical[i] {
			want = types.Categorical
		}
		if v.Kind != want {
			return &schema.MismatchError{
				Field:   s.columns[i],
				Message: fmt.Sprintf("value kind is %s, model expects %s", v.Kind, want),
			}
		}
	}
	return nil
}

// Sigmoid maps a raw margin to a probability.
func Sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}
