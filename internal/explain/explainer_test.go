package explain

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/churn-predictor/internal/features"
	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/testutil"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*model.Scorer, *features.Builder) {
	t.Helper()
	s, err := model.Load(testutil.ModelPath())
	require.NoError(t, err)
	b, err := features.NewBuilder(s.Columns(), s.CategoricalFields())
	require.NoError(t, err)
	return s, b
}

func sampleRecords() []types.CustomerRecord {
	var out []types.CustomerRecord
	for _, tenure := range []int{0, 1, 6, 7, 24, 41, 72} {
		for _, contract := range []string{"Month-to-month", "One year", "Two year"} {
			for _, internet := range []string{"DSL", "Fiber optic", "No"} {
				r := testutil.Record()
				r.Tenure = tenure
				r.Contract = contract
				r.InternetService = internet
				r.MonthlyCharges = 20 + float64(tenure)
				r.TotalCharges = float64(tenure) * r.MonthlyCharges
				if tenure%2 == 0 {
					r.PaymentMethod = "Credit card (automatic)"
					r.TechSupport = "Yes"
					r.PaperlessBilling = "Yes"
				}
				out = append(out, r)
			}
		}
	}
	return append(out, testutil.LowRiskRecord(), testutil.MidRiskRecord())
}

func TestExplain_PinnedContributions(t *testing.T) {
	s, b := setup(t)
	e := New(s)

	a, err := e.Explain(context.Background(), b.Build(testutil.Record()))
	require.NoError(t, err)

	assert.InDelta(t, testutil.ExpectedValue, a.BaseValue, 1e-12)
	assert.InDelta(t, testutil.RecordMargin, a.RawMargin, 1e-12)
	require.Len(t, a.Contributions, len(s.Columns()))
	assert.Equal(t, s.Columns(), a.Features)

	for i, name := range a.Features {
		want := testutil.RecordContributions[name]
		assert.InDelta(t, want, a.Contributions[i], 1e-10, name)
	}
	assert.Equal(t, "Month-to-month", a.Values[14])
	assert.Equal(t, "1", a.Values[4])
}

func TestExplain_SumEqualsMargin(t *testing.T) {
	s, b := setup(t)
	e := New(s)

	for _, r := range sampleRecords() {
		v := b.Build(r)
		a, err := e.Explain(context.Background(), v)
		require.NoError(t, err)

		margin, err := s.Margin(v)
		require.NoError(t, err)
		assert.InDelta(t, margin, a.Sum(), 1e-6)
		assert.Len(t, a.Contributions, len(v.Columns))
	}
}

func TestExplain_MatchesBruteForceShapley(t *testing.T) {
	s, b := setup(t)
	e := New(s)

	used := usedFeatures(s)
	for _, r := range sampleRecords() {
		v := b.Build(r)
		a, err := e.Explain(context.Background(), v)
		require.NoError(t, err)

		want := bruteForce(s, v.Values, used)
		for i := range a.Contributions {
			assert.InDelta(t, want[i], a.Contributions[i], 1e-9, "feature %s", a.Features[i])
		}
	}
}

func TestExplain_UnusedFeaturesGetZero(t *testing.T) {
	s, b := setup(t)
	a, err := New(s).Explain(context.Background(), b.Build(testutil.Record()))
	require.NoError(t, err)

	used := usedFeatures(s)
	for i, c := range a.Contributions {
		if !used[i] {
			assert.Zero(t, c, a.Features[i])
		}
	}
}

func TestExplain_PositiveContributionRaisesRisk(t *testing.T) {
	s, b := setup(t)
	a, err := New(s).Explain(context.Background(), b.Build(testutil.Record()))
	require.NoError(t, err)

	top := a.Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Contract", top[0].Feature)
	assert.Greater(t, top[0].Contribution, 0.0)
}

func TestExplain_Mismatch(t *testing.T) {
	s, _ := setup(t)
	v, err := features.Build(testutil.Record(), []string{"tenure", "Contract"}, []string{"Contract"})
	require.NoError(t, err)

	for _, e := range []*Explainer{New(s), New(s, WithCache(NewMemoryCache(time.Minute)))} {
		_, err = e.Explain(context.Background(), v)
		var mErr *schema.MismatchError
		assert.True(t, errors.As(err, &mErr))
	}
}

func TestExplain_CacheDoesNotChangeResults(t *testing.T) {
	s, b := setup(t)
	var hits, misses atomic.Int64
	cache := NewMemoryCache(time.Minute)
	cached := New(s, WithCache(cache), WithCacheObserver(func(hit bool) {
		if hit {
			hits.Add(1)
		} else {
			misses.Add(1)
		}
	}))
	plain := New(s)

	for round := 0; round < 2; round++ {
		for _, r := range sampleRecords() {
			v := b.Build(r)
			want, err := plain.Explain(context.Background(), v)
			require.NoError(t, err)
			got, err := cached.Explain(context.Background(), v)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	n := int64(len(sampleRecords()))
	// sampleRecords contains no duplicate vectors
	assert.Equal(t, n, misses.Load())
	assert.Equal(t, n, hits.Load())
	assert.Equal(t, int(n), cache.Len())
}

func TestExplain_CachedValueIsNotShared(t *testing.T) {
	s, b := setup(t)
	e := New(s, WithCache(NewMemoryCache(time.Minute)))
	v := b.Build(testutil.Record())

	first, err := e.Explain(context.Background(), v)
	require.NoError(t, err)
	first.Contributions[0] = 42

	second, err := e.Explain(context.Background(), v)
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, second.Contributions[0])
}

func TestExplain_ConcurrentCallers(t *testing.T) {
	s, b := setup(t)
	e := New(s, WithCache(NewMemoryCache(time.Minute)))
	v := b.Build(testutil.Record())

	want, err := New(s).Explain(context.Background(), v)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*types.AttributionSet, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Explain(context.Background(), v)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestExplainBatch(t *testing.T) {
	s, b := setup(t)
	e := New(s)
	records := []types.CustomerRecord{testutil.Record(), testutil.LowRiskRecord(), testutil.MidRiskRecord()}

	got, err := e.ExplainBatch(context.Background(), b.BuildBatch(records))
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, r := range records {
		want, err := e.Explain(context.Background(), b.Build(r))
		require.NoError(t, err)
		assert.Equal(t, want, got[i])
	}
	assert.InDelta(t, -2.0, got[1].RawMargin, 1e-12)
}

func TestPath_UnwindUndoesExtend(t *testing.T) {
	path := extendPath(nil, 1, 1, -1)
	path = extendPath(path, 0.4, 1, 3)
	path = extendPath(path, 0.7, 0, 5)
	before := append([]pathElement(nil), path...)

	extended := extendPath(path, 0.25, 1, 9)
	restored := unwindPath(extended, len(extended)-1)

	require.Len(t, restored, len(before))
	for i := range before {
		assert.Equal(t, before[i].feature, restored[i].feature)
		assert.InDelta(t, before[i].weight, restored[i].weight, 1e-12)
	}
}

func usedFeatures(s *model.Scorer) map[int]bool {
	used := map[int]bool{}
	for _, t := range s.Trees() {
		for i := 0; i < t.Len(); i++ {
			if !t.IsLeaf(i) {
				used[t.Feature(i)] = true
			}
		}
	}
	return used
}

// condExpectation is the expected tree output when only the features in
// present are known, following cover proportions for the rest.
func condExpectation(t *model.Tree, row []types.Value, present map[int]bool, node int) float64 {
	if t.IsLeaf(node) {
		return t.Leaf(node)
	}
	left, right := t.Children(node)
	if f := t.Feature(node); present[f] {
		if t.GoesLeft(node, row[f]) {
			return condExpectation(t, row, present, left)
		}
		return condExpectation(t, row, present, right)
	}
	return (t.Cover(left)*condExpectation(t, row, present, left) +
		t.Cover(right)*condExpectation(t, row, present, right)) / t.Cover(node)
}

func bruteForce(s *model.Scorer, row []types.Value, used map[int]bool) []float64 {
	var feats []int
	for f := range used {
		feats = append(feats, f)
	}
	m := len(feats)

	value := func(present map[int]bool) float64 {
		total := s.Bias()
		for _, t := range s.Trees() {
			total += condExpectation(t, row, present, 0)
		}
		return total
	}

	phi := make([]float64, len(row))
	for i, f := range feats {
		for mask := 0; mask < 1<<m; mask++ {
			if mask&(1<<i) != 0 {
				continue
			}
			present := map[int]bool{}
			size := 0
			for j, g := range feats {
				if mask&(1<<j) != 0 {
					present[g] = true
					size++
				}
			}
			without := value(present)
			present[f] = true
			with := value(present)

			weight := factorial(size) * factorial(m-size-1) / factorial(m)
			phi[f] += weight * (with - without)
		}
	}
	return phi
}

func factorial(n int) float64 {
	return math.Gamma(float64(n) + 1)
}
