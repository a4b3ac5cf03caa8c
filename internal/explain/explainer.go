// Package explain decomposes churn predictions into per-feature contributions
// with exact TreeSHAP.
package explain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

const (
	sumTolerance = 1e-6
	keyPrefix    = "churn:explain:"
)

// Explainer computes attribution sets for one model.
type Explainer struct {
	scorer  *model.Scorer
	cache   Cache
	logger  *zap.Logger
	observe func(hit bool)
	group   singleflight.Group
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithCache memoizes explanations. Results are identical with or without it.
func WithCache(c Cache) Option {
	return func(e *Explainer) { e.cache = c }
}

// WithLogger sets the logger used for cache failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Explainer) { e.logger = l }
}

// WithCacheObserver registers a callback run on every cache lookup.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(e *Explainer) { e.observe = fn }
}

// New creates an Explainer for scorer.
func New(scorer *model.Scorer, opts ...Option) *Explainer {
	e := &Explainer{scorer: scorer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explain returns the attribution set of one vector.
func (e *Explainer) Explain(ctx context.Context, v types.FeatureVector) (*types.AttributionSet, error) {
	if e.cache == nil {
		return e.compute(v)
	}
	// reject malformed vectors before they reach the key encoder
	if _, err := e.scorer.Margin(v); err != nil {
		return nil, err
	}

	key := e.cacheKey(v)
	cached, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("explanation cache read failed", zap.String("key", key), zap.Error(err))
	}
	if e.observe != nil {
		e.observe(ok)
	}
	if ok {
		return cached, nil
	}

	res, err, _ := e.group.Do(key, func() (interface{}, error) {
		a, err := e.compute(v)
		if err != nil {
			return nil, err
		}
		if err := e.cache.Set(ctx, key, a); err != nil {
			e.logger.Warn("explanation cache write failed", zap.String("key", key), zap.Error(err))
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	// callers coalesced by singleflight must not share one value
	return clone(res.(*types.AttributionSet)), nil
}

// ExplainBatch explains each row independently, in row order.
func (e *Explainer) ExplainBatch(ctx context.Context, batch types.FeatureBatch) ([]*types.AttributionSet, error) {
	out := make([]*types.AttributionSet, batch.Len())
	for i := range batch.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := e.Explain(ctx, batch.Row(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

func (e *Explainer) compute(v types.FeatureVector) (*types.AttributionSet, error) {
	margin, err := e.scorer.Margin(v)
	if err != nil {
		return nil, err
	}

	phi := make([]float64, len(v.Columns))
	for _, t := range e.scorer.Trees() {
		treeShap(t, v.Values, phi)
	}

	values := make([]string, len(v.Values))
	for i, val := range v.Values {
		values[i] = val.String()
	}

	a := &types.AttributionSet{
		BaseValue:     e.scorer.ExpectedValue(),
		RawMargin:     margin,
		Features:      append([]string(nil), v.Columns...),
		Values:        values,
		Contributions: phi,
	}
	if diff := math.Abs(a.Sum() - margin); diff > sumTolerance {
		return nil, fmt.Errorf("attributions sum to %v but margin is %v", a.Sum(), margin)
	}
	return a, nil
}

// cacheKey digests the model fingerprint and the vector contents, so keys
// never collide across model versions.
func (e *Explainer) cacheKey(v types.FeatureVector) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(e.scorer.Fingerprint()))

	var num [8]byte
	for i, val := range v.Values {
		h.Write([]byte{0})
		h.Write([]byte(v.Columns[i]))
		h.Write([]byte{byte(val.Kind)})
		if val.Kind == types.Categorical {
			h.Write([]byte(val.Cat))
		} else {
			binary.LittleEndian.PutUint64(num[:], math.Float64bits(val.Num))
			h.Write(num[:])
		}
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
