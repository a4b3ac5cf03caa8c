// Package ranking orders reference customers by predicted churn risk.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonathan/churn-predictor/internal/features"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/samber/lo"
)

// BatchScorer scores a batch of feature vectors in one call.
type BatchScorer interface {
	PredictBatch(ctx context.Context, batch types.FeatureBatch) ([]float64, error)
}

// Service ranks customers with one scorer and the builder matching its layout.
type Service struct {
	scorer  BatchScorer
	builder *features.Builder
}

// NewService creates a ranking service.
func NewService(scorer BatchScorer, builder *features.Builder) *Service {
	return &Service{scorer: scorer, builder: builder}
}

// Rank returns the k customers most likely to churn, highest probability first.
// k larger than the dataset is clamped; k <= 0 is an error.
func (s *Service) Rank(ctx context.Context, customers []types.Customer, k int) (*types.RankedCustomers, error) {
	if k <= 0 {
		return nil, &InvalidArgumentError{Argument: "k", Message: fmt.Sprintf("must be a positive integer, got %d", k)}
	}

	records := lo.Map(customers, func(c types.Customer, _ int) types.CustomerRecord { return c.Record })
	probs, err := s.scorer.PredictBatch(ctx, s.builder.BuildBatch(records))
	if err != nil {
		return nil, fmt.Errorf("failed to score customers: %w", err)
	}
	if len(probs) != len(customers) {
		return nil, fmt.Errorf("scorer returned %d probabilities for %d customers", len(probs), len(customers))
	}

	order, err := TopK(probs, k)
	if err != nil {
		return nil, err
	}

	ranked := make([]types.RankedCustomer, len(order))
	for r, idx := range order {
		ranked[r] = types.RankedCustomer{
			Rank:             r + 1,
			CustomerID:       customers[idx].ID,
			ChurnProbability: probs[idx],
			Record:           customers[idx].Record,
		}
	}

	return &types.RankedCustomers{K: k, Total: len(customers), Ranked: ranked}, nil
}

// TopK returns the indices of the k largest probabilities in descending order.
// Equal probabilities keep their original order.
func TopK(probs []float64, k int) ([]int, error) {
	if k <= 0 {
		return nil, &InvalidArgumentError{Argument: "k", Message: fmt.Sprintf("must be a positive integer, got %d", k)}
	}

	idx := lo.Range(len(probs))
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := probs[idx[a]], probs[idx[b]]
		if pa != pb {
			return pa > pb
		}
		return idx[a] < idx[b]
	})

	return idx[:min(k, len(idx))], nil
}
