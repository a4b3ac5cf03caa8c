package types

import (
	"math"
	"sort"
)

// PredictionResult is a churn probability with an optional explanation.
type PredictionResult struct {
	ChurnProbability float64        `json:"churn_probability"`
	Attribution      *AttributionSet `json:"attribution,omitempty"`
}

// AttributionSet decomposes the raw model margin of one record into a baseline
// plus one signed contribution per feature, in feature vector order.
// Positive contributions push the prediction toward churn.
type AttributionSet struct {
	BaseValue     float64   `json:"expected_value"`
	RawMargin     float64   `json:"raw_margin"`
	Features      []string  `json:"features"`
	Values        []string  `json:"values"`
	Contributions []float64 `json:"contributions"`
}

// FeatureContribution is one row of an attribution set.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Value        string  `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Sum returns BaseValue plus all contributions.
func (a *AttributionSet) Sum() float64 {
	total := a.BaseValue
	for _, c := range a.Contributions {
		total += c
	}
	return total
}

// Rows returns the contributions paired with their feature names, in vector order.
func (a *AttributionSet) Rows() []FeatureContribution {
	rows := make([]FeatureContribution, len(a.Contributions))
	for i, c := range a.Contributions {
		rows[i] = FeatureContribution{Feature: a.Features[i], Contribution: c}
		if i < len(a.Values) {
			rows[i].Value = a.Values[i]
		}
	}
	return rows
}

// Top returns the n contributions with the largest magnitude, largest first.
// Equal magnitudes keep vector order.
func (a *AttributionSet) Top(n int) []FeatureContribution {
	rows := a.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].Contribution) > math.Abs(rows[j].Contribution)
	})
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	return rows
}
