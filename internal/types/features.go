package types

import "strconv"

// FeatureKind distinguishes numeric from categorical columns.
type FeatureKind int

const (
	// Numeric columns hold a float value.
	Numeric FeatureKind = iota
	// Categorical columns hold a label from a fixed set.
	Categorical
)

// String returns the lowercase kind name.
func (k FeatureKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Value is a single cell of a feature vector.
type Value struct {
	Kind FeatureKind
	Num  float64
	Cat  string
}

// NumericValue wraps a float as a numeric cell.
func NumericValue(v float64) Value {
	return Value{Kind: Numeric, Num: v}
}

// CategoricalValue wraps a label as a categorical cell.
func CategoricalValue(v string) Value {
	return Value{Kind: Categorical, Cat: v}
}

// String formats the cell for display.
func (v Value) String() string {
	if v.Kind == Categorical {
		return v.Cat
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// FeatureVector is a record laid out in the model's column order.
// CategoricalIndices holds the positions of categorical columns within Columns.
type FeatureVector struct {
	Columns            []string
	CategoricalIndices []int
	Values             []Value
}

// FeatureBatch is an ordered set of rows sharing one column layout.
type FeatureBatch struct {
	Columns            []string
	CategoricalIndices []int
	Rows               [][]Value
}

// Len returns the number of rows in the batch.
func (b FeatureBatch) Len() int {
	return len(b.Rows)
}

// Row returns row i as a standalone vector sharing the batch layout.
func (b FeatureBatch) Row(i int) FeatureVector {
	return FeatureVector{
		Columns:            b.Columns,
		CategoricalIndices: b.CategoricalIndices,
		Values:             b.Rows[i],
	}
}
