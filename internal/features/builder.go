// Package features lays customer records out as the feature vectors a model expects.
package features

import (
	"fmt"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
)

// Builder projects records into a fixed column order.
// It is immutable after construction and safe for concurrent use.
type Builder struct {
	columns            []string
	fields             []schema.Field
	categoricalIndices []int
}

// NewBuilder checks columnOrder and categoricalFields against the schema and
// precomputes the categorical column positions.
func NewBuilder(columnOrder []string, categoricalFields []string) (*Builder, error) {
	if len(columnOrder) == 0 {
		return nil, &schema.MismatchError{Message: "column order is empty"}
	}

	position := make(map[string]int, len(columnOrder))
	fields := make([]schema.Field, len(columnOrder))
	for i, name := range columnOrder {
		if _, dup := position[name]; dup {
			return nil, &schema.MismatchError{Field: name, Message: "column listed more than once"}
		}
		f, ok := schema.Lookup(name)
		if !ok {
			return nil, &schema.MismatchError{Field: name, Message: "column is not a field of the customer record"}
		}
		position[name] = i
		fields[i] = f
	}

	isCategorical := make(map[string]bool, len(categoricalFields))
	for _, name := range categoricalFields {
		if _, ok := position[name]; !ok {
			return nil, &schema.MismatchError{Field: name, Message: "categorical field is absent from the column order"}
		}
		isCategorical[name] = true
	}

	// Positions follow the final column order, not the order of categoricalFields.
	var catIdx []int
	for i, f := range fields {
		declared := isCategorical[f.Name]
		if declared != (f.Kind == types.Categorical) {
			return nil, &schema.MismatchError{
				Field:   f.Name,
				Message: fmt.Sprintf("model declares categorical=%t but schema kind is %s", declared, f.Kind),
			}
		}
		if declared {
			catIdx = append(catIdx, i)
		}
	}

	cols := make([]string, len(columnOrder))
	copy(cols, columnOrder)

	return &Builder{
		columns:            cols,
		fields:             fields,
		categoricalIndices: catIdx,
	}, nil
}

// Columns returns the column order the builder produces.
func (b *Builder) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// CategoricalIndices returns the positions of categorical columns.
func (b *Builder) CategoricalIndices() []int {
	out := make([]int, len(b.categoricalIndices))
	copy(out, b.categoricalIndices)
	return out
}

// Build lays out a single record.
func (b *Builder) Build(record types.CustomerRecord) types.FeatureVector {
	return types.FeatureVector{
		Columns:            b.columns,
		CategoricalIndices: b.categoricalIndices,
		Values:             b.row(record),
	}
}

// BuildBatch lays out records in order; all rows share one layout.
func (b *Builder) BuildBatch(records []types.CustomerRecord) types.FeatureBatch {
	rows := make([][]types.Value, len(records))
	for i, r := range records {
		rows[i] = b.row(r)
	}
	return types.FeatureBatch{
		Columns:            b.columns,
		CategoricalIndices: b.categoricalIndices,
		Rows:               rows,
	}
}

func (b *Builder) row(record types.CustomerRecord) []types.Value {
	values := make([]types.Value, len(b.fields))
	for i, f := range b.fields {
		values[i] = f.Get(record)
	}
	return values
}

// Build is the one-shot form of NewBuilder followed by Builder.Build.
func Build(record types.CustomerRecord, columnOrder []string, categoricalFields []string) (types.FeatureVector, error) {
	b, err := NewBuilder(columnOrder, categoricalFields)
	if err != nil {
		return types.FeatureVector{}, err
	}
	return b.Build(record), nil
}

// BuildBatch is the one-shot form of NewBuilder followed by Builder.BuildBatch.
func BuildBatch(records []types.CustomerRecord, columnOrder []string, categoricalFields []string) (types.FeatureBatch, error) {
	b, err := NewBuilder(columnOrder, categoricalFields)
	if err != nil {
		return types.FeatureBatch{}, err
	}
	return b.BuildBatch(records), nil
}
