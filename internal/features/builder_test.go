package features

import (
	"errors"
	"testing"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() types.CustomerRecord {
	return types.CustomerRecord{
		Gender:           "Male",
		SeniorCitizen:    1,
		Partner:          "No",
		Dependents:       "No",
		Tenure:           45,
		PhoneService:     "Yes",
		MultipleLines:    "Yes",
		InternetService:  "Fiber optic",
		OnlineSecurity:   "No",
		OnlineBackup:     "Yes",
		DeviceProtection: "Yes",
		TechSupport:      "No",
		StreamingTV:      "Yes",
		StreamingMovies:  "Yes",
		Contract:         "One year",
		PaperlessBilling: "Yes",
		PaymentMethod:    "Bank transfer (automatic)",
		MonthlyCharges:   104.8,
		TotalCharges:     4716.0,
	}
}

func TestBuild_ColumnFidelity(t *testing.T) {
	order := schema.Names()
	v, err := Build(sampleRecord(), order, schema.CategoricalNames())
	require.NoError(t, err)

	assert.Equal(t, order, v.Columns)
	require.Len(t, v.Values, len(order))
	assert.Equal(t, "Male", v.Values[0].Cat)
	assert.Equal(t, 1.0, v.Values[1].Num)
	assert.Equal(t, 45.0, v.Values[4].Num)
	assert.Equal(t, 4716.0, v.Values[18].Num)
}

func TestBuild_ReorderedColumns(t *testing.T) {
	order := []string{"TotalCharges", "Contract", "tenure", "gender"}
	v, err := Build(sampleRecord(), order, []string{"gender", "Contract"})
	require.NoError(t, err)

	assert.Equal(t, order, v.Columns)
	// positions follow the column order, not the order the names were given in
	assert.Equal(t, []int{1, 3}, v.CategoricalIndices)
	assert.Equal(t, types.NumericValue(4716.0), v.Values[0])
	assert.Equal(t, types.CategoricalValue("One year"), v.Values[1])
	assert.Equal(t, types.NumericValue(45), v.Values[2])
	assert.Equal(t, types.CategoricalValue("Male"), v.Values[3])
}

func TestBuild_CategoricalPositionsFullSchema(t *testing.T) {
	v, err := Build(sampleRecord(), schema.Names(), schema.CategoricalNames())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, v.CategoricalIndices)
	for _, i := range v.CategoricalIndices {
		assert.Equal(t, types.Categorical, v.Values[i].Kind)
	}
}

func TestNewBuilder_Mismatch(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		cats  []string
		field string
	}{
		{"unknown column", []string{"gender", "customerID"}, []string{"gender"}, "customerID"},
		{"categorical absent from order", []string{"tenure"}, []string{"gender"}, "gender"},
		{"numeric declared categorical", []string{"tenure"}, []string{"tenure"}, "tenure"},
		{"categorical not declared", []string{"gender", "tenure"}, nil, "gender"},
		{"duplicate column", []string{"tenure", "tenure"}, nil, "tenure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.order, tt.cats)
			require.Error(t, err)

			var mErr *schema.MismatchError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.field, mErr.Field)
		})
	}

	_, err := NewBuilder(nil, nil)
	var mErr *schema.MismatchError
	assert.True(t, errors.As(err, &mErr))
}

func TestBuildBatch_SharedLayout(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.Tenure = 2
	b.Contract = "Month-to-month"

	batch, err := BuildBatch([]types.CustomerRecord{a, b}, schema.Names(), schema.CategoricalNames())
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())

	assert.Equal(t, schema.Names(), batch.Columns)
	assert.Equal(t, 45.0, batch.Rows[0][4].Num)
	assert.Equal(t, 2.0, batch.Rows[1][4].Num)

	row := batch.Row(1)
	assert.Equal(t, batch.Columns, row.Columns)
	assert.Equal(t, "Month-to-month", row.Values[14].Cat)
}

func TestBuildBatch_Empty(t *testing.T) {
	batch, err := BuildBatch(nil, schema.Names(), schema.CategoricalNames())
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
}

func TestBuilder_AccessorsReturnCopies(t *testing.T) {
	b, err := NewBuilder(schema.Names(), schema.CategoricalNames())
	require.NoError(t, err)

	cols := b.Columns()
	cols[0] = "mutated"
	assert.Equal(t, "gender", b.Columns()[0])

	idx := b.CategoricalIndices()
	idx[0] = 99
	assert.Equal(t, 0, b.CategoricalIndices()[0])
}
