package dataset

import (
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/testutil"
	"github.com/jonathan/churn-predictor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines," +
	"InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies," +
	"Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn\n"

func row(id, tenure, monthly, total string) string {
	return id + ",Female,0,Yes,No," + tenure + ",No,No phone service,DSL,No,Yes,No,No,No,No," +
		"Month-to-month,Yes,Electronic check," + monthly + "," + total + ",No\n"
}

func TestLoadCSV_Fixture(t *testing.T) {
	ds, err := LoadCSV(testutil.DatasetPath())
	require.NoError(t, err)

	assert.Equal(t, 12, ds.Len())
	assert.Equal(t, "7590-VHVEG", ds.Customers()[0].ID)
	assert.Equal(t, "7795-CFOCW", ds.Customers()[3].ID)

	c, ok := ds.Get("5575-GNVDE")
	require.True(t, ok)
	assert.Equal(t, "Male", c.Record.Gender)
	assert.Equal(t, 34, c.Record.Tenure)
	assert.Equal(t, "One year", c.Record.Contract)
	assert.Equal(t, 1889.5, c.Record.TotalCharges)

	_, ok = ds.Get("0000-NOPE")
	assert.False(t, ok)
}

func TestLoadCSV_ImputesBlankTotalCharges(t *testing.T) {
	ds, err := LoadCSV(testutil.DatasetPath())
	require.NoError(t, err)

	c, ok := ds.Get("4190-MFLUW")
	require.True(t, ok)
	assert.Equal(t, 500.0, c.Record.TotalCharges)

	c, ok = ds.Get("4472-LVYGI")
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Record.TotalCharges)
}

func TestImputeTotalCharges(t *testing.T) {
	tests := []struct {
		name  string
		total any
		want  any
	}{
		{"blank", "", 500.0},
		{"whitespace", " ", 500.0},
		{"unparseable", "n/a", 500.0},
		{"missing", nil, 500.0},
		{"NaN", "NaN", 500.0},
		{"lowercase nan", "nan", 500.0},
		{"NA", "NA", 500.0},
		{"NaN number", math.NaN(), 500.0},
		{"present string", "612.5", "612.5"},
		{"present number", 612.5, 612.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"tenure": "10", "MonthlyCharges": 50.0}
			if tt.total != nil {
				raw["TotalCharges"] = tt.total
			}
			ImputeTotalCharges(raw)
			assert.Equal(t, tt.want, raw["TotalCharges"])
		})
	}
}

func TestImputeTotalCharges_LeavesUnusableInputs(t *testing.T) {
	raw := map[string]any{"tenure": "ten", "MonthlyCharges": 50.0, "TotalCharges": ""}
	ImputeTotalCharges(raw)
	assert.Equal(t, "", raw["TotalCharges"])
}

func TestReadCSV_ImputesNaNTotalCharges(t *testing.T) {
	for _, cell := range []string{" ", "NaN", "nan"} {
		t.Run(strconv.Quote(cell), func(t *testing.T) {
			ds, err := ReadCSV("inline", strings.NewReader(header+row("A", "10", "50.0", cell)))
			require.NoError(t, err)
			c, ok := ds.Get("A")
			require.True(t, ok)
			assert.Equal(t, 500.0, c.Record.TotalCharges)
		})
	}
}

func TestReadCSV_InvalidRowNamesField(t *testing.T) {
	data := header + row("A", "1", "20", "20") + strings.Replace(row("B", "2", "20", "40"), "DSL", "Cable", 1)

	_, err := ReadCSV("inline", strings.NewReader(data))
	require.Error(t, err)

	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 2, lerr.Row)
	assert.Equal(t, "InternetService", lerr.Field)

	var vErr *schema.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestReadCSV_DuplicateIDs(t *testing.T) {
	data := header + row("A", "1", "20", "20") + row("B", "2", "20", "40") + row("A", "3", "20", "60")

	_, err := ReadCSV("inline", strings.NewReader(data))
	require.Error(t, err)

	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "A", dup.ID)
	assert.Equal(t, 1, dup.FirstRow)
	assert.Equal(t, 3, dup.Row)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	data := strings.Replace(header, ",Contract", "", 1) + "x\n"

	_, err := ReadCSV("inline", strings.NewReader(data))
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "Contract", lerr.Field)
}

func TestReadCSV_ColumnOrderIndependent(t *testing.T) {
	data := "Churn,TotalCharges,MonthlyCharges,PaymentMethod,PaperlessBilling,Contract,StreamingMovies," +
		"StreamingTV,TechSupport,DeviceProtection,OnlineBackup,OnlineSecurity,InternetService,MultipleLines," +
		"PhoneService,tenure,Dependents,Partner,SeniorCitizen,gender,customerID\n" +
		"Yes,151.65,70.7,Electronic check,Yes,Month-to-month,No,No,No,No,No,No,Fiber optic,No,Yes,2,No,No,0,Female,9237-HQITU\n"

	ds, err := ReadCSV("inline", strings.NewReader(data))
	require.NoError(t, err)

	c, ok := ds.Get("9237-HQITU")
	require.True(t, ok)
	assert.Equal(t, "Fiber optic", c.Record.InternetService)
	assert.Equal(t, 2, c.Record.Tenure)
	assert.Equal(t, 151.65, c.Record.TotalCharges)
}

func TestReadCSV_EmptyInputs(t *testing.T) {
	_, err := ReadCSV("empty", strings.NewReader(""))
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))

	_, err = ReadCSV("header-only", strings.NewReader(header))
	require.True(t, errors.As(err, &lerr))
}

func TestReadCSV_RaggedRow(t *testing.T) {
	data := header + "A,Female,0\n"

	_, err := ReadCSV("inline", strings.NewReader(data))
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 1, lerr.Row)
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
}

func TestNew_RejectsEmptyID(t *testing.T) {
	_, err := New("inline", []types.Customer{{ID: "", Record: testutil.Record()}})
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, IDColumn, lerr.Field)
}

func TestNew_RejectsInvalidRecord(t *testing.T) {
	bad := testutil.Record()
	bad.Contract = "Weekly"
	_, err := New("inline", []types.Customer{{ID: "A", Record: testutil.Record()}, {ID: "B", Record: bad}})

	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 2, lerr.Row)
	assert.Equal(t, "Contract", lerr.Field)

	var vErr *schema.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestSelectQuery(t *testing.T) {
	q := selectQuery(`telco"customers`)
	assert.True(t, strings.HasPrefix(q, "SELECT customer_id, gender, senior_citizen::bigint"))
	assert.Contains(t, q, `FROM "telco""customers" ORDER BY customer_id`)
	assert.Len(t, columnFields, len(schema.Names()))
	for i, name := range schema.Names() {
		assert.Equal(t, name, columnFields[i].field)
	}
}
