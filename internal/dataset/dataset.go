// Package dataset loads the reference customer population used for ranking.
package dataset

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
)

// IDColumn is the identifier column of the Telco table.
const IDColumn = "customerID"

// Dataset is an immutable, validated set of customers in source order.
type Dataset struct {
	source    string
	customers []types.Customer
	index     map[string]int
}

// New indexes customers by identifier. Identifiers must be unique and
// non-empty, and every record must pass the schema rules.
func New(source string, customers []types.Customer) (*Dataset, error) {
	index := make(map[string]int, len(customers))
	for i, c := range customers {
		if c.ID == "" {
			return nil, &LoadError{Source: source, Row: i + 1, Field: IDColumn, Message: "customer id is empty"}
		}
		if err := schema.ValidateRecord(c.Record); err != nil {
			lerr := &LoadError{Source: source, Row: i + 1, Message: "invalid customer record", Cause: err}
			var vErr *schema.ValidationError
			if errors.As(err, &vErr) {
				lerr.Field = vErr.Field
			}
			return nil, lerr
		}
		if first, dup := index[c.ID]; dup {
			return nil, &LoadError{
				Source:  source,
				Row:     i + 1,
				Field:   IDColumn,
				Message: "customer ids must be unique",
				Cause:   &DuplicateIDError{ID: c.ID, FirstRow: first + 1, Row: i + 1},
			}
		}
		index[c.ID] = i
	}
	return &Dataset{source: source, customers: customers, index: index}, nil
}

// Source describes where the dataset was loaded from.
func (d *Dataset) Source() string { return d.source }

// Len returns the number of customers.
func (d *Dataset) Len() int { return len(d.customers) }

// Customers returns the customers in source order. The slice must not be modified.
func (d *Dataset) Customers() []types.Customer { return d.customers }

// Get looks a customer up by identifier.
func (d *Dataset) Get(id string) (types.Customer, bool) {
	i, ok := d.index[id]
	if !ok {
		return types.Customer{}, false
	}
	return d.customers[i], true
}

// ImputeTotalCharges fills a blank, missing or non-numeric TotalCharges with
// tenure * MonthlyCharges, the way the training table was cleaned.
// raw is left alone when tenure or MonthlyCharges are themselves unusable;
// validation reports those fields.
func ImputeTotalCharges(raw map[string]any) {
	if _, ok := number(raw["TotalCharges"]); ok {
		return
	}
	tenure, ok := number(raw["tenure"])
	if !ok {
		return
	}
	monthly, ok := number(raw["MonthlyCharges"])
	if !ok {
		return
	}
	raw["TotalCharges"] = tenure * monthly
}

// number reads a numeric cell. NaN counts as missing, matching how the
// training pipeline's CSV reader treats "NaN" and "nan" cells.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// validateRow turns a raw row into a record, wrapping schema failures with the row position.
func validateRow(source string, row int, raw map[string]any) (types.CustomerRecord, error) {
	ImputeTotalCharges(raw)
	record, err := schema.Validate(raw)
	if err != nil {
		lerr := &LoadError{Source: source, Row: row, Message: "invalid customer row", Cause: err}
		var vErr *schema.ValidationError
		if errors.As(err, &vErr) {
			lerr.Field = vErr.Field
		}
		return types.CustomerRecord{}, lerr
	}
	return record, nil
}
