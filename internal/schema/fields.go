package schema

import (
	"strings"

	"github.com/jonathan/churn-predictor/internal/types"
)

var (
	yesNo            = []string{"Yes", "No"}
	yesNoPhone       = []string{"Yes", "No", "No phone service"}
	yesNoInternet    = []string{"Yes", "No", "No internet service"}
	genders          = []string{"Male", "Female"}
	internetServices = []string{"DSL", "Fiber optic", "No"}
	contracts        = []string{"Month-to-month", "One year", "Two year"}
	paymentMethods   = []string{"Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)"}
)

// Field describes one column of the customer schema.
type Field struct {
	Name    string
	Kind    types.FeatureKind
	Allowed []string // categorical levels, in display order
	Integer bool     // numeric column that must hold a whole number
	Flag    bool     // integer column restricted to {0, 1}

	get func(*types.CustomerRecord) types.Value
	set func(*types.CustomerRecord, types.Value)
}

func categorical(name string, allowed []string, ptr func(*types.CustomerRecord) *string) Field {
	return Field{
		Name:    name,
		Kind:    types.Categorical,
		Allowed: allowed,
		get:     func(r *types.CustomerRecord) types.Value { return types.CategoricalValue(*ptr(r)) },
		set:     func(r *types.CustomerRecord, v types.Value) { *ptr(r) = v.Cat },
	}
}

func integer(name string, flag bool, ptr func(*types.CustomerRecord) *int) Field {
	return Field{
		Name:    name,
		Kind:    types.Numeric,
		Integer: true,
		Flag:    flag,
		get:     func(r *types.CustomerRecord) types.Value { return types.NumericValue(float64(*ptr(r))) },
		set:     func(r *types.CustomerRecord, v types.Value) { *ptr(r) = int(v.Num) },
	}
}

func amount(name string, ptr func(*types.CustomerRecord) *float64) Field {
	return Field{
		Name: name,
		Kind: types.Numeric,
		get:  func(r *types.CustomerRecord) types.Value { return types.NumericValue(*ptr(r)) },
		set:  func(r *types.CustomerRecord, v types.Value) { *ptr(r) = v.Num },
	}
}

// fields is the canonical column order of the Telco training table.
var fields = []Field{
	categorical("gender", genders, func(r *types.CustomerRecord) *string { return &r.Gender }),
	integer("SeniorCitizen", true, func(r *types.CustomerRecord) *int { return &r.SeniorCitizen }),
	categorical("Partner", yesNo, func(r *types.CustomerRecord) *string { return &r.Partner }),
	categorical("Dependents", yesNo, func(r *types.CustomerRecord) *string { return &r.Dependents }),
	integer("tenure", false, func(r *types.CustomerRecord) *int { return &r.Tenure }),
	categorical("PhoneService", yesNo, func(r *types.CustomerRecord) *string { return &r.PhoneService }),
	categorical("MultipleLines", yesNoPhone, func(r *types.CustomerRecord) *string { return &r.MultipleLines }),
	categorical("InternetService", internetServices, func(r *types.CustomerRecord) *string { return &r.InternetService }),
	categorical("OnlineSecurity", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.OnlineSecurity }),
	categorical("OnlineBackup", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.OnlineBackup }),
	categorical("DeviceProtection", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.DeviceProtection }),
	categorical("TechSupport", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.TechSupport }),
	categorical("StreamingTV", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.StreamingTV }),
	categorical("StreamingMovies", yesNoInternet, func(r *types.CustomerRecord) *string { return &r.StreamingMovies }),
	categorical("Contract", contracts, func(r *types.CustomerRecord) *string { return &r.Contract }),
	categorical("PaperlessBilling", yesNo, func(r *types.CustomerRecord) *string { return &r.PaperlessBilling }),
	categorical("PaymentMethod", paymentMethods, func(r *types.CustomerRecord) *string { return &r.PaymentMethod }),
	amount("MonthlyCharges", func(r *types.CustomerRecord) *float64 { return &r.MonthlyCharges }),
	amount("TotalCharges", func(r *types.CustomerRecord) *float64 { return &r.TotalCharges }),
}

var fieldIndex = func() map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.Name] = i
	}
	return idx
}()

// Fields returns the schema fields in canonical order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup returns the field with the given name.
func Lookup(name string) (Field, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return fields[i], true
}

// Names returns all field names in canonical order.
func Names() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// CategoricalNames returns the categorical field names in canonical order.
func CategoricalNames() []string {
	var names []string
	for _, f := range fields {
		if f.Kind == types.Categorical {
			names = append(names, f.Name)
		}
	}
	return names
}

// Get reads this field from a record.
func (f Field) Get(r types.CustomerRecord) types.Value {
	return f.get(&r)
}

// Allows reports whether label is a member of a categorical field's level set.
func (f Field) Allows(label string) bool {
	for _, a := range f.Allowed {
		if a == label {
			return true
		}
	}
	return false
}

// tag renders the validator/v10 rule for this field.
func (f Field) tag() string {
	switch {
	case f.Kind == types.Categorical:
		quoted := make([]string, len(f.Allowed))
		for i, a := range f.Allowed {
			quoted[i] = "'" + a + "'"
		}
		return "oneof=" + strings.Join(quoted, " ")
	case f.Flag:
		return "oneof=0 1"
	default:
		return "gte=0"
	}
}

// rule describes the tag in words for error messages.
func (f Field) rule() string {
	switch {
	case f.Kind == types.Categorical:
		return "must be one of [" + strings.Join(f.Allowed, ", ") + "]"
	case f.Flag:
		return "must be 0 or 1"
	default:
		return "must be >= 0"
	}
}
