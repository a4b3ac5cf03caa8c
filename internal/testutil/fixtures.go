// Package testutil holds the fixture model and customers shared by package tests.
package testutil

import (
	"path/filepath"
	"runtime"

	"github.com/jonathan/churn-predictor/internal/types"
)

// Pinned outputs of the fixture model for Record.
const (
	RecordMargin      = -0.3500000000000001
	RecordProbability = 0.41338242108267
	RecordRounded     = 0.4134
	ExpectedValue     = -1.2379
)

// RecordContributions are the exact Shapley values of Record under the fixture model,
// to 12 decimal places.
var RecordContributions = map[string]float64{
	"Contract":         0.510416590909,
	"InternetService":  -0.123181818182,
	"MonthlyCharges":   -0.0375,
	"OnlineSecurity":   0.067585,
	"PaperlessBilling": -0.072111111111,
	"PaymentMethod":    0.208138107417,
	"SeniorCitizen":    -0.031529411765,
	"TechSupport":      0.034782608696,
	"TotalCharges":     0.020608695652,
	"tenure":           0.310691338384,
}

// Root returns the repository root.
func Root() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// ModelPath returns the path of the fixture artifact.
func ModelPath() string {
	return filepath.Join(Root(), "testdata", "churn_model.json")
}

// GzipModelPath returns the path of the gzip-compressed fixture artifact.
func GzipModelPath() string {
	return filepath.Join(Root(), "testdata", "churn_model.json.gz")
}

// DatasetPath returns the path of the fixture customer CSV.
func DatasetPath() string {
	return filepath.Join(Root(), "testdata", "customers.csv")
}

// Record is a brand-new month-to-month DSL customer.
func Record() types.CustomerRecord {
	return types.CustomerRecord{
		Gender:           "Female",
		SeniorCitizen:    0,
		Partner:          "No",
		Dependents:       "No",
		Tenure:           1,
		PhoneService:     "No",
		MultipleLines:    "No",
		InternetService:  "DSL",
		OnlineSecurity:   "No",
		OnlineBackup:     "No",
		DeviceProtection: "No",
		TechSupport:      "No",
		StreamingTV:      "No",
		StreamingMovies:  "No",
		Contract:         "Month-to-month",
		PaperlessBilling: "No",
		PaymentMethod:    "Electronic check",
		MonthlyCharges:   29.85,
		TotalCharges:     29.85,
	}
}

// RawRecord is Record as a decoded JSON request body.
func RawRecord() map[string]any {
	return map[string]any{
		"gender":           "Female",
		"SeniorCitizen":    0.0,
		"Partner":          "No",
		"Dependents":       "No",
		"tenure":           1.0,
		"PhoneService":     "No",
		"MultipleLines":    "No",
		"InternetService":  "DSL",
		"OnlineSecurity":   "No",
		"OnlineBackup":     "No",
		"DeviceProtection": "No",
		"TechSupport":      "No",
		"StreamingTV":      "No",
		"StreamingMovies":  "No",
		"Contract":         "Month-to-month",
		"PaperlessBilling": "No",
		"PaymentMethod":    "Electronic check",
		"MonthlyCharges":   29.85,
		"TotalCharges":     29.85,
	}
}

// LowRiskRecord is a long-tenure two-year customer; the fixture model scores it 0.11920292202211755.
func LowRiskRecord() types.CustomerRecord {
	r := Record()
	r.SeniorCitizen = 1
	r.Tenure = 30
	r.InternetService = "Fiber optic"
	r.OnlineSecurity = "Yes"
	r.TechSupport = "Yes"
	r.Contract = "Two year"
	r.PaperlessBilling = "Yes"
	r.PaymentMethod = "Mailed check"
	r.MonthlyCharges = 99.5
	r.TotalCharges = 2985
	return r
}

// MidRiskRecord is Record two years in on fibre; the fixture model scores it 0.34751053780725555.
func MidRiskRecord() types.CustomerRecord {
	r := Record()
	r.Tenure = 24
	r.InternetService = "Fiber optic"
	return r
}
