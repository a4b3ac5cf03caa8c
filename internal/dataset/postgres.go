package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/churn-predictor/internal/types"
)

// columnFields maps snake_case table columns to record fields, in schema order.
var columnFields = []struct {
	column string
	field  string
	cast   string
}{
	{"gender", "gender", ""},
	{"senior_citizen", "SeniorCitizen", "::bigint"},
	{"partner", "Partner", ""},
	{"dependents", "Dependents", ""},
	{"tenure", "tenure", "::bigint"},
	{"phone_service", "PhoneService", ""},
	{"multiple_lines", "MultipleLines", ""},
	{"internet_service", "InternetService", ""},
	{"online_security", "OnlineSecurity", ""},
	{"online_backup", "OnlineBackup", ""},
	{"device_protection", "DeviceProtection", ""},
	{"tech_support", "TechSupport", ""},
	{"streaming_tv", "StreamingTV", ""},
	{"streaming_movies", "StreamingMovies", ""},
	{"contract", "Contract", ""},
	{"paperless_billing", "PaperlessBilling", ""},
	{"payment_method", "PaymentMethod", ""},
	{"monthly_charges", "MonthlyCharges", "::float8"},
	{"total_charges", "TotalCharges", "::float8"},
}

func selectQuery(table string) string {
	cols := make([]string, 0, len(columnFields)+1)
	cols = append(cols, "customer_id")
	for _, c := range columnFields {
		cols = append(cols, c.column+c.cast)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY customer_id",
		strings.Join(cols, ", "), pgx.Identifier{table}.Sanitize())
}

// LoadPostgres reads the reference dataset from a PostgreSQL table.
// Rows are ordered by customer_id. A NULL total_charges is imputed like a blank CSV cell.
func LoadPostgres(ctx context.Context, databaseURL, table string) (*Dataset, error) {
	source := "postgres:" + table

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, &LoadError{Source: source, Message: "failed to connect to database", Cause: err}
	}
	defer func() { _ = conn.Close(context.Background()) }()

	rows, err := conn.Query(ctx, selectQuery(table))
	if err != nil {
		return nil, &LoadError{Source: source, Message: "failed to query customers", Cause: err}
	}
	defer rows.Close()

	var customers []types.Customer
	row := 0
	for rows.Next() {
		row++
		values, err := rows.Values()
		if err != nil {
			return nil, &LoadError{Source: source, Row: row, Message: "failed to read row", Cause: err}
		}

		id, _ := values[0].(string)
		raw := make(map[string]any, len(columnFields))
		for i, c := range columnFields {
			if v := values[i+1]; v != nil {
				raw[c.field] = v
			}
		}

		record, err := validateRow(source, row, raw)
		if err != nil {
			return nil, err
		}
		customers = append(customers, types.Customer{ID: strings.TrimSpace(id), Record: record})
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: source, Row: row, Message: "failed to read rows", Cause: err}
	}

	return New(source, customers)
}
