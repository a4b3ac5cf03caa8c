package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
)

// LoadCSV reads a Telco-format CSV file with a header row.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Message: "failed to open dataset", Cause: err}
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(path, f)
}

// ReadCSV parses Telco-format CSV from r. Columns are matched by header name;
// columns the schema does not know, such as Churn, are ignored.
func ReadCSV(source string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: source, Message: "dataset is empty"}
		}
		return nil, &LoadError{Source: source, Message: "failed to read header", Cause: err}
	}

	position := make(map[string]int, len(header))
	for i, name := range header {
		position[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	required := append([]string{IDColumn}, schema.Names()...)
	for _, name := range required {
		if _, ok := position[name]; !ok {
			return nil, &LoadError{Source: source, Field: name, Message: "required column missing from header"}
		}
	}
	idCol := position[IDColumn]

	var customers []types.Customer
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Source: source, Row: row, Message: "malformed csv", Cause: err}
		}

		raw := make(map[string]any, len(schema.Names()))
		for _, name := range schema.Names() {
			raw[name] = rec[position[name]]
		}
		record, err := validateRow(source, row, raw)
		if err != nil {
			return nil, err
		}
		customers = append(customers, types.Customer{
			ID:     strings.TrimSpace(rec[idCol]),
			Record: record,
		})
	}

	ds, err := New(source, customers)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, &LoadError{Source: source, Message: fmt.Sprintf("no rows after header (%d columns)", len(header))}
	}
	return ds, nil
}
