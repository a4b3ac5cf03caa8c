package types

// RankedCustomers is the top-K result of a ranking request.
type RankedCustomers struct {
	K      int              `json:"k"`
	Total  int              `json:"total"`
	Ranked []RankedCustomer `json:"ranked"`
}

// RankedCustomer is a dataset customer with its computed churn probability.
type RankedCustomer struct {
	Rank             int            `json:"rank"`
	CustomerID       string         `json:"customerID"`
	ChurnProbability float64        `json:"churn_probability"`
	Record           CustomerRecord `json:"record"`
}
