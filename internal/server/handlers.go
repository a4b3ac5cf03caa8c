package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/jonathan/churn-predictor/internal/model"
	"github.com/jonathan/churn-predictor/internal/ranking"
	"github.com/jonathan/churn-predictor/internal/schema"
	"github.com/jonathan/churn-predictor/internal/types"
	"go.uber.org/zap"
)

// PredictResponse is the body of a successful /predict call
type PredictResponse struct {
	ChurnProbability float64 `json:"churn_probability"`
}

// BatchPredictResponse is the body of a successful /predict/batch call
type BatchPredictResponse struct {
	ChurnProbabilities []float64 `json:"churn_probabilities"`
}

// ExplainResponse is the body of the explanation routes
type ExplainResponse struct {
	CustomerID       string                      `json:"customerID,omitempty"`
	ChurnProbability float64                     `json:"churn_probability"`
	ExpectedValue    float64                     `json:"expected_value"`
	RawMargin        float64                     `json:"raw_margin"`
	Contributions    []types.FeatureContribution `json:"contributions"`
}

// CustomerResponse is a dataset customer with its score
type CustomerResponse struct {
	CustomerID       string               `json:"customerID"`
	ChurnProbability float64              `json:"churn_probability"`
	Record           types.CustomerRecord `json:"record"`
}

// ModelResponse describes the loaded artifact
type ModelResponse struct {
	Info               model.Info `json:"model_info"`
	FeatureNames       []string   `json:"feature_names"`
	CategoricalFeature []string   `json:"cat_features"`
	ExpectedValue      float64    `json:"expected_value"`
	Bias               float64    `json:"bias"`
	Trees              int        `json:"trees"`
	Fingerprint        string     `json:"fingerprint"`
	DatasetSize        int        `json:"dataset_size"`
}

// batchItemError ties a failure to its position in a batch request
type batchItemError struct {
	Index int
	Err   error
}

func (e *batchItemError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *batchItemError) Unwrap() error {
	return e.Err
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Customer churn prediction API is up!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePredict scores one customer record
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := s.decodeBody(w, r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := schema.Validate(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.scorer.Predict(s.builder.Build(record))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.observePredictions("predict", 1)
	s.jsonResponse(w, http.StatusOK, PredictResponse{ChurnProbability: round4(p)})
}

// handlePredictBatch scores a JSON array of records in one scorer call.
// Any invalid record rejects the whole batch.
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var raws []map[string]any
	if err := s.decodeBody(w, r, &raws); err != nil {
		s.writeError(w, r, err)
		return
	}

	records := make([]types.CustomerRecord, len(raws))
	for i, raw := range raws {
		record, err := schema.Validate(raw)
		if err != nil {
			s.writeError(w, r, &batchItemError{Index: i, Err: err})
			return
		}
		records[i] = record
	}

	probs, err := s.scorer.PredictBatch(r.Context(), s.builder.BuildBatch(records))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i := range probs {
		probs[i] = round4(probs[i])
	}
	s.metrics.observeBatch(len(records))
	s.metrics.observePredictions("predict_batch", len(records))
	s.jsonResponse(w, http.StatusOK, BatchPredictResponse{ChurnProbabilities: probs})
}

// handleExplain returns the per-feature attribution of one record
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := s.decodeBody(w, r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := schema.Validate(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.explainRecord(r, record)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleTopCustomers ranks the reference dataset, highest churn risk first
func (s *Server) handleTopCustomers(w http.ResponseWriter, r *http.Request) {
	if s.dataset == nil {
		s.writeError(w, r, &ErrDatasetUnavailable{})
		return
	}

	k := s.topKDefault
	if q := r.URL.Query().Get("k"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil {
			s.writeError(w, r, &ranking.InvalidArgumentError{Argument: "k", Message: fmt.Sprintf("must be an integer, got %q", q)})
			return
		}
		k = parsed
	}
	if k > s.topKMax {
		s.writeError(w, r, &ranking.InvalidArgumentError{Argument: "k", Message: fmt.Sprintf("must be at most %d, got %d", s.topKMax, k)})
		return
	}

	ranked, err := s.ranker.Rank(r.Context(), s.dataset.Customers(), k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i := range ranked.Ranked {
		ranked.Ranked[i].ChurnProbability = round4(ranked.Ranked[i].ChurnProbability)
	}
	s.metrics.observeBatch(s.dataset.Len())
	s.metrics.observePredictions("customers_top", s.dataset.Len())
	s.jsonResponse(w, http.StatusOK, ranked)
}

// handleCustomer returns one dataset customer with its score
func (s *Server) handleCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.lookupCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.scorer.Predict(s.builder.Build(customer.Record))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.observePredictions("customer", 1)
	s.jsonResponse(w, http.StatusOK, CustomerResponse{
		CustomerID:       customer.ID,
		ChurnProbability: round4(p),
		Record:           customer.Record,
	})
}

// handleCustomerExplain returns the attribution of one dataset customer
func (s *Server) handleCustomerExplain(w http.ResponseWriter, r *http.Request) {
	customer, err := s.lookupCustomer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.explainRecord(r, customer.Record)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.CustomerID = customer.ID
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleModel(w http.ResponseWriter, _ *http.Request) {
	size := 0
	if s.dataset != nil {
		size = s.dataset.Len()
	}
	s.jsonResponse(w, http.StatusOK, ModelResponse{
		Info:               s.scorer.Info(),
		FeatureNames:       s.scorer.Columns(),
		CategoricalFeature: s.scorer.CategoricalFields(),
		ExpectedValue:      s.scorer.ExpectedValue(),
		Bias:               s.scorer.Bias(),
		Trees:              len(s.scorer.Trees()),
		Fingerprint:        s.scorer.Fingerprint(),
		DatasetSize:        size,
	})
}

func (s *Server) handleCustomerSchema(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, schema.JSONSchema())
}

func (s *Server) lookupCustomer(r *http.Request) (types.Customer, error) {
	if s.dataset == nil {
		return types.Customer{}, &ErrDatasetUnavailable{}
	}
	id := r.PathValue("id")
	customer, ok := s.dataset.Get(id)
	if !ok {
		return types.Customer{}, &ErrCustomerNotFound{ID: id}
	}
	return customer, nil
}

func (s *Server) explainRecord(r *http.Request, record types.CustomerRecord) (*ExplainResponse, error) {
	attr, err := s.explainer.Explain(r.Context(), s.builder.Build(record))
	if err != nil {
		return nil, err
	}
	s.metrics.observePredictions("explain", 1)
	return &ExplainResponse{
		ChurnProbability: round4(model.Sigmoid(attr.RawMargin)),
		ExpectedValue:    attr.BaseValue,
		RawMargin:        attr.RawMargin,
		Contributions:    attr.Rows(),
	}, nil
}

// decodeBody reads a JSON body into dst, keeping numbers as json.Number so
// integer fields are not routed through float64.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return &ErrBadRequest{Message: "invalid request body", Cause: err}
	}
	if dec.More() {
		return &ErrBadRequest{Message: "request body must hold a single JSON value"}
	}
	return nil
}

// writeError maps err to a status and a JSON body. Validation failures name
// the offending field and value; server faults are logged and not echoed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)

	var validation *schema.ValidationError
	if errors.As(err, &validation) {
		s.metrics.observeValidationFailure(validation.Field)
		body := map[string]any{
			"error": validation.Error(),
			"field": validation.Field,
			"value": validation.Value,
		}
		var item *batchItemError
		if errors.As(err, &item) {
			body["index"] = item.Index
		}
		s.jsonResponse(w, status, body)
		return
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// round4 rounds a probability to four decimal places for responses.
func round4(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return p
	}
	v, err := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 4, 64), 64)
	if err != nil {
		return p
	}
	return v
}
