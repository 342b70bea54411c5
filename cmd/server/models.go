package main

import (
	"time"

	"github.com/hriskit/formulas/formula"
)

// API request and response models.

// CreateFormulaRequest is the body for creating a formula. Active
// defaults to true when omitted.
type CreateFormulaRequest struct {
	Key         string `json:"formula_key" example:"monthlyRate"`
	Expression  string `json:"formula_expression" example:"Math.floor(parseFloat(record.rateNbc584 || 0))"`
	Description string `json:"description" example:"Base monthly rate, rounded down"`
	Active      *bool  `json:"active,omitempty" example:"true"`
}

// UpdateFormulaRequest is the body for updating a formula. The key is
// taken from the URL and never from the body.
type UpdateFormulaRequest struct {
	Expression  string `json:"formula_expression" example:"parseFloat(record.rateNbc584 || 0)"`
	Description string `json:"description" example:"Base monthly rate"`
	Active      *bool  `json:"active,omitempty" example:"true"`
}

// FormulaResponse is a formula in API responses.
type FormulaResponse struct {
	ID          string    `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Key         string    `json:"formula_key" example:"monthlyRate"`
	Expression  string    `json:"formula_expression" example:"Math.floor(parseFloat(record.rateNbc584 || 0))"`
	Description string    `json:"description" example:"Base monthly rate, rounded down"`
	Active      bool      `json:"active" example:"true"`
	CreatedAt   time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt   time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

func toFormulaResponse(f *formula.Formula) FormulaResponse {
	return FormulaResponse{
		ID:          f.ID,
		Key:         f.Key,
		Expression:  f.Expression,
		Description: f.Description,
		Active:      f.Active,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// CatalogResponse lists everything the formula builder palette offers.
type CatalogResponse struct {
	Fields    []formula.FieldDescriptor    `json:"fields"`
	Operators []formula.OperatorDescriptor `json:"operators"`
	Rounding  []formula.RoundingDescriptor `json:"rounding"`
	Percents  []formula.PercentShortcut    `json:"percents"`
}

// EvaluateRequest is the body for evaluation endpoints. Inputs are
// payroll field values; catalog fields left out evaluate as zero.
type EvaluateRequest struct {
	Inputs map[string]float64 `json:"inputs"`
}

// EvaluationResultResponse is a single formula evaluation result.
type EvaluationResultResponse struct {
	Key   string  `json:"formula_key" example:"monthlyRate"`
	Value float64 `json:"value" example:"27000"`
	Error string  `json:"error,omitempty"`
}

func toEvaluationResultResponse(r *formula.EvaluationResult) EvaluationResultResponse {
	out := EvaluationResultResponse{Key: r.Key, Value: r.Value}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// EvaluateResponse is the response for evaluation endpoints.
type EvaluateResponse struct {
	Results        []EvaluationResultResponse `json:"results"`
	EvaluationTime string                     `json:"evaluationTime" example:"1.2ms"`
}

// ErrorResponse is the error envelope every failure returns.
type ErrorResponse struct {
	Error string `json:"error" example:"formula key already exists: monthlyRate"`
}
