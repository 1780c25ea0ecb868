package services

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/metrics"
	"github.com/storefront/core/internal/ports"
)

// Operators maps the op form values to their symbols
var Operators = map[string]string{
	"add": "+",
	"sub": "-",
	"mul": "*",
	"div": "/",
}

// CalculatorService evaluates one binary integer operation
type CalculatorService struct {
	metrics *metrics.Metrics
}

// NewCalculatorService creates a new calculator service
func NewCalculatorService(m *metrics.Metrics) *CalculatorService {
	return &CalculatorService{metrics: m}
}

// Calculate evaluates n1 op n2 on integers of any size. Division always yields a
// decimal answer rounded to the nearest float64.
func (s *CalculatorService) Calculate(req ports.CalculationRequest) (*ports.CalculationResult, error) {
	op := req.Op
	if _, ok := Operators[op]; !ok {
		op = "other"
	}

	result, err := calculate(req)
	if err != nil {
		s.metrics.Calculated(op, "failure")
		return nil, err
	}
	s.metrics.Calculated(op, "success")
	return result, nil
}

func calculate(req ports.CalculationRequest) (*ports.CalculationResult, error) {
	if req.N1 == "" || req.Op == "" || req.N2 == "" {
		return nil, entities.ErrMissingField
	}

	n1, ok1 := new(big.Int).SetString(strings.TrimSpace(req.N1), 10)
	n2, ok2 := new(big.Int).SetString(strings.TrimSpace(req.N2), 10)
	if !ok1 || !ok2 {
		return nil, entities.ErrInvalidOperand
	}

	symbol, ok := Operators[req.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidOperator, req.Op)
	}

	var answer string
	switch req.Op {
	case "add":
		answer = new(big.Int).Add(n1, n2).String()
	case "sub":
		answer = new(big.Int).Sub(n1, n2).String()
	case "mul":
		answer = new(big.Int).Mul(n1, n2).String()
	case "div":
		if n2.Sign() == 0 {
			return nil, entities.ErrDivisionByZero
		}
		q, _ := new(big.Rat).SetFrac(n1, n2).Float64()
		answer = formatQuotient(q)
	}

	return &ports.CalculationResult{
		Expression: fmt.Sprintf("%s %s %s", req.N1, symbol, req.N2),
		Answer:     answer,
	}, nil
}

// formatQuotient prints the shortest decimal form, keeping ".0" on whole numbers
func formatQuotient(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// CalculationMessage returns the user-facing text for a calculation error
func CalculationMessage(err error) string {
	switch {
	case errors.Is(err, entities.ErrMissingField):
		return "Please enter all required fields."
	case errors.Is(err, entities.ErrInvalidOperand):
		return "Please enter valid integers."
	case errors.Is(err, entities.ErrInvalidOperator):
		return "Invalid operator."
	case errors.Is(err, entities.ErrDivisionByZero):
		return "Division by zero."
	}
	return "Calculation failed."
}
