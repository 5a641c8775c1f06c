package inference

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseOperands parses the two user-typed operands. Text is NFKC-normalised first so
// full-width digits and signs are accepted.
func ParseOperands(aText, bText string) (a, b float64, err error) {
	if a, err = parseOperand("a", aText); err != nil {
		return 0, 0, err
	}
	if b, err = parseOperand("b", bText); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseOperand(field, text string) (float64, error) {
	s := strings.TrimSpace(norm.NFKC.String(text))
	if s == "" {
		return 0, &ValidationError{Field: field, Reason: "is required"}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: text, Reason: "is not a number"}
	}

	return v, checkFinite(field, v)
}

// checkFinite rejects values the float32 model input cannot carry.
func checkFinite(field string, v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return &ValidationError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "is not finite"}
	case math.Abs(v) > math.MaxFloat32:
		return &ValidationError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "is out of range"}
	}
	return nil
}

// Format renders v with two decimals.
func Format(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
