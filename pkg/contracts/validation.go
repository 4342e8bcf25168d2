package contracts

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Validation error codes.
const (
	CodeRequired     = "REQUIRED"
	CodeTooLong      = "TOO_LONG"
	CodeOutOfRange   = "OUT_OF_RANGE"
	CodeInvalidValue = "INVALID_VALUE"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInvalidUTF8  = "INVALID_UTF8"
)

// ValidationError represents a specific validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// ValidationErrors is the ordered list of failures found by one validation pass.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Validator accumulates validation failures. The zero value is ready to use.
type Validator struct {
	errs ValidationErrors
}

// Add records a failure for field.
func (v *Validator) Add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Merge records err under prefix. ValidationErrors are flattened.
func (v *Validator) Merge(prefix string, err error) {
	if err == nil {
		return
	}
	if es, ok := err.(ValidationErrors); ok {
		for _, e := range es {
			e.Field = joinField(prefix, e.Field)
			v.errs = append(v.errs, e)
		}
		return
	}
	v.Add(prefix, CodeInvalidValue, "%v", err)
}

// RequireText checks that s is non-empty, valid UTF-8 and at most max bytes.
func (v *Validator) RequireText(field, s string, max int) {
	if strings.TrimSpace(s) == "" {
		v.Add(field, CodeRequired, "must not be empty")
		return
	}
	v.OptionalText(field, s, max)
}

// OptionalText checks s only when non-empty.
func (v *Validator) OptionalText(field, s string, max int) {
	if s == "" {
		return
	}
	if !utf8.ValidString(s) {
		v.Add(field, CodeInvalidUTF8, "must be valid UTF-8")
		return
	}
	if len(s) > max {
		v.Add(field, CodeTooLong, "length %d exceeds %d", len(s), max)
	}
}

// Range checks lo <= n <= hi.
func (v *Validator) Range(field string, n, lo, hi int) {
	if n < lo || n > hi {
		v.Add(field, CodeOutOfRange, "%d not in [%d,%d]", n, lo, hi)
	}
}

// Unit checks that f lies in [0,1].
func (v *Validator) Unit(field string, f float64) {
	if math.IsNaN(f) || f < 0 || f > 1 {
		v.Add(field, CodeOutOfRange, "%v not in [0,1]", f)
	}
}

// Err returns the accumulated failures, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
