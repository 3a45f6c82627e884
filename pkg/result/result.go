// Package result provides the outcome type used by command and query
// handlers. Expected domain failures (validation, not-found, business
// rules) travel as structured errors inside a Result instead of Go errors,
// so callers can branch without unwrapping sentinel chains. Infrastructure
// failures still use plain error returns.
package result

import "fmt"

// Error codes shared with the wire layer. Consumers branch on these, so
// they are part of the external contract and must stay stable.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBusinessRule = "BUSINESS_RULE_VIOLATION"
	CodeDatabase     = "DATABASE_ERROR"
)

// Error is one structured failure. Field is empty for errors that are not
// attributable to a single input field (not-found, business rules).
type Error struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationError builds a field-attributed VALIDATION_ERROR.
func ValidationError(field, message string) Error {
	return Error{Code: CodeValidation, Field: field, Message: message}
}

// NotFoundError names the entity kind and the id that missed.
func NotFoundError(entity, id string) Error {
	return Error{Code: CodeNotFound, Message: fmt.Sprintf("%s with ID '%s' was not found", entity, id)}
}

// BusinessRuleError carries a stable code consumers can branch on.
func BusinessRuleError(message string) Error {
	return Error{Code: CodeBusinessRule, Message: message}
}

// Result is a success-with-value or a failure with at least one Error.
type Result[T any] struct {
	value   T
	errors  []Error
	success bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value, success: true}
}

func Failure[T any](errors ...Error) Result[T] {
	return Result[T]{errors: errors}
}

func (r Result[T]) IsSuccess() bool { return r.success }
func (r Result[T]) IsFailure() bool { return !r.success }

// Value returns the success value; the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Errors returns the failure errors; empty on success.
func (r Result[T]) Errors() []Error { return r.errors }

// FieldErrors groups validation errors by field, ignoring errors without a
// field. This is the shape the wire layer exposes under extensions.fields.
func FieldErrors(errors []Error) map[string][]string {
	fields := make(map[string][]string)
	for _, e := range errors {
		if e.Code != CodeValidation || e.Field == "" {
			continue
		}
		fields[e.Field] = append(fields[e.Field], e.Message)
	}
	return fields
}

// FirstBusinessError returns the first non-validation error, or nil when
// the failure is purely validation. Its code becomes the externally
// visible error code.
func FirstBusinessError(errors []Error) *Error {
	for _, e := range errors {
		if e.Code != CodeValidation {
			err := e
			return &err
		}
	}
	return nil
}
