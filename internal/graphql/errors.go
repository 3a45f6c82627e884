package graphql

import (
	"github.com/omslab/order-service/pkg/result"
)

// wireError is how failures reach the top-level errors array. graphql-go
// copies Extensions() into the formatted error, which is where consumers
// find extensions.code (business rules) or extensions.fields (validation).
type wireError struct {
	message    string
	extensions map[string]interface{}
}

func (e *wireError) Error() string { return e.message }

func (e *wireError) Extensions() map[string]interface{} { return e.extensions }

// errorFromResult converts a Result failure into the wire error. Validation
// errors win and are grouped by field; otherwise the first business error
// supplies the message and code.
func errorFromResult(errs []result.Error) error {
	var firstValidation *result.Error
	for i := range errs {
		if errs[i].Code == result.CodeValidation {
			firstValidation = &errs[i]
			break
		}
	}

	if firstValidation != nil {
		message := firstValidation.Message
		if firstValidation.Field != "" {
			message = "Validation failed"
		}
		return &wireError{
			message: message,
			extensions: map[string]interface{}{
				"code":   result.CodeValidation,
				"fields": result.FieldErrors(errs),
			},
		}
	}

	if biz := result.FirstBusinessError(errs); biz != nil {
		return &wireError{
			message:    biz.Message,
			extensions: map[string]interface{}{"code": biz.Code},
		}
	}

	return databaseError()
}

// databaseError sanitizes infrastructure failures: nothing internal leaks.
func databaseError() error {
	return &wireError{
		message:    "A database error occurred",
		extensions: map[string]interface{}{"code": result.CodeDatabase},
	}
}
