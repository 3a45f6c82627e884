package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessAndFailure(t *testing.T) {
	ok := Success(42)
	assert.True(t, ok.IsSuccess())
	assert.False(t, ok.IsFailure())
	assert.Equal(t, 42, ok.Value())
	assert.Empty(t, ok.Errors())

	fail := Failure[int](ValidationError("name", "required"))
	assert.True(t, fail.IsFailure())
	assert.False(t, fail.IsSuccess())
	assert.Zero(t, fail.Value())
	require.Len(t, fail.Errors(), 1)
	assert.Equal(t, CodeValidation, fail.Errors()[0].Code)
}

func TestFieldErrorsGroupsByField(t *testing.T) {
	errs := []Error{
		ValidationError("customerName", "required"),
		ValidationError("customerEmail", "required"),
		ValidationError("customerEmail", "too long"),
		ValidationError("", "cross-field rule"),
		NotFoundError("Order", "abc"),
	}

	fields := FieldErrors(errs)
	require.Len(t, fields, 2)
	assert.Equal(t, []string{"required"}, fields["customerName"])
	assert.Equal(t, []string{"required", "too long"}, fields["customerEmail"])
}

func TestFirstBusinessError(t *testing.T) {
	errs := []Error{
		ValidationError("x", "bad"),
		NotFoundError("Order", "abc"),
		BusinessRuleError("nope"),
	}

	biz := FirstBusinessError(errs)
	require.NotNil(t, biz)
	assert.Equal(t, CodeNotFound, biz.Code)

	assert.Nil(t, FirstBusinessError([]Error{ValidationError("x", "bad")}))
}

func TestErrorString(t *testing.T) {
	withField := ValidationError("customerName", "required")
	assert.Contains(t, withField.Error(), "customerName")

	withoutField := BusinessRuleError("nope")
	assert.Contains(t, withoutField.Error(), CodeBusinessRule)
}
