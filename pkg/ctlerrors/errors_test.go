package ctlerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesOnCode(t *testing.T) {
	a := New(CodeDispatchFailed, "dispatcher", "boom", nil)
	b := New(CodeDispatchFailed, "dispatcher", "different message", nil)
	c := New(CodeRenderFailed, "dispatcher", "boom", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	e := New(CodeDispatchFailed, "dispatcher", "wrapping", cause)
	assert.Equal(t, cause, errors.Unwrap(e))
}

func TestValidationError_AggregatesMessages(t *testing.T) {
	v := &ValidationError{Errors: []*Error{
		New(CodeValidationFailed, "document", "name is empty", nil),
		New(CodeValidationFailed, "document", "steps is empty", nil),
	}}
	msg := v.Error()
	assert.Contains(t, msg, "2 validation errors")
	assert.Contains(t, msg, "name is empty")
	assert.Contains(t, msg, "steps is empty")
}
