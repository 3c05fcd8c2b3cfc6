package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	v := &ValidationError{Message: "import rejected"}
	assert.NoError(t, v.OrNil())

	v.Add("rows[4].amount", "must be positive")
	v.Add("rows[7].name", "is required")

	err := v.OrNil()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "rows[4].amount: must be positive")
	assert.Contains(t, err.Error(), "rows[7].name: is required")

	var target *ValidationError
	assert.True(t, errors.As(err, &target))
	assert.Len(t, target.Fields, 2)
}

func TestStorageWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage(cause)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))

	nf := NotFound("transaction")
	assert.Same(t, nf, Storage(nf))
	assert.Nil(t, Storage(nil))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class error
	}{
		{"not found", NotFound("project"), ErrNotFound},
		{"conflict", Conflict("record %s is %s", "abc", "DISBURSED"), ErrConflict},
		{"forbidden", Forbidden("admin required"), ErrForbidden},
		{"validation", Validation("amount", "must be positive"), ErrValidation},
		{"wrapped", Wrap(NotFound("bank account"), "load"), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.class))
			assert.True(t, IsClassified(tt.err))
		})
	}
	assert.False(t, IsClassified(errors.New("plain")))
}
