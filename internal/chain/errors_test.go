package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainError_Format(t *testing.T) {
	err := newOperatorError(12, "walk", errors.New("bad index"))
	assert.Equal(t, "OPERATOR_ERROR: operator returned an unexpected error (state=12, operator=walk): bad index", err.Error())

	err = newInitialZeroError("prior=-Inf (zero)")
	assert.Equal(t, "INITIAL_ZERO: the initial likelihood is zero: prior=-Inf (zero)", err.Error())
}

func TestChainError_Predicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
	}{
		{newInitialZeroError(""), IsInitialZeroError},
		{newNumericalError(""), IsNumericalError},
		{newEvaluationMismatchError(1, 1), IsEvaluationMismatchError},
		{newOperatorError(1, "op", nil), IsOperatorError},
	}
	for _, tt := range tests {
		assert.True(t, tt.pred(tt.err))
		assert.True(t, tt.pred(fmt.Errorf("wrapped: %w", tt.err)))
	}

	assert.False(t, IsInitialZeroError(newNumericalError("")))
	assert.False(t, IsOperatorError(errors.New("plain")))
	assert.False(t, IsNumericalError(nil))
}
