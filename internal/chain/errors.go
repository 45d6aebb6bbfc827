package chain

import (
	"errors"
	"fmt"
)

// ChainError represents a fatal fault that ended a run.
//
// Chain errors include:
//   - Initial zero: the starting state is impossible
//   - Numerical error: the starting state scores +Inf or NaN
//   - Evaluation mismatch: full evaluation disagreed with tracked scores
//   - Operator error: a proposal failed with something other than ErrFailed
type ChainError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// State is the iteration at which the fault was detected.
	State int64

	// Operator names the operator involved, if any.
	Operator string

	// Diagnosis describes the degenerate density components, if available.
	Diagnosis string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes chain errors.
type ErrorCode string

const (
	// ErrCodeInitialZero indicates the initial score is -Inf.
	ErrCodeInitialZero ErrorCode = "INITIAL_ZERO"

	// ErrCodeNumerical indicates the initial score is +Inf or NaN.
	ErrCodeNumerical ErrorCode = "NUMERICAL_ERROR"

	// ErrCodeEvaluationMismatch indicates full evaluation disagreed with
	// the incrementally tracked score during warm-up.
	ErrCodeEvaluationMismatch ErrorCode = "EVALUATION_MISMATCH"

	// ErrCodeOperator indicates an operator returned an unexpected error.
	ErrCodeOperator ErrorCode = "OPERATOR_ERROR"
)

// Error implements the error interface.
func (e *ChainError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Diagnosis != "" {
		msg += ": " + e.Diagnosis
	}
	if e.Operator != "" {
		msg += fmt.Sprintf(" (state=%d, operator=%s)", e.State, e.Operator)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ChainError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsInitialZeroError reports whether err is an INITIAL_ZERO chain error.
func IsInitialZeroError(err error) bool { return hasCode(err, ErrCodeInitialZero) }

// IsNumericalError reports whether err is a NUMERICAL_ERROR chain error.
func IsNumericalError(err error) bool { return hasCode(err, ErrCodeNumerical) }

// IsEvaluationMismatchError reports whether err is an EVALUATION_MISMATCH
// chain error.
func IsEvaluationMismatchError(err error) bool { return hasCode(err, ErrCodeEvaluationMismatch) }

// IsOperatorError reports whether err is an OPERATOR_ERROR chain error.
func IsOperatorError(err error) bool { return hasCode(err, ErrCodeOperator) }

func newInitialZeroError(diagnosis string) *ChainError {
	return &ChainError{
		Code:      ErrCodeInitialZero,
		Message:   "the initial likelihood is zero",
		Diagnosis: diagnosis,
	}
}

func newNumericalError(diagnosis string) *ChainError {
	return &ChainError{
		Code:      ErrCodeNumerical,
		Message:   "a likelihood returned with a numerical error",
		Diagnosis: diagnosis,
	}
}

func newEvaluationMismatchError(state int64, mismatches int) *ChainError {
	return &ChainError{
		Code: ErrCodeEvaluationMismatch,
		Message: fmt.Sprintf("%d evaluation error(s) occurred during the test phase of this run; "+
			"they imply critical errors which may produce incorrect results", mismatches),
		State: state,
	}
}

func newOperatorError(state int64, op string, err error) *ChainError {
	return &ChainError{
		Code:     ErrCodeOperator,
		Message:  "operator returned an unexpected error",
		State:    state,
		Operator: op,
		Err:      err,
	}
}
