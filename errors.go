// Package vanga builds additive ensembles of shallow decision trees over
// sparse binary features, trained by regularized-logloss minimization for
// binary classification via logistic regression.
package vanga

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by dataset loading, model loading and training.
var (
	// ErrInvalidModelType indicates a model file header is not one of
	// "dtree", "union" or "union-sum".
	ErrInvalidModelType = errors.New("vanga: invalid model type")

	// ErrUnresolvedReference indicates a branch refers to a tree_id that
	// is not defined in the same model block.
	ErrUnresolvedReference = errors.New("vanga: unresolved tree reference")

	// ErrInvalidConfig indicates train was called with an inconsistent
	// TrainConfig (see TrainConfig.validate).
	ErrInvalidConfig = errors.New("vanga: invalid training config")

	// ErrNumericFailure indicates the optimizer produced a non-finite
	// value after clamping. Should not happen given the clamps in the
	// loss evaluators; treated as fatal when it does.
	ErrNumericFailure = errors.New("vanga: numeric optimizer failure")

	// ErrCancelled indicates a TaskRunner refused a submission.
	ErrCancelled = errors.New("vanga: task runner cancelled")
)

// ParseError carries the source location and reason for a malformed
// dataset or model line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vanga: parse error at line %d: %s", e.Line, e.Reason)
}

// ModelError wraps a malformed-model condition that is not a single-line
// parse error (bad header, unresolved branch reference, ...).
type ModelError struct {
	Detail string
	err    error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("vanga: invalid model: %s", e.Detail)
}

func (e *ModelError) Unwrap() error {
	return e.err
}

func newModelError(wrapped error, detail string) *ModelError {
	return &ModelError{Detail: detail, err: wrapped}
}
