package parser

import (
	"errors"
	"fmt"

	"github.com/roach88/relinq/internal/evaluate"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// ParseError is an input error detected while parsing a call chain.
//
// Parse errors include:
//   - Unrecognized operator: a call matches no handler and is not a source
//   - Ambiguous generic binding: a generic call site normalizes to zero or
//     several definitions
//   - Evaluation failure: folding an independent subtree failed
//   - Unresolved reference: a lambda parameter is still free in the model
//   - Invalid chain: a recognized call cannot be applied where it appears
//
// No model is returned alongside a ParseError.
type ParseError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Expr renders the offending subtree.
	Expr string

	// Position is the index of the offending call in its chain, counted
	// from the source (0). It is -1 when no chain position applies.
	Position int

	// SourcePos is the front-end source position of the offending call,
	// when the chain was compiled from text.
	SourcePos expr.Pos

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes parse errors.
type ErrorCode string

const (
	// ErrCodeUnrecognizedOperator indicates a call that is neither a
	// registered operator nor a valid query source.
	ErrCodeUnrecognizedOperator ErrorCode = "UNRECOGNIZED_OPERATOR"

	// ErrCodeAmbiguousBinding indicates a generic call site that does not
	// normalize to exactly one definition.
	ErrCodeAmbiguousBinding ErrorCode = "AMBIGUOUS_GENERIC_BINDING"

	// ErrCodeEvaluationFailure indicates that computing an independent
	// subtree failed.
	ErrCodeEvaluationFailure ErrorCode = "EVALUATION_FAILURE"

	// ErrCodeUnresolvedReference indicates a lambda parameter that could
	// not be bound to any clause.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeInvalidChain indicates a recognized call with unusable
	// arguments or in an unusable place.
	ErrCodeInvalidChain ErrorCode = "INVALID_CHAIN"
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expr != "" && e.Position >= 0 {
		msg += fmt.Sprintf(" (position %d: %s)", e.Position, e.Expr)
	} else if e.Expr != "" {
		msg += fmt.Sprintf(" (%s)", e.Expr)
	}
	if e.SourcePos.IsValid() {
		msg += " at " + e.SourcePos.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsUnrecognizedOperator returns true if err is an unrecognized operator
// error. Uses errors.As to handle wrapped errors.
func IsUnrecognizedOperator(err error) bool {
	return hasCode(err, ErrCodeUnrecognizedOperator)
}

// IsAmbiguousBinding returns true if err is an ambiguous generic binding.
func IsAmbiguousBinding(err error) bool {
	return hasCode(err, ErrCodeAmbiguousBinding)
}

// IsEvaluationFailure returns true if err is an evaluation failure.
func IsEvaluationFailure(err error) bool {
	return hasCode(err, ErrCodeEvaluationFailure)
}

// IsUnresolvedReference returns true if err is an unresolved reference.
func IsUnresolvedReference(err error) bool {
	return hasCode(err, ErrCodeUnresolvedReference)
}

// IsInvalidChain returns true if err is an invalid chain error.
func IsInvalidChain(err error) bool {
	return hasCode(err, ErrCodeInvalidChain)
}

// classify turns an error from registry lookup or evaluation into a
// ParseError. ParseErrors from nested parses pass through unchanged.
func classify(err error, e expr.Expression, pos int) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	out := &ParseError{Expr: expr.Format(e), Position: pos, Err: err}
	var ambiguous *meta.AmbiguousBindingError
	var eval *evaluate.EvaluationError
	switch {
	case errors.As(err, &ambiguous):
		out.Code = ErrCodeAmbiguousBinding
		out.Message = "generic call site does not bind to exactly one definition"
	case errors.As(err, &eval):
		out.Code = ErrCodeEvaluationFailure
		out.Message = "independent subtree could not be evaluated"
		out.Expr = eval.Expr
	default:
		out.Code = ErrCodeInvalidChain
		out.Message = "call cannot be applied"
	}
	return out
}
