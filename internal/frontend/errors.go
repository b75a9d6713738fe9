package frontend

import (
	"errors"
	"fmt"

	"github.com/roach88/relinq/internal/expr"
)

// SyntaxError reports query text that does not parse.
type SyntaxError struct {
	Pos     expr.Pos
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Message)
}

// CompileError reports well-formed query text that cannot be turned into
// a call chain: an undefined name, an unknown operator or member, or
// arguments no overload accepts.
type CompileError struct {
	Pos     expr.Pos
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Pos, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

func errorf(at expr.Pos, format string, args ...any) *CompileError {
	return &CompileError{Pos: at, Message: fmt.Sprintf(format, args...)}
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsCompileError returns true if err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
