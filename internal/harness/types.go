package harness

import (
	"errors"

	"github.com/roach88/relinq/internal/canon"
	"github.com/roach88/relinq/internal/frontend"
	"github.com/roach88/relinq/internal/parser"
)

// Error codes for front-end failures. Parser failures use the
// parser.ErrorCode values.
const (
	CodeSyntaxError  = "SYNTAX_ERROR"
	CodeCompileError = "COMPILE_ERROR"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass indicates overall success: every expectation matched.
	Pass bool `json:"pass"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Model           string   `json:"model,omitempty"`
	Body            []string `json:"body,omitempty"`
	ResultOperators []string `json:"result_operators,omitempty"`
	ResultType      string   `json:"result_type,omitempty"`
	SubQueries      []string `json:"sub_queries,omitempty"`

	// ErrorCode and ErrorMessage describe a failed parse.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error,omitempty"`

	// ErrorPosition is the chain position of a parser error, or -1.
	ErrorPosition int `json:"-"`

	// Snapshot is the canonical model snapshot; nil when the parse failed.
	Snapshot canon.Object `json:"-"`

	// Fingerprint is the model fingerprint of Snapshot.
	Fingerprint string `json:"fingerprint,omitempty"`

	// EntryID is the history entry the snapshot was recorded as, if a
	// store is attached.
	EntryID string `json:"entry_id,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}, ErrorPosition: -1}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether the parse itself failed.
func (r *Result) Failed() bool { return r.ErrorCode != "" }

// setError records a failed parse.
func (r *Result) setError(err error) {
	r.ErrorMessage = err.Error()

	var pe *parser.ParseError
	switch {
	case errors.As(err, &pe):
		r.ErrorCode = string(pe.Code)
		r.ErrorPosition = pe.Position
	case frontend.IsSyntaxError(err):
		r.ErrorCode = CodeSyntaxError
	case frontend.IsCompileError(err):
		r.ErrorCode = CodeCompileError
	default:
		r.ErrorCode = "ERROR"
	}
}
