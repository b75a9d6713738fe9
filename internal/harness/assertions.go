package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Field    string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "expect.%s mismatch\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual:   %s", e.Actual)
	return buf.String()
}

// EvaluateExpect checks a result against an expectation and returns the
// failure messages, in field order.
func EvaluateExpect(result *Result, expect Expect) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if expect.Error != nil {
		add(assertError(result, expect.Error))
		return errs
	}
	if result.Failed() {
		return []string{fmt.Sprintf("unexpected error: %s", result.ErrorMessage)}
	}

	if expect.Model != "" {
		add(assertString("model", expect.Model, result.Model))
	}
	if expect.Body != nil {
		add(assertList("body", expect.Body, result.Body))
	}
	if expect.ResultOperators != nil {
		add(assertList("result_operators", expect.ResultOperators, result.ResultOperators))
	}
	if expect.ResultType != "" {
		add(assertString("result_type", expect.ResultType, result.ResultType))
	}
	if expect.SubQueries != nil {
		add(assertList("sub_queries", expect.SubQueries, result.SubQueries))
	}
	return errs
}

func assertString(field, want, got string) error {
	if want == got {
		return nil
	}
	return &AssertionError{Field: field, Expected: fmt.Sprintf("%q", want), Actual: fmt.Sprintf("%q", got)}
}

func assertList(field string, want, got []string) error {
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{Field: field, Expected: formatList(want), Actual: formatList(got)}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func assertError(result *Result, want *ExpectError) error {
	if !result.Failed() {
		return &AssertionError{
			Field:    "error",
			Expected: want.Code,
			Actual:   fmt.Sprintf("model %q", result.Model),
		}
	}
	if result.ErrorCode != want.Code {
		return &AssertionError{
			Field:    "error.code",
			Expected: want.Code,
			Actual:   fmt.Sprintf("%s (%s)", result.ErrorCode, result.ErrorMessage),
		}
	}
	if want.Contains != "" && !strings.Contains(result.ErrorMessage, want.Contains) {
		return &AssertionError{
			Field:    "error.contains",
			Expected: fmt.Sprintf("message containing %q", want.Contains),
			Actual:   result.ErrorMessage,
		}
	}
	if want.Position != nil && *want.Position != result.ErrorPosition {
		return &AssertionError{
			Field:    "error.position",
			Expected: fmt.Sprint(*want.Position),
			Actual:   fmt.Sprint(result.ErrorPosition),
		}
	}
	return nil
}
