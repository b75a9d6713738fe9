package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relinq/internal/harness"
	"github.com/roach88/relinq/internal/store"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Store string // history database, optional
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <scenario.yaml>",
		Short: "Parse the query of a scenario",
		Long: `Parse the query of one scenario and print its query model.

The outcome is checked against the scenario's expect block. With --store,
a successful parse is recorded in the snapshot history.

Exit codes:
  0 - Parsed and matched the expectation
  1 - The outcome differs from the expectation
  2 - Command error (missing file, invalid scenario or configuration)

Examples:
  relinq parse scenarios/adults.yaml
  relinq parse scenarios/adults.yaml --store history.db
  relinq parse scenarios/adults.yaml --config relinq.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "record the snapshot in this SQLite database")

	return cmd
}

func runParse(opts *ParseOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fail(f, ErrCodeNotFound, NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path)))
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return fail(f, ErrCodeScenarioInvalid, WrapExitError(ExitCommandError, "invalid scenario", err))
	}

	var st *store.Store
	if opts.Store != "" {
		if st, err = openStore(f, opts.Store); err != nil {
			return err
		}
		defer st.Close()
	}

	h, err := newHarness(f, opts.RootOptions, cmd, st)
	if err != nil {
		return err
	}

	f.VerboseLog("Parsing %s: %s", scenario.Name, scenario.Query)
	result, err := h.Run(cmd.Context(), scenario)
	if err != nil {
		return fail(f, ErrCodeStoreFailed, WrapExitError(ExitCommandError, "parse failed", err))
	}

	if result.Pass {
		return f.Success(result, formatParseText(scenario, result))
	}

	code := ErrCodeExpectFailed
	if result.Failed() && scenario.Expect.Error == nil {
		code = ErrCodeParseFailed
	}
	msg := fmt.Sprintf("scenario %s failed", scenario.Name)
	if err := f.Failure(result, code, msg); err != nil {
		return err
	}
	f.Text("%s", formatParseText(scenario, result))
	return NewExitError(ExitFailure, msg)
}

func formatParseText(scenario *harness.Scenario, result *harness.Result) string {
	var b strings.Builder
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(&b, "%s %s\n", mark, scenario.Name)
	if result.Failed() {
		fmt.Fprintf(&b, "  error:  [%s] %s\n", result.ErrorCode, result.ErrorMessage)
	} else {
		fmt.Fprintf(&b, "  model:  %s\n", result.Model)
		fmt.Fprintf(&b, "  result: %s\n", result.ResultType)
		fmt.Fprintf(&b, "  fingerprint: %s\n", result.Fingerprint)
		if result.EntryID != "" {
			fmt.Fprintf(&b, "  recorded: %s\n", result.EntryID)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
