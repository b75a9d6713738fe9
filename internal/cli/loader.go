package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relinq/internal/config"
	"github.com/roach88/relinq/internal/harness"
	"github.com/roach88/relinq/internal/store"
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeNotFound        = "E002" // Path not found
	ErrCodeConfigInvalid   = "E003" // Configuration file rejected
	ErrCodeScenarioInvalid = "E004" // Scenario file rejected
	ErrCodeStoreFailed     = "E005" // History database error

	ErrCodeParseFailed  = "E101" // Query did not parse
	ErrCodeExpectFailed = "E102" // Parse outcome differs from the expectation
	ErrCodeTestFailed   = "E103" // One or more scenarios failed
)

// newFormatter builds the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a debug logger on w when verbose, and a discarding
// logger otherwise.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// loadConfig reads the --config file, or returns the defaults.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// newHarness builds a harness from the global options. st may be nil.
// Configuration problems are reported with ErrCodeConfigInvalid.
func newHarness(f *OutputFormatter, opts *RootOptions, cmd *cobra.Command, st *store.Store) (*harness.Harness, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fail(f, ErrCodeConfigInvalid, WrapExitError(ExitCommandError, "invalid configuration", err))
	}
	parserOpts, err := cfg.ParserOptions()
	if err != nil {
		return nil, fail(f, ErrCodeConfigInvalid, WrapExitError(ExitCommandError, "invalid configuration", err))
	}

	hopts := []harness.Option{
		harness.WithParserOptions(parserOpts...),
		harness.WithLogger(newLogger(opts, cmd.ErrOrStderr())),
	}
	if st != nil {
		hopts = append(hopts, harness.WithStore(st))
	}
	return harness.New(hopts...), nil
}

// openStore opens the history database at path.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, fail(f, ErrCodeStoreFailed, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	return st, nil
}

// fail reports err in JSON mode and returns it; main prints it in text
// mode and exits with its code.
func fail(f *OutputFormatter, code string, err *ExitError) error {
	if f.JSON() {
		_ = f.Error(code, err.Error(), nil)
	}
	return err
}
