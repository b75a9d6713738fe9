package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/relinq/internal/canon"
	"github.com/roach88/relinq/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Store    string // history database, required
	Scenario string // restrict to one scenario
	Keep     int    // prune to the newest Keep entries; 0 means no pruning
}

// HistoryEntry is one recorded snapshot as reported by the history command.
type HistoryEntry struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	Query     string `json:"query"`
	QueryHash string `json:"query_hash"`
	ModelHash string `json:"model_hash"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
}

// HistoryResult is the payload of the history command.
type HistoryResult struct {
	Entries []HistoryEntry `json:"entries"`
	Pruned  int64          `json:"pruned,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded query model snapshots",
		Long: `List the snapshots recorded by "relinq parse --store".

A snapshot is recorded each time the model of a query changes. With
--keep, older snapshots of the scenario are deleted first.

Examples:
  relinq history --store history.db
  relinq history --store history.db --scenario adults_count
  relinq history --store history.db --scenario adults_count --keep 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite history database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only list this scenario")
	cmd.Flags().IntVar(&opts.Keep, "keep", 0, "prune the scenario to its newest N snapshots")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Keep < 0 {
		return fail(f, ErrCodeGeneric, NewExitError(ExitCommandError, "--keep must not be negative"))
	}
	if opts.Keep > 0 && opts.Scenario == "" {
		return fail(f, ErrCodeGeneric, NewExitError(ExitCommandError, "--keep requires --scenario"))
	}

	st, err := openStore(f, opts.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	var result HistoryResult

	if opts.Keep > 0 {
		n, err := st.Prune(ctx, opts.Scenario, opts.Keep)
		if err != nil {
			return fail(f, ErrCodeStoreFailed, WrapExitError(ExitCommandError, "prune failed", err))
		}
		result.Pruned = n
		f.VerboseLog("Pruned %d snapshot(s) of %s", n, opts.Scenario)
	}

	var entries []store.Entry
	if opts.Scenario != "" {
		entries, err = st.ReadScenario(ctx, opts.Scenario)
	} else {
		entries, err = st.ReadAll(ctx)
	}
	if err != nil {
		return fail(f, ErrCodeStoreFailed, WrapExitError(ExitCommandError, "failed to read history", err))
	}

	result.Entries = make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		result.Entries = append(result.Entries, toHistoryEntry(e))
	}

	return f.Success(result, formatHistoryText(result))
}

func toHistoryEntry(e store.Entry) HistoryEntry {
	model := ""
	if s, ok := e.Snapshot["model"].(canon.String); ok {
		model = string(s)
	}
	return HistoryEntry{
		Seq:       e.Seq,
		ID:        e.ID,
		Scenario:  e.Scenario,
		Query:     e.Query,
		QueryHash: e.QueryHash,
		ModelHash: e.ModelHash,
		Model:     model,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatHistoryText(result HistoryResult) string {
	var b strings.Builder
	if result.Pruned > 0 {
		fmt.Fprintf(&b, "Pruned %d snapshot(s)\n", result.Pruned)
	}
	if len(result.Entries) == 0 {
		b.WriteString("No snapshots recorded.")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tSCENARIO\tMODEL HASH\tCREATED\tMODEL")
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.ID, e.Scenario, shortHash(e.ModelHash), e.CreatedAt, e.Model)
	}
	_ = tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
