package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relinq/internal/canon"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/frontend"
	"github.com/roach88/relinq/internal/parser"
	"github.com/roach88/relinq/internal/store"
)

// Harness runs scenarios.
type Harness struct {
	parserOpts []parser.Option
	store      *store.Store
	logger     *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithParserOptions adds options to every parse, typically the ones a
// configuration file selects.
func WithParserOptions(opts ...parser.Option) Option {
	return func(h *Harness) { h.parserOpts = append(h.parserOpts, opts...) }
}

// WithStore records every successful parse in s.
func WithStore(s *store.Store) Option {
	return func(h *Harness) { h.store = s }
}

// WithLogger sets the logger handed to the front end and the parser.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness. Logs are discarded unless WithLogger is given.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run compiles the scenario query, parses it and checks the expectation.
//
// A parse failure is part of the result, not an error: scenarios may
// expect one. The returned error reports problems with the scenario
// itself or with the store.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	schema, env, err := scenario.Schema()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	h.parse(scenario, schema, env, result)
	if !result.Failed() && h.store != nil {
		entry, inserted, err := h.store.Record(ctx, store.Snapshot{
			Scenario: scenario.Name,
			Query:    scenario.Query,
			Model:    result.Snapshot,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.EntryID = entry.ID
		h.logger.Debug("recorded snapshot",
			"scenario", scenario.Name,
			"entry", entry.ID,
			"seq", entry.Seq,
			"new", inserted,
		)
	}

	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func (h *Harness) parse(scenario *Scenario, schema frontend.Schema, env map[string]any, result *Result) {
	e, err := frontend.New(schema, frontend.WithLogger(h.logger)).Compile(scenario.Query)
	if err != nil {
		result.setError(err)
		return
	}

	opts := append([]parser.Option{parser.WithLogger(h.logger)}, h.parserOpts...)
	opts = append(opts, parser.WithEnvironment(env))
	res, err := parser.New(opts...).ParseResult(e)
	if err != nil {
		result.setError(err)
		return
	}

	snap, err := canon.Snapshot(res.Model, res.SubQueries...)
	if err != nil {
		result.setError(err)
		return
	}
	fp, err := canon.ModelFingerprint(snap)
	if err != nil {
		result.setError(err)
		return
	}

	qm := res.Model
	result.Model = qm.String()
	result.Body = make([]string, len(qm.BodyClauses))
	for i, c := range qm.BodyClauses {
		result.Body[i] = c.String()
	}
	result.ResultOperators = make([]string, len(qm.ResultOperators))
	for i, op := range qm.ResultOperators {
		result.ResultOperators[i] = op.String()
	}
	if rt, err := qm.ResultType(); err == nil {
		result.ResultType = rt.String()
	}
	result.SubQueries = make([]string, len(res.SubQueries))
	for i, sq := range res.SubQueries {
		result.SubQueries[i] = sq.String()
	}
	result.Snapshot = snap
	result.Fingerprint = fp

	h.logger.Debug("parsed scenario",
		"scenario", scenario.Name,
		"select", expr.Format(qm.Select.Selector),
		"fingerprint", fp,
	)
}
