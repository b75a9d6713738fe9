// Package parser turns a call-chain AST into a query model.
//
// Parsing follows each call's source argument down to the chain's leaf,
// building one handler node per recognized call on the way back up. Every
// non-source argument is first scanned for nested operator chains, which
// are parsed recursively into sub-query nodes, and then partially
// evaluated. Once the chain exists, its nodes are applied root to tip into
// a model builder.
//
// A Parser is safe for concurrent use; each call to Parse keeps its own
// state.
package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/relinq/internal/evaluate"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/nodes"
)

// Parser parses call chains using a registry of node factories.
type Parser struct {
	registry *nodes.Registry
	env      evaluate.Env
	partial  bool
	logger   *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegistry replaces the default operator registry.
func WithRegistry(r *nodes.Registry) Option {
	return func(p *Parser) { p.registry = r }
}

// WithEnvironment supplies values for free variables. Subtrees that only
// depend on these values are folded into constants.
func WithEnvironment(env map[string]any) Option {
	return func(p *Parser) { p.env = env }
}

// WithoutPartialEvaluation disables folding. Nested operator chains are
// still parsed into sub-queries.
func WithoutPartialEvaluation() Option {
	return func(p *Parser) { p.partial = false }
}

// WithLogger sets the logger for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// New creates a parser. Without options it uses nodes.DefaultRegistry,
// an empty environment and partial evaluation.
func New(opts ...Option) *Parser {
	p := &Parser{partial: true}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = nodes.DefaultRegistry()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Result is a parsed model together with the nested models found in its
// arguments, in the order their parses completed.
type Result struct {
	Model      *model.QueryModel
	SubQueries []*model.QueryModel
}

// Parse parses e into a model.
func (p *Parser) Parse(e expr.Expression) (*model.QueryModel, error) {
	res, err := p.ParseResult(e)
	if err != nil {
		return nil, err
	}
	return res.Model, nil
}

// ParseResult parses e and also reports its nested sub-query models.
func (p *Parser) ParseResult(e expr.Expression) (*Result, error) {
	r := &run{Parser: p, declared: declaredParams(e)}
	qm, err := r.parseQuery(e)
	if err != nil {
		return nil, err
	}
	if err := checkUnresolved(r.declared, qm); err != nil {
		return nil, err
	}
	if err := qm.Validate(); err != nil {
		return nil, &ParseError{
			Code:     ErrCodeUnresolvedReference,
			Message:  "model refers to a clause outside its scope",
			Expr:     expr.Format(e),
			Position: -1,
			Err:      err,
		}
	}
	p.logger.Debug("parsed query", "model", qm.String(), "sub_queries", len(r.subQueries))
	return &Result{Model: qm, SubQueries: r.subQueries}, nil
}

// run holds the state of one top-level parse, shared with its nested
// parses.
type run struct {
	*Parser
	names      int
	subQueries []*model.QueryModel

	// declared holds every lambda parameter of the top-level input. Nested
	// chains are analyzed on their own, so an outer lambda's parameter must
	// not be mistaken there for a free variable.
	declared map[*expr.Parameter]bool
}

func (r *run) isDeclared(p *expr.Parameter) bool { return r.declared[p] }

func (r *run) generatedName() string {
	r.names++
	return "_" + strconv.Itoa(r.names)
}

// parseQuery builds the model for one chain.
func (r *run) parseQuery(e expr.Expression) (*model.QueryModel, error) {
	tip, _, err := r.parseNode(e, "")
	if err != nil {
		return nil, err
	}

	var chain []nodes.Node
	for n := tip; n != nil; n = n.Source() {
		chain = append(chain, n)
	}
	b := model.NewBuilder()
	ctx := nodes.NewContext(r.logger)
	for i := len(chain) - 1; i >= 0; i-- {
		pos := len(chain) - 1 - i
		if err := chain[i].Apply(b, ctx); err != nil {
			pe := &ParseError{
				Code:     ErrCodeInvalidChain,
				Message:  "call cannot be applied to its source",
				Expr:     describe(chain[i]),
				Position: pos,
				Err:      err,
			}
			if call := nodes.CallOf(chain[i]); call != nil {
				pe.SourcePos = call.Pos
			}
			return nil, pe
		}
	}
	return b.Build()
}

func describe(n nodes.Node) string {
	if ms, ok := n.(*nodes.MainSourceNode); ok {
		return expr.Format(ms.Expression)
	}
	return expr.Format(nodes.CallOf(n))
}

// parseNode parses e as the chain ending in e. ident names e's output
// items; empty means generate a name. It returns the node and its chain
// position counted from the leaf.
//
// A call that fails to bind or to be recognized ends the chain where it
// stands, so its errors carry position 0.
func (r *run) parseNode(e expr.Expression, ident string) (nodes.Node, int, error) {
	call, isCall := e.(*expr.Call)
	if !isCall || call.Method == nil {
		return r.parseLeaf(e, ident)
	}

	factory, ok, err := r.registry.Lookup(call.Method)
	if err != nil {
		return nil, 0, atCall(classify(err, e, 0), call)
	}
	if !ok {
		if meta.IsSequence(call.Type()) {
			return r.parseLeaf(e, ident)
		}
		return nil, 0, &ParseError{
			Code:      ErrCodeUnrecognizedOperator,
			Message:   fmt.Sprintf("%s is not a registered operator and does not produce a sequence", call.Method.Name),
			Expr:      expr.Format(e),
			Position:  0,
			SourcePos: call.Pos,
		}
	}

	source, rawArgs, err := splitSource(call)
	if err != nil {
		return nil, 0, &ParseError{
			Code:      ErrCodeInvalidChain,
			Message:   err.Error(),
			Expr:      expr.Format(e),
			Position:  0,
			SourcePos: call.Pos,
		}
	}

	src, srcPos, err := r.parseNode(source, firstLambdaParam(rawArgs))
	if err != nil {
		return nil, 0, err
	}
	pos := srcPos + 1
	if ident == "" {
		ident = r.generatedName()
	}

	args := make([]expr.Expression, len(rawArgs))
	for i, a := range rawArgs {
		if args[i], err = r.prepare(a, pos); err != nil {
			return nil, 0, err
		}
	}

	n, err := factory(nodes.CallInfo{Call: call, Source: src, Args: args, Identifier: ident})
	if err != nil {
		return nil, 0, &ParseError{
			Code:      ErrCodeInvalidChain,
			Message:   "invalid arguments",
			Expr:      expr.Format(e),
			Position:  pos,
			SourcePos: call.Pos,
			Err:       err,
		}
	}
	return n, pos, nil
}

// atCall fills in the source position of a ParseError raised for call
// itself. Errors from nested parses keep their own.
func atCall(err error, call *expr.Call) error {
	var pe *ParseError
	if errors.As(err, &pe) && !pe.SourcePos.IsValid() {
		pe.SourcePos = call.Pos
	}
	return err
}

func (r *run) parseLeaf(e expr.Expression, ident string) (nodes.Node, int, error) {
	if ident == "" {
		ident = r.generatedName()
	}
	if !isLeaf(e) {
		return nil, 0, &ParseError{
			Code:     ErrCodeUnrecognizedOperator,
			Message:  fmt.Sprintf("%s expression cannot be a query source", e.Kind()),
			Expr:     expr.Format(e),
			Position: 0,
		}
	}
	prepared, err := r.prepare(e, 0)
	if err != nil {
		return nil, 0, err
	}
	return nodes.NewMainSource(prepared, ident), 0, nil
}

// isLeaf reports whether e can be a chain's source.
func isLeaf(e expr.Expression) bool {
	switch e.(type) {
	case *expr.Constant, *expr.Parameter, *expr.Member, *expr.ArrayInit, *model.SubQuery:
		return true
	}
	return meta.IsSequence(e.Type())
}

// splitSource separates a recognized call's source from its other
// arguments. Instance methods take their source from the receiver.
func splitSource(call *expr.Call) (expr.Expression, []expr.Expression, error) {
	if nodes.IsInstanceCall(call.Method) {
		if call.Object == nil {
			return nil, nil, fmt.Errorf("%s has no receiver", call.Method.Name)
		}
		return call.Object, call.Args, nil
	}
	if len(call.Args) == 0 {
		return nil, nil, fmt.Errorf("%s has no source argument", call.Method.Name)
	}
	return call.Args[0], call.Args[1:], nil
}

func firstLambdaParam(args []expr.Expression) string {
	for _, a := range args {
		if lam, ok := a.(*expr.Lambda); ok && len(lam.Params) > 0 {
			return lam.Params[0].Name
		}
	}
	return ""
}

// prepare detects nested operator chains in e and, unless disabled,
// folds its independent subtrees.
func (r *run) prepare(e expr.Expression, pos int) (expr.Expression, error) {
	hook := func(e expr.Expression) (expr.Expression, bool, error) {
		return r.detectSubQuery(e, pos)
	}
	cfg := evaluate.Config{
		Env:        r.env,
		IsOperator: r.registry.IsRegistered,
		Hook:       hook,
		Bound:      r.isDeclared,
	}
	analyzed, info, err := evaluate.Analyze(e, cfg)
	if err != nil {
		return nil, classify(err, e, pos)
	}
	if !r.partial {
		return analyzed, nil
	}
	out, err := evaluate.Evaluate(analyzed, info, r.env)
	if err != nil {
		return nil, classify(err, e, pos)
	}
	if out != analyzed {
		r.logger.Debug("folded independent subtrees",
			"position", pos,
			"before", expr.Format(analyzed),
			"after", expr.Format(out),
		)
	}
	return out, nil
}

// detectSubQuery replaces a registered operator call with a sub-query
// holding its parsed model.
func (r *run) detectSubQuery(e expr.Expression, pos int) (expr.Expression, bool, error) {
	call, ok := e.(*expr.Call)
	if !ok || call.Method == nil {
		return nil, false, nil
	}
	registered, err := r.registry.IsRegistered(call.Method)
	if err != nil {
		return nil, false, atCall(classify(err, e, pos), call)
	}
	if !registered {
		return nil, false, nil
	}
	qm, err := r.parseQuery(e)
	if err != nil {
		return nil, false, err
	}
	r.subQueries = append(r.subQueries, qm)
	r.logger.Debug("detected sub-query", "operator", call.Method.Name, "model", qm.String())
	return model.NewSubQuery(qm), true, nil
}

// declaredParams collects the parameters of every lambda in input.
func declaredParams(input expr.Expression) map[*expr.Parameter]bool {
	declared := make(map[*expr.Parameter]bool)
	expr.Inspect(input, func(n expr.Expression) bool {
		if lam, ok := n.(*expr.Lambda); ok {
			for _, p := range lam.Params {
				declared[p] = true
			}
		}
		return true
	})
	return declared
}

// checkUnresolved fails when a lambda parameter declared in the input is
// still free somewhere in the model, including nested models.
func checkUnresolved(declared map[*expr.Parameter]bool, qm *model.QueryModel) error {
	if len(declared) == 0 {
		return nil
	}

	var free *expr.Parameter
	var where expr.Expression
	var visitModel func(m *model.QueryModel)
	visitModel = func(m *model.QueryModel) {
		for _, e := range m.Expressions() {
			if free != nil {
				return
			}
			findFree(e, declared, map[*expr.Parameter]int{}, visitModel, &free)
			if free != nil {
				where = e
			}
		}
	}
	visitModel(qm)
	if free == nil {
		return nil
	}
	return &ParseError{
		Code:     ErrCodeUnresolvedReference,
		Message:  fmt.Sprintf("lambda parameter %q is not bound to any clause", free.Name),
		Expr:     expr.Format(where),
		Position: -1,
		Err:      errUnbound,
	}
}

var errUnbound = errors.New("unbound lambda parameter")

// findFree records the first parameter of declared that occurs in e
// outside every lambda declaring it.
func findFree(e expr.Expression, declared map[*expr.Parameter]bool, bound map[*expr.Parameter]int,
	visitModel func(*model.QueryModel), free **expr.Parameter) {
	if *free != nil || e == nil {
		return
	}
	switch n := e.(type) {
	case *expr.Parameter:
		if declared[n] && bound[n] == 0 {
			*free = n
		}
		return
	case *model.SubQuery:
		visitModel(n.Model)
		return
	case *expr.Lambda:
		for _, p := range n.Params {
			bound[p]++
		}
		defer func() {
			for _, p := range n.Params {
				bound[p]--
			}
		}()
	}
	for _, c := range expr.Children(e) {
		findFree(c, declared, bound, visitModel, free)
	}
}
