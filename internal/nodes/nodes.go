// Package nodes implements one handler node per recognized query operator.
//
// The parser turns a call chain into a linked list of nodes, tip to root,
// by following each call's source argument. It then applies the nodes
// root to tip into a model.Builder. Each node
//
//   - Resolve: returns the expression denoting one item of its output, in
//     terms of query source references, so downstream lambdas can be bound
//     without knowing how the item was produced;
//   - Apply: contributes to the model (a clause, a new select clause or a
//     result operator).
//
// When a clause-producing node follows a result operator, the model built
// so far is wrapped as a sub-query feeding a new main source named after
// the result operator node's identifier. The result operator node then
// resolves to a reference to that new source.
package nodes

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/rewrite"
)

// Node is one parsed call (or the leaf source) of a chain.
type Node interface {
	// Source is the node producing this node's input; nil for the leaf.
	Source() Node

	// AssociatedIdentifier names the items this node produces.
	AssociatedIdentifier() string

	// Resolve returns the expression denoting one output item.
	Resolve(ctx *Context) (expr.Expression, error)

	// Apply contributes the node's semantics to the model under
	// construction.
	Apply(b *model.Builder, ctx *Context) error

	self() *base
}

// Factory creates the node for one recognized call.
type Factory func(info CallInfo) (Node, error)

// CallInfo describes a recognized call to its factory.
type CallInfo struct {
	// Call is the original call expression.
	Call *expr.Call

	// Source is the parsed source node.
	Source Node

	// Args holds the non-source arguments after sub-query detection and
	// partial evaluation.
	Args []expr.Expression

	// Identifier names the node's output items.
	Identifier string
}

func (c CallInfo) name() string {
	if c.Call == nil || c.Call.Method == nil {
		return "<call>"
	}
	return c.Call.Method.Name
}

// Arg returns the i-th non-source argument.
func (c CallInfo) Arg(i int) (expr.Expression, error) {
	if i >= len(c.Args) {
		return nil, fmt.Errorf("%s: missing argument %d", c.name(), i+1)
	}
	return c.Args[i], nil
}

// Lambda returns the i-th non-source argument as a lambda of the given
// arity.
func (c CallInfo) Lambda(i, arity int) (*expr.Lambda, error) {
	a, err := c.Arg(i)
	if err != nil {
		return nil, err
	}
	lam, ok := a.(*expr.Lambda)
	if !ok {
		return nil, fmt.Errorf("%s: argument %d must be a lambda, got %s", c.name(), i+1, a.Kind())
	}
	if len(lam.Params) != arity {
		return nil, fmt.Errorf("%s: argument %d must take %d parameters, takes %d", c.name(), i+1, arity, len(lam.Params))
	}
	return lam, nil
}

func (c CallInfo) base() base {
	return base{source: c.Source, ident: c.Identifier, call: c.Call}
}

// base holds what every node has.
type base struct {
	source Node
	ident  string
	call   *expr.Call
}

func (b *base) Source() Node                 { return b.source }
func (b *base) AssociatedIdentifier() string { return b.ident }
func (b *base) self() *base                  { return b }

// CallOf returns the call n was created for, or nil for a main source.
func CallOf(n Node) *expr.Call {
	return n.self().call
}

// Context carries clause bookkeeping through one model build.
type Context struct {
	Logger *slog.Logger

	clauses map[*base]model.QuerySource
	wraps   map[*base]*model.MainFromClause
}

// NewContext creates a context. A nil logger discards output.
func NewContext(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		Logger:  logger,
		clauses: make(map[*base]model.QuerySource),
		wraps:   make(map[*base]*model.MainFromClause),
	}
}

// AddClause records the query source n produced.
func (c *Context) AddClause(n Node, s model.QuerySource) {
	c.clauses[n.self()] = s
}

// Clause returns the query source n produced.
func (c *Context) Clause(n Node) (model.QuerySource, error) {
	s, ok := c.clauses[n.self()]
	if !ok {
		return nil, fmt.Errorf("node %q has not been applied", n.AssociatedIdentifier())
	}
	return s, nil
}

// wrapAfter wraps the model when src left result operators on it, so that
// a clause can follow. The new main source is recorded for src.
func wrapAfter(src Node, b *model.Builder, ctx *Context) error {
	if !b.HasResultOperators() {
		return nil
	}
	from, err := b.Wrap(src.AssociatedIdentifier())
	if err != nil {
		return err
	}
	ctx.wraps[src.self()] = from
	ctx.Logger.Debug("wrapped query model as sub-query",
		"identifier", from.Item.Name,
		"item_type", from.Item.Type.String(),
	)
	return nil
}

// ResolveLambda binds a single-parameter lambda to src's output item.
func ResolveLambda(src Node, lam *expr.Lambda, ctx *Context) (expr.Expression, error) {
	item, err := src.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return rewrite.Bind(lam, item)
}

// resolveWith binds a two-parameter lambda to src's output item and a
// reference to clause.
func resolveWith(src Node, lam *expr.Lambda, clause model.QuerySource, ctx *Context) (expr.Expression, error) {
	item, err := src.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return rewrite.Bind(lam, item, model.NewQuerySourceRef(clause))
}

func elementType(t *meta.Type) *meta.Type {
	if el, ok := meta.ElementType(t); ok {
		return el
	}
	return meta.Any
}

// MainSourceNode is the leaf of a chain: the expression producing the
// query's items.
type MainSourceNode struct {
	base
	Expression expr.Expression
}

// NewMainSource creates the leaf node for e.
func NewMainSource(e expr.Expression, identifier string) *MainSourceNode {
	return &MainSourceNode{base: base{ident: identifier}, Expression: e}
}

func (n *MainSourceNode) Resolve(ctx *Context) (expr.Expression, error) {
	from, err := ctx.Clause(n)
	if err != nil {
		return nil, err
	}
	return model.NewQuerySourceRef(from), nil
}

func (n *MainSourceNode) Apply(b *model.Builder, ctx *Context) error {
	from := model.NewMainFromClause(n.ident, elementType(n.Expression.Type()), n.Expression)
	b.Start(from)
	ctx.AddClause(n, from)
	return nil
}
