// Package frontend compiles query text into call-chain ASTs.
//
// The text is a method-chain expression over named sources:
//
//	people.Where(p => p.Age > 30).OrderBy(p => p.Name).Select(p => new { p.Name, p.Age })
//
// Calls on a sequence are resolved against the operator catalog (and any
// declared aliases) with the chain package, so overload choice and type
// inference are the same as for chains built in Go. Calls on strings and
// free calls such as Now() resolve to the scalar helpers.
package frontend

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/relinq/internal/chain"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/ops"
)

// Schema declares the free variables query text may refer to.
type Schema struct {
	// Sources maps a source name to its item type. A source is a Seq.
	Sources map[string]*meta.Type

	// Vars maps a scalar or List variable to its type.
	Vars map[string]*meta.Type

	// Types names the types usable as explicit type arguments, as in
	// OfType<Order>(). Builtin type names and the item types of Sources
	// are always available.
	Types map[string]*meta.Type
}

// Compiler compiles query text against a schema. It is safe for concurrent
// use; every compilation sees the same free-variable Parameters.
type Compiler struct {
	schema Schema
	logger *slog.Logger

	mu   sync.Mutex
	free map[string]*expr.Parameter
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for compilation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New creates a Compiler.
func New(schema Schema, opts ...Option) *Compiler {
	c := &Compiler{
		schema: schema,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		free:   make(map[string]*expr.Parameter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile parses text and elaborates it into an expression.
func (c *Compiler) Compile(text string) (expr.Expression, error) {
	n, err := ParseSyntax(text)
	if err != nil {
		return nil, err
	}
	e, err := c.elab(n, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("compiled query", "text", text, "expr", expr.Format(e))
	return e, nil
}

// Free returns the Parameter standing for a schema variable.
func (c *Compiler) Free(name string) (*expr.Parameter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.free[name]; ok {
		return p, true
	}
	var t *meta.Type
	if item, ok := c.schema.Sources[name]; ok {
		t = meta.SeqOf(item)
	} else if vt, ok := c.schema.Vars[name]; ok {
		t = vt
	} else {
		return nil, false
	}
	p := expr.NewParameter(name, t)
	c.free[name] = p
	return p, true
}

var builtinTypes = map[string]*meta.Type{
	"int":    meta.Int,
	"float":  meta.Float,
	"string": meta.String,
	"bool":   meta.Bool,
	"any":    meta.Any,
}

// staticTypes hold the helpers callable as Strings.X(...) and Clock.X().
var staticTypes = map[string]*meta.Type{
	"Strings": ops.Strings,
	"Clock":   ops.Clock,
}

func (c *Compiler) lookupType(name string) (*meta.Type, bool) {
	if t, ok := c.schema.Types[name]; ok {
		return t, true
	}
	if t, ok := builtinTypes[name]; ok {
		return t, true
	}
	for _, item := range c.schema.Sources {
		if item.Name == name {
			return item, true
		}
	}
	return nil, false
}

// scope binds lambda parameter names; inner scopes shadow outer ones.
type scope struct {
	vars   map[string]*expr.Parameter
	parent *scope
}

func (s *scope) child(names []string, params []*expr.Parameter) *scope {
	inner := &scope{vars: make(map[string]*expr.Parameter, len(names)), parent: s}
	for i, n := range names {
		inner.vars[n] = params[i]
	}
	return inner
}

func (s *scope) lookup(name string) (*expr.Parameter, bool) {
	for ; s != nil; s = s.parent {
		if p, ok := s.vars[name]; ok {
			return p, true
		}
	}
	return nil, false
}

func (c *Compiler) elab(n Node, sc *scope) (expr.Expression, error) {
	switch n := n.(type) {
	case *Literal:
		return expr.NewConstant(n.Value, nil), nil
	case *Ident:
		if p, ok := sc.lookup(n.Name); ok {
			return p, nil
		}
		if p, ok := c.Free(n.Name); ok {
			return p, nil
		}
		if _, ok := staticTypes[n.Name]; ok {
			return nil, errorf(n.At, "%s is not a value", n.Name)
		}
		return nil, errorf(n.At, "undefined: %s", n.Name)
	case *MemberAccess:
		return c.member(n, sc)
	case *CallExpr:
		return c.call(n, sc)
	case *LambdaExpr:
		return nil, errorf(n.At, "a lambda may only appear as an operator argument")
	case *BinaryExpr:
		left, err := c.elab(n.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := c.elab(n.Right, sc)
		if err != nil {
			return nil, err
		}
		if n.Op.IsLogical() && (!isBool(left.Type()) || !isBool(right.Type())) {
			return nil, errorf(n.At, "operands of %s must be bool, got %s and %s", n.Op.Symbol(), left.Type(), right.Type())
		}
		return expr.NewBinary(n.Op, left, right), nil
	case *UnaryExpr:
		return c.unary(n, sc)
	case *CondExpr:
		test, err := c.elab(n.Test, sc)
		if err != nil {
			return nil, err
		}
		if !isBool(test.Type()) {
			return nil, errorf(n.At, "condition is %s, not bool", test.Type())
		}
		then, err := c.elab(n.Then, sc)
		if err != nil {
			return nil, err
		}
		els, err := c.elab(n.Else, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewConditional(test, then, els), nil
	case *RecordExpr:
		inits := make([]expr.MemberInit, len(n.Fields))
		for i, f := range n.Fields {
			v, err := c.elab(f.Value, sc)
			if err != nil {
				return nil, err
			}
			inits[i] = expr.Init(f.Name, v)
		}
		return expr.NewRecord(inits...), nil
	case *ArrayExpr:
		elems := make([]expr.Expression, len(n.Elems))
		for i, el := range n.Elems {
			v, err := c.elab(el, sc)
			if err != nil {
				return nil, err
			}
			if i > 0 && !meta.Equal(v.Type(), elems[0].Type()) {
				return nil, errorf(el.Pos(), "array element is %s, want %s", v.Type(), elems[0].Type())
			}
			elems[i] = v
		}
		return expr.NewArrayInit(nil, elems...), nil
	}
	return nil, errorf(n.Pos(), "unsupported syntax %T", n)
}

func isBool(t *meta.Type) bool { return t == meta.Bool || t == meta.Any }

func (c *Compiler) unary(n *UnaryExpr, sc *scope) (expr.Expression, error) {
	if lit, ok := n.Operand.(*Literal); ok && n.Op == MINUS {
		switch v := lit.Value.(type) {
		case int:
			return expr.NewConstant(-v, nil), nil
		case float64:
			return expr.NewConstant(-v, nil), nil
		}
	}
	operand, err := c.elab(n.Operand, sc)
	if err != nil {
		return nil, err
	}
	if n.Op == BANG {
		if !isBool(operand.Type()) {
			return nil, errorf(n.At, "operand of ! is %s, not bool", operand.Type())
		}
		return expr.NewNot(operand), nil
	}
	return expr.NewNegate(operand), nil
}

func (c *Compiler) member(n *MemberAccess, sc *scope) (expr.Expression, error) {
	target, err := c.elab(n.Target, sc)
	if err != nil {
		return nil, err
	}
	t := target.Type()
	if t == meta.String && n.Name == "Length" {
		return expr.NewCall(ops.Length, target), nil
	}
	if t != meta.Any {
		if _, ok := meta.FieldType(t, n.Name); !ok {
			return nil, errorf(n.At, "%s has no member %s", t, n.Name)
		}
	}
	return expr.NewMember(target, n.Name), nil
}

func (c *Compiler) call(n *CallExpr, sc *scope) (expr.Expression, error) {
	if n.Target == nil {
		m, ok := ops.Helpers()[n.Name]
		if !ok {
			return nil, errorf(n.At, "undefined function %s", n.Name)
		}
		return c.helperCall(m, n, nil, sc)
	}
	if id, ok := n.Target.(*Ident); ok {
		if static, ok := staticTypes[id.Name]; ok && !c.bound(id.Name, sc) {
			ms := static.MethodsNamed(n.Name)
			if len(ms) == 0 {
				return nil, errorf(n.At, "%s has no function %s", id.Name, n.Name)
			}
			return c.helperCall(ms[0], n, nil, sc)
		}
	}

	recv, err := c.elab(n.Target, sc)
	if err != nil {
		return nil, err
	}
	t := recv.Type()
	if t.Kind == meta.KindInstance && t.Definition == meta.List && len(n.TypeArgs) == 0 {
		switch {
		case n.Name == "Contains" && len(n.Args) == 1:
			item, err := c.elab(n.Args[0], sc)
			if err != nil {
				return nil, err
			}
			e, err := chain.ListContains(recv, item)
			return positioned(n.At, e, err)
		case n.Name == "Count" && len(n.Args) == 0:
			e, err := chain.ListCount(recv)
			return positioned(n.At, e, err)
		}
	}
	switch {
	case meta.IsSequence(t):
		return c.operatorCall(recv, n, sc)
	case t == meta.String:
		ms := ops.Strings.MethodsNamed(n.Name)
		if len(ms) == 0 {
			return nil, errorf(n.At, "string has no method %s", n.Name)
		}
		return c.helperCall(ms[0], n, recv, sc)
	}
	return nil, errorf(n.At, "%s has no method %s", t, n.Name)
}

// bound reports whether name refers to a lambda parameter or a schema
// variable, which shadow the helper holders.
func (c *Compiler) bound(name string, sc *scope) bool {
	if _, ok := sc.lookup(name); ok {
		return true
	}
	_, ok := c.Free(name)
	return ok
}

// positioned records the source position on a built call. An error from a
// lambda body keeps its own position.
func positioned(at expr.Pos, e expr.Expression, err error) (expr.Expression, error) {
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &CompileError{Pos: at, Message: "invalid call", Err: err}
	}
	if call, ok := e.(*expr.Call); ok {
		call.Pos = at
	}
	return e, nil
}

// helperCall calls a scalar helper. A receiver becomes the first argument.
func (c *Compiler) helperCall(m *meta.Method, n *CallExpr, recv expr.Expression, sc *scope) (expr.Expression, error) {
	args := make([]expr.Expression, 0, len(n.Args)+1)
	if recv != nil {
		args = append(args, recv)
	}
	for _, a := range n.Args {
		v, err := c.elab(a, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	if len(args) != len(m.Params) {
		return nil, errorf(n.At, "%s takes %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	for i, a := range args {
		want, got := m.Params[i].Type, a.Type()
		if want != meta.Any && got != meta.Any && !meta.Equal(want, got) {
			return nil, errorf(n.At, "argument %d of %s is %s, want %s", i+1, m.Name, got, want)
		}
	}
	call := expr.NewCall(m, args...)
	call.Pos = n.At
	return call, nil
}

// operatorCall appends a catalog operator to the chain ending in recv.
// Lambda bodies are elaborated once the chosen overload has fixed the
// parameter types.
func (c *Compiler) operatorCall(recv expr.Expression, n *CallExpr, sc *scope) (expr.Expression, error) {
	if !chain.IsOperator(n.Name) {
		return nil, errorf(n.At, "unknown operator %s", n.Name)
	}
	typeArgs := make([]*meta.Type, len(n.TypeArgs))
	for i, name := range n.TypeArgs {
		t, ok := c.lookupType(name)
		if !ok {
			return nil, errorf(n.At, "unknown type %s", name)
		}
		typeArgs[i] = t
	}

	args := make([]chain.Arg, len(n.Args))
	for i, a := range n.Args {
		if lam, ok := a.(*LambdaExpr); ok {
			args[i] = chain.Lambda(lam.Params, func(ps []*expr.Parameter) (expr.Expression, error) {
				return c.elab(lam.Body, sc.child(lam.Params, ps))
			})
			continue
		}
		v, err := c.elab(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = chain.Value(v)
	}

	q := chain.From(recv)
	if len(typeArgs) > 0 {
		q = q.InvokeGeneric(n.Name, typeArgs, args...)
	} else {
		q = q.Invoke(n.Name, args...)
	}
	e, err := q.Expr()
	return positioned(n.At, e, err)
}
