// Package chain builds call-chain ASTs over the standard operator catalog.
//
// A Query wraps the expression built so far. Each operator method picks the
// catalog overload matching its arguments, infers the method's type
// arguments from the source and from the lambdas it builds, and returns a
// new Query. Errors are sticky: once a step fails every later step returns
// the same failed Query, and Expr reports the error.
//
//	q := chain.Source("people", person).
//		Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
//			return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"), expr.NewConstant(30, nil))
//		})).
//		Select(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
//			return expr.NewMember(p, "Name")
//		}))
package chain

import (
	"errors"
	"fmt"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/ops"
)

// Query is a call chain under construction.
type Query struct {
	expr expr.Expression
	err  error
}

// From starts a chain at source.
func From(source expr.Expression) *Query {
	if source == nil {
		return &Query{err: errors.New("chain: nil source")}
	}
	return &Query{expr: source}
}

// Source starts a chain at a free variable of type Seq<item>.
func Source(name string, item *meta.Type) *Query {
	return From(expr.NewParameter(name, meta.SeqOf(item)))
}

// Fail returns a Query carrying err.
func Fail(err error) *Query { return &Query{err: err} }

// Expr returns the chain built so far.
func (q *Query) Expr() (expr.Expression, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.expr, nil
}

// MustExpr is like Expr but panics on error.
func (q *Query) MustExpr() expr.Expression {
	e, err := q.Expr()
	if err != nil {
		panic(err)
	}
	return e
}

// Err returns the first error met while building the chain.
func (q *Query) Err() error { return q.err }

// Item returns the chain's item type, or meta.Any when the chain does not
// produce a sequence.
func (q *Query) Item() *meta.Type {
	if q.err != nil {
		return meta.Any
	}
	if t, ok := meta.ElementType(q.expr.Type()); ok {
		return t
	}
	return meta.Any
}

// Arg is one non-source argument of an operator call: either a value or a
// lambda whose parameter types are supplied by the chosen overload.
type Arg struct {
	value  expr.Expression
	params []string
	body   func(params []*expr.Parameter) (expr.Expression, error)
	err    error
}

// Value passes e as an argument.
func Value(e expr.Expression) Arg { return Arg{value: e} }

// Int passes an integer constant.
func Int(n int) Arg { return Value(expr.NewConstant(n, meta.Int)) }

// Nested passes another chain as a value argument.
func Nested(q *Query) Arg { return Arg{value: q.expr, err: q.err} }

// Lambda passes a lambda with the given parameter names. body receives the
// parameters once their types are known.
func Lambda(params []string, body func(params []*expr.Parameter) (expr.Expression, error)) Arg {
	return Arg{params: params, body: body}
}

// Fn passes a one-parameter lambda.
func Fn(name string, body func(p *expr.Parameter) expr.Expression) Arg {
	return Lambda([]string{name}, func(ps []*expr.Parameter) (expr.Expression, error) {
		return body(ps[0]), nil
	})
}

// Fn2 passes a two-parameter lambda.
func Fn2(a, b string, body func(a, b *expr.Parameter) expr.Expression) Arg {
	return Lambda([]string{a, b}, func(ps []*expr.Parameter) (expr.Expression, error) {
		return body(ps[0], ps[1]), nil
	})
}

func (a Arg) isLambda() bool { return a.body != nil }

// Invoke appends a call to the named catalog operator. The overload is
// chosen by the number of arguments and by which of them are lambdas of
// which arity.
func (q *Query) Invoke(name string, args ...Arg) *Query {
	return q.invoke(name, nil, args)
}

// InvokeGeneric is Invoke with explicit type arguments. They bind the
// method's type parameters in order, before inference.
func (q *Query) InvokeGeneric(name string, typeArgs []*meta.Type, args ...Arg) *Query {
	return q.invoke(name, typeArgs, args)
}

func (q *Query) invoke(name string, typeArgs []*meta.Type, args []Arg) *Query {
	if q.err != nil {
		return q
	}
	call, err := bind(q.expr, name, typeArgs, args)
	if err != nil {
		return &Query{err: fmt.Errorf("%s: %w", name, err)}
	}
	return &Query{expr: call}
}

// operators returns the catalog operators named name, including aliases
// declared with ops.DeclareAlias.
func operators(name string) []*meta.Method {
	if ms := ops.Queryable.MethodsNamed(name); len(ms) > 0 {
		return ms
	}
	return ops.Extensions.MethodsNamed(name)
}

// Overloads returns the catalog operators named name that accept args.
func Overloads(name string, args []Arg) []*meta.Method {
	var out []*meta.Method
	for _, m := range operators(name) {
		if len(m.Params) != len(args)+1 {
			continue
		}
		ok := true
		for i, a := range args {
			in, _, isFunc := meta.FuncSignature(m.Params[i+1].Type)
			if a.isLambda() != isFunc || (isFunc && len(in) != len(a.params)) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

func bind(source expr.Expression, name string, typeArgs []*meta.Type, args []Arg) (*expr.Call, error) {
	if len(operators(name)) == 0 {
		return nil, errors.New("unknown operator")
	}
	cands := Overloads(name, args)
	switch {
	case len(cands) == 0:
		return nil, fmt.Errorf("no overload takes these %d arguments", len(args))
	case len(cands) > 1:
		return nil, fmt.Errorf("%d overloads take these arguments", len(cands))
	}
	def := cands[0]
	if len(typeArgs) > len(def.TypeParams) {
		return nil, fmt.Errorf("%d type arguments given, %d accepted", len(typeArgs), len(def.TypeParams))
	}

	subst := make(map[*meta.Type]*meta.Type, len(def.TypeParams))
	for i, t := range typeArgs {
		subst[def.TypeParams[i]] = t
	}
	unify(def.Params[0].Type, source.Type(), subst)

	built := make([]expr.Expression, 0, len(args)+1)
	built = append(built, source)
	for i, a := range args {
		pt := def.Params[i+1].Type
		if a.err != nil {
			return nil, a.err
		}
		if !a.isLambda() {
			if a.value == nil {
				return nil, fmt.Errorf("argument %d is nil", i+1)
			}
			unify(pt, a.value.Type(), subst)
			built = append(built, a.value)
			continue
		}
		in, out, _ := meta.FuncSignature(pt)
		params := make([]*expr.Parameter, len(in))
		for j, t := range in {
			params[j] = expr.NewParameter(a.params[j], closeOver(t, def.TypeParams, subst))
		}
		body, err := a.body(params)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		unify(out, body.Type(), subst)
		built = append(built, expr.NewLambda(body, params...))
	}

	targs := make([]*meta.Type, len(def.TypeParams))
	for i, tp := range def.TypeParams {
		targs[i] = subst[tp]
		if targs[i] == nil {
			targs[i] = meta.Any
		}
	}
	return expr.NewCall(def.Instantiate(targs...), built...), nil
}

// closeOver substitutes the bindings so far into t; parameters still
// unbound become meta.Any.
func closeOver(t *meta.Type, tparams []*meta.Type, subst map[*meta.Type]*meta.Type) *meta.Type {
	full := make(map[*meta.Type]*meta.Type, len(tparams))
	for _, tp := range tparams {
		full[tp] = meta.Any
		if b, ok := subst[tp]; ok {
			full[tp] = b
		}
	}
	return meta.Substitute(t, full)
}

// unify binds the type parameters of pattern so that it matches actual.
// Existing bindings win. A Seq<T> pattern matches any sequence type.
func unify(pattern, actual *meta.Type, subst map[*meta.Type]*meta.Type) {
	if pattern == nil || actual == nil {
		return
	}
	switch pattern.Kind {
	case meta.KindParam:
		if _, ok := subst[pattern]; !ok {
			subst[pattern] = actual
		}
	case meta.KindInstance:
		if pattern.Definition == meta.Seq {
			if el, ok := meta.ElementType(actual); ok {
				unify(pattern.TypeArgs[0], el, subst)
			}
			return
		}
		if actual.Kind == meta.KindInstance && actual.Definition == pattern.Definition {
			for i := range pattern.TypeArgs {
				unify(pattern.TypeArgs[i], actual.TypeArgs[i], subst)
			}
		}
	}
}

// ListContains builds list.Contains(item) over the List<T> member.
func ListContains(list, item expr.Expression) (expr.Expression, error) {
	return listCall(list, "Contains", item)
}

// ListCount builds list.Count() over the List<T> member.
func ListCount(list expr.Expression) (expr.Expression, error) {
	return listCall(list, "Count")
}

func listCall(list expr.Expression, name string, args ...expr.Expression) (expr.Expression, error) {
	t := list.Type()
	if t.Kind != meta.KindInstance || t.Definition != meta.List {
		return nil, fmt.Errorf("%s: receiver is %s, not a List", name, t)
	}
	for _, m := range t.MethodsNamed(name) {
		if len(m.Params) == len(args) {
			return expr.NewMethodCall(list, m, args...), nil
		}
	}
	return nil, fmt.Errorf("%s: List has no such member", name)
}

// IsOperator reports whether name is a catalog operator or a declared
// alias.
func IsOperator(name string) bool { return len(operators(name)) > 0 }
