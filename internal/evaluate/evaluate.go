// Package evaluate folds independent subtrees of a call-chain AST into
// constants.
//
// Evaluation runs in two phases:
//
//  1. Analyze walks the tree bottom-up and marks every node that can be
//     computed without the query running. A hook is consulted at each
//     position before the position is analyzed; the parser uses it to turn
//     nested operator chains into sub-query nodes first.
//  2. Evaluate walks top-down and replaces the largest marked subtree on
//     each branch with its value. Replacements are not re-visited.
//
// A node is evaluatable when all of its children are and it is none of:
// a lambda, a parameter bound by an enclosing lambda, a free parameter with
// no value in the environment, a registered operator call, a call without
// an implementation, a volatile call, or an extension node such as a
// sub-query. Constants are evaluatable but never rewritten.
package evaluate

import (
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// Env holds values for free variables, keyed by parameter name.
type Env map[string]any

// Hook is called at each position before analysis. When handled is true
// the replacement takes the position's place and is treated as opaque.
type Hook func(e expr.Expression) (replacement expr.Expression, handled bool, err error)

// Config controls analysis.
type Config struct {
	// Env supplies values for free variables.
	Env Env

	// IsOperator reports whether a method is a registered query operator.
	// Operator calls are never evaluatable.
	IsOperator func(m *meta.Method) (bool, error)

	// Hook runs at each position before the position is analyzed.
	Hook Hook

	// Bound reports parameters declared by lambdas enclosing e from the
	// outside, such as the outer query of a nested chain. They are never
	// evaluatable, even when Env has a value under the same name.
	Bound func(p *expr.Parameter) bool
}

// Info is the result of analysis: the set of evaluatable nodes.
type Info struct {
	evaluatable map[expr.Expression]bool
}

// IsEvaluatable reports whether e was marked during analysis.
func (i *Info) IsEvaluatable(e expr.Expression) bool {
	if i == nil {
		return false
	}
	return i.evaluatable[e]
}

// Len returns the number of evaluatable nodes.
func (i *Info) Len() int {
	if i == nil {
		return 0
	}
	return len(i.evaluatable)
}

// Analyze marks the evaluatable nodes of e. Because the hook may replace
// positions, the returned expression is the one the Info describes.
func Analyze(e expr.Expression, cfg Config) (expr.Expression, *Info, error) {
	a := &analyzer{
		cfg:   cfg,
		info:  &Info{evaluatable: make(map[expr.Expression]bool)},
		bound: make(map[*expr.Parameter]int),
	}
	out, _, err := a.visit(e)
	if err != nil {
		return nil, nil, err
	}
	return out, a.info, nil
}

type analyzer struct {
	cfg  Config
	info *Info

	// bound counts enclosing lambdas declaring each parameter.
	bound map[*expr.Parameter]int
}

func (a *analyzer) visit(e expr.Expression) (expr.Expression, bool, error) {
	if a.cfg.Hook != nil {
		repl, handled, err := a.cfg.Hook(e)
		if err != nil {
			return nil, false, err
		}
		if handled {
			return repl, false, nil
		}
	}

	if lam, ok := e.(*expr.Lambda); ok {
		for _, p := range lam.Params {
			a.bound[p]++
		}
		defer func() {
			for _, p := range lam.Params {
				if a.bound[p]--; a.bound[p] == 0 {
					delete(a.bound, p)
				}
			}
		}()
	}

	allChildren := true
	rebuilt, err := expr.VisitChildren(e, func(c expr.Expression) (expr.Expression, error) {
		out, ok, err := a.visit(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			allChildren = false
		}
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}

	ok, err := a.self(rebuilt)
	if err != nil {
		return nil, false, err
	}
	ok = ok && allChildren
	if ok {
		a.info.evaluatable[rebuilt] = true
	}
	return rebuilt, ok, nil
}

// self decides evaluatability of a node ignoring its children.
func (a *analyzer) self(e expr.Expression) (bool, error) {
	switch n := e.(type) {
	case *expr.Lambda:
		return false, nil
	case *expr.Parameter:
		if a.bound[n] > 0 || (a.cfg.Bound != nil && a.cfg.Bound(n)) {
			return false, nil
		}
		_, ok := a.cfg.Env[n.Name]
		return ok, nil
	case *expr.Call:
		if n.Method == nil || n.Method.Func == nil || n.Method.Volatile {
			return false, nil
		}
		if a.cfg.IsOperator != nil {
			op, err := a.cfg.IsOperator(n.Method)
			if err != nil {
				return false, err
			}
			if op {
				return false, nil
			}
		}
		return true, nil
	case expr.Extension:
		return false, nil
	default:
		return true, nil
	}
}

// Evaluate replaces the largest evaluatable subtrees of e with constants.
func Evaluate(e expr.Expression, info *Info, env Env) (expr.Expression, error) {
	if info.IsEvaluatable(e) {
		if _, isConst := e.(*expr.Constant); isConst {
			return e, nil
		}
		v, err := Interpret(e, env)
		if err != nil {
			return nil, err
		}
		return expr.NewConstant(v, e.Type()), nil
	}
	return expr.VisitChildren(e, func(c expr.Expression) (expr.Expression, error) {
		return Evaluate(c, info, env)
	})
}

// Partial runs Analyze followed by Evaluate.
func Partial(e expr.Expression, cfg Config) (expr.Expression, error) {
	analyzed, info, err := Analyze(e, cfg)
	if err != nil {
		return nil, err
	}
	return Evaluate(analyzed, info, cfg.Env)
}
