// Package rewrite binds lambda parameters to query sources and removes
// transparent identifiers.
//
// Front ends thread several range variables through one lambda parameter
// by building an anonymous record and reading fields back out of it:
//
//	(a, b) => new {a = a, b = b}    then    t => t.a.Age
//
// Once t is replaced by the record that produced it, the member reads
// collapse: new {a = [a], b = [b]}.a.Age becomes [a].Age.
package rewrite

import (
	"fmt"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/model"
)

// ReplaceParameter replaces every occurrence of p in e with repl.
// Sub-query models that mention p are cloned in their enclosing scope and
// the clone is rewritten; the original nested model is left untouched.
func ReplaceParameter(e expr.Expression, p *expr.Parameter, repl expr.Expression) (expr.Expression, error) {
	return expr.Transform(e, func(n expr.Expression) (expr.Expression, error) {
		switch x := n.(type) {
		case *expr.Parameter:
			if x == p {
				return repl, nil
			}
		case *model.SubQuery:
			if !Mentions(x, p) {
				return x, nil
			}
			clone := x.Model.CloneInScope(x.Model.OuterReferences()...)
			err := clone.TransformExpressions(func(inner expr.Expression) (expr.Expression, error) {
				return ReplaceParameter(inner, p, repl)
			})
			if err != nil {
				return nil, err
			}
			return model.NewSubQuery(clone), nil
		}
		return n, nil
	})
}

// Mentions reports whether p occurs in e, including inside nested
// sub-query models.
func Mentions(e expr.Expression, p *expr.Parameter) bool {
	found := false
	expr.Inspect(e, func(n expr.Expression) bool {
		if found {
			return false
		}
		switch x := n.(type) {
		case *expr.Parameter:
			found = x == p
		case *model.SubQuery:
			for _, inner := range x.Model.Expressions() {
				if Mentions(inner, p) {
					found = true
					break
				}
			}
		}
		return !found
	})
	return found
}

// EliminateTransparentIdentifiers rewrites record.member reads of record
// constructions to the member's value until no such read remains. Nested
// sub-query models holding such reads are cloned and rewritten.
func EliminateTransparentIdentifiers(e expr.Expression) expr.Expression {
	for {
		next, _ := expr.Transform(e, eliminateStep)
		if next == e {
			return e
		}
		e = next
	}
}

func eliminateStep(n expr.Expression) (expr.Expression, error) {
	switch x := n.(type) {
	case *expr.Member:
		if v, ok := collapse(x); ok {
			return v, nil
		}
	case *model.SubQuery:
		if !hasTransparentRead(x) {
			return x, nil
		}
		clone := x.Model.CloneInScope(x.Model.OuterReferences()...)
		_ = clone.TransformExpressions(func(inner expr.Expression) (expr.Expression, error) {
			return EliminateTransparentIdentifiers(inner), nil
		})
		return model.NewSubQuery(clone), nil
	}
	return n, nil
}

// collapse resolves new {..., name = v, ...}.name to v.
func collapse(m *expr.Member) (expr.Expression, bool) {
	rec, ok := m.Target.(*expr.Record)
	if !ok {
		return nil, false
	}
	for _, init := range rec.Members {
		if init.Name == m.Name {
			return init.Value, true
		}
	}
	return nil, false
}

func hasTransparentRead(e expr.Expression) bool {
	found := false
	expr.Inspect(e, func(n expr.Expression) bool {
		if found {
			return false
		}
		switch x := n.(type) {
		case *expr.Member:
			_, found = collapse(x)
		case *model.SubQuery:
			for _, inner := range x.Model.Expressions() {
				if hasTransparentRead(inner) {
					found = true
					break
				}
			}
		}
		return !found
	})
	return found
}

// Bind substitutes args for the parameters of lambda, in order, and returns
// the rewritten body with transparent identifiers removed.
func Bind(lambda *expr.Lambda, args ...expr.Expression) (expr.Expression, error) {
	if len(args) != len(lambda.Params) {
		return nil, fmt.Errorf("bind %s: %d arguments for %d parameters", expr.Format(lambda), len(args), len(lambda.Params))
	}
	body := lambda.Body
	for i, p := range lambda.Params {
		var err error
		body, err = ReplaceParameter(body, p, args[i])
		if err != nil {
			return nil, err
		}
	}
	return EliminateTransparentIdentifiers(body), nil
}
