package chain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/rewrite"
)

// ErrNotExpressible is returned by FromModel when a model expression
// cannot be written as a lambda over the chain's items.
var ErrNotExpressible = errors.New("expression cannot be written over the chain's items")

// FromModel rebuilds a call chain that parses back to a model equivalent
// to qm: the same clauses with the same item names and expressions.
//
// Each body clause becomes one call. Once a chain has more than one query
// source, lambdas take a record of all current items and read them by
// name. Result operator arguments are rewritten over the selected items;
// a model whose arguments refer to sources in any other way is rejected
// with ErrNotExpressible.
func FromModel(qm *model.QueryModel) (*Query, error) {
	return fromModel(qm, nil)
}

// resolver returns the expression denoting a query source's current item.
type resolver func(model.QuerySource) (expr.Expression, bool)

type scopedSource struct {
	clause model.QuerySource
	name   string
}

type rebuilder struct {
	outer    resolver
	sources  []scopedSource
	named    bool
	selector expr.Expression
	identity bool
}

func fromModel(qm *model.QueryModel, outer resolver) (*Query, error) {
	r := &rebuilder{outer: outer}

	var q *Query
	if sub, ok := qm.MainFrom.FromExpression.(*model.SubQuery); ok {
		nested, err := fromModel(sub.Model, outer)
		if err != nil {
			return nil, err
		}
		q = nested
	} else {
		from, err := substitute(qm.MainFrom.FromExpression, outer)
		if err != nil {
			return nil, err
		}
		q = From(from)
	}
	r.sources = []scopedSource{{clause: qm.MainFrom, name: qm.MainFrom.Item.Name}}

	for _, c := range qm.BodyClauses {
		q = r.clause(q, c)
	}

	r.selector = qm.Select.Selector
	ref, isRef := r.selector.(*model.QuerySourceRef)
	r.identity = isRef && len(r.sources) == 1 && ref.Source.ID() == qm.MainFrom.ID()
	if !r.identity {
		q = q.Select(r.lambda(r.selector))
		r.named = true
	}

	for _, op := range qm.ResultOperators {
		if !r.named && !isGeneratedName(qm.MainFrom.Item.Name) {
			q = q.Select(Fn(qm.MainFrom.Item.Name, Identity))
		}
		r.named = true
		q = r.resultOperator(q, op)
	}
	if err := q.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

// isGeneratedName reports whether name has the form the parser gives items
// of sources that no lambda names.
func isGeneratedName(name string) bool {
	if !strings.HasPrefix(name, "_") {
		return false
	}
	_, err := strconv.Atoi(name[1:])
	return err == nil
}

func (r *rebuilder) paramName() string {
	if len(r.sources) == 1 {
		return r.sources[0].name
	}
	return "t"
}

// scope resolves the current sources relative to the lambda parameter p.
func (r *rebuilder) scope(p expr.Expression) resolver {
	sources := slices.Clone(r.sources)
	outer := r.outer
	return func(s model.QuerySource) (expr.Expression, bool) {
		for _, src := range sources {
			if src.clause.ID() != s.ID() {
				continue
			}
			if len(sources) == 1 {
				return p, true
			}
			return expr.NewMember(p, src.name), true
		}
		if outer != nil {
			return outer(s)
		}
		return nil, false
	}
}

// lambda writes e as a one-parameter lambda over the current items.
func (r *rebuilder) lambda(e expr.Expression) Arg {
	scope := r.scope
	return Lambda([]string{r.paramName()}, func(ps []*expr.Parameter) (expr.Expression, error) {
		return substitute(e, scope(ps[0]))
	})
}

// combine builds the result lambda of a call that adds a source named
// name: a record holding every current item plus the new one.
func (r *rebuilder) combine(name string) Arg {
	sources := slices.Clone(r.sources)
	scope := r.scope
	return Lambda([]string{r.paramName(), name}, func(ps []*expr.Parameter) (expr.Expression, error) {
		resolve := scope(ps[0])
		members := make([]expr.MemberInit, 0, len(sources)+1)
		for _, s := range sources {
			v, _ := resolve(s.clause)
			members = append(members, expr.Init(s.name, v))
		}
		members = append(members, expr.Init(name, ps[1]))
		return expr.NewRecord(members...), nil
	})
}

func (r *rebuilder) add(c model.QuerySource) {
	r.sources = append(r.sources, scopedSource{clause: c, name: c.SourceItem().Name})
}

// value passes e with outer references resolved.
func (r *rebuilder) value(e expr.Expression) Arg {
	out, err := substitute(e, r.outer)
	if err != nil {
		return Arg{err: err}
	}
	return Value(out)
}

func (r *rebuilder) clause(q *Query, c model.BodyClause) *Query {
	r.named = true
	switch c := c.(type) {
	case *model.WhereClause:
		return q.Where(r.lambda(c.Predicate))

	case *model.OrderByClause:
		for i, o := range c.Orderings {
			name := "OrderBy"
			if i > 0 {
				name = "ThenBy"
			}
			if o.Direction == model.Desc {
				name += "Descending"
			}
			q = q.Invoke(name, r.lambda(o.Expression))
		}
		return q

	case *model.AdditionalFromClause:
		q = q.SelectMany(r.lambda(c.FromExpression), r.combine(c.Item.Name))
		r.add(c)
		return q

	case *model.JoinClause:
		q = q.Invoke("Join", r.value(c.InnerSequence), r.lambda(c.OuterKeySelector), r.innerKey(c), r.combine(c.Item.Name))
		r.add(c)
		return q

	case *model.GroupJoinClause:
		j := c.Join
		q = q.Invoke("GroupJoin", r.value(j.InnerSequence), r.lambda(j.OuterKeySelector), r.innerKey(j), r.combine(c.Item.Name))
		r.add(c)
		return q

	case *model.LetClause:
		q = q.Let(r.lambda(c.Expression), r.combine(c.Item.Name))
		r.add(c)
		return q
	}
	return Fail(fmt.Errorf("%w: unsupported clause %s", ErrNotExpressible, c))
}

// innerKey writes a join's inner key selector as a lambda over the inner
// item.
func (r *rebuilder) innerKey(j *model.JoinClause) Arg {
	outer := r.outer
	return Lambda([]string{j.Item.Name}, func(ps []*expr.Parameter) (expr.Expression, error) {
		return substitute(j.InnerKeySelector, func(s model.QuerySource) (expr.Expression, bool) {
			if s.ID() == j.ID() {
				return ps[0], true
			}
			if outer != nil {
				return outer(s)
			}
			return nil, false
		})
	})
}

// overSelected rewrites e, written against the query's sources, over the
// selected item p.
func (r *rebuilder) overSelected(e expr.Expression, p expr.Expression) (expr.Expression, error) {
	if r.identity {
		return substitute(e, r.scope(p))
	}
	target := expr.Format(r.selector)
	var visit func(expr.Expression) (expr.Expression, error)
	visit = func(n expr.Expression) (expr.Expression, error) {
		if expr.Format(n) == target {
			return p, nil
		}
		return expr.VisitChildren(n, visit)
	}
	replaced, err := visit(e)
	if err != nil {
		return nil, err
	}
	return substitute(replaced, r.outer)
}

func (r *rebuilder) selectedLambda(e expr.Expression) Arg {
	return Lambda([]string{r.paramName()}, func(ps []*expr.Parameter) (expr.Expression, error) {
		return r.overSelected(e, ps[0])
	})
}

func (r *rebuilder) resultOperator(q *Query, op model.ResultOperator) *Query {
	switch o := op.(type) {
	case *model.CountResultOperator, *model.SequenceResultOperator,
		*model.ChoiceResultOperator, *model.ScalarResultOperator, *model.AnyResultOperator:
		return q.Invoke(op.Name())

	case *model.AllResultOperator:
		return q.All(r.selectedLambda(o.Predicate))

	case *model.ContainsResultOperator:
		return q.Contains(r.value(o.Item))

	case *model.PagingResultOperator:
		return q.Invoke(o.Name(), r.value(o.Count))

	case *model.DefaultIfEmptyResultOperator:
		if o.DefaultValue == nil {
			return q.DefaultIfEmpty()
		}
		return q.DefaultIfEmpty(r.value(o.DefaultValue))

	case *model.CastResultOperator:
		if o.Filter {
			return q.OfType(o.Target)
		}
		return q.Cast(o.Target)

	case *model.GroupResultOperator:
		if o.ElementSelector == nil || expr.Format(o.ElementSelector) == expr.Format(r.selector) {
			return q.GroupBy(r.selectedLambda(o.KeySelector))
		}
		return q.GroupBy(r.selectedLambda(o.KeySelector), r.selectedLambda(o.ElementSelector))

	case *model.AggregateResultOperator:
		acc := o.Func.Params[0]
		fold := Lambda([]string{acc.Name, r.paramName()}, func(ps []*expr.Parameter) (expr.Expression, error) {
			body, err := rewrite.ReplaceParameter(o.Func.Body, acc, ps[0])
			if err != nil {
				return nil, err
			}
			return r.overSelected(body, ps[1])
		})
		if o.Seed == nil {
			return q.Aggregate(fold)
		}
		return q.Aggregate(r.value(o.Seed), fold)

	case *model.SetResultOperator:
		return q.Invoke(o.Name(), r.value(o.Source2))
	}
	return Fail(fmt.Errorf("%w: unsupported result operator %s", ErrNotExpressible, op))
}

// substitute replaces query source references in e using resolve, and
// rebuilds nested models as nested chains.
func substitute(e expr.Expression, resolve resolver) (expr.Expression, error) {
	if e == nil {
		return nil, nil
	}
	return expr.Transform(e, func(n expr.Expression) (expr.Expression, error) {
		switch x := n.(type) {
		case *model.QuerySourceRef:
			if resolve != nil {
				if out, ok := resolve(x.Source); ok {
					return out, nil
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrNotExpressible, x)
		case *model.SubQuery:
			q, err := fromModel(x.Model, resolve)
			if err != nil {
				return nil, err
			}
			return q.Expr()
		}
		return n, nil
	})
}
