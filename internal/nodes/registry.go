package nodes

import (
	"fmt"

	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/ops"
	"github.com/roach88/relinq/internal/registry"
)

// Registry maps recognized calls to node factories.
type Registry = registry.Compound[Factory]

// DefaultRegistry returns a registry covering the standard operator
// catalog. Queryable operators are registered by exact definition; the
// List members are registered by name and shape.
func DefaultRegistry() *Registry {
	r := registry.NewCompound[Factory]()
	exact := func(h Factory, methods ...*meta.Method) {
		if err := r.Exact.Register(methods, h); err != nil {
			panic(err)
		}
	}

	exact(NewWhere, ops.Where)
	exact(NewSelect, ops.Select)
	exact(NewSelectMany, ops.SelectMany, ops.SelectManyResult)
	exact(NewLet, ops.Let)
	exact(NewJoin, ops.Join)
	exact(NewGroupJoin, ops.GroupJoin)
	exact(NewOrderBy, ops.OrderBy)
	exact(NewOrderByDescending, ops.OrderByDescending)
	exact(NewThenBy, ops.ThenBy)
	exact(NewThenByDescending, ops.ThenByDescending)
	exact(NewGroupBy, ops.GroupBy, ops.GroupByElement, ops.GroupByResult, ops.GroupByElementResult)

	exact(NewCount, ops.Count, ops.CountPredicate)
	exact(NewLongCount, ops.LongCount, ops.LongCountPredicate)
	exact(NewAny, ops.Any, ops.AnyPredicate)
	exact(NewAll, ops.All)
	exact(NewContains, ops.Contains)

	exact(choice(model.First, false), ops.First, ops.FirstPredicate)
	exact(choice(model.First, true), ops.FirstOrDefault, ops.FirstOrDefaultPredicate)
	exact(choice(model.Last, false), ops.Last, ops.LastPredicate)
	exact(choice(model.Last, true), ops.LastOrDefault, ops.LastOrDefaultPredicate)
	exact(choice(model.Single, false), ops.Single, ops.SinglePredicate)
	exact(choice(model.Single, true), ops.SingleOrDefault, ops.SingleOrDefaultPredicate)

	exact(scalar(model.Min), ops.Min, ops.MinSelector)
	exact(scalar(model.Max), ops.Max, ops.MaxSelector)
	exact(scalar(model.Sum), ops.Sum, ops.SumSelector)
	exact(scalar(model.Average), ops.Average, ops.AverageSelector)
	exact(NewAggregate, ops.Aggregate, ops.AggregateSeed)

	exact(sequence(model.Distinct), ops.Distinct)
	exact(sequence(model.Reverse), ops.Reverse)
	exact(NewDefaultIfEmpty, ops.DefaultIfEmpty, ops.DefaultIfEmptyValue)
	exact(paging(model.Take), ops.Take)
	exact(paging(model.Skip), ops.Skip)
	exact(cast(false), ops.Cast)
	exact(cast(true), ops.OfType)
	exact(set(model.Union), ops.Union)
	exact(set(model.Concat), ops.Concat)
	exact(set(model.Intersect), ops.Intersect)
	exact(set(model.Except), ops.Except)

	r.Names.Register([]string{"Contains"}, listMember(1), NewContains)
	r.Names.Register([]string{"Count"}, listMember(0), NewCount)
	return r
}

// listMember matches instance methods of List<T> taking arity arguments.
func listMember(arity int) registry.Predicate {
	return func(m *meta.Method) bool {
		if m.Static || len(m.Params) != arity || m.DeclaringType == nil {
			return false
		}
		decl := m.DeclaringType
		return decl == meta.List || decl.Definition == meta.List
	}
}

// IsInstanceCall reports whether call takes its source from the receiver
// rather than the first argument.
func IsInstanceCall(m *meta.Method) bool {
	return m != nil && !m.Static
}

// RegisterAlias declares alias as a renamed copy of the catalog operator
// target and binds it, by name and parameter count, to the handlers
// registered for target in r.
func RegisterAlias(r *Registry, alias, target string) error {
	defs, err := ops.DeclareAlias(alias, target)
	if err != nil {
		return err
	}
	for _, def := range defs {
		orig := ops.Queryable.MethodsNamed(target)
		var h Factory
		found := false
		for _, o := range orig {
			if len(o.Params) != len(def.Params) {
				continue
			}
			if h, found, err = r.Exact.Lookup(o); err != nil {
				return err
			}
			if found {
				break
			}
		}
		if !found {
			return fmt.Errorf("alias %q: operator %q has no handler taking %d arguments", alias, target, len(def.Params))
		}
		r.Names.Register([]string{alias}, aliasShape(len(def.Params)), h)
	}
	return nil
}

// aliasShape matches static Extensions methods with n parameters.
func aliasShape(n int) registry.Predicate {
	return func(m *meta.Method) bool {
		return m.Static && len(m.Params) == n && m.DeclaringType == ops.Extensions
	}
}
