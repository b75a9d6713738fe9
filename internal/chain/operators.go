package chain

import (
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

func (q *Query) Where(predicate Arg) *Query { return q.Invoke("Where", predicate) }
func (q *Query) Select(selector Arg) *Query { return q.Invoke("Select", selector) }

// SelectMany flattens the sequences produced by collection. An optional
// result lambda combines each source item with each collection item.
func (q *Query) SelectMany(collection Arg, result ...Arg) *Query {
	return q.Invoke("SelectMany", append([]Arg{collection}, result...)...)
}

// Let binds a computed value; result combines the item with it.
func (q *Query) Let(value, result Arg) *Query { return q.Invoke("Let", value, result) }

func (q *Query) Join(inner *Query, outerKey, innerKey, result Arg) *Query {
	return q.Invoke("Join", Nested(inner), outerKey, innerKey, result)
}

func (q *Query) GroupJoin(inner *Query, outerKey, innerKey, result Arg) *Query {
	return q.Invoke("GroupJoin", Nested(inner), outerKey, innerKey, result)
}

func (q *Query) OrderBy(key Arg) *Query           { return q.Invoke("OrderBy", key) }
func (q *Query) OrderByDescending(key Arg) *Query { return q.Invoke("OrderByDescending", key) }
func (q *Query) ThenBy(key Arg) *Query            { return q.Invoke("ThenBy", key) }
func (q *Query) ThenByDescending(key Arg) *Query  { return q.Invoke("ThenByDescending", key) }

// GroupBy groups by key. rest holds an element selector, a result
// selector, or both in that order.
func (q *Query) GroupBy(key Arg, rest ...Arg) *Query {
	return q.Invoke("GroupBy", append([]Arg{key}, rest...)...)
}

func (q *Query) Count(predicate ...Arg) *Query     { return q.Invoke("Count", predicate...) }
func (q *Query) LongCount(predicate ...Arg) *Query { return q.Invoke("LongCount", predicate...) }
func (q *Query) Any(predicate ...Arg) *Query       { return q.Invoke("Any", predicate...) }
func (q *Query) All(predicate Arg) *Query          { return q.Invoke("All", predicate) }
func (q *Query) Contains(item Arg) *Query          { return q.Invoke("Contains", item) }

func (q *Query) First(predicate ...Arg) *Query           { return q.Invoke("First", predicate...) }
func (q *Query) FirstOrDefault(predicate ...Arg) *Query  { return q.Invoke("FirstOrDefault", predicate...) }
func (q *Query) Last(predicate ...Arg) *Query            { return q.Invoke("Last", predicate...) }
func (q *Query) LastOrDefault(predicate ...Arg) *Query   { return q.Invoke("LastOrDefault", predicate...) }
func (q *Query) Single(predicate ...Arg) *Query          { return q.Invoke("Single", predicate...) }
func (q *Query) SingleOrDefault(predicate ...Arg) *Query { return q.Invoke("SingleOrDefault", predicate...) }

func (q *Query) Min(selector ...Arg) *Query     { return q.Invoke("Min", selector...) }
func (q *Query) Max(selector ...Arg) *Query     { return q.Invoke("Max", selector...) }
func (q *Query) Sum(selector ...Arg) *Query     { return q.Invoke("Sum", selector...) }
func (q *Query) Average(selector ...Arg) *Query { return q.Invoke("Average", selector...) }

// Aggregate folds the items. args is either the two-parameter fold lambda
// or a seed followed by it.
func (q *Query) Aggregate(args ...Arg) *Query { return q.Invoke("Aggregate", args...) }

func (q *Query) Distinct() *Query  { return q.Invoke("Distinct") }
func (q *Query) Reverse() *Query   { return q.Invoke("Reverse") }
func (q *Query) Take(n Arg) *Query { return q.Invoke("Take", n) }
func (q *Query) Skip(n Arg) *Query { return q.Invoke("Skip", n) }

// DefaultIfEmpty yields a single default item for an empty sequence.
func (q *Query) DefaultIfEmpty(value ...Arg) *Query { return q.Invoke("DefaultIfEmpty", value...) }

func (q *Query) Cast(target *meta.Type) *Query {
	return q.InvokeGeneric("Cast", []*meta.Type{target})
}

func (q *Query) OfType(target *meta.Type) *Query {
	return q.InvokeGeneric("OfType", []*meta.Type{target})
}

func (q *Query) Union(other *Query) *Query     { return q.Invoke("Union", Nested(other)) }
func (q *Query) Concat(other *Query) *Query    { return q.Invoke("Concat", Nested(other)) }
func (q *Query) Intersect(other *Query) *Query { return q.Invoke("Intersect", Nested(other)) }
func (q *Query) Except(other *Query) *Query    { return q.Invoke("Except", Nested(other)) }

// Member is a shorthand for a lambda body reading p.name.
func Member(name string) func(p *expr.Parameter) expr.Expression {
	return func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, name) }
}

// Identity is a lambda body returning its parameter.
func Identity(p *expr.Parameter) expr.Expression { return p }
