// Package ops declares the standard operator catalog: generic operator
// definitions on the static Queryable type, the instance members of
// List<T>, and scalar helper methods used inside lambdas.
//
// Front ends reference these definitions and close them over concrete type
// arguments at each call site (see package chain). The parser's default
// registry is keyed on exactly these definitions.
package ops

import (
	"github.com/roach88/relinq/internal/meta"
)

// Queryable holds the receiver-less query operators.
var Queryable = meta.NewStatic("Queryable")

// define declares a generic operator on Queryable. sig receives the
// method's type parameters in order.
func define(name string, tparams []string, sig func(tp []*meta.Type) ([]meta.Param, *meta.Type)) *meta.Method {
	tps := make([]*meta.Type, len(tparams))
	for i, n := range tparams {
		tps[i] = meta.NewParam(n, i)
	}
	params, result := sig(tps)
	return Queryable.Declare(&meta.Method{
		Name:       name,
		TypeParams: tps,
		Params:     params,
		Result:     result,
		Static:     true,
	})
}

var (
	seq   = meta.SeqOf
	fn    = meta.Func
	p     = meta.P
	in1   = func(t *meta.Type) []*meta.Type { return []*meta.Type{t} }
	in2   = func(a, b *meta.Type) []*meta.Type { return []*meta.Type{a, b} }
	tOnly = []string{"T"}
)

// Projection and filtering.
var (
	Where = define("Where", tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("predicate", fn(in1(t), meta.Bool))}, seq(t)
	})

	Select = define("Select", []string{"T", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, r := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("selector", fn(in1(t), r))}, seq(r)
	})

	SelectMany = define("SelectMany", []string{"T", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, r := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("selector", fn(in1(t), seq(r)))}, seq(r)
	})

	SelectManyResult = define("SelectMany", []string{"T", "C", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, c, r := tp[0], tp[1], tp[2]
		return []meta.Param{
			p("source", seq(t)),
			p("collectionSelector", fn(in1(t), seq(c))),
			p("resultSelector", fn(in2(t, c), r)),
		}, seq(r)
	})

	Let = define("Let", []string{"T", "U", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, u, r := tp[0], tp[1], tp[2]
		return []meta.Param{
			p("source", seq(t)),
			p("selector", fn(in1(t), u)),
			p("resultSelector", fn(in2(t, u), r)),
		}, seq(r)
	})
)

// Joins.
var (
	Join = define("Join", []string{"O", "I", "K", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		o, i, k, r := tp[0], tp[1], tp[2], tp[3]
		return []meta.Param{
			p("outer", seq(o)),
			p("inner", seq(i)),
			p("outerKeySelector", fn(in1(o), k)),
			p("innerKeySelector", fn(in1(i), k)),
			p("resultSelector", fn(in2(o, i), r)),
		}, seq(r)
	})

	GroupJoin = define("GroupJoin", []string{"O", "I", "K", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		o, i, k, r := tp[0], tp[1], tp[2], tp[3]
		return []meta.Param{
			p("outer", seq(o)),
			p("inner", seq(i)),
			p("outerKeySelector", fn(in1(o), k)),
			p("innerKeySelector", fn(in1(i), k)),
			p("resultSelector", fn(in2(o, seq(i)), r)),
		}, seq(r)
	})
)

// Ordering.
var (
	OrderBy           = orderingOperator("OrderBy")
	OrderByDescending = orderingOperator("OrderByDescending")
	ThenBy            = orderingOperator("ThenBy")
	ThenByDescending  = orderingOperator("ThenByDescending")
)

func orderingOperator(name string) *meta.Method {
	return define(name, []string{"T", "K"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, k := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("keySelector", fn(in1(t), k))}, seq(t)
	})
}

// Grouping.
var (
	GroupBy = define("GroupBy", []string{"T", "K"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, k := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("keySelector", fn(in1(t), k))}, seq(meta.GroupingOf(k, t))
	})

	GroupByElement = define("GroupBy", []string{"T", "K", "E"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, k, e := tp[0], tp[1], tp[2]
		return []meta.Param{
			p("source", seq(t)),
			p("keySelector", fn(in1(t), k)),
			p("elementSelector", fn(in1(t), e)),
		}, seq(meta.GroupingOf(k, e))
	})

	GroupByResult = define("GroupBy", []string{"T", "K", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, k, r := tp[0], tp[1], tp[2]
		return []meta.Param{
			p("source", seq(t)),
			p("keySelector", fn(in1(t), k)),
			p("resultSelector", fn(in2(k, seq(t)), r)),
		}, seq(r)
	})

	GroupByElementResult = define("GroupBy", []string{"T", "K", "E", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, k, e, r := tp[0], tp[1], tp[2], tp[3]
		return []meta.Param{
			p("source", seq(t)),
			p("keySelector", fn(in1(t), k)),
			p("elementSelector", fn(in1(t), e)),
			p("resultSelector", fn(in2(k, seq(e)), r)),
		}, seq(r)
	})
)
