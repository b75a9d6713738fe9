package ops

import "github.com/roach88/relinq/internal/meta"

// sourceOnly declares Name<T>(source Seq<T>) result(T).
func sourceOnly(name string, result func(t *meta.Type) *meta.Type) *meta.Method {
	return define(name, tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		return []meta.Param{p("source", seq(tp[0]))}, result(tp[0])
	})
}

// withPredicate declares Name<T>(source Seq<T>, predicate Func<T, bool>) result(T).
func withPredicate(name string, result func(t *meta.Type) *meta.Type) *meta.Method {
	return define(name, tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("predicate", fn(in1(t), meta.Bool))}, result(t)
	})
}

// withSelector declares Name<T, R>(source Seq<T>, selector Func<T, R>) result(R).
func withSelector(name string, result func(r *meta.Type) *meta.Type) *meta.Method {
	return define(name, []string{"T", "R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, r := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("selector", fn(in1(t), r))}, result(r)
	})
}

func same(t *meta.Type) *meta.Type  { return t }
func seqOf(t *meta.Type) *meta.Type { return seq(t) }
func toInt(*meta.Type) *meta.Type   { return meta.Int }
func toBool(*meta.Type) *meta.Type  { return meta.Bool }
func toFloat(*meta.Type) *meta.Type { return meta.Float }

// Counting and quantifiers.
var (
	Count              = sourceOnly("Count", toInt)
	CountPredicate     = withPredicate("Count", toInt)
	LongCount          = sourceOnly("LongCount", toInt)
	LongCountPredicate = withPredicate("LongCount", toInt)
	Any                = sourceOnly("Any", toBool)
	AnyPredicate       = withPredicate("Any", toBool)
	All                = withPredicate("All", toBool)

	Contains = define("Contains", tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("item", t)}, meta.Bool
	})
)

// Element operators.
var (
	First                    = sourceOnly("First", same)
	FirstPredicate           = withPredicate("First", same)
	FirstOrDefault           = sourceOnly("FirstOrDefault", same)
	FirstOrDefaultPredicate  = withPredicate("FirstOrDefault", same)
	Last                     = sourceOnly("Last", same)
	LastPredicate            = withPredicate("Last", same)
	LastOrDefault            = sourceOnly("LastOrDefault", same)
	LastOrDefaultPredicate   = withPredicate("LastOrDefault", same)
	Single                   = sourceOnly("Single", same)
	SinglePredicate          = withPredicate("Single", same)
	SingleOrDefault          = sourceOnly("SingleOrDefault", same)
	SingleOrDefaultPredicate = withPredicate("SingleOrDefault", same)
)

// Aggregates.
var (
	Min             = sourceOnly("Min", same)
	MinSelector     = withSelector("Min", same)
	Max             = sourceOnly("Max", same)
	MaxSelector     = withSelector("Max", same)
	Sum             = sourceOnly("Sum", same)
	SumSelector     = withSelector("Sum", same)
	Average         = sourceOnly("Average", toFloat)
	AverageSelector = withSelector("Average", toFloat)

	Aggregate = define("Aggregate", tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("func", fn(in2(t, t), t))}, t
	})

	AggregateSeed = define("Aggregate", []string{"T", "A"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t, a := tp[0], tp[1]
		return []meta.Param{p("source", seq(t)), p("seed", a), p("func", fn(in2(a, t), a))}, a
	})
)

// Shape-preserving sequence operators.
var (
	Distinct       = sourceOnly("Distinct", seqOf)
	Reverse        = sourceOnly("Reverse", seqOf)
	DefaultIfEmpty = sourceOnly("DefaultIfEmpty", seqOf)

	DefaultIfEmptyValue = define("DefaultIfEmpty", tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("defaultValue", t)}, seq(t)
	})

	Take = paging("Take")
	Skip = paging("Skip")

	Cast   = conversion("Cast")
	OfType = conversion("OfType")

	Union     = setOperator("Union")
	Concat    = setOperator("Concat")
	Intersect = setOperator("Intersect")
	Except    = setOperator("Except")
)

func paging(name string) *meta.Method {
	return define(name, tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("source", seq(t)), p("count", meta.Int)}, seq(t)
	})
}

func conversion(name string) *meta.Method {
	return define(name, []string{"R"}, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		return []meta.Param{p("source", seq(meta.Any))}, seq(tp[0])
	})
}

func setOperator(name string) *meta.Method {
	return define(name, tOnly, func(tp []*meta.Type) ([]meta.Param, *meta.Type) {
		t := tp[0]
		return []meta.Param{p("first", seq(t)), p("second", seq(t))}, seq(t)
	})
}

// List<T> instance members. They are bound by name in the default
// registry rather than by exact identity.
var (
	ListContains = meta.List.Declare(&meta.Method{
		Name:   "Contains",
		Params: []meta.Param{p("item", meta.List.TypeParams[0])},
		Result: meta.Bool,
	})

	ListCount = meta.List.Declare(&meta.Method{
		Name:   "Count",
		Result: meta.Int,
	})
)

// ListOf returns List<elem>.
func ListOf(elem *meta.Type) *meta.Type {
	return meta.Instantiate(meta.List, elem)
}
