package model

import (
	"fmt"
	"strings"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// DataKind classifies what a model or result operator produces.
type DataKind int

const (
	// Sequence is a stream of items.
	Sequence DataKind = iota
	// SingleValue is one item taken from a sequence (First, Max, ...).
	SingleValue
	// ScalarValue is a value computed over a sequence (Count, Any, ...).
	ScalarValue
)

func (k DataKind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case SingleValue:
		return "single"
	default:
		return "scalar"
	}
}

// DataInfo describes the output of a select clause or result operator.
type DataInfo struct {
	Kind DataKind
	Type *meta.Type
}

// ItemType returns the element type of a sequence output.
func (d DataInfo) ItemType() *meta.Type {
	if t, ok := meta.ElementType(d.Type); ok {
		return t
	}
	return meta.Any
}

// ResultOperator transforms the output of a query after its select clause.
type ResultOperator interface {
	// Name is the operator name as written in a call chain.
	Name() string
	// OutputInfo derives the operator's output from its input.
	OutputInfo(input DataInfo) (DataInfo, error)
	TransformExpressions(fn ExprFunc) error
	Clone(ctx *CloneContext) ResultOperator
	String() string
}

func requireSequence(op ResultOperator, in DataInfo) error {
	if in.Kind != Sequence {
		return fmt.Errorf("%s requires a sequence input, got %s %s", op.Name(), in.Kind, in.Type)
	}
	return nil
}

func call(name string, args ...expr.Expression) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = expr.Format(a)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// CountResultOperator counts items. Long distinguishes LongCount.
type CountResultOperator struct {
	Long bool
}

func (o *CountResultOperator) Name() string {
	if o.Long {
		return "LongCount"
	}
	return "Count"
}

func (o *CountResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: ScalarValue, Type: meta.Int}, nil
}

func (o *CountResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *CountResultOperator) Clone(*CloneContext) ResultOperator  { cp := *o; return &cp }
func (o *CountResultOperator) String() string                      { return call(o.Name()) }

// SequenceKind names a shape-preserving sequence operator.
type SequenceKind int

const (
	Distinct SequenceKind = iota
	Reverse
)

var sequenceNames = [...]string{Distinct: "Distinct", Reverse: "Reverse"}

// SequenceResultOperator reorders or deduplicates items without changing
// their type.
type SequenceResultOperator struct {
	Kind SequenceKind
}

func (o *SequenceResultOperator) Name() string { return sequenceNames[o.Kind] }

func (o *SequenceResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	return in, requireSequence(o, in)
}

func (o *SequenceResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *SequenceResultOperator) Clone(*CloneContext) ResultOperator  { cp := *o; return &cp }
func (o *SequenceResultOperator) String() string                      { return call(o.Name()) }

// ChoiceKind names an element operator.
type ChoiceKind int

const (
	First ChoiceKind = iota
	Last
	Single
)

var choiceNames = [...]string{First: "First", Last: "Last", Single: "Single"}

// ChoiceResultOperator picks one item. With OrDefault an empty input
// yields the item type's zero value instead of failing.
type ChoiceResultOperator struct {
	Kind      ChoiceKind
	OrDefault bool
}

func (o *ChoiceResultOperator) Name() string {
	if o.OrDefault {
		return choiceNames[o.Kind] + "OrDefault"
	}
	return choiceNames[o.Kind]
}

func (o *ChoiceResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: SingleValue, Type: in.ItemType()}, nil
}

func (o *ChoiceResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *ChoiceResultOperator) Clone(*CloneContext) ResultOperator  { cp := *o; return &cp }
func (o *ChoiceResultOperator) String() string                      { return call(o.Name()) }

// ScalarKind names a numeric reduction.
type ScalarKind int

const (
	Min ScalarKind = iota
	Max
	Sum
	Average
)

var scalarNames = [...]string{Min: "Min", Max: "Max", Sum: "Sum", Average: "Average"}

// ScalarResultOperator reduces the items to one value. Min and Max return
// one of the items; Sum and Average compute a new value.
type ScalarResultOperator struct {
	Kind ScalarKind
}

func (o *ScalarResultOperator) Name() string { return scalarNames[o.Kind] }

func (o *ScalarResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	switch o.Kind {
	case Min, Max:
		return DataInfo{Kind: SingleValue, Type: in.ItemType()}, nil
	case Average:
		return DataInfo{Kind: ScalarValue, Type: meta.Float}, nil
	default:
		return DataInfo{Kind: ScalarValue, Type: in.ItemType()}, nil
	}
}

func (o *ScalarResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *ScalarResultOperator) Clone(*CloneContext) ResultOperator  { cp := *o; return &cp }
func (o *ScalarResultOperator) String() string                      { return call(o.Name()) }

// AnyResultOperator reports whether the input has any item.
type AnyResultOperator struct{}

func (o *AnyResultOperator) Name() string { return "Any" }

func (o *AnyResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: ScalarValue, Type: meta.Bool}, nil
}

func (o *AnyResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *AnyResultOperator) Clone(*CloneContext) ResultOperator  { return &AnyResultOperator{} }
func (o *AnyResultOperator) String() string                      { return call(o.Name()) }

// AllResultOperator reports whether every item satisfies Predicate. The
// predicate refers to the item through query source references.
type AllResultOperator struct {
	Predicate expr.Expression
}

func (o *AllResultOperator) Name() string { return "All" }

func (o *AllResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: ScalarValue, Type: meta.Bool}, nil
}

func (o *AllResultOperator) TransformExpressions(fn ExprFunc) error {
	return transform(&o.Predicate, fn)
}

func (o *AllResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &AllResultOperator{Predicate: ctx.adjust(o.Predicate)}
}

func (o *AllResultOperator) String() string { return call(o.Name(), o.Predicate) }

// ContainsResultOperator reports whether Item occurs in the input.
type ContainsResultOperator struct {
	Item expr.Expression
}

func (o *ContainsResultOperator) Name() string { return "Contains" }

func (o *ContainsResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: ScalarValue, Type: meta.Bool}, nil
}

func (o *ContainsResultOperator) TransformExpressions(fn ExprFunc) error {
	return transform(&o.Item, fn)
}

func (o *ContainsResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &ContainsResultOperator{Item: ctx.adjust(o.Item)}
}

func (o *ContainsResultOperator) String() string { return call(o.Name(), o.Item) }

// PagingKind names a paging operator.
type PagingKind int

const (
	Take PagingKind = iota
	Skip
)

// PagingResultOperator keeps (Take) or drops (Skip) the first Count items.
type PagingResultOperator struct {
	Kind  PagingKind
	Count expr.Expression
}

func (o *PagingResultOperator) Name() string {
	if o.Kind == Skip {
		return "Skip"
	}
	return "Take"
}

func (o *PagingResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	return in, requireSequence(o, in)
}

func (o *PagingResultOperator) TransformExpressions(fn ExprFunc) error {
	return transform(&o.Count, fn)
}

func (o *PagingResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &PagingResultOperator{Kind: o.Kind, Count: ctx.adjust(o.Count)}
}

func (o *PagingResultOperator) String() string { return call(o.Name(), o.Count) }

// DefaultIfEmptyResultOperator yields DefaultValue (or the zero item when
// nil) for an empty input.
type DefaultIfEmptyResultOperator struct {
	DefaultValue expr.Expression
}

func (o *DefaultIfEmptyResultOperator) Name() string { return "DefaultIfEmpty" }

func (o *DefaultIfEmptyResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	return in, requireSequence(o, in)
}

func (o *DefaultIfEmptyResultOperator) TransformExpressions(fn ExprFunc) error {
	return transform(&o.DefaultValue, fn)
}

func (o *DefaultIfEmptyResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &DefaultIfEmptyResultOperator{DefaultValue: ctx.adjust(o.DefaultValue)}
}

func (o *DefaultIfEmptyResultOperator) String() string {
	if o.DefaultValue == nil {
		return call(o.Name())
	}
	return call(o.Name(), o.DefaultValue)
}

// CastResultOperator converts every item to Target. With Filter set
// (OfType) items of other types are dropped instead.
type CastResultOperator struct {
	Target *meta.Type
	Filter bool
}

func (o *CastResultOperator) Name() string {
	if o.Filter {
		return "OfType"
	}
	return "Cast"
}

func (o *CastResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: Sequence, Type: meta.SeqOf(o.Target)}, nil
}

func (o *CastResultOperator) TransformExpressions(ExprFunc) error { return nil }
func (o *CastResultOperator) Clone(*CloneContext) ResultOperator  { cp := *o; return &cp }

func (o *CastResultOperator) String() string {
	return o.Name() + "<" + o.Target.String() + ">()"
}

// GroupResultOperator groups items by KeySelector. Each group holds the
// ElementSelector values of its items.
type GroupResultOperator struct {
	ItemName        string
	KeySelector     expr.Expression
	ElementSelector expr.Expression
}

func (o *GroupResultOperator) Name() string { return "GroupBy" }

// GroupingType returns Grouping<key, element>.
func (o *GroupResultOperator) GroupingType() *meta.Type {
	return meta.GroupingOf(o.KeySelector.Type(), o.ElementSelector.Type())
}

func (o *GroupResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	return DataInfo{Kind: Sequence, Type: meta.SeqOf(o.GroupingType())}, nil
}

func (o *GroupResultOperator) TransformExpressions(fn ExprFunc) error {
	if err := transform(&o.KeySelector, fn); err != nil {
		return err
	}
	return transform(&o.ElementSelector, fn)
}

func (o *GroupResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &GroupResultOperator{
		ItemName:        o.ItemName,
		KeySelector:     ctx.adjust(o.KeySelector),
		ElementSelector: ctx.adjust(o.ElementSelector),
	}
}

func (o *GroupResultOperator) String() string {
	return call(o.Name(), o.KeySelector, o.ElementSelector)
}

// AggregateResultOperator folds the items with Func, a lambda over the
// accumulator whose body refers to the current item through query source
// references. Seed is nil when the first item seeds the fold.
type AggregateResultOperator struct {
	Seed expr.Expression
	Func *expr.Lambda
}

func (o *AggregateResultOperator) Name() string { return "Aggregate" }

func (o *AggregateResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	if err := requireSequence(o, in); err != nil {
		return DataInfo{}, err
	}
	if o.Seed != nil {
		return DataInfo{Kind: ScalarValue, Type: o.Seed.Type()}, nil
	}
	return DataInfo{Kind: SingleValue, Type: in.ItemType()}, nil
}

func (o *AggregateResultOperator) TransformExpressions(fn ExprFunc) error {
	if err := transform(&o.Seed, fn); err != nil {
		return err
	}
	var f expr.Expression = o.Func
	if err := transform(&f, fn); err != nil {
		return err
	}
	lam, ok := f.(*expr.Lambda)
	if !ok {
		return fmt.Errorf("aggregate func rewritten to %T, want lambda", f)
	}
	o.Func = lam
	return nil
}

func (o *AggregateResultOperator) Clone(ctx *CloneContext) ResultOperator {
	out := &AggregateResultOperator{Seed: ctx.adjust(o.Seed)}
	out.Func = ctx.adjust(o.Func).(*expr.Lambda)
	return out
}

func (o *AggregateResultOperator) String() string {
	if o.Seed == nil {
		return call(o.Name(), o.Func)
	}
	return call(o.Name(), o.Seed, o.Func)
}

// SetKind names a set operator.
type SetKind int

const (
	Union SetKind = iota
	Concat
	Intersect
	Except
)

var setNames = [...]string{Union: "Union", Concat: "Concat", Intersect: "Intersect", Except: "Except"}

// SetResultOperator combines the input with Source2.
type SetResultOperator struct {
	Kind    SetKind
	Source2 expr.Expression
}

func (o *SetResultOperator) Name() string { return setNames[o.Kind] }

func (o *SetResultOperator) OutputInfo(in DataInfo) (DataInfo, error) {
	return in, requireSequence(o, in)
}

func (o *SetResultOperator) TransformExpressions(fn ExprFunc) error {
	return transform(&o.Source2, fn)
}

func (o *SetResultOperator) Clone(ctx *CloneContext) ResultOperator {
	return &SetResultOperator{Kind: o.Kind, Source2: ctx.adjust(o.Source2)}
}

func (o *SetResultOperator) String() string { return call(o.Name(), o.Source2) }
