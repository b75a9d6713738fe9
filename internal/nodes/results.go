package nodes

import (
	"fmt"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/rewrite"
)

// resultBase is embedded by every result operator node.
type resultBase struct {
	base

	// Predicate, when set, is applied as a where clause before the
	// operator.
	Predicate *expr.Lambda

	// Selector, when set, replaces the select clause before the operator.
	Selector *expr.Lambda
}

// Resolve refers to the main source that wrapped this node, if a later
// clause forced a wrap; otherwise the operator leaves items unchanged.
func (r *resultBase) Resolve(ctx *Context) (expr.Expression, error) {
	if from, ok := ctx.wraps[r.self()]; ok {
		return model.NewQuerySourceRef(from), nil
	}
	return r.source.Resolve(ctx)
}

func (r *resultBase) result() *resultBase { return r }

type resultNode interface {
	Node
	result() *resultBase
	operator(ctx *Context) (model.ResultOperator, error)
}

func applyResult(n resultNode, b *model.Builder, ctx *Context) error {
	r := n.result()
	if r.Predicate != nil {
		if err := wrapAfter(r.source, b, ctx); err != nil {
			return err
		}
		pred, err := ResolveLambda(r.source, r.Predicate, ctx)
		if err != nil {
			return err
		}
		b.AddBodyClause(model.NewWhereClause(pred))
	}
	if r.Selector != nil {
		if err := wrapAfter(r.source, b, ctx); err != nil {
			return err
		}
		sel, err := ResolveLambda(r.source, r.Selector, ctx)
		if err != nil {
			return err
		}
		b.SetSelect(model.NewSelectClause(sel))
	}
	op, err := n.operator(ctx)
	if err != nil {
		return err
	}
	b.AddResultOperator(op)
	ctx.Logger.Debug("added result operator", "operator", op.String())
	return nil
}

// optionalLambda returns the i-th argument as a single-parameter lambda,
// or nil when absent.
func optionalLambda(info CallInfo, i int) (*expr.Lambda, error) {
	if i >= len(info.Args) {
		return nil, nil
	}
	return info.Lambda(i, 1)
}

// CountNode handles Count and LongCount, each with an optional predicate.
type CountNode struct {
	resultBase
	Long bool
}

// NewCount handles Count(source[, predicate]) and List.Count().
func NewCount(info CallInfo) (Node, error) { return newCount(info, false) }

// NewLongCount handles LongCount(source[, predicate]).
func NewLongCount(info CallInfo) (Node, error) { return newCount(info, true) }

func newCount(info CallInfo, long bool) (Node, error) {
	pred, err := optionalLambda(info, 0)
	if err != nil {
		return nil, err
	}
	return &CountNode{resultBase: resultBase{base: info.base(), Predicate: pred}, Long: long}, nil
}

func (n *CountNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *CountNode) operator(*Context) (model.ResultOperator, error) {
	return &model.CountResultOperator{Long: n.Long}, nil
}

// AnyNode handles Any with an optional predicate.
type AnyNode struct {
	resultBase
}

// NewAny handles Any(source[, predicate]).
func NewAny(info CallInfo) (Node, error) {
	pred, err := optionalLambda(info, 0)
	if err != nil {
		return nil, err
	}
	return &AnyNode{resultBase{base: info.base(), Predicate: pred}}, nil
}

func (n *AnyNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *AnyNode) operator(*Context) (model.ResultOperator, error) {
	return &model.AnyResultOperator{}, nil
}

// AllNode handles All. Its predicate stays on the operator rather than
// becoming a where clause.
type AllNode struct {
	resultBase
	Condition *expr.Lambda
}

// NewAll handles All(source, predicate).
func NewAll(info CallInfo) (Node, error) {
	cond, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	return &AllNode{resultBase: resultBase{base: info.base()}, Condition: cond}, nil
}

func (n *AllNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *AllNode) operator(ctx *Context) (model.ResultOperator, error) {
	pred, err := ResolveLambda(n.source, n.Condition, ctx)
	if err != nil {
		return nil, err
	}
	return &model.AllResultOperator{Predicate: pred}, nil
}

// ContainsNode handles Contains, both the query operator and List.Contains.
type ContainsNode struct {
	resultBase
	Item expr.Expression
}

// NewContains handles Contains(source, item) and list.Contains(item).
func NewContains(info CallInfo) (Node, error) {
	item, err := info.Arg(0)
	if err != nil {
		return nil, err
	}
	return &ContainsNode{resultBase: resultBase{base: info.base()}, Item: item}, nil
}

func (n *ContainsNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *ContainsNode) operator(*Context) (model.ResultOperator, error) {
	return &model.ContainsResultOperator{Item: n.Item}, nil
}

// ChoiceNode handles First, Last and Single, their OrDefault forms, each
// with an optional predicate.
type ChoiceNode struct {
	resultBase
	Kind      model.ChoiceKind
	OrDefault bool
}

func choice(kind model.ChoiceKind, orDefault bool) Factory {
	return func(info CallInfo) (Node, error) {
		pred, err := optionalLambda(info, 0)
		if err != nil {
			return nil, err
		}
		return &ChoiceNode{
			resultBase: resultBase{base: info.base(), Predicate: pred},
			Kind:       kind,
			OrDefault:  orDefault,
		}, nil
	}
}

func (n *ChoiceNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *ChoiceNode) operator(*Context) (model.ResultOperator, error) {
	return &model.ChoiceResultOperator{Kind: n.Kind, OrDefault: n.OrDefault}, nil
}

// ScalarNode handles Min, Max, Sum and Average, each with an optional
// selector.
type ScalarNode struct {
	resultBase
	Kind model.ScalarKind
}

func scalar(kind model.ScalarKind) Factory {
	return func(info CallInfo) (Node, error) {
		sel, err := optionalLambda(info, 0)
		if err != nil {
			return nil, err
		}
		return &ScalarNode{resultBase: resultBase{base: info.base(), Selector: sel}, Kind: kind}, nil
	}
}

func (n *ScalarNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *ScalarNode) operator(*Context) (model.ResultOperator, error) {
	return &model.ScalarResultOperator{Kind: n.Kind}, nil
}

// SequenceNode handles Distinct and Reverse.
type SequenceNode struct {
	resultBase
	Kind model.SequenceKind
}

func sequence(kind model.SequenceKind) Factory {
	return func(info CallInfo) (Node, error) {
		return &SequenceNode{resultBase: resultBase{base: info.base()}, Kind: kind}, nil
	}
}

func (n *SequenceNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *SequenceNode) operator(*Context) (model.ResultOperator, error) {
	return &model.SequenceResultOperator{Kind: n.Kind}, nil
}

// PagingNode handles Take and Skip.
type PagingNode struct {
	resultBase
	Kind  model.PagingKind
	Count expr.Expression
}

func paging(kind model.PagingKind) Factory {
	return func(info CallInfo) (Node, error) {
		count, err := info.Arg(0)
		if err != nil {
			return nil, err
		}
		return &PagingNode{resultBase: resultBase{base: info.base()}, Kind: kind, Count: count}, nil
	}
}

func (n *PagingNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *PagingNode) operator(*Context) (model.ResultOperator, error) {
	return &model.PagingResultOperator{Kind: n.Kind, Count: n.Count}, nil
}

// DefaultIfEmptyNode handles DefaultIfEmpty with an optional value.
type DefaultIfEmptyNode struct {
	resultBase
	DefaultValue expr.Expression
}

// NewDefaultIfEmpty handles DefaultIfEmpty(source[, value]).
func NewDefaultIfEmpty(info CallInfo) (Node, error) {
	n := &DefaultIfEmptyNode{resultBase: resultBase{base: info.base()}}
	if len(info.Args) > 0 {
		n.DefaultValue = info.Args[0]
	}
	return n, nil
}

func (n *DefaultIfEmptyNode) Apply(b *model.Builder, ctx *Context) error {
	return applyResult(n, b, ctx)
}

func (n *DefaultIfEmptyNode) operator(*Context) (model.ResultOperator, error) {
	return &model.DefaultIfEmptyResultOperator{DefaultValue: n.DefaultValue}, nil
}

// CastNode handles Cast and OfType. The target type is the call's type
// argument.
type CastNode struct {
	resultBase
	Target *meta.Type
	Filter bool
}

func cast(filter bool) Factory {
	return func(info CallInfo) (Node, error) {
		target := meta.Any
		if m := info.Call.Method; m != nil && len(m.TypeArgs) > 0 {
			target = m.TypeArgs[0]
		}
		return &CastNode{resultBase: resultBase{base: info.base()}, Target: target, Filter: filter}, nil
	}
}

func (n *CastNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *CastNode) operator(*Context) (model.ResultOperator, error) {
	return &model.CastResultOperator{Target: n.Target, Filter: n.Filter}, nil
}

// SetNode handles Union, Concat, Intersect and Except.
type SetNode struct {
	resultBase
	Kind    model.SetKind
	Source2 expr.Expression
}

func set(kind model.SetKind) Factory {
	return func(info CallInfo) (Node, error) {
		second, err := info.Arg(0)
		if err != nil {
			return nil, err
		}
		return &SetNode{resultBase: resultBase{base: info.base()}, Kind: kind, Source2: second}, nil
	}
}

func (n *SetNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *SetNode) operator(*Context) (model.ResultOperator, error) {
	return &model.SetResultOperator{Kind: n.Kind, Source2: n.Source2}, nil
}

// AggregateNode handles Aggregate with and without a seed. Only the item
// parameter of Func is bound; the accumulator stays a lambda parameter.
type AggregateNode struct {
	resultBase
	Seed expr.Expression
	Func *expr.Lambda
}

// NewAggregate handles Aggregate(source[, seed], func).
func NewAggregate(info CallInfo) (Node, error) {
	n := &AggregateNode{resultBase: resultBase{base: info.base()}}
	fi := 0
	if len(info.Args) > 1 {
		n.Seed = info.Args[0]
		fi = 1
	}
	f, err := info.Lambda(fi, 2)
	if err != nil {
		return nil, err
	}
	n.Func = f
	return n, nil
}

func (n *AggregateNode) Apply(b *model.Builder, ctx *Context) error { return applyResult(n, b, ctx) }

func (n *AggregateNode) operator(ctx *Context) (model.ResultOperator, error) {
	item, err := n.source.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	body, err := rewrite.ReplaceParameter(n.Func.Body, n.Func.Params[1], item)
	if err != nil {
		return nil, err
	}
	body = rewrite.EliminateTransparentIdentifiers(body)
	return &model.AggregateResultOperator{
		Seed: n.Seed,
		Func: expr.NewLambda(body, n.Func.Params[0]),
	}, nil
}

// GroupByNode handles the four GroupBy forms. Without a result selector
// it is a plain result operator producing groupings. With one, the
// grouped model is wrapped at once and the result selector, bound to each
// grouping's key and the grouping itself, becomes the new select clause.
type GroupByNode struct {
	resultBase
	KeySelector     *expr.Lambda
	ElementSelector *expr.Lambda
	ResultSelector  *expr.Lambda
}

// NewGroupBy handles GroupBy(source, key[, element][, result]).
func NewGroupBy(info CallInfo) (Node, error) {
	key, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	n := &GroupByNode{resultBase: resultBase{base: info.base()}, KeySelector: key}
	for i := 1; i < len(info.Args); i++ {
		lam, ok := info.Args[i].(*expr.Lambda)
		if !ok {
			return nil, fmt.Errorf("GroupBy: argument %d must be a lambda, got %s", i+1, info.Args[i].Kind())
		}
		switch {
		case len(lam.Params) == 1 && n.ElementSelector == nil && n.ResultSelector == nil:
			n.ElementSelector = lam
		case len(lam.Params) == 2 && n.ResultSelector == nil:
			n.ResultSelector = lam
		default:
			return nil, fmt.Errorf("GroupBy: unexpected selector %s", expr.Format(lam))
		}
	}
	return n, nil
}

func (n *GroupByNode) operator(ctx *Context) (model.ResultOperator, error) {
	key, err := ResolveLambda(n.source, n.KeySelector, ctx)
	if err != nil {
		return nil, err
	}
	var elem expr.Expression
	if n.ElementSelector != nil {
		elem, err = ResolveLambda(n.source, n.ElementSelector, ctx)
	} else {
		elem, err = n.source.Resolve(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &model.GroupResultOperator{ItemName: n.ident, KeySelector: key, ElementSelector: elem}, nil
}

func (n *GroupByNode) Resolve(ctx *Context) (expr.Expression, error) {
	if n.ResultSelector == nil {
		return n.resultBase.Resolve(ctx)
	}
	from, ok := ctx.wraps[n.self()]
	if !ok {
		return nil, fmt.Errorf("GroupBy %q has not been applied", n.ident)
	}
	group := model.NewQuerySourceRef(from)
	return rewrite.Bind(n.ResultSelector, expr.NewMember(group, "Key"), group)
}

func (n *GroupByNode) Apply(b *model.Builder, ctx *Context) error {
	if err := applyResult(n, b, ctx); err != nil {
		return err
	}
	if n.ResultSelector == nil {
		return nil
	}
	from, err := b.Wrap(n.ResultSelector.Params[1].Name)
	if err != nil {
		return err
	}
	ctx.wraps[n.self()] = from
	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}
