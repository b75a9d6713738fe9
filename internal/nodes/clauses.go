package nodes

import (
	"errors"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/rewrite"
)

// WhereNode adds a filter clause.
type WhereNode struct {
	base
	Predicate *expr.Lambda
}

// NewWhere handles Where(source, predicate).
func NewWhere(info CallInfo) (Node, error) {
	pred, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	return &WhereNode{base: info.base(), Predicate: pred}, nil
}

func (n *WhereNode) Resolve(ctx *Context) (expr.Expression, error) {
	return n.source.Resolve(ctx)
}

func (n *WhereNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	pred, err := ResolveLambda(n.source, n.Predicate, ctx)
	if err != nil {
		return err
	}
	b.AddBodyClause(model.NewWhereClause(pred))
	return nil
}

// SelectNode replaces the select clause.
type SelectNode struct {
	base
	Selector *expr.Lambda
}

// NewSelect handles Select(source, selector).
func NewSelect(info CallInfo) (Node, error) {
	sel, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	return &SelectNode{base: info.base(), Selector: sel}, nil
}

func (n *SelectNode) Resolve(ctx *Context) (expr.Expression, error) {
	return ResolveLambda(n.source, n.Selector, ctx)
}

func (n *SelectNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}

// SelectManyNode adds an additional from clause. With a result selector
// the select clause becomes the resolved result selector; without one it
// selects the additional source's items.
type SelectManyNode struct {
	base
	CollectionSelector *expr.Lambda
	ResultSelector     *expr.Lambda
}

// NewSelectMany handles SelectMany(source, collectionSelector[, resultSelector]).
func NewSelectMany(info CallInfo) (Node, error) {
	coll, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	n := &SelectManyNode{base: info.base(), CollectionSelector: coll}
	if len(info.Args) > 1 {
		if n.ResultSelector, err = info.Lambda(1, 2); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *SelectManyNode) itemName() string {
	if n.ResultSelector != nil {
		return n.ResultSelector.Params[1].Name
	}
	return n.ident
}

func (n *SelectManyNode) Resolve(ctx *Context) (expr.Expression, error) {
	from, err := ctx.Clause(n)
	if err != nil {
		return nil, err
	}
	if n.ResultSelector == nil {
		return model.NewQuerySourceRef(from), nil
	}
	return resolveWith(n.source, n.ResultSelector, from, ctx)
}

func (n *SelectManyNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	coll, err := ResolveLambda(n.source, n.CollectionSelector, ctx)
	if err != nil {
		return err
	}
	from := model.NewAdditionalFromClause(n.itemName(), elementType(coll.Type()), coll)
	b.AddBodyClause(from)
	ctx.AddClause(n, from)

	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}

// JoinNode adds a join clause and selects the resolved result selector.
type JoinNode struct {
	base
	Inner            expr.Expression
	OuterKeySelector *expr.Lambda
	InnerKeySelector *expr.Lambda
	ResultSelector   *expr.Lambda
}

// NewJoin handles Join(outer, inner, outerKey, innerKey, result).
func NewJoin(info CallInfo) (Node, error) {
	n := &JoinNode{base: info.base()}
	var err error
	if n.Inner, err = info.Arg(0); err != nil {
		return nil, err
	}
	if n.OuterKeySelector, err = info.Lambda(1, 1); err != nil {
		return nil, err
	}
	if n.InnerKeySelector, err = info.Lambda(2, 1); err != nil {
		return nil, err
	}
	if n.ResultSelector, err = info.Lambda(3, 2); err != nil {
		return nil, err
	}
	return n, nil
}

// buildJoin creates the join clause shared by Join and GroupJoin.
func buildJoin(src Node, inner expr.Expression, outerKey, innerKey *expr.Lambda, ctx *Context) (*model.JoinClause, error) {
	outer, err := ResolveLambda(src, outerKey, ctx)
	if err != nil {
		return nil, err
	}
	join := model.NewJoinClause(innerKey.Params[0].Name, elementType(inner.Type()), inner, outer, nil)
	if join.InnerKeySelector, err = rewrite.Bind(innerKey, model.NewQuerySourceRef(join)); err != nil {
		return nil, err
	}
	return join, nil
}

func (n *JoinNode) Resolve(ctx *Context) (expr.Expression, error) {
	join, err := ctx.Clause(n)
	if err != nil {
		return nil, err
	}
	return resolveWith(n.source, n.ResultSelector, join, ctx)
}

func (n *JoinNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	join, err := buildJoin(n.source, n.Inner, n.OuterKeySelector, n.InnerKeySelector, ctx)
	if err != nil {
		return err
	}
	b.AddBodyClause(join)
	ctx.AddClause(n, join)

	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}

// GroupJoinNode adds a group join clause and selects the resolved result
// selector.
type GroupJoinNode struct {
	base
	Inner            expr.Expression
	OuterKeySelector *expr.Lambda
	InnerKeySelector *expr.Lambda
	ResultSelector   *expr.Lambda
}

// NewGroupJoin handles GroupJoin(outer, inner, outerKey, innerKey, result).
func NewGroupJoin(info CallInfo) (Node, error) {
	j, err := NewJoin(info)
	if err != nil {
		return nil, err
	}
	jn := j.(*JoinNode)
	return &GroupJoinNode{
		base:             jn.base,
		Inner:            jn.Inner,
		OuterKeySelector: jn.OuterKeySelector,
		InnerKeySelector: jn.InnerKeySelector,
		ResultSelector:   jn.ResultSelector,
	}, nil
}

func (n *GroupJoinNode) Resolve(ctx *Context) (expr.Expression, error) {
	gj, err := ctx.Clause(n)
	if err != nil {
		return nil, err
	}
	return resolveWith(n.source, n.ResultSelector, gj, ctx)
}

func (n *GroupJoinNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	join, err := buildJoin(n.source, n.Inner, n.OuterKeySelector, n.InnerKeySelector, ctx)
	if err != nil {
		return err
	}
	gj := model.NewGroupJoinClause(n.ResultSelector.Params[1].Name, meta.SeqOf(join.Item.Type), join)
	b.AddBodyClause(gj)
	ctx.AddClause(n, gj)

	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}

// OrderByNode starts a new ordering clause.
type OrderByNode struct {
	base
	KeySelector *expr.Lambda
	Direction   model.OrderingDirection
}

// NewOrderBy handles OrderBy(source, key).
func NewOrderBy(info CallInfo) (Node, error) { return newOrderBy(info, model.Asc) }

// NewOrderByDescending handles OrderByDescending(source, key).
func NewOrderByDescending(info CallInfo) (Node, error) { return newOrderBy(info, model.Desc) }

func newOrderBy(info CallInfo, dir model.OrderingDirection) (Node, error) {
	key, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	return &OrderByNode{base: info.base(), KeySelector: key, Direction: dir}, nil
}

func (n *OrderByNode) Resolve(ctx *Context) (expr.Expression, error) {
	return n.source.Resolve(ctx)
}

func (n *OrderByNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	key, err := ResolveLambda(n.source, n.KeySelector, ctx)
	if err != nil {
		return err
	}
	b.AddBodyClause(model.NewOrderByClause(&model.Ordering{Expression: key, Direction: n.Direction}))
	return nil
}

// ErrThenByWithoutOrderBy is returned when ThenBy does not directly follow
// an ordering.
var ErrThenByWithoutOrderBy = errors.New("ThenBy must follow OrderBy or ThenBy")

// ThenByNode extends the last ordering clause.
type ThenByNode struct {
	base
	KeySelector *expr.Lambda
	Direction   model.OrderingDirection
}

// NewThenBy handles ThenBy(source, key).
func NewThenBy(info CallInfo) (Node, error) { return newThenBy(info, model.Asc) }

// NewThenByDescending handles ThenByDescending(source, key).
func NewThenByDescending(info CallInfo) (Node, error) { return newThenBy(info, model.Desc) }

func newThenBy(info CallInfo, dir model.OrderingDirection) (Node, error) {
	key, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	return &ThenByNode{base: info.base(), KeySelector: key, Direction: dir}, nil
}

func (n *ThenByNode) Resolve(ctx *Context) (expr.Expression, error) {
	return n.source.Resolve(ctx)
}

func (n *ThenByNode) Apply(b *model.Builder, ctx *Context) error {
	if b.HasResultOperators() {
		return ErrThenByWithoutOrderBy
	}
	orderBy, ok := b.LastBodyClause().(*model.OrderByClause)
	if !ok {
		return ErrThenByWithoutOrderBy
	}
	key, err := ResolveLambda(n.source, n.KeySelector, ctx)
	if err != nil {
		return err
	}
	orderBy.Orderings = append(orderBy.Orderings, &model.Ordering{Expression: key, Direction: n.Direction})
	return nil
}

// LetNode adds a computed-value clause and selects the resolved result
// selector, which combines the current item with the computed value.
type LetNode struct {
	base
	Selector       *expr.Lambda
	ResultSelector *expr.Lambda
}

// NewLet handles Let(source, selector, resultSelector).
func NewLet(info CallInfo) (Node, error) {
	sel, err := info.Lambda(0, 1)
	if err != nil {
		return nil, err
	}
	res, err := info.Lambda(1, 2)
	if err != nil {
		return nil, err
	}
	return &LetNode{base: info.base(), Selector: sel, ResultSelector: res}, nil
}

func (n *LetNode) Resolve(ctx *Context) (expr.Expression, error) {
	let, err := ctx.Clause(n)
	if err != nil {
		return nil, err
	}
	return resolveWith(n.source, n.ResultSelector, let, ctx)
}

func (n *LetNode) Apply(b *model.Builder, ctx *Context) error {
	if err := wrapAfter(n.source, b, ctx); err != nil {
		return err
	}
	value, err := ResolveLambda(n.source, n.Selector, ctx)
	if err != nil {
		return err
	}
	let := model.NewLetClause(n.ResultSelector.Params[1].Name, value)
	b.AddBodyClause(let)
	ctx.AddClause(n, let)

	sel, err := n.Resolve(ctx)
	if err != nil {
		return err
	}
	b.SetSelect(model.NewSelectClause(sel))
	return nil
}
