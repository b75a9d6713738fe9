package model

import (
	"sync/atomic"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// ClauseID identifies a clause for the lifetime of the process.
type ClauseID uint64

var lastClauseID atomic.Uint64

func newClauseID() ClauseID {
	return ClauseID(lastClauseID.Add(1))
}

// ExprFunc rewrites one expression.
type ExprFunc = func(expr.Expression) (expr.Expression, error)

// Clause is one structural stage of a query model.
type Clause interface {
	ID() ClauseID
	TransformExpressions(fn ExprFunc) error
	String() string
}

// BodyClause is a clause that may appear in QueryModel.BodyClauses.
type BodyClause interface {
	Clause
	Accept(v Visitor, qm *QueryModel, index int)
	Clone(ctx *CloneContext) BodyClause
}

// QuerySource is a clause that introduces a named item that expressions
// can refer to with a QuerySourceRef.
type QuerySource interface {
	Clause
	SourceItem() Item
}

// Item is the name and type of the values a query source produces.
type Item struct {
	Name string
	Type *meta.Type
}

// clauseID is embedded by every clause. A zero ID is assigned lazily so
// that clauses built as literals are still distinct. Concurrent first
// reads agree on one ID.
type clauseID struct {
	id ClauseID
}

func (c *clauseID) ID() ClauseID {
	p := (*uint64)(&c.id)
	if id := atomic.LoadUint64(p); id != 0 {
		return ClauseID(id)
	}
	atomic.CompareAndSwapUint64(p, 0, uint64(newClauseID()))
	return ClauseID(atomic.LoadUint64(p))
}

// MainFromClause is the origin of a query.
type MainFromClause struct {
	clauseID
	Item           Item
	FromExpression expr.Expression
}

// NewMainFromClause creates a main source clause.
func NewMainFromClause(name string, itemType *meta.Type, from expr.Expression) *MainFromClause {
	return &MainFromClause{
		clauseID:       clauseID{id: newClauseID()},
		Item:           Item{Name: name, Type: itemType},
		FromExpression: from,
	}
}

func (c *MainFromClause) SourceItem() Item { return c.Item }

func (c *MainFromClause) TransformExpressions(fn ExprFunc) error {
	return transform(&c.FromExpression, fn)
}

// Clone copies the clause and registers the copy in ctx.
func (c *MainFromClause) Clone(ctx *CloneContext) *MainFromClause {
	out := NewMainFromClause(c.Item.Name, c.Item.Type, c.FromExpression)
	ctx.Mapping.Add(c, out)
	out.FromExpression = ctx.adjust(c.FromExpression)
	return out
}

// AdditionalFromClause introduces a further source whose items are
// combined with every item produced so far (SelectMany).
type AdditionalFromClause struct {
	clauseID
	Item           Item
	FromExpression expr.Expression
}

// NewAdditionalFromClause creates an additional source clause.
func NewAdditionalFromClause(name string, itemType *meta.Type, from expr.Expression) *AdditionalFromClause {
	return &AdditionalFromClause{
		clauseID:       clauseID{id: newClauseID()},
		Item:           Item{Name: name, Type: itemType},
		FromExpression: from,
	}
}

func (c *AdditionalFromClause) SourceItem() Item { return c.Item }

func (c *AdditionalFromClause) TransformExpressions(fn ExprFunc) error {
	return transform(&c.FromExpression, fn)
}

func (c *AdditionalFromClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitAdditionalFromClause(c, qm, index)
}

func (c *AdditionalFromClause) Clone(ctx *CloneContext) BodyClause {
	out := NewAdditionalFromClause(c.Item.Name, c.Item.Type, c.FromExpression)
	ctx.Mapping.Add(c, out)
	out.FromExpression = ctx.adjust(c.FromExpression)
	return out
}

// JoinClause is an inner equi-join. InnerKeySelector refers to the join
// clause itself; OuterKeySelector refers to earlier sources.
type JoinClause struct {
	clauseID
	Item             Item
	InnerSequence    expr.Expression
	OuterKeySelector expr.Expression
	InnerKeySelector expr.Expression
}

// NewJoinClause creates a join clause.
func NewJoinClause(name string, itemType *meta.Type, inner, outerKey, innerKey expr.Expression) *JoinClause {
	return &JoinClause{
		clauseID:         clauseID{id: newClauseID()},
		Item:             Item{Name: name, Type: itemType},
		InnerSequence:    inner,
		OuterKeySelector: outerKey,
		InnerKeySelector: innerKey,
	}
}

func (c *JoinClause) SourceItem() Item { return c.Item }

func (c *JoinClause) TransformExpressions(fn ExprFunc) error {
	for _, p := range []*expr.Expression{&c.InnerSequence, &c.OuterKeySelector, &c.InnerKeySelector} {
		if err := transform(p, fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *JoinClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitJoinClause(c, qm, index)
}

func (c *JoinClause) Clone(ctx *CloneContext) BodyClause {
	return c.cloneJoin(ctx)
}

func (c *JoinClause) cloneJoin(ctx *CloneContext) *JoinClause {
	out := NewJoinClause(c.Item.Name, c.Item.Type, nil, nil, nil)
	ctx.Mapping.Add(c, out)
	out.InnerSequence = ctx.adjust(c.InnerSequence)
	out.OuterKeySelector = ctx.adjust(c.OuterKeySelector)
	out.InnerKeySelector = ctx.adjust(c.InnerKeySelector)
	return out
}

// GroupJoinClause correlates each outer item with the sequence of matching
// inner items. Its item is that sequence; Join describes the inner side.
type GroupJoinClause struct {
	clauseID
	Item Item
	Join *JoinClause
}

// NewGroupJoinClause creates a group join clause around join.
func NewGroupJoinClause(name string, itemType *meta.Type, join *JoinClause) *GroupJoinClause {
	return &GroupJoinClause{
		clauseID: clauseID{id: newClauseID()},
		Item:     Item{Name: name, Type: itemType},
		Join:     join,
	}
}

func (c *GroupJoinClause) SourceItem() Item { return c.Item }

func (c *GroupJoinClause) TransformExpressions(fn ExprFunc) error {
	return c.Join.TransformExpressions(fn)
}

func (c *GroupJoinClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitGroupJoinClause(c, qm, index)
}

func (c *GroupJoinClause) Clone(ctx *CloneContext) BodyClause {
	out := NewGroupJoinClause(c.Item.Name, c.Item.Type, nil)
	ctx.Mapping.Add(c, out)
	out.Join = c.Join.cloneJoin(ctx)
	return out
}

// WhereClause filters items by a boolean predicate.
type WhereClause struct {
	clauseID
	Predicate expr.Expression
}

// NewWhereClause creates a filter clause.
func NewWhereClause(predicate expr.Expression) *WhereClause {
	return &WhereClause{clauseID: clauseID{id: newClauseID()}, Predicate: predicate}
}

func (c *WhereClause) TransformExpressions(fn ExprFunc) error {
	return transform(&c.Predicate, fn)
}

func (c *WhereClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitWhereClause(c, qm, index)
}

func (c *WhereClause) Clone(ctx *CloneContext) BodyClause {
	return NewWhereClause(ctx.adjust(c.Predicate))
}

// OrderingDirection is the sort direction of one Ordering.
type OrderingDirection int

const (
	Asc OrderingDirection = iota
	Desc
)

func (d OrderingDirection) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Ordering is one sort key of an OrderByClause.
type Ordering struct {
	Expression expr.Expression
	Direction  OrderingDirection
}

// OrderByClause sorts items by its orderings, most significant first.
// ThenBy operators extend the last OrderByClause.
type OrderByClause struct {
	clauseID
	Orderings []*Ordering
}

// NewOrderByClause creates an ordering clause.
func NewOrderByClause(orderings ...*Ordering) *OrderByClause {
	return &OrderByClause{clauseID: clauseID{id: newClauseID()}, Orderings: orderings}
}

func (c *OrderByClause) TransformExpressions(fn ExprFunc) error {
	for _, o := range c.Orderings {
		if err := transform(&o.Expression, fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *OrderByClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitOrderByClause(c, qm, index)
	for i, o := range c.Orderings {
		v.VisitOrdering(o, qm, c, i)
	}
}

func (c *OrderByClause) Clone(ctx *CloneContext) BodyClause {
	out := NewOrderByClause()
	for _, o := range c.Orderings {
		out.Orderings = append(out.Orderings, &Ordering{
			Expression: ctx.adjust(o.Expression),
			Direction:  o.Direction,
		})
	}
	return out
}

// LetClause binds a computed value that later clauses can refer to.
type LetClause struct {
	clauseID
	Item       Item
	Expression expr.Expression
}

// NewLetClause creates a computed-value clause.
func NewLetClause(name string, value expr.Expression) *LetClause {
	return &LetClause{
		clauseID:   clauseID{id: newClauseID()},
		Item:       Item{Name: name, Type: value.Type()},
		Expression: value,
	}
}

func (c *LetClause) SourceItem() Item { return c.Item }

func (c *LetClause) TransformExpressions(fn ExprFunc) error {
	return transform(&c.Expression, fn)
}

func (c *LetClause) Accept(v Visitor, qm *QueryModel, index int) {
	v.VisitLetClause(c, qm, index)
}

func (c *LetClause) Clone(ctx *CloneContext) BodyClause {
	out := &LetClause{clauseID: clauseID{id: newClauseID()}, Item: c.Item}
	ctx.Mapping.Add(c, out)
	out.Expression = ctx.adjust(c.Expression)
	return out
}

// SelectClause projects each item to the query's output.
type SelectClause struct {
	clauseID
	Selector expr.Expression
}

// NewSelectClause creates a projection clause.
func NewSelectClause(selector expr.Expression) *SelectClause {
	return &SelectClause{clauseID: clauseID{id: newClauseID()}, Selector: selector}
}

func (c *SelectClause) TransformExpressions(fn ExprFunc) error {
	return transform(&c.Selector, fn)
}

// OutputInfo describes the sequence the clause produces.
func (c *SelectClause) OutputInfo() DataInfo {
	return DataInfo{Kind: Sequence, Type: meta.SeqOf(c.Selector.Type())}
}

// Clone copies the clause, rewriting references through ctx.
func (c *SelectClause) Clone(ctx *CloneContext) *SelectClause {
	return NewSelectClause(ctx.adjust(c.Selector))
}

func transform(p *expr.Expression, fn ExprFunc) error {
	if *p == nil {
		return nil
	}
	out, err := fn(*p)
	if err != nil {
		return err
	}
	*p = out
	return nil
}
