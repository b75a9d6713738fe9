package model

import (
	"strings"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// String renders the model in comprehension form, e.g.
//
//	from Person p in people where ([p].Age > 30) select [p].Name => Count()
func (qm *QueryModel) String() string {
	parts := []string{qm.MainFrom.String()}
	for _, c := range qm.BodyClauses {
		parts = append(parts, c.String())
	}
	parts = append(parts, qm.Select.String())
	for _, op := range qm.ResultOperators {
		parts = append(parts, "=> "+op.String())
	}
	return strings.Join(parts, " ")
}

func fromString(it Item, from expr.Expression) string {
	return "from " + typeName(it.Type) + " " + it.Name + " in " + expr.Format(from)
}

func typeName(t *meta.Type) string {
	if t == nil {
		return meta.Any.String()
	}
	return t.String()
}

func (c *MainFromClause) String() string {
	return fromString(c.Item, c.FromExpression)
}

func (c *AdditionalFromClause) String() string {
	return fromString(c.Item, c.FromExpression)
}

func (c *JoinClause) String() string {
	return "join " + typeName(c.Item.Type) + " " + c.Item.Name +
		" in " + expr.Format(c.InnerSequence) +
		" on " + expr.Format(c.OuterKeySelector) +
		" equals " + expr.Format(c.InnerKeySelector)
}

func (c *GroupJoinClause) String() string {
	return c.Join.String() + " into " + typeName(c.Item.Type) + " " + c.Item.Name
}

func (c *WhereClause) String() string {
	return "where " + expr.Format(c.Predicate)
}

func (o *Ordering) String() string {
	return expr.Format(o.Expression) + " " + o.Direction.String()
}

func (c *OrderByClause) String() string {
	parts := make([]string, len(c.Orderings))
	for i, o := range c.Orderings {
		parts[i] = o.String()
	}
	return "orderby " + strings.Join(parts, ", ")
}

func (c *LetClause) String() string {
	return "let " + c.Item.Name + " = " + expr.Format(c.Expression)
}

func (c *SelectClause) String() string {
	return "select " + expr.Format(c.Selector)
}
