package model

import (
	"fmt"
	"maps"

	"github.com/roach88/relinq/internal/expr"
)

// DanglingReferenceError reports a query source reference to a clause the
// model does not hold. Clone and RemoveBodyClause panic with it; Validate
// returns it.
type DanglingReferenceError struct {
	// Source is the item name of the referenced clause.
	Source string

	// Expr is the printed expression holding the reference.
	Expr string

	// Reason describes where the reference was found.
	Reason string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference to [%s] in %s: %s", e.Source, e.Expr, e.Reason)
}

// Validate checks that every query source reference in qm, including those
// in nested models, resolves to a clause declared at or before the
// referencing clause in qm or an enclosing model.
func (qm *QueryModel) Validate() error {
	return qm.validate(nil)
}

func (qm *QueryModel) validate(outer map[ClauseID]bool) error {
	visible := maps.Clone(outer)
	if visible == nil {
		visible = make(map[ClauseID]bool)
	}
	declare := func(c Clause) {
		if s, ok := c.(QuerySource); ok {
			visible[s.ID()] = true
		}
		if gj, ok := c.(*GroupJoinClause); ok {
			visible[gj.Join.ID()] = true
		}
	}
	check := func(c interface{ TransformExpressions(ExprFunc) error }, where string) error {
		return c.TransformExpressions(func(e expr.Expression) (expr.Expression, error) {
			return e, checkRefs(e, visible, where)
		})
	}

	if err := check(qm.MainFrom, "main from clause"); err != nil {
		return err
	}
	declare(qm.MainFrom)
	for i, c := range qm.BodyClauses {
		declare(c)
		if err := check(c, fmt.Sprintf("body clause %d", i)); err != nil {
			return err
		}
	}
	if err := check(qm.Select, "select clause"); err != nil {
		return err
	}
	for i, op := range qm.ResultOperators {
		if err := check(op, fmt.Sprintf("result operator %d (%s)", i, op.Name())); err != nil {
			return err
		}
	}
	return nil
}

func checkRefs(e expr.Expression, visible map[ClauseID]bool, where string) error {
	var err error
	expr.Inspect(e, func(n expr.Expression) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *QuerySourceRef:
			if !visible[x.Source.ID()] {
				err = &DanglingReferenceError{
					Source: x.Source.SourceItem().Name,
					Expr:   expr.Format(e),
					Reason: "not declared before " + where,
				}
			}
		case *SubQuery:
			if nerr := x.Model.validate(visible); nerr != nil {
				err = fmt.Errorf("sub-query in %s: %w", where, nerr)
			}
		}
		return true
	})
	return err
}
