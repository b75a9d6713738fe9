package model

import (
	"fmt"
	"slices"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// QueryModel is a parsed query: a main source, body clauses in
// application order, a select clause and result operators in application
// order.
type QueryModel struct {
	MainFrom        *MainFromClause
	BodyClauses     []BodyClause
	Select          *SelectClause
	ResultOperators []ResultOperator
}

// New creates a model. Both clauses are required.
func New(mainFrom *MainFromClause, sel *SelectClause) *QueryModel {
	if mainFrom == nil || sel == nil {
		panic("model: main from and select clauses are required")
	}
	return &QueryModel{MainFrom: mainFrom, Select: sel}
}

// AddBodyClause appends c.
func (qm *QueryModel) AddBodyClause(c BodyClause) {
	qm.BodyClauses = append(qm.BodyClauses, c)
}

// InsertBodyClause inserts c at index i. Clauses at i and after shift by
// one. Panics if i is out of range.
func (qm *QueryModel) InsertBodyClause(i int, c BodyClause) {
	qm.BodyClauses = slices.Insert(qm.BodyClauses, i, c)
}

// RemoveBodyClause removes and returns the clause at index i. The caller
// must first reconcile references to a removed query source; if any remain
// RemoveBodyClause panics with *DanglingReferenceError and leaves the
// model unchanged.
func (qm *QueryModel) RemoveBodyClause(i int) BodyClause {
	c := qm.BodyClauses[i]
	if src, ok := c.(QuerySource); ok {
		rest := &QueryModel{
			MainFrom:        qm.MainFrom,
			BodyClauses:     slices.Delete(slices.Clone(qm.BodyClauses), i, i+1),
			Select:          qm.Select,
			ResultOperators: qm.ResultOperators,
		}
		for _, e := range rest.Expressions() {
			if RefersTo(e, src) {
				panic(&DanglingReferenceError{
					Source: src.SourceItem().Name,
					Expr:   expr.Format(e),
					Reason: "clause removed while still referenced",
				})
			}
		}
	}
	qm.BodyClauses = slices.Delete(qm.BodyClauses, i, i+1)
	return c
}

// SetSelect replaces the select clause.
func (qm *QueryModel) SetSelect(sel *SelectClause) {
	qm.Select = sel
}

// AddResultOperator appends op.
func (qm *QueryModel) AddResultOperator(op ResultOperator) {
	qm.ResultOperators = append(qm.ResultOperators, op)
}

// Accept walks the model: main from, body clauses in order, select, then
// result operators in order.
func (qm *QueryModel) Accept(v Visitor) {
	v.VisitQueryModel(qm)
	v.VisitMainFromClause(qm.MainFrom, qm)
	for i, c := range qm.BodyClauses {
		c.Accept(v, qm, i)
	}
	v.VisitSelectClause(qm.Select, qm)
	for i, op := range qm.ResultOperators {
		v.VisitResultOperator(op, qm, i)
	}
}

// OutputInfo derives what the model produces: the select clause output
// transformed by each result operator in turn.
func (qm *QueryModel) OutputInfo() (DataInfo, error) {
	info := qm.Select.OutputInfo()
	for _, op := range qm.ResultOperators {
		next, err := op.OutputInfo(info)
		if err != nil {
			return DataInfo{}, fmt.Errorf("result operator %s: %w", op.Name(), err)
		}
		info = next
	}
	return info, nil
}

// ResultType is the type of OutputInfo.
func (qm *QueryModel) ResultType() (*meta.Type, error) {
	info, err := qm.OutputInfo()
	if err != nil {
		return nil, err
	}
	return info.Type, nil
}

// TransformExpressions applies fn to every top-level expression of every
// clause and result operator. It does not descend into sub-queries.
func (qm *QueryModel) TransformExpressions(fn ExprFunc) error {
	if err := qm.MainFrom.TransformExpressions(fn); err != nil {
		return err
	}
	for _, c := range qm.BodyClauses {
		if err := c.TransformExpressions(fn); err != nil {
			return err
		}
	}
	if err := qm.Select.TransformExpressions(fn); err != nil {
		return err
	}
	for _, op := range qm.ResultOperators {
		if err := op.TransformExpressions(fn); err != nil {
			return err
		}
	}
	return nil
}

// Sources returns the query sources declared by the model, in order.
func (qm *QueryModel) Sources() []QuerySource {
	out := []QuerySource{qm.MainFrom}
	for _, c := range qm.BodyClauses {
		switch s := c.(type) {
		case *GroupJoinClause:
			out = append(out, s, s.Join)
		case QuerySource:
			out = append(out, s)
		}
	}
	return out
}

// IsIdentityQuery reports whether the model just returns its main source.
func (qm *QueryModel) IsIdentityQuery() bool {
	if len(qm.BodyClauses) > 0 || len(qm.ResultOperators) > 0 {
		return false
	}
	ref, ok := qm.Select.Selector.(*QuerySourceRef)
	return ok && ref.Source == QuerySource(qm.MainFrom)
}

// Expressions lists every top-level expression of the model in clause
// order. Nested sub-query models are not expanded.
func (qm *QueryModel) Expressions() []expr.Expression {
	var out []expr.Expression
	_ = qm.TransformExpressions(func(e expr.Expression) (expr.Expression, error) {
		out = append(out, e)
		return e, nil
	})
	return out
}
