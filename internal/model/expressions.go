package model

import (
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// QuerySourceRef denotes the current item of a query source. It does not
// own the clause it points to.
type QuerySourceRef struct {
	Source QuerySource
}

// NewQuerySourceRef creates a reference to source.
func NewQuerySourceRef(source QuerySource) *QuerySourceRef {
	return &QuerySourceRef{Source: source}
}

func (*QuerySourceRef) Kind() expr.Kind { return expr.KindExtension }

func (r *QuerySourceRef) Type() *meta.Type {
	if t := r.Source.SourceItem().Type; t != nil {
		return t
	}
	return meta.Any
}

func (r *QuerySourceRef) String() string {
	return "[" + r.Source.SourceItem().Name + "]"
}

// VisitChildren returns r: a reference has no child expressions.
func (r *QuerySourceRef) VisitChildren(func(expr.Expression) (expr.Expression, error)) (expr.Expression, error) {
	return r, nil
}

// SubQuery is a scalar or sequence value computed by a nested model. It
// owns the model.
type SubQuery struct {
	Model *QueryModel
}

// NewSubQuery wraps m.
func NewSubQuery(m *QueryModel) *SubQuery {
	return &SubQuery{Model: m}
}

func (*SubQuery) Kind() expr.Kind { return expr.KindExtension }

// Type is the nested model's result type.
func (s *SubQuery) Type() *meta.Type {
	t, err := s.Model.ResultType()
	if err != nil || t == nil {
		return meta.Any
	}
	return t
}

func (s *SubQuery) String() string {
	return "{" + s.Model.String() + "}"
}

// VisitChildren returns s. Generic traversals do not descend into the
// nested model; rewrites that must reach it handle *SubQuery explicitly.
func (s *SubQuery) VisitChildren(func(expr.Expression) (expr.Expression, error)) (expr.Expression, error) {
	return s, nil
}

// RefersTo reports whether e contains a reference to source, including
// inside nested sub-query models.
func RefersTo(e expr.Expression, source QuerySource) bool {
	found := false
	walkRefs(e, func(r *QuerySourceRef) {
		if r.Source.ID() == source.ID() {
			found = true
		}
	})
	return found
}

// walkRefs calls fn for every QuerySourceRef in e, descending into nested
// models.
func walkRefs(e expr.Expression, fn func(*QuerySourceRef)) {
	expr.Inspect(e, func(n expr.Expression) bool {
		switch x := n.(type) {
		case *QuerySourceRef:
			fn(x)
		case *SubQuery:
			for _, ne := range x.Model.Expressions() {
				walkRefs(ne, fn)
			}
		}
		return true
	})
}
