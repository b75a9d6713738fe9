package model

import (
	"fmt"
	"maps"

	"github.com/roach88/relinq/internal/expr"
)

// QuerySourceMapping maps original query sources to their copies, keyed by
// ClauseID.
type QuerySourceMapping struct {
	entries map[ClauseID]QuerySource
}

// NewQuerySourceMapping creates an empty mapping.
func NewQuerySourceMapping() *QuerySourceMapping {
	return &QuerySourceMapping{entries: make(map[ClauseID]QuerySource)}
}

// Add maps from to to. Panics if from is already mapped.
func (m *QuerySourceMapping) Add(from, to QuerySource) {
	id := from.ID()
	if _, ok := m.entries[id]; ok {
		panic(fmt.Sprintf("model: query source %q (#%d) is already mapped", from.SourceItem().Name, id))
	}
	m.entries[id] = to
}

// Replace maps from to to, overwriting an existing entry.
func (m *QuerySourceMapping) Replace(from, to QuerySource) {
	m.entries[from.ID()] = to
}

// Lookup returns the copy of from.
func (m *QuerySourceMapping) Lookup(from QuerySource) (QuerySource, bool) {
	to, ok := m.entries[from.ID()]
	return to, ok
}

// Len returns the number of entries.
func (m *QuerySourceMapping) Len() int { return len(m.entries) }

// Copy returns an independent mapping with the same entries.
func (m *QuerySourceMapping) Copy() *QuerySourceMapping {
	return &QuerySourceMapping{entries: maps.Clone(m.entries)}
}

// CloneContext carries the mapping built while a model is cloned.
type CloneContext struct {
	Mapping *QuerySourceMapping

	// pending holds the sources of the models being cloned. A reference
	// to one of them that is not yet mapped is a forward reference.
	pending map[ClauseID]bool

	// outer holds the sources of enclosing models the caller allows
	// references to. They are kept as they are.
	outer map[ClauseID]bool
}

// adjust rewrites references in e through the mapping. Any other reference
// must point at an allowed outer source. Nested models are cloned with
// their own mapping, seeded with a copy of the current one.
func (ctx *CloneContext) adjust(e expr.Expression) expr.Expression {
	if e == nil {
		return nil
	}
	out, err := expr.Transform(e, func(n expr.Expression) (expr.Expression, error) {
		switch x := n.(type) {
		case *QuerySourceRef:
			if to, ok := ctx.Mapping.Lookup(x.Source); ok {
				return NewQuerySourceRef(to), nil
			}
			if ctx.pending[x.Source.ID()] {
				panic(&DanglingReferenceError{
					Source: x.Source.SourceItem().Name,
					Expr:   expr.Format(e),
					Reason: "forward reference during clone",
				})
			}
			if !ctx.outer[x.Source.ID()] {
				panic(&DanglingReferenceError{
					Source: x.Source.SourceItem().Name,
					Expr:   expr.Format(e),
					Reason: "reference outside the cloned model",
				})
			}
			return x, nil
		case *SubQuery:
			return NewSubQuery(x.Model.cloneWith(ctx.Mapping.Copy(), ctx.pending, ctx.outer)), nil
		}
		return n, nil
	})
	if err != nil {
		panic(fmt.Sprintf("model: clone: %v", err))
	}
	return out
}

// Clone returns a deep copy of qm whose references point at the copy's
// own clauses. A reference to a source qm does not declare panics with
// *DanglingReferenceError; use CloneInScope for nested models.
func (qm *QueryModel) Clone() *QueryModel {
	return qm.CloneWith(NewQuerySourceMapping())
}

// CloneWith clones qm, recording old→new sources in mapping. Entries
// already in mapping are applied to references, which lets callers remap
// sources of enclosing models.
func (qm *QueryModel) CloneWith(mapping *QuerySourceMapping) *QueryModel {
	return qm.cloneWith(mapping, nil, nil)
}

// CloneInScope clones qm, keeping references to the given sources of
// enclosing models unchanged.
func (qm *QueryModel) CloneInScope(outer ...QuerySource) *QueryModel {
	allowed := make(map[ClauseID]bool, len(outer))
	for _, s := range outer {
		allowed[s.ID()] = true
	}
	return qm.cloneWith(NewQuerySourceMapping(), nil, allowed)
}

func (qm *QueryModel) cloneWith(mapping *QuerySourceMapping, enclosing, outer map[ClauseID]bool) *QueryModel {
	pending := maps.Clone(enclosing)
	if pending == nil {
		pending = make(map[ClauseID]bool)
	}
	for _, s := range qm.Sources() {
		pending[s.ID()] = true
	}
	ctx := &CloneContext{Mapping: mapping, pending: pending, outer: outer}

	out := &QueryModel{MainFrom: qm.MainFrom.Clone(ctx)}
	for _, c := range qm.BodyClauses {
		out.BodyClauses = append(out.BodyClauses, c.Clone(ctx))
	}
	out.Select = qm.Select.Clone(ctx)
	for _, op := range qm.ResultOperators {
		out.ResultOperators = append(out.ResultOperators, op.Clone(ctx))
	}
	return out
}

// OuterReferences returns the sources referenced in qm or its nested
// models that none of them declare, in order of first occurrence. For a
// sub-query these are the enclosing sources it depends on.
func (qm *QueryModel) OuterReferences() []QuerySource {
	declared := make(map[ClauseID]bool)
	seen := make(map[ClauseID]bool)
	var refs []QuerySource
	var visit func(m *QueryModel)
	visit = func(m *QueryModel) {
		for _, s := range m.Sources() {
			declared[s.ID()] = true
		}
		for _, e := range m.Expressions() {
			expr.Inspect(e, func(n expr.Expression) bool {
				switch x := n.(type) {
				case *QuerySourceRef:
					if !seen[x.Source.ID()] {
						seen[x.Source.ID()] = true
						refs = append(refs, x.Source)
					}
				case *SubQuery:
					visit(x.Model)
				}
				return true
			})
		}
	}
	visit(qm)

	var out []QuerySource
	for _, s := range refs {
		if !declared[s.ID()] {
			out = append(out, s)
		}
	}
	return out
}
