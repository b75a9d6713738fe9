package model

import (
	"errors"
	"fmt"
)

// ErrNoMainSource is returned by Build before Start was called.
var ErrNoMainSource = errors.New("query model has no main source")

// Builder assembles a model root to tip. Start sets the main source and an
// identity select; later steps append clauses and result operators, and
// Wrap nests everything built so far as the source of a new model.
type Builder struct {
	qm *QueryModel
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Start begins a model at from, selecting from's items unchanged.
func (b *Builder) Start(from *MainFromClause) {
	b.qm = New(from, NewSelectClause(NewQuerySourceRef(from)))
}

// Started reports whether Start was called.
func (b *Builder) Started() bool { return b.qm != nil }

// Model returns the model under construction, or nil before Start.
func (b *Builder) Model() *QueryModel { return b.qm }

// AddBodyClause appends a body clause.
func (b *Builder) AddBodyClause(c BodyClause) {
	b.qm.AddBodyClause(c)
}

// LastBodyClause returns the most recently added body clause, or nil.
func (b *Builder) LastBodyClause() BodyClause {
	if n := len(b.qm.BodyClauses); n > 0 {
		return b.qm.BodyClauses[n-1]
	}
	return nil
}

// SetSelect replaces the select clause.
func (b *Builder) SetSelect(sel *SelectClause) {
	b.qm.SetSelect(sel)
}

// AddResultOperator appends a result operator.
func (b *Builder) AddResultOperator(op ResultOperator) {
	b.qm.AddResultOperator(op)
}

// HasResultOperators reports whether the current model has any result
// operator. Body clauses added after one need a Wrap first.
func (b *Builder) HasResultOperators() bool {
	return len(b.qm.ResultOperators) > 0
}

// Wrap makes the model built so far a sub-query feeding a new main source
// named itemName and returns that source. The model must produce a
// sequence.
func (b *Builder) Wrap(itemName string) (*MainFromClause, error) {
	inner := b.qm
	info, err := inner.OutputInfo()
	if err != nil {
		return nil, err
	}
	if info.Kind != Sequence {
		return nil, fmt.Errorf("cannot use %s result of %q as a query source", info.Kind, inner)
	}
	from := NewMainFromClause(itemName, info.ItemType(), NewSubQuery(inner))
	b.Start(from)
	return from, nil
}

// Build returns the finished model.
func (b *Builder) Build() (*QueryModel, error) {
	if b.qm == nil {
		return nil, ErrNoMainSource
	}
	return b.qm, nil
}
