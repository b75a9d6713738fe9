// Package testutil holds fixtures shared by package tests: the Person and
// Order record schemas used throughout, free-variable sources over them,
// a deterministic clock and a sequential id generator.
package testutil

import (
	"github.com/roach88/relinq/internal/chain"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
)

// Person is the record {Id: int, Name: string, Age: int}.
var Person = meta.NewRecord("Person",
	meta.F("Id", meta.Int),
	meta.F("Name", meta.String),
	meta.F("Age", meta.Int),
)

// Order is the record {Id: int, PersonId: int, Amount: float}.
var Order = meta.NewRecord("Order",
	meta.F("Id", meta.Int),
	meta.F("PersonId", meta.Int),
	meta.F("Amount", meta.Float),
)

// People starts a chain at the free variable people: Seq<Person>.
func People() *chain.Query { return chain.Source("people", Person) }

// Orders starts a chain at the free variable orders: Seq<Order>.
func Orders() *chain.Query { return chain.Source("orders", Order) }

// Gt builds (target.field > n).
func Gt(target expr.Expression, field string, n int) expr.Expression {
	return expr.NewBinary(expr.OpGt, expr.NewMember(target, field), expr.NewConstant(n, meta.Int))
}

// Eq builds (a == b).
func Eq(a, b expr.Expression) expr.Expression {
	return expr.NewBinary(expr.OpEq, a, b)
}
