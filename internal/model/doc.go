// Package model defines the Query Model: the clause-based structure a
// parsed call chain is turned into.
//
// A QueryModel has:
//
//   - exactly one MainFromClause (the query's origin),
//   - an ordered list of body clauses (AdditionalFrom, Join, GroupJoin,
//     Where, OrderBy, Let) in application order,
//   - one SelectClause,
//   - an ordered list of result operators (Count, Distinct, Take, ...).
//
// Expressions inside clauses refer to the clauses producing their values
// through *QuerySourceRef nodes, and embed nested models through *SubQuery
// nodes. Both are expr.Extension nodes. Every clause carries a ClauseID
// that is unique for the process lifetime; QuerySourceMapping is keyed by
// it.
//
// Invariant: every QuerySourceRef inside a model resolves to a clause held
// by that model, or by a model enclosing it through a SubQuery. Violations
// are contract errors. Clone and RemoveBodyClause panic with
// *DanglingReferenceError when they find one; Validate reports the same
// condition as an error. A nested model is cloned on its own with
// CloneInScope, naming the enclosing sources it may refer to.
//
// Models are built by one goroutine and are not safe for concurrent
// mutation.
package model
