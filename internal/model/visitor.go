package model

// Visitor receives the parts of a model in order from QueryModel.Accept.
//
// Embed NopVisitor to implement only the methods of interest. Traversal is
// driven by Accept, so overriding one method never skips the others.
type Visitor interface {
	VisitQueryModel(qm *QueryModel)
	VisitMainFromClause(c *MainFromClause, qm *QueryModel)
	VisitAdditionalFromClause(c *AdditionalFromClause, qm *QueryModel, index int)
	VisitJoinClause(c *JoinClause, qm *QueryModel, index int)
	VisitGroupJoinClause(c *GroupJoinClause, qm *QueryModel, index int)
	VisitWhereClause(c *WhereClause, qm *QueryModel, index int)
	VisitOrderByClause(c *OrderByClause, qm *QueryModel, index int)
	VisitOrdering(o *Ordering, qm *QueryModel, c *OrderByClause, index int)
	VisitLetClause(c *LetClause, qm *QueryModel, index int)
	VisitSelectClause(c *SelectClause, qm *QueryModel)
	VisitResultOperator(op ResultOperator, qm *QueryModel, index int)
}

// NopVisitor implements Visitor with empty methods.
type NopVisitor struct{}

func (NopVisitor) VisitQueryModel(*QueryModel)                                       {}
func (NopVisitor) VisitMainFromClause(*MainFromClause, *QueryModel)                  {}
func (NopVisitor) VisitAdditionalFromClause(*AdditionalFromClause, *QueryModel, int) {}
func (NopVisitor) VisitJoinClause(*JoinClause, *QueryModel, int)                     {}
func (NopVisitor) VisitGroupJoinClause(*GroupJoinClause, *QueryModel, int)           {}
func (NopVisitor) VisitWhereClause(*WhereClause, *QueryModel, int)                   {}
func (NopVisitor) VisitOrderByClause(*OrderByClause, *QueryModel, int)               {}
func (NopVisitor) VisitOrdering(*Ordering, *QueryModel, *OrderByClause, int)         {}
func (NopVisitor) VisitLetClause(*LetClause, *QueryModel, int)                       {}
func (NopVisitor) VisitSelectClause(*SelectClause, *QueryModel)                      {}
func (NopVisitor) VisitResultOperator(ResultOperator, *QueryModel, int)              {}
