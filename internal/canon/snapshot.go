package canon

import (
	"fmt"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/model"
)

// SnapshotVersion is the version of the snapshot layout.
const SnapshotVersion = "1"

// Snapshot encodes a query model as a canonical Object:
//
//	{
//	  "version": "1",
//	  "model": "from Person p in people ... select [p]",
//	  "main_from": {"name": "p", "type": "Person", "source": "people"},
//	  "body": [{"kind": "where", "text": "where ([p].Age > 30)"}],
//	  "select": "[p]",
//	  "result_operators": ["Count()"],
//	  "result_type": "int",
//	  "sub_queries": [<snapshot>, ...]
//	}
//
// sub_queries is present only when subQueries is non-empty.
func Snapshot(qm *model.QueryModel, subQueries ...*model.QueryModel) (Object, error) {
	rt, err := qm.ResultType()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	body := make(Array, len(qm.BodyClauses))
	for i, c := range qm.BodyClauses {
		body[i] = Object{
			"kind": String(ClauseKind(c)),
			"text": String(c.String()),
		}
	}
	ops := make([]string, len(qm.ResultOperators))
	for i, op := range qm.ResultOperators {
		ops[i] = op.String()
	}

	snap := Object{
		"version": String(SnapshotVersion),
		"model":   String(qm.String()),
		"main_from": Object{
			"name":   String(qm.MainFrom.Item.Name),
			"type":   String(qm.MainFrom.Item.Type.String()),
			"source": String(expr.Format(qm.MainFrom.FromExpression)),
		},
		"body":             body,
		"select":           String(expr.Format(qm.Select.Selector)),
		"result_operators": Strings(ops...),
		"result_type":      String(rt.String()),
	}
	if len(subQueries) > 0 {
		subs := make(Array, len(subQueries))
		for i, sq := range subQueries {
			s, err := Snapshot(sq)
			if err != nil {
				return nil, fmt.Errorf("sub-query %d: %w", i, err)
			}
			subs[i] = s
		}
		snap["sub_queries"] = subs
	}
	return snap, nil
}

// ClauseKind names a body clause variant.
func ClauseKind(c model.BodyClause) string {
	switch c.(type) {
	case *model.AdditionalFromClause:
		return "from"
	case *model.JoinClause:
		return "join"
	case *model.GroupJoinClause:
		return "group_join"
	case *model.WhereClause:
		return "where"
	case *model.OrderByClause:
		return "orderby"
	case *model.LetClause:
		return "let"
	}
	return fmt.Sprintf("%T", c)
}

// ModelFingerprint hashes a model snapshot.
func ModelFingerprint(snap Object) (string, error) {
	return Fingerprint(DomainModel, snap)
}
