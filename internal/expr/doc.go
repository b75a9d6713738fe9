// Package expr defines the call-chain AST consumed by the parser.
//
// The tree is produced by an external front end. The parser only ever
// pattern-matches on the variants defined here, never on front-end syntax:
//
//	Call         operator or helper invocation; operators are static and take
//	             their source as Args[0]
//	Constant     literal value
//	Parameter    variable reference (lambda parameter or free variable)
//	Member       member access target.Name
//	Record       record construction new {a = x, b = y}
//	ArrayInit    literal collection [x, y, z]
//	Lambda       (a, b) => body
//	Binary       arithmetic, comparison and logical operators
//	Unary        !x, -x, Convert(x, T)
//	Conditional  IIF(test, then, else)
//	Extension    nodes defined by other packages (query-source references,
//	             sub-queries)
//
// Expressions are immutable once built. Rewrites rebuild the path from the
// changed node up to the root and share everything else.
package expr
