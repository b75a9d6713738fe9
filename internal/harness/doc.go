// Package harness runs parse scenarios.
//
// A scenario is a YAML file that declares a schema, a query in front-end
// syntax and the expected outcome:
//
//	name: adults_count
//	description: a filter folds into a where clause, Count into a result operator
//	types:
//	  Person: {Id: int, Name: string, Age: int}
//	sources:
//	  people: Person
//	vars:
//	  limit: {type: int, value: 30}
//	query: people.Where(p => p.Age > limit).Count()
//	expect:
//	  model: from Person p in people where ([p].Age > 30) select [p] => Count()
//	  result_type: int
//
// Run compiles the query with package frontend, parses the chain with
// package parser, and encodes the model with package canon. The canonical
// encoding is what golden files hold, so a golden diff is a model change.
package harness
