package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/ops"
)

var (
	person = meta.NewRecord("Person",
		meta.F("Id", meta.Int),
		meta.F("Name", meta.String),
		meta.F("Age", meta.Int),
	)
	order = meta.NewRecord("Order",
		meta.F("Id", meta.Int),
		meta.F("PersonId", meta.Int),
	)
	people = expr.NewParameter("people", meta.SeqOf(person))
	orders = expr.NewParameter("orders", meta.SeqOf(order))
)

// info describes a call of m on src, whose output items are named ident.
func info(m *meta.Method, src Node, ident string, args ...expr.Expression) CallInfo {
	all := append([]expr.Expression{people}, args...)
	return CallInfo{Call: expr.NewCall(m, all...), Source: src, Args: args, Identifier: ident}
}

func must(t *testing.T, n Node, err error) Node {
	t.Helper()
	require.NoError(t, err)
	return n
}

// apply runs the chain ending at tip root to tip.
func apply(t *testing.T, tip Node) (*model.QueryModel, error) {
	t.Helper()
	var chain []Node
	for n := tip; n != nil; n = n.Source() {
		chain = append(chain, n)
	}
	b := model.NewBuilder()
	ctx := NewContext(nil)
	for i := len(chain) - 1; i >= 0; i-- {
		if err := chain[i].Apply(b, ctx); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func build(t *testing.T, tip Node) string {
	t.Helper()
	qm, err := apply(t, tip)
	require.NoError(t, err)
	return qm.String()
}

func personLambda(name string, body func(p *expr.Parameter) expr.Expression) *expr.Lambda {
	p := expr.NewParameter(name, person)
	return expr.NewLambda(body(p), p)
}

func ageOver(n int) func(*expr.Parameter) expr.Expression {
	return func(p *expr.Parameter) expr.Expression {
		return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"), expr.NewConstant(n, nil))
	}
}

func TestWhereSelect(t *testing.T) {
	main := NewMainSource(people, "p")
	where := must(t, NewWhere(info(ops.Where.Instantiate(person), main, "p",
		personLambda("p", ageOver(30)))))
	sel := must(t, NewSelect(info(ops.Select.Instantiate(person, meta.String), where, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Name") }))))

	assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p].Name", build(t, sel))
}

func TestClauseAfterResultOperatorWraps(t *testing.T) {
	main := NewMainSource(people, "x")
	sel := must(t, NewSelect(info(ops.Select.Instantiate(person, person), main, "x",
		personLambda("x", func(p *expr.Parameter) expr.Expression { return p }))))
	distinct := must(t, sequence(model.Distinct)(info(ops.Distinct.Instantiate(person), sel, "x")))
	where := must(t, NewWhere(info(ops.Where.Instantiate(person), distinct, "_1",
		personLambda("x", func(p *expr.Parameter) expr.Expression {
			return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Id"), expr.NewConstant(0, nil))
		}))))

	qm, err := apply(t, where)
	require.NoError(t, err)
	assert.Equal(t,
		"from Person x in {from Person x in people select [x] => Distinct()} where ([x].Id > 0) select [x]",
		qm.String())

	sub, ok := qm.MainFrom.FromExpression.(*model.SubQuery)
	require.True(t, ok)
	assert.Len(t, sub.Model.ResultOperators, 1)
	assert.Empty(t, qm.ResultOperators)
	require.NoError(t, qm.Validate())
}

func TestResultOperatorsChainWithoutWrapping(t *testing.T) {
	main := NewMainSource(people, "p")
	take := must(t, paging(model.Take)(info(ops.Take.Instantiate(person), main, "_1", expr.NewConstant(5, nil))))
	count := must(t, NewCount(info(ops.Count.Instantiate(person), take, "_2")))

	assert.Equal(t, "from Person p in people select [p] => Take(5) => Count()", build(t, count))
}

func TestPredicateBecomesWhereClause(t *testing.T) {
	main := NewMainSource(people, "p")
	count := must(t, NewCount(info(ops.CountPredicate.Instantiate(person), main, "_1",
		personLambda("p", ageOver(30)))))

	assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p] => Count()", build(t, count))
}

func TestSelectorAfterResultOperatorWraps(t *testing.T) {
	main := NewMainSource(people, "p")
	take := must(t, paging(model.Take)(info(ops.Take.Instantiate(person), main, "p", expr.NewConstant(5, nil))))
	sum := must(t, scalar(model.Sum)(info(ops.SumSelector.Instantiate(person, meta.Int), take, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }))))

	assert.Equal(t,
		"from Person p in {from Person p in people select [p] => Take(5)} select [p].Age => Sum()",
		build(t, sum))
}

func TestAllKeepsPredicateOnOperator(t *testing.T) {
	main := NewMainSource(people, "p")
	all := must(t, NewAll(info(ops.All.Instantiate(person), main, "_1", personLambda("p", ageOver(17)))))

	assert.Equal(t, "from Person p in people select [p] => All(([p].Age > 17))", build(t, all))
}

func TestSelectManyWithTransparentIdentifier(t *testing.T) {
	a := expr.NewParameter("a", person)
	b := expr.NewParameter("b", order)
	shape := expr.NewRecord(expr.Init("a", a), expr.Init("b", b))

	main := NewMainSource(people, "a")
	many := must(t, NewSelectMany(info(ops.SelectManyResult.Instantiate(person, order, shape.Type()), main, "t",
		expr.NewLambda(orders, a),
		expr.NewLambda(shape, a, b))))

	tp := expr.NewParameter("t", shape.Type())
	where := must(t, NewWhere(info(ops.Where.Instantiate(shape.Type()), many, "_1",
		expr.NewLambda(expr.NewBinary(expr.OpEq,
			expr.NewMember(expr.NewMember(tp, "a"), "Id"),
			expr.NewMember(expr.NewMember(tp, "b"), "PersonId")), tp))))

	assert.Equal(t,
		"from Person a in people from Order b in orders where ([a].Id == [b].PersonId) select new {a = [a], b = [b]}",
		build(t, where))
}

func TestJoin(t *testing.T) {
	p := expr.NewParameter("p", person)
	o := expr.NewParameter("o", order)
	result := expr.NewRecord(expr.Init("Name", expr.NewMember(p, "Name")), expr.Init("Order", expr.NewMember(o, "Id")))

	main := NewMainSource(people, "p")
	join := must(t, NewJoin(info(ops.Join.Instantiate(person, order, meta.Int, result.Type()), main, "_1",
		orders,
		expr.NewLambda(expr.NewMember(p, "Id"), p),
		expr.NewLambda(expr.NewMember(o, "PersonId"), o),
		expr.NewLambda(result, p, o))))

	qm, err := apply(t, join)
	require.NoError(t, err)
	assert.Equal(t,
		"from Person p in people join Order o in orders on [p].Id equals [o].PersonId "+
			"select new {Name = [p].Name, Order = [o].Id}",
		qm.String())
	require.NoError(t, qm.Validate())
}

func TestGroupJoin(t *testing.T) {
	p := expr.NewParameter("p", person)
	o := expr.NewParameter("o", order)
	os := expr.NewParameter("os", meta.SeqOf(order))
	result := expr.NewRecord(expr.Init("P", p), expr.Init("Orders", os))

	main := NewMainSource(people, "p")
	gj := must(t, NewGroupJoin(info(ops.GroupJoin.Instantiate(person, order, meta.Int, result.Type()), main, "_1",
		orders,
		expr.NewLambda(expr.NewMember(p, "Id"), p),
		expr.NewLambda(expr.NewMember(o, "PersonId"), o),
		expr.NewLambda(result, p, os))))

	assert.Equal(t,
		"from Person p in people join Order o in orders on [p].Id equals [o].PersonId into Seq<Order> os "+
			"select new {P = [p], Orders = [os]}",
		build(t, gj))
}

func TestOrderings(t *testing.T) {
	main := NewMainSource(people, "p")
	orderBy := must(t, NewOrderBy(info(ops.OrderBy.Instantiate(person, meta.Int), main, "p",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }))))
	thenBy := must(t, NewThenByDescending(info(ops.ThenByDescending.Instantiate(person, meta.String), orderBy, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Name") }))))

	assert.Equal(t, "from Person p in people orderby [p].Age asc, [p].Name desc select [p]", build(t, thenBy))
}

func TestThenByWithoutOrderBy(t *testing.T) {
	main := NewMainSource(people, "p")
	thenBy := must(t, NewThenBy(info(ops.ThenBy.Instantiate(person, meta.Int), main, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }))))

	_, err := apply(t, thenBy)
	require.ErrorIs(t, err, ErrThenByWithoutOrderBy)
}

func TestLet(t *testing.T) {
	p := expr.NewParameter("p", person)
	n := expr.NewParameter("n", meta.String)
	shape := expr.NewRecord(expr.Init("p", p), expr.Init("n", n))

	main := NewMainSource(people, "p")
	let := must(t, NewLet(info(ops.Let.Instantiate(person, meta.String, shape.Type()), main, "t",
		expr.NewLambda(expr.NewMember(p, "Name"), p),
		expr.NewLambda(shape, p, n))))

	tp := expr.NewParameter("t", shape.Type())
	sel := must(t, NewSelect(info(ops.Select.Instantiate(shape.Type(), meta.String), let, "_1",
		expr.NewLambda(expr.NewMember(tp, "n"), tp))))

	assert.Equal(t, "from Person p in people let n = [p].Name select [n]", build(t, sel))
}

func TestGroupByWithResultSelector(t *testing.T) {
	k := expr.NewParameter("k", meta.Int)
	g := expr.NewParameter("g", meta.SeqOf(person))
	result := expr.NewRecord(expr.Init("Age", k), expr.Init("Group", g))

	main := NewMainSource(people, "p")
	group := must(t, NewGroupBy(info(ops.GroupByResult.Instantiate(person, meta.Int, result.Type()), main, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }),
		expr.NewLambda(result, k, g))))

	qm, err := apply(t, group)
	require.NoError(t, err)
	assert.Equal(t,
		"from Grouping<int, Person> g in {from Person p in people select [p] => GroupBy([p].Age, [p])} "+
			"select new {Age = [g].Key, Group = [g]}",
		qm.String())
	assert.Empty(t, qm.ResultOperators)
}

func TestGroupByElement(t *testing.T) {
	main := NewMainSource(people, "p")
	group := must(t, NewGroupBy(info(ops.GroupByElement.Instantiate(person, meta.Int, meta.String), main, "_1",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }),
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Name") }))))

	qm, err := apply(t, group)
	require.NoError(t, err)
	assert.Equal(t, "from Person p in people select [p] => GroupBy([p].Age, [p].Name)", qm.String())

	rt, err := qm.ResultType()
	require.NoError(t, err)
	assert.Equal(t, "Seq<Grouping<int, string>>", rt.String())
}

func TestAggregateBindsItemOnly(t *testing.T) {
	main := NewMainSource(people, "p")
	sel := must(t, NewSelect(info(ops.Select.Instantiate(person, meta.Int), main, "x",
		personLambda("p", func(p *expr.Parameter) expr.Expression { return expr.NewMember(p, "Age") }))))

	acc := expr.NewParameter("acc", meta.Int)
	x := expr.NewParameter("x", meta.Int)
	agg := must(t, NewAggregate(info(ops.Aggregate.Instantiate(meta.Int), sel, "_1",
		expr.NewLambda(expr.NewBinary(expr.OpAdd, acc, x), acc, x))))

	assert.Equal(t, "from Person p in people select [p].Age => Aggregate(acc => (acc + [p].Age))", build(t, agg))
}

func TestCastUsesTypeArgument(t *testing.T) {
	main := NewMainSource(people, "p")
	ofType := must(t, cast(true)(info(ops.OfType.Instantiate(order), main, "_1")))

	qm, err := apply(t, ofType)
	require.NoError(t, err)
	assert.Equal(t, "from Person p in people select [p] => OfType<Order>()", qm.String())
}

func TestFactoryArgumentErrors(t *testing.T) {
	main := NewMainSource(people, "p")

	_, err := NewWhere(info(ops.Where.Instantiate(person), main, "_1", expr.NewConstant(true, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a lambda")

	_, err = NewSelect(info(ops.Select.Instantiate(person, person), main, "_1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument 1")

	two := expr.NewLambda(expr.NewConstant(true, nil), expr.NewParameter("a", person), expr.NewParameter("b", person))
	_, err = NewWhere(info(ops.Where.Instantiate(person), main, "_1", two))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must take 1 parameters")
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, m := range []*meta.Method{
		ops.Where.Instantiate(person),
		ops.SelectManyResult.Instantiate(person, order, person),
		ops.GroupByElementResult.Instantiate(person, meta.Int, meta.String, meta.String),
		ops.AggregateSeed.Instantiate(person, meta.Int),
		ops.OfType.Instantiate(order),
	} {
		ok, err := r.IsRegistered(m)
		require.NoError(t, err)
		assert.True(t, ok, m.String())
	}

	ints := ops.ListOf(meta.Int)
	for _, name := range []string{"Contains", "Count"} {
		members := ints.MethodsNamed(name)
		require.Len(t, members, 1)
		ok, err := r.IsRegistered(members[0])
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	ok, err := r.IsRegistered(ops.StartsWith)
	require.NoError(t, err)
	assert.False(t, ok)
}
