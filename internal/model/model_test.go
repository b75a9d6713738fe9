package model

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
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

// adults builds: from Person p in people where ([p].Age > 30) select [p].Name
func adults() *QueryModel {
	main := NewMainFromClause("p", person, people)
	p := NewQuerySourceRef(main)
	qm := New(main, NewSelectClause(expr.NewMember(p, "Name")))
	qm.AddBodyClause(NewWhereClause(expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"), expr.NewConstant(30, nil))))
	return qm
}

// personOrders builds a model with a join and an ordering.
func personOrders() *QueryModel {
	main := NewMainFromClause("p", person, people)
	p := NewQuerySourceRef(main)
	join := NewJoinClause("o", order, orders, expr.NewMember(p, "Id"), nil)
	join.InnerKeySelector = expr.NewMember(NewQuerySourceRef(join), "PersonId")
	o := NewQuerySourceRef(join)

	qm := New(main, NewSelectClause(expr.NewRecord(
		expr.Init("Name", expr.NewMember(p, "Name")),
		expr.Init("Order", expr.NewMember(o, "Id")),
	)))
	qm.AddBodyClause(join)
	qm.AddBodyClause(NewOrderByClause(&Ordering{Expression: expr.NewMember(o, "Id"), Direction: Desc}))
	return qm
}

func TestQueryModel_String(t *testing.T) {
	assert.Equal(t,
		"from Person p in people where ([p].Age > 30) select [p].Name",
		adults().String())

	assert.Equal(t,
		"from Person p in people join Order o in orders on [p].Id equals [o].PersonId "+
			"orderby [o].Id desc select new {Name = [p].Name, Order = [o].Id}",
		personOrders().String())
}

func TestQueryModel_ResultType(t *testing.T) {
	tests := []struct {
		name string
		ops  []ResultOperator
		want string
		kind DataKind
	}{
		{"no operators", nil, "Seq<string>", Sequence},
		{"count", []ResultOperator{&CountResultOperator{}}, "int", ScalarValue},
		{"take then count", []ResultOperator{&PagingResultOperator{Kind: Take, Count: expr.NewConstant(5, nil)}, &CountResultOperator{}}, "int", ScalarValue},
		{"first", []ResultOperator{&ChoiceResultOperator{Kind: First}}, "string", SingleValue},
		{"distinct", []ResultOperator{&SequenceResultOperator{Kind: Distinct}}, "Seq<string>", Sequence},
		{"average", []ResultOperator{&ScalarResultOperator{Kind: Average}}, "float", ScalarValue},
		{"max", []ResultOperator{&ScalarResultOperator{Kind: Max}}, "string", SingleValue},
		{"cast", []ResultOperator{&CastResultOperator{Target: meta.Any}}, "Seq<any>", Sequence},
		{"any", []ResultOperator{&AnyResultOperator{}}, "bool", ScalarValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qm := adults()
			for _, op := range tt.ops {
				qm.AddResultOperator(op)
			}
			info, err := qm.OutputInfo()
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Type.String())
			assert.Equal(t, tt.kind, info.Kind)
		})
	}
}

func TestQueryModel_ResultTypeRejectsScalarInput(t *testing.T) {
	qm := adults()
	qm.AddResultOperator(&CountResultOperator{})
	qm.AddResultOperator(&SequenceResultOperator{Kind: Distinct})

	_, err := qm.ResultType()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Distinct requires a sequence input")
}

func TestQueryModel_GroupResultType(t *testing.T) {
	qm := adults()
	p := NewQuerySourceRef(qm.MainFrom)
	qm.SetSelect(NewSelectClause(p))
	qm.AddResultOperator(&GroupResultOperator{
		ItemName:        "g",
		KeySelector:     expr.NewMember(p, "Age"),
		ElementSelector: p,
	})

	rt, err := qm.ResultType()
	require.NoError(t, err)
	assert.Equal(t, "Seq<Grouping<int, Person>>", rt.String())
}

type recordingVisitor struct {
	NopVisitor
	events []string
}

func (v *recordingVisitor) VisitMainFromClause(c *MainFromClause, _ *QueryModel) {
	v.events = append(v.events, "from "+c.Item.Name)
}

func (v *recordingVisitor) VisitJoinClause(c *JoinClause, _ *QueryModel, i int) {
	v.events = append(v.events, fmt.Sprintf("join %s@%d", c.Item.Name, i))
}

func (v *recordingVisitor) VisitOrdering(o *Ordering, _ *QueryModel, _ *OrderByClause, i int) {
	v.events = append(v.events, fmt.Sprintf("ordering %s@%d", o.Direction, i))
}

func (v *recordingVisitor) VisitSelectClause(*SelectClause, *QueryModel) {
	v.events = append(v.events, "select")
}

func (v *recordingVisitor) VisitResultOperator(op ResultOperator, _ *QueryModel, i int) {
	v.events = append(v.events, fmt.Sprintf("%s@%d", op.Name(), i))
}

func TestQueryModel_AcceptOrder(t *testing.T) {
	qm := personOrders()
	qm.AddResultOperator(&SequenceResultOperator{Kind: Distinct})
	qm.AddResultOperator(&CountResultOperator{})

	v := &recordingVisitor{}
	qm.Accept(v)

	assert.Equal(t, []string{
		"from p",
		"join o@0",
		"ordering desc@0",
		"select",
		"Distinct@0",
		"Count@1",
	}, v.events)
}

func TestQueryModel_InsertAndRemoveBodyClause(t *testing.T) {
	qm := adults()
	extra := NewWhereClause(expr.NewConstant(true, nil))
	qm.InsertBodyClause(0, extra)

	require.Len(t, qm.BodyClauses, 2)
	assert.Same(t, extra, qm.BodyClauses[0])

	removed := qm.RemoveBodyClause(0)
	assert.Same(t, extra, removed)
	require.Len(t, qm.BodyClauses, 1)
	assert.IsType(t, &WhereClause{}, qm.BodyClauses[0])
}

func TestQueryModel_RemoveReferencedSourcePanics(t *testing.T) {
	qm := personOrders()
	before := qm.String()

	err := catchDangling(func() { qm.RemoveBodyClause(0) })
	require.NotNil(t, err)
	assert.Equal(t, "o", err.Source)
	assert.Equal(t, before, qm.String(), "model left unchanged")
}

func TestQueryModel_IsIdentityQuery(t *testing.T) {
	main := NewMainFromClause("p", person, people)
	qm := New(main, NewSelectClause(NewQuerySourceRef(main)))
	assert.True(t, qm.IsIdentityQuery())
	assert.False(t, adults().IsIdentityQuery())
}

func TestQueryModel_Sources(t *testing.T) {
	main := NewMainFromClause("c", person, people)
	join := NewJoinClause("o", order, orders, expr.NewMember(NewQuerySourceRef(main), "Id"), nil)
	gj := NewGroupJoinClause("os", meta.SeqOf(order), join)
	qm := New(main, NewSelectClause(NewQuerySourceRef(gj)))
	qm.AddBodyClause(gj)
	qm.AddBodyClause(NewWhereClause(expr.NewConstant(true, nil)))

	var names []string
	for _, s := range qm.Sources() {
		names = append(names, s.SourceItem().Name)
	}
	assert.Equal(t, []string{"c", "os", "o"}, names)
}

func catchDangling(fn func()) (out *DanglingReferenceError) {
	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*DanglingReferenceError); ok {
				out = d
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// allRefs lists the sources referenced anywhere in qm, nested models
// included.
func allRefs(qm *QueryModel) []QuerySource {
	var out []QuerySource
	for _, e := range qm.Expressions() {
		walkRefs(e, func(r *QuerySourceRef) { out = append(out, r.Source) })
	}
	return out
}

func TestValidate(t *testing.T) {
	require.NoError(t, adults().Validate())
	require.NoError(t, personOrders().Validate())

	foreign := NewMainFromClause("x", person, people)
	qm := adults()
	qm.AddBodyClause(NewWhereClause(expr.NewMember(NewQuerySourceRef(foreign), "Age")))

	err := qm.Validate()
	var d *DanglingReferenceError
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "x", d.Source)
	assert.Contains(t, d.Reason, "body clause 1")
}

func TestValidate_SubQuerySeesOuterSources(t *testing.T) {
	outer := adults()
	p := NewQuerySourceRef(outer.MainFrom)

	innerMain := NewMainFromClause("o", order, orders)
	inner := New(innerMain, NewSelectClause(NewQuerySourceRef(innerMain)))
	inner.AddBodyClause(NewWhereClause(expr.NewBinary(expr.OpEq,
		expr.NewMember(NewQuerySourceRef(innerMain), "PersonId"),
		expr.NewMember(p, "Id"))))
	outer.AddBodyClause(NewWhereClause(NewSubQuery(inner)))

	require.NoError(t, outer.Validate())

	// The same nested model on its own refers to an absent clause.
	err := inner.Validate()
	var d *DanglingReferenceError
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "p", d.Source)
}

func TestValidate_ForwardReference(t *testing.T) {
	main := NewMainFromClause("p", person, people)
	later := NewAdditionalFromClause("o", order, orders)
	qm := New(main, NewSelectClause(NewQuerySourceRef(later)))
	qm.AddBodyClause(NewWhereClause(expr.NewMember(NewQuerySourceRef(later), "Id")))
	qm.AddBodyClause(later)

	var d *DanglingReferenceError
	require.ErrorAs(t, qm.Validate(), &d)
	assert.Contains(t, d.Reason, "body clause 0")
}

func TestBuilder_Wrap(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build()
	require.ErrorIs(t, err, ErrNoMainSource)

	main := NewMainFromClause("p", person, people)
	b.Start(main)
	b.AddResultOperator(&SequenceResultOperator{Kind: Distinct})
	require.True(t, b.HasResultOperators())

	from, err := b.Wrap("x")
	require.NoError(t, err)
	assert.Same(t, person, from.Item.Type)
	assert.False(t, b.HasResultOperators())

	b.AddBodyClause(NewWhereClause(expr.NewBinary(expr.OpGt,
		expr.NewMember(NewQuerySourceRef(from), "Id"), expr.NewConstant(0, nil))))

	qm, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t,
		"from Person x in {from Person p in people select [p] => Distinct()} where ([x].Id > 0) select [x]",
		qm.String())
	require.NoError(t, qm.Validate())
}

func TestBuilder_WrapScalarFails(t *testing.T) {
	b := NewBuilder()
	b.Start(NewMainFromClause("p", person, people))
	b.AddResultOperator(&CountResultOperator{})

	_, err := b.Wrap("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scalar")
}

func kinds(qm *QueryModel) []string {
	out := []string{fmt.Sprintf("%T", qm.MainFrom)}
	for _, c := range qm.BodyClauses {
		out = append(out, fmt.Sprintf("%T", c))
	}
	out = append(out, fmt.Sprintf("%T", qm.Select))
	for _, op := range qm.ResultOperators {
		out = append(out, op.String())
	}
	return out
}

func TestClone_Fidelity(t *testing.T) {
	orig := personOrders()
	orig.AddResultOperator(&PagingResultOperator{Kind: Take, Count: expr.NewConstant(3, nil)})

	clone := orig.Clone()

	if diff := cmp.Diff(kinds(orig), kinds(clone)); diff != "" {
		t.Errorf("clause kinds differ (-orig +clone):\n%s", diff)
	}
	assert.Equal(t, orig.String(), clone.String())
	require.NoError(t, clone.Validate())

	origIDs := map[ClauseID]bool{}
	for _, s := range orig.Sources() {
		origIDs[s.ID()] = true
	}
	cloneIDs := map[ClauseID]bool{}
	for _, s := range clone.Sources() {
		cloneIDs[s.ID()] = true
		assert.False(t, origIDs[s.ID()], "clone declares fresh clause ids")
	}
	for _, s := range allRefs(clone) {
		assert.True(t, cloneIDs[s.ID()], "reference to [%s] escapes the clone", s.SourceItem().Name)
	}
}

func TestClone_SubQueryGetsOwnMapping(t *testing.T) {
	outer := adults()
	p := NewQuerySourceRef(outer.MainFrom)
	innerMain := NewMainFromClause("o", order, orders)
	inner := New(innerMain, NewSelectClause(NewQuerySourceRef(innerMain)))
	inner.AddBodyClause(NewWhereClause(expr.NewBinary(expr.OpEq,
		expr.NewMember(NewQuerySourceRef(innerMain), "PersonId"),
		expr.NewMember(p, "Id"))))
	inner.AddResultOperator(&AnyResultOperator{})
	outer.AddBodyClause(NewWhereClause(NewSubQuery(inner)))

	mapping := NewQuerySourceMapping()
	clone := outer.CloneWith(mapping)
	require.NoError(t, clone.Validate())

	clonedSub := clone.BodyClauses[1].(*WhereClause).Predicate.(*SubQuery)
	assert.NotSame(t, inner, clonedSub.Model)
	assert.NotEqual(t, innerMain.ID(), clonedSub.Model.MainFrom.ID())

	// The nested clone's outer reference points at the cloned outer source.
	refs := allRefs(clonedSub.Model)
	var outerRef QuerySource
	for _, r := range refs {
		if r.SourceItem().Name == "p" {
			outerRef = r
		}
	}
	require.NotNil(t, outerRef)
	assert.Equal(t, clone.MainFrom.ID(), outerRef.ID())

	// Nested sources are not recorded in the outer mapping.
	_, ok := mapping.Lookup(innerMain)
	assert.False(t, ok)
	_, ok = mapping.Lookup(outer.MainFrom)
	assert.True(t, ok)
}

func TestClone_KeepsReferencesToEnclosingModelsInScope(t *testing.T) {
	enclosing := NewMainFromClause("p", person, people)
	main := NewMainFromClause("o", order, orders)
	qm := New(main, NewSelectClause(expr.NewMember(NewQuerySourceRef(enclosing), "Id")))

	outer := qm.OuterReferences()
	require.Len(t, outer, 1)
	assert.Same(t, enclosing, outer[0])

	clone := qm.CloneInScope(outer...)
	member := clone.Select.Selector.(*expr.Member)
	ref := member.Target.(*QuerySourceRef)
	assert.Same(t, enclosing, ref.Source)
	assert.NotSame(t, main, clone.MainFrom)
}

func TestClone_ReferenceOutsideModelPanics(t *testing.T) {
	enclosing := NewMainFromClause("p", person, people)
	main := NewMainFromClause("o", order, orders)
	qm := New(main, NewSelectClause(expr.NewMember(NewQuerySourceRef(enclosing), "Id")))

	err := catchDangling(func() { qm.Clone() })
	require.NotNil(t, err)
	assert.Equal(t, "p", err.Source)
	assert.Contains(t, err.Reason, "outside the cloned model")

	// A scope that leaves the reference out still fails.
	other := NewMainFromClause("x", person, people)
	err = catchDangling(func() { qm.CloneInScope(other) })
	require.NotNil(t, err)
	assert.Equal(t, "p", err.Source)
}

func TestClone_ForwardReferencePanics(t *testing.T) {
	main := NewMainFromClause("p", person, people)
	later := NewAdditionalFromClause("o", order, orders)
	qm := New(main, NewSelectClause(NewQuerySourceRef(main)))
	qm.AddBodyClause(NewWhereClause(expr.NewMember(NewQuerySourceRef(later), "Id")))
	qm.AddBodyClause(later)

	err := catchDangling(func() { qm.Clone() })
	require.NotNil(t, err)
	assert.Equal(t, "o", err.Source)
	assert.Contains(t, err.Reason, "forward reference")
}

func TestQuerySourceMapping(t *testing.T) {
	a := NewMainFromClause("a", person, people)
	b := NewMainFromClause("b", person, people)
	c := NewMainFromClause("c", person, people)

	m := NewQuerySourceMapping()
	m.Add(a, b)
	assert.Panics(t, func() { m.Add(a, c) })

	cp := m.Copy()
	cp.Replace(a, c)

	got, _ := m.Lookup(a)
	assert.Same(t, b, got)
	got, _ = cp.Lookup(a)
	assert.Same(t, c, got)
	assert.Equal(t, 1, cp.Len())
}

func TestClauseIDsAreUnique(t *testing.T) {
	seen := map[ClauseID]bool{}
	for i := 0; i < 100; i++ {
		id := NewWhereClause(nil).ID()
		require.False(t, seen[id])
		seen[id] = true
	}

	var lit WhereClause
	assert.NotZero(t, lit.ID(), "literal clauses get an id lazily")
	assert.Equal(t, lit.ID(), lit.ID())
}

func TestClauseID_ConcurrentFirstReadsAgree(t *testing.T) {
	for round := 0; round < 20; round++ {
		lit := &SelectClause{}
		ids := make([]ClauseID, 8)

		var wg sync.WaitGroup
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = lit.ID()
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			require.NotZero(t, id)
			assert.Equal(t, ids[0], id)
		}
		assert.Equal(t, ids[0], lit.ID())
	}
}
