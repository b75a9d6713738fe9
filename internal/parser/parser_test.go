package parser

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relinq/internal/chain"
	"github.com/roach88/relinq/internal/expr"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/model"
	"github.com/roach88/relinq/internal/ops"
	"github.com/roach88/relinq/internal/testutil"
)

func parse(t *testing.T, q *chain.Query, opts ...Option) string {
	t.Helper()
	e, err := q.Expr()
	require.NoError(t, err)
	qm, err := New(opts...).Parse(e)
	require.NoError(t, err)
	return qm.String()
}

func parseErr(t *testing.T, e expr.Expression, opts ...Option) *ParseError {
	t.Helper()
	qm, err := New(opts...).Parse(e)
	require.Error(t, err)
	assert.Nil(t, qm)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %T: %v", err, err)
	return pe
}

func ageOver(n int) chain.Arg {
	return chain.Fn("p", func(p *expr.Parameter) expr.Expression { return testutil.Gt(p, "Age", n) })
}

func TestParse_WhereSelect(t *testing.T) {
	q := testutil.People().
		Where(ageOver(30)).
		Select(chain.Fn("p", chain.Member("Name")))

	assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p].Name", parse(t, q))
}

func TestParse_SelectManyWithResult(t *testing.T) {
	q := testutil.People().SelectMany(
		chain.Fn("a", func(*expr.Parameter) expr.Expression { return testutil.Orders().MustExpr() }),
		chain.Fn2("a", "b", func(a, b *expr.Parameter) expr.Expression {
			return expr.NewRecord(expr.Init("a", a), expr.Init("b", b))
		}),
	)

	assert.Equal(t, "from Person a in people from Order b in orders select new {a = [a], b = [b]}", parse(t, q))
}

func TestParse_ClauseAfterResultOperatorWraps(t *testing.T) {
	q := testutil.People().
		Select(chain.Fn("x", chain.Identity)).
		Distinct().
		Where(chain.Fn("x", func(x *expr.Parameter) expr.Expression { return testutil.Gt(x, "Id", 0) }))

	assert.Equal(t,
		"from Person x in {from Person x in people select [x] => Distinct()} where ([x].Id > 0) select [x]",
		parse(t, q))
}

func TestParse_ResultOperatorsChain(t *testing.T) {
	q := testutil.People().Where(ageOver(30)).Count()
	assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p] => Count()", parse(t, q))

	q = testutil.People().Take(chain.Int(5)).Count()
	assert.Equal(t, "from Person _1 in people select [_1] => Take(5) => Count()", parse(t, q))
}

func TestParse_NestedChainBecomesSubQuery(t *testing.T) {
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return testutil.Orders().Any(chain.Fn("o", func(o *expr.Parameter) expr.Expression {
			return testutil.Eq(expr.NewMember(o, "PersonId"), expr.NewMember(p, "Id"))
		})).MustExpr()
	}))
	e, err := q.Expr()
	require.NoError(t, err)

	res, err := New().ParseResult(e)
	require.NoError(t, err)

	assert.Equal(t,
		"from Person p in people where {from Order o in orders where ([o].PersonId == [p].Id) select [o] => Any()} select [p]",
		res.Model.String())
	require.Len(t, res.SubQueries, 1)

	where, ok := res.Model.BodyClauses[0].(*model.WhereClause)
	require.True(t, ok)
	sub, ok := where.Predicate.(*model.SubQuery)
	require.True(t, ok, "predicate should stay a sub-query, got %T", where.Predicate)
	assert.Equal(t, "o", sub.Model.MainFrom.Item.Name)
}

func TestParse_SubQueryIsNotMergedIntoOuterClauses(t *testing.T) {
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return testutil.Orders().
			Select(chain.Fn("o", chain.Member("PersonId"))).
			Contains(chain.Value(expr.NewMember(p, "Id"))).
			MustExpr()
	}))

	got := parse(t, q)
	assert.Equal(t,
		"from Person p in people where {from Order o in orders select [o].PersonId => Contains([p].Id)} select [p]",
		got)
}

func TestParse_ListContainsIsAResultOperator(t *testing.T) {
	ids := expr.NewParameter("ids", ops.ListOf(meta.Int))
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		e, err := chain.ListContains(ids, expr.NewMember(p, "Id"))
		require.NoError(t, err)
		return e
	}))

	assert.Equal(t,
		"from Person p in people where {from int _2 in ids select [_2] => Contains([p].Id)} select [p]",
		parse(t, q))
}

func TestParse_FoldsIndependentSubtrees(t *testing.T) {
	lower := expr.NewParameter("min", meta.Int)
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"),
			expr.NewBinary(expr.OpAdd, lower, expr.NewConstant(1, meta.Int)))
	}))
	env := map[string]any{"min": 29}

	assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p]",
		parse(t, q, WithEnvironment(env)))
	assert.Equal(t, "from Person p in people where ([p].Age > (min + 1)) select [p]",
		parse(t, q, WithEnvironment(env), WithoutPartialEvaluation()))
}

func TestParse_OuterLambdaParameterIsNotFoldedFromEnvironment(t *testing.T) {
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return testutil.Orders().Any(chain.Fn("o", func(o *expr.Parameter) expr.Expression {
			return testutil.Eq(expr.NewMember(o, "PersonId"), expr.NewMember(p, "Id"))
		})).MustExpr()
	}))
	want := "from Person p in people where {from Order o in orders where ([o].PersonId == [p].Id) select [o] => Any()} select [p]"

	assert.Equal(t, want, parse(t, q))
	// A variable sharing the outer parameter's name must not replace it.
	assert.Equal(t, want, parse(t, q, WithEnvironment(map[string]any{"p": map[string]any{"Id": 7}})))
}

func TestParse_VolatileCallIsNotFolded(t *testing.T) {
	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"), expr.NewCall(ops.Now))
	}))
	e, err := q.Expr()
	require.NoError(t, err)

	qm, err := New().Parse(e)
	require.NoError(t, err)

	where := qm.BodyClauses[0].(*model.WhereClause)
	bin, ok := where.Predicate.(*expr.Binary)
	require.True(t, ok)
	call, ok := bin.Right.(*expr.Call)
	require.True(t, ok, "volatile call was folded into %T", bin.Right)
	assert.Same(t, ops.Now, call.Method)
}

func TestParse_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
		return testutil.Orders().Any().MustExpr()
	}))
	parse(t, q, WithLogger(logger))

	assert.Contains(t, buf.String(), "detected sub-query")
	assert.Contains(t, buf.String(), "parsed query")
}

func TestParse_Errors(t *testing.T) {
	people := testutil.People().MustExpr()

	t.Run("unrecognized leaf", func(t *testing.T) {
		pe := parseErr(t, expr.NewBinary(expr.OpAdd, expr.NewConstant(1, nil), expr.NewConstant(2, nil)))
		assert.Equal(t, ErrCodeUnrecognizedOperator, pe.Code)
		assert.Equal(t, 0, pe.Position)
	})

	t.Run("unregistered scalar call", func(t *testing.T) {
		pe := parseErr(t, expr.NewCall(ops.ToUpper, expr.NewConstant("x", nil)))
		assert.True(t, IsUnrecognizedOperator(pe))
		assert.Equal(t, 0, pe.Position)
	})

	t.Run("unregistered scalar call as source", func(t *testing.T) {
		// Count(Where("x".ToUpper(), p => p.Age > 30))
		upper := &expr.Call{
			Method: ops.ToUpper,
			Args:   []expr.Expression{expr.NewConstant("x", nil)},
			Pos:    expr.Pos{Line: 1, Column: 13},
		}
		p := expr.NewParameter("p", testutil.Person)
		where := expr.NewCall(ops.Where.Instantiate(testutil.Person), upper,
			expr.NewLambda(testutil.Gt(p, "Age", 30), p))
		count := expr.NewCall(ops.Count.Instantiate(testutil.Person), where)

		pe := parseErr(t, count)
		assert.True(t, IsUnrecognizedOperator(pe))
		assert.Equal(t, 0, pe.Position)
		assert.Equal(t, expr.Pos{Line: 1, Column: 13}, pe.SourcePos)
		assert.Contains(t, pe.Error(), "position 0")
		assert.Contains(t, pe.Error(), "at 1:13")
	})

	t.Run("ambiguous generic binding", func(t *testing.T) {
		pair := meta.NewGeneric("Pair", "T1", "T2")
		pair.Declare(&meta.Method{Name: "M", Params: []meta.Param{meta.P("x", pair.TypeParams[0])}, Result: meta.Bool})
		pair.Declare(&meta.Method{Name: "M", Params: []meta.Param{meta.P("x", pair.TypeParams[1])}, Result: meta.Bool})
		closed := meta.Instantiate(pair, meta.Int, meta.Int)
		receiver := expr.NewParameter("pair", closed)

		call := expr.NewMethodCall(receiver, closed.Methods[0], expr.NewConstant(1, nil))
		call.Pos = expr.Pos{Line: 2, Column: 5}

		pe := parseErr(t, call)
		assert.True(t, IsAmbiguousBinding(pe))
		assert.Equal(t, 0, pe.Position)
		assert.Equal(t, call.Pos, pe.SourcePos)
		var amb *meta.AmbiguousBindingError
		assert.True(t, errors.As(pe, &amb))
	})

	t.Run("evaluation failure", func(t *testing.T) {
		zero := expr.NewParameter("zero", meta.Int)
		q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
			return expr.NewBinary(expr.OpGt, expr.NewMember(p, "Age"),
				expr.NewBinary(expr.OpDiv, expr.NewConstant(10, meta.Int), zero))
		}))

		pe := parseErr(t, q.MustExpr(), WithEnvironment(map[string]any{"zero": 0}))
		assert.True(t, IsEvaluationFailure(pe))
		assert.Equal(t, "(10 / zero)", pe.Expr)
		assert.Equal(t, 1, pe.Position)
	})

	t.Run("unresolved reference", func(t *testing.T) {
		var captured *expr.Parameter
		q := testutil.People().
			Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
				captured = p
				return testutil.Gt(p, "Age", 30)
			})).
			Select(chain.Fn("x", func(*expr.Parameter) expr.Expression {
				return expr.NewMember(captured, "Name")
			}))

		pe := parseErr(t, q.MustExpr())
		assert.True(t, IsUnresolvedReference(pe))
		assert.Contains(t, pe.Message, `"p"`)
	})

	t.Run("ThenBy without OrderBy", func(t *testing.T) {
		q := testutil.People().ThenBy(chain.Fn("p", chain.Member("Age")))

		pe := parseErr(t, q.MustExpr())
		assert.True(t, IsInvalidChain(pe))
		assert.Equal(t, 1, pe.Position)
	})

	t.Run("non-lambda argument", func(t *testing.T) {
		call := expr.NewCall(ops.Where.Instantiate(testutil.Person), people, expr.NewConstant(true, nil))

		pe := parseErr(t, call)
		assert.True(t, IsInvalidChain(pe))
		assert.Equal(t, 1, pe.Position)
	})

	t.Run("error inside nested chain", func(t *testing.T) {
		q := testutil.People().Where(chain.Fn("p", func(p *expr.Parameter) expr.Expression {
			return testutil.Orders().ThenBy(chain.Fn("o", chain.Member("Id"))).Any().MustExpr()
		}))

		pe := parseErr(t, q.MustExpr())
		assert.True(t, IsInvalidChain(pe))
	})
}

func TestParse_ConcurrentUse(t *testing.T) {
	p := New()
	e := testutil.People().Where(ageOver(30)).Count().MustExpr()

	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			qm, err := p.Parse(e)
			if err != nil {
				done <- err.Error()
				return
			}
			done <- qm.String()
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "from Person p in people where ([p].Age > 30) select [p] => Count()", <-done)
	}
}
