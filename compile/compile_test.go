package compile_test

import (
	"context"
	"testing"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/compile"
	"github.com/cottand/theorem/pred"
	c "github.com/cottand/theorem/pred/construct"
	"github.com/cottand/theorem/rewrite"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/smt/finite"
	"github.com/cottand/theorem/thmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	e = c.Param("e")

	env = schema.NewEnv("Env",
		schema.NewField("A", schema.Bool),
		schema.NewField("B", schema.Bool),
		schema.NewField("X1", schema.Int32),
		schema.NewField("X2", schema.Int32),
		schema.NewField("Y", schema.Float64),
		schema.NewField("Values", schema.ArrayOf(schema.Int32)),
		schema.NewField("Small", schema.ArrayOf(schema.Int16, 2)),
		schema.NewField("Name", schema.String),
	)
)

type fixture struct {
	ctx smt.Context
	b   *binding.Binding
	c   *compile.Compiler
}

func setup(t *testing.T, opts ...compile.Option) *fixture {
	t.Helper()
	ctx, err := finite.New().NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	b, err := binding.Build(ctx, env)
	require.NoError(t, err)
	return &fixture{ctx: ctx, b: b, c: compile.New(ctx, b, "e", opts...)}
}

func (f *fixture) solve(t *testing.T, preds ...pred.Expr) (smt.Status, smt.Model) {
	t.Helper()
	s := f.ctx.NewSolver()
	for _, p := range preds {
		term, err := f.c.Compile(p)
		require.NoError(t, err, pred.ExprString(p))
		s.Assert(term)
	}
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	if status != smt.Sat {
		return status, nil
	}
	m, err := s.Model()
	require.NoError(t, err)
	return status, m
}

func (f *fixture) leaf(t *testing.T, names ...string) smt.Term {
	t.Helper()
	node, ok := f.b.Lookup(names...)
	require.True(t, ok)
	return node.(*binding.Leaf).Term
}

func (f *fixture) int(t *testing.T, m smt.Model, term smt.Term) int64 {
	t.Helper()
	v, err := m.Int(term)
	require.NoError(t, err)
	return v.Int64()
}

func TestXor(t *testing.T) {
	f := setup(t)
	status, m := f.solve(t, c.Xor(c.Field(e, "A"), c.Field(e, "B")), c.Field(e, "A"))
	require.Equal(t, smt.Sat, status)
	b, err := m.Bool(f.leaf(t, "B"))
	require.NoError(t, err)
	assert.False(t, b)
}

func TestOrderingScenario(t *testing.T) {
	f := setup(t)
	x1, x2 := c.Field(e, "X1"), c.Field(e, "X2")
	status, m := f.solve(t,
		c.Lt(x1, c.Add(x2, c.Lit(1))),
		c.Gt(x1, c.Lit(2)),
		c.Ne(x1, x2),
	)
	require.Equal(t, smt.Sat, status)
	v1, v2 := f.int(t, m, f.leaf(t, "X1")), f.int(t, m, f.leaf(t, "X2"))
	assert.Less(t, v1, v2+1)
	assert.Greater(t, v1, int64(2))
	assert.NotEqual(t, v1, v2)
}

func TestArraysAndCoercedValues(t *testing.T) {
	f := setup(t)
	values := c.Field(e, "Values")
	small := c.Field(e, "Small")
	status, m := f.solve(t,
		c.Eq(c.Add(c.Index(values, c.Lit(0)), c.Index(values, c.Lit(1))), c.Lit(5)),
		c.Ge(c.Index(values, c.Lit(0)), c.Lit(1)),
		c.Le(c.Index(values, c.Lit(0)), c.Lit(4)),
		c.Eq(c.Index(values, c.Lit(1)), c.Lit(3)),
		// nested indexing flattens into one select
		c.Eq(&pred.Index{X: c.Index(small, c.Lit(1)), Indices: []pred.Expr{c.Lit(2)}}, c.Lit(-3)),
	)
	require.Equal(t, smt.Sat, status)
	arr := f.leaf(t, "Values")
	assert.Equal(t, int64(2), f.int(t, m, f.ctx.Select(arr, f.ctx.IntVal(0))))

	cell := f.ctx.Select(f.leaf(t, "Small"), f.ctx.IntVal(1), f.ctx.IntVal(2))
	assert.Equal(t, int64(-3), f.int(t, m, cell))
}

func TestGetAccessorIsIndex(t *testing.T) {
	f := setup(t)
	status, m := f.solve(t, c.Eq(c.Method(c.Field(e, "Values"), "get_Item", c.Lit(4)), c.Lit(7)))
	require.Equal(t, smt.Sat, status)
	assert.Equal(t, int64(7), f.int(t, m, f.ctx.Select(f.leaf(t, "Values"), f.ctx.IntVal(4))))
}

type limits struct {
	Max    int
	Offset []int
}

func TestCapturedValuesAreLiterals(t *testing.T) {
	for _, fold := range []bool{false, true} {
		f := setup(t, compile.WithFolding(fold))
		lim := limits{Max: 10, Offset: []int{1, 2}}
		status, m := f.solve(t,
			c.Eq(c.Field(e, "X1"), c.Sub(c.Field(c.Capture("lim", lim), "Max"), c.Index(c.Field(c.Capture("lim", lim), "Offset"), c.Lit(1)))),
		)
		require.Equal(t, smt.Sat, status, "fold=%v", fold)
		assert.Equal(t, int64(8), f.int(t, m, f.leaf(t, "X1")), "fold=%v", fold)
	}
}

type (
	level int32
	label string
	onOff bool
	ratio float64
)

func TestNamedKindsAreLiterals(t *testing.T) {
	settings := struct {
		Bump  level
		Ratio ratio
	}{Bump: 2, Ratio: 0.5}
	for _, fold := range []bool{false, true} {
		f := setup(t, compile.WithFolding(fold))
		status, m := f.solve(t,
			c.Eq(c.Field(e, "X1"), c.Add(c.Lit(level(3)), c.Field(c.Capture("settings", settings), "Bump"))),
			c.Eq(c.Field(e, "Y"), c.Add(c.Lit(ratio(0.25)), c.Field(c.Capture("settings", settings), "Ratio"))),
			c.Eq(c.Field(e, "A"), c.Lit(onOff(true))),
			c.Eq(c.Field(e, "Name"), c.Lit(label("hi"))),
		)
		require.Equal(t, smt.Sat, status, "fold=%v", fold)
		assert.Equal(t, int64(5), f.int(t, m, f.leaf(t, "X1")), "fold=%v", fold)
		y, err := m.Decimal(f.leaf(t, "Y"), 64)
		require.NoError(t, err)
		assert.Equal(t, "0.75", y, "fold=%v", fold)
		on, err := m.Bool(f.leaf(t, "A"))
		require.NoError(t, err)
		assert.True(t, on)
		name, err := m.String(f.leaf(t, "Name"))
		require.NoError(t, err)
		assert.Equal(t, "hi", name)
	}
}

func TestDistinctOverProjection(t *testing.T) {
	f := setup(t)
	values := c.Field(e, "Values")
	idxs := []int{0, 1, 2}
	var preds []pred.Expr
	for _, i := range idxs {
		preds = append(preds,
			c.Ge(c.Index(values, c.Lit(i)), c.Lit(1)),
			c.Le(c.Index(values, c.Lit(i)), c.Lit(3)),
		)
	}
	preds = append(preds, c.Distinct(c.Select(c.Capture("idxs", idxs), "i", c.Index(values, c.Param("i")))))

	status, m := f.solve(t, preds...)
	require.Equal(t, smt.Sat, status)
	seen := map[int64]bool{}
	for _, i := range idxs {
		seen[f.int(t, m, f.ctx.Select(f.leaf(t, "Values"), f.ctx.IntVal(int64(i))))] = true
	}
	assert.Len(t, seen, 3)
}

func TestDistinctOverTwoBooleans(t *testing.T) {
	f := setup(t)
	a, b := c.Field(e, "A"), c.Field(e, "B")
	status, m := f.solve(t, c.Distinct(a, b))
	require.Equal(t, smt.Sat, status)
	av, err := m.Bool(f.leaf(t, "A"))
	require.NoError(t, err)
	bv, err := m.Bool(f.leaf(t, "B"))
	require.NoError(t, err)
	assert.NotEqual(t, av, bv)

	status, _ = f.solve(t, c.Distinct(a, b), c.Eq(a, b))
	assert.Equal(t, smt.Unsat, status)
}

func TestSqrtCompilesAsSquare(t *testing.T) {
	f := setup(t)
	x := c.Field(e, "X1")
	status, m := f.solve(t, c.Eq(c.Sqrt(x), c.Lit(9)), c.Ge(x, c.Lit(0)), c.Le(x, c.Lit(100)))
	require.Equal(t, smt.Sat, status)
	// a square root proper would give 81
	assert.Equal(t, int64(3), f.int(t, m, f.leaf(t, "X1")))
}

func TestSquareRootStatedAsConstraint(t *testing.T) {
	f := setup(t)
	x, r := c.Field(e, "X1"), c.Field(e, "X2")
	status, m := f.solve(t,
		c.Eq(c.Mul(r, r), x), c.Ge(r, c.Lit(0)), c.Eq(r, c.Lit(9)),
		c.Ge(x, c.Lit(0)), c.Le(x, c.Lit(100)),
	)
	require.Equal(t, smt.Sat, status)
	assert.Equal(t, int64(81), f.int(t, m, f.leaf(t, "X1")))
}

func TestRealLiterals(t *testing.T) {
	for _, lits := range []compile.Literals{compile.LiteralsAuto, compile.LiteralsExact, compile.LiteralsApprox} {
		t.Run(lits.String(), func(t *testing.T) {
			f := setup(t, compile.WithLiterals(lits))
			status, m := f.solve(t, c.Eq(c.Field(e, "Y"), c.Lit(0.1)))
			require.Equal(t, smt.Sat, status)
			d, err := m.Decimal(f.leaf(t, "Y"), 64)
			require.NoError(t, err)
			assert.Equal(t, "0.1", d)
		})
	}
}

func TestConvert(t *testing.T) {
	f := setup(t)
	status, m := f.solve(t,
		c.Eq(c.Convert(c.Field(e, "X1"), schema.Float64), c.Lit(2.0)),
		c.Eq(c.Convert(c.Field(e, "X2"), schema.Char), c.Lit('a')),
	)
	require.Equal(t, smt.Sat, status)
	assert.Equal(t, int64(2), f.int(t, m, f.leaf(t, "X1")))
	assert.Equal(t, int64('a'), f.int(t, m, f.leaf(t, "X2")))

	_, err := f.c.Compile(c.Eq(c.Convert(c.Field(e, "Name"), schema.Int32), c.Lit(1)))
	assert.Equal(t, thmerr.UnsupportedExpression, thmerr.CodeOf(err))
}

func TestCompileErrors(t *testing.T) {
	f := setup(t)
	cases := map[string]struct {
		expr pred.Expr
		code thmerr.ErrCode
	}{
		"unknown member":      {c.Field(e, "Nope"), thmerr.UnknownMember},
		"member of a scalar":  {c.Field(e, "A", "B"), thmerr.UnknownMember},
		"other parameter":     {c.Field(c.Param("x"), "A"), thmerr.UnknownParameter},
		"unknown call":        {c.Call("frobnicate", c.Field(e, "X1")), thmerr.UnsupportedExpression},
		"not a boolean":       {c.Add(c.Field(e, "X1"), c.Lit(1)), thmerr.UnsupportedExpression},
		"array without index": {c.Eq(c.Field(e, "Values"), c.Lit(1)), thmerr.UnsupportedExpression},
		"and of numbers":      {c.And(c.Field(e, "X1"), c.Field(e, "A")), thmerr.UnsupportedExpression},
		"remainder of reals":  {c.Eq(c.Rem(c.Field(e, "Y"), c.Lit(2)), c.Lit(0)), thmerr.UnsupportedExpression},
		"nil literal":         {c.Eq(c.Field(e, "X1"), c.Lit(nil)), thmerr.UnsupportedExpression},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.c.Compile(tc.expr)
			require.Error(t, err)
			assert.Equal(t, tc.code, thmerr.CodeOf(err), err.Error())
		})
	}

	_, err := f.c.CompileObjective(c.Field(e, "A"))
	assert.Equal(t, thmerr.UnsupportedExpression, thmerr.CodeOf(err))
	obj, err := f.c.CompileObjective(c.Add(c.Field(e, "X1"), c.Field(e, "Y")))
	require.NoError(t, err)
	assert.Equal(t, smt.RealSort, obj.Sort().Kind)
}

func TestPredicateRewriters(t *testing.T) {
	positive := rewrite.PredicateFunc(func(call *pred.Call) (pred.Expr, error) {
		return c.Gt(call.Args[0], c.Lit(0)), nil
	})
	identity := rewrite.PredicateFunc(func(call *pred.Call) (pred.Expr, error) {
		return call, nil
	})
	resolved, err := rewrite.NewRegistry().
		WithPredicate("positive", func() any { return positive }).
		WithPredicate("same", func() any { return identity }).
		Resolve("Env")
	require.NoError(t, err)

	f := setup(t, compile.WithRewriters(resolved), compile.WithFolding(true))
	status, m := f.solve(t, c.Call("positive", c.Field(e, "X1")), c.Lt(c.Field(e, "X1"), c.Lit(2)))
	require.Equal(t, smt.Sat, status)
	assert.Equal(t, int64(1), f.int(t, m, f.leaf(t, "X1")))

	// folding must not evaluate a rewritten call away, so the rewriter still runs
	_, err = f.c.Compile(c.Call("same", c.Lit(true)))
	assert.Equal(t, thmerr.NoProgress, thmerr.CodeOf(err))
}

type money struct{ cents int64 }

func TestMappedLiterals(t *testing.T) {
	m := schema.MapVia[money, int64](schema.Int64,
		func(v int64) money { return money{v} },
		func(v money) int64 { return v.cents })
	mapped := schema.NewEnv("Wallet", schema.Mapped("Balance", m))

	ctx, err := finite.New().NewContext()
	require.NoError(t, err)
	defer ctx.Close()
	b, err := binding.Build(ctx, mapped)
	require.NoError(t, err)
	comp := compile.New(ctx, b, "w")

	term, err := comp.Compile(c.Eq(c.Field(c.Param("w"), "Balance"), c.Lit(money{250})))
	require.NoError(t, err)
	s := ctx.NewSolver()
	s.Assert(term)
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, smt.Sat, status)
	model, err := s.Model()
	require.NoError(t, err)
	v, err := model.Int(b.Leaves()[0].Term)
	require.NoError(t, err)
	assert.Equal(t, int64(250), v.Int64())
}
