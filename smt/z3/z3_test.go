//go:build z3

package z3

import (
	"context"
	"math/big"
	"testing"

	"github.com/cottand/theorem/smt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtx(t *testing.T) smt.Context {
	t.Helper()
	ctx, err := New().NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestRegistered(t *testing.T) {
	e, ok := smt.Lookup("z3")
	require.True(t, ok)
	assert.Equal(t, "z3", e.Name())
}

func TestIntegersAndArrays(t *testing.T) {
	ctx := newCtx(t)
	x := ctx.Const("x", smt.Int)
	arr := ctx.Const("arr", smt.Array(smt.BitVec(16), smt.Int))
	cell := ctx.Select(arr, ctx.IntVal(2))

	s := ctx.NewSolver()
	defer s.Close()
	s.Assert(
		ctx.Gt(x, ctx.IntVal(3)),
		ctx.Lt(x, ctx.IntVal(5)),
		ctx.Eq(cell, ctx.BVVal(-3, 16)),
	)
	require.NoError(t, ctx.Err())
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, smt.Sat, status)

	m, err := s.Model()
	require.NoError(t, err)
	defer m.Close()
	v, err := m.Int(x)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v.Int64())
	c, err := m.Int(cell)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), c.Int64())
}

func TestRealsAndStrings(t *testing.T) {
	ctx := newCtx(t)
	r := ctx.Const("r", smt.Real)
	f := ctx.Const("f", smt.Float(64))
	name := ctx.Const("name", smt.String)
	s := ctx.NewSolver()
	s.Assert(
		ctx.Eq(r, ctx.RatVal(big.NewRat(1, 3))),
		ctx.Eq(ctx.Coerce(f, smt.Real), ctx.RatVal(big.NewRat(-3, 2))),
		ctx.Eq(name, ctx.StringVal("héllo")),
	)
	require.NoError(t, ctx.Err())
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, smt.Sat, status)
	m, err := s.Model()
	require.NoError(t, err)

	d, err := m.Decimal(r, 4)
	require.NoError(t, err)
	assert.Equal(t, "0.3333", d)
	d, err = m.Decimal(f, 8)
	require.NoError(t, err)
	assert.Equal(t, "-1.5", d)
	str, err := m.String(name)
	require.NoError(t, err)
	assert.Equal(t, "héllo", str)
}

func TestOptimizer(t *testing.T) {
	ctx := newCtx(t)
	x := ctx.Const("x", smt.Int)
	o, err := ctx.NewOptimizer()
	require.NoError(t, err)
	defer o.Close()
	o.Assert(ctx.Ge(x, ctx.IntVal(0)), ctx.Le(x, ctx.IntVal(9)))
	o.Maximize(x)
	status, err := o.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, smt.Sat, status)
	m, err := o.Model()
	require.NoError(t, err)
	v, err := m.Int(x)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v.Int64())
}

func TestUnsatAndConstructionErrors(t *testing.T) {
	ctx := newCtx(t)
	b := ctx.Const("b", smt.Bool)
	s := ctx.NewSolver()
	s.Assert(b, ctx.Not(b))
	status, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, status)

	ctx.Add(b, ctx.IntVal(1))
	assert.Error(t, ctx.Err())
}

func TestEuclideanDivision(t *testing.T) {
	for _, tc := range []struct{ n, d, q, r int64 }{
		{-7, 3, -3, 2},
		{7, -3, -2, 1},
		{-7, -3, 3, 2},
	} {
		ctx := newCtx(t)
		q, r := ctx.Const("q", smt.Int), ctx.Const("r", smt.Int)
		s := ctx.NewSolver()
		s.Assert(
			ctx.Eq(q, ctx.Div(ctx.IntVal(tc.n), ctx.IntVal(tc.d))),
			ctx.Eq(r, ctx.Rem(ctx.IntVal(tc.n), ctx.IntVal(tc.d))),
		)
		require.NoError(t, ctx.Err())
		status, err := s.Check(context.Background())
		require.NoError(t, err)
		require.Equal(t, smt.Sat, status)
		m, err := s.Model()
		require.NoError(t, err)
		qv, err := m.Int(q)
		require.NoError(t, err)
		rv, err := m.Int(r)
		require.NoError(t, err)
		assert.Equal(t, tc.q, qv.Int64(), "%d / %d", tc.n, tc.d)
		assert.Equal(t, tc.r, rv.Int64(), "%d %% %d", tc.n, tc.d)
		m.Close()
		s.Close()
	}
}
