package theorem_test

import (
	"context"
	"testing"

	"github.com/cottand/theorem/pred"
	c "github.com/cottand/theorem/pred/construct"
	"github.com/cottand/theorem/rewrite"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt/finite"
	"github.com/cottand/theorem/theorem"
	"github.com/cottand/theorem/thmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flags struct {
	A bool
	B bool
}

type pair struct {
	X1 int32
	X2 int32
}

type wide struct {
	Big int64
}

var e = c.Param(theorem.DefaultParam)

func field(name string) pred.Expr { return c.Field(e, name) }

func TestXor(t *testing.T) {
	var got flags
	ok, err := theorem.For[flags](finite.New()).
		Where(c.Xor(field("A"), field("B")), field("A")).
		Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, flags{A: true, B: false}, got)
}

func TestOrdering(t *testing.T) {
	x1, x2 := field("X1"), field("X2")
	var got pair
	ok, err := theorem.For[pair](finite.New()).
		Where(
			c.Lt(x1, c.Add(x2, c.Lit(1))),
			c.Gt(x1, c.Lit(2)),
			c.Ne(x1, x2),
		).
		Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, got.X1, got.X2+1)
	assert.Greater(t, got.X1, int32(2))
	assert.NotEqual(t, got.X1, got.X2)
}

func TestDistinctBooleans(t *testing.T) {
	base := theorem.For[flags](finite.New()).Where(c.Distinct(field("A"), field("B")))

	var got flags
	ok, err := base.Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, got.A, got.B)

	for _, a := range []bool{true, false} {
		ok, err := base.Where(c.Eq(field("A"), c.Lit(a))).Solve(context.Background(), &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, flags{A: a, B: !a}, got)
	}
}

func TestFoldingIsTransparent(t *testing.T) {
	limit := struct{ Max int32 }{Max: 4}
	cases := []struct {
		name string
		pred pred.Expr
		sat  bool
	}{
		{"captured member", c.Lt(field("X1"), c.Field(c.Capture("limit", limit), "Max")), true},
		{"constant arithmetic", c.Eq(field("X1"), c.Mul(c.Lit(2), c.Add(c.Lit(1), c.Lit(2)))), true},
		{"contradiction", c.And(c.Gt(field("X1"), c.Lit(3)), c.Lt(field("X1"), c.Sub(c.Lit(5), c.Lit(1)))), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := theorem.For[pair](finite.New()).Where(
				c.Ge(field("X1"), c.Lit(0)),
				c.Le(field("X1"), c.Lit(10)),
				tc.pred,
			)
			var folded, plain pair
			okFolded, err := base.With(theorem.WithFolding(true)).Solve(context.Background(), &folded)
			require.NoError(t, err)
			okPlain, err := base.With(theorem.WithFolding(false)).Solve(context.Background(), &plain)
			require.NoError(t, err)
			assert.Equal(t, tc.sat, okFolded)
			assert.Equal(t, okFolded, okPlain)
		})
	}
}

func TestUnsatPolicy(t *testing.T) {
	contradiction := []pred.Expr{c.Gt(field("X1"), c.Lit(3)), c.Lt(field("X1"), c.Lit(4))}

	var got pair
	ok, err := theorem.For[pair](finite.New()).Where(contradiction...).Solve(context.Background(), &got)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = theorem.For[pair](finite.New(), theorem.WithUnsat(theorem.UnsatError)).
		Where(contradiction...).
		Solve(context.Background(), &got)
	assert.Equal(t, thmerr.Unsatisfiable, thmerr.CodeOf(err))
}

func TestUndecidedIsEngineFailure(t *testing.T) {
	big := field("Big")
	var got wide
	_, err := theorem.For[wide](finite.New()).
		Where(c.Eq(c.Mul(big, big), c.Lit(2))).
		Solve(context.Background(), &got)
	assert.Equal(t, thmerr.EngineFailure, thmerr.CodeOf(err))
}

func TestWhereIsPersistent(t *testing.T) {
	base := theorem.For[pair](finite.New())
	one := base.Where(c.Gt(field("X1"), c.Lit(0)))
	left := one.Where(c.Lt(field("X1"), c.Lit(2)))
	right := one.Where(c.Gt(field("X1"), c.Lit(5)), c.Lt(field("X1"), c.Lit(7)))

	assert.Empty(t, base.Constraints())
	assert.Len(t, one.Constraints(), 1)
	assert.Len(t, left.Constraints(), 2)
	assert.Len(t, right.Constraints(), 3)

	var got pair
	ok, err := left.Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(1), got.X1)

	ok, err = right.Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(6), got.X1)
}

func TestOptimize(t *testing.T) {
	bounded := theorem.For[pair](finite.New()).Where(
		c.Ge(field("X1"), c.Lit(0)),
		c.Le(field("X1"), c.Lit(9)),
		c.Ge(field("X2"), c.Lit(1)),
		c.Le(field("X2"), c.Lit(3)),
		c.Ne(field("X1"), field("X2")),
	)

	var got pair
	ok, err := bounded.Maximize(context.Background(), c.Add(field("X1"), field("X2")), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair{X1: 9, X2: 3}, got)

	ok, err = bounded.Minimize(context.Background(), field("X1"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(0), got.X1)

	_, err = bounded.Maximize(context.Background(), c.Gt(field("X1"), c.Lit(1)), &got)
	assert.Equal(t, thmerr.UnsupportedExpression, thmerr.CodeOf(err))
}

func TestWhereText(t *testing.T) {
	th, err := theorem.For[pair](finite.New()).WhereText("e.X1 > lo && X1 < 4", map[string]any{"lo": 2})
	require.NoError(t, err)
	var got pair
	ok, err := th.Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(3), got.X1)

	_, err = theorem.For[pair](finite.New()).WhereText("e.X1 >", nil)
	assert.Equal(t, thmerr.Parse, thmerr.CodeOf(err))
}

func TestRewriters(t *testing.T) {
	double := rewrite.NewRegistry().WithPredicate("double", func() any {
		return rewrite.PredicateFunc(func(call *pred.Call) (pred.Expr, error) {
			return c.Add(call.Args[0], call.Args[0]), nil
		})
	})
	pinX2 := rewrite.NewRegistry().WithGlobal("pair", func() any {
		return rewrite.GlobalFunc(func(constraints []pred.Expr) ([]pred.Expr, error) {
			return append(constraints, c.Eq(field("X2"), c.Lit(7))), nil
		})
	})

	var got pair
	ok, err := theorem.For[pair](finite.New(), theorem.WithRewriters(double), theorem.WithRewriters(pinX2)).
		Where(
			c.Ge(field("X1"), c.Lit(0)),
			c.Le(field("X1"), c.Lit(10)),
			c.Eq(c.Call("double", field("X1")), c.Lit(8)),
		).
		Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair{X1: 4, X2: 7}, got)

	stuck := rewrite.NewRegistry().WithPredicate("stuck", func() any {
		return rewrite.PredicateFunc(func(call *pred.Call) (pred.Expr, error) { return call, nil })
	})
	_, err = theorem.For[pair](finite.New(), theorem.WithRewriters(stuck)).
		Where(c.Eq(c.Call("stuck", field("X1")), c.Lit(1))).
		Solve(context.Background(), &got)
	assert.Equal(t, thmerr.NoProgress, thmerr.CodeOf(err))

	broken := rewrite.NewRegistry().WithPredicate("broken", nil)
	_, err = theorem.For[pair](finite.New(), theorem.WithRewriters(broken)).Solve(context.Background(), &got)
	assert.Equal(t, thmerr.RewriterConfiguration, thmerr.CodeOf(err))
}

func TestForEnv(t *testing.T) {
	env := schema.NewEnv("Grid",
		schema.NewField("Cells", schema.Sized(schema.Int32, 2)),
		schema.NewField("On", schema.Bool),
	)
	cells := c.Field(e, "Cells")
	got := map[string]any{}
	ok, err := theorem.ForEnv(env, finite.New()).
		Where(
			c.Eq(c.Index(cells, c.Lit(0)), c.Lit(4)),
			c.Eq(c.Index(cells, c.Lit(1)), c.Add(c.Index(cells, c.Lit(0)), c.Lit(1))),
			c.Not(field("On")),
		).
		Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Cells": []any{int32(4), int32(5)}, "On": false}, got)
}

type parcel struct {
	Weight int32
	Tags   []int32
}

type shipment struct {
	Parcels []parcel
}

func TestArraysInsideArrayElements(t *testing.T) {
	parcels := c.Field(e, "Parcels")
	tag := func(i, j int) pred.Expr {
		return c.Index(c.Field(c.Index(parcels, c.Lit(i)), "Tags"), c.Lit(j))
	}
	weight := func(i int) pred.Expr { return c.Field(c.Index(parcels, c.Lit(i)), "Weight") }

	got := shipment{Parcels: []parcel{{Tags: make([]int32, 2)}, {Tags: make([]int32, 2)}}}
	ok, err := theorem.For[shipment](finite.New()).
		Where(
			c.Eq(tag(0, 1), c.Lit(4)),
			c.Eq(tag(1, 0), c.Add(tag(0, 1), c.Lit(1))),
			c.Eq(weight(1), c.Mul(tag(1, 0), c.Lit(2))),
		).
		Solve(context.Background(), &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 4}, got.Parcels[0].Tags)
	assert.Equal(t, []int32{5, 0}, got.Parcels[1].Tags)
	assert.Equal(t, int32(10), got.Parcels[1].Weight)
}

type family struct {
	Name     int32
	Children []family
}

func TestRecursiveEnvironment(t *testing.T) {
	var got family
	_, err := theorem.For[family](finite.New()).Solve(context.Background(), &got)
	assert.Equal(t, thmerr.UnsupportedNesting, thmerr.CodeOf(err))
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got pair
	_, err := theorem.For[pair](finite.New()).Where(c.Gt(field("X1"), c.Lit(0))).Solve(ctx, &got)
	assert.ErrorIs(t, err, context.Canceled)
}
