package pred_test

import (
	"math/big"
	"testing"

	"github.com/cottand/theorem/pred"
	c "github.com/cottand/theorem/pred/construct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int32
	Tags []string
}

func TestEvalCapturedChain(t *testing.T) {
	p := point{X: 3, Y: 4, Tags: []string{"a", "b"}}
	v, err := pred.Eval(c.Field(c.Capture("p", p), "X"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	v, err = pred.Eval(c.Index(c.Field(c.Capture("p", &p), "Tags"), c.Lit(1)))
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	v, err = pred.Eval(c.Field(c.Capture("p", p), "Tags", "Length"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), v)
}

func TestEvalArithmeticIsExact(t *testing.T) {
	v, err := pred.Eval(c.Add(c.Lit(0.1), c.Lit(0.2)))
	require.NoError(t, err)
	assert.Equal(t, 0, big.NewRat(3, 10).Cmp(v.(*big.Rat)))

	v, err = pred.Eval(c.Mul(c.Lit(int16(7)), c.Lit(int64(6))))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)

	v, err = pred.Eval(c.Pow(c.Lit(2), c.Lit(10)))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1024), v)
}

func TestEvalLeavesUnsafeOperations(t *testing.T) {
	for name, e := range map[string]pred.Expr{
		"div by zero":   c.Div(c.Lit(1), c.Lit(0)),
		"negative rem":  c.Rem(c.Lit(-7), c.Lit(2)),
		"sqrt":          c.Sqrt(c.Lit(4)),
		"parameter":     c.Field(c.Param("e"), "X"),
		"unknown call":  c.Call("frobnicate", c.Lit(1)),
		"bare name ref": c.Name("X"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pred.Eval(e)
			assert.Error(t, err)
		})
	}
}

func TestEvalSelectDistinct(t *testing.T) {
	xs := []int{1, 2, 3}
	e := c.Distinct(c.Select(c.Capture("xs", xs), "x", c.Mul(c.Param("x"), c.Lit(2))))
	v, err := pred.Eval(e)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	e = c.Distinct(c.Select(c.Capture("xs", xs), "x", c.Rem(c.Param("x"), c.Lit(2))))
	v, err = pred.Eval(e)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestFoldKeepsParameterSubtrees(t *testing.T) {
	limit := struct{ Max int }{Max: 10}
	e := c.Lt(c.Field(c.Param("e"), "X"), c.Add(c.Field(c.Capture("limit", limit), "Max"), c.Lit(1)))

	folded := pred.Fold(e, "e")
	bin, ok := folded.(*pred.Binary)
	require.True(t, ok)
	assert.True(t, pred.Same(c.Field(c.Param("e"), "X"), bin.Left))
	assert.Equal(t, &pred.Const{Value: big.NewInt(11)}, bin.Right)
}

func TestFoldRespectsOpaqueCalls(t *testing.T) {
	ev := &pred.Evaluator{Opaque: func(fn string) bool { return fn == "twice" }}
	e := c.Eq(c.Call("twice", c.Add(c.Lit(1), c.Lit(1))), c.Lit(4))
	folded := ev.Fold(e, "e")

	call := folded.(*pred.Binary).Left.(*pred.Call)
	assert.Equal(t, "twice", call.Fn)
	assert.Equal(t, &pred.Const{Value: big.NewInt(2)}, call.Args[0])
}

func TestFoldInsideLambda(t *testing.T) {
	// x is bound by the lambda, so only the captured offset folds
	e := c.Select(c.Field(c.Param("e"), "Xs"), "x", c.Add(c.Param("x"), c.Add(c.Lit(1), c.Lit(2))))
	folded := pred.Fold(e, "e").(*pred.Call)
	lambda := folded.Args[1].(*pred.Lambda)
	body := lambda.Body.(*pred.Binary)
	assert.Equal(t, &pred.Param{Name: "x"}, body.Left)
	assert.Equal(t, &pred.Const{Value: big.NewInt(3)}, body.Right)
}

func TestSubstituteShadowing(t *testing.T) {
	e := c.And(
		c.Eq(c.Param("x"), c.Lit(1)),
		c.Call("any", &pred.Lambda{Param: "x", Body: c.Eq(c.Param("x"), c.Lit(2))}),
	)
	out := pred.Substitute(e, "x", c.Lit(9))
	assert.Equal(t, "9 == 1 && any(x => x == 2)", pred.ExprString(out))
}

func TestHashIsStructural(t *testing.T) {
	a := c.Add(c.Field(c.Param("e"), "X"), c.Lit(1))
	b := c.Add(c.Field(c.Param("e"), "X"), c.Lit(1))
	assert.True(t, pred.Same(a, b))
	assert.False(t, pred.Same(a, c.Add(c.Field(c.Param("e"), "Y"), c.Lit(1))))
	assert.False(t, pred.Same(a, c.Add(c.Field(c.Param("e"), "X"), c.Lit(int64(1)))))

	limit := struct{ Max int }{Max: 3}
	assert.True(t, pred.Same(c.Capture("limit", limit), c.Capture("limit", limit)))
	assert.False(t, pred.Same(c.Capture("limit", limit), c.Capture("limit", struct{ Max int }{Max: 4})))
}
