package problem

import (
	"context"
	"testing"

	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt/finite"
	"github.com/cottand/theorem/thmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	p, err := Load("testdata/shop.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Shop", p.Name)
	assert.Equal(t, "finite", p.Engine)
	assert.Len(t, p.Constraints, 4)
	assert.True(t, p.Maximize)
	require.NotNil(t, p.Objective)

	counts, ok := p.Env.Field("Counts")
	require.True(t, ok)
	assert.Equal(t, schema.KindArray, counts.Type.Kind)
	assert.Equal(t, []int{3}, counts.Type.Shape)
	crate, ok := p.Env.Field("Crate")
	require.True(t, ok)
	assert.Equal(t, schema.KindRecord, crate.Type.Kind)
	assert.Len(t, crate.Type.Env.Fields, 2)

	got, ok, err := p.Solve(context.Background(), finite.New())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"Apples": int32(12),
		"Counts": []any{int32(3), int32(2), int32(0)},
		"Crate":  map[string]any{"Weight": int64(13), "Label": "fruit"},
	}, got)
}

func TestUnsatPolicyFromFile(t *testing.T) {
	src := `
problem:
  name: Never
  unsat: error
  fields:
    - {name: X, type: int16}
  where:
    - e.X > 3
    - e.X < 4
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	_, ok, err := p.Solve(context.Background(), finite.New())
	assert.False(t, ok)
	assert.Equal(t, thmerr.Unsatisfiable, thmerr.CodeOf(err))
}

func TestParamAndMinimize(t *testing.T) {
	src := `
problem:
  name: Low
  param: it
  literals: exact
  fields:
    - {name: Price, type: decimal}
  where:
    - it.Price >= 1.5 && it.Price <= 3
  minimize: it.Price
`
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.False(t, p.Maximize)
	got, ok, err := p.Solve(context.Background(), finite.New())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.5", got["Price"].(interface{ String() string }).String())
}

func TestUnsupportedFieldType(t *testing.T) {
	p, err := Parse([]byte(`
problem:
  name: Odd
  fields:
    - {name: C, type: complex128}
`))
	require.NoError(t, err)
	_, _, err = p.Solve(context.Background(), finite.New())
	assert.Equal(t, thmerr.UnsupportedType, thmerr.CodeOf(err))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no name":      "problem:\n  fields:\n    - {name: X, type: bool}\n",
		"no fields":    "problem:\n  name: Empty\n",
		"duplicate":    "problem:\n  name: D\n  fields:\n    - {name: X, type: bool}\n    - {name: X, type: int32}\n",
		"bad unsat":    "problem:\n  name: U\n  unsat: maybe\n  fields:\n    - {name: X, type: bool}\n",
		"bad length":   "problem:\n  name: L\n  fields:\n    - {name: X, type: bool, len: [0]}\n",
		"both goals":   "problem:\n  name: G\n  fields:\n    - {name: X, type: int32}\n  maximize: e.X\n  minimize: e.X\n",
		"bad literals": "problem:\n  name: P\n  literals: sloppy\n  fields:\n    - {name: X, type: int32}\n",
		"not yaml":     "problem: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("problem:\n  name: W\n  fields:\n    - {name: X, type: int32}\n  where:\n    - e.X >\n"))
	assert.Equal(t, thmerr.Parse, thmerr.CodeOf(err))

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}
