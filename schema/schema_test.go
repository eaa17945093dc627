package schema

import (
	"testing"
	"time"

	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalars(t *testing.T) {
	cases := []struct {
		t    Type
		want smt.Sort
	}{
		{Bool, smt.Bool},
		{Int16, smt.Int},
		{Int32, smt.Int},
		{Int64, smt.Int},
		{DateTime, smt.Int},
		{Char, smt.Int},
		{String, smt.String},
		{Float32, smt.Real},
		{Float64, smt.Real},
		{Decimal, smt.Real},
	}
	for _, c := range cases {
		t.Run(c.t.String(), func(t *testing.T) {
			got, err := Normalize(c.t)
			require.NoError(t, err)
			assert.True(t, c.want.Equal(got), "got %v", got)
		})
	}

	_, err := Normalize(Unsupported("chan int"))
	assert.Equal(t, thmerr.UnsupportedType, thmerr.CodeOf(err))
}

func TestElementSorts(t *testing.T) {
	cases := []struct {
		elem         Type
		index, value smt.Sort
	}{
		{String, smt.String, smt.BitVec(16)},
		{Int16, smt.Int, smt.BitVec(16)},
		{Int32, smt.Int, smt.Int},
		{Char, smt.Int, smt.Int},
		{Int64, smt.Int, smt.BitVec(64)},
		{DateTime, smt.Int, smt.BitVec(64)},
		{Bool, smt.Bool, smt.Bool},
		{Float32, smt.Real, smt.Float(32)},
		{Float64, smt.Real, smt.Float(64)},
		{Decimal, smt.Real, smt.Float(32)},
	}
	for _, c := range cases {
		t.Run(c.elem.String(), func(t *testing.T) {
			index, value, err := ElementSorts(c.elem)
			require.NoError(t, err)
			assert.True(t, c.index.Equal(index), "index %v", index)
			assert.True(t, c.value.Equal(value), "value %v", value)
			assert.Contains(t, Invert(index, value), c.elem.Kind)
		})
	}

	sort, err := NormalizeArray(Int32, 2)
	require.NoError(t, err)
	assert.Equal(t, "Array[Int,Int]Int", sort.String())

	_, _, err = ElementSorts(RecordOf(NewEnv("R")))
	assert.Equal(t, thmerr.UnsupportedType, thmerr.CodeOf(err))
}

func TestInvertSharedPairs(t *testing.T) {
	assert.Equal(t, []Kind{KindInt32, KindChar}, Invert(smt.Int, smt.Int))
	assert.Equal(t, []Kind{KindFloat32, KindDecimal}, Invert(smt.Real, smt.Float(32)))
	assert.Empty(t, Invert(smt.Bool, smt.Int))
}

type celsius float64

type inner struct {
	Flag bool
}

type derived struct {
	A      int16
	B      int32 `theorem:"Bee"`
	C      int32 `theorem:",char"`
	D      int64
	E      float32
	F      float64
	G      decimal.Decimal
	H      string
	I      time.Time
	Grid   [][]int32
	Board  [3][2]bool
	Inner  inner
	Items  []inner
	Temp   celsius
	Skip   int `theorem:"-"`
	Ch     chan int
	hidden int
}

func TestDerive(t *testing.T) {
	m := MapVia[celsius, float64](Float64,
		func(f float64) celsius { return celsius(f) },
		func(c celsius) float64 { return float64(c) })
	env := Derive[derived](MapField("Temp", m))

	assert.Equal(t, "derived", env.Name)
	var names []string
	for _, f := range env.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"A", "Bee", "C", "D", "E", "F", "G", "H", "I", "Grid", "Board", "Inner", "Items", "Temp", "Ch"}, names)

	kinds := map[string]Kind{
		"A": KindInt16, "Bee": KindInt32, "C": KindChar, "D": KindInt64, "E": KindFloat32,
		"F": KindFloat64, "G": KindDecimal, "H": KindString, "I": KindDateTime,
		"Grid": KindArray, "Board": KindArray, "Inner": KindRecord, "Items": KindArray, "Temp": KindFloat64, "Ch": KindInvalid,
	}
	for name, kind := range kinds {
		f, ok := env.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, f.Regular().Kind, name)
	}

	grid, _ := env.Field("Grid")
	assert.Equal(t, 2, grid.Type.Rank)
	assert.Equal(t, "[][]int32", grid.Type.String())
	assert.Nil(t, grid.Type.Shape)

	board, _ := env.Field("Board")
	assert.Equal(t, 2, board.Type.Rank)
	assert.Equal(t, []int{3, 2}, board.Type.Shape)

	items, _ := env.Field("Items")
	assert.True(t, items.Type.IsArrayOfRecord())

	temp, _ := env.Field("Temp")
	require.NotNil(t, temp.Mapping)
	wrapped, err := temp.Mapping.Wrap(21.5)
	require.NoError(t, err)
	assert.Equal(t, celsius(21.5), wrapped)
	_, err = temp.Mapping.Wrap("hot")
	assert.Error(t, err)

	ch, _ := env.Field("Ch")
	assert.Equal(t, "chan int", ch.Type.String())
}

func TestDecimalPrecision(t *testing.T) {
	assert.Equal(t, 32, DecimalPrecision(KindFloat32))
	assert.Equal(t, 64, DecimalPrecision(KindFloat64))
	assert.Equal(t, 128, DecimalPrecision(KindDecimal))
	assert.Equal(t, 0, DecimalPrecision(KindInt32))
}

type tree struct {
	Value int32
	Kids  []tree
}

type node struct {
	Value int32
	Next  *node
	Leaf  *inner
}

type twice struct {
	First  inner
	Second inner
}

func TestDeriveRecursiveTypes(t *testing.T) {
	env := Derive[tree]()
	kids, ok := env.Field("Kids")
	require.True(t, ok)
	require.True(t, kids.Type.IsArrayOfRecord())
	assert.True(t, kids.Type.Elem.Cyclic)
	assert.Equal(t, "[]schema.tree", kids.Type.String())

	env = Derive[node]()
	next, _ := env.Field("Next")
	assert.True(t, next.Type.Cyclic)
	leaf, _ := env.Field("Leaf")
	assert.Equal(t, KindRecord, leaf.Type.Kind)
	assert.False(t, leaf.Type.Cyclic)
	require.NotNil(t, leaf.Type.Env)
	assert.Equal(t, "inner", leaf.Type.Env.Name)

	// a type used twice side by side is not a cycle
	env = Derive[twice]()
	for _, f := range env.Fields {
		assert.False(t, f.Type.Cyclic, f.Name)
		assert.Equal(t, KindRecord, f.Type.Kind, f.Name)
	}
}
