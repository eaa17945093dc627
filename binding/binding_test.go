package binding_test

import (
	"errors"
	"testing"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/smt/finite"
	"github.com/cottand/theorem/thmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtx(t *testing.T) smt.Context {
	t.Helper()
	ctx, err := finite.New().NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestBuildNamesLeavesByPath(t *testing.T) {
	point := schema.NewEnv("Point", schema.NewField("X", schema.Int32), schema.NewField("Y", schema.Float64))
	env := schema.NewEnv("Env",
		schema.NewField("Ok", schema.Bool),
		schema.NewField("At", schema.RecordOf(point)),
		schema.NewField("Names", schema.ArrayOf(schema.String)),
		schema.NewField("Grid", schema.ArrayOf(schema.Int16, 2)),
		schema.NewField("Path", schema.ArrayOf(schema.RecordOf(point))),
	)

	b, err := binding.Build(newCtx(t), env)
	require.NoError(t, err)

	var got []string
	for _, l := range b.Leaves() {
		got = append(got, l.Path()+":"+l.Term.Sort().String())
	}
	assert.Equal(t, []string{
		"Env_Ok:Bool",
		"Env_At_X:Int",
		"Env_At_Y:Real",
		"Env_Names:Array[String]BitVec16",
		"Env_Grid:Array[Int,Int]BitVec16",
		"Env_Path_X:Array[Int]Int",
		"Env_Path_Y:Array[Int]Real",
	}, got)

	node, ok := b.Lookup("Path", "Y")
	require.True(t, ok)
	leaf := node.(*binding.Leaf)
	assert.True(t, leaf.Elem)
	assert.Equal(t, 1, leaf.Rank)
	assert.Equal(t, schema.KindFloat64, leaf.ScalarType().Kind)

	grid, ok := b.Lookup("Grid")
	require.True(t, ok)
	assert.Equal(t, 2, grid.(*binding.Leaf).Rank)
	assert.Equal(t, schema.KindInt16, grid.(*binding.Leaf).ScalarType().Kind)

	_, ok = b.Lookup("At", "Z")
	assert.False(t, ok)
	assert.Equal(t, "Env_At_X", binding.PathOf("Env", "At", "X"))
}

func TestBuildReportsEveryFailure(t *testing.T) {
	point := schema.NewEnv("Point", schema.NewField("X", schema.Int32))
	deep := schema.NewEnv("Deep",
		schema.NewField("Values", schema.ArrayOf(schema.Int32)),
		schema.NewField("Points", schema.ArrayOf(schema.RecordOf(point))),
	)
	env := schema.NewEnv("Env",
		schema.NewField("Ch", schema.Unsupported("chan int")),
		schema.NewField("Ok", schema.Bool),
		schema.NewField("Nested", schema.ArrayOf(schema.RecordOf(deep))),
	)

	_, err := binding.Build(newCtx(t), env)
	require.Error(t, err)

	var codes []thmerr.ErrCode
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	for _, e := range joined.Unwrap() {
		codes = append(codes, thmerr.CodeOf(e))
	}
	assert.Equal(t, []thmerr.ErrCode{thmerr.UnsupportedType, thmerr.UnsupportedNesting}, codes)
	assert.Contains(t, err.Error(), "Env_Nested_Points")
	assert.NotContains(t, err.Error(), "Env_Nested_Values")
}

func TestBuildElementArrays(t *testing.T) {
	item := schema.NewEnv("Item",
		schema.NewField("Weight", schema.Int32),
		schema.NewField("Tags", schema.ArrayOf(schema.Int32)),
		schema.NewField("Words", schema.Sized(schema.String, 2)),
	)
	env := schema.NewEnv("Env",
		schema.NewField("Items", schema.ArrayOf(schema.RecordOf(item))),
		schema.NewField("Grid", schema.ArrayOf(schema.RecordOf(item), 2)),
	)

	b, err := binding.Build(newCtx(t), env)
	require.NoError(t, err)

	var got []string
	for _, l := range b.Leaves() {
		got = append(got, l.Path()+":"+l.Term.Sort().String())
	}
	assert.Equal(t, []string{
		"Env_Items_Weight:Array[Int]Int",
		"Env_Items_Tags:Array[Int,Int]Int",
		"Env_Items_Words:Array[Int,String]BitVec16",
		"Env_Grid_Weight:Array[Int,Int]Int",
		"Env_Grid_Tags:Array[Int,Int,Int]Int",
		"Env_Grid_Words:Array[Int,Int,String]BitVec16",
	}, got)

	node, ok := b.Lookup("Grid", "Tags")
	require.True(t, ok)
	leaf := node.(*binding.Leaf)
	assert.True(t, leaf.Elem)
	assert.Equal(t, 3, leaf.Rank)
	assert.Equal(t, schema.KindInt32, leaf.ScalarType().Kind)
}

type tree struct {
	Value int32
	Kids  []tree
}

type chain struct {
	Value int32
	Next  *chain
}

func TestBuildRejectsRecursiveTypes(t *testing.T) {
	for name, env := range map[string]*schema.Env{
		"through a slice":   schema.Derive[tree](),
		"through a pointer": schema.Derive[chain](),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := binding.Build(newCtx(t), env)
			assert.Equal(t, thmerr.UnsupportedNesting, thmerr.CodeOf(err))
		})
	}
}

type mapped struct{ Celsius float64 }

func TestBuildUsesRegularTypeOfMappings(t *testing.T) {
	m := schema.MapVia[mapped, float64](schema.Float64, func(f float64) mapped { return mapped{f} }, nil)
	env := schema.NewEnv("Env", schema.Mapped("Temp", m))
	b, err := binding.Build(newCtx(t), env)
	require.NoError(t, err)
	require.Len(t, b.Leaves(), 1)
	assert.Equal(t, smt.Real, b.Leaves()[0].Term.Sort())
}
