// Package construct has shorthands for building predicates by hand
package construct

import (
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/schema"
)

// Parameter and values

func Param(name string) *pred.Param { return &pred.Param{Name: name} }

// Field access: `x.name`, or `x.a.b.c` for several names
func Field(x pred.Expr, names ...string) pred.Expr {
	for _, name := range names {
		x = &pred.Member{X: x, Name: name}
	}
	return x
}

// Bare reference to an environment field
func Name(name string) *pred.Name { return &pred.Name{Name: name} }

// Host literal
func Lit(v any) *pred.Const { return &pred.Const{Value: v} }

// Host value the predicate closes over
func Capture(name string, v any) *pred.Captured { return &pred.Captured{Name: name, Value: v} }

// Logic

func And(a, b pred.Expr, more ...pred.Expr) pred.Expr {
	out := binary(pred.OpAnd, a, b)
	for _, m := range more {
		out = binary(pred.OpAnd, out, m)
	}
	return out
}

func Or(a, b pred.Expr, more ...pred.Expr) pred.Expr {
	out := binary(pred.OpOr, a, b)
	for _, m := range more {
		out = binary(pred.OpOr, out, m)
	}
	return out
}

func Xor(a, b pred.Expr) pred.Expr { return binary(pred.OpXor, a, b) }
func Not(x pred.Expr) pred.Expr    { return &pred.Unary{Op: pred.OpNot, X: x} }

// Arithmetic

func Add(a, b pred.Expr) pred.Expr { return binary(pred.OpAdd, a, b) }
func Sub(a, b pred.Expr) pred.Expr { return binary(pred.OpSub, a, b) }
func Mul(a, b pred.Expr) pred.Expr { return binary(pred.OpMul, a, b) }
func Div(a, b pred.Expr) pred.Expr { return binary(pred.OpDiv, a, b) }
func Rem(a, b pred.Expr) pred.Expr { return binary(pred.OpRem, a, b) }
func Pow(a, b pred.Expr) pred.Expr { return binary(pred.OpPow, a, b) }
func Neg(x pred.Expr) pred.Expr    { return &pred.Unary{Op: pred.OpNeg, X: x} }

// Overflow-checked addition: compiles like Add
func CheckedAdd(a, b pred.Expr) pred.Expr {
	return &pred.Binary{Op: pred.OpAdd, Left: a, Right: b, Checked: true}
}

// Relations

func Lt(a, b pred.Expr) pred.Expr { return binary(pred.OpLt, a, b) }
func Le(a, b pred.Expr) pred.Expr { return binary(pred.OpLe, a, b) }
func Gt(a, b pred.Expr) pred.Expr { return binary(pred.OpGt, a, b) }
func Ge(a, b pred.Expr) pred.Expr { return binary(pred.OpGe, a, b) }
func Eq(a, b pred.Expr) pred.Expr { return binary(pred.OpEq, a, b) }
func Ne(a, b pred.Expr) pred.Expr { return binary(pred.OpNe, a, b) }

// Calls

func Call(fn string, args ...pred.Expr) *pred.Call { return &pred.Call{Fn: fn, Args: args} }

// Method-position call: `recv.fn(args)`
func Method(recv pred.Expr, fn string, args ...pred.Expr) *pred.Call {
	return &pred.Call{Fn: fn, Recv: recv, Args: args}
}

// All operands pairwise different: `distinct(a, b, ...)`
func Distinct(xs ...pred.Expr) *pred.Call { return Call("distinct", xs...) }

// Projection of a host collection: `select(coll, param => body)`
func Select(coll pred.Expr, param string, body pred.Expr) *pred.Call {
	return Call("select", coll, &pred.Lambda{Param: param, Body: body})
}

func Sqrt(x pred.Expr) *pred.Call { return Call("sqrt", x) }

// Array element: `x[i, j, ...]`
func Index(x pred.Expr, indices ...pred.Expr) *pred.Index {
	return &pred.Index{X: x, Indices: indices}
}

func Convert(x pred.Expr, to schema.Type) *pred.Convert { return &pred.Convert{X: x, To: to} }

func binary(op pred.Op, a, b pred.Expr) *pred.Binary {
	return &pred.Binary{Op: op, Left: a, Right: b}
}
