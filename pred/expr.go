// Package pred is the predicate AST theorems are written in.
//
// A predicate is a boolean Expr closing over exactly one Param, the
// environment being solved for. Values the predicate closes over from the
// host appear as Captured roots and are evaluated eagerly.
package pred

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/cottand/theorem/schema"
)

var (
	_ Expr = (*Binary)(nil)
	_ Expr = (*Unary)(nil)
	_ Expr = (*Member)(nil)
	_ Expr = (*Const)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Index)(nil)
	_ Expr = (*Convert)(nil)
	_ Expr = (*Param)(nil)
	_ Expr = (*Captured)(nil)
	_ Expr = (*Name)(nil)
	_ Expr = (*Lambda)(nil)
)

// Expr is the base for all predicate expressions.
//
// The following expressions are supported:
//
//	Binary:    binary operator
//	Unary:     unary operator
//	Member:    field access
//	Const:     host literal
//	Call:      named call, optionally on a receiver
//	Index:     array indexing, possibly with several indices
//	Convert:   conversion to a semantic type
//	Param:     the predicate's formal parameter
//	Captured:  a named host value the predicate closes over
//	Name:      bare reference to an environment field
//	Lambda:    single-parameter function, only valid as a select argument
type Expr interface {
	// ExprName is the Name of the syntax-type of the expression.
	ExprName() string
	// Describe is what to call this expression in error messages
	Describe() string

	// Transform should, in order:
	//  - copy the expression
	//  - call Transform(f) on any child expressions (thus copying them too)
	//  - call f on this Expr
	Transform(f func(Expr) Expr) Expr
	// Hash is structural: two expressions with equal hashes are considered the same tree
	Hash() uint64
}

type Op int

const (
	OpInvalid Op = iota
	OpAnd
	OpOr
	OpXor
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpPow
	OpNeg
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpXor:
		return "^^"
	case OpNot:
		return "!"
	case OpAdd:
		return "+"
	case OpSub, OpNeg:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpRem:
		return "%"
	case OpPow:
		return "**"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	}
	return "?"
}

func (o Op) IsLogical() bool    { return o == OpAnd || o == OpOr || o == OpXor || o == OpNot }
func (o Op) IsArithmetic() bool { return o >= OpAdd && o <= OpNeg }
func (o Op) IsRelational() bool { return o >= OpLt && o <= OpNe }

// precedence is used when showing expressions
func (o Op) precedence() int16 {
	switch o {
	case OpOr:
		return 1
	case OpXor:
		return 2
	case OpAnd:
		return 3
	case OpEq, OpNe:
		return 4
	case OpLt, OpLe, OpGt, OpGe:
		return 5
	case OpAdd, OpSub:
		return 6
	case OpMul, OpDiv, OpRem:
		return 7
	case OpPow:
		return 8
	}
	return 9
}

type Binary struct {
	Op          Op
	Left, Right Expr
	// Checked marks overflow-checked arithmetic; it compiles like unchecked arithmetic
	Checked bool
}

type Unary struct {
	Op      Op
	X       Expr
	Checked bool
}

type Member struct {
	X    Expr
	Name string
}

type Const struct {
	Value any
}

// Call applies the function identified by Fn. Recv is set for calls in
// method position, such as the generated get_X accessors.
type Call struct {
	Fn   string
	Recv Expr
	Args []Expr
}

type Index struct {
	X       Expr
	Indices []Expr
}

type Convert struct {
	X  Expr
	To schema.Type
}

type Param struct {
	Name string
}

type Captured struct {
	Name  string
	Value any
}

type Name struct {
	Name string
}

type Lambda struct {
	Param string
	Body  Expr
}

func (e *Binary) ExprName() string   { return "Binary" }
func (e *Unary) ExprName() string    { return "Unary" }
func (e *Member) ExprName() string   { return "Member" }
func (e *Const) ExprName() string    { return "Const" }
func (e *Call) ExprName() string     { return "Call" }
func (e *Index) ExprName() string    { return "Index" }
func (e *Convert) ExprName() string  { return "Convert" }
func (e *Param) ExprName() string    { return "Param" }
func (e *Captured) ExprName() string { return "Captured" }
func (e *Name) ExprName() string     { return "Name" }
func (e *Lambda) ExprName() string   { return "Lambda" }

func (e *Binary) Describe() string   { return "binary " + e.Op.String() + " expression" }
func (e *Unary) Describe() string    { return "unary " + e.Op.String() + " expression" }
func (e *Member) Describe() string   { return "member access" }
func (e *Const) Describe() string    { return fmt.Sprintf("%T literal", e.Value) }
func (e *Call) Describe() string     { return "call to " + e.Fn }
func (e *Index) Describe() string    { return "index expression" }
func (e *Convert) Describe() string  { return "conversion to " + e.To.String() }
func (e *Param) Describe() string    { return "parameter" }
func (e *Captured) Describe() string { return "captured value" }
func (e *Name) Describe() string     { return "name" }
func (e *Lambda) Describe() string   { return "lambda" }

func (e *Binary) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.Left = e.Left.Transform(f)
	cp.Right = e.Right.Transform(f)
	return f(&cp)
}

func (e *Unary) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.X = e.X.Transform(f)
	return f(&cp)
}

func (e *Member) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.X = e.X.Transform(f)
	return f(&cp)
}

func (e *Const) Transform(f func(Expr) Expr) Expr {
	cp := *e
	return f(&cp)
}

func (e *Call) Transform(f func(Expr) Expr) Expr {
	cp := *e
	if e.Recv != nil {
		cp.Recv = e.Recv.Transform(f)
	}
	cp.Args = make([]Expr, len(e.Args))
	for i, arg := range e.Args {
		cp.Args[i] = arg.Transform(f)
	}
	return f(&cp)
}

func (e *Index) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.X = e.X.Transform(f)
	cp.Indices = make([]Expr, len(e.Indices))
	for i, idx := range e.Indices {
		cp.Indices[i] = idx.Transform(f)
	}
	return f(&cp)
}

func (e *Convert) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.X = e.X.Transform(f)
	return f(&cp)
}

func (e *Param) Transform(f func(Expr) Expr) Expr {
	cp := *e
	return f(&cp)
}

func (e *Captured) Transform(f func(Expr) Expr) Expr {
	cp := *e
	return f(&cp)
}

func (e *Name) Transform(f func(Expr) Expr) Expr {
	cp := *e
	return f(&cp)
}

func (e *Lambda) Transform(f func(Expr) Expr) Expr {
	cp := *e
	cp.Body = e.Body.Transform(f)
	return f(&cp)
}

func hashOf(name string, strs []string, children ...Expr) uint64 {
	h := fnv.New64a()
	arr := []byte(name)
	for _, s := range strs {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	for _, child := range children {
		if child != nil {
			arr = binary.LittleEndian.AppendUint64(arr, child.Hash())
		} else {
			arr = append(arr, 0)
		}
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func (e *Binary) Hash() uint64 {
	return hashOf("Binary", []string{e.Op.String(), fmt.Sprint(e.Checked)}, e.Left, e.Right)
}

func (e *Unary) Hash() uint64 {
	return hashOf("Unary", []string{e.Op.String(), fmt.Sprint(e.Checked)}, e.X)
}

func (e *Member) Hash() uint64 {
	return hashOf("Member", []string{e.Name}, e.X)
}

// Hash returns a hash value for the Const, based on the type and printed form of its value
func (e *Const) Hash() uint64 {
	return hashOf("Const", []string{fmt.Sprintf("%T", e.Value), fmt.Sprintf("%v", e.Value)})
}

func (e *Call) Hash() uint64 {
	children := append([]Expr{e.Recv}, e.Args...)
	return hashOf("Call", []string{e.Fn, fmt.Sprint(len(e.Args))}, children...)
}

func (e *Index) Hash() uint64 {
	return hashOf("Index", []string{fmt.Sprint(len(e.Indices))}, append([]Expr{e.X}, e.Indices...)...)
}

func (e *Convert) Hash() uint64 {
	return hashOf("Convert", []string{e.To.String()}, e.X)
}

func (e *Param) Hash() uint64 {
	return hashOf("Param", []string{e.Name})
}

// Hash returns a hash value for the Captured, based on its name and the type and printed form of its value
func (e *Captured) Hash() uint64 {
	return hashOf("Captured", []string{e.Name, fmt.Sprintf("%T", e.Value), fmt.Sprintf("%v", e.Value)})
}

func (e *Name) Hash() uint64 {
	return hashOf("Name", []string{e.Name})
}

func (e *Lambda) Hash() uint64 {
	return hashOf("Lambda", []string{e.Param}, e.Body)
}

// Same reports whether a and b are structurally the same tree
func Same(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Hash() == b.Hash()
}

// References reports whether e mentions the parameter called param
// outside of lambdas rebinding that name
func References(e Expr, param string) bool {
	found := false
	walk(e, func(e Expr) bool {
		switch e := e.(type) {
		case *Param:
			if e.Name == param {
				found = true
			}
		case *Name:
			found = true
		case *Lambda:
			if e.Param == param {
				return false
			}
		}
		return !found
	})
	return found
}

// walk visits e and its children top-down while visit returns true
func walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch e := e.(type) {
	case *Binary:
		walk(e.Left, visit)
		walk(e.Right, visit)
	case *Unary:
		walk(e.X, visit)
	case *Member:
		walk(e.X, visit)
	case *Call:
		walk(e.Recv, visit)
		for _, arg := range e.Args {
			walk(arg, visit)
		}
	case *Index:
		walk(e.X, visit)
		for _, idx := range e.Indices {
			walk(idx, visit)
		}
	case *Convert:
		walk(e.X, visit)
	case *Lambda:
		walk(e.Body, visit)
	}
}
