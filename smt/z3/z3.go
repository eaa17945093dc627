//go:build z3

// Package z3 runs theorems on libz3. It is built with the z3 build tag and
// needs the Z3 headers and library where cgo can find them.
package z3

/*
#cgo LDFLAGS: -lz3
#include <stdlib.h>
#include <z3.h>
*/
import "C"

import (
	"fmt"
	"math/big"
	"unsafe"

	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/smt"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "z3")

func init() {
	smt.Register(New())
}

type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "z3" }

func (e *Engine) NewContext() (smt.Context, error) {
	cfg := C.Z3_mk_config()
	defer C.Z3_del_config(cfg)
	setParam(cfg, "model", "true")

	raw := C.Z3_mk_context(cfg)
	if raw == nil {
		return nil, errors.New("z3: could not create a context")
	}
	C.Z3_set_error_handler(raw, nil)
	return &Context{raw: raw}, nil
}

func setParam(cfg C.Z3_config, key, value string) {
	k, v := C.CString(key), C.CString(value)
	defer C.free(unsafe.Pointer(k))
	defer C.free(unsafe.Pointer(v))
	C.Z3_set_param_value(cfg, k, v)
}

// Context owns a Z3_context. Terms live as long as the context does.
type Context struct {
	raw    C.Z3_context
	err    error
	closed bool
}

var _ smt.Context = (*Context)(nil)

type term struct {
	ast  C.Z3_ast
	sort smt.Sort
}

func (t *term) Sort() smt.Sort { return t.sort }

func (c *Context) ExactRationals() bool { return true }

func (c *Context) Err() error { return c.err }

func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	C.Z3_del_context(c.raw)
	return nil
}

// check records the error of the last API call, if any
func (c *Context) check(op string) bool {
	code := C.Z3_get_error_code(c.raw)
	if code == C.Z3_OK {
		return true
	}
	if c.err == nil {
		c.err = errors.Errorf("z3: %s: %s", op, C.GoString(C.Z3_get_error_msg(c.raw, code)))
	}
	return false
}

func (c *Context) fail(s smt.Sort, format string, args ...any) smt.Term {
	if c.err == nil {
		c.err = errors.Errorf(format, args...)
	}
	return &term{sort: s}
}

func (c *Context) make(op string, s smt.Sort, ast C.Z3_ast) smt.Term {
	if !c.check(op) || ast == nil {
		return &term{sort: s}
	}
	return &term{ast: ast, sort: s}
}

func (c *Context) unwrap(ts ...smt.Term) ([]*term, bool) {
	out := make([]*term, len(ts))
	for i, t := range ts {
		tt, ok := t.(*term)
		if !ok {
			c.fail(smt.Bool, "term %v was not built by z3", t)
			return nil, false
		}
		if tt.ast == nil {
			return nil, false
		}
		out[i] = tt
	}
	return out, true
}

func asts(ts []*term) []C.Z3_ast {
	out := make([]C.Z3_ast, len(ts))
	for i, t := range ts {
		out[i] = t.ast
	}
	return out
}

func (c *Context) sort(s smt.Sort) (C.Z3_sort, error) {
	switch s.Kind {
	case smt.BoolSort:
		return C.Z3_mk_bool_sort(c.raw), nil
	case smt.IntSort:
		return C.Z3_mk_int_sort(c.raw), nil
	case smt.RealSort:
		return C.Z3_mk_real_sort(c.raw), nil
	case smt.StringSort:
		return C.Z3_mk_string_sort(c.raw), nil
	case smt.BitVecSort:
		return C.Z3_mk_bv_sort(c.raw, C.uint(s.Width)), nil
	case smt.FloatSort:
		switch s.Width {
		case 32:
			return C.Z3_mk_fpa_sort_32(c.raw), nil
		case 64:
			return C.Z3_mk_fpa_sort_64(c.raw), nil
		}
	case smt.ArraySort:
		rng, err := c.sort(*s.Range)
		if err != nil {
			return nil, err
		}
		domain := make([]C.Z3_sort, len(s.Domain))
		for i, d := range s.Domain {
			if domain[i], err = c.sort(d); err != nil {
				return nil, err
			}
		}
		if len(domain) == 1 {
			return C.Z3_mk_array_sort(c.raw, domain[0], rng), nil
		}
		return C.Z3_mk_array_sort_n(c.raw, C.uint(len(domain)), &domain[0], rng), nil
	}
	return nil, errors.Errorf("z3: no sort for %v", s)
}

func (c *Context) Const(name string, s smt.Sort) smt.Term {
	zs, err := c.sort(s)
	if err != nil {
		return c.fail(s, "%v", err)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(c.raw, cname)
	return c.make("Z3_mk_const", s, C.Z3_mk_const(c.raw, sym, zs))
}

func (c *Context) BoolVal(v bool) smt.Term {
	if v {
		return c.make("Z3_mk_true", smt.Bool, C.Z3_mk_true(c.raw))
	}
	return c.make("Z3_mk_false", smt.Bool, C.Z3_mk_false(c.raw))
}

func (c *Context) numeral(s smt.Sort, text string) smt.Term {
	zs, err := c.sort(s)
	if err != nil {
		return c.fail(s, "%v", err)
	}
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	return c.make("Z3_mk_numeral", s, C.Z3_mk_numeral(c.raw, ctext, zs))
}

func (c *Context) IntVal(v int64) smt.Term {
	return c.make("Z3_mk_int64", smt.Int, C.Z3_mk_int64(c.raw, C.int64_t(v), C.Z3_mk_int_sort(c.raw)))
}

func (c *Context) BigIntVal(v *big.Int) smt.Term { return c.numeral(smt.Int, v.String()) }

func (c *Context) RatVal(v *big.Rat) smt.Term { return c.numeral(smt.Real, v.RatString()) }

func (c *Context) StringVal(v string) smt.Term {
	cs := C.CString(v)
	defer C.free(unsafe.Pointer(cs))
	return c.make("Z3_mk_lstring", smt.String, C.Z3_mk_lstring(c.raw, C.uint(len(v)), cs))
}

func (c *Context) BVVal(v int64, width uint) smt.Term {
	s := smt.BitVec(width)
	return c.make("Z3_mk_int64", s, C.Z3_mk_int64(c.raw, C.int64_t(v), C.Z3_mk_bv_sort(c.raw, C.uint(width))))
}

func (c *Context) boolean(name string, ts []smt.Term) ([]*term, bool) {
	args, ok := c.unwrap(ts...)
	if !ok {
		return nil, false
	}
	for _, a := range args {
		if a.sort.Kind != smt.BoolSort {
			c.fail(smt.Bool, "%s of %v", name, a.sort)
			return nil, false
		}
	}
	return args, true
}

func (c *Context) And(ts ...smt.Term) smt.Term {
	if len(ts) == 0 {
		return c.BoolVal(true)
	}
	args, ok := c.boolean("and", ts)
	if !ok {
		return &term{sort: smt.Bool}
	}
	a := asts(args)
	return c.make("Z3_mk_and", smt.Bool, C.Z3_mk_and(c.raw, C.uint(len(a)), &a[0]))
}

func (c *Context) Or(ts ...smt.Term) smt.Term {
	if len(ts) == 0 {
		return c.BoolVal(false)
	}
	args, ok := c.boolean("or", ts)
	if !ok {
		return &term{sort: smt.Bool}
	}
	a := asts(args)
	return c.make("Z3_mk_or", smt.Bool, C.Z3_mk_or(c.raw, C.uint(len(a)), &a[0]))
}

func (c *Context) Xor(a, b smt.Term) smt.Term {
	args, ok := c.boolean("xor", []smt.Term{a, b})
	if !ok {
		return &term{sort: smt.Bool}
	}
	return c.make("Z3_mk_xor", smt.Bool, C.Z3_mk_xor(c.raw, args[0].ast, args[1].ast))
}

func (c *Context) Not(a smt.Term) smt.Term {
	args, ok := c.boolean("not", []smt.Term{a})
	if !ok {
		return &term{sort: smt.Bool}
	}
	return c.make("Z3_mk_not", smt.Bool, C.Z3_mk_not(c.raw, args[0].ast))
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opRem
	opPow
)

var arithNames = [...]string{"add", "sub", "mul", "div", "rem", "pow"}

func (c *Context) rounding() C.Z3_ast {
	return C.Z3_mk_fpa_round_nearest_ties_to_even(c.raw)
}

func (c *Context) arith(o arithOp, a, b smt.Term) smt.Term {
	args, ok := c.unwrap(a, b)
	if !ok {
		return &term{sort: smt.Int}
	}
	l, r := args[0], args[1]
	s := l.sort
	if !s.Equal(r.sort) || !s.IsNumeric() {
		return c.fail(s, "%s of %v and %v", arithNames[o], s, r.sort)
	}
	name := "Z3_mk_" + arithNames[o]
	pair := []C.Z3_ast{l.ast, r.ast}
	switch s.Kind {
	case smt.IntSort, smt.RealSort:
		switch o {
		case opAdd:
			return c.make(name, s, C.Z3_mk_add(c.raw, 2, &pair[0]))
		case opSub:
			return c.make(name, s, C.Z3_mk_sub(c.raw, 2, &pair[0]))
		case opMul:
			return c.make(name, s, C.Z3_mk_mul(c.raw, 2, &pair[0]))
		case opDiv:
			return c.make(name, s, C.Z3_mk_div(c.raw, l.ast, r.ast))
		case opRem:
			if s.Kind != smt.IntSort {
				return c.fail(s, "rem of %v", s)
			}
			// Euclidean, as in the finite engine
			return c.make(name, s, C.Z3_mk_mod(c.raw, l.ast, r.ast))
		case opPow:
			return c.make(name, s, C.Z3_mk_power(c.raw, l.ast, r.ast))
		}
	case smt.BitVecSort:
		switch o {
		case opAdd:
			return c.make(name, s, C.Z3_mk_bvadd(c.raw, l.ast, r.ast))
		case opSub:
			return c.make(name, s, C.Z3_mk_bvsub(c.raw, l.ast, r.ast))
		case opMul:
			return c.make(name, s, C.Z3_mk_bvmul(c.raw, l.ast, r.ast))
		case opDiv:
			return c.make(name, s, C.Z3_mk_bvsdiv(c.raw, l.ast, r.ast))
		case opRem:
			return c.make(name, s, C.Z3_mk_bvsmod(c.raw, l.ast, r.ast))
		}
	case smt.FloatSort:
		rm := c.rounding()
		switch o {
		case opAdd:
			return c.make(name, s, C.Z3_mk_fpa_add(c.raw, rm, l.ast, r.ast))
		case opSub:
			return c.make(name, s, C.Z3_mk_fpa_sub(c.raw, rm, l.ast, r.ast))
		case opMul:
			return c.make(name, s, C.Z3_mk_fpa_mul(c.raw, rm, l.ast, r.ast))
		case opDiv:
			return c.make(name, s, C.Z3_mk_fpa_div(c.raw, rm, l.ast, r.ast))
		}
	}
	return c.fail(s, "%s of %v", arithNames[o], s)
}

func (c *Context) Add(a, b smt.Term) smt.Term { return c.arith(opAdd, a, b) }
func (c *Context) Sub(a, b smt.Term) smt.Term { return c.arith(opSub, a, b) }
func (c *Context) Mul(a, b smt.Term) smt.Term { return c.arith(opMul, a, b) }
func (c *Context) Div(a, b smt.Term) smt.Term { return c.arith(opDiv, a, b) }
func (c *Context) Rem(a, b smt.Term) smt.Term { return c.arith(opRem, a, b) }
func (c *Context) Pow(a, b smt.Term) smt.Term { return c.arith(opPow, a, b) }

func (c *Context) Neg(a smt.Term) smt.Term {
	args, ok := c.unwrap(a)
	if !ok {
		return &term{sort: smt.Int}
	}
	x := args[0]
	switch x.sort.Kind {
	case smt.IntSort, smt.RealSort:
		return c.make("Z3_mk_unary_minus", x.sort, C.Z3_mk_unary_minus(c.raw, x.ast))
	case smt.BitVecSort:
		return c.make("Z3_mk_bvneg", x.sort, C.Z3_mk_bvneg(c.raw, x.ast))
	case smt.FloatSort:
		return c.make("Z3_mk_fpa_neg", x.sort, C.Z3_mk_fpa_neg(c.raw, x.ast))
	}
	return c.fail(x.sort, "neg of %v", x.sort)
}

type cmpOp int

const (
	opLt cmpOp = iota
	opLe
	opGt
	opGe
)

var cmpNames = [...]string{"lt", "le", "gt", "ge"}

func (c *Context) compare(o cmpOp, a, b smt.Term) smt.Term {
	args, ok := c.unwrap(a, b)
	if !ok {
		return &term{sort: smt.Bool}
	}
	l, r := args[0], args[1]
	if !l.sort.Equal(r.sort) || !l.sort.IsNumeric() {
		return c.fail(smt.Bool, "%s of %v and %v", cmpNames[o], l.sort, r.sort)
	}
	name := "Z3_mk_" + cmpNames[o]
	x, y := l.ast, r.ast
	var ast C.Z3_ast
	switch l.sort.Kind {
	case smt.BitVecSort:
		switch o {
		case opLt:
			ast = C.Z3_mk_bvslt(c.raw, x, y)
		case opLe:
			ast = C.Z3_mk_bvsle(c.raw, x, y)
		case opGt:
			ast = C.Z3_mk_bvsgt(c.raw, x, y)
		case opGe:
			ast = C.Z3_mk_bvsge(c.raw, x, y)
		}
	case smt.FloatSort:
		switch o {
		case opLt:
			ast = C.Z3_mk_fpa_lt(c.raw, x, y)
		case opLe:
			ast = C.Z3_mk_fpa_leq(c.raw, x, y)
		case opGt:
			ast = C.Z3_mk_fpa_gt(c.raw, x, y)
		case opGe:
			ast = C.Z3_mk_fpa_geq(c.raw, x, y)
		}
	default:
		switch o {
		case opLt:
			ast = C.Z3_mk_lt(c.raw, x, y)
		case opLe:
			ast = C.Z3_mk_le(c.raw, x, y)
		case opGt:
			ast = C.Z3_mk_gt(c.raw, x, y)
		case opGe:
			ast = C.Z3_mk_ge(c.raw, x, y)
		}
	}
	return c.make(name, smt.Bool, ast)
}

func (c *Context) Lt(a, b smt.Term) smt.Term { return c.compare(opLt, a, b) }
func (c *Context) Le(a, b smt.Term) smt.Term { return c.compare(opLe, a, b) }
func (c *Context) Gt(a, b smt.Term) smt.Term { return c.compare(opGt, a, b) }
func (c *Context) Ge(a, b smt.Term) smt.Term { return c.compare(opGe, a, b) }

func (c *Context) Eq(a, b smt.Term) smt.Term {
	args, ok := c.unwrap(a, b)
	if !ok {
		return &term{sort: smt.Bool}
	}
	l, r := args[0], args[1]
	if !l.sort.Equal(r.sort) {
		return c.fail(smt.Bool, "eq of %v and %v", l.sort, r.sort)
	}
	if l.sort.Kind == smt.FloatSort {
		return c.make("Z3_mk_fpa_eq", smt.Bool, C.Z3_mk_fpa_eq(c.raw, l.ast, r.ast))
	}
	return c.make("Z3_mk_eq", smt.Bool, C.Z3_mk_eq(c.raw, l.ast, r.ast))
}

func (c *Context) Distinct(ts ...smt.Term) smt.Term {
	if len(ts) < 2 {
		return c.BoolVal(true)
	}
	args, ok := c.unwrap(ts...)
	if !ok {
		return &term{sort: smt.Bool}
	}
	for _, a := range args[1:] {
		if !a.sort.Equal(args[0].sort) {
			return c.fail(smt.Bool, "distinct over %v and %v", args[0].sort, a.sort)
		}
	}
	a := asts(args)
	return c.make("Z3_mk_distinct", smt.Bool, C.Z3_mk_distinct(c.raw, C.uint(len(a)), &a[0]))
}

func (c *Context) Select(array smt.Term, index ...smt.Term) smt.Term {
	args, ok := c.unwrap(append([]smt.Term{array}, index...)...)
	if !ok {
		return &term{sort: smt.Int}
	}
	arr := args[0]
	if arr.sort.Kind != smt.ArraySort {
		return c.fail(smt.Int, "select from %v", arr.sort)
	}
	rng := *arr.sort.Range
	if len(index) != len(arr.sort.Domain) {
		return c.fail(rng, "select from %v with %d indices", arr.sort, len(index))
	}
	for i, idx := range args[1:] {
		if !idx.sort.Equal(arr.sort.Domain[i]) {
			return c.fail(rng, "index %d has sort %v, want %v", i, idx.sort, arr.sort.Domain[i])
		}
	}
	if len(index) == 1 {
		return c.make("Z3_mk_select", rng, C.Z3_mk_select(c.raw, arr.ast, args[1].ast))
	}
	idx := asts(args[1:])
	return c.make("Z3_mk_select_n", rng, C.Z3_mk_select_n(c.raw, arr.ast, C.uint(len(idx)), &idx[0]))
}

func (c *Context) Coerce(t smt.Term, to smt.Sort) smt.Term {
	args, ok := c.unwrap(t)
	if !ok {
		return &term{sort: to}
	}
	x := args[0]
	if x.sort.Equal(to) {
		return x
	}
	if !x.sort.IsNumeric() || !to.IsNumeric() {
		return c.fail(to, "cannot coerce %v to %v", x.sort, to)
	}
	ast, err := c.coerce(x, to)
	if err != nil {
		return c.fail(to, "%v", err)
	}
	return c.make("coerce to "+to.String(), to, ast)
}

// coerce converts through Int and Real: Real to Int floors, Int to BitVec
// wraps, Float goes through its exact real value
func (c *Context) coerce(x *term, to smt.Sort) (C.Z3_ast, error) {
	from := x.sort
	switch {
	case from.Kind == smt.FloatSort && to.Kind == smt.FloatSort:
		zs, err := c.sort(to)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_fpa_to_fp_float(c.raw, c.rounding(), x.ast, zs), nil
	case from.Kind == smt.FloatSort:
		asReal := C.Z3_mk_fpa_to_real(c.raw, x.ast)
		return c.coerce(&term{ast: asReal, sort: smt.Real}, to)
	case to.Kind == smt.FloatSort:
		asReal := x
		if from.Kind != smt.RealSort {
			ast, err := c.coerce(x, smt.Real)
			if err != nil {
				return nil, err
			}
			asReal = &term{ast: ast, sort: smt.Real}
		}
		zs, err := c.sort(to)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_fpa_to_fp_real(c.raw, c.rounding(), asReal.ast, zs), nil
	}

	switch {
	case from.Kind == smt.IntSort && to.Kind == smt.RealSort:
		return C.Z3_mk_int2real(c.raw, x.ast), nil
	case from.Kind == smt.RealSort && to.Kind == smt.IntSort:
		return C.Z3_mk_real2int(c.raw, x.ast), nil
	case from.Kind == smt.BitVecSort && to.Kind == smt.IntSort:
		return C.Z3_mk_bv2int(c.raw, x.ast, C.bool(true)), nil
	case from.Kind == smt.IntSort && to.Kind == smt.BitVecSort:
		return C.Z3_mk_int2bv(c.raw, C.uint(to.Width), x.ast), nil
	case from.Kind == smt.BitVecSort:
		asInt := &term{ast: C.Z3_mk_bv2int(c.raw, x.ast, C.bool(true)), sort: smt.Int}
		return c.coerce(asInt, to)
	case to.Kind == smt.BitVecSort:
		asInt := &term{ast: C.Z3_mk_real2int(c.raw, x.ast), sort: smt.Int}
		return c.coerce(asInt, to)
	}
	return nil, fmt.Errorf("cannot coerce %v to %v", from, to)
}

func (c *Context) String() string { return "z3 context" }
