// Package finite is an in-process engine that decides formulas by searching
// finite domains.
//
// Purely boolean formulas are handed to a SAT solver. Anything else is
// decided by backtracking over candidate values for every constant, with
// domains derived from the literals and bounds found in the assertions. A
// satisfying assignment found this way is always a model; an exhausted
// search is only reported as unsat when every domain was complete.
package finite

import (
	"fmt"
	"math/big"

	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/smt"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "finite")

func init() {
	smt.Register(New())
}

// Engine opens finite contexts
type Engine struct {
	// IntRange is the half-width of the default domain of unbounded integers
	IntRange int64
	// MaxDomain caps the number of candidates enumerated for one constant
	MaxDomain int
}

func New() *Engine {
	return &Engine{IntRange: 16, MaxDomain: 1 << 16}
}

func (e *Engine) Name() string { return "finite" }

func (e *Engine) NewContext() (smt.Context, error) {
	return &Context{engine: e, consts: map[string]*term{}}, nil
}

var _ smt.Context = (*Context)(nil)
var _ smt.ExactRationals = (*Context)(nil)

type Context struct {
	engine *Engine
	err    error
	consts map[string]*term
	closed bool
}

// ExactRationals is true: literals are kept as exact rationals
func (c *Context) ExactRationals() bool { return true }

func (c *Context) Err() error { return c.err }

func (c *Context) Close() error {
	c.closed = true
	return nil
}

// fail records the first construction error and returns a placeholder of sort s
func (c *Context) fail(s smt.Sort, format string, args ...any) *term {
	if c.err == nil {
		c.err = errors.Errorf(format, args...)
		logger.Debug("construction failed", "err", c.err)
	}
	return &term{op: opInvalid, sort: s}
}

func (c *Context) unwrap(ts ...smt.Term) ([]*term, bool) {
	out := make([]*term, len(ts))
	for i, t := range ts {
		tt, ok := t.(*term)
		if !ok || tt == nil {
			c.fail(smt.Bool, "term %v does not belong to the finite engine", t)
			return nil, false
		}
		if tt.op == opInvalid {
			return nil, false
		}
		out[i] = tt
	}
	return out, true
}

func (c *Context) Const(name string, s smt.Sort) smt.Term {
	if existing, ok := c.consts[name]; ok {
		if !existing.sort.Equal(s) {
			return c.fail(s, "constant %s redeclared with sort %v, was %v", name, s, existing.sort)
		}
		return existing
	}
	switch s.Kind {
	case smt.InvalidSort:
		return c.fail(s, "constant %s has no sort", name)
	case smt.ArraySort:
		if s.Range == nil || len(s.Domain) == 0 {
			return c.fail(s, "constant %s has an incomplete array sort", name)
		}
	}
	t := &term{op: opConst, sort: s, name: name}
	c.consts[name] = t
	return t
}

func lit(s smt.Sort, v any) *term { return &term{op: opLit, sort: s, lit: v} }

func (c *Context) BoolVal(v bool) smt.Term        { return lit(smt.Bool, v) }
func (c *Context) IntVal(v int64) smt.Term        { return lit(smt.Int, big.NewInt(v)) }
func (c *Context) BigIntVal(v *big.Int) smt.Term  { return lit(smt.Int, new(big.Int).Set(v)) }
func (c *Context) RatVal(v *big.Rat) smt.Term     { return lit(smt.Real, new(big.Rat).Set(v)) }
func (c *Context) StringVal(v string) smt.Term    { return lit(smt.String, v) }
func (c *Context) BVVal(v int64, w uint) smt.Term { return lit(smt.BitVec(w), wrap(big.NewInt(v), w)) }

func (c *Context) app(o op, s smt.Sort, args []*term) *term {
	return &term{op: o, sort: s, args: args}
}

func (c *Context) boolean(o op, ts []smt.Term) smt.Term {
	args, ok := c.unwrap(ts...)
	if !ok {
		return &term{op: opInvalid, sort: smt.Bool}
	}
	for _, a := range args {
		if a.sort.Kind != smt.BoolSort {
			return c.fail(smt.Bool, "%s of non-boolean %v", opNames[o], a)
		}
	}
	return c.app(o, smt.Bool, args)
}

func (c *Context) And(ts ...smt.Term) smt.Term { return c.boolean(opAnd, ts) }
func (c *Context) Or(ts ...smt.Term) smt.Term  { return c.boolean(opOr, ts) }
func (c *Context) Xor(a, b smt.Term) smt.Term  { return c.boolean(opXor, []smt.Term{a, b}) }
func (c *Context) Not(a smt.Term) smt.Term     { return c.boolean(opNot, []smt.Term{a}) }

func (c *Context) arith(o op, a, b smt.Term) smt.Term {
	args, ok := c.unwrap(a, b)
	if !ok {
		return &term{op: opInvalid, sort: smt.Int}
	}
	l, r := args[0], args[1]
	if !l.sort.Equal(r.sort) || !l.sort.IsNumeric() {
		return c.fail(l.sort, "%s of %v and %v", opNames[o], l.sort, r.sort)
	}
	if o == opRem && l.sort.Kind != smt.IntSort && l.sort.Kind != smt.BitVecSort {
		return c.fail(l.sort, "rem of %v", l.sort)
	}
	return c.app(o, l.sort, args)
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
		return &term{op: opInvalid, sort: smt.Int}
	}
	if !args[0].sort.IsNumeric() {
		return c.fail(args[0].sort, "neg of %v", args[0].sort)
	}
	return c.app(opNeg, args[0].sort, args)
}

func (c *Context) compare(o op, a, b smt.Term) smt.Term {
	args, ok := c.unwrap(a, b)
	if !ok {
		return &term{op: opInvalid, sort: smt.Bool}
	}
	l, r := args[0], args[1]
	if !l.sort.Equal(r.sort) {
		return c.fail(smt.Bool, "%s of %v and %v", opNames[o], l.sort, r.sort)
	}
	if o != opEq && !l.sort.IsNumeric() {
		return c.fail(smt.Bool, "%s of %v", opNames[o], l.sort)
	}
	return c.app(o, smt.Bool, args)
}

func (c *Context) Lt(a, b smt.Term) smt.Term { return c.compare(opLt, a, b) }
func (c *Context) Le(a, b smt.Term) smt.Term { return c.compare(opLe, a, b) }
func (c *Context) Gt(a, b smt.Term) smt.Term { return c.compare(opGt, a, b) }
func (c *Context) Ge(a, b smt.Term) smt.Term { return c.compare(opGe, a, b) }
func (c *Context) Eq(a, b smt.Term) smt.Term { return c.compare(opEq, a, b) }

func (c *Context) Distinct(ts ...smt.Term) smt.Term {
	args, ok := c.unwrap(ts...)
	if !ok {
		return &term{op: opInvalid, sort: smt.Bool}
	}
	if len(args) < 2 {
		return lit(smt.Bool, true)
	}
	for _, a := range args[1:] {
		if !a.sort.Equal(args[0].sort) {
			return c.fail(smt.Bool, "distinct over %v and %v", args[0].sort, a.sort)
		}
	}
	return c.app(opDistinct, smt.Bool, args)
}

func (c *Context) Select(array smt.Term, index ...smt.Term) smt.Term {
	args, ok := c.unwrap(append([]smt.Term{array}, index...)...)
	if !ok {
		return &term{op: opInvalid, sort: smt.Int}
	}
	arr := args[0]
	if arr.sort.Kind != smt.ArraySort || arr.op != opConst {
		return c.fail(smt.Int, "select from %v", arr)
	}
	if len(index) != len(arr.sort.Domain) {
		return c.fail(*arr.sort.Range, "select from %v with %d indices", arr.sort, len(index))
	}
	for i, idx := range args[1:] {
		if !idx.sort.Equal(arr.sort.Domain[i]) {
			return c.fail(*arr.sort.Range, "index %d of %s has sort %v, want %v", i, arr.name, idx.sort, arr.sort.Domain[i])
		}
	}
	return c.app(opSelect, *arr.sort.Range, args)
}

func (c *Context) Coerce(t smt.Term, to smt.Sort) smt.Term {
	args, ok := c.unwrap(t)
	if !ok {
		return &term{op: opInvalid, sort: to}
	}
	if args[0].sort.Equal(to) {
		return args[0]
	}
	if !args[0].sort.IsNumeric() || !to.IsNumeric() {
		return c.fail(to, "cannot coerce %v to %v", args[0].sort, to)
	}
	return c.app(opCoerce, to, args)
}

func (c *Context) NewSolver() smt.Solver {
	return &Solver{ctx: c}
}

func (c *Context) NewOptimizer() (smt.Optimizer, error) {
	return &Optimizer{Solver: Solver{ctx: c}}, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("finite context with %d constants", len(c.consts))
}
