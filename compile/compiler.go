// Package compile translates predicates into engine terms over a Binding.
package compile

import (
	"fmt"
	"reflect"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/rewrite"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "compile")

type Option func(*Compiler)

// WithRewriters makes the compiler apply the predicate rewriters of r
func WithRewriters(r *rewrite.Resolved) Option {
	return func(c *Compiler) {
		c.rewriters = r
	}
}

func WithLiterals(l Literals) Option {
	return func(c *Compiler) {
		c.literals = l
	}
}

// WithFolding enables evaluating parameter-independent subtrees before compiling
func WithFolding(enabled bool) Option {
	return func(c *Compiler) {
		c.fold = enabled
	}
}

// Compiler compiles predicates over one parameter, bound to b, into terms of ctx.
// A Compiler lives as long as the Context it builds terms in.
type Compiler struct {
	ctx       smt.Context
	b         *binding.Binding
	param     string
	rewriters *rewrite.Resolved
	literals  Literals
	fold      bool
	ev        *pred.Evaluator
	mappings  map[reflect.Type]*schema.Mapping
}

func New(ctx smt.Context, b *binding.Binding, param string, opts ...Option) *Compiler {
	c := &Compiler{
		ctx:      ctx,
		b:        b,
		param:    param,
		mappings: map[reflect.Type]*schema.Mapping{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.literals = c.literals.resolve(ctx)
	c.ev = &pred.Evaluator{Rat: c.rat, Opaque: c.rewriters.Has}
	collectMappings(b.Env(), c.mappings)
	return c
}

func collectMappings(env *schema.Env, into map[reflect.Type]*schema.Mapping) {
	for _, f := range env.Fields {
		if f.Mapping != nil && f.Mapping.Domain != nil {
			into[f.Mapping.Domain] = f.Mapping
		}
		t := f.Regular()
		for t.Kind == schema.KindArray && t.Elem != nil {
			t = *t.Elem
		}
		if t.Kind == schema.KindRecord && t.Env != nil {
			collectMappings(t.Env, into)
		}
	}
}

// Evaluator is the evaluator the compiler folds with; it shares the
// compiler's literal policy
func (c *Compiler) Evaluator() *pred.Evaluator {
	return c.ev
}

// Compile translates a boolean predicate
func (c *Compiler) Compile(e pred.Expr) (smt.Term, error) {
	t, err := c.compile(e)
	if err != nil {
		return nil, err
	}
	if t.Sort().Kind != smt.BoolSort {
		return nil, thmerr.New(thmerr.NewUnsupportedExpression{
			Kind:   e.Describe(),
			Detail: fmt.Sprintf("constraint has sort %v, not Bool", t.Sort()),
		})
	}
	return t, nil
}

// CompileObjective translates a numeric expression to optimise
func (c *Compiler) CompileObjective(e pred.Expr) (smt.Term, error) {
	t, err := c.compile(e)
	if err != nil {
		return nil, err
	}
	switch t.Sort().Kind {
	case smt.IntSort, smt.RealSort:
		return t, nil
	}
	return nil, thmerr.New(thmerr.NewUnsupportedExpression{
		Kind:   e.Describe(),
		Detail: fmt.Sprintf("objective has sort %v, not a number", t.Sort()),
	})
}

func (c *Compiler) compile(e pred.Expr) (smt.Term, error) {
	if c.fold {
		e = c.ev.Fold(e, c.param)
	}
	logger.Debug("compiling", "expr", pred.LogValue(e), "fold", c.fold)
	t, err := c.visit(e)
	if err != nil {
		return nil, err
	}
	if err := c.ctx.Err(); err != nil {
		return nil, thmerr.New(thmerr.NewEngineFailure{Op: "compiling " + pred.ExprString(e), Reason: err.Error()})
	}
	return t, nil
}

func unsupported(e pred.Expr, detail string) error {
	return thmerr.New(thmerr.NewUnsupportedExpression{Kind: e.Describe(), Detail: detail})
}

func (c *Compiler) visit(e pred.Expr) (smt.Term, error) {
	switch e := e.(type) {
	case *pred.Binary:
		return c.binary(e)
	case *pred.Unary:
		return c.unary(e)
	case *pred.Const:
		return c.literal(e.Value)
	case *pred.Captured:
		return c.literal(e.Value)
	case *pred.Member, *pred.Index, *pred.Name:
		return c.chain(e)
	case *pred.Call:
		return c.call(e)
	case *pred.Convert:
		return c.convert(e)
	case *pred.Param:
		if e.Name != c.param {
			return nil, thmerr.New(thmerr.NewUnknownParameter{Name: e.Name, Expected: c.param})
		}
		return nil, unsupported(e, "the environment itself is not a value")
	case nil:
		return nil, thmerr.New(thmerr.NewUnsupportedExpression{Kind: "nil"})
	}
	return nil, unsupported(e, "")
}

func (c *Compiler) binary(e *pred.Binary) (smt.Term, error) {
	l, err := c.visit(e.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.visit(e.Right)
	if err != nil {
		return nil, err
	}

	switch {
	case e.Op.IsLogical():
		if l.Sort().Kind != smt.BoolSort || r.Sort().Kind != smt.BoolSort {
			return nil, unsupported(e, fmt.Sprintf("operands have sorts %v and %v", l.Sort(), r.Sort()))
		}
		switch e.Op {
		case pred.OpAnd:
			return c.ctx.And(l, r), nil
		case pred.OpOr:
			return c.ctx.Or(l, r), nil
		case pred.OpXor:
			return c.ctx.Xor(l, r), nil
		}
	case e.Op == pred.OpEq || e.Op == pred.OpNe:
		l, r = c.align(l, r)
		if !l.Sort().Equal(r.Sort()) {
			return nil, unsupported(e, fmt.Sprintf("cannot compare %v with %v", l.Sort(), r.Sort()))
		}
		if e.Op == pred.OpNe {
			return c.ctx.Not(c.ctx.Eq(l, r)), nil
		}
		return c.ctx.Eq(l, r), nil
	case e.Op.IsRelational():
		l, r = c.align(l, r)
		if !isNumber(l) || !isNumber(r) {
			return nil, unsupported(e, fmt.Sprintf("cannot order %v and %v", l.Sort(), r.Sort()))
		}
		switch e.Op {
		case pred.OpLt:
			return c.ctx.Lt(l, r), nil
		case pred.OpLe:
			return c.ctx.Le(l, r), nil
		case pred.OpGt:
			return c.ctx.Gt(l, r), nil
		case pred.OpGe:
			return c.ctx.Ge(l, r), nil
		}
	case e.Op.IsArithmetic():
		l, r = c.align(l, r)
		if !isNumber(l) || !isNumber(r) {
			return nil, unsupported(e, fmt.Sprintf("no arithmetic on %v and %v", l.Sort(), r.Sort()))
		}
		switch e.Op {
		case pred.OpAdd:
			return c.ctx.Add(l, r), nil
		case pred.OpSub:
			return c.ctx.Sub(l, r), nil
		case pred.OpMul:
			return c.ctx.Mul(l, r), nil
		case pred.OpDiv:
			return c.ctx.Div(l, r), nil
		case pred.OpRem:
			if l.Sort().Kind != smt.IntSort {
				return nil, unsupported(e, "remainder needs integer operands")
			}
			return c.ctx.Rem(l, r), nil
		case pred.OpPow:
			return c.ctx.Pow(l, r), nil
		}
	}
	return nil, unsupported(e, "unknown operator")
}

func (c *Compiler) unary(e *pred.Unary) (smt.Term, error) {
	x, err := c.visit(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case pred.OpNot:
		if x.Sort().Kind != smt.BoolSort {
			return nil, unsupported(e, fmt.Sprintf("operand has sort %v", x.Sort()))
		}
		return c.ctx.Not(x), nil
	case pred.OpNeg:
		if !isNumber(x) {
			return nil, unsupported(e, fmt.Sprintf("operand has sort %v", x.Sort()))
		}
		return c.ctx.Neg(x), nil
	}
	return nil, unsupported(e, "unknown operator")
}

func (c *Compiler) convert(e *pred.Convert) (smt.Term, error) {
	x, err := c.visit(e.X)
	if err != nil {
		return nil, err
	}
	from := x.Sort().Kind
	switch {
	case e.To.Kind.IsInteger():
		switch from {
		case smt.IntSort:
			// includes tag-only conversions such as int32 to char
			return x, nil
		case smt.RealSort:
			return c.ctx.Coerce(x, smt.Int), nil
		}
	case e.To.Kind.IsReal():
		switch from {
		case smt.RealSort:
			return x, nil
		case smt.IntSort:
			return c.ctx.Coerce(x, smt.Real), nil
		}
	case e.To.Kind == schema.KindBool && from == smt.BoolSort,
		e.To.Kind == schema.KindString && from == smt.StringSort:
		return x, nil
	}
	return nil, unsupported(e, fmt.Sprintf("from %v", x.Sort()))
}

func isNumber(t smt.Term) bool {
	k := t.Sort().Kind
	return k == smt.IntSort || k == smt.RealSort
}

// align brings an Int operand to Real when the other operand is Real
func (c *Compiler) align(l, r smt.Term) (smt.Term, smt.Term) {
	lk, rk := l.Sort().Kind, r.Sort().Kind
	switch {
	case lk == smt.IntSort && rk == smt.RealSort:
		l = c.ctx.Coerce(l, smt.Real)
	case lk == smt.RealSort && rk == smt.IntSort:
		r = c.ctx.Coerce(r, smt.Real)
	}
	return l, r
}

// alignAll brings every Int term to Real if any term is Real
func (c *Compiler) alignAll(ts []smt.Term) []smt.Term {
	anyReal := false
	for _, t := range ts {
		anyReal = anyReal || t.Sort().Kind == smt.RealSort
	}
	if !anyReal {
		return ts
	}
	out := make([]smt.Term, len(ts))
	for i, t := range ts {
		if t.Sort().Kind == smt.IntSort {
			t = c.ctx.Coerce(t, smt.Real)
		}
		out[i] = t
	}
	return out
}

// scalar turns the value sorts arrays store into the numeric sort arithmetic works on
func (c *Compiler) scalar(t smt.Term) smt.Term {
	switch t.Sort().Kind {
	case smt.BitVecSort:
		return c.ctx.Coerce(t, smt.Int)
	case smt.FloatSort:
		return c.ctx.Coerce(t, smt.Real)
	}
	return t
}

// index brings an index term to the sort the array is indexed by
func (c *Compiler) index(t smt.Term, to smt.Sort) (smt.Term, error) {
	from := t.Sort()
	switch {
	case from.Equal(to):
		return t, nil
	case from.Kind == smt.IntSort && to.Kind == smt.RealSort,
		from.Kind == smt.RealSort && to.Kind == smt.IntSort:
		return c.ctx.Coerce(t, to), nil
	}
	return nil, errors.Errorf("index of sort %v cannot address an array indexed by %v", from, to)
}
