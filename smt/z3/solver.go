//go:build z3

package z3

/*
#include <stdlib.h>
#include <z3.h>
*/
import "C"

import (
	"context"
	"math/big"
	"strings"

	"github.com/cottand/theorem/smt"
	"github.com/pkg/errors"
)

func (c *Context) NewSolver() smt.Solver {
	raw := C.Z3_mk_solver(c.raw)
	C.Z3_solver_inc_ref(c.raw, raw)
	return &Solver{ctx: c, raw: raw}
}

func (c *Context) NewOptimizer() (smt.Optimizer, error) {
	raw := C.Z3_mk_optimize(c.raw)
	if !c.check("Z3_mk_optimize") {
		return nil, c.err
	}
	C.Z3_optimize_inc_ref(c.raw, raw)
	return &Optimizer{ctx: c, raw: raw}, nil
}

// interruptOn stops the running check of c when ctx is done. The returned
// func must be called once the check returned.
func (c *Context) interruptOn(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			C.Z3_interrupt(c.raw)
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *Context) status(op string, ctx context.Context, res C.Z3_lbool, reason func() string) (smt.Status, error) {
	if !c.check(op) {
		return smt.Unknown, c.err
	}
	switch res {
	case C.Z3_L_TRUE:
		return smt.Sat, nil
	case C.Z3_L_FALSE:
		return smt.Unsat, nil
	}
	if err := ctx.Err(); err != nil {
		return smt.Unknown, err
	}
	logger.Debug("undecided", "reason", reason())
	return smt.Unknown, nil
}

type Solver struct {
	ctx *Context
	raw C.Z3_solver
}

func (s *Solver) Assert(ts ...smt.Term) {
	args, ok := s.ctx.unwrap(ts...)
	if !ok {
		return
	}
	for _, a := range args {
		if a.sort.Kind != smt.BoolSort {
			s.ctx.fail(smt.Bool, "assertion of sort %v", a.sort)
			return
		}
		C.Z3_solver_assert(s.ctx.raw, s.raw, a.ast)
		s.ctx.check("Z3_solver_assert")
	}
}

func (s *Solver) Check(ctx context.Context) (smt.Status, error) {
	if err := s.ctx.Err(); err != nil {
		return smt.Unknown, errors.Wrap(err, "building assertions")
	}
	if err := ctx.Err(); err != nil {
		return smt.Unknown, err
	}
	stop := s.ctx.interruptOn(ctx)
	res := C.Z3_solver_check(s.ctx.raw, s.raw)
	stop()
	return s.ctx.status("Z3_solver_check", ctx, res, func() string {
		return C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.raw))
	})
}

func (s *Solver) Model() (smt.Model, error) {
	m := C.Z3_solver_get_model(s.ctx.raw, s.raw)
	if !s.ctx.check("Z3_solver_get_model") || m == nil {
		return nil, errors.Errorf("no model: %v", s.ctx.err)
	}
	C.Z3_model_inc_ref(s.ctx.raw, m)
	return &Model{ctx: s.ctx, raw: m}, nil
}

func (s *Solver) Close() error {
	if s.raw != nil && !s.ctx.closed {
		C.Z3_solver_dec_ref(s.ctx.raw, s.raw)
	}
	s.raw = nil
	return nil
}

// Optimizer hands objectives to Z3's optimization engine, which settles them
// lexicographically in the order they were added
type Optimizer struct {
	ctx *Context
	raw C.Z3_optimize
}

func (o *Optimizer) Assert(ts ...smt.Term) {
	args, ok := o.ctx.unwrap(ts...)
	if !ok {
		return
	}
	for _, a := range args {
		if a.sort.Kind != smt.BoolSort {
			o.ctx.fail(smt.Bool, "assertion of sort %v", a.sort)
			return
		}
		C.Z3_optimize_assert(o.ctx.raw, o.raw, a.ast)
		o.ctx.check("Z3_optimize_assert")
	}
}

func (o *Optimizer) objective(t smt.Term, maximize bool) {
	args, ok := o.ctx.unwrap(t)
	if !ok {
		return
	}
	if !args[0].sort.IsNumeric() {
		o.ctx.fail(args[0].sort, "objective of sort %v", args[0].sort)
		return
	}
	if maximize {
		C.Z3_optimize_maximize(o.ctx.raw, o.raw, args[0].ast)
	} else {
		C.Z3_optimize_minimize(o.ctx.raw, o.raw, args[0].ast)
	}
	o.ctx.check("Z3_optimize_objective")
}

func (o *Optimizer) Maximize(t smt.Term) { o.objective(t, true) }
func (o *Optimizer) Minimize(t smt.Term) { o.objective(t, false) }

func (o *Optimizer) Check(ctx context.Context) (smt.Status, error) {
	if err := o.ctx.Err(); err != nil {
		return smt.Unknown, errors.Wrap(err, "building assertions")
	}
	if err := ctx.Err(); err != nil {
		return smt.Unknown, err
	}
	stop := o.ctx.interruptOn(ctx)
	res := C.Z3_optimize_check(o.ctx.raw, o.raw, 0, nil)
	stop()
	return o.ctx.status("Z3_optimize_check", ctx, res, func() string {
		return C.GoString(C.Z3_optimize_get_reason_unknown(o.ctx.raw, o.raw))
	})
}

func (o *Optimizer) Model() (smt.Model, error) {
	m := C.Z3_optimize_get_model(o.ctx.raw, o.raw)
	if !o.ctx.check("Z3_optimize_get_model") || m == nil {
		return nil, errors.Errorf("no model: %v", o.ctx.err)
	}
	C.Z3_model_inc_ref(o.ctx.raw, m)
	return &Model{ctx: o.ctx, raw: m}, nil
}

func (o *Optimizer) Close() error {
	if o.raw != nil && !o.ctx.closed {
		C.Z3_optimize_dec_ref(o.ctx.raw, o.raw)
	}
	o.raw = nil
	return nil
}

type Model struct {
	ctx *Context
	raw C.Z3_model
}

var _ smt.Model = (*Model)(nil)

// eval evaluates t with model completion
func (m *Model) eval(t smt.Term) (*term, error) {
	args, ok := m.ctx.unwrap(t)
	if !ok {
		return nil, errors.Errorf("cannot evaluate %v: %v", t, m.ctx.err)
	}
	var out C.Z3_ast
	if !C.Z3_model_eval(m.ctx.raw, m.raw, args[0].ast, C.bool(true), &out) || out == nil {
		return nil, errors.New("z3: model evaluation failed")
	}
	return &term{ast: out, sort: args[0].sort}, nil
}

func (m *Model) numeral(t *term) (string, error) {
	if !C.Z3_is_numeral_ast(m.ctx.raw, t.ast) {
		return "", errors.Errorf("value of sort %v is not a numeral", t.sort)
	}
	return C.GoString(C.Z3_get_numeral_string(m.ctx.raw, t.ast)), nil
}

func (m *Model) Bool(t smt.Term) (bool, error) {
	if t.Sort().Kind != smt.BoolSort {
		return false, errors.Errorf("Bool of a %v term", t.Sort())
	}
	v, err := m.eval(t)
	if err != nil {
		return false, err
	}
	switch C.Z3_get_bool_value(m.ctx.raw, v.ast) {
	case C.Z3_L_TRUE:
		return true, nil
	case C.Z3_L_FALSE:
		return false, nil
	}
	return false, errors.New("z3: boolean without a value")
}

func (m *Model) Int(t smt.Term) (*big.Int, error) {
	s := t.Sort()
	if s.Kind != smt.IntSort && s.Kind != smt.BitVecSort {
		return nil, errors.Errorf("Int of a %v term", s)
	}
	v, err := m.eval(t)
	if err != nil {
		return nil, err
	}
	text, err := m.numeral(v)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, errors.Errorf("z3: bad integer %q", text)
	}
	// bit-vector numerals are unsigned
	if s.Kind == smt.BitVecSort && n.Bit(int(s.Width)-1) == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), s.Width))
	}
	return n, nil
}

func (m *Model) Decimal(t smt.Term, precision int) (string, error) {
	s := t.Sort()
	switch s.Kind {
	case smt.FloatSort:
		t = m.ctx.Coerce(t, smt.Real)
		if err := m.ctx.Err(); err != nil {
			return "", err
		}
	case smt.IntSort, smt.BitVecSort:
		n, err := m.Int(t)
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case smt.RealSort:
	default:
		return "", errors.Errorf("Decimal of a %v term", s)
	}
	v, err := m.eval(t)
	if err != nil {
		return "", err
	}
	if !C.Z3_is_numeral_ast(m.ctx.raw, v.ast) {
		return "", errors.New("z3: real without a numeral value")
	}
	text := C.GoString(C.Z3_get_numeral_decimal_string(m.ctx.raw, v.ast, C.uint(precision)))
	// truncated expansions end in '?'
	return strings.TrimSuffix(text, "?"), nil
}

func (m *Model) String(t smt.Term) (string, error) {
	if t.Sort().Kind != smt.StringSort {
		return "", errors.Errorf("String of a %v term", t.Sort())
	}
	v, err := m.eval(t)
	if err != nil {
		return "", err
	}
	if !C.Z3_is_string(m.ctx.raw, v.ast) {
		return "", errors.New("z3: string without a value")
	}
	var n C.uint
	p := C.Z3_get_lstring(m.ctx.raw, v.ast, &n)
	return C.GoStringN((*C.char)(p), C.int(n)), nil
}

func (m *Model) Close() error {
	if m.raw != nil && !m.ctx.closed {
		C.Z3_model_dec_ref(m.ctx.raw, m.raw)
	}
	m.raw = nil
	return nil
}
