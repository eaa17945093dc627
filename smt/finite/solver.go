package finite

import (
	"context"
	"math/big"
	"strings"

	"github.com/cottand/theorem/smt"
	"github.com/pkg/errors"
)

var _ smt.Solver = (*Solver)(nil)
var _ smt.Optimizer = (*Optimizer)(nil)

type Solver struct {
	ctx        *Context
	assertions []*term
	status     smt.Status
	model      *Model
}

func (s *Solver) Assert(ts ...smt.Term) {
	args, ok := s.ctx.unwrap(ts...)
	if !ok {
		return
	}
	for _, a := range args {
		if a.sort.Kind != smt.BoolSort {
			s.ctx.fail(smt.Bool, "asserting non-boolean %v", a)
			return
		}
	}
	s.assertions = append(s.assertions, args...)
}

func (s *Solver) Check(ctx context.Context) (smt.Status, error) {
	s.status, s.model = smt.Unknown, nil
	if s.ctx.err != nil {
		return smt.Unknown, errors.Wrap(s.ctx.err, "building assertions")
	}
	if s.ctx.closed {
		return smt.Unknown, errors.New("context closed")
	}
	status, m, err := s.ctx.engine.decide(ctx, s.assertions)
	if err != nil {
		return smt.Unknown, err
	}
	s.status, s.model = status, m
	return status, nil
}

func (s *Solver) Model() (smt.Model, error) {
	if s.status != smt.Sat || s.model == nil {
		return nil, errors.Errorf("no model: last check was %v", s.status)
	}
	return s.model, nil
}

func (s *Solver) Close() error { return nil }

// Optimizer improves objectives one after another: each objective is pushed
// as far as the search can take it and then pinned while the next is optimized.
type Optimizer struct {
	Solver
	objectives []objective
}

type objective struct {
	t        *term
	maximize bool
}

func (o *Optimizer) Maximize(t smt.Term) { o.objective(t, true) }
func (o *Optimizer) Minimize(t smt.Term) { o.objective(t, false) }

func (o *Optimizer) objective(t smt.Term, maximize bool) {
	args, ok := o.ctx.unwrap(t)
	if !ok {
		return
	}
	if !args[0].sort.IsNumeric() {
		o.ctx.fail(args[0].sort, "objective of sort %v", args[0].sort)
		return
	}
	o.objectives = append(o.objectives, objective{t: args[0], maximize: maximize})
}

// maxImprovements bounds the rounds spent on one objective
const maxImprovements = 4096

func (o *Optimizer) Check(ctx context.Context) (smt.Status, error) {
	status, err := o.Solver.Check(ctx)
	if err != nil || status != smt.Sat {
		return status, err
	}
	assertions := o.assertions
	for _, obj := range o.objectives {
		best, _ := eval(obj.t, o.model)
		for round := 0; ; round++ {
			if round == maxImprovements {
				logger.Warn("objective still improving, stopping", "objective", obj.t.String(), "best", showValue(best))
				break
			}
			cmp := opLt
			if obj.maximize {
				cmp = opGt
			}
			better := &term{op: cmp, sort: smt.Bool, args: []*term{obj.t, lit(obj.t.sort, best)}}
			status, m, err := o.ctx.engine.decide(ctx, append(assertions[:len(assertions):len(assertions)], better))
			if err != nil {
				return smt.Unknown, err
			}
			if status != smt.Sat {
				break
			}
			o.model = m
			best, _ = eval(obj.t, m)
		}
		logger.Debug("objective settled", "objective", obj.t.String(), "value", showValue(best))
		pin := &term{op: opEq, sort: smt.Bool, args: []*term{obj.t, lit(obj.t.sort, best)}}
		assertions = append(assertions[:len(assertions):len(assertions)], pin)
	}
	return smt.Sat, nil
}

// Model reads values from a finished search, completing anything the search
// did not assign with its sort's default
type Model struct {
	problem *problem
	vals    []any
}

var _ smt.Model = (*Model)(nil)

func (m *Model) scalar(t *term) (any, bool) {
	if a := m.problem.scalars[t]; a != nil {
		return m.vals[a.id], true
	}
	return zeroOf(t.sort), true
}

func (m *Model) cell(arr *term, index []any) (any, bool) {
	if a := m.problem.cells[arr][indexKey(index)]; a != nil {
		return m.vals[a.id], true
	}
	return zeroOf(*arr.sort.Range), true
}

func (m *Model) value(t smt.Term, kinds ...smt.SortKind) (any, error) {
	tt, ok := t.(*term)
	if !ok || tt == nil || tt.op == opInvalid {
		return nil, errors.Errorf("cannot evaluate %v", t)
	}
	found := false
	for _, k := range kinds {
		found = found || tt.sort.Kind == k
	}
	if !found {
		return nil, errors.Errorf("%v has sort %v", tt, tt.sort)
	}
	v, ok := eval(tt, m)
	if !ok {
		return nil, errors.Errorf("cannot evaluate %v", tt)
	}
	return v, nil
}

func (m *Model) Bool(t smt.Term) (bool, error) {
	v, err := m.value(t, smt.BoolSort)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (m *Model) Int(t smt.Term) (*big.Int, error) {
	v, err := m.value(t, smt.IntSort, smt.BitVecSort)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(v.(*big.Int)), nil
}

func (m *Model) Decimal(t smt.Term, precision int) (string, error) {
	v, err := m.value(t, smt.RealSort, smt.FloatSort)
	if err != nil {
		return "", err
	}
	s := v.(*big.Rat).FloatString(precision)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s, nil
}

func (m *Model) String(t smt.Term) (string, error) {
	v, err := m.value(t, smt.StringSort)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Model) Close() error { return nil }
