package finite

import (
	"context"
	"slices"

	"github.com/cottand/theorem/smt"
)

// problem is a set of assertions prepared for search
type problem struct {
	engine     *Engine
	assertions []*term
	atoms      []*atom
	scalars    map[*term]*atom
	cells      map[*term]map[string]*atom
	// watch lists, per atom id, the assertions mentioning it
	watch [][]int
	// ground assertions mention no atom at all
	ground []int
}

func (e *Engine) newProblem(assertions []*term) *problem {
	p := &problem{
		engine:     e,
		assertions: assertions,
		scalars:    map[*term]*atom{},
		cells:      map[*term]map[string]*atom{},
	}
	for _, a := range assertions {
		p.discover(a)
	}

	p.watch = make([][]int, len(p.atoms))
	for i, a := range assertions {
		ids := p.mentions(a)
		if len(ids) == 0 {
			p.ground = append(p.ground, i)
		}
		for _, id := range ids {
			p.watch[id] = append(p.watch[id], i)
		}
	}

	bs := map[int]*bounds{}
	for _, a := range assertions {
		p.collectBounds(a, bs)
	}
	lits := &literals{}
	for _, a := range assertions {
		lits.collect(a)
	}
	for _, a := range p.atoms {
		e.buildDomain(a, bs[a.id], lits)
	}
	return p
}

func (p *problem) newAtom(name string, s smt.Sort, konst *term, index []any) *atom {
	a := &atom{id: len(p.atoms), name: name, sort: s, konst: konst, index: index}
	p.atoms = append(p.atoms, a)
	return a
}

// discover creates atoms for the scalar constants and ground-indexed cells in t
func (p *problem) discover(t *term) {
	t.walk(func(t *term) {
		switch {
		case t.op == opConst && t.sort.Kind != smt.ArraySort:
			if _, ok := p.scalars[t]; !ok {
				p.scalars[t] = p.newAtom(t.name, t.sort, t, nil)
			}
		case t.op == opSelect && groundIndex(t):
			arr := t.args[0]
			index := make([]any, len(t.args)-1)
			for i, idx := range t.args[1:] {
				index[i], _ = eval(idx, none{})
			}
			key := indexKey(index)
			if p.cells[arr] == nil {
				p.cells[arr] = map[string]*atom{}
			}
			if _, ok := p.cells[arr][key]; !ok {
				p.cells[arr][key] = p.newAtom(arr.name+"["+key+"]", *arr.sort.Range, arr, index)
			}
		}
	})
}

func groundIndex(sel *term) bool {
	for _, idx := range sel.args[1:] {
		if !idx.isGround() {
			return false
		}
	}
	return true
}

// mentions returns the ids of the atoms t may read. A select with a symbolic
// index may read any known cell of its array.
func (p *problem) mentions(t *term) []int {
	var ids []int
	t.walk(func(t *term) {
		switch {
		case t.op == opConst && t.sort.Kind != smt.ArraySort:
			ids = append(ids, p.scalars[t].id)
		case t.op == opSelect && groundIndex(t):
			if a := p.cellOf(t); a != nil {
				ids = append(ids, a.id)
			}
		case t.op == opSelect:
			for _, a := range p.cells[t.args[0]] {
				ids = append(ids, a.id)
			}
		}
	})
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (p *problem) cellOf(sel *term) *atom {
	index := make([]any, len(sel.args)-1)
	for i, idx := range sel.args[1:] {
		v, ok := eval(idx, none{})
		if !ok {
			return nil
		}
		index[i] = v
	}
	return p.cells[sel.args[0]][indexKey(index)]
}

// atomOf returns the atom t reads, looking through coercions that preserve value
func (p *problem) atomOf(t *term) *atom {
	switch t.op {
	case opConst:
		return p.scalars[t]
	case opSelect:
		if groundIndex(t) {
			return p.cellOf(t)
		}
	case opCoerce:
		from, to := t.args[0].sort, t.sort
		preserving := to.Kind == smt.RealSort ||
			from.Kind == smt.BitVecSort && to.Kind == smt.IntSort
		if preserving {
			return p.atomOf(t.args[0])
		}
	}
	return nil
}

// collectBounds walks the top-level conjunction of t for comparisons of an
// atom against a ground value
func (p *problem) collectBounds(t *term, bs map[int]*bounds) {
	get := func(a *atom) *bounds {
		if bs[a.id] == nil {
			bs[a.id] = &bounds{}
		}
		return bs[a.id]
	}
	switch t.op {
	case opAnd:
		for _, arg := range t.args {
			p.collectBounds(arg, bs)
		}
	case opConst, opSelect:
		if a := p.atomOf(t); a != nil && a.sort.Kind == smt.BoolSort {
			get(a).add(opEq, true)
		}
	case opNot:
		inner := t.args[0]
		if a := p.atomOf(inner); a != nil && a.sort.Kind == smt.BoolSort {
			get(a).add(opEq, false)
			return
		}
		if inner.op != opEq {
			return
		}
		if a, v, ok := p.atomVersusValue(inner.args[0], inner.args[1]); ok {
			b := get(a)
			b.ne = append(b.ne, v)
		}
	case opEq, opLt, opLe, opGt, opGe:
		if a, v, ok := p.atomVersusValue(t.args[0], t.args[1]); ok {
			get(a).add(t.op, v)
			return
		}
		if a, v, ok := p.atomVersusValue(t.args[1], t.args[0]); ok {
			get(a).add(flip(t.op), v)
		}
	}
}

func (p *problem) atomVersusValue(l, r *term) (*atom, any, bool) {
	if !r.isGround() {
		return nil, nil, false
	}
	a := p.atomOf(l)
	if a == nil {
		return nil, nil, false
	}
	v, ok := eval(r, none{})
	return a, v, ok
}

// none assigns nothing
type none struct{}

func (none) scalar(*term) (any, bool)      { return nil, false }
func (none) cell(*term, []any) (any, bool) { return nil, false }

// search is a backtracking run over a problem
type search struct {
	*problem
	vals     []any
	assigned []bool
	order    []*atom
	nodes    int
	// defaulted is set when an unknown cell was read as its default value,
	// which makes a failed search inconclusive
	defaulted bool
}

func (s *search) scalar(t *term) (any, bool) {
	a := s.scalars[t]
	if a == nil {
		return zeroOf(t.sort), true
	}
	if !s.assigned[a.id] {
		return nil, false
	}
	return s.vals[a.id], true
}

func (s *search) cell(arr *term, index []any) (any, bool) {
	a := s.cells[arr][indexKey(index)]
	if a == nil {
		s.defaulted = true
		return zeroOf(*arr.sort.Range), true
	}
	if !s.assigned[a.id] {
		return nil, false
	}
	return s.vals[a.id], true
}

// falsified reports whether any of the given assertions is already known false
func (s *search) falsified(assertions []int) bool {
	for _, i := range assertions {
		v, ok := eval(s.assertions[i], s)
		if ok && !v.(bool) {
			return true
		}
	}
	return false
}

const checkEvery = 1024

func (s *search) run(ctx context.Context, depth int) (bool, error) {
	if depth == len(s.order) {
		return true, nil
	}
	a := s.order[depth]
	for _, v := range a.domain {
		s.nodes++
		if s.nodes%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		s.vals[a.id], s.assigned[a.id] = v, true
		if s.falsified(s.watch[a.id]) {
			continue
		}
		ok, err := s.run(ctx, depth+1)
		if ok || err != nil {
			return ok, err
		}
	}
	s.assigned[a.id] = false
	return false, nil
}

// decide searches for a model of assertions
func (e *Engine) decide(ctx context.Context, assertions []*term) (smt.Status, *Model, error) {
	if err := ctx.Err(); err != nil {
		return smt.Unknown, nil, err
	}
	p := e.newProblem(assertions)
	if useBoolean(p) {
		return p.decideBoolean(ctx)
	}

	s := &search{
		problem:  p,
		vals:     make([]any, len(p.atoms)),
		assigned: make([]bool, len(p.atoms)),
		order:    slices.Clone(p.atoms),
	}
	if s.falsified(p.ground) {
		return smt.Unsat, nil, nil
	}
	exact := true
	for _, a := range p.atoms {
		exact = exact && a.exact
	}
	// constants pinned to one value go first, then by appearance
	slices.SortStableFunc(s.order, func(x, y *atom) int {
		return min(len(x.domain), 2) - min(len(y.domain), 2)
	})

	ok, err := s.run(ctx, 0)
	logger.Debug("search finished", "atoms", len(p.atoms), "nodes", s.nodes, "found", ok, "exact", exact, "defaulted", s.defaulted)
	if err != nil {
		return smt.Unknown, nil, err
	}
	if !ok {
		if exact && !s.defaulted {
			return smt.Unsat, nil, nil
		}
		return smt.Unknown, nil, nil
	}
	m := &Model{problem: p, vals: s.vals}
	for _, a := range assertions {
		if v, known := eval(a, m); !known || !v.(bool) {
			// a model that does not satisfy the assertions would be a bug in the search
			return smt.Unknown, nil, nil
		}
	}
	return smt.Sat, m, nil
}
