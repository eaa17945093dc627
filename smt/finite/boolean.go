package finite

import (
	"context"

	"github.com/cottand/theorem/smt"
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// useBoolean reports whether every atom of p is boolean and every assertion
// uses only connectives a circuit can express
func useBoolean(p *problem) bool {
	if len(p.atoms) == 0 {
		return false
	}
	for _, a := range p.atoms {
		if a.sort.Kind != smt.BoolSort {
			return false
		}
	}
	ok := true
	for _, a := range p.assertions {
		a.walk(func(t *term) {
			switch t.op {
			case opLit, opAnd, opOr, opXor, opNot:
			case opConst:
				ok = ok && (t.sort.Kind == smt.BoolSort || t.sort.Kind == smt.ArraySort)
			case opSelect:
				ok = ok && groundIndex(t) && t.sort.Kind == smt.BoolSort
			case opEq, opDistinct:
				ok = ok && t.args[0].sort.Kind == smt.BoolSort
			default:
				if t.sort.Kind != smt.BoolSort && t.isGround() {
					// ground index arithmetic
					return
				}
				ok = false
			}
		})
	}
	return ok
}

// circuit encodes boolean terms into a gini circuit
type circuit struct {
	p    *problem
	c    *logic.C
	lits []z.Lit
}

func (b *circuit) xor(x, y z.Lit) z.Lit {
	return b.c.Ors(b.c.Ands(x, y.Not()), b.c.Ands(x.Not(), y))
}

func (b *circuit) encode(t *term) z.Lit {
	c := b.c
	switch t.op {
	case opLit:
		if t.lit.(bool) {
			return c.T
		}
		return c.F
	case opConst, opSelect:
		return b.lits[b.p.atomOf(t).id]
	case opNot:
		return b.encode(t.args[0]).Not()
	case opXor:
		return b.xor(b.encode(t.args[0]), b.encode(t.args[1]))
	case opEq:
		return b.xor(b.encode(t.args[0]), b.encode(t.args[1])).Not()
	case opDistinct:
		switch len(t.args) {
		case 2:
			return b.xor(b.encode(t.args[0]), b.encode(t.args[1]))
		default:
			// there are only two booleans
			return c.F
		}
	}
	args := make([]z.Lit, len(t.args))
	for i, a := range t.args {
		args[i] = b.encode(a)
	}
	if t.op == opAnd {
		if len(args) == 0 {
			return c.T
		}
		return c.Ands(args...)
	}
	if len(args) == 0 {
		return c.F
	}
	return c.Ors(args...)
}

// decideBoolean hands a purely boolean problem to gini. Its answers are exact.
func (p *problem) decideBoolean(ctx context.Context) (smt.Status, *Model, error) {
	b := &circuit{p: p, c: logic.NewC(), lits: make([]z.Lit, len(p.atoms))}
	for i := range p.atoms {
		b.lits[i] = b.c.Lit()
	}
	roots := make([]z.Lit, len(p.assertions))
	for i, a := range p.assertions {
		roots[i] = b.encode(a)
	}

	g := gini.New()
	b.c.ToCnf(g)
	for _, r := range roots {
		g.Add(r)
		g.Add(0)
	}
	if err := ctx.Err(); err != nil {
		return smt.Unknown, nil, err
	}

	res := g.Solve()
	logger.Debug("boolean problem solved", "atoms", len(p.atoms), "assertions", len(p.assertions), "result", res)
	switch res {
	case 1:
		vals := make([]any, len(p.atoms))
		for i, l := range b.lits {
			vals[i] = g.Value(l)
		}
		return smt.Sat, &Model{problem: p, vals: vals}, nil
	case -1:
		return smt.Unsat, nil, nil
	}
	return smt.Unknown, nil, nil
}
