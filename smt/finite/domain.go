package finite

import (
	"math/big"
	"slices"

	"github.com/cottand/theorem/smt"
)

// atom is a scalar constant or one cell of an array constant, addressed by
// a ground index. Atoms are what the search assigns values to.
type atom struct {
	id    int
	name  string
	sort  smt.Sort
	konst *term
	index []any
	// domain lists the candidate values in the order they are tried
	domain []any
	// exact is set when domain holds every value the atom could take
	exact bool
}

// bounds are the restrictions top-level conjuncts put on an atom
type bounds struct {
	lo, hi             *big.Rat
	loStrict, hiStrict bool
	eq                 any
	ne                 []any
	conflict           bool
}

func flip(o op) op {
	switch o {
	case opLt:
		return opGt
	case opLe:
		return opGe
	case opGt:
		return opLt
	case opGe:
		return opLe
	}
	return o
}

func (b *bounds) add(o op, v any) {
	switch o {
	case opEq:
		if b.eq != nil && !equal(b.eq, v) {
			b.conflict = true
			return
		}
		b.eq = v
		return
	}
	if _, ok := v.(*big.Int); !ok {
		if _, ok := v.(*big.Rat); !ok {
			return
		}
	}
	r := toRat(v)
	switch o {
	case opLt, opLe:
		strict := o == opLt
		if b.hi == nil || r.Cmp(b.hi) < 0 || r.Cmp(b.hi) == 0 && strict {
			b.hi, b.hiStrict = r, strict
		}
	case opGt, opGe:
		strict := o == opGt
		if b.lo == nil || r.Cmp(b.lo) > 0 || r.Cmp(b.lo) == 0 && strict {
			b.lo, b.loStrict = r, strict
		}
	}
}

func (b *bounds) admits(v any) bool {
	if b == nil {
		return true
	}
	if b.conflict {
		return false
	}
	if b.eq != nil && !equal(b.eq, v) {
		return false
	}
	for _, n := range b.ne {
		if equal(n, v) {
			return false
		}
	}
	switch v.(type) {
	case *big.Int, *big.Rat:
		r := toRat(v)
		if b.lo != nil {
			if c := r.Cmp(b.lo); c < 0 || c == 0 && b.loStrict {
				return false
			}
		}
		if b.hi != nil {
			if c := r.Cmp(b.hi); c > 0 || c == 0 && b.hiStrict {
				return false
			}
		}
	}
	return true
}

// intRange returns the integer interval the bounds allow, if both ends are known
func (b *bounds) intRange() (lo, hi *big.Int, ok bool) {
	if b == nil || b.lo == nil || b.hi == nil {
		return nil, nil, false
	}
	lo = floor(b.lo)
	if b.loStrict || !b.lo.IsInt() {
		lo.Add(lo, big.NewInt(1))
	}
	hi = floor(b.hi)
	if b.hiStrict && b.hi.IsInt() {
		hi.Sub(hi, big.NewInt(1))
	}
	return lo, hi, true
}

// literals are the constants appearing in the assertions, by kind
type literals struct {
	ints    []*big.Int
	rats    []*big.Rat
	strings []string
}

func (l *literals) collect(t *term) {
	t.walk(func(t *term) {
		if t.op != opLit {
			return
		}
		switch v := t.lit.(type) {
		case *big.Int:
			l.ints = append(l.ints, v)
		case *big.Rat:
			l.rats = append(l.rats, v)
		case string:
			l.strings = append(l.strings, v)
		}
	})
}

func bvRange(width uint) (*big.Int, *big.Int) {
	half := new(big.Int).Lsh(big.NewInt(1), width-1)
	return new(big.Int).Neg(half), new(big.Int).Sub(half, big.NewInt(1))
}

// buildDomain fills in the candidates and exactness of a
func (e *Engine) buildDomain(a *atom, b *bounds, lits *literals) {
	if b != nil && b.conflict {
		a.domain, a.exact = nil, true
		return
	}
	if b != nil && b.eq != nil {
		v := coerce(b.eq, a.sort)
		if isInteger(a.sort) {
			if r, ok := b.eq.(*big.Rat); ok && !r.IsInt() {
				a.domain, a.exact = nil, true
				return
			}
		}
		a.domain, a.exact = filter([]any{v}, b), true
		return
	}

	switch a.sort.Kind {
	case smt.BoolSort:
		a.domain, a.exact = filter([]any{false, true}, b), true
	case smt.IntSort, smt.BitVecSort:
		e.intDomain(a, b, lits)
	case smt.RealSort, smt.FloatSort:
		e.realDomain(a, b, lits)
	case smt.StringSort:
		cands := []any{""}
		seen := map[string]bool{"": true}
		for _, s := range append(lits.strings, "a", "b") {
			if !seen[s] {
				seen[s] = true
				cands = append(cands, s)
			}
		}
		a.domain, a.exact = filter(cands, b), false
	}
}

func (e *Engine) intDomain(a *atom, b *bounds, lits *literals) {
	lo, hi, bounded := b.intRange()
	if a.sort.Kind == smt.BitVecSort {
		bvLo, bvHi := bvRange(a.sort.Width)
		if !bounded {
			lo, hi, bounded = bvLo, bvHi, true
		} else {
			lo, hi = bigMax(lo, bvLo), bigMin(hi, bvHi)
		}
	}
	if bounded {
		size := new(big.Int).Sub(hi, lo)
		if size.Sign() < 0 {
			a.domain, a.exact = nil, true
			return
		}
		if size.IsInt64() && size.Int64() < int64(e.MaxDomain) {
			dom := make([]any, 0, size.Int64()+1)
			for i := new(big.Int).Set(lo); i.Cmp(hi) <= 0; i = new(big.Int).Add(i, big.NewInt(1)) {
				dom = append(dom, i)
			}
			a.domain, a.exact = filter(dom, b), true
			return
		}
	}

	var cands []*big.Int
	for i := -e.IntRange; i <= e.IntRange; i++ {
		cands = append(cands, big.NewInt(i))
	}
	near := func(v *big.Int) {
		for d := int64(-1); d <= 1; d++ {
			cands = append(cands, new(big.Int).Add(v, big.NewInt(d)))
		}
	}
	for _, v := range lits.ints {
		near(v)
	}
	for _, r := range lits.rats {
		near(floor(r))
	}
	if b != nil && b.lo != nil {
		start := floor(b.lo)
		for d := int64(0); d <= e.IntRange; d++ {
			cands = append(cands, new(big.Int).Add(start, big.NewInt(d)))
		}
	}
	if b != nil && b.hi != nil {
		end := floor(b.hi)
		for d := int64(0); d <= e.IntRange; d++ {
			cands = append(cands, new(big.Int).Sub(end, big.NewInt(d)))
		}
	}
	slices.SortFunc(cands, func(x, y *big.Int) int { return x.Cmp(y) })
	cands = slices.CompactFunc(cands, func(x, y *big.Int) bool { return x.Cmp(y) == 0 })
	dom := make([]any, 0, len(cands))
	for _, c := range cands {
		if a.sort.Kind == smt.BitVecSort {
			lo, hi := bvRange(a.sort.Width)
			if c.Cmp(lo) < 0 || c.Cmp(hi) > 0 {
				continue
			}
		}
		dom = append(dom, c)
	}
	a.domain, a.exact = filter(dom, b), false
}

func (e *Engine) realDomain(a *atom, b *bounds, lits *literals) {
	var cands []*big.Rat
	for i := -e.IntRange; i <= e.IntRange; i++ {
		cands = append(cands, new(big.Rat).SetInt64(i))
	}
	one := big.NewRat(1, 1)
	near := func(r *big.Rat) {
		cands = append(cands, r, new(big.Rat).Add(r, one), new(big.Rat).Sub(r, one))
	}
	for _, v := range lits.ints {
		near(new(big.Rat).SetInt(v))
	}
	for _, r := range lits.rats {
		near(r)
	}
	if b != nil && b.lo != nil {
		near(b.lo)
	}
	if b != nil && b.hi != nil {
		near(b.hi)
	}
	slices.SortFunc(cands, func(x, y *big.Rat) int { return x.Cmp(y) })
	cands = slices.CompactFunc(cands, func(x, y *big.Rat) bool { return x.Cmp(y) == 0 })

	// midpoints reach values strictly between literals
	withMid := make([]*big.Rat, 0, 2*len(cands))
	for i, c := range cands {
		withMid = append(withMid, c)
		if i+1 < len(cands) {
			mid := new(big.Rat).Add(c, cands[i+1])
			withMid = append(withMid, mid.Quo(mid, big.NewRat(2, 1)))
		}
	}
	dom := make([]any, len(withMid))
	for i, c := range withMid {
		dom[i] = c
	}
	a.domain, a.exact = filter(dom, b), false
}

func filter(cands []any, b *bounds) []any {
	out := cands[:0:0]
	for _, c := range cands {
		if b.admits(c) {
			out = append(out, c)
		}
	}
	return out
}

func bigMax(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
