package finite

import (
	"math/big"
	"strings"

	"github.com/cottand/theorem/smt"
)

// assignment gives values to constants and array cells during evaluation
type assignment interface {
	scalar(t *term) (any, bool)
	cell(arr *term, index []any) (any, bool)
}

// eval computes t under a, reporting false when the value depends on
// something a has not assigned yet. Boolean connectives short-circuit, so a
// conjunction with one false operand is known to be false.
func eval(t *term, a assignment) (any, bool) {
	switch t.op {
	case opLit:
		return t.lit, true
	case opConst:
		if t.sort.Kind == smt.ArraySort {
			return nil, false
		}
		return a.scalar(t)
	case opSelect:
		index := make([]any, len(t.args)-1)
		for i, idx := range t.args[1:] {
			v, ok := eval(idx, a)
			if !ok {
				return nil, false
			}
			index[i] = v
		}
		return a.cell(t.args[0], index)
	case opAnd, opOr:
		short := t.op == opOr
		all := true
		for _, arg := range t.args {
			v, ok := eval(arg, a)
			if !ok {
				all = false
				continue
			}
			if v.(bool) == short {
				return short, true
			}
		}
		if !all {
			return nil, false
		}
		return !short, true
	case opNot:
		v, ok := eval(t.args[0], a)
		if !ok {
			return nil, false
		}
		return !v.(bool), true
	case opDistinct:
		vals := make([]any, len(t.args))
		known := make([]bool, len(t.args))
		all := true
		for i, arg := range t.args {
			vals[i], known[i] = eval(arg, a)
			all = all && known[i]
		}
		for i := range vals {
			if !known[i] {
				continue
			}
			for j := i + 1; j < len(vals); j++ {
				if known[j] && equal(vals[i], vals[j]) {
					return false, true
				}
			}
		}
		if !all {
			return nil, false
		}
		return true, true
	}

	args := make([]any, len(t.args))
	for i, arg := range t.args {
		v, ok := eval(arg, a)
		if !ok {
			return nil, false
		}
		args[i] = v
	}
	switch t.op {
	case opXor:
		return args[0].(bool) != args[1].(bool), true
	case opEq:
		return equal(args[0], args[1]), true
	case opLt:
		return compare(args[0], args[1]) < 0, true
	case opLe:
		return compare(args[0], args[1]) <= 0, true
	case opGt:
		return compare(args[0], args[1]) > 0, true
	case opGe:
		return compare(args[0], args[1]) >= 0, true
	case opNeg:
		return arith(t.sort, opSub, zeroOf(t.sort), args[0]), true
	case opAdd, opSub, opMul, opDiv, opRem, opPow:
		return arith(t.sort, t.op, args[0], args[1]), true
	case opCoerce:
		return coerce(args[0], t.sort), true
	}
	return nil, false
}

func isInteger(s smt.Sort) bool {
	return s.Kind == smt.IntSort || s.Kind == smt.BitVecSort
}

func zeroOf(s smt.Sort) any {
	switch s.Kind {
	case smt.BoolSort:
		return false
	case smt.IntSort, smt.BitVecSort:
		return new(big.Int)
	case smt.RealSort, smt.FloatSort:
		return new(big.Rat)
	case smt.StringSort:
		return ""
	}
	return nil
}

// wrap reduces i to the signed range of a w-bit vector
func wrap(i *big.Int, w uint) *big.Int {
	if w == 0 {
		return i
	}
	mod := new(big.Int).Lsh(big.NewInt(1), w)
	half := new(big.Int).Rsh(mod, 1)
	out := new(big.Int).Mod(i, mod)
	if out.Cmp(half) >= 0 {
		out.Sub(out, mod)
	}
	return out
}

func toRat(v any) *big.Rat {
	switch v := v.(type) {
	case *big.Int:
		return new(big.Rat).SetInt(v)
	case *big.Rat:
		return v
	}
	return new(big.Rat)
}

func floor(r *big.Rat) *big.Int {
	// big.Int.Div rounds towards negative infinity for positive divisors
	return new(big.Int).Div(r.Num(), r.Denom())
}

func coerce(v any, to smt.Sort) any {
	switch to.Kind {
	case smt.IntSort:
		if r, ok := v.(*big.Rat); ok {
			return floor(r)
		}
		return v
	case smt.BitVecSort:
		if r, ok := v.(*big.Rat); ok {
			return wrap(floor(r), to.Width)
		}
		return wrap(v.(*big.Int), to.Width)
	case smt.RealSort, smt.FloatSort:
		return toRat(v)
	}
	return v
}

func arith(s smt.Sort, o op, l, r any) any {
	if isInteger(s) {
		li, ri := l.(*big.Int), r.(*big.Int)
		out := new(big.Int)
		switch o {
		case opAdd:
			out.Add(li, ri)
		case opSub:
			out.Sub(li, ri)
		case opMul:
			out.Mul(li, ri)
		case opDiv:
			// division by zero is left unspecified by the theory; zero is as good as any
			if ri.Sign() != 0 {
				out.Div(li, ri)
			}
		case opRem:
			if ri.Sign() != 0 {
				out.Mod(li, ri)
			}
		case opPow:
			if ri.Sign() >= 0 && ri.IsInt64() && ri.Int64() <= 4096 {
				out.Exp(li, ri, nil)
			}
		}
		if s.Kind == smt.BitVecSort {
			return wrap(out, s.Width)
		}
		return out
	}

	lr, rr := toRat(l), toRat(r)
	out := new(big.Rat)
	switch o {
	case opAdd:
		out.Add(lr, rr)
	case opSub:
		out.Sub(lr, rr)
	case opMul:
		out.Mul(lr, rr)
	case opDiv:
		if rr.Sign() != 0 {
			out.Quo(lr, rr)
		}
	case opPow:
		if rr.IsInt() && rr.Num().IsInt64() {
			n := rr.Num().Int64()
			if n < 0 && lr.Sign() == 0 || n > 4096 || n < -4096 {
				break
			}
			out.SetInt64(1)
			for i := int64(0); i < abs(n); i++ {
				out.Mul(out, lr)
			}
			if n < 0 {
				out.Inv(out)
			}
		}
	}
	return out
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func equal(a, b any) bool {
	switch a := a.(type) {
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case *big.Int, *big.Rat:
		return compare(a, b) == 0
	}
	return false
}

func compare(a, b any) int {
	if ai, ok := a.(*big.Int); ok {
		if bi, ok := b.(*big.Int); ok {
			return ai.Cmp(bi)
		}
	}
	return toRat(a).Cmp(toRat(b))
}

// indexKey identifies an array cell
func indexKey(index []any) string {
	parts := make([]string, len(index))
	for i, v := range index {
		parts[i] = showValue(v)
	}
	return strings.Join(parts, ",")
}
