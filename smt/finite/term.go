package finite

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cottand/theorem/smt"
)

type op int

const (
	opInvalid op = iota
	opConst
	opLit
	opAnd
	opOr
	opXor
	opNot
	opAdd
	opSub
	opMul
	opDiv
	opRem
	opPow
	opNeg
	opLt
	opLe
	opGt
	opGe
	opEq
	opDistinct
	opSelect
	opCoerce
)

var opNames = map[op]string{
	opInvalid:  "invalid",
	opAnd:      "and",
	opOr:       "or",
	opXor:      "xor",
	opNot:      "not",
	opAdd:      "+",
	opSub:      "-",
	opMul:      "*",
	opDiv:      "div",
	opRem:      "rem",
	opPow:      "^",
	opNeg:      "neg",
	opLt:       "<",
	opLe:       "<=",
	opGt:       ">",
	opGe:       ">=",
	opEq:       "=",
	opDistinct: "distinct",
	opSelect:   "select",
	opCoerce:   "coerce",
}

// term is the finite engine's smt.Term. Values are bool, *big.Int (Int and
// BitVec sorts, signed), *big.Rat (Real and Float sorts) or string.
type term struct {
	op   op
	sort smt.Sort
	name string
	lit  any
	args []*term
}

func (t *term) Sort() smt.Sort { return t.sort }

func (t *term) String() string {
	switch t.op {
	case opConst:
		return t.name
	case opLit:
		return showValue(t.lit)
	}
	args := make([]string, len(t.args))
	for i, a := range t.args {
		args[i] = a.String()
	}
	if t.op == opCoerce {
		return fmt.Sprintf("(to_%s %s)", t.sort, strings.Join(args, " "))
	}
	return fmt.Sprintf("(%s %s)", opNames[t.op], strings.Join(args, " "))
}

func showValue(v any) string {
	switch v := v.(type) {
	case *big.Int:
		return v.String()
	case *big.Rat:
		return v.RatString()
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprint(v)
}

// isGround reports whether t mentions no constant
func (t *term) isGround() bool {
	if t.op == opConst {
		return false
	}
	for _, a := range t.args {
		if !a.isGround() {
			return false
		}
	}
	return true
}

// walk visits t and its arguments depth first
func (t *term) walk(visit func(*term)) {
	visit(t)
	for _, a := range t.args {
		a.walk(visit)
	}
}
