// Package smt describes the operations this module needs from an SMT engine.
//
// Sorts are plain values so that callers can reason about them without an
// engine at hand; terms, solvers and models are opaque handles owned by a
// Context. Engines are provided by subpackages (finite, z3) and found by name
// through Register and Lookup.
package smt

import (
	"fmt"
	"strings"
)

type SortKind int

const (
	InvalidSort SortKind = iota
	BoolSort
	IntSort
	RealSort
	StringSort
	BitVecSort
	FloatSort
	ArraySort
)

func (k SortKind) String() string {
	switch k {
	case BoolSort:
		return "Bool"
	case IntSort:
		return "Int"
	case RealSort:
		return "Real"
	case StringSort:
		return "String"
	case BitVecSort:
		return "BitVec"
	case FloatSort:
		return "Float"
	case ArraySort:
		return "Array"
	default:
		return "Invalid"
	}
}

// Sort describes the type of a Term.
//
// Width is the bit width of BitVec and Float sorts (Float supports 32 and 64).
// Array sorts have one Domain entry per index and a Range.
type Sort struct {
	Kind   SortKind
	Width  uint
	Domain []Sort
	Range  *Sort
}

var (
	Bool   = Sort{Kind: BoolSort}
	Int    = Sort{Kind: IntSort}
	Real   = Sort{Kind: RealSort}
	String = Sort{Kind: StringSort}
)

func BitVec(width uint) Sort { return Sort{Kind: BitVecSort, Width: width} }
func Float(width uint) Sort  { return Sort{Kind: FloatSort, Width: width} }

// Array returns the sort of arrays indexed by domain (one sort per dimension)
// holding values of sort rng
func Array(rng Sort, domain ...Sort) Sort {
	return Sort{Kind: ArraySort, Domain: domain, Range: &rng}
}

func (s Sort) IsNumeric() bool {
	switch s.Kind {
	case IntSort, RealSort, BitVecSort, FloatSort:
		return true
	}
	return false
}

func (s Sort) Equal(other Sort) bool {
	if s.Kind != other.Kind || s.Width != other.Width || len(s.Domain) != len(other.Domain) {
		return false
	}
	for i := range s.Domain {
		if !s.Domain[i].Equal(other.Domain[i]) {
			return false
		}
	}
	if s.Range == nil || other.Range == nil {
		return s.Range == other.Range
	}
	return s.Range.Equal(*other.Range)
}

func (s Sort) String() string {
	switch s.Kind {
	case BitVecSort, FloatSort:
		return fmt.Sprintf("%s%d", s.Kind, s.Width)
	case ArraySort:
		dom := make([]string, 0, len(s.Domain))
		for _, d := range s.Domain {
			dom = append(dom, d.String())
		}
		rng := "?"
		if s.Range != nil {
			rng = s.Range.String()
		}
		return fmt.Sprintf("Array[%s]%s", strings.Join(dom, ","), rng)
	default:
		return s.Kind.String()
	}
}
