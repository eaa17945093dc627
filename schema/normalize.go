package schema

import (
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
)

// Normalize maps a primitive semantic type onto the sort of a scalar term
func Normalize(t Type) (smt.Sort, error) {
	switch t.Kind {
	case KindBool:
		return smt.Bool, nil
	case KindInt16, KindInt32, KindInt64, KindDateTime, KindChar:
		return smt.Int, nil
	case KindString:
		return smt.String, nil
	case KindFloat32, KindFloat64, KindDecimal:
		return smt.Real, nil
	}
	return smt.Sort{}, thmerr.New(thmerr.NewUnsupportedType{Type: t.String()})
}

// ElementSorts returns the index and value sorts of an array holding elem.
//
// The pairs are part of the encoding contract with previously produced
// formulas and must not change: notably strings are indexed by strings and
// hold 16-bit vectors, booleans are indexed by booleans, and decimals are
// stored as single precision floats.
func ElementSorts(elem Type) (index smt.Sort, value smt.Sort, err error) {
	switch elem.Kind {
	case KindString:
		return smt.String, smt.BitVec(16), nil
	case KindInt16:
		return smt.Int, smt.BitVec(16), nil
	case KindInt32, KindChar:
		return smt.Int, smt.Int, nil
	case KindInt64, KindDateTime:
		return smt.Int, smt.BitVec(64), nil
	case KindBool:
		return smt.Bool, smt.Bool, nil
	case KindFloat32:
		return smt.Real, smt.Float(32), nil
	case KindFloat64:
		return smt.Real, smt.Float(64), nil
	case KindDecimal:
		return smt.Real, smt.Float(32), nil
	}
	return smt.Sort{}, smt.Sort{}, thmerr.New(thmerr.NewUnsupportedType{Type: ArrayOf(elem).String()})
}

// NormalizeArray returns the sort of an array of primitive elem addressed by rank indices
func NormalizeArray(elem Type, rank int) (smt.Sort, error) {
	index, value, err := ElementSorts(elem)
	if err != nil {
		return smt.Sort{}, err
	}
	domain := make([]smt.Sort, max(rank, 1))
	for i := range domain {
		domain[i] = index
	}
	return smt.Array(value, domain...), nil
}

// DecimalPrecision is the number of decimal places a real-sorted value of
// kind k is read back with
func DecimalPrecision(k Kind) int {
	switch k {
	case KindFloat32:
		return 32
	case KindFloat64:
		return 64
	case KindDecimal:
		return 128
	}
	return 0
}

var elementKinds = []Kind{
	KindBool, KindInt16, KindInt32, KindInt64, KindFloat32, KindFloat64,
	KindDecimal, KindString, KindDateTime, KindChar,
}

// Invert returns the element kinds stored as (index, value) in an array sort.
// Several kinds share a pair, so the result can hold more than one.
func Invert(index, value smt.Sort) []Kind {
	var kinds []Kind
	for _, k := range elementKinds {
		i, v, err := ElementSorts(Type{Kind: k})
		if err == nil && i.Equal(index) && v.Equal(value) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
