// Package schema declares environment types: the ordered, typed fields a
// theorem solves for, and how their semantic types map onto engine sorts.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindDateTime
	// KindChar is an integer carrying a character tag; it is represented as
	// an integer and conversions to and from it are tag-only
	KindChar
	KindArray
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindDateTime:
		return "datetime"
	case KindChar:
		return "char"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

func (k Kind) IsInteger() bool {
	switch k {
	case KindInt16, KindInt32, KindInt64, KindDateTime, KindChar:
		return true
	}
	return false
}

func (k Kind) IsReal() bool {
	switch k {
	case KindFloat32, KindFloat64, KindDecimal:
		return true
	}
	return false
}

func (k Kind) IsPrimitive() bool {
	return k != KindInvalid && k != KindArray && k != KindRecord
}

// Type is the semantic type of a field.
//
// Arrays carry their element type and rank (the number of indices an element
// is addressed by); records carry the Env describing their fields.
// Shape holds the extent of every dimension when it is known from the
// declaration, as for Go arrays; otherwise the decoder takes it from the
// destination value.
type Type struct {
	Kind  Kind
	Elem  *Type
	Rank  int
	Shape []int
	Env   *Env
	// GoName names the host type for types without a semantic kind
	GoName string
	// Cyclic marks a record met again while it was being derived. It has no
	// Env, and binding rejects it as unsupported nesting.
	Cyclic bool
}

var (
	Bool     = Type{Kind: KindBool}
	Int16    = Type{Kind: KindInt16}
	Int32    = Type{Kind: KindInt32}
	Int64    = Type{Kind: KindInt64}
	Float32  = Type{Kind: KindFloat32}
	Float64  = Type{Kind: KindFloat64}
	Decimal  = Type{Kind: KindDecimal}
	String   = Type{Kind: KindString}
	DateTime = Type{Kind: KindDateTime}
	Char     = Type{Kind: KindChar}
)

// ArrayOf returns an array type of elem. rank defaults to 1.
func ArrayOf(elem Type, rank ...int) Type {
	r := 1
	if len(rank) > 0 && rank[0] > 0 {
		r = rank[0]
	}
	return Type{Kind: KindArray, Elem: &elem, Rank: r}
}

// Sized returns an array type of elem with the given extents, one per dimension
func Sized(elem Type, dims ...int) Type {
	t := ArrayOf(elem, len(dims))
	t.Shape = dims
	return t
}

func RecordOf(env *Env) Type {
	return Type{Kind: KindRecord, Env: env}
}

// CyclicRecord stands for a struct type that contains itself
func CyclicRecord(goName string) Type {
	return Type{Kind: KindRecord, GoName: goName, Cyclic: true}
}

func Unsupported(goName string) Type {
	return Type{Kind: KindInvalid, GoName: goName}
}

func (t Type) IsArrayOfRecord() bool {
	return t.Kind == KindArray && t.Elem != nil && t.Elem.Kind == KindRecord
}

func (t Type) String() string {
	switch t.Kind {
	case KindArray:
		if t.Elem == nil {
			return "[]?"
		}
		return strings.Repeat("[]", max(t.Rank, 1)) + t.Elem.String()
	case KindRecord:
		if t.Env == nil {
			if t.GoName != "" {
				return t.GoName
			}
			return "record"
		}
		return t.Env.Name
	case KindInvalid:
		if t.GoName != "" {
			return t.GoName
		}
		return "invalid"
	default:
		return t.Kind.String()
	}
}

// Mapping lets a field of a domain type be solved for as a regular,
// representable type.
//
// Wrap builds the domain value from a decoded regular value; a Mapping
// without Wrap cannot be decoded. Unwrap turns a domain value into its regular
// representation so that it can appear as a literal.
type Mapping struct {
	Domain  reflect.Type
	Regular Type
	Wrap    func(regular any) (any, error)
	Unwrap  func(domain any) (any, error)
}

// MapVia builds a Mapping between the domain type D and the regular Go type R
func MapVia[D, R any](regular Type, wrap func(R) D, unwrap func(D) R) *Mapping {
	m := &Mapping{
		Domain:  reflect.TypeFor[D](),
		Regular: regular,
	}
	if wrap != nil {
		m.Wrap = func(v any) (any, error) {
			r, ok := v.(R)
			if !ok {
				return nil, fmt.Errorf("mapping for %v expected %v, got %T", m.Domain, reflect.TypeFor[R](), v)
			}
			return wrap(r), nil
		}
	}
	if unwrap != nil {
		m.Unwrap = func(v any) (any, error) {
			d, ok := v.(D)
			if !ok {
				return nil, fmt.Errorf("mapping for %v got %T", m.Domain, v)
			}
			return unwrap(d), nil
		}
	}
	return m
}
