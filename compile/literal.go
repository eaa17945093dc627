package compile

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/cottand/theorem/internal/rational"
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/shopspring/decimal"
)

// Literals selects how floating point literals become rationals
type Literals int

const (
	// LiteralsAuto parses floats exactly when the engine accepts arbitrary
	// rationals, and approximates them otherwise
	LiteralsAuto Literals = iota
	// LiteralsExact uses the shortest decimal form of the float
	LiteralsExact
	// LiteralsApprox uses a continued fraction with a bounded denominator
	LiteralsApprox
)

func (l Literals) String() string {
	switch l {
	case LiteralsExact:
		return "exact"
	case LiteralsApprox:
		return "approx"
	default:
		return "auto"
	}
}

// ParseLiterals reads the names printed by Literals.String
func ParseLiterals(s string) (Literals, bool) {
	switch s {
	case "auto", "":
		return LiteralsAuto, true
	case "exact":
		return LiteralsExact, true
	case "approx":
		return LiteralsApprox, true
	}
	return LiteralsAuto, false
}

// resolve picks exact or approximate literals for ctx
func (l Literals) resolve(ctx smt.Context) Literals {
	if l != LiteralsAuto {
		return l
	}
	if exact, ok := ctx.(smt.ExactRationals); ok && exact.ExactRationals() {
		return LiteralsExact
	}
	return LiteralsApprox
}

// rat converts a float of the given bit size into the rational its literal stands for
func (c *Compiler) rat(f float64, bits int) *big.Rat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if c.literals == LiteralsExact {
		return pred.ExactRat(f, bits)
	}
	if bits == 32 {
		// approximate the decimal the float32 was written as, not its float64 widening
		f, _ = strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
	}
	return rational.Approximate(f, rational.MaxDenominator)
}

// literal turns a host value into a constant term
func (c *Compiler) literal(v any) (smt.Term, error) {
	if v == nil {
		return nil, thmerr.New(thmerr.NewUnsupportedExpression{Kind: "nil literal"})
	}
	if m, ok := c.mappings[reflect.TypeOf(v)]; ok {
		if m.Unwrap == nil {
			return nil, thmerr.New(thmerr.NewUnsupportedExpression{
				Kind:   reflect.TypeOf(v).String() + " literal",
				Detail: "its mapping cannot turn it into " + m.Regular.String(),
			})
		}
		regular, err := m.Unwrap(v)
		if err != nil {
			return nil, err
		}
		return c.literal(regular)
	}

	switch v := v.(type) {
	case bool:
		return c.ctx.BoolVal(v), nil
	case int:
		return c.ctx.IntVal(int64(v)), nil
	case int8:
		return c.ctx.IntVal(int64(v)), nil
	case int16:
		return c.ctx.IntVal(int64(v)), nil
	case int32:
		return c.ctx.IntVal(int64(v)), nil
	case int64:
		return c.ctx.IntVal(v), nil
	case uint:
		return c.ctx.BigIntVal(new(big.Int).SetUint64(uint64(v))), nil
	case uint8:
		return c.ctx.IntVal(int64(v)), nil
	case uint16:
		return c.ctx.IntVal(int64(v)), nil
	case uint32:
		return c.ctx.IntVal(int64(v)), nil
	case uint64:
		return c.ctx.BigIntVal(new(big.Int).SetUint64(v)), nil
	case *big.Int:
		return c.ctx.BigIntVal(v), nil
	case float32:
		if r := c.rat(float64(v), 32); r != nil {
			return c.ctx.RatVal(r), nil
		}
	case float64:
		if r := c.rat(v, 64); r != nil {
			return c.ctx.RatVal(r), nil
		}
	case *big.Rat:
		return c.ctx.RatVal(v), nil
	case decimal.Decimal:
		return c.ctx.RatVal(v.Rat()), nil
	case time.Time:
		return c.ctx.IntVal(v.UnixNano()), nil
	case string:
		return c.ctx.StringVal(v), nil
	default:
		if u, ok := pred.Underlying(v); ok {
			return c.literal(u)
		}
	}
	return nil, thmerr.New(thmerr.NewUnsupportedExpression{Kind: reflect.TypeOf(v).String() + " literal"})
}
