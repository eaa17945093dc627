package pred

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNotConstant is returned when evaluating an expression that depends on
// the parameter or on a call that must be left to the compiler
var ErrNotConstant = errors.New("expression is not constant")

// Evaluator computes the host value of parameter-independent expressions.
//
// Integers are computed as *big.Int and reals as *big.Rat, so evaluating a
// subtree yields the same value the engine would compute for it.
type Evaluator struct {
	// Rat converts a float of the given bit size into a rational.
	// When nil, the shortest decimal representation of the float is used.
	Rat func(f float64, bits int) *big.Rat
	// Opaque reports calls that must not be evaluated, such as calls
	// handled by predicate rewriters
	Opaque func(fn string) bool
}

// Eval evaluates e with the default Evaluator
func Eval(e Expr) (any, error) {
	return (&Evaluator{}).Eval(e)
}

// Fold folds e with the default Evaluator
func Fold(e Expr, param string) Expr {
	return (&Evaluator{}).Fold(e, param)
}

// ExactRat returns the rational written by the shortest decimal form of f
func ExactRat(f float64, bits int) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, bits))
	if !ok {
		return nil
	}
	return r
}

func (ev *Evaluator) rat(f float64, bits int) *big.Rat {
	if ev.Rat != nil {
		return ev.Rat(f, bits)
	}
	return ExactRat(f, bits)
}

// Eval returns the value of e. Member and Index chains over captured values
// evaluate to the host values they reach; operators evaluate to bool,
// *big.Int, *big.Rat or string.
func (ev *Evaluator) Eval(e Expr) (any, error) {
	switch e := e.(type) {
	case *Const:
		return e.Value, nil
	case *Captured:
		return e.Value, nil
	case *Param, *Name, *Lambda:
		return nil, ErrNotConstant
	case *Member:
		x, err := ev.Eval(e.X)
		if err != nil {
			return nil, err
		}
		return memberOf(x, e.Name)
	case *Index:
		x, err := ev.Eval(e.X)
		if err != nil {
			return nil, err
		}
		for _, idxExpr := range e.Indices {
			idx, err := ev.Eval(idxExpr)
			if err != nil {
				return nil, err
			}
			if x, err = indexOf(x, idx); err != nil {
				return nil, err
			}
		}
		return x, nil
	case *Unary:
		x, err := ev.Eval(e.X)
		if err != nil {
			return nil, err
		}
		return ev.unary(e.Op, x)
	case *Binary:
		l, err := ev.Eval(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := ev.Eval(e.Right)
		if err != nil {
			return nil, err
		}
		return ev.binary(e.Op, l, r)
	case *Call:
		return ev.call(e)
	case *Convert:
		x, err := ev.Eval(e.X)
		if err != nil {
			return nil, err
		}
		return ev.convert(x, e.To)
	}
	return nil, thmerr.New(thmerr.NewUnsupportedExpression{Kind: fmt.Sprintf("%T", e)})
}

func (ev *Evaluator) call(e *Call) (any, error) {
	if ev.Opaque != nil && ev.Opaque(e.Fn) {
		return nil, ErrNotConstant
	}
	if strings.HasPrefix(e.Fn, "get_") && e.Recv != nil {
		return ev.Eval(&Index{X: e.Recv, Indices: e.Args})
	}
	switch e.Fn {
	case "len":
		if len(e.Args) != 1 {
			break
		}
		x, err := ev.Eval(e.Args[0])
		if err != nil {
			return nil, err
		}
		v := indirect(reflect.ValueOf(x))
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.String, reflect.Map:
			return big.NewInt(int64(v.Len())), nil
		}
		return nil, errors.Errorf("len of %T", x)
	case "select":
		if len(e.Args) != 2 {
			break
		}
		lambda, ok := e.Args[1].(*Lambda)
		if !ok {
			break
		}
		coll, err := ev.Eval(e.Args[0])
		if err != nil {
			return nil, err
		}
		elems, err := Elements(coll)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(elems))
		for _, elem := range elems {
			v, err := ev.Eval(Substitute(lambda.Body, lambda.Param, &Const{Value: elem}))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case "distinct":
		vals := make([]any, 0, len(e.Args))
		for _, arg := range e.Args {
			v, err := ev.Eval(arg)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		if len(vals) == 1 {
			elems, err := Elements(vals[0])
			if err != nil {
				return nil, err
			}
			vals = elems
		}
		for i := range vals {
			for j := i + 1; j < len(vals); j++ {
				eq, err := ev.equal(vals[i], vals[j])
				if err != nil {
					return nil, err
				}
				if eq {
					return false, nil
				}
			}
		}
		return true, nil
	case "xor":
		if len(e.Args) != 2 {
			break
		}
		l, err := ev.Eval(e.Args[0])
		if err != nil {
			return nil, err
		}
		r, err := ev.Eval(e.Args[1])
		if err != nil {
			return nil, err
		}
		return ev.binary(OpXor, l, r)
	}
	// sqrt and unknown calls are the compiler's business
	return nil, ErrNotConstant
}

func (ev *Evaluator) unary(op Op, x any) (any, error) {
	switch op {
	case OpNot:
		b, ok := plain(x).(bool)
		if !ok {
			return nil, errors.Errorf("cannot negate %T", x)
		}
		return !b, nil
	case OpNeg:
		i, r, err := ev.number(x)
		if err != nil {
			return nil, err
		}
		if i != nil {
			return new(big.Int).Neg(i), nil
		}
		return new(big.Rat).Neg(r), nil
	}
	return nil, errors.Errorf("unknown unary operator %v", op)
}

func (ev *Evaluator) binary(op Op, l, r any) (any, error) {
	switch {
	case op.IsLogical():
		lb, lok := plain(l).(bool)
		rb, rok := plain(r).(bool)
		if !lok || !rok {
			return nil, errors.Errorf("operator %v on %T and %T", op, l, r)
		}
		switch op {
		case OpAnd:
			return lb && rb, nil
		case OpOr:
			return lb || rb, nil
		default:
			return lb != rb, nil
		}
	case op == OpEq || op == OpNe:
		eq, err := ev.equal(l, r)
		if err != nil {
			return nil, err
		}
		return eq == (op == OpEq), nil
	case op.IsRelational():
		c, err := ev.compare(l, r)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case op.IsArithmetic():
		return ev.arith(op, l, r)
	}
	return nil, errors.Errorf("unknown binary operator %v", op)
}

func (ev *Evaluator) arith(op Op, l, r any) (any, error) {
	li, lr, err := ev.number(l)
	if err != nil {
		return nil, err
	}
	ri, rr, err := ev.number(r)
	if err != nil {
		return nil, err
	}
	if li != nil && ri != nil {
		switch op {
		case OpAdd:
			return new(big.Int).Add(li, ri), nil
		case OpSub:
			return new(big.Int).Sub(li, ri), nil
		case OpMul:
			return new(big.Int).Mul(li, ri), nil
		case OpDiv, OpRem:
			// engines disagree on the sign conventions of negative operands
			if li.Sign() < 0 || ri.Sign() <= 0 {
				return nil, ErrNotConstant
			}
			if op == OpDiv {
				return new(big.Int).Quo(li, ri), nil
			}
			return new(big.Int).Rem(li, ri), nil
		case OpPow:
			if ri.Sign() < 0 || ri.Cmp(big.NewInt(64)) > 0 {
				return nil, ErrNotConstant
			}
			return new(big.Int).Exp(li, ri, nil), nil
		}
		return nil, errors.Errorf("unknown arithmetic operator %v", op)
	}
	if lr == nil {
		lr = new(big.Rat).SetInt(li)
	}
	if op == OpPow {
		if ri == nil || ri.Sign() < 0 || ri.Cmp(big.NewInt(64)) > 0 {
			return nil, ErrNotConstant
		}
		out := big.NewRat(1, 1)
		for i := int64(0); i < ri.Int64(); i++ {
			out.Mul(out, lr)
		}
		return out, nil
	}
	if rr == nil {
		rr = new(big.Rat).SetInt(ri)
	}
	switch op {
	case OpAdd:
		return new(big.Rat).Add(lr, rr), nil
	case OpSub:
		return new(big.Rat).Sub(lr, rr), nil
	case OpMul:
		return new(big.Rat).Mul(lr, rr), nil
	case OpDiv:
		if rr.Sign() == 0 {
			return nil, ErrNotConstant
		}
		return new(big.Rat).Quo(lr, rr), nil
	}
	return nil, ErrNotConstant
}

func (ev *Evaluator) convert(x any, to schema.Type) (any, error) {
	switch {
	case to.Kind.IsInteger():
		i, r, err := ev.number(x)
		if err != nil {
			return nil, err
		}
		if i != nil {
			return i, nil
		}
		// real to integer conversion rounds towards negative infinity
		q := new(big.Int).Div(r.Num(), r.Denom())
		return q, nil
	case to.Kind.IsReal():
		i, r, err := ev.number(x)
		if err != nil {
			return nil, err
		}
		if i != nil {
			return new(big.Rat).SetInt(i), nil
		}
		return r, nil
	case to.Kind == schema.KindBool:
		if b, ok := plain(x).(bool); ok {
			return b, nil
		}
	case to.Kind == schema.KindString:
		if s, ok := plain(x).(string); ok {
			return s, nil
		}
	}
	return nil, errors.Errorf("cannot convert %T to %v", x, to)
}

func (ev *Evaluator) equal(l, r any) (bool, error) {
	l, r = plain(l), plain(r)
	if IsNumber(l) && IsNumber(r) {
		c, err := ev.compare(l, r)
		return c == 0, err
	}
	if reflect.TypeOf(l) != reflect.TypeOf(r) {
		return false, errors.Errorf("cannot compare %T and %T", l, r)
	}
	return reflect.DeepEqual(l, r), nil
}

func (ev *Evaluator) compare(l, r any) (int, error) {
	if ls, ok := plain(l).(string); ok {
		if rs, ok := plain(r).(string); ok {
			return strings.Compare(ls, rs), nil
		}
	}
	li, lr, err := ev.number(l)
	if err != nil {
		return 0, err
	}
	ri, rr, err := ev.number(r)
	if err != nil {
		return 0, err
	}
	if li != nil && ri != nil {
		return li.Cmp(ri), nil
	}
	if lr == nil {
		lr = new(big.Rat).SetInt(li)
	}
	if rr == nil {
		rr = new(big.Rat).SetInt(ri)
	}
	return lr.Cmp(rr), nil
}

// IsNumber reports whether v is a host value with a numeric literal form
func IsNumber(v any) bool {
	switch plain(v).(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, *big.Int, *big.Rat, decimal.Decimal, time.Time:
		return true
	}
	return false
}

// number splits a host value into exactly one of an integer or a rational
func (ev *Evaluator) number(v any) (*big.Int, *big.Rat, error) {
	switch v := plain(v).(type) {
	case int:
		return big.NewInt(int64(v)), nil, nil
	case int8:
		return big.NewInt(int64(v)), nil, nil
	case int16:
		return big.NewInt(int64(v)), nil, nil
	case int32:
		return big.NewInt(int64(v)), nil, nil
	case int64:
		return big.NewInt(v), nil, nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil, nil
	case uint8:
		return big.NewInt(int64(v)), nil, nil
	case uint16:
		return big.NewInt(int64(v)), nil, nil
	case uint32:
		return big.NewInt(int64(v)), nil, nil
	case uint64:
		return new(big.Int).SetUint64(v), nil, nil
	case *big.Int:
		return v, nil, nil
	case time.Time:
		return big.NewInt(v.UnixNano()), nil, nil
	case float32:
		if r := ev.rat(float64(v), 32); r != nil {
			return nil, r, nil
		}
	case float64:
		if r := ev.rat(v, 64); r != nil {
			return nil, r, nil
		}
	case *big.Rat:
		return nil, v, nil
	case decimal.Decimal:
		return nil, v.Rat(), nil
	}
	return nil, nil, errors.Errorf("%T is not a number", v)
}

// Underlying converts a value of a named bool, string or numeric type,
// such as `type Level int32`, to the predeclared type of the same kind.
// It reports false and returns v unchanged for every other value.
func Underlying(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type().PkgPath() == "" {
		return v, false
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Int:
		return int(rv.Int()), true
	case reflect.Int8:
		return int8(rv.Int()), true
	case reflect.Int16:
		return int16(rv.Int()), true
	case reflect.Int32:
		return int32(rv.Int()), true
	case reflect.Int64:
		return rv.Int(), true
	case reflect.Uint:
		return uint(rv.Uint()), true
	case reflect.Uint8:
		return uint8(rv.Uint()), true
	case reflect.Uint16:
		return uint16(rv.Uint()), true
	case reflect.Uint32:
		return uint32(rv.Uint()), true
	case reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32:
		return float32(rv.Float()), true
	case reflect.Float64:
		return rv.Float(), true
	}
	return v, false
}

func plain(v any) any {
	u, _ := Underlying(v)
	return u
}

// Elements lists the elements of a host slice or array
func Elements(coll any) ([]any, error) {
	if list, ok := coll.([]any); ok {
		return list, nil
	}
	v := indirect(reflect.ValueOf(coll))
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, errors.Errorf("%T is not a collection", coll)
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func memberOf(x any, name string) (any, error) {
	v := indirect(reflect.ValueOf(x))
	switch v.Kind() {
	case reflect.Struct:
		if sf, ok := v.Type().FieldByName(name); ok && sf.IsExported() {
			return v.FieldByIndex(sf.Index).Interface(), nil
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
			if mv.IsValid() {
				return mv.Interface(), nil
			}
		}
	case reflect.Slice, reflect.Array, reflect.String:
		if name == "Length" || name == "len" {
			return big.NewInt(int64(v.Len())), nil
		}
	case reflect.Invalid:
		return nil, thmerr.New(thmerr.NewUnknownMember{Path: "nil." + name})
	}
	if x != nil {
		if m := reflect.ValueOf(x).MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return m.Call(nil)[0].Interface(), nil
		}
	}
	return nil, thmerr.New(thmerr.NewUnknownMember{Path: fmt.Sprintf("%T.%s", x, name)})
}

func indexOf(x any, idx any) (any, error) {
	v := indirect(reflect.ValueOf(x))
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		i, _, err := (&Evaluator{}).number(idx)
		if err != nil {
			return nil, err
		}
		if i == nil || !i.IsInt64() || i.Int64() < 0 || i.Int64() >= int64(v.Len()) {
			return nil, errors.Errorf("index %v out of range of %T", idx, x)
		}
		if v.Kind() == reflect.String {
			return rune(v.String()[i.Int64()]), nil
		}
		return v.Index(int(i.Int64())).Interface(), nil
	case reflect.Map:
		key := reflect.ValueOf(idx)
		if !key.IsValid() || !key.Type().ConvertibleTo(v.Type().Key()) {
			return nil, errors.Errorf("cannot index %T with %T", x, idx)
		}
		mv := v.MapIndex(key.Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, errors.Errorf("key %v not in %T", idx, x)
		}
		return mv.Interface(), nil
	}
	return nil, errors.Errorf("cannot index %T", x)
}

// Substitute replaces the parameter called name with value, leaving lambdas
// that rebind name untouched
func Substitute(e Expr, name string, value Expr) Expr {
	switch e := e.(type) {
	case *Param:
		if e.Name == name {
			return value
		}
		return e
	case *Lambda:
		if e.Param == name {
			return e
		}
		return &Lambda{Param: e.Param, Body: Substitute(e.Body, name, value)}
	case *Binary:
		cp := *e
		cp.Left = Substitute(e.Left, name, value)
		cp.Right = Substitute(e.Right, name, value)
		return &cp
	case *Unary:
		cp := *e
		cp.X = Substitute(e.X, name, value)
		return &cp
	case *Member:
		return &Member{X: Substitute(e.X, name, value), Name: e.Name}
	case *Convert:
		return &Convert{X: Substitute(e.X, name, value), To: e.To}
	case *Call:
		cp := *e
		if e.Recv != nil {
			cp.Recv = Substitute(e.Recv, name, value)
		}
		cp.Args = make([]Expr, len(e.Args))
		for i, arg := range e.Args {
			cp.Args[i] = Substitute(arg, name, value)
		}
		return &cp
	case *Index:
		cp := &Index{X: Substitute(e.X, name, value), Indices: make([]Expr, len(e.Indices))}
		for i, idx := range e.Indices {
			cp.Indices[i] = Substitute(idx, name, value)
		}
		return cp
	}
	return e
}

// Fold replaces every subtree of e that does not depend on param with the
// Const it evaluates to. Subtrees that cannot be evaluated are kept as they are.
func (ev *Evaluator) Fold(e Expr, param string) Expr {
	return ev.fold(e, []string{param})
}

func (ev *Evaluator) fold(e Expr, bound []string) Expr {
	if e == nil {
		return nil
	}
	switch e.(type) {
	case *Const, *Param, *Name, *Lambda:
	default:
		if !dependsOn(e, bound) {
			if v, err := ev.Eval(e); err == nil {
				return &Const{Value: v}
			}
		}
	}
	switch e := e.(type) {
	case *Binary:
		cp := *e
		cp.Left = ev.fold(e.Left, bound)
		cp.Right = ev.fold(e.Right, bound)
		return &cp
	case *Unary:
		cp := *e
		cp.X = ev.fold(e.X, bound)
		return &cp
	case *Member:
		return &Member{X: ev.fold(e.X, bound), Name: e.Name}
	case *Convert:
		return &Convert{X: ev.fold(e.X, bound), To: e.To}
	case *Call:
		cp := *e
		cp.Recv = ev.fold(e.Recv, bound)
		cp.Args = make([]Expr, len(e.Args))
		for i, arg := range e.Args {
			cp.Args[i] = ev.fold(arg, bound)
		}
		return &cp
	case *Index:
		cp := &Index{X: ev.fold(e.X, bound), Indices: make([]Expr, len(e.Indices))}
		for i, idx := range e.Indices {
			cp.Indices[i] = ev.fold(idx, bound)
		}
		return cp
	case *Lambda:
		return &Lambda{Param: e.Param, Body: ev.fold(e.Body, append(slices.Clone(bound), e.Param))}
	}
	return e
}

// dependsOn reports whether e mentions one of the names in bound, or an
// environment field by bare name
func dependsOn(e Expr, bound []string) bool {
	for _, name := range bound {
		if References(e, name) {
			return true
		}
	}
	found := false
	walk(e, func(e Expr) bool {
		if _, ok := e.(*Name); ok {
			found = true
		}
		return !found
	})
	return found
}
