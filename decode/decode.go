// Package decode reads a model back into typed values, following the
// Binding the model's terms were declared by.
package decode

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var logger = log.DefaultLogger.With("section", "decode")

type decoder struct {
	ctx  smt.Context
	m    smt.Model
	errs *thmerr.Errors
}

// Into decodes the model into dst, a pointer to a named struct shaped like
// the environment of b.
//
// Arrays are decoded up to the length they already have in dst, since the
// model carries no lengths: callers pre-size slices. Go arrays have their length.
func Into(ctx smt.Context, m smt.Model, b *binding.Binding, dst any) error {
	rv := reflect.ValueOf(dst)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return thmerr.New(thmerr.NewDecodeTypeMismatch{Field: b.Env().Name, Expected: "non-nil pointer to struct", Found: fmt.Sprintf("%T", dst)})
	}
	v := rv.Elem()
	if v.Kind() != reflect.Struct || v.Type().Name() == "" {
		return thmerr.New(thmerr.NewDecodeTypeMismatch{Field: b.Env().Name, Expected: "named struct", Found: v.Type().String()})
	}

	d := &decoder{ctx: ctx, m: m}
	d.record(b.Root, v)
	if err := ctx.Err(); err != nil {
		d.errs = d.errs.With(thmerr.New(thmerr.NewEngineFailure{Op: "decoding " + b.Env().Name, Reason: err.Error()}))
	}
	if d.errs.HasError() {
		logger.Warn("could not decode model", "env", b.Env().Name, "errs", d.errs)
	}
	return d.errs.Err()
}

func (d *decoder) fail(err error) {
	var e thmerr.Error
	if errors.As(err, &e) {
		d.errs = d.errs.With(e)
		return
	}
	d.errs = d.errs.With(thmerr.New(thmerr.NewEngineFailure{Op: "decoding", Reason: err.Error()}))
}

func mismatch(path string, expected, found any) error {
	return thmerr.New(thmerr.NewDecodeTypeMismatch{Field: path, Expected: fmt.Sprint(expected), Found: fmt.Sprint(found)})
}

// fieldOf finds the struct field f was declared for. Fields are found by
// their recorded position when v is the struct env was derived from, and by
// declared name otherwise.
func fieldOf(v reflect.Value, env *schema.Env, f schema.Field) (reflect.Value, bool) {
	if f.GoIndex != nil && env.GoType() == v.Type() {
		return v.FieldByIndex(f.GoIndex), true
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && schema.FieldName(sf) == f.Name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// settle allocates nil pointers on the way to the value v points to
func settle(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}

func (d *decoder) record(rec *binding.Record, v reflect.Value) {
	v = settle(v)
	if v.Kind() != reflect.Struct {
		d.fail(mismatch(rec.Path(), rec.Env.Name, v.Type()))
		return
	}
	for _, child := range rec.Children {
		fv, ok := fieldOf(v, rec.Env, child.Field())
		if !ok {
			d.fail(mismatch(child.Path(), child.Field().Regular(), "no field in "+v.Type().String()))
			continue
		}
		d.node(child, fv)
	}
}

func (d *decoder) node(n binding.Node, dst reflect.Value) {
	switch n := n.(type) {
	case *binding.Record:
		d.record(n, dst)
	case *binding.ArrayOfRecord:
		d.arrayOfRecord(n, dst, nil)
	case *binding.Leaf:
		if n.IsArray() {
			d.array(n, dst, nil)
			return
		}
		v, err := read(d.m, n.Term, n.ScalarType().Kind)
		if err != nil {
			d.fail(errors.Wrapf(err, "reading %s", n.Path()))
			return
		}
		d.assign(n.Path(), n.Field(), dst, v)
	}
}

// array walks the dimensions of dst, decoding one cell of leaf per element
func (d *decoder) array(leaf *binding.Leaf, dst reflect.Value, index []int) {
	if len(index) == leaf.Rank {
		v, err := d.cell(leaf, index)
		if err != nil {
			d.fail(err)
			return
		}
		d.assign(cellPath(leaf.Path(), index), schema.Field{}, dst, v)
		return
	}
	dst = settle(dst)
	if dst.Kind() != reflect.Slice && dst.Kind() != reflect.Array {
		d.fail(mismatch(cellPath(leaf.Path(), index), leaf.Type, dst.Type()))
		return
	}
	for i := 0; i < dst.Len(); i++ {
		d.array(leaf, dst.Index(i), append(index[:len(index):len(index)], i))
	}
}

func (d *decoder) arrayOfRecord(n *binding.ArrayOfRecord, dst reflect.Value, index []int) {
	dst = settle(dst)
	if len(index) == n.Rank {
		if dst.Kind() != reflect.Struct {
			d.fail(mismatch(cellPath(n.Path(), index), n.Elem.Name, dst.Type()))
			return
		}
		for _, leaf := range n.Children {
			fv, ok := fieldOf(dst, n.Elem, leaf.Field())
			if !ok {
				d.fail(mismatch(leaf.Path(), leaf.Type, "no field in "+dst.Type().String()))
				continue
			}
			if leaf.Rank > n.Rank {
				d.array(leaf, fv, index)
				continue
			}
			v, err := d.cell(leaf, index)
			if err != nil {
				d.fail(err)
				continue
			}
			d.assign(cellPath(leaf.Path(), index), leaf.Field(), fv, v)
		}
		return
	}
	if dst.Kind() != reflect.Slice && dst.Kind() != reflect.Array {
		d.fail(mismatch(cellPath(n.Path(), index), "array of "+n.Elem.Name, dst.Type()))
		return
	}
	for i := 0; i < dst.Len(); i++ {
		d.arrayOfRecord(n, dst.Index(i), append(index[:len(index):len(index)], i))
	}
}

func cellPath(path string, index []int) string {
	if len(index) == 0 {
		return path
	}
	parts := make([]string, len(index))
	for i, idx := range index {
		parts[i] = strconv.Itoa(idx)
	}
	return path + "[" + strings.Join(parts, ",") + "]"
}

// cell reads the element of leaf at the given position
func (d *decoder) cell(leaf *binding.Leaf, index []int) (any, error) {
	domain := leaf.Term.Sort().Domain
	terms := make([]smt.Term, len(index))
	for i, idx := range index {
		t, err := indexTerm(d.ctx, domain[i], idx)
		if err != nil {
			return nil, errors.Wrapf(err, "addressing %s", cellPath(leaf.Path(), index))
		}
		terms[i] = t
	}
	v, err := read(d.m, d.ctx.Select(leaf.Term, terms...), leaf.ScalarType().Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", cellPath(leaf.Path(), index))
	}
	return v, nil
}

// indexTerm builds the term addressing position i of an array indexed by s
func indexTerm(ctx smt.Context, s smt.Sort, i int) (smt.Term, error) {
	switch s.Kind {
	case smt.IntSort:
		return ctx.IntVal(int64(i)), nil
	case smt.RealSort:
		return ctx.RatVal(new(big.Rat).SetInt64(int64(i))), nil
	case smt.StringSort:
		return ctx.StringVal(strconv.Itoa(i)), nil
	case smt.BoolSort:
		if i > 1 {
			return nil, errors.Errorf("position %d of an array indexed by booleans", i)
		}
		return ctx.BoolVal(i == 1), nil
	}
	return nil, errors.Errorf("no positions in arrays indexed by %v", s)
}

// read evaluates t under m and returns the Go value a field of kind k
// holds: bool, int16, int32, int64, rune, float32, float64, decimal.Decimal,
// string or time.Time
func read(m smt.Model, t smt.Term, k schema.Kind) (any, error) {
	switch t.Sort().Kind {
	case smt.BoolSort:
		if k != schema.KindBool {
			break
		}
		return m.Bool(t)
	case smt.IntSort, smt.BitVecSort:
		n, err := m.Int(t)
		if err != nil {
			return nil, err
		}
		return fromInt(n, k, t.Sort())
	case smt.RealSort, smt.FloatSort:
		if !k.IsReal() {
			break
		}
		s, err := m.Decimal(t, schema.DecimalPrecision(k))
		if err != nil {
			return nil, err
		}
		return fromDecimal(s, k)
	case smt.StringSort:
		if k != schema.KindString {
			break
		}
		return m.String(t)
	}
	return nil, mismatch(fmt.Sprint(t), k, t.Sort())
}

func fromInt(n *big.Int, k schema.Kind, s smt.Sort) (any, error) {
	if !n.IsInt64() {
		return nil, mismatch(n.String(), k, "integer beyond 64 bits")
	}
	i := n.Int64()
	switch k {
	case schema.KindInt16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, mismatch(n.String(), k, "integer beyond 16 bits")
		}
		return int16(i), nil
	case schema.KindInt32, schema.KindChar:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, mismatch(n.String(), k, "integer beyond 32 bits")
		}
		if k == schema.KindChar {
			return rune(i), nil
		}
		return int32(i), nil
	case schema.KindInt64:
		return i, nil
	case schema.KindDateTime:
		return time.Unix(0, i), nil
	case schema.KindString:
		// string arrays store 16-bit code units
		if s.Kind == smt.BitVecSort {
			return string(rune(uint16(i))), nil
		}
	}
	return nil, mismatch(n.String(), k, s)
}

func fromDecimal(s string, k schema.Kind) (any, error) {
	switch k {
	case schema.KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", s)
		}
		return float32(f), nil
	case schema.KindFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", s)
		}
		return f, nil
	}
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", s)
	}
	return dec, nil
}

// assign stores v into dst, wrapping it first if f has a mapping
func (d *decoder) assign(path string, f schema.Field, dst reflect.Value, v any) {
	v, ok := wrap(d, path, f, v)
	if !ok {
		return
	}
	dst = settle(dst)
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case convertible(rv, dst.Type()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		d.fail(mismatch(path, dst.Type(), rv.Type()))
	}
}

// convertible allows conversions within a family of kinds that keep the
// value, such as int32 to int or float64 to a named float type
func convertible(v reflect.Value, to reflect.Type) bool {
	if !v.Type().ConvertibleTo(to) {
		return false
	}
	switch {
	case v.CanInt() && isIntKind(to.Kind()):
		return !reflect.Zero(to).OverflowInt(v.Int())
	case v.CanFloat() && (to.Kind() == reflect.Float32 || to.Kind() == reflect.Float64):
		return true
	case v.Kind() == to.Kind():
		return v.Kind() == reflect.String || v.Kind() == reflect.Bool || v.Kind() == reflect.Struct
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}
