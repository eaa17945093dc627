package decode

import (
	"slices"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
)

// IntoMap decodes the model into nested maps keyed by field name, for
// environments declared without a Go struct. Records become map[string]any
// and arrays []any, so array fields must declare their Shape.
func IntoMap(ctx smt.Context, m smt.Model, b *binding.Binding) (map[string]any, error) {
	d := &decoder{ctx: ctx, m: m}
	out := d.recordMap(b.Root)
	if err := ctx.Err(); err != nil {
		d.errs = d.errs.With(thmerr.New(thmerr.NewEngineFailure{Op: "decoding " + b.Env().Name, Reason: err.Error()}))
	}
	if d.errs.HasError() {
		return nil, d.errs.Err()
	}
	return out, nil
}

func (d *decoder) recordMap(rec *binding.Record) map[string]any {
	out := make(map[string]any, len(rec.Children))
	for _, child := range rec.Children {
		if v, ok := d.nodeValue(child); ok {
			out[child.Field().Name] = v
		}
	}
	return out
}

func (d *decoder) nodeValue(n binding.Node) (any, bool) {
	switch n := n.(type) {
	case *binding.Record:
		return d.recordMap(n), true
	case *binding.ArrayOfRecord:
		shape := n.Field().Regular().Shape
		if len(shape) != n.Rank {
			d.fail(mismatch(n.Path(), "array with a declared length", n.Field().Regular()))
			return nil, false
		}
		return d.shaped(shape, nil, func(index []int) (any, bool) {
			elem := make(map[string]any, len(n.Children))
			for _, leaf := range n.Children {
				if leaf.Rank > n.Rank {
					if v, ok := d.elemArray(n, leaf, index); ok {
						elem[leaf.Field().Name] = v
					}
					continue
				}
				v, err := d.cell(leaf, index)
				if err != nil {
					d.fail(err)
					return nil, false
				}
				if v, ok := wrap(d, cellPath(leaf.Path(), index), leaf.Field(), v); ok {
					elem[leaf.Field().Name] = v
				}
			}
			return elem, true
		}), true
	case *binding.Leaf:
		if !n.IsArray() {
			v, err := read(d.m, n.Term, n.ScalarType().Kind)
			if err != nil {
				d.fail(errors.Wrapf(err, "reading %s", n.Path()))
				return nil, false
			}
			return wrap(d, n.Path(), n.Field(), v)
		}
		shape := n.Type.Shape
		if len(shape) != n.Rank {
			d.fail(mismatch(n.Path(), "array with a declared length", n.Type))
			return nil, false
		}
		return d.shaped(shape, nil, func(index []int) (any, bool) {
			v, err := d.cell(n, index)
			if err != nil {
				d.fail(err)
				return nil, false
			}
			return v, true
		}), true
	}
	return nil, false
}

// elemArray decodes the array held by element field leaf of the element at index
func (d *decoder) elemArray(n *binding.ArrayOfRecord, leaf *binding.Leaf, index []int) (any, bool) {
	shape := leaf.Type.Shape
	if len(shape) != leaf.Rank-n.Rank {
		d.fail(mismatch(cellPath(leaf.Path(), index), "array with a declared length", leaf.Type))
		return nil, false
	}
	return d.shaped(shape, nil, func(inner []int) (any, bool) {
		v, err := d.cell(leaf, append(slices.Clone(index), inner...))
		if err != nil {
			d.fail(err)
			return nil, false
		}
		return v, true
	}), true
}

// shaped builds nested []any of the given shape, calling elem for every position
func (d *decoder) shaped(shape []int, index []int, elem func([]int) (any, bool)) []any {
	n := shape[len(index)]
	out := make([]any, n)
	for i := 0; i < n; i++ {
		next := append(index[:len(index):len(index)], i)
		if len(next) == len(shape) {
			out[i], _ = elem(next)
			continue
		}
		out[i] = d.shaped(shape, next, elem)
	}
	return out
}

func wrap(d *decoder, path string, f schema.Field, v any) (any, bool) {
	if f.Mapping == nil {
		return v, true
	}
	if f.Mapping.Wrap == nil {
		d.fail(thmerr.New(thmerr.NewMissingMappingConstructor{Field: path, Domain: f.Mapping.Domain.String()}))
		return nil, false
	}
	out, err := f.Mapping.Wrap(v)
	if err != nil {
		d.fail(mismatch(path, f.Mapping.Domain, err.Error()))
		return nil, false
	}
	return out, true
}
