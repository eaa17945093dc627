// Package binding builds the tree of engine terms that stands for an
// environment within one engine session.
package binding

import (
	"slices"
	"strings"

	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
)

var logger = log.DefaultLogger.With("section", "binding")

// Node is one of *Leaf, *Record or *ArrayOfRecord
type Node interface {
	// Path is the underscore-joined name of the node, rooted at the environment name
	Path() string
	// Field is the declaration the node was built for; it is zero for the root
	Field() schema.Field
}

var (
	_ Node = (*Leaf)(nil)
	_ Node = (*Record)(nil)
	_ Node = (*ArrayOfRecord)(nil)
)

// Leaf holds the term of a scalar field, of an array of primitives, or of
// one element field of an array of records.
type Leaf struct {
	path  string
	field schema.Field
	// Type is the regular type of the field; for element fields of an
	// array of records it is the element field's own type
	Type schema.Type
	Term smt.Term
	// Rank is the number of indices selecting a scalar out of Term
	Rank int
	// Elem marks the element fields of an array of records. Their Term is
	// indexed by element position first, then by the indices of the element
	// field's own array if it has one.
	Elem bool
}

type Record struct {
	path     string
	field    schema.Field
	Env      *schema.Env
	Children []Node
}

// ArrayOfRecord keeps one array leaf per element field, all indexed by element position
type ArrayOfRecord struct {
	path     string
	field    schema.Field
	Elem     *schema.Env
	Rank     int
	Children []*Leaf
}

func (l *Leaf) Path() string          { return l.path }
func (r *Record) Path() string        { return r.path }
func (a *ArrayOfRecord) Path() string { return a.path }

func (l *Leaf) Field() schema.Field          { return l.field }
func (r *Record) Field() schema.Field        { return r.field }
func (a *ArrayOfRecord) Field() schema.Field { return a.field }

// IsArray reports whether Term must be selected from before reading a scalar
func (l *Leaf) IsArray() bool { return l.Rank > 0 }

// ScalarType is the type of the values held by the leaf
func (l *Leaf) ScalarType() schema.Type {
	if l.Type.Kind == schema.KindArray && l.Type.Elem != nil {
		return *l.Type.Elem
	}
	return l.Type
}

func (r *Record) Child(name string) (Node, bool) {
	for _, child := range r.Children {
		if child.Field().Name == name {
			return child, true
		}
	}
	return nil, false
}

func (a *ArrayOfRecord) Child(name string) (*Leaf, bool) {
	for _, child := range a.Children {
		if child.Field().Name == name {
			return child, true
		}
	}
	return nil, false
}

// Binding is the term tree of one environment
type Binding struct {
	Root   *Record
	leaves []*Leaf
}

func (b *Binding) Env() *schema.Env { return b.Root.Env }

// Leaves lists every leaf in declaration order
func (b *Binding) Leaves() []*Leaf { return b.leaves }

// Lookup follows field names from the root
func (b *Binding) Lookup(names ...string) (Node, bool) {
	var node Node = b.Root
	for _, name := range names {
		switch n := node.(type) {
		case *Record:
			child, ok := n.Child(name)
			if !ok {
				return nil, false
			}
			node = child
		case *ArrayOfRecord:
			child, ok := n.Child(name)
			if !ok {
				return nil, false
			}
			node = child
		default:
			return nil, false
		}
	}
	return node, true
}

func join(prefix, name string) string {
	return prefix + "_" + name
}

// Build declares one engine constant per leaf of env within ctx.
// All unsupported fields are reported together.
func Build(ctx smt.Context, env *schema.Env) (*Binding, error) {
	b := &builder{ctx: ctx}
	root := b.record(env.Name, schema.Field{}, env)
	if b.errs.HasError() {
		logger.Warn("could not bind environment", "env", env.Name, "errs", b.errs)
		return nil, b.errs.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, thmerr.New(thmerr.NewEngineFailure{Op: "binding " + env.Name, Reason: err.Error()})
	}
	return &Binding{Root: root, leaves: b.leaves}, nil
}

type builder struct {
	ctx    smt.Context
	errs   *thmerr.Errors
	leaves []*Leaf
}

func (b *builder) fail(err thmerr.Error) {
	b.errs = b.errs.With(err)
}

func (b *builder) record(prefix string, field schema.Field, env *schema.Env) *Record {
	rec := &Record{path: prefix, field: field, Env: env}
	for _, f := range env.Fields {
		if node := b.field(join(prefix, f.Name), f); node != nil {
			rec.Children = append(rec.Children, node)
		}
	}
	return rec
}

func (b *builder) field(path string, f schema.Field) Node {
	t := f.Regular()
	switch {
	case t.Cyclic || t.Kind == schema.KindArray && t.Elem != nil && t.Elem.Cyclic:
		b.fail(thmerr.New(thmerr.NewUnsupportedNesting{Field: path}))
		return nil
	case t.Kind == schema.KindRecord:
		if t.Env == nil {
			b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: path, Type: t.String()}))
			return nil
		}
		return b.record(path, f, t.Env)
	case t.IsArrayOfRecord():
		return b.arrayOfRecord(path, f, t)
	case t.Kind == schema.KindArray:
		if t.Elem == nil {
			b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: path, Type: t.String()}))
			return nil
		}
		sort, err := schema.NormalizeArray(*t.Elem, t.Rank)
		if err != nil {
			b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: path, Type: t.String()}))
			return nil
		}
		return b.leaf(path, f, t, sort, t.Rank, false)
	default:
		sort, err := schema.Normalize(t)
		if err != nil {
			b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: path, Type: t.String()}))
			return nil
		}
		return b.leaf(path, f, t, sort, 0, false)
	}
}

func (b *builder) arrayOfRecord(path string, f schema.Field, t schema.Type) Node {
	elemEnv := t.Elem.Env
	if elemEnv == nil {
		b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: path, Type: t.String()}))
		return nil
	}
	node := &ArrayOfRecord{path: path, field: f, Elem: elemEnv, Rank: t.Rank}
	domain := make([]smt.Sort, t.Rank)
	for i := range domain {
		domain[i] = smt.Int
	}
	for _, ef := range elemEnv.Fields {
		elemPath := join(path, ef.Name)
		et := ef.Regular()
		if et.Kind == schema.KindRecord || et.IsArrayOfRecord() || et.Cyclic {
			b.fail(thmerr.New(thmerr.NewUnsupportedNesting{Field: elemPath}))
			continue
		}
		if et.Kind == schema.KindArray {
			// element positions come first, then the indices of the field's own array
			index, value, err := schema.ElementSorts(*et.Elem)
			if err != nil {
				b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: elemPath, Type: et.String()}))
				continue
			}
			inner := append(slices.Clone(domain), slices.Repeat([]smt.Sort{index}, et.Rank)...)
			node.Children = append(node.Children, b.leaf(elemPath, ef, et, smt.Array(value, inner...), t.Rank+et.Rank, true))
			continue
		}
		scalar, err := schema.Normalize(et)
		if err != nil {
			b.fail(thmerr.New(thmerr.NewUnsupportedType{Field: elemPath, Type: et.String()}))
			continue
		}
		node.Children = append(node.Children, b.leaf(elemPath, ef, et, smt.Array(scalar, domain...), t.Rank, true))
	}
	return node
}

func (b *builder) leaf(path string, f schema.Field, t schema.Type, sort smt.Sort, rank int, elem bool) *Leaf {
	l := &Leaf{
		path:  path,
		field: f,
		Type:  t,
		Term:  b.ctx.Const(path, sort),
		Rank:  rank,
		Elem:  elem,
	}
	logger.Debug("bound leaf", "name", path, "sort", sort.String())
	b.leaves = append(b.leaves, l)
	return l
}

// PathOf joins field names the way leaves are named
func PathOf(env string, names ...string) string {
	return strings.Join(append([]string{env}, names...), "_")
}
