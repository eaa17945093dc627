package compile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
)

// ref is a partially resolved member chain: the binding node reached so far
// and the indices met on the way, not yet applied
type ref struct {
	node    binding.Node
	path    []string
	indices []smt.Term
}

// rootOf follows the Member and Index chain of e down to its root
func rootOf(e pred.Expr) pred.Expr {
	for {
		switch x := e.(type) {
		case *pred.Member:
			e = x.X
		case *pred.Index:
			e = x.X
		case *pred.Call:
			if x.Recv == nil || !strings.HasPrefix(x.Fn, "get_") {
				return e
			}
			e = x.Recv
		default:
			return e
		}
	}
}

// chain compiles a member chain. Chains rooted at the parameter resolve
// through the binding; chains rooted at host values are evaluated.
func (c *Compiler) chain(e pred.Expr) (smt.Term, error) {
	switch root := rootOf(e).(type) {
	case *pred.Param, *pred.Name:
		r, err := c.resolve(e)
		if err != nil {
			return nil, err
		}
		return c.load(e, r)
	case *pred.Captured, *pred.Const:
		v, err := c.ev.Eval(e)
		if errors.Is(err, pred.ErrNotConstant) {
			return nil, unsupported(e, "host value addressed by a symbolic term")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s", pred.ExprString(e))
		}
		return c.literal(v)
	default:
		return nil, unsupported(e, fmt.Sprintf("member chain rooted at %s", root.Describe()))
	}
}

func (c *Compiler) resolve(e pred.Expr) (*ref, error) {
	switch e := e.(type) {
	case *pred.Param:
		if e.Name != c.param {
			return nil, thmerr.New(thmerr.NewUnknownParameter{Name: e.Name, Expected: c.param})
		}
		return &ref{node: c.b.Root}, nil
	case *pred.Name:
		return c.member(&ref{node: c.b.Root}, e.Name)
	case *pred.Member:
		r, err := c.resolve(e.X)
		if err != nil {
			return nil, err
		}
		return c.member(r, e.Name)
	case *pred.Index:
		r, err := c.resolve(e.X)
		if err != nil {
			return nil, err
		}
		for _, idxExpr := range e.Indices {
			idx, err := c.visit(idxExpr)
			if err != nil {
				return nil, err
			}
			r.indices = append(r.indices, idx)
		}
		return r, nil
	case *pred.Call:
		return c.resolve(&pred.Index{X: e.Recv, Indices: e.Args})
	}
	return nil, unsupported(e, "not a member chain")
}

func (c *Compiler) member(r *ref, name string) (*ref, error) {
	path := append(slices.Clone(r.path), name)
	unknown := func() error {
		return thmerr.New(thmerr.NewUnknownMember{Path: strings.Join(path, ".")})
	}
	switch n := r.node.(type) {
	case *binding.Record:
		if len(r.indices) > 0 {
			return nil, unknown()
		}
		child, ok := n.Child(name)
		if !ok {
			return nil, unknown()
		}
		return &ref{node: child, path: path}, nil
	case *binding.ArrayOfRecord:
		// indices select the element and stay pending until the element field's leaf
		child, ok := n.Child(name)
		if !ok {
			return nil, unknown()
		}
		return &ref{node: child, path: path, indices: r.indices}, nil
	}
	return nil, unknown()
}

// load reads the term a resolved chain stands for
func (c *Compiler) load(e pred.Expr, r *ref) (smt.Term, error) {
	leaf, ok := r.node.(*binding.Leaf)
	if !ok {
		return nil, unsupported(e, fmt.Sprintf("%s is a record, not a value", strings.Join(r.path, ".")))
	}
	if len(r.indices) == 0 {
		if leaf.IsArray() {
			return nil, unsupported(e, fmt.Sprintf("array %s needs %d indices", leaf.Path(), leaf.Rank))
		}
		return leaf.Term, nil
	}
	if len(r.indices) != leaf.Rank {
		return nil, unsupported(e, fmt.Sprintf("array %s needs %d indices, got %d", leaf.Path(), leaf.Rank, len(r.indices)))
	}
	domain := leaf.Term.Sort().Domain
	indices := make([]smt.Term, len(r.indices))
	for i, idx := range r.indices {
		t, err := c.index(idx, domain[i])
		if err != nil {
			return nil, unsupported(e, err.Error())
		}
		indices[i] = t
	}
	return c.scalar(c.ctx.Select(leaf.Term, indices...)), nil
}
