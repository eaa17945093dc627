// Package rewrite lets callers extend the compiler with transformations of
// predicates it cannot compile on its own.
//
// A Global rewriter sees the whole constraint list of an environment once,
// before compilation. A Predicate rewriter is keyed by call name and replaces
// one call node each time the compiler meets it; its output must differ
// from its input.
package rewrite

import (
	"slices"

	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/thmerr"
)

type Global interface {
	Rewrite(constraints []pred.Expr) ([]pred.Expr, error)
}

type Predicate interface {
	Rewrite(call *pred.Call) (pred.Expr, error)
}

// GlobalFunc adapts a function to Global
type GlobalFunc func([]pred.Expr) ([]pred.Expr, error)

func (f GlobalFunc) Rewrite(constraints []pred.Expr) ([]pred.Expr, error) { return f(constraints) }

// PredicateFunc adapts a function to Predicate
type PredicateFunc func(*pred.Call) (pred.Expr, error)

func (f PredicateFunc) Rewrite(call *pred.Call) (pred.Expr, error) { return f(call) }

// Registration declares a rewriter by a constructor taking no arguments.
// Key is the environment name of a global rewriter, or the call name of a
// predicate rewriter.
type Registration struct {
	Key string
	New func() any
}

// Registry is an immutable set of registrations: every With method returns
// a new Registry
type Registry struct {
	globals    []Registration
	predicates []Registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) clone() *Registry {
	if r == nil {
		return &Registry{}
	}
	return &Registry{
		globals:    slices.Clone(r.globals),
		predicates: slices.Clone(r.predicates),
	}
}

// WithGlobal registers the global rewriter of the environment called env
func (r *Registry) WithGlobal(env string, newRewriter func() any) *Registry {
	cp := r.clone()
	cp.globals = append(cp.globals, Registration{Key: env, New: newRewriter})
	return cp
}

// WithPredicate registers a rewriter for calls named fn
func (r *Registry) WithPredicate(fn string, newRewriter func() any) *Registry {
	cp := r.clone()
	cp.predicates = append(cp.predicates, Registration{Key: fn, New: newRewriter})
	return cp
}

// Merge returns the registrations of r followed by those of other
func (r *Registry) Merge(other *Registry) *Registry {
	cp := r.clone()
	if other != nil {
		cp.globals = append(cp.globals, other.globals...)
		cp.predicates = append(cp.predicates, other.predicates...)
	}
	return cp
}

// Resolved holds the rewriters that apply to one environment
type Resolved struct {
	Global     Global
	predicates map[string]func() any
}

// Resolve checks the registrations relevant to env and instantiates its
// global rewriter. Configuration mistakes are reported together.
func (r *Registry) Resolve(env string) (*Resolved, error) {
	res := &Resolved{predicates: map[string]func() any{}}
	if r == nil {
		return res, nil
	}
	var errs *thmerr.Errors
	fail := func(key, reason string) {
		errs = errs.With(thmerr.New(thmerr.NewRewriterConfiguration{Key: key, Reason: reason}))
	}

	for _, reg := range r.globals {
		if reg.Key != env {
			continue
		}
		if reg.New == nil {
			fail(reg.Key, "global rewriter has no constructor")
			continue
		}
		if res.Global != nil {
			fail(reg.Key, "environment already has a global rewriter")
			continue
		}
		g, ok := reg.New().(Global)
		if !ok {
			fail(reg.Key, "global rewriter does not implement rewrite.Global")
			continue
		}
		res.Global = g
	}

	for _, reg := range r.predicates {
		if reg.New == nil {
			fail(reg.Key, "predicate rewriter has no constructor")
			continue
		}
		if _, dup := res.predicates[reg.Key]; dup {
			fail(reg.Key, "call already has a predicate rewriter")
			continue
		}
		if _, ok := reg.New().(Predicate); !ok {
			fail(reg.Key, "predicate rewriter does not implement rewrite.Predicate")
			continue
		}
		res.predicates[reg.Key] = reg.New
	}

	if errs.HasError() {
		return nil, errs.Err()
	}
	return res, nil
}

// Has reports whether calls named fn are rewritten
func (r *Resolved) Has(fn string) bool {
	if r == nil {
		return false
	}
	_, ok := r.predicates[fn]
	return ok
}

// Predicate returns a fresh rewriter for calls named fn
func (r *Resolved) Predicate(fn string) (Predicate, bool) {
	if r == nil {
		return nil, false
	}
	newRewriter, ok := r.predicates[fn]
	if !ok {
		return nil, false
	}
	return newRewriter().(Predicate), true
}

// RewriteAll applies the global rewriter, if any
func (r *Resolved) RewriteAll(constraints []pred.Expr) ([]pred.Expr, error) {
	if r == nil || r.Global == nil {
		return constraints, nil
	}
	return r.Global.Rewrite(slices.Clone(constraints))
}

// RewriteCall applies the rewriter of call.Fn once and checks it made progress
func (r *Resolved) RewriteCall(call *pred.Call) (pred.Expr, error) {
	p, ok := r.Predicate(call.Fn)
	if !ok {
		return nil, thmerr.New(thmerr.NewUnsupportedExpression{Kind: call.Describe(), Detail: "no rewriter registered"})
	}
	out, err := p.Rewrite(call)
	if err != nil {
		return nil, err
	}
	if out == nil || pred.Same(out, call) {
		return nil, thmerr.New(thmerr.NewNoProgress{Key: call.Fn, Expr: pred.ExprString(call)})
	}
	return out, nil
}
