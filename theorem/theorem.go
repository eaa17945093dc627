// Package theorem glues an environment, its constraints and an engine together.
//
// A Theorem is persistent: Where returns a new Theorem sharing the constraints
// of the old one, which stays usable. Each Solve opens a fresh engine context,
// binds the environment in it, compiles every constraint, checks and decodes
// the model into the caller's value.
package theorem

import (
	"context"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/theorem/binding"
	"github.com/cottand/theorem/compile"
	"github.com/cottand/theorem/decode"
	"github.com/cottand/theorem/internal/log"
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/thmerr"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "theorem")

type Theorem[T any] struct {
	env         *schema.Env
	engine      smt.Engine
	constraints *immutable.List[pred.Expr]
	cfg         config
}

// For derives the environment from the struct type T
func For[T any](engine smt.Engine, opts ...Option) *Theorem[T] {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Theorem[T]{
		env:         schema.Derive[T](cfg.derive...),
		engine:      engine,
		constraints: immutable.NewList[pred.Expr](),
		cfg:         cfg,
	}
}

// ForEnv builds a theorem over an explicitly declared environment. Solutions
// decode into nested maps, see decode.IntoMap.
func ForEnv(env *schema.Env, engine smt.Engine, opts ...Option) *Theorem[map[string]any] {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Theorem[map[string]any]{
		env:         env,
		engine:      engine,
		constraints: immutable.NewList[pred.Expr](),
		cfg:         cfg,
	}
}

func (t *Theorem[T]) Env() *schema.Env { return t.env }

// Param is the name constraints use for the environment
func (t *Theorem[T]) Param() string { return t.cfg.param }

func (t *Theorem[T]) Constraints() []pred.Expr {
	out := make([]pred.Expr, 0, t.constraints.Len())
	itr := t.constraints.Iterator()
	for !itr.Done() {
		_, e := itr.Next()
		out = append(out, e)
	}
	return out
}

// With returns a copy of t with further options applied
func (t *Theorem[T]) With(opts ...Option) *Theorem[T] {
	cp := *t
	for _, opt := range opts {
		opt(&cp.cfg)
	}
	return &cp
}

// Where returns a theorem with the constraints of t followed by constraints
func (t *Theorem[T]) Where(constraints ...pred.Expr) *Theorem[T] {
	cp := *t
	for _, c := range constraints {
		cp.constraints = cp.constraints.Append(c)
	}
	return &cp
}

// WhereText parses src as a constraint over t's parameter and adds it
func (t *Theorem[T]) WhereText(src string, captures map[string]any) (*Theorem[T], error) {
	e, err := pred.Parse(src, t.cfg.param, captures)
	if err != nil {
		return nil, err
	}
	return t.Where(e), nil
}

// Solve looks for a value satisfying every constraint and decodes it into dst.
// Slices in dst must already have the length to decode.
//
// It returns false when there is no solution and the theorem was built with
// UnsatResult. An engine that cannot decide the theorem is an EngineFailure.
func (t *Theorem[T]) Solve(ctx context.Context, dst *T) (bool, error) {
	return t.solve(ctx, nil, dst)
}

// Maximize solves the theorem for the value making objective largest
func (t *Theorem[T]) Maximize(ctx context.Context, objective pred.Expr, dst *T) (bool, error) {
	return t.solve(ctx, &goal{expr: objective, maximize: true}, dst)
}

// Minimize solves the theorem for the value making objective smallest
func (t *Theorem[T]) Minimize(ctx context.Context, objective pred.Expr, dst *T) (bool, error) {
	return t.solve(ctx, &goal{expr: objective}, dst)
}

type goal struct {
	expr     pred.Expr
	maximize bool
}

func engineFailure(op string, err error) error {
	return thmerr.New(thmerr.NewEngineFailure{Op: op, Reason: err.Error()})
}

func (t *Theorem[T]) solve(ctx context.Context, g *goal, dst *T) (ok bool, err error) {
	if dst == nil {
		return false, thmerr.New(thmerr.NewDecodeTypeMismatch{Field: t.env.Name, Expected: "non-nil destination", Found: "nil"})
	}
	sctx, err := t.engine.NewContext()
	if err != nil {
		return false, engineFailure("opening a context", err)
	}
	defer func() {
		if cerr := sctx.Close(); cerr != nil && err == nil {
			err = engineFailure("closing the context", cerr)
		}
	}()

	rewriters, err := t.cfg.rewriters.Resolve(t.env.Name)
	if err != nil {
		return false, err
	}
	constraints, err := rewriters.RewriteAll(t.Constraints())
	if err != nil {
		return false, errors.Wrapf(err, "rewriting constraints of %s", t.env.Name)
	}

	b, err := binding.Build(sctx, t.env)
	if err != nil {
		return false, err
	}
	c := compile.New(sctx, b, t.cfg.param,
		compile.WithRewriters(rewriters),
		compile.WithLiterals(t.cfg.literals),
		compile.WithFolding(t.cfg.fold),
	)
	logger.Info("solving",
		"env", t.env.Name,
		"engine", t.engine.Name(),
		"constraints", len(constraints),
		"fold", t.cfg.fold,
		"optimizing", g != nil,
	)

	terms := make([]smt.Term, 0, len(constraints))
	for i, e := range constraints {
		term, err := c.Compile(e)
		if err != nil {
			return false, errors.Wrapf(err, "constraint %d of %s", i, t.env.Name)
		}
		terms = append(terms, term)
	}

	var solver smt.Solver
	if g == nil {
		solver = sctx.NewSolver()
	} else {
		objective, err := c.CompileObjective(g.expr)
		if err != nil {
			return false, errors.Wrapf(err, "objective of %s", t.env.Name)
		}
		opt, err := sctx.NewOptimizer()
		if err != nil {
			return false, engineFailure("opening an optimizer", err)
		}
		if g.maximize {
			opt.Maximize(objective)
		} else {
			opt.Minimize(objective)
		}
		solver = opt
	}
	defer solver.Close()

	solver.Assert(terms...)
	if err := sctx.Err(); err != nil {
		return false, engineFailure("asserting constraints", err)
	}
	status, err := solver.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrapf(err, "checking %s", t.env.Name)
		}
		return false, engineFailure("checking "+t.env.Name, err)
	}
	logger.Debug("checked", "env", t.env.Name, "status", status)

	switch status {
	case smt.Unsat:
		if t.cfg.unsat == UnsatError {
			return false, thmerr.New(thmerr.NewUnsatisfiable{Env: t.env.Name, Constraints: len(constraints)})
		}
		return false, nil
	case smt.Unknown:
		return false, thmerr.New(thmerr.NewEngineFailure{Op: "checking " + t.env.Name, Reason: "engine could not decide the theorem"})
	}

	m, err := solver.Model()
	if err != nil {
		return false, engineFailure("reading the model", err)
	}
	defer m.Close()

	if err := t.decode(sctx, m, b, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Theorem[T]) decode(sctx smt.Context, m smt.Model, b *binding.Binding, dst *T) error {
	if out, ok := any(dst).(*map[string]any); ok && t.env.GoType() == nil {
		values, err := decode.IntoMap(sctx, m, b)
		if err != nil {
			return err
		}
		*out = values
		return nil
	}
	return decode.Into(sctx, m, b, dst)
}
