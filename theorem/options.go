package theorem

import (
	"github.com/cottand/theorem/compile"
	"github.com/cottand/theorem/rewrite"
	"github.com/cottand/theorem/schema"
)

// UnsatPolicy chooses how Solve reports a theorem without solutions
type UnsatPolicy int

const (
	// UnsatResult makes Solve return false and no error
	UnsatResult UnsatPolicy = iota
	// UnsatError makes Solve fail with thmerr.Unsatisfiable
	UnsatError
)

func (p UnsatPolicy) String() string {
	if p == UnsatError {
		return "error"
	}
	return "result"
}

type config struct {
	unsat     UnsatPolicy
	fold      bool
	literals  compile.Literals
	rewriters *rewrite.Registry
	param     string
	derive    []schema.DeriveOption
}

func defaults() config {
	return config{param: DefaultParam}
}

// DefaultParam is the name constraints use for the environment unless WithParam says otherwise
const DefaultParam = "e"

type Option func(*config)

func WithUnsat(p UnsatPolicy) Option {
	return func(c *config) { c.unsat = p }
}

// WithFolding evaluates parameter-independent parts of constraints before
// compiling them
func WithFolding(enabled bool) Option {
	return func(c *config) { c.fold = enabled }
}

func WithLiterals(l compile.Literals) Option {
	return func(c *config) { c.literals = l }
}

// WithRewriters sets the rewriters consulted when solving. Registries given
// in several options are merged.
func WithRewriters(r *rewrite.Registry) Option {
	return func(c *config) {
		if c.rewriters == nil {
			c.rewriters = r
			return
		}
		c.rewriters = c.rewriters.Merge(r)
	}
}

// WithParam names the parameter constraints use to refer to the environment
func WithParam(name string) Option {
	return func(c *config) { c.param = name }
}

// WithMappings passes derive options, such as type mappings, to the
// environment derived by For. ForEnv ignores it.
func WithMappings(opts ...schema.DeriveOption) Option {
	return func(c *config) { c.derive = append(c.derive, opts...) }
}
