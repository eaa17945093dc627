package smt

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"
)

// Term is an engine expression. Terms are only valid within the Context that built them.
type Term interface {
	Sort() Sort
}

type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Engine opens solving sessions.
type Engine interface {
	Name() string
	NewContext() (Context, error)
}

// Context builds terms and solvers for a single session.
//
// Term construction does not return errors: the first failure is kept and
// reported by Err, after which every constructor returns a placeholder term.
// Callers check Err once they finished building a formula.
type Context interface {
	Const(name string, s Sort) Term

	BoolVal(v bool) Term
	IntVal(v int64) Term
	BigIntVal(v *big.Int) Term
	RatVal(v *big.Rat) Term
	StringVal(v string) Term
	BVVal(v int64, width uint) Term

	And(ts ...Term) Term
	Or(ts ...Term) Term
	Xor(a, b Term) Term
	Not(a Term) Term

	Add(a, b Term) Term
	Sub(a, b Term) Term
	Mul(a, b Term) Term
	Div(a, b Term) Term
	Rem(a, b Term) Term
	Pow(a, b Term) Term
	Neg(a Term) Term

	Lt(a, b Term) Term
	Le(a, b Term) Term
	Gt(a, b Term) Term
	Ge(a, b Term) Term
	Eq(a, b Term) Term
	Distinct(ts ...Term) Term

	Select(array Term, index ...Term) Term
	// Coerce converts between numeric sorts: Int and Real in both directions,
	// and BitVec or Float to and from Int and Real
	Coerce(t Term, to Sort) Term

	NewSolver() Solver
	NewOptimizer() (Optimizer, error)

	Err() error
	Close() error
}

type Solver interface {
	Assert(ts ...Term)
	Check(ctx context.Context) (Status, error)
	Model() (Model, error)
	Close() error
}

type Optimizer interface {
	Solver
	Maximize(t Term)
	Minimize(t Term)
}

// Model is a satisfying assignment. Terms passed to it are evaluated with
// model completion, so unconstrained constants read back as their sort's default.
type Model interface {
	Bool(t Term) (bool, error)
	// Int reads Int terms and BitVec terms, the latter as two's complement
	Int(t Term) (*big.Int, error)
	// Decimal renders Real and Float terms with up to precision decimal places
	Decimal(t Term, precision int) (string, error)
	String(t Term) (string, error)
	Close() error
}

// ExactRationals is implemented by contexts that accept arbitrary rational
// literals without loss, which makes decimal-string parsing of floating
// literals preferable over a rational approximation
type ExactRationals interface {
	ExactRationals() bool
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Engine{}
)

// Register makes an engine available by name. Registering the same name twice panics.
func Register(e Engine) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[e.Name()]; ok {
		panic(fmt.Sprintf("smt: engine %q registered twice", e.Name()))
	}
	registry[e.Name()] = e
}

func Lookup(name string) (Engine, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[name]
	return e, ok
}

func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
