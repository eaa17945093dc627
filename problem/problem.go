// Package problem reads theorems declared in YAML files.
//
// A problem file names an environment, its fields and the constraints over
// it, written in the textual predicate syntax:
//
//	problem:
//	  name: Shop
//	  unsat: error
//	  fields:
//	    - {name: Apples, type: int32}
//	    - {name: Baskets, type: bool, len: [3]}
//	    - name: Crate
//	      fields:
//	        - {name: Weight, type: float64}
//	  where:
//	    - e.Apples >= 0 && e.Apples <= max
//	  maximize: e.Apples
//	  captures:
//	    max: 12
package problem

import (
	"context"
	"os"
	"strings"

	"github.com/cottand/theorem/compile"
	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/smt"
	"github.com/cottand/theorem/theorem"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Raw YAML structures for unmarshaling.

type rawFile struct {
	Problem rawProblem `yaml:"problem"`
}

type rawProblem struct {
	Name     string         `yaml:"name"`
	Engine   string         `yaml:"engine"`
	Param    string         `yaml:"param"`
	Unsat    string         `yaml:"unsat"`
	Fold     *bool          `yaml:"fold"`
	Literals string         `yaml:"literals"`
	Fields   []rawField     `yaml:"fields"`
	Where    []string       `yaml:"where"`
	Maximize string         `yaml:"maximize"`
	Minimize string         `yaml:"minimize"`
	Captures map[string]any `yaml:"captures"`
}

type rawField struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`
	Len    []int      `yaml:"len"`
	Fields []rawField `yaml:"fields"`
}

type Problem struct {
	Name string
	// Engine is the name of the engine to solve with, empty for the caller's choice
	Engine      string
	Env         *schema.Env
	Constraints []pred.Expr
	// Objective is nil unless the file asks to maximize or minimize
	Objective pred.Expr
	Maximize  bool
	Options   []theorem.Option
}

// Load parses a problem YAML file
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return p, nil
}

// Parse parses problem YAML bytes
func Parse(data []byte) (*Problem, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "yaml parse")
	}
	r := &raw.Problem
	if r.Name == "" {
		return nil, errors.New("problem must have a name")
	}
	if len(r.Fields) == 0 {
		return nil, errors.Errorf("problem %s declares no fields", r.Name)
	}

	fields, err := parseFields(r.Name, r.Fields)
	if err != nil {
		return nil, err
	}
	p := &Problem{
		Name:   r.Name,
		Engine: r.Engine,
		Env:    schema.NewEnv(r.Name, fields...),
	}

	param := r.Param
	if param == "" {
		param = theorem.DefaultParam
	}
	p.Options = append(p.Options, theorem.WithParam(param))

	switch r.Unsat {
	case "", "result":
	case "error":
		p.Options = append(p.Options, theorem.WithUnsat(theorem.UnsatError))
	default:
		return nil, errors.Errorf("unsat must be 'result' or 'error', not %q", r.Unsat)
	}
	if r.Fold != nil {
		p.Options = append(p.Options, theorem.WithFolding(*r.Fold))
	}
	literals, ok := compile.ParseLiterals(r.Literals)
	if !ok {
		return nil, errors.Errorf("unknown literal policy %q", r.Literals)
	}
	p.Options = append(p.Options, theorem.WithLiterals(literals))

	for i, src := range r.Where {
		e, err := pred.Parse(src, param, r.Captures)
		if err != nil {
			return nil, errors.Wrapf(err, "where[%d]", i)
		}
		p.Constraints = append(p.Constraints, e)
	}

	if r.Maximize != "" && r.Minimize != "" {
		return nil, errors.New("a problem either maximizes or minimizes")
	}
	if objective := r.Maximize + r.Minimize; objective != "" {
		e, err := pred.Parse(objective, param, r.Captures)
		if err != nil {
			return nil, errors.Wrap(err, "objective")
		}
		p.Objective, p.Maximize = e, r.Maximize != ""
	}
	return p, nil
}

func scalarType(name string) (schema.Type, bool) {
	for k := schema.KindBool; k <= schema.KindChar; k++ {
		if k.String() == strings.ToLower(name) {
			return schema.Type{Kind: k}, true
		}
	}
	return schema.Type{}, false
}

func parseFields(env string, raws []rawField) ([]schema.Field, error) {
	fields := make([]schema.Field, 0, len(raws))
	seen := map[string]bool{}
	for _, rf := range raws {
		if rf.Name == "" {
			return nil, errors.Errorf("a field of %s has no name", env)
		}
		if seen[rf.Name] {
			return nil, errors.Errorf("%s declares %s twice", env, rf.Name)
		}
		seen[rf.Name] = true

		var t schema.Type
		switch {
		case len(rf.Fields) > 0:
			if rf.Type != "" && rf.Type != "record" {
				return nil, errors.Errorf("%s.%s has fields but type %s", env, rf.Name, rf.Type)
			}
			inner, err := parseFields(env+"."+rf.Name, rf.Fields)
			if err != nil {
				return nil, err
			}
			t = schema.RecordOf(schema.NewEnv(rf.Name, inner...))
		default:
			scalar, ok := scalarType(rf.Type)
			if !ok {
				t = schema.Unsupported(rf.Type)
				break
			}
			t = scalar
		}

		for _, n := range rf.Len {
			if n <= 0 {
				return nil, errors.Errorf("%s.%s has length %d", env, rf.Name, n)
			}
		}
		if len(rf.Len) > 0 {
			t = schema.Sized(t, rf.Len...)
		}
		fields = append(fields, schema.NewField(rf.Name, t))
	}
	return fields, nil
}

// Theorem builds the theorem the problem describes
func (p *Problem) Theorem(engine smt.Engine) *theorem.Theorem[map[string]any] {
	return theorem.ForEnv(p.Env, engine, p.Options...).Where(p.Constraints...)
}

// Solve solves the problem, optimizing its objective when it has one
func (p *Problem) Solve(ctx context.Context, engine smt.Engine) (map[string]any, bool, error) {
	t := p.Theorem(engine)
	out := map[string]any{}
	var ok bool
	var err error
	switch {
	case p.Objective == nil:
		ok, err = t.Solve(ctx, &out)
	case p.Maximize:
		ok, err = t.Maximize(ctx, p.Objective, &out)
	default:
		ok, err = t.Minimize(ctx, p.Objective, &out)
	}
	if err != nil || !ok {
		return nil, ok, err
	}
	return out, true, nil
}
