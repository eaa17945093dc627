package pred

import (
	"fmt"

	"github.com/cottand/theorem/schema"
	"github.com/cottand/theorem/thmerr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// elementParam is the name the element placeholder # is given inside map predicates
const elementParam = "#"

// Parse reads a predicate written in expr-lang syntax.
//
// The identifier param refers to the environment, identifiers found in
// captures become Captured values, and any other identifier is taken as a
// bare environment field name. map(xs, predicate) becomes a select call over
// a lambda binding #.
func Parse(src string, param string, captures map[string]any) (Expr, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, thmerr.New(thmerr.NewParse{Source: src, Message: err.Error()})
	}
	p := &textParser{src: src, param: param, captures: captures}
	return p.convert(tree.Node)
}

type textParser struct {
	src      string
	param    string
	captures map[string]any
}

func (p *textParser) unsupported(node ast.Node, detail string) error {
	return thmerr.New(thmerr.NewParse{
		Source:  p.src,
		Message: fmt.Sprintf("unsupported %T: %s", node, detail),
	})
}

func (p *textParser) convertAll(nodes []ast.Node) ([]Expr, error) {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		e, err := p.convert(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

var binaryOps = map[string]Op{
	"and": OpAnd,
	"&&":  OpAnd,
	"or":  OpOr,
	"||":  OpOr,
	"==":  OpEq,
	"!=":  OpNe,
	"<":   OpLt,
	"<=":  OpLe,
	">":   OpGt,
	">=":  OpGe,
	"+":   OpAdd,
	"-":   OpSub,
	"*":   OpMul,
	"/":   OpDiv,
	"%":   OpRem,
	"**":  OpPow,
	"^":   OpPow,
}

func (p *textParser) convert(node ast.Node) (Expr, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		if n.Value == p.param {
			return &Param{Name: p.param}, nil
		}
		if v, ok := p.captures[n.Value]; ok {
			return &Captured{Name: n.Value, Value: v}, nil
		}
		return &Name{Name: n.Value}, nil
	case *ast.PointerNode:
		if n.Name != "" {
			return nil, p.unsupported(n, "named pointer #"+n.Name)
		}
		return &Param{Name: elementParam}, nil
	case *ast.IntegerNode:
		return &Const{Value: n.Value}, nil
	case *ast.FloatNode:
		return &Const{Value: n.Value}, nil
	case *ast.BoolNode:
		return &Const{Value: n.Value}, nil
	case *ast.StringNode:
		return &Const{Value: n.Value}, nil
	case *ast.NilNode:
		return nil, p.unsupported(n, "nil has no sort")
	case *ast.UnaryNode:
		x, err := p.convert(n.Node)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case "not", "!":
			return &Unary{Op: OpNot, X: x}, nil
		case "-":
			return &Unary{Op: OpNeg, X: x}, nil
		case "+":
			return x, nil
		}
		return nil, p.unsupported(n, "operator "+n.Operator)
	case *ast.BinaryNode:
		op, ok := binaryOps[n.Operator]
		if !ok {
			return nil, p.unsupported(n, "operator "+n.Operator)
		}
		l, err := p.convert(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := p.convert(n.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: l, Right: r}, nil
	case *ast.ChainNode:
		return p.convert(n.Node)
	case *ast.MemberNode:
		x, err := p.convert(n.Node)
		if err != nil {
			return nil, err
		}
		if prop, ok := n.Property.(*ast.StringNode); ok {
			return &Member{X: x, Name: prop.Value}, nil
		}
		idx, err := p.convert(n.Property)
		if err != nil {
			return nil, err
		}
		return &Index{X: x, Indices: []Expr{idx}}, nil
	case *ast.CallNode:
		return p.call(n)
	case *ast.BuiltinNode:
		return p.builtin(n.Name, n, n.Arguments)
	case *ast.PredicateNode:
		return p.convert(n.Node)
	}
	return nil, p.unsupported(node, "expression")
}

func (p *textParser) call(n *ast.CallNode) (Expr, error) {
	switch callee := n.Callee.(type) {
	case *ast.IdentifierNode:
		return p.builtin(callee.Value, n, n.Arguments)
	case *ast.MemberNode:
		// method position: recv.fn(args)
		prop, ok := callee.Property.(*ast.StringNode)
		if !ok {
			return nil, p.unsupported(n, "computed method name")
		}
		recv, err := p.convert(callee.Node)
		if err != nil {
			return nil, err
		}
		args, err := p.convertAll(n.Arguments)
		if err != nil {
			return nil, err
		}
		return &Call{Fn: prop.Value, Recv: recv, Args: args}, nil
	}
	return nil, p.unsupported(n, "callee")
}

func (p *textParser) builtin(name string, n ast.Node, argNodes []ast.Node) (Expr, error) {
	args, err := p.convertAll(argNodes)
	if err != nil {
		return nil, err
	}
	switch name {
	case "map":
		if len(args) != 2 {
			return nil, p.unsupported(n, "map takes a collection and a predicate")
		}
		return &Call{Fn: "select", Args: []Expr{args[0], &Lambda{Param: elementParam, Body: args[1]}}}, nil
	case "int":
		if len(args) != 1 {
			return nil, p.unsupported(n, "int takes one argument")
		}
		return &Convert{X: args[0], To: schema.Int64}, nil
	case "float":
		if len(args) != 1 {
			return nil, p.unsupported(n, "float takes one argument")
		}
		return &Convert{X: args[0], To: schema.Float64}, nil
	case "xor":
		if len(args) != 2 {
			return nil, p.unsupported(n, "xor takes two arguments")
		}
		return &Binary{Op: OpXor, Left: args[0], Right: args[1]}, nil
	}
	return &Call{Fn: name, Args: args}, nil
}
