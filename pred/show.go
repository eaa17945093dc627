package pred

import (
	"fmt"
	"strings"
)

func ExprString(expr Expr) string {
	ctx := &showContext{Builder: &strings.Builder{}}
	ctx.showExprWalker(expr, 0)
	return ctx.String()
}

type showContext struct {
	*strings.Builder
}

func (ctx *showContext) showExprWalker(expr Expr, outerPrecedence int16) {
	if expr == nil {
		ctx.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Binary:
		prec := expr.Op.precedence()
		if prec < outerPrecedence {
			ctx.WriteString("(")
			defer ctx.WriteString(")")
		}
		ctx.showExprWalker(expr.Left, prec)
		ctx.WriteString(" " + expr.Op.String() + " ")
		ctx.showExprWalker(expr.Right, prec+1)
	case *Unary:
		ctx.WriteString(expr.Op.String())
		ctx.showExprWalker(expr.X, 10)
	case *Member:
		ctx.showExprWalker(expr.X, 10)
		ctx.WriteString("." + expr.Name)
	case *Const:
		if s, ok := expr.Value.(string); ok {
			ctx.WriteString(fmt.Sprintf("%q", s))
		} else {
			ctx.WriteString(fmt.Sprintf("%v", expr.Value))
		}
	case *Call:
		if expr.Recv != nil {
			ctx.showExprWalker(expr.Recv, 10)
			ctx.WriteString(".")
		}
		ctx.WriteString(expr.Fn)
		ctx.WriteString("(")
		for i, arg := range expr.Args {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.showExprWalker(arg, 0)
		}
		ctx.WriteString(")")
	case *Index:
		ctx.showExprWalker(expr.X, 10)
		ctx.WriteString("[")
		for i, idx := range expr.Indices {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.showExprWalker(idx, 0)
		}
		ctx.WriteString("]")
	case *Convert:
		ctx.WriteString(expr.To.String() + "(")
		ctx.showExprWalker(expr.X, 0)
		ctx.WriteString(")")
	case *Param:
		ctx.WriteString(expr.Name)
	case *Captured:
		ctx.WriteString(expr.Name)
	case *Name:
		ctx.WriteString(expr.Name)
	case *Lambda:
		ctx.WriteString(expr.Param + " => ")
		ctx.showExprWalker(expr.Body, 0)
	default:
		ctx.WriteString(fmt.Sprintf("<%T>", expr))
	}
}
