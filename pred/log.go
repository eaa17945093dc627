package pred

import (
	"fmt"
	"log/slog"
)

// LogValue wraps an Expr as a slog.LogValuer so expression strings are
// only rendered if they definitely need to be logged
func LogValue(expr Expr) slog.LogValuer {
	return exprLogValuer{expr}
}

type exprLogValuer struct{ Expr }

func (l exprLogValuer) LogValue() slog.Value {
	if l.Expr == nil {
		return slog.StringValue("nil")
	}
	return slog.GroupValue(
		slog.String("str", ExprString(l.Expr)),
		slog.String("hash", fmt.Sprintf("%x", l.Hash())),
		slog.String("name", l.Describe()),
	)
}
