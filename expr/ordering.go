package expr

import (
	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/gencontext"
)

// Direction is an ORDER BY item's sort direction (§3).
type Direction int

const (
	Asc Direction = iota
	Desc
	AscNullsLast
	DescNullsFirst
)

func (d Direction) sql() string {
	switch d {
	case Desc:
		return "DESC"
	case AscNullsLast:
		return "ASC NULLS LAST"
	case DescNullsFirst:
		return "DESC NULLS FIRST"
	default:
		return "ASC"
	}
}

// Ordering is one ORDER BY item: an expression (possibly collated) with a
// direction, or an opaque literal.
type Ordering interface {
	Qualify(a *alias.Alias) Ordering
	Render(ctx *gencontext.Context) (string, error)
}

// ByExpr orders by expr in the given direction.
type ByExpr struct {
	Expr      Expr
	Direction Direction
}

func (o ByExpr) Qualify(a *alias.Alias) Ordering {
	return ByExpr{Expr: o.Expr.Qualify(a), Direction: o.Direction}
}

func (o ByExpr) Render(ctx *gencontext.Context) (string, error) {
	s, err := o.Expr.Render(ctx)
	if err != nil {
		return "", err
	}
	return s + " " + o.Direction.sql(), nil
}

// ByLiteral is an opaque ORDER BY fragment, rendered verbatim.
type ByLiteral struct{ Text string }

func (o ByLiteral) Qualify(*alias.Alias) Ordering { return o }

func (o ByLiteral) Render(*gencontext.Context) (string, error) { return o.Text, nil }
