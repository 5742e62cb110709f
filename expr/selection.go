package expr

import (
	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
)

// Selection is one item of a SELECT list (§3): `*`, `alias.*`, an aliased
// expression, a bare expression, or an opaque selection literal.
type Selection interface {
	Qualify(a *alias.Alias) Selection
	Render(ctx *gencontext.Context) (string, error)
}

// Star is the `*` selection item.
type Star struct{}

func (Star) Qualify(a *alias.Alias) Selection { return QualifiedStar{Alias: a} }

func (Star) Render(*gencontext.Context) (string, error) { return "*", nil }

// QualifiedStar is `alias.*`.
type QualifiedStar struct{ Alias *alias.Alias }

func (q QualifiedStar) Qualify(*alias.Alias) Selection { return q }

func (q QualifiedStar) Render(ctx *gencontext.Context) (string, error) {
	return QualifiedAllColumns{Alias: q.Alias}.Render(ctx)
}

// Plain wraps a bare expression used as a selection item with no output
// name.
type Plain struct{ Expr Expr }

func (p Plain) Qualify(a *alias.Alias) Selection { return Plain{Expr: p.Expr.Qualify(a)} }

func (p Plain) Render(ctx *gencontext.Context) (string, error) { return p.Expr.Render(ctx) }

// Aliased wraps `expr AS "name"`.
type Aliased struct {
	Expr Expr
	Name string
}

func (a Aliased) Qualify(al *alias.Alias) Selection {
	return Aliased{Expr: a.Expr.Qualify(al), Name: a.Name}
}

func (a Aliased) Render(ctx *gencontext.Context) (string, error) {
	s, err := a.Expr.Render(ctx)
	if err != nil {
		return "", err
	}
	return s + " AS " + ident.Quote(a.Name), nil
}

// Literal is an opaque selection-item fragment, rendered verbatim.
type Literal struct{ Text string }

func (l Literal) Qualify(*alias.Alias) Selection { return l }

func (l Literal) Render(*gencontext.Context) (string, error) { return l.Text, nil }
