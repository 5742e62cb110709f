// Package prefetch implements the prefetch planner (component H): for a
// has-many ("all") child association, it builds a self-contained child
// query filtered by the parent rows' pivot key, annotated so the caller
// can group the fetched child rows back onto their parent by pivot value.
package prefetch

import (
	"fmt"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
	"github.com/relq/sqlitegen/query"
	"github.com/relq/sqlitegen/relation"
)

// Pivot names one column pair linking a parent row to its children: the
// parent-side column supplying the key value, and the child-side column
// the key is matched against.
type Pivot struct {
	ParentColumn string
	ChildColumn  string
}

// pivotAlias is the `grdb_<col>` selection name a fetched child row carries
// so the caller can group rows by their pivot value without re-parsing the
// row adapter (§4.H).
func pivotAlias(col string) string { return "grdb_" + col }

// BuildLiteralQuery implements the literal `IN (?, …)` strategy (§4.H,
// S4): the single-column case, and the universal fallback when the engine
// has no row-value support. base is the child relation as the caller would
// otherwise fetch it (selection, existing filter, ordering all preserved);
// values are the parent rows' pivot column values already collected by the
// caller.
func BuildLiteralQuery(ctx *gencontext.Context, base *relation.Relation, pivot Pivot, values []any) (*query.Result, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: literal prefetch requires at least one parent pivot value", errs.InvalidInput)
	}

	clone := *base
	clone.Selection = append(append([]expr.Selection{}, base.Selection...),
		expr.Aliased{Expr: expr.Column{Name: pivot.ChildColumn}, Name: pivotAlias(pivot.ChildColumn)})

	lits := make([]expr.Expr, len(values))
	for i, v := range values {
		lits[i] = expr.Lit{Value: v}
	}
	inFilter := expr.In{Expr: expr.Column{Name: pivot.ChildColumn}, Collection: lits}
	clone.Filter = and(clone.Filter, inFilter)

	qualified, err := relation.Qualify(&clone)
	if err != nil {
		return nil, err
	}
	return query.RenderSelect(ctx, qualified, query.SelectOptions{})
}

// BuildRowValueQuery implements the row-value `IN (CTE)` strategy (§4.H,
// §9): preferred when the pivot has more than one column and the engine
// supports row values. parentBase is the parent relation with ordering and
// children stripped (it only needs to reproduce which parent rows exist,
// not how they were going to be rendered); childBase is the child
// relation as the caller would otherwise fetch it.
func BuildRowValueQuery(ctx *gencontext.Context, parentBase *relation.Relation, childBase *relation.Relation, pivots []Pivot) (*query.Result, error) {
	if len(pivots) == 0 {
		return nil, fmt.Errorf("%w: row-value prefetch requires at least one pivot column", errs.InvalidInput)
	}

	const cteName = "base"

	parentClone := *parentBase
	parentClone.Children = nil
	parentClone.OrderBy = nil
	parentClone.Limit = nil
	parentClone.Offset = nil
	parentClone.Selection = make([]expr.Selection, len(pivots))
	for i, p := range pivots {
		parentClone.Selection[i] = expr.Plain{Expr: expr.Column{Name: p.ParentColumn}}
	}

	childClone := *childBase
	childClone.CTEs = append(append([]relation.CTE{}, childBase.CTEs...), relation.CTE{Name: cteName, Subquery: &parentClone})

	childCols := make([]expr.Expr, len(pivots))
	selections := append([]expr.Selection{}, childBase.Selection...)
	for i, p := range pivots {
		childCols[i] = expr.Column{Name: p.ChildColumn}
		selections = append(selections, expr.Aliased{Expr: expr.Column{Name: p.ChildColumn}, Name: pivotAlias(p.ChildColumn)})
	}
	childClone.Selection = selections
	childClone.Filter = and(childClone.Filter, rowValueIn{Columns: childCols, CTEName: cteName})

	qualified, err := relation.Qualify(&childClone)
	if err != nil {
		return nil, err
	}
	return query.RenderSelect(ctx, qualified, query.SelectOptions{})
}

func and(existing, add expr.Expr) expr.Expr {
	if existing == nil {
		return add
	}
	return expr.AssociativeBinary{Op: "AND", Exprs: []expr.Expr{existing, add}}
}

// rowValueIn renders `(col1, col2, …) IN cteName`, SQLite's row-value
// membership test against a CTE (§4.H, §9). It is a prefetch-specific leaf,
// not part of the general expression tree, since no other component needs
// to reference a bare CTE name as a row-value set.
type rowValueIn struct {
	Columns []expr.Expr
	CTEName string
}

func (r rowValueIn) Qualify(a *alias.Alias) expr.Expr {
	cols := make([]expr.Expr, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c.Qualify(a)
	}
	return rowValueIn{Columns: cols, CTEName: r.CTEName}
}

func (r rowValueIn) Render(ctx *gencontext.Context) (string, error) {
	parts := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		s, err := c.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	cols := parts[0]
	if len(parts) > 1 {
		cols = "(" + joinComma(parts) + ")"
	}
	return cols + " IN " + ident.Quote(r.CTEName), nil
}

func joinComma(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
