package query

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/conflict"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
	"github.com/relq/sqlitegen/relation"
)

// MutateResult is what RenderDelete/RenderUpdate produce: the SQL text and
// the bound arguments collected while rendering it.
type MutateResult struct {
	SQL       string
	Arguments []any
}

// Assignment is one `col = value` pair of an UPDATE statement. Value is
// rendered as-is against the statement's context; callers needing to
// reference the row being updated qualify their own expressions against
// the relation's source alias before constructing the Assignment.
type Assignment struct {
	Column string
	Value  expr.Expr
}

// RenderDelete renders q as a DELETE statement (§4.G): the direct form when
// there is no join and no grouping, otherwise a `WHERE pk IN (SELECT pk
// FROM ...)` rewrite. A non-unique grouping is a programmer error.
func RenderDelete(ctx *gencontext.Context, q *relation.Qualified) (*MutateResult, error) {
	subCtx, err := subqueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	grouping := ClassifyGrouping(subCtx, q)
	if grouping == GroupingNonUnique {
		return nil, fmt.Errorf("%w: DELETE over a non-unique grouping is not supported", errs.Unsupported)
	}

	quotedTable := ident.Quote(q.Source.TableName)

	if len(q.Joins) == 0 && grouping == GroupingNone {
		sql := "DELETE FROM " + quotedTable
		if q.Filter != nil {
			whereSQL, err := q.Filter.Render(subCtx)
			if err != nil {
				return nil, err
			}
			sql += " WHERE " + whereSQL
		}
		return &MutateResult{SQL: sql, Arguments: subCtx.Sink().Values()}, nil
	}

	pkSQL, innerSQL, err := renderPKSubqueryRewrite(subCtx, q)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", quotedTable, pkSQL, innerSQL)
	return &MutateResult{SQL: sql, Arguments: subCtx.Sink().Values()}, nil
}

// RenderUpdate renders q as an UPDATE statement honoring resolution's
// ON CONFLICT prefix. An empty assignment list yields (nil, nil): no
// statement to run.
func RenderUpdate(ctx *gencontext.Context, q *relation.Qualified, assignments []Assignment, resolution conflict.Resolution) (*MutateResult, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	subCtx, err := subqueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	grouping := ClassifyGrouping(subCtx, q)
	if grouping == GroupingNonUnique {
		return nil, fmt.Errorf("%w: UPDATE over a non-unique grouping is not supported", errs.Unsupported)
	}

	setSQL, err := renderAssignments(subCtx, assignments)
	if err != nil {
		return nil, err
	}

	keyword := "UPDATE"
	if kw := resolution.Keyword(); kw != "" {
		keyword = "UPDATE OR " + kw
	}
	quotedTable := ident.Quote(q.Source.TableName)

	if len(q.Joins) == 0 && grouping == GroupingNone {
		sql := fmt.Sprintf("%s %s SET %s", keyword, quotedTable, setSQL)
		if q.Filter != nil {
			whereSQL, err := q.Filter.Render(subCtx)
			if err != nil {
				return nil, err
			}
			sql += " WHERE " + whereSQL
		}
		return &MutateResult{SQL: sql, Arguments: subCtx.Sink().Values()}, nil
	}

	pkSQL, innerSQL, err := renderPKSubqueryRewrite(subCtx, q)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("%s %s SET %s WHERE %s IN (%s)", keyword, quotedTable, setSQL, pkSQL, innerSQL)
	return &MutateResult{SQL: sql, Arguments: subCtx.Sink().Values()}, nil
}

func renderAssignments(ctx *gencontext.Context, assignments []Assignment) (string, error) {
	parts := make([]string, len(assignments))
	for i, a := range assignments {
		valSQL, err := a.Value.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = fmt.Sprintf("%s = %s", ident.Quote(a.Column), valSQL)
	}
	return strings.Join(parts, ", "), nil
}

// renderPKSubqueryRewrite builds the `pk IN (SELECT pk FROM ...)` rewrite
// shared by DELETE and UPDATE: one primary-key expression, qualified against
// the source alias and rendered in the same context, serves as both the
// outer reference (resolvable since the source table's own name is visible
// in the outer statement) and the inner SELECT's sole selection item.
func renderPKSubqueryRewrite(ctx *gencontext.Context, q *relation.Qualified) (pkSQL, innerSQL string, err error) {
	pk := expr.FastPrimaryKey{Table: q.Source.TableName}.Qualify(q.Source.Alias)
	pkSQL, err = pk.Render(ctx)
	if err != nil {
		return "", "", err
	}

	inner := q.SelectOnly(expr.Plain{Expr: pk})
	innerSQL, err = renderSelectSQL(ctx, inner, SelectOptions{})
	if err != nil {
		return "", "", err
	}
	return pkSQL, innerSQL, nil
}
