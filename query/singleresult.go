package query

import (
	"strings"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/relation"
)

var aggregateFuncs = map[string]bool{
	"COUNT":        true,
	"SUM":          true,
	"AVG":          true,
	"MIN":          true,
	"MAX":          true,
	"TOTAL":        true,
	"GROUP_CONCAT": true,
}

// isProvablySingleResult implements §4.G's single-result provability
// rules: joined queries never qualify; a WHERE that constrains a unique
// key of the source table qualifies; otherwise an aggregate selection with
// no GROUP BY qualifies.
func isProvablySingleResult(ctx *gencontext.Context, q *relation.Qualified) (bool, error) {
	if len(q.Joins) > 0 {
		return false, nil
	}
	if constrainsUniqueKey, err := filterConstrainsUniqueKey(ctx, q); err != nil {
		return false, err
	} else if constrainsUniqueKey {
		return true, nil
	}
	if len(q.GroupBy) == 0 && selectionHasAggregate(q.Selection) {
		return true, nil
	}
	return false, nil
}

func filterConstrainsUniqueKey(ctx *gencontext.Context, q *relation.Qualified) (bool, error) {
	if q.Filter == nil || q.Source.TableName == "" {
		return false, nil
	}
	var cols []string
	for _, branch := range flattenAnd(q.Filter) {
		col, ok := equalityColumn(branch, q.Source.Alias)
		if !ok {
			return false, nil
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return false, nil
	}
	return ctx.DB().HasUniqueKey(q.Source.TableName, cols), nil
}

// equalityColumn recognizes `col = lit` / `lit = col` / `col IS lit`
// against sourceAlias.
func equalityColumn(e expr.Expr, sourceAlias *alias.Alias) (string, bool) {
	switch node := e.(type) {
	case expr.Binary:
		if node.Op != "=" {
			return "", false
		}
		if col, ok := node.Left.(expr.QualifiedColumn); ok && alias.Same(col.Alias, sourceAlias) {
			if _, ok := node.Right.(expr.Lit); ok {
				return col.Name, true
			}
		}
		if col, ok := node.Right.(expr.QualifiedColumn); ok && alias.Same(col.Alias, sourceAlias) {
			if _, ok := node.Left.(expr.Lit); ok {
				return col.Name, true
			}
		}
	case expr.Is:
		if node.Negated {
			return "", false
		}
		if col, ok := node.Left.(expr.QualifiedColumn); ok && alias.Same(col.Alias, sourceAlias) {
			if _, ok := node.Right.(expr.Lit); ok {
				return col.Name, true
			}
		}
	}
	return "", false
}

// selectionHasAggregate reports whether any top-level selection item is
// COUNT(*), COUNT(...), or a 1-2 argument aggregate function call.
func selectionHasAggregate(sels []expr.Selection) bool {
	for _, s := range sels {
		if selectionItemIsAggregate(s) {
			return true
		}
	}
	return false
}

func selectionItemIsAggregate(s expr.Selection) bool {
	var e expr.Expr
	switch sel := s.(type) {
	case expr.Plain:
		e = sel.Expr
	case expr.Aliased:
		e = sel.Expr
	default:
		return false
	}
	switch node := e.(type) {
	case expr.CountStar, expr.CountExpr:
		return true
	case expr.FuncCall:
		return aggregateFuncs[strings.ToUpper(node.Name)] && len(node.Args) >= 1 && len(node.Args) <= 2
	default:
		return false
	}
}
