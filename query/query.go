// Package query implements the query renderer (component G, "the heart"):
// SELECT/DELETE/UPDATE SQL assembly from a qualified relation, the
// single-result LIMIT 1 optimization, row-adapter and database-region
// metadata, and grouping classification.
package query

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
	"github.com/relq/sqlitegen/relation"
)

func init() {
	relation.SetSubqueryRenderer(renderSubquery)
}

// Grouping classifies a relation's GROUP BY against the source table's
// declared unique indexes (§4.G).
type Grouping int

const (
	GroupingNone Grouping = iota
	GroupingUnique
	GroupingNonUnique
)

// ClassifyGrouping implements the §4.G grouping rules.
func ClassifyGrouping(ctx *gencontext.Context, q *relation.Qualified) Grouping {
	if len(q.GroupBy) == 0 {
		return GroupingNone
	}
	if q.Source.TableName == "" {
		return GroupingNonUnique
	}
	cols := make([]string, 0, len(q.GroupBy))
	for _, e := range q.GroupBy {
		qc, ok := e.(expr.QualifiedColumn)
		if !ok || !alias.Same(qc.Alias, q.Source.Alias) {
			return GroupingNonUnique
		}
		cols = append(cols, qc.Name)
	}
	if ctx.DB().HasUniqueKey(q.Source.TableName, cols) {
		return GroupingUnique
	}
	return GroupingNonUnique
}

// Result is everything RenderSelect produces alongside the SQL text.
type Result struct {
	SQL       string
	Adapter   *RowAdapter
	Region    *Region
	Arguments []any
}

// SelectOptions controls optional rendering behavior not carried on the
// relation itself.
type SelectOptions struct {
	// SingleResult hints that the caller only consumes the first row; a
	// LIMIT 1 is appended unless the query is provably single-result
	// already (§4.G).
	SingleResult bool
}

// RenderSelect renders q as a SELECT statement against ctx (the outer
// generation context). It returns the SQL, the row adapter describing how
// to split result rows into nested scopes, and the database region the
// statement reads.
func RenderSelect(ctx *gencontext.Context, q *relation.Qualified, opts SelectOptions) (*Result, error) {
	subCtx, err := subqueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	sql, err := renderSelectSQL(subCtx, q, opts)
	if err != nil {
		return nil, err
	}

	adapter, err := BuildAdapter(subCtx, q)
	if err != nil {
		return nil, err
	}
	region, err := ComputeRegion(subCtx, q)
	if err != nil {
		return nil, err
	}

	return &Result{SQL: sql, Adapter: adapter, Region: region, Arguments: subCtx.Sink().Values()}, nil
}

func subqueryContext(ctx *gencontext.Context, q *relation.Qualified) (*gencontext.Context, error) {
	cteInfos := make([]gencontext.CTEInfo, 0, len(q.CTEs))
	for _, cte := range q.CTEs {
		n, err := cteColumnCount(ctx, cte)
		if err != nil {
			return nil, err
		}
		cteInfos = append(cteInfos, gencontext.CTEInfo{Name: cte.Name, ColumnCount: n})
	}
	return ctx.SubqueryContext(q.AllAliases(), cteInfos)
}

func cteColumnCount(ctx *gencontext.Context, cte relation.CTE) (int, error) {
	if len(cte.Columns) > 0 {
		return len(cte.Columns), nil
	}
	qualified, err := relation.Qualify(cte.Subquery)
	if err != nil {
		return 0, err
	}
	cteCtx, err := subqueryContext(ctx, qualified)
	if err != nil {
		return 0, err
	}
	return selectionWidth(cteCtx, qualified.Selection)
}

func renderSelectSQL(ctx *gencontext.Context, q *relation.Qualified, opts SelectOptions) (string, error) {
	var b strings.Builder

	withSQL, err := renderWith(ctx, q.CTEs)
	if err != nil {
		return "", err
	}
	if withSQL != "" {
		b.WriteString(withSQL)
		b.WriteString(" ")
	}

	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}

	sels := q.AllSelections()
	if len(sels) == 0 {
		return "", fmt.Errorf("%w: selection must be non-empty", errs.InvalidInput)
	}
	selSQL, err := renderSelections(ctx, sels)
	if err != nil {
		return "", err
	}
	b.WriteString(selSQL)

	b.WriteString(" FROM ")
	fromSQL, err := renderSource(ctx, q.Source)
	if err != nil {
		return "", err
	}
	b.WriteString(fromSQL)

	joins, err := flattenJoins(false, q.Joins)
	if err != nil {
		return "", err
	}
	for _, j := range joins {
		joinSQL, err := renderJoin(ctx, j)
		if err != nil {
			return "", err
		}
		b.WriteString(joinSQL)
	}

	if q.Filter != nil {
		filterSQL, err := q.Filter.Render(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(filterSQL)
	}

	if len(q.GroupBy) > 0 {
		groupSQL, err := renderExprList(ctx, q.GroupBy)
		if err != nil {
			return "", err
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(groupSQL)
	}

	if q.Having != nil {
		havingSQL, err := q.Having.Render(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(havingSQL)
	}

	orderings := q.AllOrderings()
	if len(orderings) > 0 {
		orderSQL, err := renderOrderings(ctx, orderings)
		if err != nil {
			return "", err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(orderSQL)
	}

	limit := q.Limit
	if limit == nil && opts.SingleResult {
		provable, err := isProvablySingleResult(ctx, q)
		if err != nil {
			return "", err
		}
		if !provable {
			one := 1
			limit = &one
		}
	}
	if limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *limit)
		if q.Offset != nil {
			fmt.Fprintf(&b, " OFFSET %d", *q.Offset)
		}
	}

	return b.String(), nil
}

func renderWith(ctx *gencontext.Context, ctes []relation.CTE) (string, error) {
	if len(ctes) == 0 {
		return "", nil
	}
	recursive := false
	for _, cte := range ctes {
		if cte.Recursive {
			recursive = true
			break
		}
	}
	parts := make([]string, len(ctes))
	for i, cte := range ctes {
		qualified, err := relation.Qualify(cte.Subquery)
		if err != nil {
			return "", err
		}
		cteCtx, err := subqueryContext(ctx, qualified)
		if err != nil {
			return "", err
		}
		body, err := renderSelectSQL(cteCtx, qualified, SelectOptions{})
		if err != nil {
			return "", err
		}
		cols := ""
		if len(cte.Columns) > 0 {
			quoted := make([]string, len(cte.Columns))
			for j, c := range cte.Columns {
				quoted[j] = ident.Quote(c)
			}
			cols = "(" + strings.Join(quoted, ", ") + ")"
		}
		parts[i] = fmt.Sprintf("%s%s AS (%s)", ident.Quote(cte.Name), cols, body)
	}
	prefix := "WITH "
	if recursive {
		prefix = "WITH RECURSIVE "
	}
	return prefix + strings.Join(parts, ", "), nil
}

func renderSelections(ctx *gencontext.Context, sels []expr.Selection) (string, error) {
	parts := make([]string, len(sels))
	for i, s := range sels {
		sql, err := s.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, ", "), nil
}

func renderExprList(ctx *gencontext.Context, exprs []expr.Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		sql, err := e.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, ", "), nil
}

func renderOrderings(ctx *gencontext.Context, orderings []expr.Ordering) (string, error) {
	parts := make([]string, len(orderings))
	for i, o := range orderings {
		sql, err := o.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, ", "), nil
}

func renderSource(ctx *gencontext.Context, src relation.Source) (string, error) {
	if src.Subquery != nil {
		qualified, err := relation.Qualify(src.Subquery)
		if err != nil {
			return "", err
		}
		subCtx, err := subqueryContext(ctx, qualified)
		if err != nil {
			return "", err
		}
		body, err := renderSelectSQL(subCtx, qualified, SelectOptions{})
		if err != nil {
			return "", err
		}
		ref := "(" + body + ")"
		if name, ok := ctx.AliasName(src.Alias); ok {
			ref += " " + ident.Quote(name)
		}
		return ref, nil
	}

	ref := ident.Quote(src.TableName)
	if name, ok := ctx.AliasName(src.Alias); ok {
		ref += " " + ident.Quote(name)
	}
	return ref, nil
}

type flatJoin struct {
	Kind      relation.ChildKind
	Source    relation.Source
	Condition expr.Expr
}

// flattenJoins walks the join tree left to right, producing one flat,
// ordered list suitable for `FROM a JOIN b ON ... JOIN c ON ...` — nested
// joins implicitly reuse the previous join's alias as their new left side,
// so only order and per-link conditions matter. An inner join chained
// behind a left join is unsupported and fails outright (§4.G, §9).
func flattenJoins(behindLeft bool, joins []relation.QualifiedJoin) ([]flatJoin, error) {
	var out []flatJoin
	for _, j := range joins {
		if j.Kind == relation.OneRequired && behindLeft {
			return nil, fmt.Errorf("%w: inner join chained behind an optional join is not supported", errs.InvalidInput)
		}
		nowBehindLeft := behindLeft || j.Kind == relation.OneOptional

		condition := combineJoinCondition(j.Condition, j.Relation.Filter)
		out = append(out, flatJoin{Kind: j.Kind, Source: j.Relation.Source, Condition: condition})

		nested, err := flattenJoins(nowBehindLeft, j.Relation.Joins)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

func combineJoinCondition(condition, childFilter expr.Expr) expr.Expr {
	switch {
	case condition == nil:
		return childFilter
	case childFilter == nil:
		return condition
	default:
		return expr.AssociativeBinary{Op: "AND", Exprs: []expr.Expr{condition, childFilter}}
	}
}

func renderJoin(ctx *gencontext.Context, j flatJoin) (string, error) {
	keyword := "JOIN"
	if j.Kind == relation.OneOptional {
		keyword = "LEFT JOIN"
	}
	srcSQL, err := renderSource(ctx, j.Source)
	if err != nil {
		return "", err
	}
	if j.Condition == nil {
		return fmt.Sprintf(" %s %s", keyword, srcSQL), nil
	}
	condSQL, err := j.Condition.Render(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" %s %s ON %s", keyword, srcSQL, condSQL), nil
}

func renderSubquery(q *relation.Qualified, ctx *gencontext.Context) (string, error) {
	subCtx, err := subqueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	sql, err := renderSelectSQL(subCtx, q, SelectOptions{})
	if err != nil {
		return "", err
	}
	return "(" + sql + ")", nil
}
