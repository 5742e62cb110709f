package query

import (
	"log/slog"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/relation"
)

// TableRegion names one table's contribution to a Region: either a finite
// set of rowids (the statement provably touches only these rows) or the
// whole table (Unrestricted).
type TableRegion struct {
	Unrestricted bool
	RowIDs       []any
}

// Region describes the set of (table, rowid-range) a statement reads,
// consumed by change observers (§4.G, §6).
type Region struct {
	Tables map[string]*TableRegion
}

func newRegion() *Region {
	return &Region{Tables: make(map[string]*TableRegion)}
}

func (r *Region) touch(table string, rowIDs []any, unrestricted bool) {
	existing, ok := r.Tables[table]
	if !ok {
		r.Tables[table] = &TableRegion{Unrestricted: unrestricted, RowIDs: rowIDs}
		return
	}
	// Two separate references to the same table (e.g. a self-join) are
	// read independently; union rather than narrow.
	existing.Unrestricted = existing.Unrestricted || unrestricted
	if !existing.Unrestricted {
		existing.RowIDs = append(existing.RowIDs, rowIDs...)
	} else {
		existing.RowIDs = nil
	}
}

// ComputeRegion computes q's database region: for the source table, the
// filter is inspected for a finite row-id set restricted to the source
// alias's primary key (region optimization, §4.G); every joined table is
// recorded unrestricted, since this renderer does not attempt predicate
// analysis across a join boundary.
func ComputeRegion(ctx *gencontext.Context, q *relation.Qualified) (*Region, error) {
	region := newRegion()
	if err := computeRegion(ctx, q, region); err != nil {
		return nil, err
	}
	return region, nil
}

func computeRegion(ctx *gencontext.Context, q *relation.Qualified, region *Region) error {
	if q.Source.TableName != "" {
		ids, ok, err := extractSourceRowIDs(ctx, q)
		if err != nil {
			return err
		}
		if !ok && q.Filter != nil {
			slog.Default().Debug("region optimization falling back to unrestricted region",
				"table", q.Source.TableName)
		}
		region.touch(q.Source.TableName, ids, !ok)
	}
	for _, j := range q.Joins {
		if err := computeRegion(ctx, j.Relation, region); err != nil {
			return err
		}
		if j.Relation.Source.TableName != "" {
			region.touch(j.Relation.Source.TableName, nil, true)
		}
	}
	return nil
}

// extractSourceRowIDs looks for a filter of the shape `pk = lit`, or an AND
// of such equalities, on the source alias's single primary-key column, and
// returns the literals it found. Every AND-ed branch must be a `pk = lit`
// equality: a branch on any other column or operator, including `IN`,
// makes it report (nil, false), as does a composite primary key.
func extractSourceRowIDs(ctx *gencontext.Context, q *relation.Qualified) ([]any, bool, error) {
	if q.Filter == nil {
		return nil, false, nil
	}
	pk, err := ctx.DB().PrimaryKey(q.Source.TableName)
	if err != nil || len(pk.Columns) != 1 {
		return nil, false, nil
	}
	pkCol := pk.Columns[0]

	var ids []any
	ok := true
	for _, branch := range flattenAnd(q.Filter) {
		bin, isBinary := branch.(expr.Binary)
		if !isBinary || bin.Op != "=" {
			ok = false
			break
		}
		lit, matched := matchColumnLiteral(bin, q.Source.Alias, pkCol)
		if !matched {
			ok = false
			break
		}
		ids = append(ids, lit)
	}
	if !ok || len(ids) == 0 {
		return nil, false, nil
	}
	return ids, true, nil
}

func flattenAnd(e expr.Expr) []expr.Expr {
	if assoc, ok := e.(expr.AssociativeBinary); ok && assoc.Op == "AND" {
		var out []expr.Expr
		for _, sub := range assoc.Exprs {
			out = append(out, flattenAnd(sub)...)
		}
		return out
	}
	return []expr.Expr{e}
}

func matchColumnLiteral(bin expr.Binary, sourceAlias *alias.Alias, pkCol string) (any, bool) {
	if col, ok := bin.Left.(expr.QualifiedColumn); ok {
		if lit, ok := bin.Right.(expr.Lit); ok && col.Name == pkCol && alias.Same(col.Alias, sourceAlias) {
			return lit.Value, true
		}
	}
	if col, ok := bin.Right.(expr.QualifiedColumn); ok {
		if lit, ok := bin.Left.(expr.Lit); ok && col.Name == pkCol && alias.Same(col.Alias, sourceAlias) {
			return lit.Value, true
		}
	}
	return nil, false
}
