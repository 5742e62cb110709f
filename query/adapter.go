package query

import (
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/relation"
)

// RowAdapter describes how to split one wide result row into nested scopes
// (§4.G): Range is the half-open column span `[start, end)` this adapter's
// own relation occupies; Scopes maps each joined association name to the
// sub-adapter covering its columns.
type RowAdapter struct {
	Range  [2]int
	Scopes map[string]*RowAdapter
}

// BuildAdapter computes q's row adapter. A root relation with no joins has
// no adapter at all (there is nothing to split); otherwise it is the range
// covering the whole row plus the scope map for every joined child.
func BuildAdapter(ctx *gencontext.Context, q *relation.Qualified) (*RowAdapter, error) {
	if len(q.Joins) == 0 {
		return nil, nil
	}
	_, adapter, err := buildAdapter(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func buildAdapter(ctx *gencontext.Context, q *relation.Qualified, offset int) (int, *RowAdapter, error) {
	width, err := selectionWidth(ctx, q.Selection)
	if err != nil {
		return 0, nil, err
	}

	total := width
	var scopes map[string]*RowAdapter
	for _, j := range q.Joins {
		childWidth, childAdapter, err := buildAdapter(ctx, j.Relation, offset+total)
		if err != nil {
			return 0, nil, err
		}
		if scopes == nil {
			scopes = make(map[string]*RowAdapter)
		}
		if childAdapter != nil {
			scopes[j.Name] = childAdapter
		} else {
			scopes[j.Name] = &RowAdapter{Range: [2]int{offset + total, offset + total + childWidth}}
		}
		total += childWidth
	}

	return total, &RowAdapter{Range: [2]int{offset, offset + total}, Scopes: scopes}, nil
}

// selectionWidth counts the output columns of sels: `*`/`alias.*` expand to
// the source's declared column count (consulting CTEs and views through
// ctx.ColumnCount as needed); every other selection item occupies one
// column.
func selectionWidth(ctx *gencontext.Context, sels []expr.Selection) (int, error) {
	total := 0
	for _, s := range sels {
		n, err := selectionItemWidth(ctx, s)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func selectionItemWidth(ctx *gencontext.Context, s expr.Selection) (int, error) {
	star, ok := s.(expr.QualifiedStar)
	if !ok {
		return 1, nil
	}
	tableName, isTable := star.Alias.TableName()
	if !isTable {
		return 1, nil
	}
	return ctx.ColumnCount(tableName)
}
