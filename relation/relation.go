// Package relation implements the relation/CTE data model (§3) and the
// qualified-relation builder (component F): lowering a user-constructed
// relation tree into one where every expression, selection and ordering
// carries a source alias, ready for the query renderer (package query).
package relation

import (
	"fmt"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/gencontext"
)

// ChildKind classifies how a child relation relates to its parent (§3).
type ChildKind int

const (
	// OneRequired is rendered as an INNER JOIN.
	OneRequired ChildKind = iota
	// OneOptional is rendered as a LEFT JOIN.
	OneOptional
	// All is a has-many association, prefetched rather than joined (§4.H).
	All
	// Bridge is an association-only hop with no columns of its own,
	// never selected, used purely to reach a further child's join
	// condition.
	Bridge
)

// Source names what a relation selects from: a table (optionally aliased)
// or a nested subquery relation.
type Source struct {
	TableName string
	Alias     *alias.Alias // nil for an anonymous table source
	Subquery  *Relation    // mutually exclusive with TableName
}

// Child is one child relation reached from its parent under an association
// name, with the join condition that links it to the parent (for
// OneRequired/OneOptional) or the pivot expressions used to prefetch it
// (for All).
type Child struct {
	Name      string
	Kind      ChildKind
	Condition expr.Expr // join predicate, qualified against parent + child aliases
	Relation  *Relation
}

// Relation is a record mirroring §3: a source, a lazy selection, an
// optional filter, an ordered set of children keyed by association name,
// grouping, ordering, limit/offset, DISTINCT, and CTEs.
type Relation struct {
	Source Source

	Selection []expr.Selection
	Filter    expr.Expr // nil if none

	Children []Child

	GroupBy []expr.Expr
	Having  expr.Expr // nil if none

	OrderBy []expr.Ordering

	Limit  *int
	Offset *int

	Distinct bool

	CTEs []CTE
}

// CTE is a named common table expression (§3): a subquery relation with an
// optional explicit column list and a recursive flag.
type CTE struct {
	Name      string
	Columns   []string // explicit column names, empty to infer from the subquery
	Subquery  *Relation
	Recursive bool
}

// sourceAlias returns the alias identifying r's source, synthesizing one
// from the table name if the caller never supplied one explicitly. A
// subquery source must already carry an alias (set by the caller when
// building the tree) since there is no table name to derive one from.
func (r *Relation) sourceAlias() (*alias.Alias, error) {
	if r.Source.Alias != nil {
		return r.Source.Alias, nil
	}
	if r.Source.TableName == "" {
		return nil, fmt.Errorf("%w: relation source has neither a table name nor an alias", errs.InvalidInput)
	}
	a := alias.FromTable(r.Source.TableName, "")
	r.Source.Alias = a
	return a, nil
}

// QualifiedJoin is a child lowered to its rendered-join shape: a join kind,
// the fully qualified join condition, and the qualified child relation
// itself (§4.F).
type QualifiedJoin struct {
	Name      string
	Kind      ChildKind
	Condition expr.Expr
	Relation  *Qualified
}

// Prefetch is a child classified All or Bridge, set aside for the prefetch
// planner (§4.H) rather than rendered as a join.
type Prefetch struct {
	Name     string
	Kind     ChildKind
	Relation *Qualified
}

// Qualified mirrors a Relation but with every expression, selection and
// ordering qualified against its source alias, and every joined child
// recursively qualified (§4.F).
type Qualified struct {
	Source    Source
	Selection []expr.Selection
	Filter    expr.Expr
	Joins     []QualifiedJoin
	Prefetch  []Prefetch
	GroupBy   []expr.Expr
	Having    expr.Expr
	OrderBy   []expr.Ordering
	Limit     *int
	Offset    *int
	Distinct  bool
	CTEs      []CTE

	original *Relation
}

// Original returns the unqualified relation this was built from, for
// callers that need access to fields Qualify does not carry forward
// verbatim (e.g. re-deriving a stripped copy for rewrites).
func (q *Qualified) Original() *Relation { return q.original }

// Qualify lowers r into its qualified form (§4.F): every child's alias is
// determined, its condition and sub-relation are qualified against it, and
// the source's own selection/filter/group/having/ordering are qualified
// against the source alias.
func Qualify(r *Relation) (*Qualified, error) {
	srcAlias, err := r.sourceAlias()
	if err != nil {
		return nil, err
	}

	q := &Qualified{
		Source:   r.Source,
		GroupBy:  qualifyExprs(r.GroupBy, srcAlias),
		Having:   qualifyMaybe(r.Having, srcAlias),
		OrderBy:  qualifyOrderings(r.OrderBy, srcAlias),
		Limit:    r.Limit,
		Offset:   r.Offset,
		Distinct: r.Distinct,
		CTEs:     r.CTEs,
		original: r,
	}
	q.Selection = qualifySelections(r.Selection, srcAlias)
	q.Filter = qualifyMaybe(r.Filter, srcAlias)

	for _, c := range r.Children {
		childQualified, err := Qualify(c.Relation)
		if err != nil {
			return nil, err
		}
		childAlias, err := c.Relation.sourceAlias()
		if err != nil {
			return nil, err
		}

		condition := c.Condition
		if condition != nil {
			condition = condition.Qualify(srcAlias).Qualify(childAlias)
		}

		switch c.Kind {
		case All, Bridge:
			q.Prefetch = append(q.Prefetch, Prefetch{
				Name:     c.Name,
				Kind:     c.Kind,
				Relation: childQualified,
			})
		default:
			q.Joins = append(q.Joins, QualifiedJoin{
				Name:      c.Name,
				Kind:      c.Kind,
				Condition: condition,
				Relation:  childQualified,
			})
		}
	}

	return q, nil
}

func qualifyMaybe(e expr.Expr, a *alias.Alias) expr.Expr {
	if e == nil {
		return nil
	}
	return e.Qualify(a)
}

func qualifyExprs(in []expr.Expr, a *alias.Alias) []expr.Expr {
	if in == nil {
		return nil
	}
	out := make([]expr.Expr, len(in))
	for i, e := range in {
		out[i] = e.Qualify(a)
	}
	return out
}

func qualifySelections(in []expr.Selection, a *alias.Alias) []expr.Selection {
	if in == nil {
		return nil
	}
	out := make([]expr.Selection, len(in))
	for i, s := range in {
		out[i] = s.Qualify(a)
	}
	return out
}

func qualifyOrderings(in []expr.Ordering, a *alias.Alias) []expr.Ordering {
	if in == nil {
		return nil
	}
	out := make([]expr.Ordering, len(in))
	for i, o := range in {
		out[i] = o.Qualify(a)
	}
	return out
}

// AllAliases is the pre-order concatenation of the source alias followed by
// each join's aliases (§4.F invariant), used to build the generation
// context a subquery frame needs before rendering.
func (q *Qualified) AllAliases() []*alias.Alias {
	out := []*alias.Alias{q.Source.Alias}
	for _, j := range q.Joins {
		out = append(out, j.Relation.AllAliases()...)
	}
	return out
}

// AllSelections is the source selection followed by the concatenated
// selections of joined children in insertion order (§4.F invariant).
// Prefetched children contribute nothing: they are never rendered inline.
func (q *Qualified) AllSelections() []expr.Selection {
	out := append([]expr.Selection(nil), q.Selection...)
	for _, j := range q.Joins {
		out = append(out, j.Relation.AllSelections()...)
	}
	return out
}

// AllOrderings is the source ordering followed by each joined child's
// ordering appended, in insertion order (§4.F invariant).
func (q *Qualified) AllOrderings() []expr.Ordering {
	out := append([]expr.Ordering(nil), q.OrderBy...)
	for _, j := range q.Joins {
		out = append(out, j.Relation.AllOrderings()...)
	}
	return out
}

// SelectOnly replaces the source selection with a single new selection,
// clears DISTINCT, and recursively empties every joined child's selection
// (§4.F) — used by the query renderer's DELETE/UPDATE subquery rewrite.
func (q *Qualified) SelectOnly(newSelection expr.Selection) *Qualified {
	clone := *q
	clone.Selection = []expr.Selection{newSelection}
	clone.Distinct = false
	if len(q.Joins) > 0 {
		clone.Joins = make([]QualifiedJoin, len(q.Joins))
		for i, j := range q.Joins {
			emptied := *j.Relation
			emptied.Selection = nil
			clone.Joins[i] = QualifiedJoin{Name: j.Name, Kind: j.Kind, Condition: j.Condition, Relation: &emptied}
		}
	}
	return &clone
}

// RenderSubquery implements expr.Subquery so a Qualified relation can be
// used directly as an IN/EXISTS subquery source or a CTE body, without expr
// importing this package.
func (q *Qualified) RenderSubquery(ctx *gencontext.Context) (string, error) {
	return renderSubqueryHook(q, ctx)
}

// renderSubqueryHook is assigned by the query package at init time to break
// the import cycle: relation cannot import query (query depends on
// relation), so query registers its renderer here.
var renderSubqueryHook func(*Qualified, *gencontext.Context) (string, error) = func(*Qualified, *gencontext.Context) (string, error) {
	return "", fmt.Errorf("%w: subquery rendering not wired (query package not imported)", errs.Unsupported)
}

// SetSubqueryRenderer installs the query package's renderer. Called once
// from query's init.
func SetSubqueryRenderer(f func(*Qualified, *gencontext.Context) (string, error)) {
	renderSubqueryHook = f
}
