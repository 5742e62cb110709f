// Package expr implements the expression, ordering, and selection tree and
// its renderer (component E): a tagged sum walked by a single recursive
// function, rather than a visitor/double-dispatch hierarchy (§9).
package expr

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
)

// Expr is one node of the expression tree. Qualify must be idempotent: an
// already-qualified node returns itself unchanged.
type Expr interface {
	Qualify(a *alias.Alias) Expr
	Render(ctx *gencontext.Context) (string, error)
}

// Subquery is the minimal surface the relation package's qualified
// relations must provide for IN/EXISTS subqueries and row-value CTEs to
// render without expr importing relation (which itself depends on expr).
type Subquery interface {
	RenderSubquery(ctx *gencontext.Context) (string, error)
}

// ---- literal values and bare/qualified columns ----

// Lit is a bound literal value: it appends to the context's sink and
// renders as a placeholder, or — if the sink is raw — renders as an
// inlined SQL literal.
type Lit struct{ Value any }

func (l Lit) Qualify(*alias.Alias) Expr { return l }

func (l Lit) Render(ctx *gencontext.Context) (string, error) {
	return renderBoundValue(ctx, l.Value)
}

func renderBoundValue(ctx *gencontext.Context, v any) (string, error) {
	if ctx.Sink().Append(v) {
		return "?", nil
	}
	lit, err := ident.Literal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.RawArgumentsMode, err)
	}
	return lit, nil
}

// Column is a bare (unqualified) column reference. Qualifying it binds it
// to a table alias.
type Column struct{ Name string }

func (c Column) Qualify(a *alias.Alias) Expr {
	return QualifiedColumn{Alias: a, Name: c.Name}
}

func (c Column) Render(*gencontext.Context) (string, error) {
	return ident.Quote(c.Name), nil
}

// QualifiedColumn is already bound to an alias; Qualify is a no-op.
type QualifiedColumn struct {
	Alias *alias.Alias
	Name  string
}

func (c QualifiedColumn) Qualify(*alias.Alias) Expr { return c }

func (c QualifiedColumn) Render(ctx *gencontext.Context) (string, error) {
	return ident.QuoteQualified(ctx.Qualifier(c.Alias), c.Name), nil
}

// ---- aliased expressions (selection-only: `expr AS name`) ----

// Aliased wraps an expression with an output column name. It is a
// Selection, not an Expr, since `AS` only makes sense in a select list —
// see selection.go.

// ---- binary / associative / unary ----

// Binary renders `left OP right`.
type Binary struct {
	Op          string
	Left, Right Expr
}

func (b Binary) Qualify(a *alias.Alias) Expr {
	return Binary{Op: b.Op, Left: b.Left.Qualify(a), Right: b.Right.Qualify(a)}
}

func (b Binary) Render(ctx *gencontext.Context) (string, error) {
	l, err := b.Left.Render(ctx)
	if err != nil {
		return "", err
	}
	r, err := b.Right.Render(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", l, b.Op, r), nil
}

// AssociativeBinary renders `(e1 OP e2 OP ... OP eN)` for operators like
// AND/OR where chaining the same operator needs no extra parens per pair.
type AssociativeBinary struct {
	Op    string
	Exprs []Expr
}

func (a AssociativeBinary) Qualify(al *alias.Alias) Expr {
	out := make([]Expr, len(a.Exprs))
	for i, e := range a.Exprs {
		out[i] = e.Qualify(al)
	}
	return AssociativeBinary{Op: a.Op, Exprs: out}
}

func (a AssociativeBinary) Render(ctx *gencontext.Context) (string, error) {
	if len(a.Exprs) == 0 {
		return "", fmt.Errorf("%w: associative binary %q with no operands", errs.InvalidInput, a.Op)
	}
	parts := make([]string, len(a.Exprs))
	for i, e := range a.Exprs {
		s, err := e.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+a.Op+" ") + ")", nil
}

// Unary renders `OP (expr)` (e.g. `NOT (...)`, `-(...)`).
type Unary struct {
	Op      string
	Operand Expr
}

func (u Unary) Qualify(a *alias.Alias) Expr {
	return Unary{Op: u.Op, Operand: u.Operand.Qualify(a)}
}

func (u Unary) Render(ctx *gencontext.Context) (string, error) {
	s, err := u.Operand.Render(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", u.Op, s), nil
}

// Not renders `NOT (expr)`.
func Not(e Expr) Expr { return Unary{Op: "NOT", Operand: e} }

// Equal/NotEqual are thin Binary aliases matching SQLite's `=`/`<>`.
func Equal(l, r Expr) Expr    { return Binary{Op: "=", Left: l, Right: r} }
func NotEqual(l, r Expr) Expr { return Binary{Op: "<>", Left: l, Right: r} }

// Is renders `expr IS other` / `expr IS NOT other`.
type Is struct {
	Left, Right Expr
	Negated     bool
}

func (i Is) Qualify(a *alias.Alias) Expr {
	return Is{Left: i.Left.Qualify(a), Right: i.Right.Qualify(a), Negated: i.Negated}
}

func (i Is) Render(ctx *gencontext.Context) (string, error) {
	l, err := i.Left.Render(ctx)
	if err != nil {
		return "", err
	}
	r, err := i.Right.Render(ctx)
	if err != nil {
		return "", err
	}
	op := "IS"
	if i.Negated {
		op = "IS NOT"
	}
	return fmt.Sprintf("%s %s %s", l, op, r), nil
}

// ---- function calls ----

// FuncCall renders `NAME([DISTINCT] a, b, ...)`.
type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

func (f FuncCall) Qualify(a *alias.Alias) Expr {
	out := make([]Expr, len(f.Args))
	for i, arg := range f.Args {
		out[i] = arg.Qualify(a)
	}
	return FuncCall{Name: f.Name, Args: out, Distinct: f.Distinct}
}

func (f FuncCall) Render(ctx *gencontext.Context) (string, error) {
	parts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		s, err := arg.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	distinct := ""
	if f.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s)", strings.ToUpper(f.Name), distinct, strings.Join(parts, ", ")), nil
}

// CountStar renders `COUNT(*)`.
type CountStar struct{}

func (CountStar) Qualify(*alias.Alias) Expr { return CountStar{} }
func (CountStar) Render(*gencontext.Context) (string, error) {
	return "COUNT(*)", nil
}

// AllColumns is the unqualified `*`. As a bare Expr it only ever appears as
// COUNT's argument (`COUNT(*)` is better spelled CountStar, but builders
// may construct it generically); as a Selection it is the ordinary `SELECT
// *` item — see selection.go.
type AllColumns struct{}

func (AllColumns) Qualify(a *alias.Alias) Expr { return QualifiedAllColumns{Alias: a} }

func (AllColumns) Render(*gencontext.Context) (string, error) { return "*", nil }

// QualifiedAllColumns is `alias.*`, qualified only when the surrounding
// context actually needs a qualifier (§4.E: "emit q.* when a qualifier
// exists, else *").
type QualifiedAllColumns struct{ Alias *alias.Alias }

func (q QualifiedAllColumns) Qualify(*alias.Alias) Expr { return q }

func (q QualifiedAllColumns) Render(ctx *gencontext.Context) (string, error) {
	qualifier := ctx.Qualifier(q.Alias)
	if qualifier == "" {
		return "*", nil
	}
	return ident.Quote(qualifier) + ".*", nil
}

// OpaqueSelectionExpr models an opaque selection-literal reused in a
// position that expects a scalar Expr (e.g. mistakenly passed as COUNT's
// argument). It renders its text verbatim anywhere else; CountExpr
// rejects it outright per §4.E ("SelectionLiteral must fail").
type OpaqueSelectionExpr struct{ Text string }

func (o OpaqueSelectionExpr) Qualify(*alias.Alias) Expr { return o }
func (o OpaqueSelectionExpr) Render(*gencontext.Context) (string, error) {
	return o.Text, nil
}

// CountExpr renders `COUNT([DISTINCT] arg)`. Two argument shapes must fail
// rather than silently degrade: a qualified `alias.*` whose qualifier
// actually resolves to non-empty, and an opaque selection literal (§4.E).
type CountExpr struct {
	Arg      Expr
	Distinct bool
}

func (c CountExpr) Qualify(a *alias.Alias) Expr {
	return CountExpr{Arg: c.Arg.Qualify(a), Distinct: c.Distinct}
}

func (c CountExpr) Render(ctx *gencontext.Context) (string, error) {
	switch arg := c.Arg.(type) {
	case OpaqueSelectionExpr:
		return "", fmt.Errorf("%w: COUNT cannot take a selection literal as its argument", errs.Unsupported)
	case QualifiedAllColumns:
		if ctx.Qualifier(arg.Alias) != "" {
			return "", fmt.Errorf("%w: COUNT(alias.*) is not supported", errs.Unsupported)
		}
	}

	argSQL, err := c.Arg.Render(ctx)
	if err != nil {
		return "", err
	}
	distinct := ""
	if c.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("COUNT(%s%s)", distinct, argSQL), nil
}

// ---- BETWEEN / IN / NOT IN ----

// Between renders `expr BETWEEN low AND high`.
type Between struct {
	Expr, Low, High Expr
}

func (b Between) Qualify(a *alias.Alias) Expr {
	return Between{Expr: b.Expr.Qualify(a), Low: b.Low.Qualify(a), High: b.High.Qualify(a)}
}

func (b Between) Render(ctx *gencontext.Context) (string, error) {
	e, err := b.Expr.Render(ctx)
	if err != nil {
		return "", err
	}
	lo, err := b.Low.Render(ctx)
	if err != nil {
		return "", err
	}
	hi, err := b.High.Render(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", e, lo, hi), nil
}

// In renders `expr IN (a, b, ...)` over a literal collection, `expr IN
// (SELECT ...)` over a subquery, or the constant-folded `0`/`1` rewrite for
// an empty collection (§4.E).
type In struct {
	Expr       Expr
	Collection []Expr   // mutually exclusive with Subquery
	Subquery   Subquery
	Negated    bool
}

func (in In) Qualify(a *alias.Alias) Expr {
	out := make([]Expr, len(in.Collection))
	for i, e := range in.Collection {
		out[i] = e.Qualify(a)
	}
	return In{Expr: in.Expr.Qualify(a), Collection: out, Subquery: in.Subquery, Negated: in.Negated}
}

func (in In) Render(ctx *gencontext.Context) (string, error) {
	if in.Subquery != nil {
		sub, err := in.Subquery.RenderSubquery(ctx)
		if err != nil {
			return "", err
		}
		e, err := in.Expr.Render(ctx)
		if err != nil {
			return "", err
		}
		op := "IN"
		if in.Negated {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s %s", e, op, sub), nil
	}

	if len(in.Collection) == 0 {
		if in.Negated {
			return "1", nil
		}
		return "0", nil
	}

	e, err := in.Expr.Render(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(in.Collection))
	for i, item := range in.Collection {
		s, err := item.Render(ctx)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	op := "IN"
	if in.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", e, op, strings.Join(parts, ", ")), nil
}

// ---- COLLATE ----

// Collate renders `expr COLLATE NAME`.
type Collate struct {
	Expr      Expr
	Collation string
}

func (c Collate) Qualify(a *alias.Alias) Expr {
	return Collate{Expr: c.Expr.Qualify(a), Collation: c.Collation}
}

func (c Collate) Render(ctx *gencontext.Context) (string, error) {
	s, err := c.Expr.Render(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s COLLATE %s", s, c.Collation), nil
}

// ---- SQL literal fragments ----

// Captured is an opaque value embedded in a SQLLiteral fragment at a `?`
// placeholder.
type Captured struct{ Value any }

// SQLLiteral is a raw, pre-formed SQL fragment with embedded `?`
// placeholders; Args supplies one Captured value per placeholder, in
// order. Each captured value either binds (when the sink allows it) or is
// inlined as a literal (raw sink), never silently dropped (§7, S7).
type SQLLiteral struct {
	Text string
	Args []Captured
}

func (s SQLLiteral) Qualify(*alias.Alias) Expr { return s }

func (s SQLLiteral) Render(ctx *gencontext.Context) (string, error) {
	if len(s.Args) == 0 {
		return s.Text, nil
	}
	var b strings.Builder
	argIdx := 0
	for i := 0; i < len(s.Text); i++ {
		if s.Text[i] == '?' {
			if argIdx >= len(s.Args) {
				return "", fmt.Errorf("%w: SQL literal has more `?` placeholders than captured values", errs.InvalidInput)
			}
			rendered, err := renderBoundValue(ctx, s.Args[argIdx].Value)
			if err != nil {
				return "", err
			}
			b.WriteString(rendered)
			argIdx++
			continue
		}
		b.WriteByte(s.Text[i])
	}
	if argIdx != len(s.Args) {
		return "", fmt.Errorf("%w: SQL literal has fewer `?` placeholders than captured values", errs.InvalidInput)
	}
	return b.String(), nil
}

// ---- fast primary-key token ----

// FastPrimaryKey asks the schema for the primary-key columns of table at
// render time: a single-column PK resolves to a plain column reference; a
// composite PK resolves to an opaque token only usable in `WHERE pk IN
// (...)` rewrites (the query renderer's DELETE/UPDATE subquery rewrite,
// §4.G), rendered here as a parenthesized tuple of quoted column names for
// that purpose.
type FastPrimaryKey struct {
	Table string
	Alias *alias.Alias // nil until qualified
}

func (f FastPrimaryKey) Qualify(a *alias.Alias) Expr {
	if f.Alias != nil {
		return f
	}
	return FastPrimaryKey{Table: f.Table, Alias: a}
}

func (f FastPrimaryKey) Render(ctx *gencontext.Context) (string, error) {
	pk, err := ctx.DB().PrimaryKey(f.Table)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.Schema, err)
	}
	qualifier := ""
	if f.Alias != nil {
		qualifier = ctx.Qualifier(f.Alias)
	}
	if len(pk.Columns) == 1 {
		return ident.QuoteQualified(qualifier, pk.Columns[0]), nil
	}
	parts := make([]string, len(pk.Columns))
	for i, col := range pk.Columns {
		parts[i] = ident.QuoteQualified(qualifier, col)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

// Columns returns the PK's column names for callers that need to build a
// row-value tuple explicitly (e.g. the prefetch planner's CTE pivot).
func (f FastPrimaryKey) Columns(ctx *gencontext.Context) ([]string, error) {
	pk, err := ctx.DB().PrimaryKey(f.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Schema, err)
	}
	return pk.Columns, nil
}

// ---- table MATCH / EXISTS ----

// TableMatch renders `alias MATCH pattern` (SQLite FTS `MATCH` operator
// applied to a whole virtual table).
type TableMatch struct {
	Alias   *alias.Alias
	Pattern Expr
}

func (m TableMatch) Qualify(a *alias.Alias) Expr {
	if m.Alias != nil {
		return TableMatch{Alias: m.Alias, Pattern: m.Pattern.Qualify(a)}
	}
	return TableMatch{Alias: a, Pattern: m.Pattern.Qualify(a)}
}

func (m TableMatch) Render(ctx *gencontext.Context) (string, error) {
	pattern, err := m.Pattern.Render(ctx)
	if err != nil {
		return "", err
	}
	tableName, _ := m.Alias.TableName()
	qualifier := ctx.Qualifier(m.Alias)
	if qualifier == "" {
		qualifier = tableName
	}
	return fmt.Sprintf("%s MATCH %s", ident.Quote(qualifier), pattern), nil
}

// Exists renders `EXISTS (<subquery>)` against a qualified source. The
// subquery is rendered as given, with its own selection list; it is not
// rewritten to `SELECT 1`.
type Exists struct {
	Source Subquery
}

func (e Exists) Qualify(*alias.Alias) Expr { return e }

func (e Exists) Render(ctx *gencontext.Context) (string, error) {
	sub, err := e.Source.RenderSubquery(ctx)
	if err != nil {
		return "", err
	}
	return "EXISTS " + sub, nil
}
