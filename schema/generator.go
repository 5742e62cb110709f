package schema

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/args"
	"github.com/relq/sqlitegen/conflict"
	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/gencontext"
	"github.com/relq/sqlitegen/ident"
	"github.com/relq/sqlitegen/internal/concurrent"
	"github.com/relq/sqlitegen/query"
	"github.com/relq/sqlitegen/relation"
	"github.com/relq/sqlitegen/util"
)

// rawContext builds a root generation context whose sink rejects bound
// arguments: every DDL expression (DEFAULT, CHECK, GENERATED, partial index
// WHERE, CREATE VIEW subqueries) renders through this so a captured value
// either inlines as a SQL literal or fails with errs.RawArgumentsMode,
// never silently drops (§7, S7).
func rawContext(db dbapi.Database) *gencontext.Context {
	return gencontext.NewRoot(db, args.NewRaw())
}

// Compile resolves and renders every table definition into its CREATE
// TABLE statement (plus any auto-index statements belongsTo/indexed()
// columns trigger), ordered so a table referencing another by name follows
// it. Every table is resolved and rendered through
// internal/concurrent.MapWithError with the given concurrency: 0 renders
// them one at a time, any other value calls db's methods from several
// goroutines at once.
func Compile(db dbapi.Database, tables []TableDefinition, concurrency int) ([]string, error) {
	deps := make(map[string][]string, len(tables))
	for _, t := range tables {
		deps[t.Name] = tableDependencies(t)
	}
	ordered := topologicalSort(tables, deps, func(t TableDefinition) string { return t.Name })
	if len(ordered) != len(tables) {
		return nil, fmt.Errorf("%w: circular foreign-key dependency among table definitions", errs.Schema)
	}

	rendered, err := concurrent.MapWithError(ordered, concurrency, func(t TableDefinition) ([]string, error) {
		return RenderCreateTable(db, t)
	})
	if err != nil {
		return nil, err
	}

	var ddls []string
	for _, stmts := range rendered {
		ddls = append(ddls, stmts...)
	}
	return ddls, nil
}

// RenderCreateTable renders one table definition's CREATE TABLE statement
// followed by any CREATE INDEX statements its belongsTo associations or
// indexed() columns trigger.
func RenderCreateTable(db dbapi.Database, table TableDefinition) ([]string, error) {
	ctx := rawContext(db)

	var extraIndexes []IndexDefinition
	allColumns := append([]ColumnDefinition{}, table.Columns...)
	var fks []resolvedForeignKey

	for _, bt := range table.BelongsTo {
		cols, fk, err := buildBelongsTo(db, table, bt)
		if err != nil {
			return nil, err
		}
		allColumns = append(allColumns, cols...)
		fks = append(fks, fk)
		if bt.Indexed {
			extraIndexes = append(extraIndexes, IndexDefinition{
				Name:    "index_" + table.Name + "_on_" + strings.Join(fk.columns, "_"),
				Table:   table.Name,
				Columns: fk.columns,
				Unique:  bt.Unique,
			})
		}
	}

	for _, fk := range table.ForeignKeys {
		resolved, err := resolveForeignKey(db, table, fk)
		if err != nil {
			return nil, err
		}
		fks = append(fks, resolved)
	}

	for _, c := range allColumns {
		if c.Indexed {
			extraIndexes = append(extraIndexes, IndexDefinition{
				Name:    table.Name + "_on_" + c.Name,
				Table:   table.Name,
				Columns: []string{c.Name},
				Unique:  c.IndexedUnique,
			})
		}
	}

	var items []string
	for _, c := range allColumns {
		rendered, err := renderColumnDef(ctx, db, table, c)
		if err != nil {
			return nil, err
		}
		items = append(items, rendered)
	}

	if len(table.PrimaryKey) > 1 {
		items = append(items, "PRIMARY KEY("+quoteList(table.PrimaryKey)+")"+conflictSuffix(table.PrimaryKeyConflict))
	}
	for _, u := range table.Uniques {
		items = append(items, "UNIQUE("+quoteList(u)+")")
	}
	for _, fk := range fks {
		items = append(items, renderForeignKeyClause(fk))
	}
	for _, chk := range table.Checks {
		sql, err := chk.Render(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, "CHECK("+sql+")")
	}
	items = append(items, table.Literals...)

	var b strings.Builder
	b.WriteString("CREATE ")
	if table.Temporary {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("TABLE ")
	if table.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(ident.Quote(table.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(items, ", "))
	b.WriteString(")")
	if table.Strict {
		b.WriteString(" STRICT")
	}
	if table.WithoutRowID {
		b.WriteString(" WITHOUT ROWID")
	}

	stmts := []string{b.String()}
	for _, idx := range extraIndexes {
		sql, err := RenderCreateIndex(db, idx)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, sql)
	}
	return stmts, nil
}

func renderColumnDef(ctx *gencontext.Context, db dbapi.Database, table TableDefinition, c ColumnDefinition) (string, error) {
	var b strings.Builder
	b.WriteString(ident.Quote(c.Name))
	if c.Type != "" {
		b.WriteString(" ")
		b.WriteString(c.Type)
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if suffix := conflictSuffix(c.PrimaryKeyConflict); suffix != "" {
			b.WriteString(suffix)
		}
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
		b.WriteString(conflictSuffix(c.NotNullConflict))
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
		b.WriteString(conflictSuffix(c.UniqueConflict))
	}
	for _, chk := range c.Checks {
		sql, err := chk.Render(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(" CHECK(")
		b.WriteString(sql)
		b.WriteString(")")
	}
	if c.Default != nil {
		sql, err := c.Default.Expr.Render(ctx)
		if err != nil {
			return "", fmt.Errorf("column %q default: %w", c.Name, err)
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(sql)
	}
	if c.Collation != "" {
		b.WriteString(" COLLATE ")
		b.WriteString(c.Collation)
	}
	if c.References != nil {
		destCol, err := resolveColumnReference(db, table, *c.References)
		if err != nil {
			return "", err
		}
		b.WriteString(" REFERENCES ")
		b.WriteString(ident.Quote(c.References.DestTable))
		b.WriteString("(")
		b.WriteString(ident.Quote(destCol))
		b.WriteString(")")
		b.WriteString(referentialActionSuffix(c.References.OnDelete, c.References.OnUpdate, c.References.Deferred))
	}
	if c.Generated != nil {
		sql, err := c.Generated.Expr.Render(ctx)
		if err != nil {
			return "", fmt.Errorf("column %q generated expression: %w", c.Name, err)
		}
		b.WriteString(" GENERATED ALWAYS AS (")
		b.WriteString(sql)
		b.WriteString(") ")
		if c.Generated.Kind == GeneratedStored {
			b.WriteString("STORED")
		} else {
			b.WriteString("VIRTUAL")
		}
	}
	return b.String(), nil
}

func renderForeignKeyClause(fk resolvedForeignKey) string {
	var b strings.Builder
	b.WriteString("FOREIGN KEY(")
	b.WriteString(quoteList(fk.columns))
	b.WriteString(") REFERENCES ")
	b.WriteString(ident.Quote(fk.destTable))
	b.WriteString("(")
	b.WriteString(quoteList(fk.destColumns))
	b.WriteString(")")
	b.WriteString(referentialActionSuffix(fk.onDelete, fk.onUpdate, fk.deferred))
	return b.String()
}

func referentialActionSuffix(onDelete, onUpdate ForeignKeyAction, deferred bool) string {
	var b strings.Builder
	if kw := onDelete.Keyword(); kw != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(kw)
	}
	if kw := onUpdate.Keyword(); kw != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(kw)
	}
	if deferred {
		b.WriteString(" DEFERRABLE INITIALLY DEFERRED")
	}
	return b.String()
}

func conflictSuffix(r conflict.Resolution) string {
	clause := r.OnConflictClause()
	if clause == "" {
		return ""
	}
	return " " + clause
}

func quoteList(names []string) string {
	return strings.Join(util.TransformSlice(names, ident.Quote), ", ")
}

// RenderCreateIndex renders a single CREATE INDEX statement.
func RenderCreateIndex(db dbapi.Database, idx IndexDefinition) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if idx.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(ident.Quote(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(ident.Quote(idx.Table))
	b.WriteString("(")
	b.WriteString(quoteList(idx.Columns))
	b.WriteString(")")

	if idx.Where != nil {
		ctx := rawContext(db)
		sql, err := idx.Where.Render(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(sql)
	}
	return b.String(), nil
}

// RenderAlterTable renders a batch of alterations as `;`-joined
// `ALTER TABLE` statements. An AddColumn whose Column is indexed also
// appends its CREATE INDEX statement.
func RenderAlterTable(db dbapi.Database, table TableDefinition, alterations []TableAlteration) (string, error) {
	ctx := rawContext(db)
	var stmts []string
	for _, a := range alterations {
		switch alt := a.(type) {
		case AddColumn:
			colSQL, err := renderColumnDef(ctx, db, table, alt.Column)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", ident.Quote(alt.Table), colSQL))
			if alt.Column.Indexed {
				idxSQL, err := RenderCreateIndex(db, IndexDefinition{
					Name:    alt.Table + "_on_" + alt.Column.Name,
					Table:   alt.Table,
					Columns: []string{alt.Column.Name},
					Unique:  alt.Column.IndexedUnique,
				})
				if err != nil {
					return "", err
				}
				stmts = append(stmts, idxSQL)
			}
		case RenameColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
				ident.Quote(alt.Table), ident.Quote(alt.From), ident.Quote(alt.To)))
		case DropColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", ident.Quote(alt.Table), ident.Quote(alt.Column)))
		default:
			return "", fmt.Errorf("%w: unknown table alteration %T", errs.InvalidInput, a)
		}
	}
	return strings.Join(stmts, "; "), nil
}

// RenderCreateView renders a CREATE VIEW statement. The view's subquery is
// rendered against a raw-arguments context (§4.I): every captured value is
// inlined as a literal, never left as a bound placeholder.
func RenderCreateView(db dbapi.Database, v ViewDefinition) (string, error) {
	qualified, err := relation.Qualify(v.Query)
	if err != nil {
		return "", err
	}
	ctx := rawContext(db)
	result, err := query.RenderSelect(ctx, qualified, query.SelectOptions{})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if v.Temporary {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("VIEW ")
	if v.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(ident.Quote(v.Name))
	if len(v.Columns) > 0 {
		b.WriteString(" (")
		b.WriteString(quoteList(v.Columns))
		b.WriteString(")")
	}
	b.WriteString(" AS ")
	b.WriteString(result.SQL)
	return b.String(), nil
}

// RenderCreateVirtualTable renders a CREATE VIRTUAL TABLE statement. Any
// PostStep is the caller's responsibility to invoke inside the same
// savepoint as executing this statement (§4.I); it is not part of the SQL
// text returned here.
func RenderCreateVirtualTable(v VirtualTableDefinition) string {
	var b strings.Builder
	b.WriteString("CREATE VIRTUAL TABLE ")
	if v.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	if v.SchemaPrefix != "" {
		b.WriteString(ident.Quote(v.SchemaPrefix))
		b.WriteString(".")
	}
	b.WriteString(ident.Quote(v.Name))
	b.WriteString(" USING ")
	b.WriteString(v.Module)
	if len(v.ModuleArgs) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(v.ModuleArgs, ", "))
		b.WriteString(")")
	}
	return b.String()
}
