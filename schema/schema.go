// Package schema implements the Schema Generator (component I): a
// declarative model of SQLite tables, columns, constraints, indexes,
// foreign keys, alterations, views, and virtual tables, compiled into
// CREATE/ALTER/CREATE INDEX SQL text. Unlike a diff-based migration tool,
// this package never inspects two schemas and computes their delta — it
// synthesizes DDL directly from Go struct literals describing the desired
// shape, resolving foreign keys against a live Database handle where the
// definition itself does not pin down the destination columns.
package schema

import (
	"github.com/relq/sqlitegen/conflict"
	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/relation"
)

// ForeignKeyAction is one of SQLite's referential actions for
// ON DELETE / ON UPDATE.
type ForeignKeyAction int

const (
	NoAction ForeignKeyAction = iota
	Cascade
	SetNull
	SetDefault
	Restrict
)

// Keyword renders the action as the token following ON DELETE/ON UPDATE,
// or "" when no clause should be emitted.
func (a ForeignKeyAction) Keyword() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	case Restrict:
		return "RESTRICT"
	default:
		return ""
	}
}

// GeneratedKind distinguishes SQLite's two generated-column storage modes.
type GeneratedKind int

const (
	GeneratedVirtual GeneratedKind = iota
	GeneratedStored
)

// GeneratedColumn is a GENERATED ALWAYS AS (expr) STORED|VIRTUAL clause.
// Expr is rendered against a raw-arguments context, same as ColumnDefault.
type GeneratedColumn struct {
	Expr expr.Expr
	Kind GeneratedKind
}

// ColumnDefault captures a column's DEFAULT clause. Expr is rendered
// against a raw-arguments sink: a literal value (expr.Lit) is inlined as a
// SQL literal via package ident, and a raw SQL expression (expr.SQLLiteral)
// is inlined verbatim. Any value ident.Literal cannot render surfaces as
// errs.RawArgumentsMode rather than being silently dropped (§7, S7).
type ColumnDefault struct {
	Expr expr.Expr
}

// ColumnReference is an inline `REFERENCES tbl(col) ...` clause attached
// directly to a column definition (as opposed to a table-level FOREIGN KEY
// clause synthesized from ForeignKeyDefinition or BelongsToDefinition).
type ColumnReference struct {
	DestTable  string
	DestColumn string // resolved against the live schema when empty
	OnDelete   ForeignKeyAction
	OnUpdate   ForeignKeyAction
	Deferred   bool
}

// ColumnDefinition is one column-components entry of a TableDefinition.
type ColumnDefinition struct {
	Name       string
	Type       string
	PrimaryKey bool
	// PrimaryKeyConflict applies only when PrimaryKey is set.
	PrimaryKeyConflict conflict.Resolution
	AutoIncrement       bool
	NotNull             bool
	NotNullConflict     conflict.Resolution
	Unique              bool
	UniqueConflict      conflict.Resolution
	Checks              []expr.Expr
	Default             *ColumnDefault
	Collation           string
	References          *ColumnReference
	Generated           *GeneratedColumn

	// Indexed requests a single-column auto index named
	// "<table>_on_<name>" (§4.I). IndexedUnique sets UNIQUE on it.
	Indexed       bool
	IndexedUnique bool
}

// BelongsToDefinition is the `belongsTo(name, in?:)` association sugar:
// it expands to one or more synthesized columns plus a table-level
// FOREIGN KEY, resolved against DestTable's primary key (or the owning
// table's own forward primary key, for a self-reference).
type BelongsToDefinition struct {
	// Name is the association name; it prefixes every synthesized column
	// ("<name>Id" or "<name><UppercasedPKCol>").
	Name string

	// DestTable is the referenced table. Empty defaults to Name, matching
	// the usual convention of an association named after its table.
	DestTable string

	Indexed  bool
	Unique   bool
	OnDelete ForeignKeyAction
	OnUpdate ForeignKeyAction
	Deferred bool
}

// ForeignKeyDefinition is a table-level FOREIGN KEY over explicit columns
// already present on the table. DestColumns is resolved against the
// destination's primary key (or this table's own forward primary key, for
// a self-reference) when left empty; otherwise it is used as given.
type ForeignKeyDefinition struct {
	Columns     []string
	DestTable   string
	DestColumns []string
	OnDelete    ForeignKeyAction
	OnUpdate    ForeignKeyAction
	Deferred    bool
}

// TableDefinition is the declarative description of one table, compiled
// into a single CREATE TABLE statement (plus any auto-index statements it
// triggers).
type TableDefinition struct {
	Name         string
	Temporary    bool
	IfNotExists  bool
	Strict       bool
	WithoutRowID bool

	Columns   []ColumnDefinition
	BelongsTo []BelongsToDefinition

	// PrimaryKey declares a table-level composite primary key. A
	// single-column primary key is expressed inline on the column instead
	// (ColumnDefinition.PrimaryKey); this field is only consulted as a
	// table-level PRIMARY KEY(...) clause when it has more than one
	// column, and as this table's forward primary key for self-referencing
	// belongsTo/foreign keys regardless of its length.
	PrimaryKey         []string
	PrimaryKeyConflict conflict.Resolution

	Uniques     [][]string
	ForeignKeys []ForeignKeyDefinition
	Checks      []expr.Expr
	Literals    []string
}

// TableAlteration is one statement of an ALTER TABLE batch (§4.I);
// concrete variants are AddColumn, RenameColumn, and DropColumn.
type TableAlteration interface {
	alterationTable() string
}

// AddColumn appends `ALTER TABLE t ADD COLUMN ...`. An indexed Column also
// appends its CREATE INDEX statement.
type AddColumn struct {
	Table  string
	Column ColumnDefinition
}

func (a AddColumn) alterationTable() string { return a.Table }

// RenameColumn appends `ALTER TABLE t RENAME COLUMN a TO b`.
type RenameColumn struct {
	Table    string
	From, To string
}

func (r RenameColumn) alterationTable() string { return r.Table }

// DropColumn appends `ALTER TABLE t DROP COLUMN a`.
type DropColumn struct {
	Table  string
	Column string
}

func (d DropColumn) alterationTable() string { return d.Table }

// IndexDefinition compiles to a single CREATE INDEX statement.
type IndexDefinition struct {
	Name        string
	Table       string
	Columns     []string
	Unique      bool
	IfNotExists bool
	// Where is an optional partial-index predicate, rendered against a
	// raw-arguments sink same as every other DDL expression.
	Where expr.Expr
}

// VirtualTableDefinition compiles to a single CREATE VIRTUAL TABLE
// statement. PostStep, if set, is a module-defined follow-up the caller
// must execute inside the same savepoint as the CREATE VIRTUAL TABLE
// statement (§4.I) — it is not part of the rendered SQL text.
type VirtualTableDefinition struct {
	Name string
	// SchemaPrefix is "temp" for `CREATE VIRTUAL TABLE ... temp.name USING
	// ...`, or "" for the main schema.
	SchemaPrefix string
	IfNotExists  bool
	Module       string
	ModuleArgs   []string
	PostStep     func(db dbapi.Database) error
}

// ViewDefinition compiles to a single CREATE VIEW statement. Query's
// subquery is rendered against a raw-arguments context: any bound value it
// would otherwise capture is inlined as a SQL literal, or rendering fails
// with errs.RawArgumentsMode (§4.I).
type ViewDefinition struct {
	Name        string
	Temporary   bool
	IfNotExists bool
	Columns     []string
	Query       *relation.Relation
}
