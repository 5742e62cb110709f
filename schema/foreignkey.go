package schema

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/errs"
)

// resolvedForeignKey is a ForeignKeyDefinition with DestColumns fully
// resolved, ready to render as a table-level FOREIGN KEY clause.
type resolvedForeignKey struct {
	columns     []string
	destTable   string
	destColumns []string
	onDelete    ForeignKeyAction
	onUpdate    ForeignKeyAction
	deferred    bool
}

// forwardPrimaryKey returns table's own declared primary key — the
// "forward primary key" the glossary names: the PK of a table being
// created, not yet persisted, usable for self-referential foreign keys.
func forwardPrimaryKey(table TableDefinition) ([]string, error) {
	if len(table.PrimaryKey) > 0 {
		return table.PrimaryKey, nil
	}
	var single []string
	for _, c := range table.Columns {
		if c.PrimaryKey {
			single = append(single, c.Name)
		}
	}
	if len(single) == 0 {
		return nil, fmt.Errorf("%w: table %q declares no primary key to self-reference", errs.Schema, table.Name)
	}
	return single, nil
}

// resolveDestinationPrimaryKey implements §4.I's foreign-key resolution
// order for the case where the caller did not pin down explicit
// destination columns: a reference to this very table (case-insensitive)
// resolves to this table's own forward primary key; anything else consults
// the live schema.
func resolveDestinationPrimaryKey(db dbapi.Database, table TableDefinition, destTable string) (cols []string, isRowID bool, err error) {
	if strings.EqualFold(destTable, table.Name) {
		cols, err := forwardPrimaryKey(table)
		return cols, false, err
	}

	pk, err := db.PrimaryKey(destTable)
	if err != nil {
		return nil, false, fmt.Errorf("%w: primary key of %q: %v", errs.Schema, destTable, err)
	}
	if len(pk.Columns) == 0 && !pk.IsRowID {
		return nil, false, fmt.Errorf("%w: destination primary key for %q not resolved", errs.Schema, destTable)
	}
	return pk.Columns, pk.IsRowID, nil
}

// columnType looks up the declared type of name among table's own columns,
// falling back to a live-schema lookup against destTable, and finally to
// "INTEGER" (SQLite's rowid affinity, and a reasonable default for an
// otherwise untyped key column).
func columnType(db dbapi.Database, table TableDefinition, destTable, name string) string {
	if strings.EqualFold(destTable, table.Name) {
		for _, c := range table.Columns {
			if strings.EqualFold(c.Name, name) {
				if c.Type != "" {
					return c.Type
				}
				break
			}
		}
	} else if cols, err := db.Columns(destTable); err == nil {
		for _, c := range cols {
			if strings.EqualFold(c.Name, name) {
				if c.Type != "" {
					return c.Type
				}
				break
			}
		}
	}
	return "INTEGER"
}

func ucFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// buildBelongsTo expands a belongsTo association into the columns it
// synthesizes plus the table-level foreign key referencing them, following
// §4.I's resolution rules:
//   - a hidden rowid destination primary key (or any single-column
//     destination primary key) synthesizes one "<name>Id" column;
//   - a composite destination primary key synthesizes "<name><UppercasedPKCol>"
//     per destination column and a single multi-column FOREIGN KEY (S5).
func buildBelongsTo(db dbapi.Database, table TableDefinition, bt BelongsToDefinition) ([]ColumnDefinition, resolvedForeignKey, error) {
	destTable := bt.DestTable
	if destTable == "" {
		destTable = bt.Name
	}

	pkCols, isRowID, err := resolveDestinationPrimaryKey(db, table, destTable)
	if err != nil {
		return nil, resolvedForeignKey{}, err
	}

	var newColumns []string
	switch {
	case isRowID || len(pkCols) <= 1:
		newColumns = []string{bt.Name + "Id"}
		if len(pkCols) == 0 {
			pkCols = []string{"rowid"}
		}
	default:
		newColumns = make([]string, len(pkCols))
		for i, col := range pkCols {
			newColumns[i] = bt.Name + ucFirst(col)
		}
	}

	cols := make([]ColumnDefinition, len(newColumns))
	for i, name := range newColumns {
		cols[i] = ColumnDefinition{Name: name, Type: columnType(db, table, destTable, pkCols[i])}
	}

	fk := resolvedForeignKey{
		columns:     newColumns,
		destTable:   destTable,
		destColumns: pkCols,
		onDelete:    bt.OnDelete,
		onUpdate:    bt.OnUpdate,
		deferred:    bt.Deferred,
	}
	return cols, fk, nil
}

// resolveForeignKey fills in fk.DestColumns from the live schema (or this
// table's forward primary key, for a self-reference) when the caller left
// it empty; an explicit DestColumns is used as given.
func resolveForeignKey(db dbapi.Database, table TableDefinition, fk ForeignKeyDefinition) (resolvedForeignKey, error) {
	if len(fk.DestColumns) > 0 {
		return resolvedForeignKey{
			columns:     fk.Columns,
			destTable:   fk.DestTable,
			destColumns: fk.DestColumns,
			onDelete:    fk.OnDelete,
			onUpdate:    fk.OnUpdate,
			deferred:    fk.Deferred,
		}, nil
	}

	destCols, _, err := resolveDestinationPrimaryKey(db, table, fk.DestTable)
	if err != nil {
		return resolvedForeignKey{}, err
	}
	if len(destCols) != len(fk.Columns) {
		return resolvedForeignKey{}, fmt.Errorf("%w: foreign key on %q has %d column(s) but destination %q primary key has %d",
			errs.Schema, table.Name, len(fk.Columns), fk.DestTable, len(destCols))
	}

	return resolvedForeignKey{
		columns:     fk.Columns,
		destTable:   fk.DestTable,
		destColumns: destCols,
		onDelete:    fk.OnDelete,
		onUpdate:    fk.OnUpdate,
		deferred:    fk.Deferred,
	}, nil
}

// resolveColumnReference fills in a ColumnReference's destination column
// the same way resolveForeignKey does, for a single-column inline
// REFERENCES clause.
func resolveColumnReference(db dbapi.Database, table TableDefinition, ref ColumnReference) (string, error) {
	if ref.DestColumn != "" {
		return ref.DestColumn, nil
	}
	destCols, _, err := resolveDestinationPrimaryKey(db, table, ref.DestTable)
	if err != nil {
		return "", err
	}
	if len(destCols) != 1 {
		return "", fmt.Errorf("%w: inline reference to %q needs an explicit column (destination primary key has %d columns)",
			errs.Schema, ref.DestTable, len(destCols))
	}
	return destCols[0], nil
}

// tableDependencies reports the other tables this table's resolved foreign
// keys and belongsTo associations point at (excluding self-references),
// for Compile's dependency ordering.
func tableDependencies(table TableDefinition) []string {
	var deps []string
	for _, fk := range table.ForeignKeys {
		if !strings.EqualFold(fk.DestTable, table.Name) {
			deps = append(deps, fk.DestTable)
		}
	}
	for _, bt := range table.BelongsTo {
		dest := bt.DestTable
		if dest == "" {
			dest = bt.Name
		}
		if !strings.EqualFold(dest, table.Name) {
			deps = append(deps, dest)
		}
	}
	return deps
}
