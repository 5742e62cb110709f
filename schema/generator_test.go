package schema_test

import (
	"errors"
	"testing"

	"github.com/relq/sqlitegen/conflict"
	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/errs"
	"github.com/relq/sqlitegen/expr"
	"github.com/relq/sqlitegen/relation"
	"github.com/relq/sqlitegen/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDB struct {
	dbapi.Database
	pks     map[string]dbapi.PrimaryKeyInfo
	columns map[string][]dbapi.ColumnInfo
}

func (s stubDB) PrimaryKey(table string) (dbapi.PrimaryKeyInfo, error) {
	if pk, ok := s.pks[table]; ok {
		return pk, nil
	}
	return dbapi.PrimaryKeyInfo{}, errors.New("no such table")
}

func (s stubDB) Columns(table string) ([]dbapi.ColumnInfo, error) {
	return s.columns[table], nil
}

func TestS5CompositeAutoReferenceForeignKey(t *testing.T) {
	table := schema.TableDefinition{
		Name: "t",
		Columns: []schema.ColumnDefinition{
			{Name: "a", Type: "INTEGER"},
			{Name: "b", Type: "INTEGER"},
		},
		PrimaryKey: []string{"a", "b"},
		BelongsTo: []schema.BelongsToDefinition{
			{Name: "parent", DestTable: "t"},
		},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t,
		`CREATE TABLE "t" ("a" INTEGER, "b" INTEGER, "parentA" INTEGER, "parentB" INTEGER, PRIMARY KEY("a", "b"), FOREIGN KEY("parentA", "parentB") REFERENCES "t"("a", "b"))`,
		stmts[0])
}

func TestBelongsToHiddenRowIDSynthesizesSingleColumn(t *testing.T) {
	db := stubDB{pks: map[string]dbapi.PrimaryKeyInfo{
		"author": {IsRowID: true, RowIDColumn: "rowid"},
	}}
	table := schema.TableDefinition{
		Name:    "book",
		Columns: []schema.ColumnDefinition{{Name: "title", Type: "TEXT"}},
		BelongsTo: []schema.BelongsToDefinition{
			{Name: "author", Indexed: true},
		},
	}

	stmts, err := schema.RenderCreateTable(db, table)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t,
		`CREATE TABLE "book" ("title" TEXT, "authorId" INTEGER, FOREIGN KEY("authorId") REFERENCES "author"("rowid"))`,
		stmts[0])
	assert.Equal(t, `CREATE INDEX "index_book_on_authorId" ON "book"("authorId")`, stmts[1])
}

func TestS7RawModeInlinesSupportedLiteralDefault(t *testing.T) {
	table := schema.TableDefinition{
		Name: "player",
		Columns: []schema.ColumnDefinition{
			{Name: "score", Type: "INTEGER", Default: &schema.ColumnDefault{Expr: expr.Lit{Value: 0}}},
		},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "player" ("score" INTEGER DEFAULT 0)`, stmts[0])
}

func TestS7RawModeRejectsUnsupportedDefault(t *testing.T) {
	table := schema.TableDefinition{
		Name: "player",
		Columns: []schema.ColumnDefinition{
			{Name: "score", Type: "INTEGER", Default: &schema.ColumnDefault{Expr: expr.Lit{Value: struct{}{}}}},
		},
	}

	_, err := schema.RenderCreateTable(stubDB{}, table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.RawArgumentsMode))
}

func TestColumnClauseOrderAndConstraints(t *testing.T) {
	table := schema.TableDefinition{
		Name: "player",
		Columns: []schema.ColumnDefinition{
			{
				Name:                "id",
				Type:                "INTEGER",
				PrimaryKey:          true,
				PrimaryKeyConflict:  conflict.Abort,
				AutoIncrement:       true,
				NotNull:             true,
				Unique:              true,
				Checks:              []expr.Expr{expr.Binary{Op: ">", Left: expr.Column{Name: "id"}, Right: expr.Lit{Value: 0}}},
				Default:             &schema.ColumnDefault{Expr: expr.Lit{Value: 1}},
				Collation:           "NOCASE",
				Generated: &schema.GeneratedColumn{
					Expr: expr.SQLLiteral{Text: "id + 1"},
					Kind: schema.GeneratedVirtual,
				},
			},
		},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "player" ("id" INTEGER PRIMARY KEY ON CONFLICT ABORT AUTOINCREMENT NOT NULL UNIQUE CHECK("id" > 0) DEFAULT 1 COLLATE NOCASE GENERATED ALWAYS AS (id + 1) VIRTUAL)`,
		stmts[0])
}

func TestSingleColumnIndexedAutoIndexName(t *testing.T) {
	table := schema.TableDefinition{
		Name: "book",
		Columns: []schema.ColumnDefinition{
			{Name: "isbn", Type: "TEXT", Indexed: true, IndexedUnique: true},
		},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE UNIQUE INDEX "book_on_isbn" ON "book"("isbn")`, stmts[1])
}

func TestCreateTableOptionsAndTableLevelItems(t *testing.T) {
	table := schema.TableDefinition{
		Name:         "log",
		Temporary:    true,
		IfNotExists:  true,
		Strict:       true,
		WithoutRowID: true,
		Columns: []schema.ColumnDefinition{
			{Name: "a", Type: "INTEGER"},
			{Name: "b", Type: "INTEGER"},
		},
		Uniques:  [][]string{{"a", "b"}},
		Checks:   []expr.Expr{expr.Binary{Op: ">", Left: expr.Column{Name: "a"}, Right: expr.Lit{Value: 0}}},
		Literals: []string{"FOO BAR"},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TEMPORARY TABLE IF NOT EXISTS "log" ("a" INTEGER, "b" INTEGER, UNIQUE("a", "b"), CHECK("a" > 0), FOO BAR) STRICT WITHOUT ROWID`,
		stmts[0])
}

func TestForeignKeyDeferredAndReferentialActions(t *testing.T) {
	table := schema.TableDefinition{
		Name:    "book",
		Columns: []schema.ColumnDefinition{{Name: "authorId", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Columns: []string{"authorId"}, DestTable: "author", DestColumns: []string{"id"}, OnDelete: schema.Cascade, OnUpdate: schema.Restrict, Deferred: true},
		},
	}

	stmts, err := schema.RenderCreateTable(stubDB{}, table)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE "book" ("authorId" INTEGER, FOREIGN KEY("authorId") REFERENCES "author"("id") ON DELETE CASCADE ON UPDATE RESTRICT DEFERRABLE INITIALLY DEFERRED)`,
		stmts[0])
}

func TestAlterTableBatchAppendsAutoIndex(t *testing.T) {
	sql, err := schema.RenderAlterTable(stubDB{}, schema.TableDefinition{Name: "book"}, []schema.TableAlteration{
		schema.AddColumn{Table: "book", Column: schema.ColumnDefinition{Name: "rating", Type: "INTEGER", Indexed: true}},
		schema.RenameColumn{Table: "book", From: "old", To: "new"},
		schema.DropColumn{Table: "book", Column: "legacy"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`ALTER TABLE "book" ADD COLUMN "rating" INTEGER; CREATE INDEX "book_on_rating" ON "book"("rating"); ALTER TABLE "book" RENAME COLUMN "old" TO "new"; ALTER TABLE "book" DROP COLUMN "legacy"`,
		sql)
}

func TestCreateIndexWithPartialPredicate(t *testing.T) {
	sql, err := schema.RenderCreateIndex(stubDB{}, schema.IndexDefinition{
		Name:    "book_on_published",
		Table:   "book",
		Columns: []string{"published"},
		Where:   expr.Equal(expr.Column{Name: "published"}, expr.Lit{Value: true}),
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE INDEX "book_on_published" ON "book"("published") WHERE "published" = 1`, sql)
}

func TestCreateViewRendersRawSubquery(t *testing.T) {
	view := schema.ViewDefinition{
		Name: "active_player",
		Query: &relation.Relation{
			Source:    relation.Source{TableName: "player"},
			Selection: []expr.Selection{expr.Star{}},
			Filter:    expr.Equal(expr.Column{Name: "active"}, expr.Lit{Value: true}),
		},
	}

	sql, err := schema.RenderCreateView(stubDB{}, view)
	require.NoError(t, err)
	assert.Equal(t, `CREATE VIEW "active_player" AS SELECT * FROM "player" WHERE "active" = 1`, sql)
}

func TestCreateVirtualTableWithModuleArgs(t *testing.T) {
	sql := schema.RenderCreateVirtualTable(schema.VirtualTableDefinition{
		Name:       "search_index",
		Module:     "fts5",
		ModuleArgs: []string{"title", "body"},
	})
	assert.Equal(t, `CREATE VIRTUAL TABLE "search_index" USING fts5(title, body)`, sql)
}

func TestCompilePreservesDependencyOrder(t *testing.T) {
	db := stubDB{pks: map[string]dbapi.PrimaryKeyInfo{}}
	book := schema.TableDefinition{
		Name:    "book",
		Columns: []schema.ColumnDefinition{{Name: "authorId", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Columns: []string{"authorId"}, DestTable: "author", DestColumns: []string{"id"}},
		},
	}
	author := schema.TableDefinition{
		Name:    "author",
		Columns: []schema.ColumnDefinition{{Name: "id", Type: "INTEGER", PrimaryKey: true}},
	}

	ddls, err := schema.Compile(db, []schema.TableDefinition{book, author}, 0)
	require.NoError(t, err)
	require.Len(t, ddls, 2)
	assert.Contains(t, ddls[0], `"author"`)
	assert.Contains(t, ddls[1], `"book"`)
}

func TestCompileDetectsCircularDependency(t *testing.T) {
	db := stubDB{pks: map[string]dbapi.PrimaryKeyInfo{}}
	a := schema.TableDefinition{
		Name:    "a",
		Columns: []schema.ColumnDefinition{{Name: "bId", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Columns: []string{"bId"}, DestTable: "b", DestColumns: []string{"id"}},
		},
	}
	b := schema.TableDefinition{
		Name:    "b",
		Columns: []schema.ColumnDefinition{{Name: "aId", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Columns: []string{"aId"}, DestTable: "a", DestColumns: []string{"id"}},
		},
	}

	_, err := schema.Compile(db, []schema.TableDefinition{a, b}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.Schema))
}
