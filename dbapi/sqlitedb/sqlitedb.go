// Package sqlitedb is a reference dbapi.Database implementation backed by
// a real SQLite connection, grounded on the teacher's sqlite3 adapters
// (adapter/sqlite3, database/sqlite3): it answers schema lookups by
// querying sqlite_master and the PRAGMA table_info/index_list/index_info
// introspection calls those adapters used for dumping DDL, rather than
// diffing two schemas.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/relq/sqlitegen/dbapi"
	"github.com/relq/sqlitegen/ident"
)

// Driver names registered by this package's blank imports: "sqlite3" is
// github.com/mattn/go-sqlite3 (cgo), "sqlite" is modernc.org/sqlite's
// pure-Go driver.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// DB is a dbapi.Database backed by a real *sql.DB. Every lookup is
// synchronous; concurrent callers share conn's own internal synchronization
// (database/sql connection pooling), consistent with §5's "the caller
// serializes its own transaction discipline".
type DB struct {
	conn *sql.DB

	mu            sync.Mutex
	selectCache   map[string]*sql.Stmt
	internalCache map[string]*sql.Stmt
}

// Open opens a connection under driver ("" defaults to DriverCgo) against
// dsn (e.g. a file path, or ":memory:").
func Open(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverCgo
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: opening %s: %w", driver, err)
	}
	return &DB{
		conn:          conn,
		selectCache:   make(map[string]*sql.Stmt),
		internalCache: make(map[string]*sql.Stmt),
	}, nil
}

// Close releases the underlying connection and every cached prepared
// statement.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, stmt := range d.selectCache {
		stmt.Close()
	}
	for _, stmt := range d.internalCache {
		stmt.Close()
	}
	return d.conn.Close()
}

// Conn exposes the underlying connection for callers that need to execute
// and decode rows themselves (dbapi.Statement intentionally stops short of
// that).
func (d *DB) Conn() *sql.DB { return d.conn }

func (d *DB) TableExists(name string) bool {
	var n int
	err := d.conn.QueryRow(
		`select count(*) from sqlite_master where type = 'table' and lower(tbl_name) = lower(?)`,
		name,
	).Scan(&n)
	return err == nil && n > 0
}

func (d *DB) CanonicalTableName(name string) string {
	var canon string
	err := d.conn.QueryRow(
		`select tbl_name from sqlite_master where type = 'table' and lower(tbl_name) = lower(?)`,
		name,
	).Scan(&canon)
	if err != nil {
		return name
	}
	return canon
}

func (d *DB) Columns(table string) ([]dbapi.ColumnInfo, error) {
	rows, err := d.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", ident.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: columns of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []dbapi.ColumnInfo
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("sqlitedb: scanning table_info(%q): %w", table, err)
		}
		cols = append(cols, dbapi.ColumnInfo{
			Name:          name,
			Type:          typ,
			NotNull:       notNull != 0,
			PrimaryKeyPos: pk,
			DefaultExpr:   dflt.String,
		})
	}
	return cols, rows.Err()
}

func (d *DB) PrimaryKey(table string) (dbapi.PrimaryKeyInfo, error) {
	cols, err := d.Columns(table)
	if err != nil {
		return dbapi.PrimaryKeyInfo{}, err
	}

	var pkCols []dbapi.ColumnInfo
	for _, c := range cols {
		if c.PrimaryKeyPos > 0 {
			pkCols = append(pkCols, c)
		}
	}
	if len(pkCols) == 0 {
		return dbapi.PrimaryKeyInfo{IsRowID: true, RowIDColumn: "rowid"}, nil
	}

	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].PrimaryKeyPos < pkCols[j].PrimaryKeyPos })
	names := make([]string, len(pkCols))
	for i, c := range pkCols {
		names[i] = c.Name
	}

	// A single INTEGER PRIMARY KEY column is a rowid alias in SQLite.
	isRowID := len(pkCols) == 1 && strings.EqualFold(pkCols[0].Type, "INTEGER")
	rowIDCol := ""
	if isRowID {
		rowIDCol = pkCols[0].Name
	}

	return dbapi.PrimaryKeyInfo{
		Columns:     names,
		ColumnInfos: pkCols,
		IsRowID:     isRowID,
		RowIDColumn: rowIDCol,
	}, nil
}

func (d *DB) Indexes(table string) ([]dbapi.IndexInfo, error) {
	rows, err := d.conn.Query(fmt.Sprintf("PRAGMA index_list(%s)", ident.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: indexes of %q: %w", table, err)
	}
	defer rows.Close()

	type rawIndex struct {
		name    string
		unique  bool
		partial bool
	}
	var raw []rawIndex
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("sqlitedb: scanning index_list(%q): %w", table, err)
		}
		raw = append(raw, rawIndex{name: name, unique: unique != 0, partial: partial != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]dbapi.IndexInfo, 0, len(raw))
	for _, r := range raw {
		cols, err := d.indexColumns(r.name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, dbapi.IndexInfo{Name: r.name, Columns: cols, Unique: r.unique, Partial: r.partial})
	}
	return indexes, nil
}

func (d *DB) indexColumns(indexName string) ([]string, error) {
	rows, err := d.conn.Query(fmt.Sprintf("PRAGMA index_info(%s)", ident.Quote(indexName)))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: index_info(%q): %w", indexName, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("sqlitedb: scanning index_info(%q): %w", indexName, err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// HasUniqueKey reports whether columns (order-insensitive) exactly match a
// declared unique index or the primary key of table.
func (d *DB) HasUniqueKey(table string, columns []string) bool {
	want := sortedLower(columns)

	if pk, err := d.PrimaryKey(table); err == nil && len(pk.Columns) > 0 {
		if equalSets(sortedLower(pk.Columns), want) {
			return true
		}
	}

	indexes, err := d.Indexes(table)
	if err != nil {
		return false
	}
	for _, idx := range indexes {
		if idx.Unique && !idx.Partial && equalSets(sortedLower(idx.Columns), want) {
			return true
		}
	}
	return false
}

func (d *DB) ColumnCount(name string) (int, error) {
	cols, err := d.Columns(name)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}

func (d *DB) Execute(sqlText string) error {
	_, err := d.conn.Exec(sqlText)
	return err
}

type statement struct {
	sql  string
	args []any
	stmt *sql.Stmt
}

func (s *statement) SQL() string       { return s.sql }
func (s *statement) Arguments() []any  { return s.args }

// Prepared exposes the underlying *sql.Stmt for callers that know they are
// dealing with this package's Statement implementation.
func (s *statement) Prepared() *sql.Stmt { return s.stmt }

func (d *DB) MakeStatement(sqlText string, args []any) (dbapi.Statement, error) {
	stmt, err := d.conn.Prepare(sqlText)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: preparing statement: %w", err)
	}
	return &statement{sql: sqlText, args: args, stmt: stmt}, nil
}

func (d *DB) CachedSelectStatement(sqlText string, args []any) (dbapi.Statement, error) {
	return d.cached(&d.selectCache, sqlText, args)
}

func (d *DB) InternalCachedSelectStatement(sqlText string, args []any) (dbapi.Statement, error) {
	return d.cached(&d.internalCache, sqlText, args)
}

func (d *DB) cached(cache *map[string]*sql.Stmt, sqlText string, args []any) (dbapi.Statement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stmt, ok := (*cache)[sqlText]
	if !ok {
		var err error
		stmt, err = d.conn.Prepare(sqlText)
		if err != nil {
			return nil, fmt.Errorf("sqlitedb: preparing cached statement: %w", err)
		}
		(*cache)[sqlText] = stmt
	}
	return &statement{sql: sqlText, args: args, stmt: stmt}, nil
}

func sortedLower(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = strings.ToLower(x)
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
