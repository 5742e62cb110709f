// Package gencontext implements the per-subquery generation scope
// (component D): it carries the schema handle, the shared arguments sink,
// this frame's alias→name resolution, and the CTEs visible at this nesting
// level, nesting via a parent link so inner subqueries can still resolve
// outer aliases and CTEs.
package gencontext

import (
	"fmt"
	"strings"

	"github.com/relq/sqlitegen/alias"
	"github.com/relq/sqlitegen/args"
	"github.com/relq/sqlitegen/dbapi"
)

// CTEInfo is the slice of a CTE's identity a Context needs: enough to
// resolve `columnCount` without depending on the relation package (which
// itself depends on gencontext to render).
type CTEInfo struct {
	Name        string
	ColumnCount int
}

// Context is one stack frame of the generation scope chain.
type Context struct {
	db            dbapi.Database
	sink          *args.Sink
	resolvedNames map[*alias.Alias]string
	ownAliases    map[*alias.Alias]bool
	ownCTEs       map[string]CTEInfo
	parent        *Context
}

// NewRoot creates the outermost Context for a render pass.
func NewRoot(db dbapi.Database, sink *args.Sink) *Context {
	return &Context{db: db, sink: sink}
}

// SubqueryContext produces a child frame for a nested relation: it shares
// this frame's sink, computes resolved names for aliases via
// alias.Disambiguate, and registers ctes under their lower-cased names.
func (c *Context) SubqueryContext(aliases []*alias.Alias, ctes []CTEInfo) (*Context, error) {
	resolved, err := alias.Disambiguate(aliases)
	if err != nil {
		return nil, fmt.Errorf("gencontext: %w", err)
	}

	own := make(map[*alias.Alias]bool, len(aliases))
	for _, a := range aliases {
		own[alias.Identity(a)] = true
	}

	cteMap := make(map[string]CTEInfo, len(ctes))
	for _, cte := range ctes {
		cteMap[strings.ToLower(cte.Name)] = cte
	}

	return &Context{
		db:            c.db,
		sink:          c.sink,
		resolvedNames: resolved,
		ownAliases:    own,
		ownCTEs:       cteMap,
		parent:        c,
	}, nil
}

// DB returns the schema handle.
func (c *Context) DB() dbapi.Database {
	return c.db
}

// Sink returns the shared arguments sink.
func (c *Context) Sink() *args.Sink {
	return c.sink
}

// ResolvedName looks up a's disambiguated SQL name starting at this frame
// and walking up the parent chain; it falls back to a's identity name if
// no frame has a resolution for it.
func (c *Context) ResolvedName(a *alias.Alias) string {
	id := alias.Identity(a)
	for frame := c; frame != nil; frame = frame.parent {
		if name, ok := frame.resolvedNames[id]; ok {
			return name
		}
	}
	return a.IdentityName()
}

// Qualifier returns the SQL prefix to use for columns of a in this frame,
// or "" when the qualifier should be omitted entirely (bare column names).
func (c *Context) Qualifier(a *alias.Alias) string {
	if a.HasUserName() {
		return a.IdentityName()
	}
	if !c.owns(a) {
		return c.ResolvedName(a)
	}
	if len(c.ownAliases) == 1 {
		return ""
	}
	return c.ResolvedName(a)
}

func (c *Context) owns(a *alias.Alias) bool {
	return c.ownAliases[alias.Identity(a)]
}

// AliasName returns the name to render after the table name in a FROM
// clause (`FROM t alias`), or ("", false) when the resolved name equals the
// table name itself (`FROM t`, no alias needed).
func (c *Context) AliasName(a *alias.Alias) (string, bool) {
	tableName, _ := a.TableName()
	resolved := c.ResolvedName(a)
	if resolved == tableName {
		return "", false
	}
	return resolved, true
}

// ColumnCount resolves how many columns a FROM-able name yields: first this
// frame's CTEs, then the parent chain's CTEs, finally the schema.
func (c *Context) ColumnCount(name string) (int, error) {
	for frame := c; frame != nil; frame = frame.parent {
		if cte, ok := frame.ownCTEs[strings.ToLower(name)]; ok {
			return cte.ColumnCount, nil
		}
	}
	return c.db.ColumnCount(name)
}
