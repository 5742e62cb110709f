// Package alias implements table-alias identity and disambiguation: a
// union-find-like mechanism that merges aliases belonging to the same
// logical table while detecting conflicts, and assigns unique SQL names
// when the same table appears more than once in a query (component C).
package alias

import (
	"fmt"
	"strings"
)

type kind int

const (
	kindUndefined kind = iota
	kindTable
	kindProxy
)

// Alias is a mutable table-alias handle. Equality and hashing are by root
// identity after path compression; a *Alias value should always be passed
// and compared by pointer. Mutating methods are not synchronized: an alias
// is built by a single owning goroutine and then rendered, and is not
// shared across concurrent builders.
type Alias struct {
	k         kind
	tableName string
	userName  string
	proxy     *Alias
}

// New creates an Undefined alias with an optional user-provided name.
func New(userName string) *Alias {
	return &Alias{k: kindUndefined, userName: userName}
}

// FromTable creates a Table alias bound to tableName with an optional
// user-provided name.
func FromTable(tableName, userName string) *Alias {
	return &Alias{k: kindTable, tableName: tableName, userName: userName}
}

// root resolves a to its proxy chain's terminus, path-compressing chains it
// walks through so subsequent lookups are O(1).
func root(a *Alias) *Alias {
	r := a
	for r.k == kindProxy {
		r = r.proxy
	}
	for a.k == kindProxy && a.proxy != r {
		next := a.proxy
		a.proxy = r
		a = next
	}
	return r
}

// Same reports whether a and b currently share the same root identity.
func Same(a, b *Alias) bool {
	return root(a) == root(b)
}

// Identity returns a's current root pointer, suitable as a stable map key
// for callers (e.g. gencontext, relation) that need to key per-alias state
// across proxy merges. Calling Identity again after further BecomeProxy/
// Merge calls involving a may return a different pointer if a's root was
// itself folded into another alias.
func Identity(a *Alias) *Alias {
	return root(a)
}

// HasUserName reports whether a's root carries a caller-chosen name.
func (a *Alias) HasUserName() bool {
	return root(a).userName != ""
}

// UserName returns the root's user-provided name, or "" if none.
func (a *Alias) UserName() string {
	return root(a).userName
}

// TableName returns the root's bound table name and whether the root has
// transitioned to the Table variant yet.
func (a *Alias) TableName() (string, bool) {
	r := root(a)
	return r.tableName, r.k == kindTable
}

// IdentityName is the name used for grouping during disambiguation and as
// the fallback SQL name when no resolved name applies: the user name if
// present, otherwise the bound table name (empty if still Undefined).
func (a *Alias) IdentityName() string {
	r := root(a)
	if r.userName != "" {
		return r.userName
	}
	return r.tableName
}

// SetTableName transitions an Undefined alias to Table, or asserts that an
// already-Table alias is bound to the same table (case-insensitively, as
// SQLite table names are compared case-insensitively). A mismatch is a
// programmer error: the same alias object must never be claimed for two
// different tables.
func (a *Alias) SetTableName(tableName string) error {
	r := root(a)
	switch r.k {
	case kindUndefined:
		r.k = kindTable
		r.tableName = tableName
	case kindTable:
		if !strings.EqualFold(r.tableName, tableName) {
			return fmt.Errorf("alias: cannot reuse alias already bound to table %q for table %q", r.tableName, tableName)
		}
	}
	return nil
}

// SetUserName assigns a's root a caller-chosen name, or asserts the
// existing one is compatible (case-insensitively equal).
func (a *Alias) SetUserName(userName string) error {
	r := root(a)
	if r.userName == "" {
		r.userName = userName
		return nil
	}
	if !strings.EqualFold(r.userName, userName) {
		return fmt.Errorf("alias: conflicting user names %q and %q for the same alias", r.userName, userName)
	}
	return nil
}

// BecomeProxy merges a's root into other's root: a's root forwards to
// other's root, after propagating a's user name onto other if other lacks
// one (and asserting compatibility if it has one). No-op if the two
// already share a root.
func (a *Alias) BecomeProxy(other *Alias) error {
	aRoot, oRoot := root(a), root(other)
	if aRoot == oRoot {
		return nil
	}
	if aRoot.userName != "" {
		if oRoot.userName != "" && !strings.EqualFold(oRoot.userName, aRoot.userName) {
			return fmt.Errorf("alias: conflicting user names %q and %q cannot be merged", aRoot.userName, oRoot.userName)
		}
		oRoot.userName = aRoot.userName
	}
	aRoot.k = kindProxy
	aRoot.proxy = oRoot
	return nil
}

// Merge unifies lhs and rhs if they are compatible: both roots already
// bound to the same table name (case-insensitively) with no conflicting
// user name. On success it returns the common alias (rhs's root, now the
// shared identity) and true. On incompatibility it returns (nil, false)
// and leaves both aliases unchanged.
func Merge(lhs, rhs *Alias) (*Alias, bool) {
	lRoot, rRoot := root(lhs), root(rhs)
	if lRoot == rRoot {
		return lRoot, true
	}
	if lRoot.k != kindTable || rRoot.k != kindTable {
		return nil, false
	}
	if !strings.EqualFold(lRoot.tableName, rRoot.tableName) {
		return nil, false
	}
	if lRoot.userName != "" && rRoot.userName != "" && !strings.EqualFold(lRoot.userName, rRoot.userName) {
		return nil, false
	}
	if err := lRoot.BecomeProxy(rRoot); err != nil {
		return nil, false
	}
	return root(rhs), true
}

// Disambiguate computes SQL names for an ordered, identity-unique list of
// aliases. Aliases absent from the returned map should use IdentityName()
// as-is; aliases present in the map must use the returned name instead.
func Disambiguate(aliases []*Alias) (map[*Alias]string, error) {
	seen := make(map[*Alias]bool, len(aliases))
	for _, a := range aliases {
		r := root(a)
		if seen[r] {
			return nil, fmt.Errorf("alias: disambiguate requires unique alias identities, got a duplicate for %q", a.IdentityName())
		}
		seen[r] = true
	}

	type member struct {
		alias *Alias
		root  *Alias
	}
	groups := make(map[string][]member)
	var order []string
	for _, a := range aliases {
		key := strings.ToLower(a.IdentityName())
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], member{alias: a, root: root(a)})
	}

	result := make(map[*Alias]string)
	reserved := make(map[string]bool)

	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			reserved[key] = true
			continue
		}

		namedCount := 0
		for _, m := range members {
			if m.alias.HasUserName() {
				namedCount++
			}
		}
		if namedCount > 1 {
			return nil, fmt.Errorf("alias: ambiguous alias group %q has more than one user-provided name", key)
		}

		for _, m := range members {
			reserved[strings.ToLower(m.alias.IdentityName())] = true
		}

		for _, m := range members {
			if m.alias.HasUserName() {
				continue
			}
			radical := digitlessRadical(m.alias.IdentityName())
			n := 1
			var candidate string
			for {
				candidate = fmt.Sprintf("%s%d", radical, n)
				if !reserved[strings.ToLower(candidate)] {
					break
				}
				n++
			}
			reserved[strings.ToLower(candidate)] = true
			result[m.root] = candidate
		}
	}

	return result, nil
}

func digitlessRadical(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == 0 {
		return name
	}
	return name[:i]
}
