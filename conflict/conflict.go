// Package conflict defines SQLite's ON CONFLICT resolution enum (§3),
// shared by the query renderer's UPDATE statements and the schema
// generator's column/table constraints.
package conflict

// Resolution is SQLite's closed `ON CONFLICT` policy set.
type Resolution int

const (
	// None means no conflict-resolution clause is emitted.
	None Resolution = iota
	Abort
	Rollback
	Fail
	Ignore
	Replace
)

// Keyword renders the resolution as the token following `OR` in
// `INSERT OR <keyword>` / `UPDATE OR <keyword>`, or "" for None.
func (r Resolution) Keyword() string {
	switch r {
	case Abort:
		return "ABORT"
	case Rollback:
		return "ROLLBACK"
	case Fail:
		return "FAIL"
	case Ignore:
		return "IGNORE"
	case Replace:
		return "REPLACE"
	default:
		return ""
	}
}

// OnConflictClause renders `ON CONFLICT <keyword>` for use inside a column
// or table constraint, or "" for None.
func (r Resolution) OnConflictClause() string {
	kw := r.Keyword()
	if kw == "" {
		return ""
	}
	return "ON CONFLICT " + kw
}
