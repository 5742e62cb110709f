// Package errs defines the error-kind taxonomy the generation core uses to
// distinguish programmer-misuse errors from schema errors and from errors
// propagated unchanged out of the Database collaborator.
package errs

import "errors"

// Sentinel kinds. Callers use errors.Is against these, and the concrete
// error returned by the core wraps one of them with fmt.Errorf("...: %w", ...).
var (
	// InvalidInput covers empty selections, ambiguous alias groups, alias
	// reuse across two distinct tables, and chaining a required join
	// behind an optional one.
	InvalidInput = errors.New("invalid input")

	// RawArgumentsMode is returned when bindable arguments are appended to
	// a sink that forbids them (e.g. a CREATE TABLE DEFAULT expression).
	RawArgumentsMode = errors.New("arguments sink is in raw mode")

	// Unsupported covers constructs this engine deliberately refuses to
	// render: COUNT(alias.*), COUNT(selection literal), grouping-based
	// DELETE/UPDATE over a non-unique group.
	Unsupported = errors.New("unsupported construct")

	// Schema covers unresolved tables/columns and foreign keys whose
	// destination primary key could not be determined.
	Schema = errors.New("schema error")
)
