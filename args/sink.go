// Package args implements the bound-parameter sink shared by every
// generation context derived from the same root (component B of the
// generation engine).
package args

// Sink collects bound parameters accumulated while rendering a statement.
// A Sink is created once per root render call and shared by reference
// across every nested Context derived from that root (see gencontext);
// callers must not reuse a Sink across independent renders.
type Sink struct {
	raw    bool
	values []any
}

// NewBindable returns a Sink that accepts bound arguments.
func NewBindable() *Sink {
	return &Sink{}
}

// NewRaw returns a Sink that forbids bound arguments: any attempt to append
// a non-empty argument list fails. Used for contexts where a bound
// parameter cannot appear in the output at all, such as CREATE VIEW bodies
// and other DDL rendered as standalone text.
func NewRaw() *Sink {
	return &Sink{raw: true}
}

// Raw reports whether this sink rejects bound arguments.
func (s *Sink) Raw() bool {
	return s.raw
}

// Append adds xs to the sink in order. It returns false without modifying
// the sink iff the sink is raw and xs is non-empty; callers must then
// render the values as SQL literals (see package ident) or fail with
// errs.RawArgumentsMode.
func (s *Sink) Append(xs ...any) bool {
	if len(xs) == 0 {
		return true
	}
	if s.raw {
		return false
	}
	s.values = append(s.values, xs...)
	return true
}

// Values returns the arguments collected so far, in the exact left-to-right
// order they were appended.
func (s *Sink) Values() []any {
	return s.values
}

// Len reports how many arguments have been collected.
func (s *Sink) Len() int {
	return len(s.values)
}
