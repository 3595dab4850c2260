// Package hwerr defines the error categories shared by the package
// resolver and the media layout engine.
//
// Most categories are ordinary errors that propagate to the caller
// unchanged. InvariantViolation and ProgrammingError are different: per
// spec they indicate a bug, not a runtime condition, so the
// constructors in this package panic instead of returning an error —
// callers are not expected to recover from them in normal operation.
package hwerr

import "fmt"

// NotFound is returned when a requested package is absent from every
// configured source.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("package %q not found in any configured source", e.Name)
}

// DependencyNotSatisfied is returned when the resolver cannot satisfy a
// required relationship of the named package.
type DependencyNotSatisfied struct {
	Name string
}

func (e *DependencyNotSatisfied) Error() string {
	return fmt.Sprintf("unable to satisfy dependencies of %s", e.Name)
}

// UnknownField is returned when the archive writer receives a control
// field outside the seven relationship kinds plus Architecture,
// Maintainer, Description, Section, Priority.
type UnknownField struct {
	Field string
}

func (e *UnknownField) Error() string {
	return fmt.Sprintf("unknown control field %q", e.Field)
}

// GlobAmbiguous is returned when a required on-disk artifact matched
// zero or more than one path.
type GlobAmbiguous struct {
	Pattern string
	Matches []string
}

func (e *GlobAmbiguous) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("no files matching %q", e.Pattern)
	}
	return fmt.Sprintf("%d files matching %q, expected exactly one", len(e.Matches), e.Pattern)
}

// ExternalToolFailed is returned when a spawned helper process exits
// non-zero.
type ExternalToolFailed struct {
	Command  []string
	ExitCode int
}

func (e *ExternalToolFailed) Error() string {
	return fmt.Sprintf("command %v exited with status %d", e.Command, e.ExitCode)
}

// InvariantViolation panics with a description of the violated
// planner-level invariant. It is called at construction time, never
// returned as an error.
func InvariantViolation(format string, args ...interface{}) {
	panic(fmt.Sprintf("invariant violation: "+format, args...))
}

// ProgrammingError panics to abort the current operation when a caller
// misuses a scoped resource (double-enter, premature read before a
// value has been resolved).
func ProgrammingError(format string, args ...interface{}) {
	panic(fmt.Sprintf("programming error: "+format, args...))
}
