// Package invariant enforces internal contracts for the Choronzon engine:
// conditions that must hold for the engine's own state to make sense,
// regardless of what the user fed it. A violation here is always a bug in
// the engine itself — a mutation operator that produced a malformed gene
// tree, a corpus reaching a state its own admission rules forbid, a
// scheduler invariant broken mid-run — never a user-facing condition.
// User-facing failures use the typed errors in the package that detects
// them (config.Error, format.ParseError, cli.Error).
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Violation is the value every assertion in this package panics with,
// rather than a bare string. A recover() at a trial boundary or plugin
// call can type-assert against it to tell an engine bug apart from a
// panic originating somewhere else.
type Violation struct {
	Kind    string
	Message string
	File    string
	Line    int
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s (%s:%d)", v.Kind, v.Message, v.File, v.Line)
}

// Precondition checks an input contract at function entry.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("precondition", format, args...)
	}
}

// Postcondition checks an output contract before function return.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("postcondition", format, args...)
	}
}

// Invariant checks a condition that must hold throughout execution, not
// just at entry or exit.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("invariant", format, args...)
	}
}

// NotNil panics if value is nil, including a typed nil pointer, slice, or
// interface boxing one — a plain `value == nil` check misses all three.
func NotNil(value interface{}, name string) {
	if value == nil || isNilValue(value) {
		fail("precondition", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// GenePath panics if idx does not address an existing child among
// childCount children, naming the full path from the root so a violation
// surfaced while rebuilding a tree's spine can be traced back to whichever
// mutation or crossover produced the malformed path.
func GenePath(idx, childCount int, path []int) {
	if idx < 0 || idx >= childCount {
		fail("precondition", "path index %d out of range [0, %d) at %v", idx, childCount, path)
	}
}

// InsertIndex panics if index is not a valid insertion point — 0 through
// childCount inclusive — among childCount children at the given path.
func InsertIndex(index, childCount int, path []int) {
	if index < 0 || index > childCount {
		fail("precondition", "insert index %d out of range [0, %d] at %v", index, childCount, path)
	}
}

func fail(kind, format string, args ...interface{}) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "unknown", 0
	}
	panic(&Violation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Line:    line,
	})
}
