package asterism

import (
	"fmt"
	"strings"
)

// UnsatisfiableError is returned when no available version of a module satisfies the running
// constraint for it.
type UnsatisfiableError struct {
	Parent     string
	Child      string
	Constraint VersionConstraint
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("%s requires %s %s, but no available version satisfies it",
		e.Parent, e.Child, e.Constraint)
}

// ConflictError is returned when two constraints on the same module cannot be intersected, which
// happens whenever an [ExactConstraint] is involved.
type ConflictError struct {
	Module   string
	Parent   string
	Existing VersionConstraint
	Incoming VersionConstraint
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	b.WriteString("conflicting constraints")
	if e.Module != "" {
		fmt.Fprintf(&b, " on %s", e.Module)
	}
	fmt.Fprintf(&b, ": %s and %s", e.Existing, e.Incoming)
	if e.Parent != "" {
		fmt.Fprintf(&b, " (required by %s)", e.Parent)
	}
	return b.String()
}

// CycleError is returned by a topological sort when the graph is not acyclic.  Nodes lists the
// nodes that could not be ordered, in insertion order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among: %s", strings.Join(e.Nodes, ", "))
}

// ManifestError is returned when a manifest or lockfile cannot be read, parsed, or written.
type ManifestError struct {
	Path     string
	Lockfile bool
	Err      error
}

func (e *ManifestError) Error() string {
	kind := "manifest"
	if e.Lockfile {
		kind = "lockfile"
	}
	return fmt.Sprintf("%s %s: %v", kind, e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// VCSError is returned when a version-control operation on a module fails.
type VCSError struct {
	Module string
	Op     string
	Err    error
}

func (e *VCSError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Module, e.Op, e.Err)
}

func (e *VCSError) Unwrap() error { return e.Err }

// LockfileEntryError is returned in lock-replay mode when a module reached through the graph has
// no entry in the root lockfile.
type LockfileEntryError struct {
	Parent string
	Child  string
}

func (e *LockfileEntryError) Error() string {
	return fmt.Sprintf("lockfile has no revision for %s (required by %s); run update", e.Child, e.Parent)
}

// NotConvergedError is returned when the fixed-point resolver restarts more times than allowed.
type NotConvergedError struct {
	Attempts uint
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("resolution did not converge after %d attempts", e.Attempts)
}
