package asterism

import "fmt"

// A Requirement is one outgoing edge of a module: the required [Module] and the constraint its
// version must satisfy.
type Requirement struct {
	Module     *Module
	Constraint VersionConstraint
}

func (r Requirement) String() string {
	return fmt.Sprintf("%v %v", r.Module, r.Constraint)
}
