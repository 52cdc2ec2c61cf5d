package build

import "fmt"

// Build steps reported by [Error].
const (
	StepLoadSolution  = "load solution"
	StepBuild         = "build"
	StepCopyHeaders   = "copy headers"
	StepCopyLibraries = "copy libraries"
	StepPropertySheet = "write property sheet"
)

// Error reports a failed build step.  Configuration is the zero value for steps that are not
// specific to one configuration.
type Error struct {
	Module        string
	Configuration Configuration
	Step          string
	Err           error
}

func (e *Error) Error() string {
	if e.Configuration == (Configuration{}) {
		return fmt.Sprintf("%s: %s: %v", e.Module, e.Step, e.Err)
	}
	return fmt.Sprintf("%s (%v): %s: %v", e.Module, e.Configuration, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
