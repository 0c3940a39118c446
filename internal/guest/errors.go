package guest

import "fmt"

// Kind categorizes a guest load/runtime failure, matching the host-wide
// error taxonomy.
type Kind int

const (
	ModuleLoadError Kind = iota
	InstantiationError
	MissingExport
	RuntimeFault
)

func (k Kind) String() string {
	switch k {
	case ModuleLoadError:
		return "ModuleLoadError"
	case InstantiationError:
		return "InstantiationError"
	case MissingExport:
		return "MissingExport"
	case RuntimeFault:
		return "RuntimeFault"
	default:
		return "UnknownError"
	}
}

// Error carries detailed context for a guest failure: which phase, what
// locator, and the underlying cause if any.
type Error struct {
	Kind    Kind
	Locator string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("guest %s (%s): %s: %v", e.Kind, e.Locator, e.Details, e.Err)
	}
	return fmt.Sprintf("guest %s (%s): %s", e.Kind, e.Locator, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }
