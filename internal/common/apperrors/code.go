package apperrors

// Code classifies an error for programmatic handling. Derived errors inherit
// the code of their template unless overridden with SetCode, so a vocabulary
// root tagged once propagates its classification to every error built from it.
type Code int

const (
	CodeUnknown          Code = iota
	CodeInvalidArgument       // malformed or absent caller input
	CodeInvalidElement        // a collection element failed a shape or type check
	CodeInvalidOperation      // operation not permitted in the current state
	CodeExhausted             // a bounded resource ran out
	CodeTimeout               // an operation exceeded its time budget
	CodeInternal              // unexpected internal failure
)

// String returns the canonical name of the code.
func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeInvalidElement:
		return "invalid_element"
	case CodeInvalidOperation:
		return "invalid_operation"
	case CodeExhausted:
		return "exhausted"
	case CodeTimeout:
		return "timeout"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}
