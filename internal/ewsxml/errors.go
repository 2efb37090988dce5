package ewsxml

import "fmt"

// ValidationError is returned when a field value fails its type or constraint
// check during Clean. It is raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
}

func validationErrorf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProtocolError signals that a server response violated an invariant the
// protocol guarantees (wrong element tag, identity mismatch, stale change
// key). There is no recovery path; it indicates a collaborator contract
// breach, not a transient failure.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol inconsistency: " + e.Message
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// ProtocolErrorf builds a ProtocolError. Exposed for the packages that decode
// service responses on top of this engine.
func ProtocolErrorf(format string, args ...interface{}) error {
	return protocolErrorf(format, args...)
}
