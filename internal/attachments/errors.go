package attachments

import "errors"

var (
	// ErrAlreadyAttached is returned when Attach is called on an attachment
	// that already carries a server-issued identity.
	ErrAlreadyAttached = errors.New("attachment has already been created")

	// ErrNotAttached is returned when Detach is called before the attachment
	// has been created on the server.
	ErrNotAttached = errors.New("attachment has not been created")

	// ErrNoParentItem is returned when an operation needs the owning item and
	// its service session but the attachment is not bound to one.
	ErrNoParentItem = errors.New("attachment has no parent item bound to a service session")
)
