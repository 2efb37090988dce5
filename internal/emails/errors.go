package emails

import "errors"

var (
	// ErrEmailNotFound is returned when the requested item does not exist in
	// the mailbox.
	ErrEmailNotFound = errors.New("email not found")

	// ErrAttachmentDetached is returned when a download targets an attachment
	// that has already been removed from its item.
	ErrAttachmentDetached = errors.New("attachment has been detached")

	// ErrMissingParameter is returned when a required request field is empty.
	ErrMissingParameter = errors.New("missing required parameter")
)
