package mailstore

import "errors"

var (
	// ErrRecordNotFound is returned when no attachment record matches.
	ErrRecordNotFound = errors.New("attachment record not found")

	// ErrAlreadyDetached is returned when a detach is recorded twice for the
	// same attachment.
	ErrAlreadyDetached = errors.New("attachment record already marked detached")
)
