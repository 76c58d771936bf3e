package app

import "errors"

// Sentinel kinds for intake and registration errors.
var (
	ErrNotRegistered        = errors.New("handle not registered")
	ErrUnknownUser          = errors.New("unknown external identity")
	ErrConfirmationRequired = errors.New("re-registration requires confirmation")
	ErrBadConfirmation      = errors.New("invalid or expired confirmation token")
)
