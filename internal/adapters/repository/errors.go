package repository

import "errors"

// Sentinel kinds for user store errors.
var (
	ErrNotFound      = errors.New("user not found")
	ErrInvalidRecord = errors.New("invalid user record")
	ErrStoreClosed   = errors.New("store closed")
)
