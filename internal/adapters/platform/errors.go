package platform

import "errors"

// Sentinel kinds for platform client failures.
var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrDMForbidden     = errors.New("direct messages forbidden")
)
