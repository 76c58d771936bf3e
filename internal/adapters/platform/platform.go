// Package platform declares the chat-platform client contract this service
// depends on. The concrete client (role CRUD, messaging) lives outside this
// repo; handlers receive the interface as an injected dependency so tests
// can substitute the in-memory double.
package platform

import "context"

// Role is a rank-label entity owned by the chat platform.
type Role struct {
	ID   string
	Name string
}

// Client is the surface this service needs from the chat platform.
//
// Role creation is idempotent from the caller's point of view: racing
// CreateRole calls for the same name must converge on one entity, so
// implementations either dedupe by name or callers re-lookup on conflict.
type Client interface {
	// ResolveMember checks that identity is a current community member.
	// Returns ErrMemberNotFound for identities unknown to the platform,
	// e.g. users who left the community.
	ResolveMember(ctx context.Context, identity string) error

	// RoleByName looks up a role by exact name. Returns ErrRoleNotFound
	// when absent.
	RoleByName(ctx context.Context, name string) (Role, error)

	// CreateRole creates a role with the given name. Creating a name that
	// already exists returns the existing role.
	CreateRole(ctx context.Context, name string) (Role, error)

	// MemberRoles lists the roles currently attached to identity.
	MemberRoles(ctx context.Context, identity string) ([]Role, error)

	// AttachRole attaches roleID to identity. Attaching an already
	// attached role is a no-op.
	AttachRole(ctx context.Context, identity, roleID string) error

	// DetachRole detaches roleID from identity. Detaching an absent role
	// is a no-op.
	DetachRole(ctx context.Context, identity, roleID string) error

	// Announce posts a message to the named channel. Returns
	// ErrChannelNotFound when the channel cannot be resolved.
	Announce(ctx context.Context, channel, message string) error

	// DirectMessage sends a private message to identity. Returns
	// ErrDMForbidden when the recipient blocks direct messages.
	DirectMessage(ctx context.Context, identity, message string) error
}
