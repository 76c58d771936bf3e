package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryClient implements Client against in-process state. It backs tests
// and local runs without a platform connection.
type InMemoryClient struct {
	mu          sync.Mutex
	members     map[string]struct{}
	roles       map[string]Role            // id -> role
	rolesByName map[string]string          // name -> id
	attached    map[string]map[string]bool // identity -> role id set
	channels    map[string][]string        // channel -> messages
	dms         map[string][]string        // identity -> messages
	dmBlocked   map[string]bool
}

// NewInMemoryClient creates an empty in-memory platform.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		members:     make(map[string]struct{}),
		roles:       make(map[string]Role),
		rolesByName: make(map[string]string),
		attached:    make(map[string]map[string]bool),
		channels:    make(map[string][]string),
		dms:         make(map[string][]string),
		dmBlocked:   make(map[string]bool),
	}
}

// AddMember registers identity as a community member.
func (c *InMemoryClient) AddMember(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[identity] = struct{}{}
}

// AddChannel registers an announcement channel.
func (c *InMemoryClient) AddChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[name]; !ok {
		c.channels[name] = nil
	}
}

// BlockDMs makes DirectMessage fail for identity with ErrDMForbidden.
func (c *InMemoryClient) BlockDMs(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dmBlocked[identity] = true
}

// ResolveMember implements Client.
func (c *InMemoryClient) ResolveMember(_ context.Context, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, identity)
	}
	return nil
}

// RoleByName implements Client.
func (c *InMemoryClient) RoleByName(_ context.Context, name string) (Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.rolesByName[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return c.roles[id], nil
}

// CreateRole implements Client. Concurrent creates of the same name
// converge on the first entity.
func (c *InMemoryClient) CreateRole(_ context.Context, name string) (Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.rolesByName[name]; ok {
		return c.roles[id], nil
	}
	role := Role{ID: uuid.NewString(), Name: name}
	c.roles[role.ID] = role
	c.rolesByName[name] = role.ID
	return role, nil
}

// MemberRoles implements Client.
func (c *InMemoryClient) MemberRoles(_ context.Context, identity string) ([]Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[identity]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, identity)
	}
	var roles []Role
	for id, on := range c.attached[identity] {
		if on {
			roles = append(roles, c.roles[id])
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// AttachRole implements Client.
func (c *InMemoryClient) AttachRole(_ context.Context, identity, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, identity)
	}
	if _, ok := c.roles[roleID]; !ok {
		return fmt.Errorf("%w: id %s", ErrRoleNotFound, roleID)
	}
	if c.attached[identity] == nil {
		c.attached[identity] = make(map[string]bool)
	}
	c.attached[identity][roleID] = true
	return nil
}

// DetachRole implements Client.
func (c *InMemoryClient) DetachRole(_ context.Context, identity, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, identity)
	}
	delete(c.attached[identity], roleID)
	return nil
}

// Announce implements Client.
func (c *InMemoryClient) Announce(_ context.Context, channel, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channel]; !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}
	c.channels[channel] = append(c.channels[channel], message)
	return nil
}

// DirectMessage implements Client.
func (c *InMemoryClient) DirectMessage(_ context.Context, identity, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, identity)
	}
	if c.dmBlocked[identity] {
		return fmt.Errorf("%w: %s", ErrDMForbidden, identity)
	}
	c.dms[identity] = append(c.dms[identity], message)
	return nil
}

// ChannelMessages returns the messages posted to channel, for assertions.
func (c *InMemoryClient) ChannelMessages(channel string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.channels[channel]))
	copy(out, c.channels[channel])
	return out
}

// DirectMessages returns the DMs delivered to identity, for assertions.
func (c *InMemoryClient) DirectMessages(identity string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.dms[identity]))
	copy(out, c.dms[identity])
	return out
}
