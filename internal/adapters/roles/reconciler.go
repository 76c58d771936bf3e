// Package roles keeps the chat platform's rank labels in step with
// computed ranks. Every step tolerates "already in the desired state", so
// a reconciliation can be repeated with no observable double-effect.
package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/domain/rank"
)

const defaultNamePrefix = "Git-Eval"

// Reconciler drives rank-label state for individual identities.
type Reconciler struct {
	client platform.Client
	table  *rank.Table
	prefix string
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithNamePrefix overrides the label name prefix.
func WithNamePrefix(prefix string) Option {
	return func(r *Reconciler) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewReconciler creates a Reconciler over the given platform client.
func NewReconciler(client platform.Client, table *rank.Table, opts ...Option) *Reconciler {
	r := &Reconciler{
		client: client,
		table:  table,
		prefix: defaultNamePrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LabelName derives the deterministic role label for a tier,
// e.g. "Git-Eval: D (Developer)".
func (r *Reconciler) LabelName(sym rank.Symbol) string {
	return fmt.Sprintf("%s: %s (%s)", r.prefix, sym, r.table.Name(sym))
}

// ensureRole looks the label up and creates it on demand. A create that
// loses a race still converges: CreateRole returns the surviving entity.
func (r *Reconciler) ensureRole(ctx context.Context, sym rank.Symbol) (platform.Role, error) {
	name := r.LabelName(sym)
	role, err := r.client.RoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, platform.ErrRoleNotFound) {
		return platform.Role{}, fmt.Errorf("look up role %q: %w", name, err)
	}
	role, err = r.client.CreateRole(ctx, name)
	if err != nil {
		return platform.Role{}, fmt.Errorf("create role %q: %w", name, err)
	}
	return role, nil
}

// WarmUp ensures every rank label exists in the community catalog. Run at
// startup so first promotions never wait on role creation.
func (r *Reconciler) WarmUp(ctx context.Context) error {
	for _, tier := range r.table.Tiers() {
		if _, err := r.ensureRole(ctx, tier.Symbol); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile makes identity's rank label match newRank. It returns whether
// a rank transition actually occurred; oldRank == newRank still repairs a
// missing label but reports false. A member unknown to the platform yields
// ErrMemberNotFound, distinct from "no transition".
func (r *Reconciler) Reconcile(ctx context.Context, identity string, oldRank, newRank rank.Symbol) (bool, error) {
	if err := r.client.ResolveMember(ctx, identity); err != nil {
		return false, fmt.Errorf("resolve member: %w", err)
	}

	newRole, err := r.ensureRole(ctx, newRank)
	if err != nil {
		return false, err
	}

	transitioned := oldRank != newRank
	if transitioned {
		// The old label may never have been created; nothing to detach then.
		oldRole, err := r.client.RoleByName(ctx, r.LabelName(oldRank))
		switch {
		case err == nil:
			if err := r.client.DetachRole(ctx, identity, oldRole.ID); err != nil {
				return false, fmt.Errorf("detach %q: %w", oldRole.Name, err)
			}
		case !errors.Is(err, platform.ErrRoleNotFound):
			return false, fmt.Errorf("look up role %q: %w", r.LabelName(oldRank), err)
		}
	}

	if err := r.client.AttachRole(ctx, identity, newRole.ID); err != nil {
		return false, fmt.Errorf("attach %q: %w", newRole.Name, err)
	}
	return transitioned, nil
}

// DetachAll removes every rank label from identity. Used by the
// destructive re-registration reset.
func (r *Reconciler) DetachAll(ctx context.Context, identity string) error {
	if err := r.client.ResolveMember(ctx, identity); err != nil {
		return fmt.Errorf("resolve member: %w", err)
	}
	for _, tier := range r.table.Tiers() {
		role, err := r.client.RoleByName(ctx, r.LabelName(tier.Symbol))
		if errors.Is(err, platform.ErrRoleNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("look up role %q: %w", r.LabelName(tier.Symbol), err)
		}
		if err := r.client.DetachRole(ctx, identity, role.ID); err != nil {
			return fmt.Errorf("detach %q: %w", role.Name, err)
		}
	}
	return nil
}
