// Package repository defines the durable user store contract and its
// file- and sqlite-backed implementations.
package repository

import (
	"context"

	"github.com/okian/giteval/internal/domain/model"
)

// Store provides read/write access to user records keyed by the stable
// platform identity.
//
// Durability contract: Put must fully persist the record before returning
// success, so a crash can never leave the external role state ahead of the
// committed score. Reads observe the latest committed write from this
// process. Concurrent mutation of the same identity is serialized by the
// caller; implementations only need to keep their own structures coherent.
type Store interface {
	// Get returns the record for identity, or ErrNotFound.
	Get(ctx context.Context, identity string) (model.UserRecord, error)

	// FindByHandle resolves a grading-pipeline handle to its identity and
	// record. Matching is case-insensitive and exact; if duplicates exist
	// the first match in identity order wins. Returns ErrNotFound when no
	// record carries the handle.
	FindByHandle(ctx context.Context, handle string) (string, model.UserRecord, error)

	// Put creates or replaces the record for identity.
	Put(ctx context.Context, identity string, rec model.UserRecord) error

	// Count returns the number of registered users.
	Count(ctx context.Context) (int, error)

	// Close releases any underlying resources.
	Close() error
}
