package integrity

import (
	"context"
	"time"
)

// Store is the storage contract for the generic deletion routine. One
// implementation (Postgres) serves every entity kind; the policy table,
// not the store, decides what happens.
type Store interface {
	// Exists reports whether a live entity of the kind exists.
	Exists(ctx context.Context, kind EntityKind, id string) (bool, error)

	// CountReferences counts child records referencing the entity through
	// one policy relation. Used by the speculative dry-run path.
	CountReferences(ctx context.Context, rel Relation, id string) (int, error)

	// InTx runs fn inside one serializable transaction, so the "does this
	// entity have protected history" check and the delete itself are a
	// single atomic unit. A serialization failure surfaces as a
	// concurrency conflict for the caller to retry.
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx is the transactional view used while performing a deletion.
type StoreTx interface {
	// LockEntity takes the entity's row lock, fencing concurrent writers
	// that might add references between the check and the delete.
	LockEntity(ctx context.Context, kind EntityKind, id string) error

	// CountReferences counts referencing records within the transaction.
	CountReferences(ctx context.Context, rel Relation, id string) (int, error)

	// DetachReferences clears the referencing column on all children and
	// returns how many rows were touched.
	DetachReferences(ctx context.Context, rel Relation, id string) (int, error)

	// CascadeDelete removes all referencing children and returns how many
	// rows were removed.
	CascadeDelete(ctx context.Context, rel Relation, id string) (int, error)

	// HardDelete removes the entity row itself.
	HardDelete(ctx context.Context, kind EntityKind, id string) error

	// SoftDeleteUser marks a user soft-deleted, stamping the deletion
	// time and acting user, while retaining the row and every historical
	// reference.
	SoftDeleteUser(ctx context.Context, id, actor string, at time.Time) error
}
