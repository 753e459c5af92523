package interfaces

import "context"

// MembershipSource is the external source of truth for validator and committee
// membership. Only the current state is exposed; committee history is kept by
// the resolver's snapshots.
type MembershipSource interface {
	// Validators returns the current validator identities.
	Validators(ctx context.Context) ([]Address, error)

	// Committee returns the current committee, snapshotted at epoch transition.
	Committee(ctx context.Context) ([]Address, error)
}
