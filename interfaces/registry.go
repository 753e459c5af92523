package interfaces

import "context"

// AlgorithmRegistry is the read side of the algorithm catalog.
type AlgorithmRegistry interface {
	// Lookup returns the descriptor for (id, version) or ErrNotFound.
	// It is never gated on deprecation, so historical envelopes stay decryptable.
	Lookup(id string, version uint32) (AlgorithmDescriptor, error)

	// Latest returns the highest published version of id or ErrNotFound.
	Latest(id string) (AlgorithmDescriptor, error)

	// IsAllowed reports whether id may be used for new registrations and envelopes.
	IsAllowed(id string) bool

	// List returns every descriptor ordered by (id, version).
	List() []AlgorithmDescriptor
}

// RecipientKeyReader is the read-only view of the recipient key registry.
type RecipientKeyReader interface {
	// GetActiveKeys returns the non-revoked keys of address.
	GetActiveKeys(address Address) ([]RecipientKeyRecord, error)

	// GetByFingerprint returns a key, revoked or not, or ErrNotFound.
	GetByFingerprint(fp KeyFingerprint) (RecipientKeyRecord, error)
}

// RecipientKeyRegistry holds per-account public keys.
type RecipientKeyRegistry interface {
	RecipientKeyReader

	Register(address Address, publicKey []byte, algorithmID string, label string) (KeyFingerprint, error)
	Revoke(address Address, fp KeyFingerprint, revokedBy Address) error
	UpdateLabel(address Address, fp KeyFingerprint, label string) error
}

// RecipientResolver turns a recipient selection into the fingerprints an envelope must target.
type RecipientResolver interface {
	Resolve(ctx context.Context, selection RecipientSelection) ([]KeyFingerprint, error)
}

// ParamsSource provides the current Params.
type ParamsSource interface {
	Params() Params
}

// FixedParams is a ParamsSource that always returns the same Params.
type FixedParams Params

func (p FixedParams) Params() Params { return Params(p) }

// Clock provides logical timestamps for registry records. Values are positive
// and never decrease.
type Clock interface {
	Now() uint64
}

// StateView is a stable read-only snapshot of everything envelope validation reads.
type StateView interface {
	ParamsSource
	RecipientKeyReader
	Lookup(id string, version uint32) (AlgorithmDescriptor, error)
	IsAllowed(id string) bool
}
