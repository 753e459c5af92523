// Package keyregistry implements the recipient key registry: per-account public
// keys that envelopes are wrapped for.
//
// Records are stored in an interfaces.KVStore under two key families:
//
//	rk/fp/<fingerprint>             binary-encoded RecipientKeyRecord
//	rk/addr/<address><fingerprint>  owner index
//
// A fingerprint is never reused, even after revocation, and revocation is final.
// Timestamps come from an interfaces.Clock; SequenceClock is used when the
// registry runs outside a ledger.
package keyregistry
