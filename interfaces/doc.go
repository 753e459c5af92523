// Package interfaces defines core interfaces and types for the envelope
// registry, separating interface definitions from implementations.
//
// # Domain Types
//
//   - Address: 20-byte account identity
//   - KeyFingerprint: hex SHA-256 of a recipient public key
//   - AlgorithmDescriptor: versioned cipher suite description
//   - RecipientKeyRecord: a registered public key and its lifecycle
//   - MultiRecipientEnvelope / WrappedKeyEntry: the encrypted message format
//   - Params: process-wide envelope policy
//   - ValidationReport: structured validation outcome
//
// # Component Interfaces
//
// AlgorithmRegistry, RecipientKeyRegistry and RecipientResolver describe the
// components the envelope builder and validator depend on. StateView is the
// snapshot the validator runs against. MembershipSource is the external
// validator/committee membership source.
//
// # Storage Interfaces
//
// KVStore holds committed state (keys, snapshots, params). StorageBackend
// provides content-addressed archival of accepted envelopes across multiple
// backend types (file, S3, IPFS, Vault).
//
// # Errors
//
// Sentinel errors are grouped into policy, state, lookup and crypto
// categories; CategoryOf maps an error to its category.
package interfaces
