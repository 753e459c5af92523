// Package storage holds the persistence layers of the envelope registry.
//
// # Committed state
//
// Registry state (recipient keys, the fingerprint index, committee snapshots and
// params) lives in an interfaces.KVStore. Every implementation commits a batch
// of writes atomically:
//
//   - MemoryStore for tests and ephemeral nodes
//   - BadgerStore, an embedded BadgerDB database (in-memory when no directory is given)
//   - RedisStore, a shared Redis instance using MULTI/EXEC batches
//
// # Envelope archive
//
// Accepted envelopes are archived in content-addressed backends, where the
// content identifier is the SHA-256 hash of the binary envelope encoding.
// Backends are specified using URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/envelope-registry/archive
//   - s3://ACCESS:SECRET@bucket-name/prefix/?region=us-west-2
//   - ipfs://127.0.0.1:5001/envelope-registry?timeout=30s
//   - vault://vault.example.com:8200/secret/envelopes?token=...
//
// Envelopes and validation reports are kept in separate namespaces. Several
// locations can be combined with StorageBackendFactory.CreateMultiBackend, which
// writes to every reachable backend and reads from the first that has the
// content.
package storage
