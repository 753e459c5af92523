// Package keeper is the state machine of the envelope registry. It owns the
// algorithm catalog, the recipient key registry, the recipient resolver and
// the committed params, and exposes every message and query of the service.
//
// Committed state lives in a single interfaces.KVStore:
//
//	params                 Params
//	rk/fp/<fingerprint>    RecipientKeyRecord
//	rk/addr/<addr><fp>     owner index
//	cs/<epoch>             committee snapshot
//	env/<content id>       accepted MultiRecipientEnvelope
//
// All values use the binary codec.
package keeper
