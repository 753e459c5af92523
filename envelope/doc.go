// Package envelope builds, validates and opens multi-recipient envelopes.
//
// A payload is encrypted once under a fresh symmetric key with the AEAD of
// the envelope's algorithm. The key is then wrapped separately for every
// recipient under the key agreement of that recipient's registered key.
package envelope
