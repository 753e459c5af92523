package cryptoutils

import "io"

// KeyAgreement derives a one-time shared secret between a sender and the owner of
// a recipient public key. Every Encapsulate call produces fresh ephemeral
// material, so two wraps for the same recipient never share a secret.
type KeyAgreement interface {
	Name() string

	// PublicKeySize is the size of a raw recipient public key.
	PublicKeySize() int

	// EphemeralSize is the size of the ephemeral material sent alongside a wrap.
	EphemeralSize() int

	// ValidatePublicKey checks that pub is a well-formed key for this scheme.
	ValidatePublicKey(pub []byte) error

	GenerateKeyPair(rand io.Reader) (pub, priv []byte, err error)

	// Encapsulate returns a shared secret for pub and the ephemeral material the
	// recipient needs to recompute it.
	Encapsulate(rand io.Reader, pub []byte) (shared, ephemeral []byte, err error)

	// Decapsulate recomputes the shared secret from the recipient private key.
	Decapsulate(priv, ephemeral []byte) (shared []byte, err error)
}
