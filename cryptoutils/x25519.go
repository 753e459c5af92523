package cryptoutils

import (
	"fmt"
	"io"

	"github.com/ruteri/envelope-registry/interfaces"
	"golang.org/x/crypto/curve25519"
)

// X25519 is elliptic curve Diffie-Hellman over Curve25519.
type X25519 struct{}

func (X25519) Name() string       { return "x25519" }
func (X25519) PublicKeySize() int { return curve25519.PointSize }
func (X25519) EphemeralSize() int { return curve25519.PointSize }

func (X25519) ValidatePublicKey(pub []byte) error {
	if len(pub) != curve25519.PointSize {
		return fmt.Errorf("%w: x25519 public key must be %d bytes, got %d", interfaces.ErrMalformedKey, curve25519.PointSize, len(pub))
	}
	return nil
}

func (X25519) GenerateKeyPair(rand io.Reader) ([]byte, []byte, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate x25519 key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive x25519 public key: %w", err)
	}
	return pub, priv, nil
}

func (x X25519) Encapsulate(rand io.Reader, pub []byte) ([]byte, []byte, error) {
	if err := x.ValidatePublicKey(pub); err != nil {
		return nil, nil, err
	}

	ephemeralPub, ephemeralPriv, err := x.GenerateKeyPair(rand)
	if err != nil {
		return nil, nil, err
	}
	defer clear(ephemeralPriv)

	// X25519 rejects low-order points with an all-zero output.
	shared, err := curve25519.X25519(ephemeralPriv, pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}
	return shared, ephemeralPub, nil
}

func (X25519) Decapsulate(priv, ephemeral []byte) ([]byte, error) {
	if len(priv) != curve25519.ScalarSize {
		return nil, fmt.Errorf("%w: x25519 private key must be %d bytes", interfaces.ErrMalformedKey, curve25519.ScalarSize)
	}
	if len(ephemeral) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: x25519 ephemeral key must be %d bytes", interfaces.ErrMalformedCiphertext, curve25519.PointSize)
	}
	shared, err := curve25519.X25519(priv, ephemeral)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedCiphertext, err)
	}
	return shared, nil
}
