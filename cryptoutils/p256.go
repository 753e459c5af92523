package cryptoutils

import (
	"crypto/ecdh"
	"fmt"
	"io"

	"github.com/ruteri/envelope-registry/interfaces"
)

// p256PointSize is the size of an uncompressed SEC 1 P-256 point.
const p256PointSize = 65

// P256 is ECDH over NIST P-256, the ECIES construction of the legacy envelopes,
// with raw uncompressed points instead of PEM.
type P256 struct{}

func (P256) Name() string       { return "p256" }
func (P256) PublicKeySize() int { return p256PointSize }
func (P256) EphemeralSize() int { return p256PointSize }

func (P256) ValidatePublicKey(pub []byte) error {
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}
	return nil
}

func (P256) GenerateKeyPair(rand io.Reader) ([]byte, []byte, error) {
	key, err := ecdh.P256().GenerateKey(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate p256 key: %w", err)
	}
	return key.PublicKey().Bytes(), key.Bytes(), nil
}

func (P256) Encapsulate(rand io.Reader, pub []byte) ([]byte, []byte, error) {
	curve := ecdh.P256()
	peer, err := curve.NewPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}

	// Generate ephemeral key for ECIES encryption
	ephemeralKey, err := curve.GenerateKey(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeralKey.ECDH(peer)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdh failed: %w", err)
	}
	return shared, ephemeralKey.PublicKey().Bytes(), nil
}

func (P256) Decapsulate(priv, ephemeral []byte) ([]byte, error) {
	curve := ecdh.P256()
	key, err := curve.NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}
	peer, err := curve.NewPublicKey(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal ephemeral public key: %v", interfaces.ErrMalformedCiphertext, err)
	}
	shared, err := key.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("ecdh failed: %w", err)
	}
	return shared, nil
}
