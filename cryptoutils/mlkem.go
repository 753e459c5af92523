package cryptoutils

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/ruteri/envelope-registry/interfaces"
)

// MLKEM768 is the ML-KEM-768 post-quantum key encapsulation mechanism. The
// ephemeral material of a wrap is the KEM ciphertext.
type MLKEM768 struct{}

func (MLKEM768) Name() string       { return "mlkem768" }
func (MLKEM768) PublicKeySize() int { return mlkem768.PublicKeySize }
func (MLKEM768) EphemeralSize() int { return mlkem768.CiphertextSize }

func (MLKEM768) ValidatePublicKey(pub []byte) error {
	if len(pub) != mlkem768.PublicKeySize {
		return fmt.Errorf("%w: ml-kem-768 public key must be %d bytes, got %d", interfaces.ErrMalformedKey, mlkem768.PublicKeySize, len(pub))
	}
	if _, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(pub); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}
	return nil
}

func (MLKEM768) GenerateKeyPair(rand io.Reader) ([]byte, []byte, error) {
	scheme := mlkem768.Scheme()
	seed := make([]byte, scheme.SeedSize())
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("failed to generate ml-kem seed: %w", err)
	}
	defer clear(seed)

	pk, sk := scheme.DeriveKeyPair(seed)
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal ml-kem public key: %w", err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal ml-kem private key: %w", err)
	}
	return pub, priv, nil
}

func (m MLKEM768) Encapsulate(rand io.Reader, pub []byte) ([]byte, []byte, error) {
	if err := m.ValidatePublicKey(pub); err != nil {
		return nil, nil, err
	}
	scheme := mlkem768.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}

	seed := make([]byte, scheme.EncapsulationSeedSize())
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("failed to generate encapsulation seed: %w", err)
	}
	defer clear(seed)

	ct, ss, err := scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("ml-kem encapsulation failed: %w", err)
	}
	return ss, ct, nil
}

func (MLKEM768) Decapsulate(priv, ephemeral []byte) ([]byte, error) {
	if len(priv) != mlkem768.PrivateKeySize {
		return nil, fmt.Errorf("%w: ml-kem-768 private key must be %d bytes", interfaces.ErrMalformedKey, mlkem768.PrivateKeySize)
	}
	if len(ephemeral) != mlkem768.CiphertextSize {
		return nil, fmt.Errorf("%w: ml-kem-768 ciphertext must be %d bytes", interfaces.ErrMalformedCiphertext, mlkem768.CiphertextSize)
	}

	scheme := mlkem768.Scheme()
	sk, err := scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedKey, err)
	}
	ss, err := scheme.Decapsulate(sk, ephemeral)
	if err != nil {
		return nil, fmt.Errorf("ml-kem decapsulation failed: %w", err)
	}
	return ss, nil
}
