package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/envelope-registry/interfaces"
)

// Client signatures are secp256k1 recoverable signatures over keccak256(msg),
// so the verifier learns the signer's address from the signature itself.

// SignClient signs msg with a secp256k1 key.
func SignClient(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(crypto.Keccak256(msg), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// ClientAddress returns the address of a secp256k1 key.
func ClientAddress(key *ecdsa.PrivateKey) interfaces.Address {
	return interfaces.Address(crypto.PubkeyToAddress(key.PublicKey))
}

// RecoverClient returns the address that produced sig over msg.
func RecoverClient(msg, sig []byte) (interfaces.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return interfaces.Address{}, fmt.Errorf("%w: signature must be %d bytes", interfaces.ErrInvalidSignature, crypto.SignatureLength)
	}
	pubkey, err := crypto.SigToPub(crypto.Keccak256(msg), sig)
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidSignature, err)
	}
	return interfaces.Address(crypto.PubkeyToAddress(*pubkey)), nil
}

// VerifyClient checks that sig over msg was produced by the key of address clientID.
func VerifyClient(msg, sig []byte, clientID string) error {
	expected, err := interfaces.NewAddressFromHex(clientID)
	if err != nil {
		return fmt.Errorf("%w: client id: %v", interfaces.ErrInvalidSignature, err)
	}
	signer, err := RecoverClient(msg, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: signed by %s, not %s", interfaces.ErrInvalidSignature, signer, expected)
	}
	return nil
}

// SignUser signs msg with an end-user ed25519 key.
func SignUser(key ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(key, msg)
}

// VerifyUser checks an end-user ed25519 signature.
func VerifyUser(pub, msg, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: user public key must be %d bytes", interfaces.ErrInvalidSignature, ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return interfaces.ErrInvalidSignature
	}
	return nil
}
