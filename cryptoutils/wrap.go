package cryptoutils

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ruteri/envelope-registry/interfaces"
	"golang.org/x/crypto/hkdf"
)

const wrapInfoPrefix = "envelope-registry/wrap/v1"

// deriveKEK expands a one-time shared secret into a key-encryption key bound to
// the suite, the ephemeral material and the recipient.
func deriveKEK(s Suite, shared, ephemeral []byte, recipient interfaces.KeyFingerprint) ([]byte, error) {
	info := make([]byte, 0, len(wrapInfoPrefix)+len(s.ID)+len(recipient)+2)
	info = append(info, wrapInfoPrefix...)
	info = append(info, '|')
	info = append(info, s.ID...)
	info = append(info, '|')
	info = append(info, recipient...)

	salt := sha256.Sum256(ephemeral)
	kek := make([]byte, s.AEAD.KeySize())
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt[:], info), kek); err != nil {
		return nil, fmt.Errorf("failed to derive key-encryption key: %w", err)
	}
	return kek, nil
}

// WrapKey encrypts key for the holder of recipientPub. A fresh ephemeral key is
// generated for each call, so every KEK is used exactly once and the zero nonce
// is safe.
func WrapKey(rand io.Reader, s Suite, recipientPub []byte, recipient interfaces.KeyFingerprint, key []byte) (wrapped []byte, ephemeral []byte, err error) {
	shared, ephemeral, err := s.KeyAgreement.Encapsulate(rand, recipientPub)
	if err != nil {
		return nil, nil, err
	}
	defer clear(shared)

	kek, err := deriveKEK(s, shared, ephemeral, recipient)
	if err != nil {
		return nil, nil, err
	}
	defer clear(kek)

	aead, err := s.AEAD.New(kek)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	return aead.Seal(nil, nonce, key, []byte(recipient)), ephemeral, nil
}

// UnwrapKey recovers a payload key wrapped by WrapKey.
func UnwrapKey(s Suite, recipientPriv []byte, recipient interfaces.KeyFingerprint, wrapped, ephemeral []byte) ([]byte, error) {
	if len(ephemeral) != s.KeyAgreement.EphemeralSize() {
		return nil, fmt.Errorf("%w: ephemeral key is %d bytes, want %d", interfaces.ErrMalformedCiphertext, len(ephemeral), s.KeyAgreement.EphemeralSize())
	}
	if len(wrapped) < s.AEAD.Overhead() {
		return nil, fmt.Errorf("%w: wrapped key too short", interfaces.ErrMalformedCiphertext)
	}

	shared, err := s.KeyAgreement.Decapsulate(recipientPriv, ephemeral)
	if err != nil {
		return nil, err
	}
	defer clear(shared)

	kek, err := deriveKEK(s, shared, ephemeral, recipient)
	if err != nil {
		return nil, err
	}
	defer clear(kek)

	aead, err := s.AEAD.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	key, err := aead.Open(nil, nonce, wrapped, []byte(recipient))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDecryptionFailed, err)
	}
	return key, nil
}
