package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADScheme names an authenticated cipher used for payloads and key wrapping.
type AEADScheme string

const (
	ChaCha20Poly1305  AEADScheme = "chacha20poly1305"
	XChaCha20Poly1305 AEADScheme = "xchacha20poly1305"
	AES256GCM         AEADScheme = "aes256gcm"
)

// aeadTagSize is the authentication tag size shared by all supported schemes.
const aeadTagSize = 16

// KeySize returns the key size in bytes.
func (s AEADScheme) KeySize() int {
	switch s {
	case ChaCha20Poly1305, XChaCha20Poly1305:
		return chacha20poly1305.KeySize
	case AES256GCM:
		return 32
	default:
		return 0
	}
}

// NonceSize returns the nonce size in bytes.
func (s AEADScheme) NonceSize() int {
	switch s {
	case ChaCha20Poly1305:
		return chacha20poly1305.NonceSize
	case XChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX
	case AES256GCM:
		return 12
	default:
		return 0
	}
}

// Overhead returns the ciphertext expansion in bytes.
func (s AEADScheme) Overhead() int {
	return aeadTagSize
}

// New returns the cipher keyed with key.
func (s AEADScheme) New(key []byte) (cipher.AEAD, error) {
	if len(key) != s.KeySize() {
		return nil, fmt.Errorf("invalid %s key size: got %d, want %d", s, len(key), s.KeySize())
	}

	switch s {
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("unknown AEAD scheme %q", string(s))
	}
}
