// Package cryptoutils provides the cryptographic building blocks of the envelope
// registry: cipher suites, per-recipient key wrapping and signature layers.
//
// A Suite names a key agreement and an AEAD:
//
//   - x25519-chacha20:    X25519 + ChaCha20-Poly1305
//   - x25519-xchacha20:   X25519 + XChaCha20-Poly1305
//   - x25519-aes256gcm:   X25519 + AES-256-GCM
//   - p256-aes256gcm:     ECDH P-256 + AES-256-GCM
//   - mlkem768-aes256gcm: ML-KEM-768 + AES-256-GCM
//
// # Key Wrapping
//
// WrapKey encapsulates a fresh shared secret against the recipient public key,
// expands it with HKDF-SHA256 into a single-use key-encryption key bound to the
// suite and recipient fingerprint, and seals the payload key:
//
//	wrapped   = AEAD(kek, zero nonce, payload key, aad = fingerprint)
//	ephemeral = ephemeral public key (ECDH) or KEM ciphertext (ML-KEM)
//
// # Signatures
//
// Client signatures are recoverable secp256k1 signatures over keccak256 of the
// signed bytes; the client id is the signer's address. User signatures are
// ed25519.
package cryptoutils
