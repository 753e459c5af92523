package cryptoutils

import (
	"crypto/rand"
	"fmt"
	"sort"

	"github.com/ruteri/envelope-registry/interfaces"
)

// Suite binds an algorithm id to its key agreement and AEAD. The same suite is
// used to encrypt payloads (AEAD only) and to wrap payload keys for recipients
// whose key was registered under the id (key agreement + AEAD).
type Suite struct {
	ID           string
	KeyAgreement KeyAgreement
	AEAD         AEADScheme
}

// WrappedKeySize returns the size of a wrapped payload key of keySize bytes.
func (s Suite) WrappedKeySize(keySize int) int {
	return keySize + s.AEAD.Overhead()
}

var suites = map[string]Suite{
	"x25519-chacha20":    {ID: "x25519-chacha20", KeyAgreement: X25519{}, AEAD: ChaCha20Poly1305},
	"x25519-xchacha20":   {ID: "x25519-xchacha20", KeyAgreement: X25519{}, AEAD: XChaCha20Poly1305},
	"x25519-aes256gcm":   {ID: "x25519-aes256gcm", KeyAgreement: X25519{}, AEAD: AES256GCM},
	"p256-aes256gcm":     {ID: "p256-aes256gcm", KeyAgreement: P256{}, AEAD: AES256GCM},
	"mlkem768-aes256gcm": {ID: "mlkem768-aes256gcm", KeyAgreement: MLKEM768{}, AEAD: AES256GCM},
}

// SuiteFor returns the implementation of algorithmID.
func SuiteFor(algorithmID string) (Suite, error) {
	s, ok := suites[algorithmID]
	if !ok {
		return Suite{}, fmt.Errorf("%w: no cipher suite implements %q", interfaces.ErrAlgorithmNotAllowed, algorithmID)
	}
	return s, nil
}

// SuiteIDs lists every implemented algorithm id, sorted.
func SuiteIDs() []string {
	ids := make([]string, 0, len(suites))
	for id := range suites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GenerateRecipientKey creates a recipient key pair for algorithmID.
func GenerateRecipientKey(algorithmID string) (pub []byte, priv []byte, err error) {
	s, err := SuiteFor(algorithmID)
	if err != nil {
		return nil, nil, err
	}
	return s.KeyAgreement.GenerateKeyPair(rand.Reader)
}

// ValidateRecipientKey checks that pub is usable under algorithmID.
func ValidateRecipientKey(algorithmID string, pub []byte) error {
	s, err := SuiteFor(algorithmID)
	if err != nil {
		return err
	}
	return s.KeyAgreement.ValidatePublicKey(pub)
}
