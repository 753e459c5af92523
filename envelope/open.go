package envelope

import (
	"fmt"

	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

// Open decrypts env as the holder of the private key for fingerprint. The
// algorithm is looked up by its recorded version, so envelopes under since
// deprecated algorithms still open.
func Open(env *interfaces.MultiRecipientEnvelope, fingerprint interfaces.KeyFingerprint, privateKey []byte, algorithms interfaces.AlgorithmRegistry) ([]byte, error) {
	desc, err := algorithms.Lookup(env.AlgorithmID, env.AlgorithmVersion)
	if err != nil {
		return nil, err
	}
	payloadSuite, err := cryptoutils.SuiteFor(env.AlgorithmID)
	if err != nil {
		return nil, err
	}

	var entry *interfaces.WrappedKeyEntry
	for i := range env.WrappedKeys {
		if env.WrappedKeys[i].RecipientID == fingerprint {
			entry = &env.WrappedKeys[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: envelope is not wrapped for %s", interfaces.ErrUnknownRecipient, fingerprint)
	}

	wrapSuite, err := cryptoutils.SuiteFor(entry.Algorithm)
	if err != nil {
		return nil, err
	}
	key, err := cryptoutils.UnwrapKey(wrapSuite, privateKey, fingerprint, entry.WrappedKey, entry.EphemeralPubKey)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	if uint32(len(key)) != desc.KeySize {
		return nil, fmt.Errorf("%w: payload key is %d bytes, want %d", interfaces.ErrMalformedCiphertext, len(key), desc.KeySize)
	}
	if uint32(len(env.PayloadNonce)) != desc.NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", interfaces.ErrMalformedCiphertext, len(env.PayloadNonce), desc.NonceSize)
	}

	aead, err := payloadSuite.AEAD.New(key)
	if err != nil {
		return nil, err
	}
	payload, err := aead.Open(nil, env.PayloadNonce, env.PayloadCiphertext, payloadAAD(desc.ID, desc.Version))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDecryptionFailed, err)
	}
	return payload, nil
}
