package envelope

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/ruteri/envelope-registry/interfaces"
)

// UpgradeLegacy converts a decoded EncryptedPayloadEnvelope into a
// specific-mode MultiRecipientEnvelope. The legacy format shares one ephemeral
// key across all recipients; each wrapped entry carries a copy of it.
//
// The legacy sender signature covers a different encoding and is not carried
// over; the result is unsigned.
func UpgradeLegacy(legacy *interfaces.EncryptedPayloadEnvelope, algorithms interfaces.AlgorithmRegistry) (*interfaces.MultiRecipientEnvelope, error) {
	if len(legacy.RecipientKeyIDs) != len(legacy.EncryptedKeys) {
		return nil, fmt.Errorf("%w: %d recipient ids for %d encrypted keys", interfaces.ErrMalformedCiphertext, len(legacy.RecipientKeyIDs), len(legacy.EncryptedKeys))
	}

	desc, err := algorithms.Latest(legacy.AlgorithmID)
	if err != nil {
		return nil, err
	}

	env := &interfaces.MultiRecipientEnvelope{
		Version:           interfaces.EnvelopeVersion,
		AlgorithmID:       legacy.AlgorithmID,
		AlgorithmVersion:  desc.Version,
		RecipientMode:     interfaces.RecipientModeSpecific,
		PayloadCiphertext: bytes.Clone(legacy.Ciphertext),
		PayloadNonce:      bytes.Clone(legacy.Nonce),
		WrappedKeys:       make([]interfaces.WrappedKeyEntry, len(legacy.RecipientKeyIDs)),
		Metadata:          maps.Clone(legacy.Metadata),
	}
	for i, id := range legacy.RecipientKeyIDs {
		fp, err := interfaces.NewKeyFingerprint(id)
		if err != nil {
			return nil, fmt.Errorf("%w: recipient %d: %v", interfaces.ErrMalformedCiphertext, i, err)
		}
		env.WrappedKeys[i] = interfaces.WrappedKeyEntry{
			RecipientID:     fp,
			WrappedKey:      bytes.Clone(legacy.EncryptedKeys[i]),
			Algorithm:       legacy.AlgorithmID,
			EphemeralPubKey: bytes.Clone(legacy.EphemeralPubKey),
		}
	}
	return env, nil
}
