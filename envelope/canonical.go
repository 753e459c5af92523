package envelope

import (
	"encoding/binary"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/interfaces"
)

// CanonicalBytes returns the bytes both signature layers sign: the binary
// encoding of env with ClientSignature and UserSignature cleared.
func CanonicalBytes(env *interfaces.MultiRecipientEnvelope) ([]byte, error) {
	unsigned := *env
	unsigned.ClientSignature = nil
	unsigned.UserSignature = nil
	return codec.Marshal(&unsigned)
}

// payloadAAD binds the payload ciphertext to the algorithm it was sealed under.
func payloadAAD(algorithmID string, version uint32) []byte {
	aad := make([]byte, 0, len(algorithmID)+5)
	aad = append(aad, algorithmID...)
	aad = append(aad, 0)
	return binary.BigEndian.AppendUint32(aad, version)
}
