package codec

import (
	"fmt"

	"github.com/ruteri/envelope-registry/interfaces"
	"google.golang.org/protobuf/encoding/protowire"
)

func encodeAlgorithm(e *encoder, d *interfaces.AlgorithmDescriptor) {
	e.string(1, d.ID)
	e.uint(2, uint64(d.Version))
	e.string(3, d.Description)
	e.uint(4, uint64(d.KeySize))
	e.uint(5, uint64(d.NonceSize))
	e.bool(6, d.Deprecated)
}

func decodeAlgorithm(b []byte, d *interfaces.AlgorithmDescriptor) error {
	*d = interfaces.AlgorithmDescriptor{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			d.ID, err = f.string()
		case 2:
			d.Version, err = f.uint32()
		case 3:
			d.Description, err = f.string()
		case 4:
			d.KeySize, err = f.uint32()
		case 5:
			d.NonceSize, err = f.uint32()
		case 6:
			d.Deprecated, err = f.bool()
		}
		return err
	})
}

func encodeKeyRecord(e *encoder, r *interfaces.RecipientKeyRecord) {
	e.address(1, r.Address)
	e.bytes(2, r.PublicKey)
	e.string(3, string(r.KeyFingerprint))
	e.string(4, r.AlgorithmID)
	e.string(5, r.Label)
	e.uint(6, r.RegisteredAt)
	e.uint(7, r.RevokedAt)
}

func decodeKeyRecord(b []byte, r *interfaces.RecipientKeyRecord) error {
	*r = interfaces.RecipientKeyRecord{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			r.Address, err = f.address()
		case 2:
			r.PublicKey, err = f.bytes()
		case 3:
			var s string
			s, err = f.string()
			r.KeyFingerprint = interfaces.KeyFingerprint(s)
		case 4:
			r.AlgorithmID, err = f.string()
		case 5:
			r.Label, err = f.string()
		case 6:
			r.RegisteredAt, err = f.uint64()
		case 7:
			r.RevokedAt, err = f.uint64()
		}
		return err
	})
}

func encodeWrappedKey(e *encoder, w *interfaces.WrappedKeyEntry) {
	e.string(1, string(w.RecipientID))
	e.bytes(2, w.WrappedKey)
	e.string(3, w.Algorithm)
	e.bytes(4, w.EphemeralPubKey)
}

func decodeWrappedKey(b []byte, w *interfaces.WrappedKeyEntry) error {
	*w = interfaces.WrappedKeyEntry{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			var s string
			s, err = f.string()
			w.RecipientID = interfaces.KeyFingerprint(s)
		case 2:
			w.WrappedKey, err = f.bytes()
		case 3:
			w.Algorithm, err = f.string()
		case 4:
			w.EphemeralPubKey, err = f.bytes()
		}
		return err
	})
}

func encodeEnvelope(e *encoder, env *interfaces.MultiRecipientEnvelope) {
	e.uint(1, uint64(env.Version))
	e.string(2, env.AlgorithmID)
	e.uint(3, uint64(env.AlgorithmVersion))
	e.uint(4, uint64(env.RecipientMode))
	e.bytes(5, env.PayloadCiphertext)
	e.bytes(6, env.PayloadNonce)
	for i := range env.WrappedKeys {
		e.message(7, func(sub *encoder) { encodeWrappedKey(sub, &env.WrappedKeys[i]) })
	}
	e.bytes(8, env.ClientSignature)
	e.string(9, env.ClientID)
	e.bytes(10, env.UserSignature)
	e.bytes(11, env.UserPubKey)
	e.stringMap(12, env.Metadata)
	e.uint(13, env.CommitteeEpoch)
}

func decodeEnvelope(b []byte, env *interfaces.MultiRecipientEnvelope) error {
	*env = interfaces.MultiRecipientEnvelope{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			env.Version, err = f.uint32()
		case 2:
			env.AlgorithmID, err = f.string()
		case 3:
			env.AlgorithmVersion, err = f.uint32()
		case 4:
			var m uint32
			m, err = f.uint32()
			env.RecipientMode = interfaces.RecipientMode(m)
		case 5:
			env.PayloadCiphertext, err = f.bytes()
		case 6:
			env.PayloadNonce, err = f.bytes()
		case 7:
			var w interfaces.WrappedKeyEntry
			if err = nested(f, func(raw []byte) error { return decodeWrappedKey(raw, &w) }); err == nil {
				env.WrappedKeys = append(env.WrappedKeys, w)
			}
		case 8:
			env.ClientSignature, err = f.bytes()
		case 9:
			env.ClientID, err = f.string()
		case 10:
			env.UserSignature, err = f.bytes()
		case 11:
			env.UserPubKey, err = f.bytes()
		case 12:
			var k, v string
			if k, v, err = decodeMapEntry(f); err == nil {
				if env.Metadata == nil {
					env.Metadata = make(map[string]string)
				}
				env.Metadata[k] = v
			}
		case 13:
			env.CommitteeEpoch, err = f.uint64()
		}
		return err
	})
}

func encodeLegacyEnvelope(e *encoder, env *interfaces.EncryptedPayloadEnvelope) {
	e.uint(1, uint64(env.Version))
	e.string(2, env.AlgorithmID)
	e.repeatedString(3, env.RecipientKeyIDs)
	e.repeatedBytes(4, env.EncryptedKeys)
	e.bytes(5, env.EphemeralPubKey)
	e.bytes(6, env.Nonce)
	e.bytes(7, env.Ciphertext)
	e.bytes(8, env.SenderSignature)
	e.bytes(9, env.SenderPubKey)
	e.stringMap(10, env.Metadata)
}

func decodeLegacyEnvelope(b []byte, env *interfaces.EncryptedPayloadEnvelope) error {
	*env = interfaces.EncryptedPayloadEnvelope{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			env.Version, err = f.uint32()
		case 2:
			env.AlgorithmID, err = f.string()
		case 3:
			var s string
			if s, err = f.string(); err == nil {
				env.RecipientKeyIDs = append(env.RecipientKeyIDs, s)
			}
		case 4:
			var k []byte
			if k, err = f.bytes(); err == nil {
				env.EncryptedKeys = append(env.EncryptedKeys, k)
			}
		case 5:
			env.EphemeralPubKey, err = f.bytes()
		case 6:
			env.Nonce, err = f.bytes()
		case 7:
			env.Ciphertext, err = f.bytes()
		case 8:
			env.SenderSignature, err = f.bytes()
		case 9:
			env.SenderPubKey, err = f.bytes()
		case 10:
			var k, v string
			if k, v, err = decodeMapEntry(f); err == nil {
				if env.Metadata == nil {
					env.Metadata = make(map[string]string)
				}
				env.Metadata[k] = v
			}
		}
		return err
	})
}

func encodeParams(e *encoder, p *interfaces.Params) {
	e.uint(1, uint64(p.MaxRecipientsPerEnvelope))
	e.uint(2, uint64(p.MaxKeysPerAccount))
	e.repeatedString(3, p.AllowedAlgorithms)
	e.bool(4, p.RequireSignature)
}

func decodeParams(b []byte, p *interfaces.Params) error {
	*p = interfaces.Params{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			p.MaxRecipientsPerEnvelope, err = f.uint32()
		case 2:
			p.MaxKeysPerAccount, err = f.uint32()
		case 3:
			var s string
			if s, err = f.string(); err == nil {
				p.AllowedAlgorithms = append(p.AllowedAlgorithms, s)
			}
		case 4:
			p.RequireSignature, err = f.bool()
		}
		return err
	})
}

func encodeReport(e *encoder, r *interfaces.ValidationReport) {
	e.bool(1, r.Valid)
	e.string(2, r.Error)
	e.uint(3, uint64(r.RecipientCount))
	e.string(4, r.Algorithm)
	e.bool(5, r.SignatureValid)
	e.bool(6, r.AllKeysRegistered)
	e.repeatedString(7, fingerprintStrings(r.MissingKeys))
}

func decodeReport(b []byte, r *interfaces.ValidationReport) error {
	*r = interfaces.ValidationReport{}
	return decodeFields(b, func(f field) (err error) {
		switch f.num {
		case 1:
			r.Valid, err = f.bool()
		case 2:
			r.Error, err = f.string()
		case 3:
			r.RecipientCount, err = f.uint32()
		case 4:
			r.Algorithm, err = f.string()
		case 5:
			r.SignatureValid, err = f.bool()
		case 6:
			r.AllKeysRegistered, err = f.bool()
		case 7:
			var s string
			if s, err = f.string(); err == nil {
				r.MissingKeys = append(r.MissingKeys, interfaces.KeyFingerprint(s))
			}
		}
		return err
	})
}

func fingerprintStrings(fps []interfaces.KeyFingerprint) []string {
	res := make([]string, len(fps))
	for i, fp := range fps {
		res[i] = string(fp)
	}
	return res
}

// nested decodes a singular embedded message field.
func nested(f field, fn func([]byte) error) error {
	if f.typ != protowire.BytesType {
		return fmt.Errorf("%w: field %d: expected message", ErrMalformed, f.num)
	}
	return fn(f.raw)
}

func encodeAny(e *encoder, msg any) error {
	switch m := msg.(type) {
	case *interfaces.AlgorithmDescriptor:
		encodeAlgorithm(e, m)
	case *interfaces.RecipientKeyRecord:
		encodeKeyRecord(e, m)
	case *interfaces.WrappedKeyEntry:
		encodeWrappedKey(e, m)
	case *interfaces.MultiRecipientEnvelope:
		encodeEnvelope(e, m)
	case *interfaces.EncryptedPayloadEnvelope:
		encodeLegacyEnvelope(e, m)
	case *interfaces.Params:
		encodeParams(e, m)
	case *interfaces.ValidationReport:
		encodeReport(e, m)

	case *interfaces.RegisterRecipientKey:
		e.address(1, m.Sender)
		e.bytes(2, m.PublicKey)
		e.string(3, m.AlgorithmID)
		e.string(4, m.Label)
		e.uint(5, m.Sequence)
	case *interfaces.RegisterRecipientKeyResponse:
		e.string(1, string(m.KeyFingerprint))
	case *interfaces.RevokeRecipientKey:
		e.address(1, m.Sender)
		e.string(2, string(m.KeyFingerprint))
		e.uint(3, m.Sequence)
	case *interfaces.RevokeRecipientKeyResponse:
	case *interfaces.UpdateKeyLabel:
		e.address(1, m.Sender)
		e.string(2, string(m.KeyFingerprint))
		e.string(3, m.Label)
		e.uint(4, m.Sequence)
	case *interfaces.UpdateKeyLabelResponse:
	case *interfaces.UpdateParams:
		e.address(1, m.Authority)
		e.message(2, func(sub *encoder) { encodeParams(sub, &m.Params) })
		e.uint(3, m.Sequence)
	case *interfaces.UpdateParamsResponse:
	case *interfaces.SubmitEnvelope:
		e.address(1, m.Sender)
		e.message(2, func(sub *encoder) { encodeEnvelope(sub, &m.Envelope) })
		e.uint(3, m.Sequence)
	case *interfaces.SubmitEnvelopeResponse:
		e.string(1, m.EnvelopeID.String())

	case *interfaces.QueryParamsRequest:
	case *interfaces.QueryParamsResponse:
		e.message(1, func(sub *encoder) { encodeParams(sub, &m.Params) })
	case *interfaces.QueryAlgorithmsRequest:
	case *interfaces.QueryAlgorithmsResponse:
		for i := range m.Algorithms {
			e.message(1, func(sub *encoder) { encodeAlgorithm(sub, &m.Algorithms[i]) })
		}
	case *interfaces.QueryRecipientKeyRequest:
		e.address(1, m.Address)
	case *interfaces.QueryRecipientKeyResponse:
		for i := range m.Keys {
			e.message(1, func(sub *encoder) { encodeKeyRecord(sub, &m.Keys[i]) })
		}
	case *interfaces.QueryKeyByFingerprintRequest:
		e.string(1, string(m.Fingerprint))
	case *interfaces.QueryKeyByFingerprintResponse:
		e.message(1, func(sub *encoder) { encodeKeyRecord(sub, &m.Key) })
	case *interfaces.QueryValidateEnvelopeRequest:
		e.message(1, func(sub *encoder) { encodeEnvelope(sub, &m.Envelope) })
	case *interfaces.QueryValidateEnvelopeResponse:
		e.message(1, func(sub *encoder) { encodeReport(sub, &m.Report) })
	case *interfaces.QueryRecipientsRequest:
		e.uint(1, uint64(m.Mode))
		e.uint(2, m.CommitteeEpoch)
		e.repeatedString(3, fingerprintStrings(m.Fingerprints))
	case *interfaces.QueryRecipientsResponse:
		e.repeatedString(1, fingerprintStrings(m.Fingerprints))
	case *interfaces.QueryEnvelopeRequest:
		e.string(1, m.EnvelopeID.String())
	case *interfaces.QueryEnvelopeResponse:
		e.message(1, func(sub *encoder) { encodeEnvelope(sub, &m.Envelope) })
	case *interfaces.QueryAccountSequenceRequest:
		e.address(1, m.Address)
	case *interfaces.QueryAccountSequenceResponse:
		e.uint(1, m.Sequence)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, msg)
	}
	return nil
}

func decodeAny(b []byte, msg any) error {
	switch m := msg.(type) {
	case *interfaces.AlgorithmDescriptor:
		return decodeAlgorithm(b, m)
	case *interfaces.RecipientKeyRecord:
		return decodeKeyRecord(b, m)
	case *interfaces.WrappedKeyEntry:
		return decodeWrappedKey(b, m)
	case *interfaces.MultiRecipientEnvelope:
		return decodeEnvelope(b, m)
	case *interfaces.EncryptedPayloadEnvelope:
		return decodeLegacyEnvelope(b, m)
	case *interfaces.Params:
		return decodeParams(b, m)
	case *interfaces.ValidationReport:
		return decodeReport(b, m)

	case *interfaces.RegisterRecipientKey:
		*m = interfaces.RegisterRecipientKey{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				m.Sender, err = f.address()
			case 2:
				m.PublicKey, err = f.bytes()
			case 3:
				m.AlgorithmID, err = f.string()
			case 4:
				m.Label, err = f.string()
			case 5:
				m.Sequence, err = f.uint64()
			}
			return err
		})
	case *interfaces.RegisterRecipientKeyResponse:
		*m = interfaces.RegisterRecipientKeyResponse{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.KeyFingerprint, err = fingerprintField(f)
			}
			return err
		})
	case *interfaces.RevokeRecipientKey:
		*m = interfaces.RevokeRecipientKey{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				m.Sender, err = f.address()
			case 2:
				m.KeyFingerprint, err = fingerprintField(f)
			case 3:
				m.Sequence, err = f.uint64()
			}
			return err
		})
	case *interfaces.UpdateKeyLabel:
		*m = interfaces.UpdateKeyLabel{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				m.Sender, err = f.address()
			case 2:
				m.KeyFingerprint, err = fingerprintField(f)
			case 3:
				m.Label, err = f.string()
			case 4:
				m.Sequence, err = f.uint64()
			}
			return err
		})
	case *interfaces.UpdateParams:
		*m = interfaces.UpdateParams{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				m.Authority, err = f.address()
			case 2:
				err = nested(f, func(raw []byte) error { return decodeParams(raw, &m.Params) })
			case 3:
				m.Sequence, err = f.uint64()
			}
			return err
		})
	case *interfaces.SubmitEnvelope:
		*m = interfaces.SubmitEnvelope{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				m.Sender, err = f.address()
			case 2:
				err = nested(f, func(raw []byte) error { return decodeEnvelope(raw, &m.Envelope) })
			case 3:
				m.Sequence, err = f.uint64()
			}
			return err
		})
	case *interfaces.SubmitEnvelopeResponse:
		*m = interfaces.SubmitEnvelopeResponse{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.EnvelopeID, err = contentIDField(f)
			}
			return err
		})
	case *interfaces.RevokeRecipientKeyResponse, *interfaces.UpdateKeyLabelResponse,
		*interfaces.UpdateParamsResponse, *interfaces.QueryParamsRequest, *interfaces.QueryAlgorithmsRequest:
		return decodeFields(b, func(field) error { return nil })

	case *interfaces.QueryParamsResponse:
		*m = interfaces.QueryParamsResponse{}
		return decodeFields(b, func(f field) error {
			if f.num == 1 {
				return nested(f, func(raw []byte) error { return decodeParams(raw, &m.Params) })
			}
			return nil
		})
	case *interfaces.QueryAlgorithmsResponse:
		*m = interfaces.QueryAlgorithmsResponse{}
		return decodeFields(b, func(f field) error {
			if f.num != 1 {
				return nil
			}
			var d interfaces.AlgorithmDescriptor
			if err := nested(f, func(raw []byte) error { return decodeAlgorithm(raw, &d) }); err != nil {
				return err
			}
			m.Algorithms = append(m.Algorithms, d)
			return nil
		})
	case *interfaces.QueryRecipientKeyRequest:
		*m = interfaces.QueryRecipientKeyRequest{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.Address, err = f.address()
			}
			return err
		})
	case *interfaces.QueryRecipientKeyResponse:
		*m = interfaces.QueryRecipientKeyResponse{}
		return decodeFields(b, func(f field) error {
			if f.num != 1 {
				return nil
			}
			var r interfaces.RecipientKeyRecord
			if err := nested(f, func(raw []byte) error { return decodeKeyRecord(raw, &r) }); err != nil {
				return err
			}
			m.Keys = append(m.Keys, r)
			return nil
		})
	case *interfaces.QueryKeyByFingerprintRequest:
		*m = interfaces.QueryKeyByFingerprintRequest{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.Fingerprint, err = fingerprintField(f)
			}
			return err
		})
	case *interfaces.QueryKeyByFingerprintResponse:
		*m = interfaces.QueryKeyByFingerprintResponse{}
		return decodeFields(b, func(f field) error {
			if f.num == 1 {
				return nested(f, func(raw []byte) error { return decodeKeyRecord(raw, &m.Key) })
			}
			return nil
		})
	case *interfaces.QueryValidateEnvelopeRequest:
		*m = interfaces.QueryValidateEnvelopeRequest{}
		return decodeFields(b, func(f field) error {
			if f.num == 1 {
				return nested(f, func(raw []byte) error { return decodeEnvelope(raw, &m.Envelope) })
			}
			return nil
		})
	case *interfaces.QueryValidateEnvelopeResponse:
		*m = interfaces.QueryValidateEnvelopeResponse{}
		return decodeFields(b, func(f field) error {
			if f.num == 1 {
				return nested(f, func(raw []byte) error { return decodeReport(raw, &m.Report) })
			}
			return nil
		})
	case *interfaces.QueryRecipientsRequest:
		*m = interfaces.QueryRecipientsRequest{}
		return decodeFields(b, func(f field) (err error) {
			switch f.num {
			case 1:
				var v uint32
				v, err = f.uint32()
				m.Mode = interfaces.RecipientMode(v)
			case 2:
				m.CommitteeEpoch, err = f.uint64()
			case 3:
				var fp interfaces.KeyFingerprint
				if fp, err = fingerprintField(f); err == nil {
					m.Fingerprints = append(m.Fingerprints, fp)
				}
			}
			return err
		})
	case *interfaces.QueryRecipientsResponse:
		*m = interfaces.QueryRecipientsResponse{}
		return decodeFields(b, func(f field) error {
			if f.num != 1 {
				return nil
			}
			fp, err := fingerprintField(f)
			if err == nil {
				m.Fingerprints = append(m.Fingerprints, fp)
			}
			return err
		})
	case *interfaces.QueryEnvelopeRequest:
		*m = interfaces.QueryEnvelopeRequest{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.EnvelopeID, err = contentIDField(f)
			}
			return err
		})
	case *interfaces.QueryEnvelopeResponse:
		*m = interfaces.QueryEnvelopeResponse{}
		return decodeFields(b, func(f field) error {
			if f.num == 1 {
				return nested(f, func(raw []byte) error { return decodeEnvelope(raw, &m.Envelope) })
			}
			return nil
		})
	case *interfaces.QueryAccountSequenceRequest:
		*m = interfaces.QueryAccountSequenceRequest{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.Address, err = f.address()
			}
			return err
		})
	case *interfaces.QueryAccountSequenceResponse:
		*m = interfaces.QueryAccountSequenceResponse{}
		return decodeFields(b, func(f field) (err error) {
			if f.num == 1 {
				m.Sequence, err = f.uint64()
			}
			return err
		})
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, msg)
	}
}

func fingerprintField(f field) (interfaces.KeyFingerprint, error) {
	s, err := f.string()
	if err != nil {
		return "", err
	}
	return interfaces.KeyFingerprint(s), nil
}

func contentIDField(f field) (interfaces.ContentID, error) {
	s, err := f.string()
	if err != nil {
		return interfaces.ContentID{}, err
	}
	return interfaces.NewContentIDFromHex(s)
}
