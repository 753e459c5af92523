package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/envelope-registry/interfaces"
)

type algorithmJSON struct {
	ID          string `json:"id,omitempty"`
	Version     u32    `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	KeySize     u32    `json:"keySize,omitempty"`
	NonceSize   u32    `json:"nonceSize,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"`
}

func algorithmToJSON(d *interfaces.AlgorithmDescriptor) algorithmJSON {
	return algorithmJSON{
		ID:          d.ID,
		Version:     u32(d.Version),
		Description: d.Description,
		KeySize:     u32(d.KeySize),
		NonceSize:   u32(d.NonceSize),
		Deprecated:  d.Deprecated,
	}
}

func (j algorithmJSON) into(d *interfaces.AlgorithmDescriptor) error {
	*d = interfaces.AlgorithmDescriptor{
		ID:          j.ID,
		Version:     uint32(j.Version),
		Description: j.Description,
		KeySize:     uint32(j.KeySize),
		NonceSize:   uint32(j.NonceSize),
		Deprecated:  j.Deprecated,
	}
	return nil
}

type keyRecordJSON struct {
	Address        string `json:"address,omitempty"`
	PublicKey      []byte `json:"publicKey,omitempty"`
	KeyFingerprint string `json:"keyFingerprint,omitempty"`
	AlgorithmID    string `json:"algorithmId,omitempty"`
	Label          string `json:"label,omitempty"`
	RegisteredAt   u64    `json:"registeredAt,omitempty"`
	RevokedAt      u64    `json:"revokedAt,omitempty"`
}

func keyRecordToJSON(r *interfaces.RecipientKeyRecord) keyRecordJSON {
	return keyRecordJSON{
		Address:        addressToJSON(r.Address),
		PublicKey:      r.PublicKey,
		KeyFingerprint: string(r.KeyFingerprint),
		AlgorithmID:    r.AlgorithmID,
		Label:          r.Label,
		RegisteredAt:   u64(r.RegisteredAt),
		RevokedAt:      u64(r.RevokedAt),
	}
}

func (j keyRecordJSON) into(r *interfaces.RecipientKeyRecord) error {
	addr, err := addressFromJSON(j.Address)
	if err != nil {
		return err
	}
	*r = interfaces.RecipientKeyRecord{
		Address:        addr,
		PublicKey:      j.PublicKey,
		KeyFingerprint: interfaces.KeyFingerprint(j.KeyFingerprint),
		AlgorithmID:    j.AlgorithmID,
		Label:          j.Label,
		RegisteredAt:   uint64(j.RegisteredAt),
		RevokedAt:      uint64(j.RevokedAt),
	}
	return nil
}

type wrappedKeyJSON struct {
	RecipientID     string `json:"recipientId,omitempty"`
	WrappedKey      []byte `json:"wrappedKey,omitempty"`
	Algorithm       string `json:"algorithm,omitempty"`
	EphemeralPubKey []byte `json:"ephemeralPubKey,omitempty"`
}

type envelopeJSON struct {
	Version           u32               `json:"version,omitempty"`
	AlgorithmID       string            `json:"algorithmId,omitempty"`
	AlgorithmVersion  u32               `json:"algorithmVersion,omitempty"`
	RecipientMode     modeJSON          `json:"recipientMode,omitempty"`
	PayloadCiphertext []byte            `json:"payloadCiphertext,omitempty"`
	PayloadNonce      []byte            `json:"payloadNonce,omitempty"`
	WrappedKeys       []wrappedKeyJSON  `json:"wrappedKeys,omitempty"`
	ClientSignature   []byte            `json:"clientSignature,omitempty"`
	ClientID          string            `json:"clientId,omitempty"`
	UserSignature     []byte            `json:"userSignature,omitempty"`
	UserPubKey        []byte            `json:"userPubKey,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CommitteeEpoch    u64               `json:"committeeEpoch,omitempty"`
}

func envelopeToJSON(env *interfaces.MultiRecipientEnvelope) envelopeJSON {
	j := envelopeJSON{
		Version:           u32(env.Version),
		AlgorithmID:       env.AlgorithmID,
		AlgorithmVersion:  u32(env.AlgorithmVersion),
		RecipientMode:     modeJSON(env.RecipientMode),
		PayloadCiphertext: env.PayloadCiphertext,
		PayloadNonce:      env.PayloadNonce,
		ClientSignature:   env.ClientSignature,
		ClientID:          env.ClientID,
		UserSignature:     env.UserSignature,
		UserPubKey:        env.UserPubKey,
		Metadata:          env.Metadata,
		CommitteeEpoch:    u64(env.CommitteeEpoch),
	}
	for _, w := range env.WrappedKeys {
		j.WrappedKeys = append(j.WrappedKeys, wrappedKeyJSON{
			RecipientID:     string(w.RecipientID),
			WrappedKey:      w.WrappedKey,
			Algorithm:       w.Algorithm,
			EphemeralPubKey: w.EphemeralPubKey,
		})
	}
	return j
}

func (j envelopeJSON) into(env *interfaces.MultiRecipientEnvelope) error {
	*env = interfaces.MultiRecipientEnvelope{
		Version:           uint32(j.Version),
		AlgorithmID:       j.AlgorithmID,
		AlgorithmVersion:  uint32(j.AlgorithmVersion),
		RecipientMode:     interfaces.RecipientMode(j.RecipientMode),
		PayloadCiphertext: j.PayloadCiphertext,
		PayloadNonce:      j.PayloadNonce,
		ClientSignature:   j.ClientSignature,
		ClientID:          j.ClientID,
		UserSignature:     j.UserSignature,
		UserPubKey:        j.UserPubKey,
		Metadata:          j.Metadata,
		CommitteeEpoch:    uint64(j.CommitteeEpoch),
	}
	for _, w := range j.WrappedKeys {
		env.WrappedKeys = append(env.WrappedKeys, interfaces.WrappedKeyEntry{
			RecipientID:     interfaces.KeyFingerprint(w.RecipientID),
			WrappedKey:      w.WrappedKey,
			Algorithm:       w.Algorithm,
			EphemeralPubKey: w.EphemeralPubKey,
		})
	}
	return nil
}

type legacyEnvelopeJSON struct {
	Version         u32               `json:"version,omitempty"`
	AlgorithmID     string            `json:"algorithmId,omitempty"`
	RecipientKeyIDs []string          `json:"recipientKeyIds,omitempty"`
	EncryptedKeys   [][]byte          `json:"encryptedKeys,omitempty"`
	EphemeralPubKey []byte            `json:"ephemeralPubKey,omitempty"`
	Nonce           []byte            `json:"nonce,omitempty"`
	Ciphertext      []byte            `json:"ciphertext,omitempty"`
	SenderSignature []byte            `json:"senderSignature,omitempty"`
	SenderPubKey    []byte            `json:"senderPubKey,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type paramsJSON struct {
	MaxRecipientsPerEnvelope u32      `json:"maxRecipientsPerEnvelope,omitempty"`
	MaxKeysPerAccount        u32      `json:"maxKeysPerAccount,omitempty"`
	AllowedAlgorithms        []string `json:"allowedAlgorithms,omitempty"`
	RequireSignature         bool     `json:"requireSignature,omitempty"`
}

func paramsToJSON(p *interfaces.Params) paramsJSON {
	return paramsJSON{
		MaxRecipientsPerEnvelope: u32(p.MaxRecipientsPerEnvelope),
		MaxKeysPerAccount:        u32(p.MaxKeysPerAccount),
		AllowedAlgorithms:        p.AllowedAlgorithms,
		RequireSignature:         p.RequireSignature,
	}
}

func (j paramsJSON) into(p *interfaces.Params) error {
	*p = interfaces.Params{
		MaxRecipientsPerEnvelope: uint32(j.MaxRecipientsPerEnvelope),
		MaxKeysPerAccount:        uint32(j.MaxKeysPerAccount),
		AllowedAlgorithms:        j.AllowedAlgorithms,
		RequireSignature:         j.RequireSignature,
	}
	return nil
}

type reportJSON struct {
	Valid             bool     `json:"valid,omitempty"`
	Error             string   `json:"error,omitempty"`
	RecipientCount    u32      `json:"recipientCount,omitempty"`
	Algorithm         string   `json:"algorithm,omitempty"`
	SignatureValid    bool     `json:"signatureValid,omitempty"`
	AllKeysRegistered bool     `json:"allKeysRegistered,omitempty"`
	MissingKeys       []string `json:"missingKeys,omitempty"`
}

func reportToJSON(r *interfaces.ValidationReport) reportJSON {
	return reportJSON{
		Valid:             r.Valid,
		Error:             r.Error,
		RecipientCount:    u32(r.RecipientCount),
		Algorithm:         r.Algorithm,
		SignatureValid:    r.SignatureValid,
		AllKeysRegistered: r.AllKeysRegistered,
		MissingKeys:       nonEmpty(fingerprintStrings(r.MissingKeys)),
	}
}

func (j reportJSON) into(r *interfaces.ValidationReport) error {
	*r = interfaces.ValidationReport{
		Valid:             j.Valid,
		Error:             j.Error,
		RecipientCount:    uint32(j.RecipientCount),
		Algorithm:         j.Algorithm,
		SignatureValid:    j.SignatureValid,
		AllKeysRegistered: j.AllKeysRegistered,
		MissingKeys:       fingerprints(j.MissingKeys),
	}
	return nil
}

type registerKeyJSON struct {
	Sender      string `json:"sender,omitempty"`
	PublicKey   []byte `json:"publicKey,omitempty"`
	AlgorithmID string `json:"algorithmId,omitempty"`
	Label       string `json:"label,omitempty"`
	Sequence    u64    `json:"sequence,omitempty"`
}

type fingerprintMsgJSON struct {
	Sender         string `json:"sender,omitempty"`
	KeyFingerprint string `json:"keyFingerprint,omitempty"`
	Label          string `json:"label,omitempty"`
	Sequence       u64    `json:"sequence,omitempty"`
}

type updateParamsJSON struct {
	Authority string     `json:"authority,omitempty"`
	Params    paramsJSON `json:"params"`
	Sequence  u64        `json:"sequence,omitempty"`
}

type submitEnvelopeJSON struct {
	Sender   string       `json:"sender,omitempty"`
	Envelope envelopeJSON `json:"envelope"`
	Sequence u64          `json:"sequence,omitempty"`
}

type sequenceJSON struct {
	Sequence u64 `json:"sequence"`
}

type envelopeIDJSON struct {
	EnvelopeID string `json:"envelopeId,omitempty"`
}

type paramsResponseJSON struct {
	Params paramsJSON `json:"params"`
}

type algorithmsResponseJSON struct {
	Algorithms []algorithmJSON `json:"algorithms"`
}

type addressQueryJSON struct {
	Address string `json:"address,omitempty"`
}

type keysResponseJSON struct {
	Keys []keyRecordJSON `json:"keys"`
}

type fingerprintQueryJSON struct {
	Fingerprint string `json:"fingerprint,omitempty"`
}

type keyResponseJSON struct {
	Key keyRecordJSON `json:"key"`
}

type envelopeWrapperJSON struct {
	Envelope envelopeJSON `json:"envelope"`
}

type reportResponseJSON struct {
	Report reportJSON `json:"report"`
}

type recipientsQueryJSON struct {
	Mode           modeJSON `json:"mode,omitempty"`
	CommitteeEpoch u64      `json:"committeeEpoch,omitempty"`
	Fingerprints   []string `json:"fingerprints,omitempty"`
}

type recipientsResponseJSON struct {
	Fingerprints []string `json:"fingerprints"`
}

type emptyJSON struct{}

func addressToJSON(a interfaces.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func addressFromJSON(s string) (interfaces.Address, error) {
	if s == "" {
		return interfaces.Address{}, nil
	}
	return interfaces.NewAddressFromHex(s)
}

func contentIDFromJSON(s string) (interfaces.ContentID, error) {
	if s == "" {
		return interfaces.ContentID{}, nil
	}
	return interfaces.NewContentIDFromHex(s)
}

func fingerprints(ss []string) []interfaces.KeyFingerprint {
	if len(ss) == 0 {
		return nil
	}
	res := make([]interfaces.KeyFingerprint, len(ss))
	for i, s := range ss {
		res[i] = interfaces.KeyFingerprint(s)
	}
	return res
}

func nonEmpty(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return ss
}

func toJSON(msg any) (any, error) {
	switch m := msg.(type) {
	case *interfaces.AlgorithmDescriptor:
		return algorithmToJSON(m), nil
	case *interfaces.RecipientKeyRecord:
		return keyRecordToJSON(m), nil
	case *interfaces.MultiRecipientEnvelope:
		return envelopeToJSON(m), nil
	case *interfaces.EncryptedPayloadEnvelope:
		return legacyEnvelopeJSON{
			Version:         u32(m.Version),
			AlgorithmID:     m.AlgorithmID,
			RecipientKeyIDs: m.RecipientKeyIDs,
			EncryptedKeys:   m.EncryptedKeys,
			EphemeralPubKey: m.EphemeralPubKey,
			Nonce:           m.Nonce,
			Ciphertext:      m.Ciphertext,
			SenderSignature: m.SenderSignature,
			SenderPubKey:    m.SenderPubKey,
			Metadata:        m.Metadata,
		}, nil
	case *interfaces.Params:
		return paramsToJSON(m), nil
	case *interfaces.ValidationReport:
		return reportToJSON(m), nil

	case *interfaces.RegisterRecipientKey:
		return registerKeyJSON{Sender: addressToJSON(m.Sender), PublicKey: m.PublicKey, AlgorithmID: m.AlgorithmID, Label: m.Label, Sequence: u64(m.Sequence)}, nil
	case *interfaces.RegisterRecipientKeyResponse:
		return fingerprintMsgJSON{KeyFingerprint: string(m.KeyFingerprint)}, nil
	case *interfaces.RevokeRecipientKey:
		return fingerprintMsgJSON{Sender: addressToJSON(m.Sender), KeyFingerprint: string(m.KeyFingerprint), Sequence: u64(m.Sequence)}, nil
	case *interfaces.UpdateKeyLabel:
		return fingerprintMsgJSON{Sender: addressToJSON(m.Sender), KeyFingerprint: string(m.KeyFingerprint), Label: m.Label, Sequence: u64(m.Sequence)}, nil
	case *interfaces.UpdateParams:
		return updateParamsJSON{Authority: addressToJSON(m.Authority), Params: paramsToJSON(&m.Params), Sequence: u64(m.Sequence)}, nil
	case *interfaces.SubmitEnvelope:
		return submitEnvelopeJSON{Sender: addressToJSON(m.Sender), Envelope: envelopeToJSON(&m.Envelope), Sequence: u64(m.Sequence)}, nil
	case *interfaces.SubmitEnvelopeResponse:
		return envelopeIDJSON{EnvelopeID: m.EnvelopeID.String()}, nil
	case *interfaces.RevokeRecipientKeyResponse, *interfaces.UpdateKeyLabelResponse, *interfaces.UpdateParamsResponse,
		*interfaces.QueryParamsRequest, *interfaces.QueryAlgorithmsRequest:
		return emptyJSON{}, nil

	case *interfaces.QueryParamsResponse:
		return paramsResponseJSON{Params: paramsToJSON(&m.Params)}, nil
	case *interfaces.QueryAlgorithmsResponse:
		res := algorithmsResponseJSON{Algorithms: []algorithmJSON{}}
		for i := range m.Algorithms {
			res.Algorithms = append(res.Algorithms, algorithmToJSON(&m.Algorithms[i]))
		}
		return res, nil
	case *interfaces.QueryRecipientKeyRequest:
		return addressQueryJSON{Address: addressToJSON(m.Address)}, nil
	case *interfaces.QueryRecipientKeyResponse:
		res := keysResponseJSON{Keys: []keyRecordJSON{}}
		for i := range m.Keys {
			res.Keys = append(res.Keys, keyRecordToJSON(&m.Keys[i]))
		}
		return res, nil
	case *interfaces.QueryKeyByFingerprintRequest:
		return fingerprintQueryJSON{Fingerprint: string(m.Fingerprint)}, nil
	case *interfaces.QueryKeyByFingerprintResponse:
		return keyResponseJSON{Key: keyRecordToJSON(&m.Key)}, nil
	case *interfaces.QueryValidateEnvelopeRequest:
		return envelopeWrapperJSON{Envelope: envelopeToJSON(&m.Envelope)}, nil
	case *interfaces.QueryValidateEnvelopeResponse:
		return reportResponseJSON{Report: reportToJSON(&m.Report)}, nil
	case *interfaces.QueryRecipientsRequest:
		return recipientsQueryJSON{Mode: modeJSON(m.Mode), CommitteeEpoch: u64(m.CommitteeEpoch), Fingerprints: nonEmpty(fingerprintStrings(m.Fingerprints))}, nil
	case *interfaces.QueryRecipientsResponse:
		return recipientsResponseJSON{Fingerprints: fingerprintStrings(m.Fingerprints)}, nil
	case *interfaces.QueryEnvelopeRequest:
		return envelopeIDJSON{EnvelopeID: m.EnvelopeID.String()}, nil
	case *interfaces.QueryEnvelopeResponse:
		return envelopeWrapperJSON{Envelope: envelopeToJSON(&m.Envelope)}, nil
	case *interfaces.QueryAccountSequenceRequest:
		return addressQueryJSON{Address: addressToJSON(m.Address)}, nil
	case *interfaces.QueryAccountSequenceResponse:
		return sequenceJSON{Sequence: u64(m.Sequence)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, msg)
	}
}

func fromJSON(data []byte, msg any) error {
	// decode unmarshals into the mirror type j and hands it to fn.
	decode := func(j any, fn func() error) error {
		if err := json.Unmarshal(data, j); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fn()
	}

	switch m := msg.(type) {
	case *interfaces.AlgorithmDescriptor:
		var j algorithmJSON
		return decode(&j, func() error { return j.into(m) })
	case *interfaces.RecipientKeyRecord:
		var j keyRecordJSON
		return decode(&j, func() error { return j.into(m) })
	case *interfaces.MultiRecipientEnvelope:
		var j envelopeJSON
		return decode(&j, func() error { return j.into(m) })
	case *interfaces.EncryptedPayloadEnvelope:
		var j legacyEnvelopeJSON
		return decode(&j, func() error {
			*m = interfaces.EncryptedPayloadEnvelope{
				Version:         uint32(j.Version),
				AlgorithmID:     j.AlgorithmID,
				RecipientKeyIDs: j.RecipientKeyIDs,
				EncryptedKeys:   j.EncryptedKeys,
				EphemeralPubKey: j.EphemeralPubKey,
				Nonce:           j.Nonce,
				Ciphertext:      j.Ciphertext,
				SenderSignature: j.SenderSignature,
				SenderPubKey:    j.SenderPubKey,
				Metadata:        j.Metadata,
			}
			return nil
		})
	case *interfaces.Params:
		var j paramsJSON
		return decode(&j, func() error { return j.into(m) })
	case *interfaces.ValidationReport:
		var j reportJSON
		return decode(&j, func() error { return j.into(m) })

	case *interfaces.RegisterRecipientKey:
		var j registerKeyJSON
		return decode(&j, func() error {
			sender, err := addressFromJSON(j.Sender)
			if err != nil {
				return err
			}
			*m = interfaces.RegisterRecipientKey{Sender: sender, PublicKey: j.PublicKey, AlgorithmID: j.AlgorithmID, Label: j.Label, Sequence: uint64(j.Sequence)}
			return nil
		})
	case *interfaces.RegisterRecipientKeyResponse:
		var j fingerprintMsgJSON
		return decode(&j, func() error {
			*m = interfaces.RegisterRecipientKeyResponse{KeyFingerprint: interfaces.KeyFingerprint(j.KeyFingerprint)}
			return nil
		})
	case *interfaces.RevokeRecipientKey:
		var j fingerprintMsgJSON
		return decode(&j, func() error {
			sender, err := addressFromJSON(j.Sender)
			if err != nil {
				return err
			}
			*m = interfaces.RevokeRecipientKey{Sender: sender, KeyFingerprint: interfaces.KeyFingerprint(j.KeyFingerprint), Sequence: uint64(j.Sequence)}
			return nil
		})
	case *interfaces.UpdateKeyLabel:
		var j fingerprintMsgJSON
		return decode(&j, func() error {
			sender, err := addressFromJSON(j.Sender)
			if err != nil {
				return err
			}
			*m = interfaces.UpdateKeyLabel{Sender: sender, KeyFingerprint: interfaces.KeyFingerprint(j.KeyFingerprint), Label: j.Label, Sequence: uint64(j.Sequence)}
			return nil
		})
	case *interfaces.UpdateParams:
		var j updateParamsJSON
		return decode(&j, func() error {
			authority, err := addressFromJSON(j.Authority)
			if err != nil {
				return err
			}
			*m = interfaces.UpdateParams{Authority: authority, Sequence: uint64(j.Sequence)}
			return j.Params.into(&m.Params)
		})
	case *interfaces.SubmitEnvelope:
		var j submitEnvelopeJSON
		return decode(&j, func() error {
			sender, err := addressFromJSON(j.Sender)
			if err != nil {
				return err
			}
			*m = interfaces.SubmitEnvelope{Sender: sender, Sequence: uint64(j.Sequence)}
			return j.Envelope.into(&m.Envelope)
		})
	case *interfaces.SubmitEnvelopeResponse:
		var j envelopeIDJSON
		return decode(&j, func() error {
			id, err := contentIDFromJSON(j.EnvelopeID)
			m.EnvelopeID = id
			return err
		})
	case *interfaces.RevokeRecipientKeyResponse, *interfaces.UpdateKeyLabelResponse, *interfaces.UpdateParamsResponse,
		*interfaces.QueryParamsRequest, *interfaces.QueryAlgorithmsRequest:
		var j emptyJSON
		return decode(&j, func() error { return nil })

	case *interfaces.QueryParamsResponse:
		var j paramsResponseJSON
		return decode(&j, func() error { return j.Params.into(&m.Params) })
	case *interfaces.QueryAlgorithmsResponse:
		var j algorithmsResponseJSON
		return decode(&j, func() error {
			m.Algorithms = make([]interfaces.AlgorithmDescriptor, len(j.Algorithms))
			for i := range j.Algorithms {
				if err := j.Algorithms[i].into(&m.Algorithms[i]); err != nil {
					return err
				}
			}
			return nil
		})
	case *interfaces.QueryRecipientKeyRequest:
		var j addressQueryJSON
		return decode(&j, func() error {
			addr, err := addressFromJSON(j.Address)
			m.Address = addr
			return err
		})
	case *interfaces.QueryRecipientKeyResponse:
		var j keysResponseJSON
		return decode(&j, func() error {
			m.Keys = make([]interfaces.RecipientKeyRecord, len(j.Keys))
			for i := range j.Keys {
				if err := j.Keys[i].into(&m.Keys[i]); err != nil {
					return err
				}
			}
			return nil
		})
	case *interfaces.QueryKeyByFingerprintRequest:
		var j fingerprintQueryJSON
		return decode(&j, func() error {
			m.Fingerprint = interfaces.KeyFingerprint(j.Fingerprint)
			return nil
		})
	case *interfaces.QueryKeyByFingerprintResponse:
		var j keyResponseJSON
		return decode(&j, func() error { return j.Key.into(&m.Key) })
	case *interfaces.QueryValidateEnvelopeRequest:
		var j envelopeWrapperJSON
		return decode(&j, func() error { return j.Envelope.into(&m.Envelope) })
	case *interfaces.QueryValidateEnvelopeResponse:
		var j reportResponseJSON
		return decode(&j, func() error { return j.Report.into(&m.Report) })
	case *interfaces.QueryRecipientsRequest:
		var j recipientsQueryJSON
		return decode(&j, func() error {
			*m = interfaces.QueryRecipientsRequest{
				Mode:           interfaces.RecipientMode(j.Mode),
				CommitteeEpoch: uint64(j.CommitteeEpoch),
				Fingerprints:   fingerprints(j.Fingerprints),
			}
			return nil
		})
	case *interfaces.QueryRecipientsResponse:
		var j recipientsResponseJSON
		return decode(&j, func() error {
			m.Fingerprints = fingerprints(j.Fingerprints)
			return nil
		})
	case *interfaces.QueryEnvelopeRequest:
		var j envelopeIDJSON
		return decode(&j, func() error {
			id, err := contentIDFromJSON(j.EnvelopeID)
			m.EnvelopeID = id
			return err
		})
	case *interfaces.QueryEnvelopeResponse:
		var j envelopeWrapperJSON
		return decode(&j, func() error { return j.Envelope.into(&m.Envelope) })
	case *interfaces.QueryAccountSequenceRequest:
		var j addressQueryJSON
		return decode(&j, func() error {
			addr, err := addressFromJSON(j.Address)
			m.Address = addr
			return err
		})
	case *interfaces.QueryAccountSequenceResponse:
		var j sequenceJSON
		return decode(&j, func() error {
			m.Sequence = uint64(j.Sequence)
			return nil
		})
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, msg)
	}
}
