package interfaces

// State-mutating messages. Sender is the verified identity of the submitting account.
// Sequence must be strictly greater than the last sequence accepted from that
// account; QueryAccountSequence returns the last accepted value.

type RegisterRecipientKey struct {
	Sender      Address
	PublicKey   []byte
	AlgorithmID string
	Label       string
	Sequence    uint64
}

type RegisterRecipientKeyResponse struct {
	KeyFingerprint KeyFingerprint
}

type RevokeRecipientKey struct {
	Sender         Address
	KeyFingerprint KeyFingerprint
	Sequence       uint64
}

type RevokeRecipientKeyResponse struct{}

type UpdateKeyLabel struct {
	Sender         Address
	KeyFingerprint KeyFingerprint
	Label          string
	Sequence       uint64
}

type UpdateKeyLabelResponse struct{}

// UpdateParams replaces Params. Authority must be the configured governance address.
type UpdateParams struct {
	Authority Address
	Params    Params
	Sequence  uint64
}

type UpdateParamsResponse struct{}

// SubmitEnvelope validates an envelope and accepts it into committed state.
type SubmitEnvelope struct {
	Sender   Address
	Envelope MultiRecipientEnvelope
	Sequence uint64
}

type SubmitEnvelopeResponse struct {
	EnvelopeID ContentID
}

// Read-only queries.

type QueryParamsRequest struct{}

type QueryParamsResponse struct {
	Params Params
}

type QueryAlgorithmsRequest struct{}

type QueryAlgorithmsResponse struct {
	Algorithms []AlgorithmDescriptor
}

type QueryRecipientKeyRequest struct {
	Address Address
}

type QueryRecipientKeyResponse struct {
	Keys []RecipientKeyRecord
}

type QueryKeyByFingerprintRequest struct {
	Fingerprint KeyFingerprint
}

type QueryKeyByFingerprintResponse struct {
	Key RecipientKeyRecord
}

type QueryValidateEnvelopeRequest struct {
	Envelope MultiRecipientEnvelope
}

type QueryValidateEnvelopeResponse struct {
	Report ValidationReport
}

type QueryRecipientsRequest struct {
	Mode           RecipientMode
	CommitteeEpoch uint64
	Fingerprints   []KeyFingerprint
}

type QueryRecipientsResponse struct {
	Fingerprints []KeyFingerprint
}

type QueryEnvelopeRequest struct {
	EnvelopeID ContentID
}

type QueryEnvelopeResponse struct {
	Envelope MultiRecipientEnvelope
}

type QueryAccountSequenceRequest struct {
	Address Address
}

// QueryAccountSequenceResponse carries the last accepted sequence, 0 for an unseen account.
type QueryAccountSequenceResponse struct {
	Sequence uint64
}
