package interfaces

import "context"

// MsgServer applies state-mutating messages. Implementations verify nothing
// about Sender; transports authenticate it before calling in.
type MsgServer interface {
	RegisterRecipientKey(ctx context.Context, msg *RegisterRecipientKey) (*RegisterRecipientKeyResponse, error)
	RevokeRecipientKey(ctx context.Context, msg *RevokeRecipientKey) (*RevokeRecipientKeyResponse, error)
	UpdateKeyLabel(ctx context.Context, msg *UpdateKeyLabel) (*UpdateKeyLabelResponse, error)
	UpdateParams(ctx context.Context, msg *UpdateParams) (*UpdateParamsResponse, error)
	SubmitEnvelope(ctx context.Context, msg *SubmitEnvelope) (*SubmitEnvelopeResponse, error)
}

// QueryServer answers read-only queries against committed state.
type QueryServer interface {
	QueryParams(ctx context.Context, req *QueryParamsRequest) (*QueryParamsResponse, error)
	QueryAlgorithms(ctx context.Context, req *QueryAlgorithmsRequest) (*QueryAlgorithmsResponse, error)
	QueryRecipientKey(ctx context.Context, req *QueryRecipientKeyRequest) (*QueryRecipientKeyResponse, error)
	QueryKeyByFingerprint(ctx context.Context, req *QueryKeyByFingerprintRequest) (*QueryKeyByFingerprintResponse, error)
	QueryValidateEnvelope(ctx context.Context, req *QueryValidateEnvelopeRequest) (*QueryValidateEnvelopeResponse, error)
	QueryRecipients(ctx context.Context, req *QueryRecipientsRequest) (*QueryRecipientsResponse, error)
	QueryEnvelope(ctx context.Context, req *QueryEnvelopeRequest) (*QueryEnvelopeResponse, error)
	QueryAccountSequence(ctx context.Context, req *QueryAccountSequenceRequest) (*QueryAccountSequenceResponse, error)
}
