package keeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/envelope"
	"github.com/ruteri/envelope-registry/interfaces"
)

// stateView is the validator's view of the keeper. The caller must hold k.mu.
type stateView struct {
	k *Keeper
}

func (v stateView) Params() interfaces.Params { return v.k.params.Params() }

func (v stateView) GetActiveKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	return v.k.keys.GetActiveKeys(address)
}

func (v stateView) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	return v.k.keys.GetByFingerprint(fp)
}

func (v stateView) Lookup(id string, version uint32) (interfaces.AlgorithmDescriptor, error) {
	return v.k.algorithms.Lookup(id, version)
}

func (v stateView) IsAllowed(id string) bool { return v.k.algorithms.IsAllowed(id) }

func (k *Keeper) view() interfaces.StateView {
	return stateView{k: k}
}

func (k *Keeper) QueryParams(ctx context.Context, req *interfaces.QueryParamsRequest) (*interfaces.QueryParamsResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return &interfaces.QueryParamsResponse{Params: k.params.Params()}, nil
}

func (k *Keeper) QueryAlgorithms(ctx context.Context, req *interfaces.QueryAlgorithmsRequest) (*interfaces.QueryAlgorithmsResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return &interfaces.QueryAlgorithmsResponse{Algorithms: k.algorithms.List()}, nil
}

// QueryRecipientKey returns the active keys of an address.
func (k *Keeper) QueryRecipientKey(ctx context.Context, req *interfaces.QueryRecipientKeyRequest) (*interfaces.QueryRecipientKeyResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keys, err := k.keys.GetActiveKeys(req.Address)
	if err != nil {
		return nil, err
	}
	return &interfaces.QueryRecipientKeyResponse{Keys: keys}, nil
}

func (k *Keeper) QueryKeyByFingerprint(ctx context.Context, req *interfaces.QueryKeyByFingerprintRequest) (*interfaces.QueryKeyByFingerprintResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, err := k.keys.GetByFingerprint(req.Fingerprint)
	if err != nil {
		return nil, err
	}
	return &interfaces.QueryKeyByFingerprintResponse{Key: key}, nil
}

// QueryValidateEnvelope validates without committing. Validation failures are
// in the report; the error is always nil.
func (k *Keeper) QueryValidateEnvelope(ctx context.Context, req *interfaces.QueryValidateEnvelopeRequest) (*interfaces.QueryValidateEnvelopeResponse, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return &interfaces.QueryValidateEnvelopeResponse{Report: envelope.Validate(k.view(), &req.Envelope)}, nil
}

// QueryRecipients resolves a recipient selection against the current state.
func (k *Keeper) QueryRecipients(ctx context.Context, req *interfaces.QueryRecipientsRequest) (*interfaces.QueryRecipientsResponse, error) {
	selection, err := interfaces.NewRecipientSelection(req.Mode, req.CommitteeEpoch, req.Fingerprints)
	if err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	fps, err := k.resolver.Resolve(ctx, selection)
	if err != nil {
		return nil, err
	}
	return &interfaces.QueryRecipientsResponse{Fingerprints: fps}, nil
}

// QueryEnvelope returns an accepted envelope. Envelopes missing from committed
// state are looked up in the archive.
func (k *Keeper) QueryEnvelope(ctx context.Context, req *interfaces.QueryEnvelopeRequest) (*interfaces.QueryEnvelopeResponse, error) {
	k.mu.RLock()
	data, err := k.kv.Get(envelopeKey(req.EnvelopeID))
	k.mu.RUnlock()

	if errors.Is(err, interfaces.ErrKeyNotFound) && k.archive != nil {
		data, err = k.archive.Fetch(ctx, req.EnvelopeID, interfaces.EnvelopeType)
	}
	if errors.Is(err, interfaces.ErrKeyNotFound) || errors.Is(err, interfaces.ErrContentNotFound) {
		return nil, fmt.Errorf("%w: envelope %s", interfaces.ErrNotFound, req.EnvelopeID)
	}
	if err != nil {
		return nil, err
	}

	resp := &interfaces.QueryEnvelopeResponse{}
	if err := codec.Unmarshal(data, &resp.Envelope); err != nil {
		return nil, fmt.Errorf("corrupt envelope %s: %w", req.EnvelopeID, err)
	}
	return resp, nil
}

// Resolve implements interfaces.RecipientResolver against committed state.
func (k *Keeper) Resolve(ctx context.Context, selection interfaces.RecipientSelection) ([]interfaces.KeyFingerprint, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.resolver.Resolve(ctx, selection)
}

// Params implements interfaces.ParamsSource.
func (k *Keeper) Params() interfaces.Params {
	return k.params.Params()
}

func (k *Keeper) GetActiveKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys.GetActiveKeys(address)
}

func (k *Keeper) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys.GetByFingerprint(fp)
}

// NewBuilder returns an envelope builder reading this keeper's state.
func (k *Keeper) NewBuilder() *envelope.Builder {
	return envelope.NewBuilder(k.algorithms, k, k, k, k.log)
}
