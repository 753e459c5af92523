package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/envelope"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/keyregistry"
	"github.com/ruteri/envelope-registry/metrics"
	"github.com/ruteri/envelope-registry/resolver"
)

var (
	_ interfaces.MsgServer   = (*Keeper)(nil)
	_ interfaces.QueryServer = (*Keeper)(nil)
)

var prefixEnvelope = []byte("env/")

func envelopeKey(id interfaces.ContentID) []byte {
	return append(append([]byte{}, prefixEnvelope...), id[:]...)
}

// Config wires a Keeper. KV, Membership and Log are required.
type Config struct {
	KV         interfaces.KVStore
	Membership interfaces.MembershipSource
	Log        *slog.Logger

	// Archive receives a copy of every accepted envelope. Optional.
	Archive interfaces.StorageBackend
	// Clock stamps key records. Defaults to a sequence clock.
	Clock interfaces.Clock

	// Authority may update params and revoke any key.
	Authority interfaces.Address
	// Params are committed only if the store holds none yet.
	Params interfaces.Params
	// Algorithms seeds the catalog. Defaults to algorithms.DefaultCatalog.
	Algorithms []interfaces.AlgorithmDescriptor
}

// Keeper is the state machine in front of all registries. Messages are applied
// one at a time under the write lock; queries run concurrently under the read
// lock and therefore see a stable state.
type Keeper struct {
	mu sync.RWMutex

	kv         interfaces.KVStore
	archive    interfaces.StorageBackend
	params     *ParamsStore
	algorithms *algorithms.Registry
	keys       *keyregistry.Registry
	resolver   *resolver.Resolver
	membership interfaces.MembershipSource
	authority  interfaces.Address
	log        *slog.Logger
}

func New(cfg Config) (*Keeper, error) {
	if cfg.KV == nil || cfg.Membership == nil || cfg.Log == nil {
		return nil, errors.New("keeper requires a KV store, a membership source and a logger")
	}

	params, err := NewParamsStore(cfg.KV, cfg.Params)
	if err != nil {
		return nil, err
	}

	catalog := cfg.Algorithms
	if len(catalog) == 0 {
		catalog = algorithms.DefaultCatalog()
	}
	algs, err := algorithms.NewRegistry(params, catalog...)
	if err != nil {
		return nil, err
	}
	if err := checkAlgorithmsKnown(algs, params.Params()); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = keyregistry.NewSequenceClock()
	}

	var authorities []interfaces.Address
	if !cfg.Authority.IsZero() {
		authorities = append(authorities, cfg.Authority)
	}
	keys := keyregistry.NewRegistry(cfg.KV, algs, params, clock, cfg.Log, authorities...)

	return &Keeper{
		kv:         cfg.KV,
		archive:    cfg.Archive,
		params:     params,
		algorithms: algs,
		keys:       keys,
		resolver:   resolver.NewResolver(cfg.KV, keys, cfg.Membership, params, cfg.Log),
		membership: cfg.Membership,
		authority:  cfg.Authority,
		log:        cfg.Log,
	}, nil
}

func checkAlgorithmsKnown(algs *algorithms.Registry, p interfaces.Params) error {
	for _, id := range p.AllowedAlgorithms {
		if !algs.Known(id) {
			return fmt.Errorf("%w: unknown algorithm %q", interfaces.ErrInvalidParams, id)
		}
	}
	return nil
}

// Algorithms returns the algorithm catalog, for administrative registration and deprecation.
func (k *Keeper) Algorithms() *algorithms.Registry {
	return k.algorithms
}

// RegisterRecipientKey adds a key for the sender.
func (k *Keeper) RegisterRecipientKey(ctx context.Context, msg *interfaces.RegisterRecipientKey) (resp *interfaces.RegisterRecipientKeyResponse, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { metrics.ObserveMessage("register_recipient_key", err) }()

	if err := k.useSequence(msg.Sender, msg.Sequence); err != nil {
		return nil, err
	}

	fp, err := k.keys.Register(msg.Sender, msg.PublicKey, msg.AlgorithmID, msg.Label)
	if err != nil {
		return nil, err
	}
	metrics.IncKeysRegistered()
	return &interfaces.RegisterRecipientKeyResponse{KeyFingerprint: fp}, nil
}

// RevokeRecipientKey revokes a key owned by the sender, or any key if the
// sender is the authority.
func (k *Keeper) RevokeRecipientKey(ctx context.Context, msg *interfaces.RevokeRecipientKey) (resp *interfaces.RevokeRecipientKeyResponse, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { metrics.ObserveMessage("revoke_recipient_key", err) }()

	if err := k.useSequence(msg.Sender, msg.Sequence); err != nil {
		return nil, err
	}

	if err := k.keys.Revoke(msg.Sender, msg.KeyFingerprint, msg.Sender); err != nil {
		return nil, err
	}
	metrics.IncKeysRevoked()
	return &interfaces.RevokeRecipientKeyResponse{}, nil
}

func (k *Keeper) UpdateKeyLabel(ctx context.Context, msg *interfaces.UpdateKeyLabel) (resp *interfaces.UpdateKeyLabelResponse, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { metrics.ObserveMessage("update_key_label", err) }()

	if err := k.useSequence(msg.Sender, msg.Sequence); err != nil {
		return nil, err
	}

	if err := k.keys.UpdateLabel(msg.Sender, msg.KeyFingerprint, msg.Label); err != nil {
		return nil, err
	}
	return &interfaces.UpdateKeyLabelResponse{}, nil
}

// UpdateParams replaces the params. Only the configured authority may do this.
func (k *Keeper) UpdateParams(ctx context.Context, msg *interfaces.UpdateParams) (resp *interfaces.UpdateParamsResponse, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { metrics.ObserveMessage("update_params", err) }()

	if err := k.useSequence(msg.Authority, msg.Sequence); err != nil {
		return nil, err
	}

	if k.authority.IsZero() || msg.Authority != k.authority {
		return nil, fmt.Errorf("%w: %s is not the params authority", interfaces.ErrUnauthorized, msg.Authority)
	}
	if err := checkAlgorithmsKnown(k.algorithms, msg.Params); err != nil {
		return nil, err
	}
	if err := k.params.Set(msg.Params); err != nil {
		return nil, err
	}

	k.log.Info("Params updated",
		slog.Uint64("max_recipients_per_envelope", uint64(msg.Params.MaxRecipientsPerEnvelope)),
		slog.Uint64("max_keys_per_account", uint64(msg.Params.MaxKeysPerAccount)),
		slog.Any("allowed_algorithms", msg.Params.AllowedAlgorithms),
		slog.Bool("require_signature", msg.Params.RequireSignature))
	return &interfaces.UpdateParamsResponse{}, nil
}

// SubmitEnvelope validates the envelope and, if it is valid, commits it and
// copies it to the archive. An invalid envelope is rejected in full with
// ErrEnvelopeRejected.
func (k *Keeper) SubmitEnvelope(ctx context.Context, msg *interfaces.SubmitEnvelope) (resp *interfaces.SubmitEnvelopeResponse, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { metrics.ObserveMessage("submit_envelope", err) }()

	if err := k.useSequence(msg.Sender, msg.Sequence); err != nil {
		return nil, err
	}

	report := envelope.Validate(k.view(), &msg.Envelope)
	metrics.ObserveValidation(report.Valid)
	if !report.Valid {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrEnvelopeRejected, report.Error)
	}

	encoded, err := codec.Marshal(&msg.Envelope)
	if err != nil {
		return nil, err
	}
	id := interfaces.ComputeID(encoded)

	if _, err := k.kv.Get(envelopeKey(id)); err == nil {
		return nil, fmt.Errorf("%w: envelope %s", interfaces.ErrAlreadyExists, id)
	} else if !errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, err
	}

	if err := k.kv.Apply([]interfaces.KVWrite{{Key: envelopeKey(id), Value: encoded}}); err != nil {
		return nil, fmt.Errorf("failed to commit envelope: %w", err)
	}
	metrics.IncEnvelopesAccepted()

	if k.archive != nil {
		k.archiveAccepted(ctx, id, encoded, &report)
	}

	k.log.Info("Accepted envelope",
		slog.String("envelope_id", id.String()),
		slog.String("sender", msg.Sender.String()),
		slog.String("mode", msg.Envelope.RecipientMode.String()),
		slog.Int("recipients", len(msg.Envelope.WrappedKeys)))
	return &interfaces.SubmitEnvelopeResponse{EnvelopeID: id}, nil
}

// BeginEpoch freezes the committee for epoch. It is called by the host at
// every epoch transition and is idempotent.
//
// The membership source may be remote, so the committee is read before
// taking k.mu; only the key lookup and the snapshot write hold the lock.
func (k *Keeper) BeginEpoch(ctx context.Context, epoch uint64) ([]interfaces.KeyFingerprint, error) {
	members, err := k.membership.Committee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read committee: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.resolver.SnapshotMembers(epoch, members)
}

// archiveAccepted copies an accepted envelope and its validation report to the
// archive. Committed state is authoritative, so failures are only logged.
func (k *Keeper) archiveAccepted(ctx context.Context, id interfaces.ContentID, encoded []byte, report *interfaces.ValidationReport) {
	log := k.log.With(slog.String("envelope_id", id.String()), slog.String("backend", k.archive.Name()))

	if _, err := k.archive.Store(ctx, encoded, interfaces.EnvelopeType); err != nil {
		log.Warn("Failed to archive envelope", slog.String("err", err.Error()))
		return
	}

	encodedReport, err := codec.Marshal(report)
	if err != nil {
		log.Warn("Failed to encode validation report", slog.String("err", err.Error()))
		return
	}
	reportID, err := k.archive.Store(ctx, encodedReport, interfaces.ReportType)
	if err != nil {
		log.Warn("Failed to archive validation report", slog.String("err", err.Error()))
		return
	}
	log.Debug("Archived envelope", slog.String("report_id", reportID.String()))
}
