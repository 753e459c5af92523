// Package resolver turns a recipient selection into the key fingerprints an
// envelope must be wrapped for.
package resolver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/interfaces"
)

var prefixCommitteeSnapshot = []byte("cs/")

func snapshotKey(epoch uint64) []byte {
	key := append([]byte{}, prefixCommitteeSnapshot...)
	return binary.BigEndian.AppendUint64(key, epoch)
}

// Resolver implements interfaces.RecipientResolver.
//
// Full validator set resolution reads membership at call time. Committee
// resolution only ever reads the snapshot taken for the epoch, so later
// committee or key changes do not affect it.
type Resolver struct {
	kv         interfaces.KVStore
	keys       interfaces.RecipientKeyReader
	membership interfaces.MembershipSource
	params     interfaces.ParamsSource
	log        *slog.Logger

	mu        sync.RWMutex
	snapshots map[uint64][]interfaces.KeyFingerprint
}

func NewResolver(kv interfaces.KVStore, keys interfaces.RecipientKeyReader, membership interfaces.MembershipSource, params interfaces.ParamsSource, log *slog.Logger) *Resolver {
	return &Resolver{
		kv:         kv,
		keys:       keys,
		membership: membership,
		params:     params,
		log:        log,
		snapshots:  make(map[uint64][]interfaces.KeyFingerprint),
	}
}

// Resolve returns the recipient fingerprints for selection.
func (r *Resolver) Resolve(ctx context.Context, selection interfaces.RecipientSelection) ([]interfaces.KeyFingerprint, error) {
	var (
		fps []interfaces.KeyFingerprint
		err error
	)

	switch sel := selection.(type) {
	case interfaces.FullValidatorSet:
		fps, err = r.resolveValidators(ctx)
	case interfaces.Committee:
		fps, err = r.committeeSnapshot(sel.Epoch)
	case interfaces.Specific:
		fps, err = r.resolveSpecific(sel.Fingerprints)
	case nil:
		return nil, fmt.Errorf("%w: no selection", interfaces.ErrInvalidRecipientMode)
	default:
		return nil, fmt.Errorf("%w: %T", interfaces.ErrInvalidRecipientMode, selection)
	}
	if err != nil {
		return nil, err
	}

	if limit := r.params.Params().MaxRecipientsPerEnvelope; uint32(len(fps)) > limit {
		return nil, fmt.Errorf("%w: %d recipients, limit is %d", interfaces.ErrTooManyRecipients, len(fps), limit)
	}
	return fps, nil
}

// SnapshotCommittee freezes the current committee's preferred keys for epoch.
// An existing snapshot is returned unchanged.
func (r *Resolver) SnapshotCommittee(ctx context.Context, epoch uint64) ([]interfaces.KeyFingerprint, error) {
	members, err := r.membership.Committee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read committee: %w", err)
	}
	return r.SnapshotMembers(epoch, members)
}

// SnapshotMembers freezes the preferred keys of members as the committee of
// epoch. An existing snapshot is returned unchanged.
func (r *Resolver) SnapshotMembers(epoch uint64, members []interfaces.Address) ([]interfaces.KeyFingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.loadSnapshot(epoch)
	if err == nil {
		return existing, nil
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	}

	fps, err := r.preferredKeys(members, "committee")
	if err != nil {
		return nil, err
	}

	encoded, err := codec.Marshal(&interfaces.QueryRecipientsResponse{Fingerprints: fps})
	if err != nil {
		return nil, err
	}
	if encoded == nil {
		// A committee with no keys still gets a snapshot; nil would delete it.
		encoded = []byte{}
	}
	if err := r.kv.Apply([]interfaces.KVWrite{{Key: snapshotKey(epoch), Value: encoded}}); err != nil {
		return nil, fmt.Errorf("failed to commit committee snapshot: %w", err)
	}
	r.snapshots[epoch] = fps

	r.log.Info("Snapshotted committee",
		slog.Uint64("epoch", epoch),
		slog.Int("members", len(members)),
		slog.Int("keys", len(fps)))
	return fps, nil
}

func (r *Resolver) committeeSnapshot(epoch uint64) ([]interfaces.KeyFingerprint, error) {
	r.mu.RLock()
	fps, ok := r.snapshots[epoch]
	r.mu.RUnlock()
	if ok {
		return append([]interfaces.KeyFingerprint(nil), fps...), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fps, err := r.loadSnapshot(epoch)
	if err != nil {
		return nil, err
	}
	return append([]interfaces.KeyFingerprint(nil), fps...), nil
}

// loadSnapshot must be called with mu held for writing.
func (r *Resolver) loadSnapshot(epoch uint64) ([]interfaces.KeyFingerprint, error) {
	if fps, ok := r.snapshots[epoch]; ok {
		return fps, nil
	}

	data, err := r.kv.Get(snapshotKey(epoch))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: no committee snapshot for epoch %d", interfaces.ErrNotFound, epoch)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read committee snapshot: %w", err)
	}

	var snapshot interfaces.QueryRecipientsResponse
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt committee snapshot for epoch %d: %w", epoch, err)
	}
	r.snapshots[epoch] = snapshot.Fingerprints
	return snapshot.Fingerprints, nil
}

func (r *Resolver) resolveValidators(ctx context.Context) ([]interfaces.KeyFingerprint, error) {
	validators, err := r.membership.Validators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read validator set: %w", err)
	}
	return r.preferredKeys(validators, "validator")
}

// preferredKeys picks the most recently registered active key of every member.
// Members without an active key are skipped.
func (r *Resolver) preferredKeys(members []interfaces.Address, role string) ([]interfaces.KeyFingerprint, error) {
	fps := make([]interfaces.KeyFingerprint, 0, len(members))
	seen := make(map[interfaces.KeyFingerprint]bool, len(members))
	for _, member := range members {
		keys, err := r.keys.GetActiveKeys(member)
		if err != nil {
			return nil, fmt.Errorf("failed to read keys of %s: %w", member, err)
		}
		if len(keys) == 0 {
			r.log.Warn("Skipping member without an active key",
				slog.String("role", role),
				slog.String("address", member.String()))
			continue
		}
		fp := keys[len(keys)-1].KeyFingerprint
		if !seen[fp] {
			seen[fp] = true
			fps = append(fps, fp)
		}
	}
	return fps, nil
}

func (r *Resolver) resolveSpecific(requested []interfaces.KeyFingerprint) ([]interfaces.KeyFingerprint, error) {
	seen := make(map[interfaces.KeyFingerprint]bool, len(requested))
	var unknown []interfaces.KeyFingerprint
	for _, fp := range requested {
		if seen[fp] {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrDuplicateRecipient, fp)
		}
		seen[fp] = true

		record, err := r.keys.GetByFingerprint(fp)
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			unknown = append(unknown, fp)
		case err != nil:
			return nil, err
		case !record.IsActive():
			unknown = append(unknown, fp)
		}
	}
	if len(unknown) > 0 {
		return nil, &interfaces.UnknownRecipientError{Fingerprints: unknown}
	}
	return append([]interfaces.KeyFingerprint(nil), requested...), nil
}
