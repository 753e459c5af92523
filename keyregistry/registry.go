package keyregistry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

// MaxLabelLength bounds RecipientKeyRecord.Label, in bytes.
const MaxLabelLength = 128

var (
	prefixRecord = []byte("rk/fp/")
	prefixOwner  = []byte("rk/addr/")
)

func recordKey(fp interfaces.KeyFingerprint) []byte {
	return append(append([]byte{}, prefixRecord...), fp...)
}

func ownerPrefix(addr interfaces.Address) []byte {
	return append(append([]byte{}, prefixOwner...), addr[:]...)
}

func ownerKey(addr interfaces.Address, fp interfaces.KeyFingerprint) []byte {
	return append(ownerPrefix(addr), fp...)
}

// Registry is the KV-backed recipient key registry. Mutations are serialized
// and each commits as a single KV batch.
type Registry struct {
	mu sync.RWMutex

	kv          interfaces.KVStore
	algorithms  interfaces.AlgorithmRegistry
	params      interfaces.ParamsSource
	clock       interfaces.Clock
	authorities map[interfaces.Address]bool
	log         *slog.Logger
}

// NewRegistry creates a registry over kv. Authorities may revoke or relabel any
// key in addition to its owner.
func NewRegistry(kv interfaces.KVStore, algorithms interfaces.AlgorithmRegistry, params interfaces.ParamsSource, clock interfaces.Clock, log *slog.Logger, authorities ...interfaces.Address) *Registry {
	auth := make(map[interfaces.Address]bool, len(authorities))
	for _, a := range authorities {
		auth[a] = true
	}
	return &Registry{
		kv:          kv,
		algorithms:  algorithms,
		params:      params,
		clock:       clock,
		authorities: auth,
		log:         log,
	}
}

// Register stores a new active key for address and returns its fingerprint.
func (r *Registry) Register(address interfaces.Address, publicKey []byte, algorithmID string, label string) (interfaces.KeyFingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.algorithms.IsAllowed(algorithmID) {
		return "", fmt.Errorf("%w: %q", interfaces.ErrAlgorithmNotAllowed, algorithmID)
	}
	if err := cryptoutils.ValidateRecipientKey(algorithmID, publicKey); err != nil {
		return "", err
	}
	if err := validateLabel(label); err != nil {
		return "", err
	}

	fp := interfaces.ComputeFingerprint(publicKey)
	if _, err := r.get(fp); err == nil {
		return "", fmt.Errorf("%w: %s", interfaces.ErrDuplicateFingerprint, fp)
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return "", err
	}

	active, err := r.activeKeys(address)
	if err != nil {
		return "", err
	}
	if limit := r.params.Params().MaxKeysPerAccount; uint32(len(active)) >= limit {
		return "", fmt.Errorf("%w: %s already holds %d active keys", interfaces.ErrKeyLimitExceeded, address, limit)
	}

	record := interfaces.RecipientKeyRecord{
		Address:        address,
		PublicKey:      append([]byte(nil), publicKey...),
		KeyFingerprint: fp,
		AlgorithmID:    algorithmID,
		Label:          label,
		RegisteredAt:   r.clock.Now(),
	}
	encoded, err := codec.Marshal(&record)
	if err != nil {
		return "", err
	}

	if err := r.kv.Apply([]interfaces.KVWrite{
		{Key: recordKey(fp), Value: encoded},
		{Key: ownerKey(address, fp), Value: []byte(fp)},
	}); err != nil {
		return "", fmt.Errorf("failed to commit key registration: %w", err)
	}

	r.log.Info("Registered recipient key",
		slog.String("address", address.String()),
		slog.String("fingerprint", string(fp)),
		slog.String("algorithm", algorithmID))
	return fp, nil
}

// Revoke marks the key as revoked. address is the expected owner; revokedBy
// must be the owner or an authority.
func (r *Registry) Revoke(address interfaces.Address, fp interfaces.KeyFingerprint, revokedBy interfaces.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.owned(address, fp, revokedBy)
	if err != nil {
		return err
	}
	if !record.IsActive() {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyRevoked, fp)
	}

	record.RevokedAt = r.clock.Now()
	if err := r.put(record); err != nil {
		return err
	}

	r.log.Info("Revoked recipient key",
		slog.String("address", record.Address.String()),
		slog.String("fingerprint", string(fp)),
		slog.String("revoked_by", revokedBy.String()))
	return nil
}

// UpdateLabel replaces the label of an active key. Labels of revoked keys are frozen.
func (r *Registry) UpdateLabel(address interfaces.Address, fp interfaces.KeyFingerprint, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.owned(address, fp, address)
	if err != nil {
		return err
	}
	if !record.IsActive() {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyRevoked, fp)
	}
	if err := validateLabel(label); err != nil {
		return err
	}

	record.Label = label
	return r.put(record)
}

// GetActiveKeys returns the active keys of address ordered by registration time.
func (r *Registry) GetActiveKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeKeys(address)
}

// GetByFingerprint returns the key, including revoked ones.
func (r *Registry) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(fp)
}

// isAuthority reports whether addr may act on keys it does not own.
func (r *Registry) isAuthority(addr interfaces.Address) bool {
	return r.authorities[addr]
}

// owned loads fp and checks that actor may modify it on behalf of address.
func (r *Registry) owned(address interfaces.Address, fp interfaces.KeyFingerprint, actor interfaces.Address) (interfaces.RecipientKeyRecord, error) {
	record, err := r.get(fp)
	if err != nil {
		return record, err
	}
	if r.isAuthority(actor) {
		return record, nil
	}
	if record.Address != address || record.Address != actor {
		return record, fmt.Errorf("%w: %s is owned by %s", interfaces.ErrNotOwner, fp, record.Address)
	}
	return record, nil
}

func (r *Registry) get(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	var record interfaces.RecipientKeyRecord
	data, err := r.kv.Get(recordKey(fp))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return record, fmt.Errorf("%w: key %s", interfaces.ErrNotFound, fp)
	}
	if err != nil {
		return record, err
	}
	if err := codec.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("corrupt key record %s: %w", fp, err)
	}
	return record, nil
}

func (r *Registry) put(record interfaces.RecipientKeyRecord) error {
	encoded, err := codec.Marshal(&record)
	if err != nil {
		return err
	}
	if err := r.kv.Apply([]interfaces.KVWrite{{Key: recordKey(record.KeyFingerprint), Value: encoded}}); err != nil {
		return fmt.Errorf("failed to commit key record: %w", err)
	}
	return nil
}

func (r *Registry) activeKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	var fps []interfaces.KeyFingerprint
	err := r.kv.Iterate(ownerPrefix(address), func(_, value []byte) error {
		fps = append(fps, interfaces.KeyFingerprint(value))
		return nil
	})
	if err != nil {
		return nil, err
	}

	active := make([]interfaces.RecipientKeyRecord, 0, len(fps))
	for _, fp := range fps {
		record, err := r.get(fp)
		if err != nil {
			return nil, err
		}
		if record.IsActive() {
			active = append(active, record)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].RegisteredAt != active[j].RegisteredAt {
			return active[i].RegisteredAt < active[j].RegisteredAt
		}
		return active[i].KeyFingerprint < active[j].KeyFingerprint
	})
	return active, nil
}

func validateLabel(label string) error {
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: label is %d bytes, at most %d allowed", interfaces.ErrInvalidLabel, len(label), MaxLabelLength)
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("%w: label is not valid UTF-8", interfaces.ErrInvalidLabel)
	}
	return nil
}
