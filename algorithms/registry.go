// Package algorithms implements the append-only catalog of algorithm descriptors.
package algorithms

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ruteri/envelope-registry/interfaces"
)

var ErrInvalidDescriptor = errors.New("invalid algorithm descriptor")

// DefaultCatalog returns the descriptors published at genesis.
func DefaultCatalog() []interfaces.AlgorithmDescriptor {
	return []interfaces.AlgorithmDescriptor{
		{ID: "x25519-chacha20", Version: 1, Description: "X25519 key agreement, HKDF-SHA256, ChaCha20-Poly1305", KeySize: 32, NonceSize: 12},
		{ID: "x25519-xchacha20", Version: 1, Description: "X25519 key agreement, HKDF-SHA256, XChaCha20-Poly1305", KeySize: 32, NonceSize: 24},
		{ID: "x25519-aes256gcm", Version: 1, Description: "X25519 key agreement, HKDF-SHA256, AES-256-GCM", KeySize: 32, NonceSize: 12, Deprecated: true},
		{ID: "p256-aes256gcm", Version: 1, Description: "ECDH P-256, HKDF-SHA256, AES-256-GCM", KeySize: 32, NonceSize: 12},
		{ID: "mlkem768-aes256gcm", Version: 1, Description: "ML-KEM-768, HKDF-SHA256, AES-256-GCM", KeySize: 32, NonceSize: 12},
	}
}

// Registry is the in-memory algorithm catalog. Descriptors are only ever appended;
// the deprecation flag is the single mutable field.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string][]interfaces.AlgorithmDescriptor
	params      interfaces.ParamsSource
}

// NewRegistry creates a registry seeded with descriptors. IsAllowed consults params
// on every call so a params update takes effect immediately.
func NewRegistry(params interfaces.ParamsSource, descriptors ...interfaces.AlgorithmDescriptor) (*Registry, error) {
	if params == nil {
		return nil, errors.New("params source is required")
	}

	r := &Registry{
		descriptors: make(map[string][]interfaces.AlgorithmDescriptor),
		params:      params,
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register publishes a new descriptor. Versions of an id must strictly increase.
func (r *Registry) Register(desc interfaces.AlgorithmDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}
	if desc.Version == 0 {
		return fmt.Errorf("%w: %s version must be positive", ErrInvalidDescriptor, desc.ID)
	}
	if desc.KeySize == 0 || desc.NonceSize == 0 {
		return fmt.Errorf("%w: %s/v%d key and nonce sizes must be positive", ErrInvalidDescriptor, desc.ID, desc.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.descriptors[desc.ID]
	if n := len(versions); n > 0 {
		latest := versions[n-1].Version
		if desc.Version == latest {
			return fmt.Errorf("%w: algorithm %s/v%d", interfaces.ErrAlreadyExists, desc.ID, desc.Version)
		}
		if desc.Version < latest {
			return fmt.Errorf("%w: %s/v%d is older than published v%d", ErrInvalidDescriptor, desc.ID, desc.Version, latest)
		}
	}
	r.descriptors[desc.ID] = append(versions, desc)
	return nil
}

// Deprecate marks (id, version) as deprecated. Deprecating twice is a no-op.
func (r *Registry) Deprecate(id string, version uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.descriptors[id]
	for i := range versions {
		if versions[i].Version == version {
			versions[i].Deprecated = true
			return nil
		}
	}
	return fmt.Errorf("%w: algorithm %s/v%d", interfaces.ErrNotFound, id, version)
}

// Lookup returns the descriptor for (id, version). It does not consider deprecation.
func (r *Registry) Lookup(id string, version uint32) (interfaces.AlgorithmDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.descriptors[id] {
		if d.Version == version {
			return d, nil
		}
	}
	return interfaces.AlgorithmDescriptor{}, fmt.Errorf("%w: algorithm %s/v%d", interfaces.ErrNotFound, id, version)
}

// Latest returns the highest version of id.
func (r *Registry) Latest(id string) (interfaces.AlgorithmDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.descriptors[id]
	if len(versions) == 0 {
		return interfaces.AlgorithmDescriptor{}, fmt.Errorf("%w: algorithm %s", interfaces.ErrNotFound, id)
	}
	return versions[len(versions)-1], nil
}

// IsAllowed reports whether id is on the params allow-list and its latest
// version is not deprecated.
func (r *Registry) IsAllowed(id string) bool {
	if !r.params.Params().AlgorithmAllowed(id) {
		return false
	}
	latest, err := r.Latest(id)
	if err != nil {
		return false
	}
	return !latest.Deprecated
}

// Known reports whether any version of id is published.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors[id]) > 0
}

// List returns all descriptors ordered by (id, version).
func (r *Registry) List() []interfaces.AlgorithmDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var res []interfaces.AlgorithmDescriptor
	for _, id := range ids {
		res = append(res, r.descriptors[id]...)
	}
	return res
}
