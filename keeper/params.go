package keeper

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/interfaces"
)

var paramsKey = []byte("params")

// ParamsStore holds the committed Params. Reads are served from memory; every
// update is written through to the KV store.
type ParamsStore struct {
	mu     sync.RWMutex
	kv     interfaces.KVStore
	params interfaces.Params
}

// NewParamsStore loads the committed params, or commits genesis if there are none.
func NewParamsStore(kv interfaces.KVStore, genesis interfaces.Params) (*ParamsStore, error) {
	s := &ParamsStore{kv: kv}

	data, err := kv.Get(paramsKey)
	switch {
	case errors.Is(err, interfaces.ErrKeyNotFound):
		if err := s.Set(genesis); err != nil {
			return nil, fmt.Errorf("invalid genesis params: %w", err)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load params: %w", err)
	}

	if err := codec.Unmarshal(data, &s.params); err != nil {
		return nil, fmt.Errorf("corrupt params: %w", err)
	}
	return s, nil
}

// Params returns a copy of the current params.
func (s *ParamsStore) Params() interfaces.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.params
	p.AllowedAlgorithms = slices.Clone(s.params.AllowedAlgorithms)
	return p
}

// Set validates and commits p.
func (s *ParamsStore) Set(p interfaces.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.AllowedAlgorithms = slices.Clone(p.AllowedAlgorithms)

	encoded, err := codec.Marshal(&p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Apply([]interfaces.KVWrite{{Key: paramsKey, Value: encoded}}); err != nil {
		return fmt.Errorf("failed to commit params: %w", err)
	}
	s.params = p
	return nil
}
