package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ruteri/envelope-registry/interfaces"
)

// MemoryStore is an in-memory KVStore. It is used by tests and by nodes
// started without a data directory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

func (s *MemoryStore) Apply(writes []interfaces.KVWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if w.Value == nil {
			delete(s.data, string(w.Key))
			continue
		}
		s.data[string(w.Key)] = bytes.Clone(w.Value)
	}
	return nil
}

func (s *MemoryStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(s.data[k])
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
