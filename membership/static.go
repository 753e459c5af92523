package membership

import (
	"context"
	"slices"
	"sync"

	"github.com/ruteri/envelope-registry/interfaces"
)

// Static is an in-memory membership source. Validators and committee members
// are added and removed explicitly, typically from the genesis file or by tests.
type Static struct {
	mu         sync.RWMutex
	validators []interfaces.Address
	committee  []interfaces.Address
}

func NewStatic(validators, committee []interfaces.Address) *Static {
	return &Static{
		validators: slices.Clone(validators),
		committee:  slices.Clone(committee),
	}
}

func (s *Static) Validators(ctx context.Context) ([]interfaces.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.validators), nil
}

func (s *Static) Committee(ctx context.Context) ([]interfaces.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.committee), nil
}

// AddValidator is a no-op if addr is already a validator.
func (s *Static) AddValidator(addr interfaces.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.validators, addr) {
		s.validators = append(s.validators, addr)
	}
}

func (s *Static) RemoveValidator(addr interfaces.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators = slices.DeleteFunc(s.validators, func(a interfaces.Address) bool { return a == addr })
}

// SetCommittee replaces the current committee. Snapshots already taken are unaffected.
func (s *Static) SetCommittee(members []interfaces.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committee = slices.Clone(members)
}
