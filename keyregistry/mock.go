package keyregistry

import (
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks interfaces.RecipientKeyRegistry
type MockRegistry struct {
	mock.Mock
}

// Register mocks the Register method
func (m *MockRegistry) Register(address interfaces.Address, publicKey []byte, algorithmID string, label string) (interfaces.KeyFingerprint, error) {
	args := m.Called(address, publicKey, algorithmID, label)
	return args.Get(0).(interfaces.KeyFingerprint), args.Error(1)
}

// Revoke mocks the Revoke method
func (m *MockRegistry) Revoke(address interfaces.Address, fp interfaces.KeyFingerprint, revokedBy interfaces.Address) error {
	args := m.Called(address, fp, revokedBy)
	return args.Error(0)
}

// UpdateLabel mocks the UpdateLabel method
func (m *MockRegistry) UpdateLabel(address interfaces.Address, fp interfaces.KeyFingerprint, label string) error {
	args := m.Called(address, fp, label)
	return args.Error(0)
}

// GetActiveKeys mocks the GetActiveKeys method
func (m *MockRegistry) GetActiveKeys(address interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	args := m.Called(address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.RecipientKeyRecord), args.Error(1)
}

// GetByFingerprint mocks the GetByFingerprint method
func (m *MockRegistry) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	args := m.Called(fp)
	return args.Get(0).(interfaces.RecipientKeyRecord), args.Error(1)
}
