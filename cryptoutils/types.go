package cryptoutils

import (
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	recipientPubkeyPEMType  = "RECIPIENT PUBLIC KEY"
	recipientPrivkeyPEMType = "RECIPIENT PRIVATE KEY"
	algorithmPEMHeader      = "Algorithm"
)

// RecipientPubkey is a recipient public key in PEM format, tagged with its algorithm.
type RecipientPubkey []byte

// RecipientPrivkey is a recipient private key in PEM format, tagged with its algorithm.
type RecipientPrivkey []byte

// NewRecipientPubkey encodes a raw public key after validating it for algorithmID.
func NewRecipientPubkey(algorithmID string, pub []byte) (RecipientPubkey, error) {
	if err := ValidateRecipientKey(algorithmID, pub); err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:    recipientPubkeyPEMType,
		Headers: map[string]string{algorithmPEMHeader: algorithmID},
		Bytes:   pub,
	}), nil
}

// NewRecipientPrivkey encodes a raw private key.
func NewRecipientPrivkey(algorithmID string, priv []byte) (RecipientPrivkey, error) {
	if _, err := SuiteFor(algorithmID); err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:    recipientPrivkeyPEMType,
		Headers: map[string]string{algorithmPEMHeader: algorithmID},
		Bytes:   priv,
	}), nil
}

// Get returns the algorithm id and the raw public key.
func (k RecipientPubkey) Get() (string, []byte, error) {
	return decodeRecipientPEM(k, recipientPubkeyPEMType)
}

// Get returns the algorithm id and the raw private key.
func (k RecipientPrivkey) Get() (string, []byte, error) {
	return decodeRecipientPEM(k, recipientPrivkeyPEMType)
}

func decodeRecipientPEM(data []byte, pemType string) (string, []byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return "", nil, errors.New("failed to decode PEM block")
	}
	if block.Type != pemType {
		return "", nil, fmt.Errorf("unexpected PEM type %q, want %q", block.Type, pemType)
	}
	algorithmID := block.Headers[algorithmPEMHeader]
	if _, err := SuiteFor(algorithmID); err != nil {
		return "", nil, err
	}
	return algorithmID, block.Bytes, nil
}
