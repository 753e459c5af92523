// Package interfaces defines the core interfaces and types for the envelope registry.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is the 20-byte identity of a ledger account.
type Address [20]byte

// NewAddressFromBytes creates an address from a 20-byte slice.
func NewAddressFromBytes(addr []byte) (Address, error) {
	if len(addr) != 20 {
		return Address{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res Address
	copy(res[:], addr)
	return res, nil
}

// NewAddressFromHex parses a 40-char hex string, with or without 0x prefix.
func NewAddressFromHex(addr string) (Address, error) {
	if !common.IsHexAddress(addr) {
		return Address{}, fmt.Errorf("invalid address %q: must be 40 hex characters", addr)
	}
	return Address(common.HexToAddress(addr)), nil
}

// String returns the EIP-55 checksummed hex representation.
func (addr Address) String() string {
	return common.Address(addr).Hex()
}

// Bytes returns the raw 20-byte address.
func (addr Address) Bytes() []byte {
	return addr[:]
}

// IsZero reports whether the address is unset.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// KeyFingerprint is the stable external reference of a registered public key:
// the lowercase hex SHA-256 of the raw public key bytes.
type KeyFingerprint string

// FingerprintLength is the length of a hex-encoded fingerprint.
const FingerprintLength = 2 * sha256.Size

// ComputeFingerprint derives the fingerprint of a public key. It is a pure function.
func ComputeFingerprint(publicKey []byte) KeyFingerprint {
	sum := sha256.Sum256(publicKey)
	return KeyFingerprint(hex.EncodeToString(sum[:]))
}

// NewKeyFingerprint validates and normalizes a hex fingerprint.
func NewKeyFingerprint(s string) (KeyFingerprint, error) {
	clean := strings.ToLower(strings.TrimPrefix(s, "0x"))
	if len(clean) != FingerprintLength {
		return "", fmt.Errorf("invalid fingerprint length: hex string must be %d characters", FingerprintLength)
	}
	if _, err := hex.DecodeString(clean); err != nil {
		return "", fmt.Errorf("invalid fingerprint hex: %w", err)
	}
	return KeyFingerprint(clean), nil
}

func (fp KeyFingerprint) String() string {
	return string(fp)
}

// RecipientMode selects the strategy used to decide which keys an envelope is wrapped for.
type RecipientMode int32

const (
	RecipientModeUnspecified RecipientMode = iota
	RecipientModeFullValidatorSet
	RecipientModeCommittee
	RecipientModeSpecific
)

var recipientModeNames = map[RecipientMode]string{
	RecipientModeUnspecified:      "RECIPIENT_MODE_UNSPECIFIED",
	RecipientModeFullValidatorSet: "RECIPIENT_MODE_FULL_VALIDATOR_SET",
	RecipientModeCommittee:        "RECIPIENT_MODE_COMMITTEE",
	RecipientModeSpecific:         "RECIPIENT_MODE_SPECIFIC",
}

// String returns the wire name of the mode.
func (m RecipientMode) String() string {
	if name, ok := recipientModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RECIPIENT_MODE_%d", int32(m))
}

// ParseRecipientMode accepts the wire name or the short form ("committee", "full_validator_set", ...).
func ParseRecipientMode(s string) (RecipientMode, error) {
	norm := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	if !strings.HasPrefix(norm, "RECIPIENT_MODE_") {
		norm = "RECIPIENT_MODE_" + norm
	}
	for mode, name := range recipientModeNames {
		if name == norm {
			return mode, nil
		}
	}
	return RecipientModeUnspecified, fmt.Errorf("%w: %q", ErrInvalidRecipientMode, s)
}

// RecipientSelection is the resolver input. Exactly one of FullValidatorSet,
// Committee and Specific implements it; a nil selection is the unspecified mode.
type RecipientSelection interface {
	Mode() RecipientMode
	isRecipientSelection()
}

// FullValidatorSet targets the active key of every current validator.
type FullValidatorSet struct{}

// Committee targets the frozen committee snapshot of Epoch.
type Committee struct {
	Epoch uint64
}

// Specific targets exactly the listed fingerprints.
type Specific struct {
	Fingerprints []KeyFingerprint
}

func (FullValidatorSet) Mode() RecipientMode { return RecipientModeFullValidatorSet }
func (Committee) Mode() RecipientMode        { return RecipientModeCommittee }
func (Specific) Mode() RecipientMode         { return RecipientModeSpecific }

func (FullValidatorSet) isRecipientSelection() {}
func (Committee) isRecipientSelection()        {}
func (Specific) isRecipientSelection()         {}

// NewRecipientSelection builds a selection from its flattened form, as carried by queries.
func NewRecipientSelection(mode RecipientMode, epoch uint64, fingerprints []KeyFingerprint) (RecipientSelection, error) {
	switch mode {
	case RecipientModeFullValidatorSet:
		return FullValidatorSet{}, nil
	case RecipientModeCommittee:
		return Committee{Epoch: epoch}, nil
	case RecipientModeSpecific:
		return Specific{Fingerprints: fingerprints}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipientMode, mode)
	}
}

// AlgorithmDescriptor describes a published payload cipher / key-wrap suite.
// Once published only Deprecated may change.
type AlgorithmDescriptor struct {
	ID          string `yaml:"id"`
	Version     uint32 `yaml:"version"`
	Description string `yaml:"description"`
	KeySize     uint32 `yaml:"key_size"`
	NonceSize   uint32 `yaml:"nonce_size"`
	Deprecated  bool   `yaml:"deprecated"`
}

// RecipientKeyRecord is a public key registered by an account.
type RecipientKeyRecord struct {
	Address        Address
	PublicKey      []byte
	KeyFingerprint KeyFingerprint
	AlgorithmID    string
	Label          string
	RegisteredAt   uint64
	// RevokedAt is 0 while the key is active.
	RevokedAt uint64
}

// IsActive reports whether the key has not been revoked.
func (r *RecipientKeyRecord) IsActive() bool {
	return r.RevokedAt == 0
}

// WrappedKeyEntry is the payload key encrypted for a single recipient.
type WrappedKeyEntry struct {
	RecipientID     KeyFingerprint
	WrappedKey      []byte
	Algorithm       string
	EphemeralPubKey []byte
}

// EnvelopeVersion is the current MultiRecipientEnvelope format version.
const EnvelopeVersion uint32 = 1

// MultiRecipientEnvelope is a payload encrypted once and keyed for many recipients.
type MultiRecipientEnvelope struct {
	Version           uint32
	AlgorithmID       string
	AlgorithmVersion  uint32
	RecipientMode     RecipientMode
	PayloadCiphertext []byte
	PayloadNonce      []byte
	WrappedKeys       []WrappedKeyEntry
	ClientSignature   []byte
	ClientID          string
	UserSignature     []byte
	UserPubKey        []byte
	Metadata          map[string]string
	// CommitteeEpoch is only meaningful when RecipientMode is RecipientModeCommittee.
	CommitteeEpoch uint64
}

// RecipientIDs returns the fingerprints of all wrapped keys, in envelope order.
func (e *MultiRecipientEnvelope) RecipientIDs() []KeyFingerprint {
	ids := make([]KeyFingerprint, len(e.WrappedKeys))
	for i, wk := range e.WrappedKeys {
		ids[i] = wk.RecipientID
	}
	return ids
}

// EncryptedPayloadEnvelope is the legacy envelope shape: one ephemeral key shared by
// a flat list of per-recipient encrypted keys. It is only ever decoded.
type EncryptedPayloadEnvelope struct {
	Version         uint32
	AlgorithmID     string
	RecipientKeyIDs []string
	EncryptedKeys   [][]byte
	EphemeralPubKey []byte
	Nonce           []byte
	Ciphertext      []byte
	SenderSignature []byte
	SenderPubKey    []byte
	Metadata        map[string]string
}

// Params is the process-wide policy, changed only by the authority.
type Params struct {
	MaxRecipientsPerEnvelope uint32   `yaml:"max_recipients_per_envelope"`
	MaxKeysPerAccount        uint32   `yaml:"max_keys_per_account"`
	AllowedAlgorithms        []string `yaml:"allowed_algorithms"`
	RequireSignature         bool     `yaml:"require_signature"`
}

// AlgorithmAllowed reports whether id is on the allow-list.
func (p Params) AlgorithmAllowed(id string) bool {
	for _, a := range p.AllowedAlgorithms {
		if a == id {
			return true
		}
	}
	return false
}

// Validate checks the params for internal consistency.
func (p Params) Validate() error {
	if p.MaxRecipientsPerEnvelope == 0 {
		return fmt.Errorf("%w: max_recipients_per_envelope must be positive", ErrInvalidParams)
	}
	if p.MaxKeysPerAccount == 0 {
		return fmt.Errorf("%w: max_keys_per_account must be positive", ErrInvalidParams)
	}
	seen := make(map[string]bool, len(p.AllowedAlgorithms))
	for _, a := range p.AllowedAlgorithms {
		if a == "" {
			return fmt.Errorf("%w: empty algorithm id", ErrInvalidParams)
		}
		if seen[a] {
			return fmt.Errorf("%w: duplicate algorithm %q", ErrInvalidParams, a)
		}
		seen[a] = true
	}
	return nil
}

// ValidationReport is the outcome of validating an envelope. Validation failures
// are reported here, never returned as errors.
type ValidationReport struct {
	Valid             bool
	Error             string
	RecipientCount    uint32
	Algorithm         string
	SignatureValid    bool
	AllKeysRegistered bool
	MissingKeys       []KeyFingerprint
}
