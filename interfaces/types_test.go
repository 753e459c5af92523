package interfaces

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFingerprintDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOf(rapid.Byte()).Draw(t, "key")
		fp := ComputeFingerprint(key)
		require.Equal(t, fp, ComputeFingerprint(append([]byte(nil), key...)))
		require.Len(t, string(fp), FingerprintLength)
		require.Equal(t, strings.ToLower(string(fp)), string(fp))

		parsed, err := NewKeyFingerprint("0x" + strings.ToUpper(string(fp)))
		require.NoError(t, err)
		require.Equal(t, fp, parsed)
	})
}

func TestNewKeyFingerprint(t *testing.T) {
	_, err := NewKeyFingerprint("abcd")
	assert.Error(t, err)
	_, err = NewKeyFingerprint(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	addr, err := NewAddressFromHex("000000000000000000000000000000000000dead")
	require.NoError(t, err)
	assert.Equal(t, "0x000000000000000000000000000000000000dEaD", addr.String())
	assert.False(t, addr.IsZero())
	assert.True(t, Address{}.IsZero())

	fromBytes, err := NewAddressFromBytes(addr.Bytes())
	require.NoError(t, err)
	assert.Equal(t, addr, fromBytes)

	_, err = NewAddressFromHex("0xdead")
	assert.Error(t, err)
	_, err = NewAddressFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRecipientMode(t *testing.T) {
	for in, want := range map[string]RecipientMode{
		"RECIPIENT_MODE_COMMITTEE": RecipientModeCommittee,
		"committee":                RecipientModeCommittee,
		"full-validator-set":       RecipientModeFullValidatorSet,
		"full_validator_set":       RecipientModeFullValidatorSet,
		"specific":                 RecipientModeSpecific,
	} {
		got, err := ParseRecipientMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, want, mustParse(t, got.String()))
	}

	_, err := ParseRecipientMode("everyone")
	assert.ErrorIs(t, err, ErrInvalidRecipientMode)
}

func mustParse(t *testing.T, s string) RecipientMode {
	t.Helper()
	m, err := ParseRecipientMode(s)
	require.NoError(t, err)
	return m
}

func TestNewRecipientSelection(t *testing.T) {
	sel, err := NewRecipientSelection(RecipientModeCommittee, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, Committee{Epoch: 7}, sel)

	_, err = NewRecipientSelection(RecipientModeUnspecified, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidRecipientMode)
}

func TestParamsValidate(t *testing.T) {
	p := Params{MaxRecipientsPerEnvelope: 10, MaxKeysPerAccount: 2, AllowedAlgorithms: []string{"a", "b"}}
	require.NoError(t, p.Validate())
	assert.True(t, p.AlgorithmAllowed("b"))
	assert.False(t, p.AlgorithmAllowed("c"))

	p.AllowedAlgorithms = []string{"a", "a"}
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
	assert.ErrorIs(t, Params{MaxKeysPerAccount: 1}.Validate(), ErrInvalidParams)
}

func TestCategoryOf(t *testing.T) {
	unknown := &UnknownRecipientError{Fingerprints: []KeyFingerprint{"aa", "bb"}}
	assert.ErrorIs(t, unknown, ErrUnknownRecipient)
	assert.Equal(t, "unknown recipient: aa, bb", unknown.Error())

	for err, want := range map[error]ErrorCategory{
		fmt.Errorf("%w: x", ErrTooManyRecipients):       CategoryPolicy,
		fmt.Errorf("wrapped: %w", ErrAlreadyRevoked):     CategoryState,
		fmt.Errorf("register: %w", unknown):              CategoryLookup,
		fmt.Errorf("%w: bad point", ErrMalformedKey):     CategoryCrypto,
		fmt.Errorf("%w: not authority", ErrUnauthorized): CategoryAuthorization,
		errors.New("disk on fire"):                       CategoryInternal,
	} {
		assert.Equal(t, want, CategoryOf(err), err.Error())
	}
}

func TestStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://bucket/prefix/?region=us-east-1")
	require.NoError(t, err)
	assert.True(t, loc.IsS3())
	assert.Equal(t, "us-east-1", loc.GetParam("region"))

	_, err = NewStorageBackendLocation("github://owner/repo")
	assert.Error(t, err)

	id := ComputeID([]byte("data"))
	parsed, err := NewContentIDFromHex(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}
