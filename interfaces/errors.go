package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Policy violations. Caller-correctable.
	ErrAlgorithmNotAllowed  = errors.New("algorithm not allowed")
	ErrTooManyRecipients    = errors.New("too many recipients")
	ErrKeyLimitExceeded     = errors.New("key limit exceeded")
	ErrNoRecipients         = errors.New("no recipients")
	ErrSignatureRequired    = errors.New("signature required")
	ErrInvalidRecipientMode = errors.New("invalid recipient mode")
	ErrDuplicateRecipient   = errors.New("duplicate recipient")
	ErrInvalidLabel         = errors.New("invalid label")
	ErrInvalidParams        = errors.New("invalid params")

	// State conflicts. Never retried.
	ErrDuplicateFingerprint = errors.New("duplicate key fingerprint")
	ErrAlreadyRevoked       = errors.New("key already revoked")
	ErrNotOwner             = errors.New("sender does not own key")
	ErrAlreadyExists        = errors.New("already exists")
	ErrStaleSequence        = errors.New("stale sequence")

	// Lookup failures.
	ErrNotFound         = errors.New("not found")
	ErrUnknownRecipient = errors.New("unknown recipient")

	// Cryptographic failures.
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrMalformedKey        = errors.New("malformed key")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrDecryptionFailed    = errors.New("decryption failed")

	// ErrUnauthorized is returned when the sender is not allowed to perform an administrative action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEnvelopeRejected is returned when a submitted envelope fails validation.
	ErrEnvelopeRejected = errors.New("envelope rejected")
)

// UnknownRecipientError lists every fingerprint that did not resolve to an active key.
type UnknownRecipientError struct {
	Fingerprints []KeyFingerprint
}

func (e *UnknownRecipientError) Error() string {
	fps := make([]string, len(e.Fingerprints))
	for i, fp := range e.Fingerprints {
		fps[i] = string(fp)
	}
	return fmt.Sprintf("%s: %s", ErrUnknownRecipient, strings.Join(fps, ", "))
}

func (e *UnknownRecipientError) Is(target error) bool {
	return target == ErrUnknownRecipient
}

// ErrorCategory groups errors for transport status mapping.
type ErrorCategory int

const (
	CategoryInternal ErrorCategory = iota
	CategoryPolicy
	CategoryState
	CategoryLookup
	CategoryCrypto
	CategoryAuthorization
)

var errorCategories = []struct {
	err      error
	category ErrorCategory
}{
	{ErrAlgorithmNotAllowed, CategoryPolicy},
	{ErrTooManyRecipients, CategoryPolicy},
	{ErrKeyLimitExceeded, CategoryPolicy},
	{ErrNoRecipients, CategoryPolicy},
	{ErrSignatureRequired, CategoryPolicy},
	{ErrInvalidRecipientMode, CategoryPolicy},
	{ErrDuplicateRecipient, CategoryPolicy},
	{ErrInvalidLabel, CategoryPolicy},
	{ErrInvalidParams, CategoryPolicy},
	{ErrEnvelopeRejected, CategoryPolicy},
	{ErrDuplicateFingerprint, CategoryState},
	{ErrAlreadyRevoked, CategoryState},
	{ErrNotOwner, CategoryState},
	{ErrAlreadyExists, CategoryState},
	{ErrStaleSequence, CategoryState},
	{ErrNotFound, CategoryLookup},
	{ErrUnknownRecipient, CategoryLookup},
	{ErrContentNotFound, CategoryLookup},
	{ErrKeyNotFound, CategoryLookup},
	{ErrInvalidSignature, CategoryCrypto},
	{ErrMalformedKey, CategoryCrypto},
	{ErrMalformedCiphertext, CategoryCrypto},
	{ErrDecryptionFailed, CategoryCrypto},
	{ErrUnauthorized, CategoryAuthorization},
}

// CategoryOf returns the category of the first known sentinel err wraps.
func CategoryOf(err error) ErrorCategory {
	for _, c := range errorCategories {
		if errors.Is(err, c.err) {
			return c.category
		}
	}
	return CategoryInternal
}

var categoryNames = map[ErrorCategory]string{
	CategoryInternal:      "internal",
	CategoryPolicy:        "policy",
	CategoryState:         "state",
	CategoryLookup:        "lookup",
	CategoryCrypto:        "crypto",
	CategoryAuthorization: "authorization",
}

func (c ErrorCategory) String() string {
	return categoryNames[c]
}

// ErrorFromMessage recovers the sentinel from an error message that crossed a
// transport, so callers on the far side can still use errors.Is. Messages that
// do not start with a known sentinel come back as plain errors.
func ErrorFromMessage(msg string) error {
	msg = strings.TrimSpace(msg)
	for _, c := range errorCategories {
		prefix := c.err.Error()
		if msg == prefix {
			return c.err
		}
		if strings.HasPrefix(msg, prefix+": ") {
			return fmt.Errorf("%w: %s", c.err, strings.TrimPrefix(msg, prefix+": "))
		}
	}
	return errors.New(msg)
}
