package envelope

import (
	"errors"
	"fmt"

	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

// Failure categories, in the order they are checked. ValidationReport.Error is
// prefixed with the first one that failed.
const (
	CategoryStructural = "structural"
	CategoryAlgorithm  = "algorithm"
	CategorySignature  = "signature"
	CategoryKeys       = "keys"
)

// Validate checks env against view and reports every result. It never returns
// an error; failures are described in the report. The keys check always runs
// so MissingKeys is complete even when an earlier check failed.
func Validate(view interfaces.StateView, env *interfaces.MultiRecipientEnvelope) interfaces.ValidationReport {
	params := view.Params()
	report := interfaces.ValidationReport{
		RecipientCount: uint32(len(env.WrappedKeys)),
		Algorithm:      env.AlgorithmID,
	}

	var failures []error
	fail := func(category string, err error) {
		failures = append(failures, fmt.Errorf("%s: %w", category, err))
	}

	structuralErr := checkStructure(env, params)
	if structuralErr != nil {
		fail(CategoryStructural, structuralErr)
	}

	algorithmErr := checkAlgorithm(view, env)
	if algorithmErr != nil {
		fail(CategoryAlgorithm, algorithmErr)
	}

	if structuralErr == nil && algorithmErr == nil {
		if err := checkSignatures(env, params.RequireSignature); err != nil {
			fail(CategorySignature, err)
		} else {
			report.SignatureValid = true
		}
	}

	missing, keysErr := checkKeys(view, env)
	report.MissingKeys = missing
	report.AllKeysRegistered = keysErr == nil && len(missing) == 0
	if keysErr != nil {
		fail(CategoryKeys, keysErr)
	} else if len(missing) > 0 {
		fail(CategoryKeys, &interfaces.UnknownRecipientError{Fingerprints: missing})
	}

	if len(failures) > 0 {
		report.Error = failures[0].Error()
		return report
	}
	report.Valid = true
	return report
}

func checkStructure(env *interfaces.MultiRecipientEnvelope, params interfaces.Params) error {
	if env.Version != interfaces.EnvelopeVersion {
		return fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	switch env.RecipientMode {
	case interfaces.RecipientModeFullValidatorSet, interfaces.RecipientModeCommittee, interfaces.RecipientModeSpecific:
	default:
		return fmt.Errorf("%w: %s", interfaces.ErrInvalidRecipientMode, env.RecipientMode)
	}
	if env.CommitteeEpoch != 0 && env.RecipientMode != interfaces.RecipientModeCommittee {
		return fmt.Errorf("committee epoch set for %s", env.RecipientMode)
	}
	if len(env.WrappedKeys) == 0 {
		return interfaces.ErrNoRecipients
	}
	if uint32(len(env.WrappedKeys)) > params.MaxRecipientsPerEnvelope {
		return fmt.Errorf("%w: %d recipients, limit is %d", interfaces.ErrTooManyRecipients, len(env.WrappedKeys), params.MaxRecipientsPerEnvelope)
	}
	if env.AlgorithmID == "" {
		return errors.New("missing algorithm id")
	}

	seen := make(map[interfaces.KeyFingerprint]bool, len(env.WrappedKeys))
	for _, wk := range env.WrappedKeys {
		if seen[wk.RecipientID] {
			return fmt.Errorf("%w: %s", interfaces.ErrDuplicateRecipient, wk.RecipientID)
		}
		seen[wk.RecipientID] = true
	}
	return nil
}

func checkAlgorithm(view interfaces.StateView, env *interfaces.MultiRecipientEnvelope) error {
	desc, err := view.Lookup(env.AlgorithmID, env.AlgorithmVersion)
	if err != nil {
		return err
	}
	if !view.IsAllowed(env.AlgorithmID) {
		return fmt.Errorf("%w: %q", interfaces.ErrAlgorithmNotAllowed, env.AlgorithmID)
	}
	// A deprecated version can still be opened but is not accepted for new envelopes.
	if desc.Deprecated {
		return fmt.Errorf("%w: %s version %d is deprecated", interfaces.ErrAlgorithmNotAllowed, env.AlgorithmID, env.AlgorithmVersion)
	}
	payloadSuite, err := cryptoutils.SuiteFor(env.AlgorithmID)
	if err != nil {
		return err
	}
	if uint32(len(env.PayloadNonce)) != desc.NonceSize {
		return fmt.Errorf("%w: nonce is %d bytes, want %d", interfaces.ErrMalformedCiphertext, len(env.PayloadNonce), desc.NonceSize)
	}
	if len(env.PayloadCiphertext) < payloadSuite.AEAD.Overhead() {
		return fmt.Errorf("%w: payload ciphertext too short", interfaces.ErrMalformedCiphertext)
	}

	for _, wk := range env.WrappedKeys {
		suite, err := cryptoutils.SuiteFor(wk.Algorithm)
		if err != nil {
			return fmt.Errorf("recipient %s: %w", wk.RecipientID, err)
		}
		if want := suite.KeyAgreement.EphemeralSize(); len(wk.EphemeralPubKey) != want {
			return fmt.Errorf("%w: recipient %s ephemeral key is %d bytes, want %d", interfaces.ErrMalformedCiphertext, wk.RecipientID, len(wk.EphemeralPubKey), want)
		}
		if want := suite.WrappedKeySize(int(desc.KeySize)); len(wk.WrappedKey) != want {
			return fmt.Errorf("%w: recipient %s wrapped key is %d bytes, want %d", interfaces.ErrMalformedCiphertext, wk.RecipientID, len(wk.WrappedKey), want)
		}
	}
	return nil
}

func checkSignatures(env *interfaces.MultiRecipientEnvelope, required bool) error {
	if required && len(env.ClientSignature) == 0 {
		return interfaces.ErrSignatureRequired
	}
	if len(env.ClientSignature) == 0 && len(env.UserSignature) == 0 {
		return nil
	}

	canonical, err := CanonicalBytes(env)
	if err != nil {
		return err
	}
	if len(env.ClientSignature) > 0 {
		if err := cryptoutils.VerifyClient(canonical, env.ClientSignature, env.ClientID); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}
	if len(env.UserSignature) > 0 {
		if err := cryptoutils.VerifyUser(env.UserPubKey, canonical, env.UserSignature); err != nil {
			return fmt.Errorf("user: %w", err)
		}
	}
	return nil
}

// checkKeys returns the recipients that do not resolve to an active key.
func checkKeys(view interfaces.StateView, env *interfaces.MultiRecipientEnvelope) ([]interfaces.KeyFingerprint, error) {
	var missing []interfaces.KeyFingerprint
	for _, wk := range env.WrappedKeys {
		record, err := view.GetByFingerprint(wk.RecipientID)
		if errors.Is(err, interfaces.ErrNotFound) {
			missing = append(missing, wk.RecipientID)
			continue
		}
		if err != nil {
			return missing, err
		}
		if !record.IsActive() {
			missing = append(missing, wk.RecipientID)
		}
	}
	return missing, nil
}
