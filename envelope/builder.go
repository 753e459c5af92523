package envelope

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
)

// SigningMaterial holds the optional signing keys of the submitter. Either key
// may be nil.
type SigningMaterial struct {
	// ClientKey is the secp256k1 key of the submitting client. Its address
	// becomes the envelope's ClientID.
	ClientKey *ecdsa.PrivateKey
	// UserKey is the end-user ed25519 key.
	UserKey ed25519.PrivateKey
}

type buildOptions struct {
	metadata map[string]string
	rand     io.Reader
}

type BuildOption func(*buildOptions)

// WithMetadata attaches free-form metadata. It is covered by the signatures.
func WithMetadata(metadata map[string]string) BuildOption {
	return func(o *buildOptions) {
		o.metadata = maps.Clone(metadata)
	}
}

// WithRandom replaces crypto/rand as the source of keys, nonces and ephemeral material.
func WithRandom(r io.Reader) BuildOption {
	return func(o *buildOptions) {
		o.rand = r
	}
}

// Builder constructs envelopes against a view of the registries. It holds no
// key material between calls and is safe for concurrent use.
type Builder struct {
	algorithms interfaces.AlgorithmRegistry
	keys       interfaces.RecipientKeyReader
	resolver   interfaces.RecipientResolver
	params     interfaces.ParamsSource
	log        *slog.Logger
}

func NewBuilder(algorithms interfaces.AlgorithmRegistry, keys interfaces.RecipientKeyReader, resolver interfaces.RecipientResolver, params interfaces.ParamsSource, log *slog.Logger) *Builder {
	return &Builder{
		algorithms: algorithms,
		keys:       keys,
		resolver:   resolver,
		params:     params,
		log:        log,
	}
}

// Build encrypts payload once under a fresh key and wraps that key for every
// recipient selection resolves to. signing may be nil unless the params
// require a signature.
func (b *Builder) Build(ctx context.Context, payload []byte, algorithmID string, selection interfaces.RecipientSelection, signing *SigningMaterial, opts ...BuildOption) (*interfaces.MultiRecipientEnvelope, error) {
	o := buildOptions{rand: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}

	if !b.algorithms.IsAllowed(algorithmID) {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrAlgorithmNotAllowed, algorithmID)
	}
	desc, err := b.algorithms.Latest(algorithmID)
	if err != nil {
		return nil, err
	}
	suite, err := cryptoutils.SuiteFor(algorithmID)
	if err != nil {
		return nil, err
	}
	if uint32(suite.AEAD.KeySize()) != desc.KeySize || uint32(suite.AEAD.NonceSize()) != desc.NonceSize {
		return nil, fmt.Errorf("%w: %s v%d sizes do not match its cipher", interfaces.ErrAlgorithmNotAllowed, desc.ID, desc.Version)
	}

	if b.params.Params().RequireSignature && (signing == nil || signing.ClientKey == nil) {
		return nil, interfaces.ErrSignatureRequired
	}

	recipients, err := b.resolver.Resolve(ctx, selection)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, interfaces.ErrNoRecipients
	}

	key := make([]byte, desc.KeySize)
	defer clear(key)
	if _, err := io.ReadFull(o.rand, key); err != nil {
		return nil, fmt.Errorf("failed to generate payload key: %w", err)
	}
	nonce := make([]byte, desc.NonceSize)
	if _, err := io.ReadFull(o.rand, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := suite.AEAD.New(key)
	if err != nil {
		return nil, err
	}

	env := &interfaces.MultiRecipientEnvelope{
		Version:           interfaces.EnvelopeVersion,
		AlgorithmID:       desc.ID,
		AlgorithmVersion:  desc.Version,
		RecipientMode:     selection.Mode(),
		PayloadCiphertext: aead.Seal(nil, nonce, payload, payloadAAD(desc.ID, desc.Version)),
		PayloadNonce:      nonce,
		WrappedKeys:       make([]interfaces.WrappedKeyEntry, 0, len(recipients)),
		Metadata:          o.metadata,
	}
	if committee, ok := selection.(interfaces.Committee); ok {
		env.CommitteeEpoch = committee.Epoch
	}

	for _, fp := range recipients {
		entry, err := b.wrapFor(o.rand, fp, key)
		if err != nil {
			return nil, err
		}
		env.WrappedKeys = append(env.WrappedKeys, entry)
	}

	if signing != nil {
		if err := Sign(env, signing); err != nil {
			return nil, err
		}
	}

	b.log.Debug("Built envelope",
		slog.String("algorithm", desc.ID),
		slog.String("mode", env.RecipientMode.String()),
		slog.Int("recipients", len(env.WrappedKeys)))
	return env, nil
}

func (b *Builder) wrapFor(random io.Reader, fp interfaces.KeyFingerprint, key []byte) (interfaces.WrappedKeyEntry, error) {
	record, err := b.keys.GetByFingerprint(fp)
	if err != nil {
		return interfaces.WrappedKeyEntry{}, err
	}
	if !record.IsActive() {
		return interfaces.WrappedKeyEntry{}, &interfaces.UnknownRecipientError{Fingerprints: []interfaces.KeyFingerprint{fp}}
	}
	if !b.algorithms.IsAllowed(record.AlgorithmID) {
		return interfaces.WrappedKeyEntry{}, fmt.Errorf("%w: recipient %s uses %q", interfaces.ErrAlgorithmNotAllowed, fp, record.AlgorithmID)
	}

	suite, err := cryptoutils.SuiteFor(record.AlgorithmID)
	if err != nil {
		return interfaces.WrappedKeyEntry{}, err
	}
	wrapped, ephemeral, err := cryptoutils.WrapKey(random, suite, record.PublicKey, fp, key)
	if err != nil {
		return interfaces.WrappedKeyEntry{}, fmt.Errorf("failed to wrap key for %s: %w", fp, err)
	}
	return interfaces.WrappedKeyEntry{
		RecipientID:     fp,
		WrappedKey:      wrapped,
		Algorithm:       record.AlgorithmID,
		EphemeralPubKey: ephemeral,
	}, nil
}

// Sign fills in the identity fields for the keys in signing and signs the
// canonical bytes with each of them.
func Sign(env *interfaces.MultiRecipientEnvelope, signing *SigningMaterial) error {
	if signing.ClientKey != nil {
		env.ClientID = cryptoutils.ClientAddress(signing.ClientKey).String()
	}
	if signing.UserKey != nil {
		env.UserPubKey = signing.UserKey.Public().(ed25519.PublicKey)
	}

	canonical, err := CanonicalBytes(env)
	if err != nil {
		return err
	}
	if signing.ClientKey != nil {
		env.ClientSignature, err = cryptoutils.SignClient(signing.ClientKey, canonical)
		if err != nil {
			return err
		}
	}
	if signing.UserKey != nil {
		env.UserSignature = cryptoutils.SignUser(signing.UserKey, canonical)
	}
	return nil
}
