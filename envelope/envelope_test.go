package envelope

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	mrand "math/rand"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/keyregistry"
	"github.com/ruteri/envelope-registry/membership"
	"github.com/ruteri/envelope-registry/resolver"
	"github.com/ruteri/envelope-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	addr1 = interfaces.Address{1}
	addr2 = interfaces.Address{2}
	addr3 = interfaces.Address{3}
)

// mutableParams lets tests change policy after the components are wired.
type mutableParams struct {
	mu sync.Mutex
	p  interfaces.Params
}

func (m *mutableParams) Params() interfaces.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p
}

func (m *mutableParams) set(fn func(*interfaces.Params)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.p)
}

// view is the StateView the validator reads.
type view struct {
	params *mutableParams
	algs   *algorithms.Registry
	keys   *keyregistry.Registry
}

func (v view) Params() interfaces.Params { return v.params.Params() }
func (v view) GetActiveKeys(a interfaces.Address) ([]interfaces.RecipientKeyRecord, error) {
	return v.keys.GetActiveKeys(a)
}
func (v view) GetByFingerprint(fp interfaces.KeyFingerprint) (interfaces.RecipientKeyRecord, error) {
	return v.keys.GetByFingerprint(fp)
}
func (v view) Lookup(id string, version uint32) (interfaces.AlgorithmDescriptor, error) {
	return v.algs.Lookup(id, version)
}
func (v view) IsAllowed(id string) bool { return v.algs.IsAllowed(id) }

type fixture struct {
	params   *mutableParams
	algs     *algorithms.Registry
	keys     *keyregistry.Registry
	members  *membership.Static
	resolver *resolver.Resolver
	builder  *Builder
	view     view
}

func newFixture(t require.TestingT) *fixture {
	params := &mutableParams{p: interfaces.Params{
		MaxRecipientsPerEnvelope: 8,
		MaxKeysPerAccount:        4,
		AllowedAlgorithms:        []string{"x25519-chacha20", "x25519-xchacha20", "p256-aes256gcm", "mlkem768-aes256gcm"},
	}}
	algs, err := algorithms.NewRegistry(params, algorithms.DefaultCatalog()...)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := storage.NewMemoryStore()
	keys := keyregistry.NewRegistry(kv, algs, params, keyregistry.NewSequenceClock(), log)
	members := membership.NewStatic(nil, nil)
	res := resolver.NewResolver(kv, keys, members, params, log)

	return &fixture{
		params:   params,
		algs:     algs,
		keys:     keys,
		members:  members,
		resolver: res,
		builder:  NewBuilder(algs, keys, res, params, log),
		view:     view{params: params, algs: algs, keys: keys},
	}
}

type recipient struct {
	fp   interfaces.KeyFingerprint
	priv []byte
}

func (f *fixture) register(t require.TestingT, addr interfaces.Address, algorithmID, label string) recipient {
	pub, priv, err := cryptoutils.GenerateRecipientKey(algorithmID)
	require.NoError(t, err)
	fp, err := f.keys.Register(addr, pub, algorithmID, label)
	require.NoError(t, err)
	return recipient{fp: fp, priv: priv}
}

func TestOpsScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ops := f.register(t, addr1, "x25519-chacha20", "ops")

	env, err := f.builder.Build(ctx, []byte("hello"), "x25519-chacha20", interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{ops.fp}}, nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.EnvelopeVersion, env.Version)
	assert.Equal(t, interfaces.RecipientModeSpecific, env.RecipientMode)
	assert.Equal(t, uint32(1), env.AlgorithmVersion)
	require.Len(t, env.WrappedKeys, 1)
	assert.Equal(t, ops.fp, env.WrappedKeys[0].RecipientID)
	assert.NotContains(t, string(env.PayloadCiphertext), "hello")

	report := Validate(f.view, env)
	assert.Equal(t, interfaces.ValidationReport{
		Valid:             true,
		RecipientCount:    1,
		Algorithm:         "x25519-chacha20",
		SignatureValid:    true,
		AllKeysRegistered: true,
	}, report)

	payload, err := Open(env, ops.fp, ops.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)

	// After revocation the same envelope no longer validates.
	require.NoError(t, f.keys.Revoke(addr1, ops.fp, addr1))
	report = Validate(f.view, env)
	assert.False(t, report.Valid)
	assert.False(t, report.AllKeysRegistered)
	assert.Equal(t, []interfaces.KeyFingerprint{ops.fp}, report.MissingKeys)
	assert.True(t, strings.HasPrefix(report.Error, CategoryKeys), report.Error)
}

func TestMixedRecipientSchemes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var recipients []recipient
	for i, alg := range []string{"x25519-chacha20", "x25519-xchacha20", "p256-aes256gcm", "mlkem768-aes256gcm"} {
		addr := interfaces.Address{byte(10 + i)}
		recipients = append(recipients, f.register(t, addr, alg, alg))
		f.members.AddValidator(addr)
	}

	for _, payloadAlg := range []string{"x25519-xchacha20", "p256-aes256gcm"} {
		t.Run(payloadAlg, func(t *testing.T) {
			env, err := f.builder.Build(ctx, []byte("state snapshot"), payloadAlg, interfaces.FullValidatorSet{}, nil)
			require.NoError(t, err)
			require.Len(t, env.WrappedKeys, len(recipients))

			report := Validate(f.view, env)
			require.True(t, report.Valid, report.Error)

			for _, r := range recipients {
				payload, err := Open(env, r.fp, r.priv, f.algs)
				require.NoError(t, err)
				assert.Equal(t, []byte("state snapshot"), payload)
			}
		})
	}
}

func TestIndependentWraps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r1 := f.register(t, addr1, "x25519-chacha20", "")
	r2 := f.register(t, addr2, "x25519-chacha20", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp, r2.fp}}

	a, err := f.builder.Build(ctx, []byte("same"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)
	b, err := f.builder.Build(ctx, []byte("same"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.WrappedKeys[0].EphemeralPubKey, a.WrappedKeys[1].EphemeralPubKey)
	assert.NotEqual(t, a.WrappedKeys[0].EphemeralPubKey, b.WrappedKeys[0].EphemeralPubKey)
	assert.NotEqual(t, a.WrappedKeys[0].WrappedKey, b.WrappedKeys[0].WrappedKey)
	assert.NotEqual(t, a.PayloadNonce, b.PayloadNonce)
	assert.NotEqual(t, a.PayloadCiphertext, b.PayloadCiphertext)

	// A wrap only opens for the recipient it was made for.
	swapped := *a
	swapped.WrappedKeys = []interfaces.WrappedKeyEntry{a.WrappedKeys[1], a.WrappedKeys[0]}
	swapped.WrappedKeys[0].RecipientID, swapped.WrappedKeys[1].RecipientID = r1.fp, r2.fp
	_, err = Open(&swapped, r1.fp, r1.priv, f.algs)
	assert.ErrorIs(t, err, interfaces.ErrDecryptionFailed)

	_, err = Open(a, r1.fp, r2.priv, f.algs)
	assert.ErrorIs(t, err, interfaces.ErrDecryptionFailed)

	_, err = Open(a, interfaces.ComputeFingerprint([]byte("stranger")), r1.priv, f.algs)
	assert.ErrorIs(t, err, interfaces.ErrUnknownRecipient)
}

func TestSignatures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}

	clientKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, userKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signing := &SigningMaterial{ClientKey: clientKey, UserKey: userKey}

	env, err := f.builder.Build(ctx, []byte("signed"), "x25519-chacha20", sel, signing, WithMetadata(map[string]string{"chain": "test"}))
	require.NoError(t, err)
	assert.Equal(t, cryptoutils.ClientAddress(clientKey).String(), env.ClientID)
	assert.Len(t, env.ClientSignature, crypto.SignatureLength)
	assert.Len(t, env.UserSignature, ed25519.SignatureSize)

	report := Validate(f.view, env)
	require.True(t, report.Valid, report.Error)
	assert.True(t, report.SignatureValid)

	t.Run("tampered metadata", func(t *testing.T) {
		tampered := *env
		tampered.Metadata = map[string]string{"chain": "main"}
		report := Validate(f.view, &tampered)
		assert.False(t, report.Valid)
		assert.False(t, report.SignatureValid)
		assert.True(t, strings.HasPrefix(report.Error, CategorySignature), report.Error)
		assert.True(t, report.AllKeysRegistered)
	})

	t.Run("forged client id", func(t *testing.T) {
		forged := *env
		forged.ClientID = addr2.String()
		report := Validate(f.view, &forged)
		assert.False(t, report.SignatureValid)
	})

	t.Run("required", func(t *testing.T) {
		f.params.set(func(p *interfaces.Params) { p.RequireSignature = true })
		defer f.params.set(func(p *interfaces.Params) { p.RequireSignature = false })

		_, err := f.builder.Build(ctx, []byte("x"), "x25519-chacha20", sel, nil)
		assert.ErrorIs(t, err, interfaces.ErrSignatureRequired)
		_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", sel, &SigningMaterial{UserKey: userKey})
		assert.ErrorIs(t, err, interfaces.ErrSignatureRequired)

		unsigned := *env
		unsigned.ClientSignature = nil
		unsigned.UserSignature = nil
		report := Validate(f.view, &unsigned)
		assert.False(t, report.Valid)
		assert.Contains(t, report.Error, interfaces.ErrSignatureRequired.Error())

		assert.True(t, Validate(f.view, env).Valid)
	})
}

func TestValidateChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	r2 := f.register(t, addr2, "p256-aes256gcm", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp, r2.fp}}

	base, err := f.builder.Build(ctx, []byte("payload"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)
	require.True(t, Validate(f.view, base).Valid)

	clone := func() *interfaces.MultiRecipientEnvelope {
		env := *base
		env.WrappedKeys = append([]interfaces.WrappedKeyEntry(nil), base.WrappedKeys...)
		return &env
	}

	tests := []struct {
		name     string
		mutate   func(env *interfaces.MultiRecipientEnvelope)
		category string
	}{
		{"version", func(env *interfaces.MultiRecipientEnvelope) { env.Version = 2 }, CategoryStructural},
		{"unspecified mode", func(env *interfaces.MultiRecipientEnvelope) { env.RecipientMode = interfaces.RecipientModeUnspecified }, CategoryStructural},
		{"epoch outside committee mode", func(env *interfaces.MultiRecipientEnvelope) { env.CommitteeEpoch = 3 }, CategoryStructural},
		{"no wrapped keys", func(env *interfaces.MultiRecipientEnvelope) { env.WrappedKeys = nil }, CategoryStructural},
		{"missing algorithm", func(env *interfaces.MultiRecipientEnvelope) { env.AlgorithmID = "" }, CategoryStructural},
		{"duplicate recipient", func(env *interfaces.MultiRecipientEnvelope) { env.WrappedKeys[1] = env.WrappedKeys[0] }, CategoryStructural},
		{"unknown algorithm version", func(env *interfaces.MultiRecipientEnvelope) { env.AlgorithmVersion = 9 }, CategoryAlgorithm},
		{"disallowed algorithm", func(env *interfaces.MultiRecipientEnvelope) { env.AlgorithmID = "x25519-aes256gcm" }, CategoryAlgorithm},
		{"nonce size", func(env *interfaces.MultiRecipientEnvelope) { env.PayloadNonce = env.PayloadNonce[:8] }, CategoryAlgorithm},
		{"ephemeral size", func(env *interfaces.MultiRecipientEnvelope) {
			env.WrappedKeys[1].EphemeralPubKey = env.WrappedKeys[1].EphemeralPubKey[:32]
		}, CategoryAlgorithm},
		{"wrapped key size", func(env *interfaces.MultiRecipientEnvelope) {
			env.WrappedKeys[0].WrappedKey = append(bytes.Clone(env.WrappedKeys[0].WrappedKey), 0)
		}, CategoryAlgorithm},
		{"unknown wrap scheme", func(env *interfaces.MultiRecipientEnvelope) { env.WrappedKeys[0].Algorithm = "rot13" }, CategoryAlgorithm},
		{"unregistered recipient", func(env *interfaces.MultiRecipientEnvelope) {
			env.WrappedKeys[0].RecipientID = interfaces.ComputeFingerprint([]byte("nobody"))
		}, CategoryKeys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := clone()
			tt.mutate(env)
			report := Validate(f.view, env)
			assert.False(t, report.Valid)
			assert.True(t, strings.HasPrefix(report.Error, tt.category+":"), report.Error)
			assert.Equal(t, env.AlgorithmID, report.Algorithm)
			if tt.category != CategoryKeys {
				assert.False(t, report.SignatureValid)
			}
		})
	}
}

func TestValidateReportsEveryMissingKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	r2 := f.register(t, addr2, "x25519-chacha20", "")
	r3 := f.register(t, addr3, "x25519-chacha20", "")

	env, err := f.builder.Build(ctx, []byte("payload"), "x25519-chacha20", interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp, r2.fp, r3.fp}}, nil)
	require.NoError(t, err)

	require.NoError(t, f.keys.Revoke(addr1, r1.fp, addr1))
	require.NoError(t, f.keys.Revoke(addr3, r3.fp, addr3))
	env.Version = 7

	report := Validate(f.view, env)
	assert.False(t, report.Valid)
	assert.True(t, strings.HasPrefix(report.Error, CategoryStructural), report.Error)
	assert.Equal(t, []interfaces.KeyFingerprint{r1.fp, r3.fp}, report.MissingKeys)
	assert.False(t, report.AllKeysRegistered)
	assert.False(t, report.SignatureValid)
	assert.Equal(t, uint32(3), report.RecipientCount)
}

func TestBuildRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "p256-aes256gcm", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}

	_, err := f.builder.Build(ctx, []byte("x"), "x25519-aes256gcm", sel, nil)
	assert.ErrorIs(t, err, interfaces.ErrAlgorithmNotAllowed)

	_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", interfaces.FullValidatorSet{}, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoRecipients)

	_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", nil, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidRecipientMode)

	// Recipients whose key algorithm has been dropped from the allow-list are refused.
	f.params.set(func(p *interfaces.Params) {
		p.AllowedAlgorithms = []string{"x25519-chacha20"}
	})
	_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", sel, nil)
	assert.ErrorIs(t, err, interfaces.ErrAlgorithmNotAllowed)
}

func TestDeprecatedAlgorithmStillOpens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-xchacha20", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}

	env, err := f.builder.Build(ctx, []byte("archived"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)

	require.NoError(t, f.algs.Deprecate("x25519-chacha20", 1))

	_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", sel, nil)
	assert.ErrorIs(t, err, interfaces.ErrAlgorithmNotAllowed)

	report := Validate(f.view, env)
	assert.True(t, strings.HasPrefix(report.Error, CategoryAlgorithm), report.Error)

	payload, err := Open(env, r1.fp, r1.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("archived"), payload)
}

func TestDeprecatedVersionRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}

	v1, err := f.builder.Build(ctx, []byte("sealed under v1"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v1.AlgorithmVersion)

	desc, err := f.algs.Latest("x25519-chacha20")
	require.NoError(t, err)
	desc.Version = 2
	require.NoError(t, f.algs.Register(desc))
	require.NoError(t, f.algs.Deprecate("x25519-chacha20", 1))
	require.True(t, f.algs.IsAllowed("x25519-chacha20"))

	report := Validate(f.view, v1)
	assert.False(t, report.Valid)
	assert.True(t, strings.HasPrefix(report.Error, CategoryAlgorithm), report.Error)
	assert.Contains(t, report.Error, interfaces.ErrAlgorithmNotAllowed.Error())

	v2, err := f.builder.Build(ctx, []byte("sealed under v2"), "x25519-chacha20", sel, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v2.AlgorithmVersion)
	report = Validate(f.view, v2)
	assert.True(t, report.Valid, report.Error)

	payload, err := Open(v1, r1.fp, r1.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed under v1"), payload)
}

func TestCommitteeEnvelope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	f.members.SetCommittee([]interfaces.Address{addr1})
	_, err := f.resolver.SnapshotCommittee(ctx, 5)
	require.NoError(t, err)

	env, err := f.builder.Build(ctx, []byte("for the committee"), "x25519-chacha20", interfaces.Committee{Epoch: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.RecipientModeCommittee, env.RecipientMode)
	assert.Equal(t, uint64(5), env.CommitteeEpoch)
	assert.True(t, Validate(f.view, env).Valid)

	payload, err := Open(env, r1.fp, r1.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("for the committee"), payload)
}

func TestUpgradeLegacy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")

	env, err := f.builder.Build(ctx, []byte("old format"), "x25519-chacha20", interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}, nil)
	require.NoError(t, err)

	legacy := &interfaces.EncryptedPayloadEnvelope{
		Version:         1,
		AlgorithmID:     env.AlgorithmID,
		RecipientKeyIDs: []string{"0x" + strings.ToUpper(string(r1.fp))},
		EncryptedKeys:   [][]byte{env.WrappedKeys[0].WrappedKey},
		EphemeralPubKey: env.WrappedKeys[0].EphemeralPubKey,
		Nonce:           env.PayloadNonce,
		Ciphertext:      env.PayloadCiphertext,
		SenderSignature: []byte{1, 2, 3},
		Metadata:        map[string]string{"origin": "v0"},
	}

	upgraded, err := UpgradeLegacy(legacy, f.algs)
	require.NoError(t, err)
	assert.Equal(t, interfaces.RecipientModeSpecific, upgraded.RecipientMode)
	assert.Equal(t, []interfaces.KeyFingerprint{r1.fp}, upgraded.RecipientIDs())
	assert.Empty(t, upgraded.ClientSignature)
	assert.Equal(t, "v0", upgraded.Metadata["origin"])
	assert.True(t, Validate(f.view, upgraded).Valid)

	payload, err := Open(upgraded, r1.fp, r1.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("old format"), payload)

	legacy.EncryptedKeys = nil
	_, err = UpgradeLegacy(legacy, f.algs)
	assert.ErrorIs(t, err, interfaces.ErrMalformedCiphertext)
}

func TestBuildWithRandom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1 := f.register(t, addr1, "x25519-chacha20", "")
	sel := interfaces.Specific{Fingerprints: []interfaces.KeyFingerprint{r1.fp}}

	seeded := func(b byte) io.Reader {
		return mrand.New(mrand.NewSource(int64(b)))
	}
	build := func(random io.Reader) *interfaces.MultiRecipientEnvelope {
		env, err := f.builder.Build(ctx, []byte("seeded"), "x25519-chacha20", sel, nil, WithRandom(random))
		require.NoError(t, err)
		return env
	}

	// The payload key and nonce come from the supplied reader.
	first, second, other := build(seeded(1)), build(seeded(1)), build(seeded(2))
	assert.Equal(t, first.PayloadNonce, second.PayloadNonce)
	assert.Equal(t, first.PayloadCiphertext, second.PayloadCiphertext)
	assert.NotEqual(t, first.PayloadNonce, other.PayloadNonce)
	assert.NotEqual(t, first.PayloadCiphertext, other.PayloadCiphertext)

	payload, err := Open(first, r1.fp, r1.priv, f.algs)
	require.NoError(t, err)
	assert.Equal(t, []byte("seeded"), payload)

	failing := errors.New("entropy exhausted")
	_, err = f.builder.Build(ctx, []byte("x"), "x25519-chacha20", sel, nil, WithRandom(iotest.ErrReader(failing)))
	assert.ErrorIs(t, err, failing)
}

func TestCanonicalBytesIgnoreSignatures(t *testing.T) {
	env := &interfaces.MultiRecipientEnvelope{
		Version:     1,
		AlgorithmID: "x25519-chacha20",
		Metadata:    map[string]string{"b": "2", "a": "1"},
	}
	unsigned, err := CanonicalBytes(env)
	require.NoError(t, err)

	env.ClientSignature = []byte{1}
	env.UserSignature = []byte{2}
	signed, err := CanonicalBytes(env)
	require.NoError(t, err)
	assert.Equal(t, unsigned, signed)
	assert.Equal(t, []byte{1}, env.ClientSignature)

	env.ClientID = addr1.String()
	withID, err := CanonicalBytes(env)
	require.NoError(t, err)
	assert.NotEqual(t, unsigned, withID)
}

func TestBuildOpenProperty(t *testing.T) {
	f := newFixture(t)
	algs := []string{"x25519-chacha20", "x25519-xchacha20", "p256-aes256gcm", "mlkem768-aes256gcm"}
	var recipients []recipient
	for i, alg := range algs {
		recipients = append(recipients, f.register(t, interfaces.Address{byte(0x40 + i)}, alg, ""))
	}

	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload")
		payloadAlg := rapid.SampledFrom(algs).Draw(t, "algorithm")
		picked := rapid.SliceOfNDistinct(rapid.IntRange(0, len(recipients)-1), 1, len(recipients), rapid.ID[int]).Draw(t, "recipients")
		metadata := rapid.MapOfN(rapid.StringMatching(`[a-z]{1,8}`), rapid.String(), 0, 4).Draw(t, "metadata")

		fps := make([]interfaces.KeyFingerprint, len(picked))
		for i, idx := range picked {
			fps[i] = recipients[idx].fp
		}

		env, err := f.builder.Build(context.Background(), payload, payloadAlg, interfaces.Specific{Fingerprints: fps}, nil, WithMetadata(metadata))
		require.NoError(t, err)

		report := Validate(f.view, env)
		require.True(t, report.Valid, report.Error)
		require.Equal(t, uint32(len(fps)), report.RecipientCount)

		for _, idx := range picked {
			got, err := Open(env, recipients[idx].fp, recipients[idx].priv, f.algs)
			require.NoError(t, err)
			require.True(t, bytes.Equal(payload, got))
		}
	})
}
