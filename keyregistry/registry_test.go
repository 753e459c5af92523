package keyregistry

import (
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ruteri/envelope-registry/algorithms"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testAlgorithm = "x25519-chacha20"

var (
	addr1     = interfaces.Address{1}
	addr2     = interfaces.Address{2}
	authority = interfaces.Address{0xaa}
)

type staticParams interfaces.Params

func (p staticParams) Params() interfaces.Params { return interfaces.Params(p) }

func testParams() staticParams {
	return staticParams{
		MaxRecipientsPerEnvelope: 10,
		MaxKeysPerAccount:        2,
		AllowedAlgorithms:        []string{"x25519-chacha20", "x25519-aes256gcm", "p256-aes256gcm"},
	}
}

func newTestRegistry(t require.TestingT, kv interfaces.KVStore) *Registry {
	params := testParams()
	algs, err := algorithms.NewRegistry(params, algorithms.DefaultCatalog()...)
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(kv, algs, params, NewSequenceClock(), log, authority)
}

func newKey(t require.TestingT, algorithmID string) []byte {
	pub, _, err := cryptoutils.GenerateRecipientKey(algorithmID)
	require.NoError(t, err)
	return pub
}

func TestRegister(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	pub := newKey(t, testAlgorithm)

	fp, err := r.Register(addr1, pub, testAlgorithm, "ops")
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeFingerprint(pub), fp)

	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, addr1, record.Address)
	assert.Equal(t, pub, record.PublicKey)
	assert.Equal(t, "ops", record.Label)
	assert.Equal(t, uint64(1), record.RegisteredAt)
	assert.True(t, record.IsActive())

	active, err := r.GetActiveKeys(addr1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, fp, active[0].KeyFingerprint)

	active, err = r.GetActiveKeys(addr2)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = r.GetByFingerprint(interfaces.ComputeFingerprint([]byte("nope")))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestRegisterRejections(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())

	// Deprecated, even though allowed by params.
	_, err := r.Register(addr1, newKey(t, "x25519-aes256gcm"), "x25519-aes256gcm", "")
	assert.ErrorIs(t, err, interfaces.ErrAlgorithmNotAllowed)
	// Published but not on the allow-list.
	_, err = r.Register(addr1, newKey(t, "mlkem768-aes256gcm"), "mlkem768-aes256gcm", "")
	assert.ErrorIs(t, err, interfaces.ErrAlgorithmNotAllowed)

	_, err = r.Register(addr1, []byte{1, 2, 3}, testAlgorithm, "")
	assert.ErrorIs(t, err, interfaces.ErrMalformedKey)
	// A valid X25519 key is not a valid P-256 point.
	_, err = r.Register(addr1, newKey(t, testAlgorithm), "p256-aes256gcm", "")
	assert.ErrorIs(t, err, interfaces.ErrMalformedKey)

	_, err = r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, strings.Repeat("x", MaxLabelLength+1))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLabel)
	_, err = r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "\xff")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLabel)

	active, err := r.GetActiveKeys(addr1)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDuplicateFingerprint(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	pub := newKey(t, testAlgorithm)

	fp, err := r.Register(addr1, pub, testAlgorithm, "")
	require.NoError(t, err)

	_, err = r.Register(addr1, pub, testAlgorithm, "")
	assert.ErrorIs(t, err, interfaces.ErrDuplicateFingerprint)
	_, err = r.Register(addr2, pub, testAlgorithm, "")
	assert.ErrorIs(t, err, interfaces.ErrDuplicateFingerprint)

	// Revoked fingerprints are never reused.
	require.NoError(t, r.Revoke(addr1, fp, addr1))
	_, err = r.Register(addr2, pub, testAlgorithm, "")
	assert.ErrorIs(t, err, interfaces.ErrDuplicateFingerprint)
}

func TestKeyLimit(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())

	fp1, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)
	_, err = r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)

	_, err = r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	assert.ErrorIs(t, err, interfaces.ErrKeyLimitExceeded)

	// Limits are per address.
	_, err = r.Register(addr2, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)

	// Revoked keys do not count.
	require.NoError(t, r.Revoke(addr1, fp1, addr1))
	_, err = r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "ops")
	require.NoError(t, err)

	err = r.Revoke(addr1, interfaces.ComputeFingerprint([]byte("unknown")), addr1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.ErrorIs(t, r.Revoke(addr1, fp, addr2), interfaces.ErrNotOwner)
	assert.ErrorIs(t, r.Revoke(addr2, fp, addr2), interfaces.ErrNotOwner)

	require.NoError(t, r.Revoke(addr1, fp, addr1))
	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.False(t, record.IsActive())
	assert.Greater(t, record.RevokedAt, record.RegisteredAt)

	assert.ErrorIs(t, r.Revoke(addr1, fp, addr1), interfaces.ErrAlreadyRevoked)
	assert.ErrorIs(t, r.UpdateLabel(addr1, fp, "new"), interfaces.ErrAlreadyRevoked)

	// Ownership is checked before revocation state.
	assert.ErrorIs(t, r.Revoke(addr1, fp, addr2), interfaces.ErrNotOwner)

	active, err := r.GetActiveKeys(addr1)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAuthorityRevoke(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)

	assert.True(t, r.isAuthority(authority))
	assert.False(t, r.isAuthority(addr1))
	assert.False(t, r.isAuthority(interfaces.Address{}))

	require.NoError(t, r.Revoke(addr1, fp, authority))
	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, addr1, record.Address)
	assert.False(t, record.IsActive())
}

func TestUpdateLabel(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "ops")
	require.NoError(t, err)

	require.NoError(t, r.UpdateLabel(addr1, fp, "prod"))
	require.NoError(t, r.UpdateLabel(addr1, fp, "prod-2"))
	assert.ErrorIs(t, r.UpdateLabel(addr2, fp, "mine"), interfaces.ErrNotOwner)
	assert.ErrorIs(t, r.UpdateLabel(addr1, fp, strings.Repeat("y", 200)), interfaces.ErrInvalidLabel)

	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, "prod-2", record.Label)
}

func TestActiveKeysOrder(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	fp1, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "first")
	require.NoError(t, err)
	fp2, err := r.Register(addr1, newKey(t, "p256-aes256gcm"), "p256-aes256gcm", "second")
	require.NoError(t, err)

	active, err := r.GetActiveKeys(addr1)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, fp1, active[0].KeyFingerprint)
	assert.Equal(t, fp2, active[1].KeyFingerprint)
}

// failingStore rejects every batch after the first n.
type failingStore struct {
	*storage.MemoryStore
	n int
}

func (s *failingStore) Apply(writes []interfaces.KVWrite) error {
	if s.n == 0 {
		return errors.New("disk full")
	}
	s.n--
	return s.MemoryStore.Apply(writes)
}

func TestFailedCommitLeavesNoState(t *testing.T) {
	kv := &failingStore{MemoryStore: storage.NewMemoryStore(), n: 1}
	r := newTestRegistry(t, kv)

	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "")
	require.NoError(t, err)

	pub := newKey(t, testAlgorithm)
	_, err = r.Register(addr1, pub, testAlgorithm, "")
	require.Error(t, err)
	_, err = r.GetByFingerprint(interfaces.ComputeFingerprint(pub))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.Error(t, r.Revoke(addr1, fp, addr1))
	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.True(t, record.IsActive())
}

func TestBadgerBackedRegistry(t *testing.T) {
	kv, err := storage.NewBadgerStore("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer kv.Close()

	r := newTestRegistry(t, kv)
	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "ops")
	require.NoError(t, err)
	require.NoError(t, r.Revoke(addr1, fp, addr1))
	assert.ErrorIs(t, r.Revoke(addr1, fp, addr1), interfaces.ErrAlreadyRevoked)
}

// Random operation sequences never resurrect a revoked key and never exceed the
// active key limit.
func TestRegistryProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := newTestRegistry(t, storage.NewMemoryStore())
		addrs := []interfaces.Address{addr1, addr2}
		var fps []interfaces.KeyFingerprint
		revoked := map[interfaces.KeyFingerprint]bool{}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			addr := rapid.SampledFrom(addrs).Draw(t, "addr")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				pub, _, err := cryptoutils.X25519{}.GenerateKeyPair(rand.Reader)
				require.NoError(t, err)
				fp, err := r.Register(addr, pub, testAlgorithm, "")
				if err == nil {
					fps = append(fps, fp)
				} else {
					require.ErrorIs(t, err, interfaces.ErrKeyLimitExceeded)
				}
			case 1, 2:
				if len(fps) == 0 {
					continue
				}
				fp := rapid.SampledFrom(fps).Draw(t, "fp")
				err := r.Revoke(addr, fp, addr)
				if err == nil {
					require.False(t, revoked[fp])
					revoked[fp] = true
				} else if revoked[fp] {
					require.True(t, errors.Is(err, interfaces.ErrAlreadyRevoked) || errors.Is(err, interfaces.ErrNotOwner))
				}
			}

			for _, a := range addrs {
				active, err := r.GetActiveKeys(a)
				require.NoError(t, err)
				require.LessOrEqual(t, len(active), int(testParams().MaxKeysPerAccount))
				for _, rec := range active {
					require.False(t, revoked[rec.KeyFingerprint])
				}
			}
		}
	})
}

func TestHeightClock(t *testing.T) {
	params := testParams()
	algs, err := algorithms.NewRegistry(params, algorithms.DefaultCatalog()...)
	require.NoError(t, err)
	clock := NewHeightClock(0)
	r := NewRegistry(storage.NewMemoryStore(), algs, params, clock, slog.New(slog.NewTextHandler(io.Discard, nil)), authority)

	assert.Equal(t, uint64(1), clock.Now())

	clock.SetHeight(5)
	fp, err := r.Register(addr1, newKey(t, testAlgorithm), testAlgorithm, "ops")
	require.NoError(t, err)

	clock.SetHeight(3)
	assert.Equal(t, uint64(5), clock.Now())

	clock.SetHeight(9)
	require.NoError(t, r.Revoke(addr1, fp, addr1))

	record, err := r.GetByFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), record.RegisteredAt)
	assert.Equal(t, uint64(9), record.RevokedAt)
}
