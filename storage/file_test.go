package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewFileBackend(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.True(t, b.Available(ctx))

	data := []byte("binary envelope")
	id, err := b.Store(ctx, data, interfaces.EnvelopeType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	// Storing the same content again is a no-op.
	again, err := b.Store(ctx, data, interfaces.EnvelopeType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := b.Fetch(ctx, id, interfaces.EnvelopeType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Content types are separate namespaces.
	_, err = b.Fetch(ctx, id, interfaces.ReportType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFactory(t *testing.T) {
	sf := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()

	locs, err := ParseLocations([]string{"file://" + dir})
	require.NoError(t, err)
	backend, err := sf.StorageBackendFor(locs[0])
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	_, err = ParseLocations([]string{"onchain://0x00"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	vaultLoc, err := interfaces.NewStorageBackendLocation("vault://localhost:8200/secret")
	require.NoError(t, err)
	_, err = sf.StorageBackendFor(vaultLoc)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	// Invalid entries are skipped as long as one backend remains.
	multi, err := sf.CreateMultiBackend([]interfaces.StorageBackendLocation{vaultLoc, locs[0]})
	require.NoError(t, err)
	assert.Equal(t, "multi-storage", multi.Name())

	_, err = sf.CreateMultiBackend([]interfaces.StorageBackendLocation{vaultLoc})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
