package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/envelope-registry/interfaces"
)

// StorageBackendFactory creates archive backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - file:///var/lib/envelopes
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=us-west-2&endpoint=minio:9000
//   - ipfs://host:5001/root?timeout=30s
//   - vault://vault.example.com:8200/mount/path?token=...&tls=true
func (sf *StorageBackendFactory) StorageBackendFor(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating storage backend", slog.String("scheme", loc.Scheme), slog.String("host", loc.Host))

	switch {
	case loc.IsFile():
		return sf.createFileBackend(loc)
	case loc.IsS3():
		return sf.createS3Backend(loc)
	case loc.IsIPFS():
		return sf.createIPFSBackend(loc)
	case loc.IsVault():
		return sf.createVaultBackend(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend skips URIs that fail to produce a backend and errors only
// if none remain.
func (sf *StorageBackendFactory) CreateMultiBackend(locs []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locs))

	for _, loc := range locs {
		backend, err := sf.StorageBackendFor(loc)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", loc.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no valid storage backends created", interfaces.ErrInvalidLocationURI)
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// ParseLocations is a convenience wrapper around NewStorageBackendLocation.
func ParseLocations(uris []string) ([]interfaces.StorageBackendLocation, error) {
	locs := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func (sf *StorageBackendFactory) createFileBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	// file://relative/dir puts the first segment in Host.
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, loc)
	}
	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidLocationURI, loc)
	}

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	}

	return NewS3Backend(loc.Host, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, found := strings.Cut(loc.Host, ":")
	if !found {
		port = "5001"
	}

	timeout := 30 * time.Second
	if t := loc.GetParam("timeout"); t != "" {
		var err error
		if timeout, err = time.ParseDuration(t); err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, t)
		}
	}

	return NewIPFSBackend(host, port, loc.Path, timeout, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	mount, dataPath, found := strings.Cut(strings.Trim(loc.Path, "/"), "/")
	if !found || mount == "" || dataPath == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if loc.Query.Has("tls") && !loc.GetParamBool("tls") {
		scheme = "http"
	}

	return NewVaultBackend(scheme+"://"+loc.Host, mount, dataPath, loc.GetParam("token"), sf.log)
}

// OpenKV opens the committed-state store named by uri:
//
//   - "" or "memory" for a MemoryStore
//   - badger:///var/lib/envelope-registry/state (badger:// alone is in-memory)
//   - redis://[user:pass@]host:port/db or rediss://... for a RedisStore
func OpenKV(uri string, log *slog.Logger) (interfaces.KVStore, error) {
	switch {
	case uri == "" || uri == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(uri, "badger://"):
		return NewBadgerStore(strings.TrimPrefix(uri, "badger://"), log)
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return NewRedisStoreFromURL(uri, redisNamespace, log)
	default:
		return nil, fmt.Errorf("%w: unsupported state store %q", interfaces.ErrInvalidLocationURI, uri)
	}
}
