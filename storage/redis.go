package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/envelope-registry/interfaces"
)

const (
	redisScanBatch = 256
	redisNamespace = "envelope-registry"
)

// RedisStore is a KVStore kept in Redis under a namespace. Every key is also
// tracked in a sorted set so prefix iteration is ordered without SCAN.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	timeout   time.Duration
	log       *slog.Logger
}

// NewRedisStore wraps an existing client. Keys are stored as "<namespace>:<key>".
func NewRedisStore(rdb *redis.Client, namespace string, log *slog.Logger) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		namespace: namespace,
		timeout:   5 * time.Second,
		log:       log,
	}
}

// NewRedisStoreFromURL connects to redis://[user:pass@]host:port/db.
func NewRedisStoreFromURL(url, namespace string, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}
	return NewRedisStore(redis.NewClient(opts), namespace, log), nil
}

func (s *RedisStore) dataKey(key []byte) string {
	return s.namespace + ":" + string(key)
}

func (s *RedisStore) indexKey() string {
	return s.namespace + "#keys"
}

func (s *RedisStore) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.rdb.Get(ctx, s.dataKey(key)).Bytes()
	if err == redis.Nil {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return v, nil
}

// Apply runs all writes inside MULTI/EXEC.
func (s *RedisStore) Apply(writes []interfaces.KVWrite) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			if w.Value == nil {
				pipe.Del(ctx, s.dataKey(w.Key))
				pipe.ZRem(ctx, s.indexKey(), string(w.Key))
				continue
			}
			pipe.Set(ctx, s.dataKey(w.Key), w.Value, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: string(w.Key)})
		}
		return nil
	})
	if err != nil {
		s.log.Error("Redis apply failed", slog.Int("writes", len(writes)), "err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Members share score 0, so lexicographic ranges follow byte order.
	from := "[" + string(prefix)
	for {
		members, err := s.rdb.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
			Min:   from,
			Max:   "+",
			Count: redisScanBatch,
		}).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}

		var keys []string
		for _, m := range members {
			if !strings.HasPrefix(m, string(prefix)) {
				break
			}
			keys = append(keys, m)
		}
		if len(keys) == 0 {
			return nil
		}

		dataKeys := make([]string, len(keys))
		for i, k := range keys {
			dataKeys[i] = s.dataKey([]byte(k))
		}
		values, err := s.rdb.MGet(ctx, dataKeys...).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				// Deleted between the index read and MGET.
				continue
			}
			if err := fn([]byte(keys[i]), []byte(str)); err != nil {
				return err
			}
		}

		if len(keys) < len(members) || len(members) < redisScanBatch {
			return nil
		}
		from = "(" + keys[len(keys)-1]
	}
}

// Ping reports whether the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.Join(interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
