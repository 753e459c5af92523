package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/ruteri/envelope-registry/interfaces"
)

// BadgerStore is a KVStore backed by an embedded BadgerDB instance.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerStore opens (or creates) a database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	log.Debug("Opened badger store", slog.String("dir", dir), slog.Bool("in_memory", dir == ""))
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return value, nil
}

// Apply commits all writes in a single read-write transaction.
func (s *BadgerStore) Apply(writes []interfaces.KVWrite) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			var err error
			if w.Value == nil {
				err = txn.Delete(w.Key)
			} else {
				err = txn.Set(w.Key, w.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger apply: %w", err)
	}
	return nil
}

func (s *BadgerStore) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
