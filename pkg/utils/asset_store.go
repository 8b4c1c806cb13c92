package utils

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// AssetStore is a badger-backed key/value cache for downloaded assets.
type AssetStore struct {
	db *badger.DB
}

func OpenAssetStore(path string) (*AssetStore, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &AssetStore{db: db}, nil
}

func (s *AssetStore) Close() error {
	return s.db.Close()
}

func (s *AssetStore) Put(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get returns nil, nil when key is absent.
func (s *AssetStore) Get(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

func (s *AssetStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
