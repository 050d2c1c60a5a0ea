package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var resultsBucket = []byte("results")

// BoltStore implements Store backed by a bbolt file. Entries are indexed by
// key digest since bbolt caps keys at 32KiB.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt creates or opens the bbolt database at path. Only one process may
// hold the file; opening waits up to a second for the lock.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get looks the key up by digest and confirms the stored literal key matches
func (s *BoltStore) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// the returned slice is only valid inside the transaction
		record := tx.Bucket(resultsBucket).Get([]byte(keyDigest(key)))
		if record == nil {
			return nil
		}
		storedKey, storedValue, err := splitRecord(record)
		if err != nil {
			return err
		}
		if storedKey == key {
			value, ok = storedValue, true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reading result: %w", err)
	}
	return value, ok, nil
}

func (s *BoltStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(resultsBucket)
		id := []byte(keyDigest(key))
		if b.Get(id) != nil {
			return nil
		}
		return b.Put(id, joinRecord(key, value))
	})
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// A record is the uvarint length of the key, the key, then the value
func joinRecord(key, value string) []byte {
	record := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(key)+len(value)), uint64(len(key)))
	record = append(record, key...)
	return append(record, value...)
}

func splitRecord(record []byte) (key, value string, err error) {
	n, size := binary.Uvarint(record)
	if size <= 0 || uint64(len(record)-size) < n {
		return "", "", fmt.Errorf("%w: truncated record", ErrMalformedValue)
	}
	rest := record[size:]
	return string(rest[:n]), string(rest[n:]), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
