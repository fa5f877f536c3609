package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/credlink/credlink/fault"
)

const (
	// boltDirPerm is the permission mode for the database directory.
	boltDirPerm = fs.FileMode(0o700)

	// boltFilePerm is the permission mode for the database file. It holds
	// encrypted credential envelopes, so it must not be group readable.
	boltFilePerm = fs.FileMode(0o600)

	// boltOpenTimeout is the maximum time to wait for the bolt file lock.
	boltOpenTimeout = 5 * time.Second
)

// kvBucket holds every record; keys are namespace-prefixed by callers.
var kvBucket = []byte("kv")

// boltRecord is the on-disk envelope for one value. ExpiresAt is the
// unix-nano deadline, or zero for keys that never expire.
type boltRecord struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

func (r boltRecord) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() >= r.ExpiresAt
}

// BoltStore implements Store on an embedded bbolt database. bbolt keeps
// keys in byte order, so prefix scans walk a cursor directly. Expiry is
// enforced on read: expired records are treated as absent and removed
// lazily.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bolt-backed store at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), boltDirPerm); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := bolt.Open(path, boltFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fault.StoreUnavailable("opening store db", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fault.StoreUnavailable("initializing store db", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or a not-found error if the key is
// absent or expired.
func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte

	expired := false

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(kvBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}

		var rec boltRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}

		if rec.expired(time.Now()) {
			expired = true
			return nil
		}

		value = append([]byte(nil), rec.Value...)

		return nil
	})
	if err != nil {
		return nil, fault.StoreUnavailable("reading key", err)
	}

	if expired {
		// Reap outside the read transaction. Best effort: a failed
		// delete still reports not-found and the sweep in List will
		// retry later.
		_ = s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(kvBucket).Delete([]byte(key))
		})
	}

	if value == nil {
		return nil, fault.NotFound("key not found: "+key, nil)
	}

	return value, nil
}

// Set writes value under key, replacing any previous value.
func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	rec := boltRecord{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fault.StoreUnavailable("encoding record", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), data)
	})
	if err != nil {
		return fault.StoreUnavailable("writing key", err)
	}

	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(key))
	})
	if err != nil {
		return fault.StoreUnavailable("deleting key", err)
	}

	return nil
}

// List returns entries under prefix in key order. Expired records are
// skipped and reaped in the same transaction.
func (s *BoltStore) List(_ context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	var entries []Entry

	now := time.Now()
	pfx := []byte(prefix)

	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(kvBucket).Cursor()

		for k, v := c.Seek(pfx); k != nil && bytes.HasPrefix(k, pfx); k, v = c.Next() {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			if rec.expired(now) {
				if err := c.Delete(); err != nil {
					return err
				}

				continue
			}

			entries = append(entries, Entry{
				Key:   string(k),
				Value: append([]byte(nil), rec.Value...),
			})
		}

		return nil
	})
	if err != nil {
		return nil, fault.StoreUnavailable("scanning prefix", err)
	}

	if opts.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	return entries, nil
}

// Update applies fn to the current value of key inside a single write
// transaction, so concurrent read-modify-write sequences for the same
// key cannot lose updates.
func (s *BoltStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)

		var old []byte

		var oldExpiresAt int64

		if raw := b.Get([]byte(key)); raw != nil {
			var rec boltRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}

			if !rec.expired(time.Now()) {
				old = rec.Value
				oldExpiresAt = rec.ExpiresAt
			}
		}

		updated, err := fn(old)
		if err != nil {
			return err
		}

		if updated == nil {
			return b.Delete([]byte(key))
		}

		// A rewritten value keeps the key's existing deadline.
		data, err := json.Marshal(boltRecord{Value: updated, ExpiresAt: oldExpiresAt})
		if err != nil {
			return err
		}

		return b.Put([]byte(key), data)
	})
	if err != nil {
		// fn errors propagate unchanged so callers keep their own
		// classification (e.g. invalid-state on consumed auth state).
		if fault.KindOf(err) != "" {
			return err
		}

		return fault.StoreUnavailable("updating key", err)
	}

	return nil
}
