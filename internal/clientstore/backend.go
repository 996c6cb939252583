// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package clientstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPlaceholders = []byte("placeholders")
	bucketCheckpoints  = []byte("checkpoints")
	bucketDrafts       = []byte("drafts")
	bucketTranscripts  = []byte("transcripts")

	allBuckets = [][]byte{bucketPlaceholders, bucketCheckpoints, bucketDrafts, bucketTranscripts}
)

// backend is a bucketed key/value store.
type backend interface {
	get(bucket, key []byte) ([]byte, error)
	put(bucket, key, val []byte) error
	del(bucket, key []byte) error
	scan(bucket, prefix []byte, fn func(k, v []byte) error) error
	close() error
}

type boltBackend struct {
	db *bolt.DB
}

func openBolt(path string) (*boltBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("client state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open client state: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init client state: %w", err)
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) get(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return nil
		}
		if v := bk.Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (b *boltBackend) put(bucket, key, val []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return bk.Put(key, val)
	})
}

func (b *boltBackend) del(bucket, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return nil
		}
		return bk.Delete(key)
	})
}

func (b *boltBackend) scan(bucket, prefix []byte, fn func(k, v []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return nil
		}
		c := bk.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBackend) close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

type memBackend struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{buckets: make(map[string]map[string][]byte)}
}

func (m *memBackend) get(bucket, key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.buckets[string(bucket)][string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memBackend) put(bucket, key, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bk := m.buckets[string(bucket)]
	if bk == nil {
		bk = make(map[string][]byte)
		m.buckets[string(bucket)] = bk
	}
	bk[string(key)] = append([]byte(nil), val...)
	return nil
}

func (m *memBackend) del(bucket, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[string(bucket)], string(key))
	return nil
}

func (m *memBackend) scan(bucket, prefix []byte, fn func(k, v []byte) error) error {
	m.mu.Lock()
	bk := m.buckets[string(bucket)]
	keys := make([]string, 0, len(bk))
	for k := range bk {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = bk[k]
	}
	m.mu.Unlock()

	for i, k := range keys {
		if err := fn([]byte(k), vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memBackend) close() error { return nil }
