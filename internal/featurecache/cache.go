// Package featurecache keeps per-file chunk feature matrices in badger so that
// retraining does not decode and transform every song again.
package featurecache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	xxhash "github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"
)

type Cache struct {
	db *badger.DB
}

// Open opens (or creates) a cache in dir. An empty dir gives an in-memory cache.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key identifies a file's features under the given extraction settings. The file's
// size and modification time are folded in, so edited files miss the cache.
func Key(path string, featureLength int, chunkSeconds float64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	h := xxhash.New64()
	h.Write([]byte(path))
	var scratch [8]byte
	for _, v := range []uint64{
		uint64(info.Size()),
		uint64(info.ModTime().UnixNano()),
		uint64(featureLength),
		math.Float64bits(chunkSeconds),
	} {
		binary.LittleEndian.PutUint64(scratch[:], v)
		h.Write(scratch[:])
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, h.Sum64())
	return key, nil
}

// Get returns the cached matrix for key. ok is false on a miss.
func (c *Cache) Get(key []byte) (rows [][]float64, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&rows); err != nil {
				return fmt.Errorf("decoding cached features: %w", err)
			}
			ok = true
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return rows, ok, nil
}

func (c *Cache) Put(key []byte, rows [][]float64) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rows); err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

// Len counts the cached entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge removes every entry.
func (c *Cache) Purge() error {
	return c.db.DropAll()
}
