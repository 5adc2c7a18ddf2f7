// SPDX-License-Identifier: MIT

package cache

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerCache is a disk-backed implementation of Cache. It serves the same
// lookaside role as RedisCache when no Redis instance is reachable: slower
// than in-memory, but survives process restarts and needs no network
// dependency, which matters for a single-instance worker deployment.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// NewBadgerCache opens (or creates) a Badger database rooted at path.
func NewBadgerCache(path string, logger zerolog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("opened badger-backed cache")
	return &BadgerCache{db: db, logger: logger}, nil
}

// Get retrieves and JSON-decodes a cached value. Like RedisCache, the
// decoded value's concrete type follows JSON's number/slice/map rules
// rather than round-tripping the original Go type.
func (c *BadgerCache) Get(key string) (any, bool) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		c.stats.misses.Add(1)
		return nil, false
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger cache: json unmarshal failed")
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return out, true
}

// Set JSON-encodes value and stores it under key with the given TTL.
// Badger records expiry in whole Unix seconds, so TTLs have one-second
// granularity.
func (c *BadgerCache) Set(key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger cache: json marshal failed")
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger cache: set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes key.
func (c *BadgerCache) Delete(key string) {
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger cache: delete failed")
	}
}

// Clear drops every key in the database.
func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("badger cache: clear failed")
	}
}

// Stats returns cache performance counters. CurrentSize is not an entry
// count: Badger has no O(1) key count, so it reports the on-disk LSM plus
// value-log size estimate in KiB.
func (c *BadgerCache) Stats() CacheStats {
	lsm, vlog := c.db.Size()
	size := 0
	if lsm+vlog > 0 {
		size = int((lsm + vlog) / 1024)
	}
	return CacheStats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		Evictions:   c.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Close releases the underlying Badger database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
