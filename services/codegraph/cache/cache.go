// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache is the TTL query cache in front of the retrieval engine,
// backed by embedded BadgerDB for low-latency local access.
//
// Entries are keyed by (query, topK, repository) and expire on a TTL, so
// repeated identical queries skip embedding and store round trips while
// staying reasonably fresh. Re-ingesting or deleting a repository
// invalidates its entries eagerly.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// DefaultTTL matches the freshness window queries are cached for.
const DefaultTTL = 5 * time.Minute

// keyPrefix namespaces query entries; the repository segment makes
// per-repository invalidation a prefix scan.
const keyPrefix = "q:"

// Config holds configuration for the query cache.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// testing.
	InMemory bool

	// TTL is the entry time-to-live. Default: DefaultTTL.
	TTL time.Duration
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// QueryCache caches retrieval results with a TTL.
//
// Thread safe: BadgerDB transactions provide isolation and the counters are
// atomic.
type QueryCache struct {
	db  *badger.DB
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens the cache database.
func Open(cfg Config) (*QueryCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("cache path is required for persistent mode")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	slog.Info("Query cache opened", "path", cfg.Path, "in_memory", cfg.InMemory, "ttl", cfg.TTL)
	return &QueryCache{db: db, ttl: cfg.TTL}, nil
}

// Close releases the underlying database.
func (c *QueryCache) Close() error {
	return c.db.Close()
}

// Get returns the cached results for a query, or (nil, false) on a miss.
// Expired entries count as misses.
func (c *QueryCache) Get(query string, topK int, repository string) ([]datatypes.RetrievedNode, bool) {
	key := cacheKey(query, topK, repository)

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("Cache read failed", "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	var results []datatypes.RetrievedNode
	if err := json.Unmarshal(raw, &results); err != nil {
		slog.Warn("Dropping undecodable cache entry", "error", err)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return results, true
}

// Set stores the results for a query under the configured TTL.
func (c *QueryCache) Set(query string, topK int, repository string, results []datatypes.RetrievedNode) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	key := cacheKey(query, topK, repository)
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, raw).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// InvalidateRepository drops all entries scoped to the named repository,
// plus the unscoped entries whose results may have included it.
func (c *QueryCache) InvalidateRepository(repository string) error {
	dropped := 0
	for _, prefix := range [][]byte{repoPrefix(repository), repoPrefix("")} {
		n, err := c.dropPrefix(prefix)
		if err != nil {
			return err
		}
		dropped += n
	}
	slog.Info("Invalidated cached queries", "repository", repository, "entries", dropped)
	return nil
}

// Stats returns the hit/miss counters.
func (c *QueryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *QueryCache) dropPrefix(prefix []byte) (int, error) {
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache prefix: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	return len(keys), nil
}

// cacheKey is "q:<repository>:<sha256 of query|topK|repository>".
func cacheKey(query string, topK int, repository string) []byte {
	sum := sha256.Sum256([]byte(query + "|" + strconv.Itoa(topK) + "|" + repository))
	return append(repoPrefix(repository), hex.EncodeToString(sum[:])...)
}

func repoPrefix(repository string) []byte {
	return []byte(keyPrefix + repository + ":")
}
