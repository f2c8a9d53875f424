// Package cache provides the request-level response cache: a bounded LRU
// whose entries expire after a TTL, keyed by normalized query text.
package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxSize = 256
	defaultTTL     = time.Hour
)

// Config sizes the cache.
type Config struct {
	MaxSize int
	TTL     time.Duration
}

// Cache is a TTL-bounded LRU keyed by string.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New builds a cache, falling back to defaults for zero config values.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](cfg.MaxSize, nil, cfg.TTL)}
}

// Get returns the entry for key, if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, evicting the oldest entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// NormalizeKey canonicalizes query text for cache lookup: lowercased with
// whitespace runs collapsed, so trivial retypes of a question still hit.
func NormalizeKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
