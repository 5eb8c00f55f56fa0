// Package modcache is the module symbol table cache: a content-addressed
// store mapping (module FQN, version) to a resolved snapshot. It is the unit
// of incrementality and the sole de-duplication point across a batch — a
// module imported by N files is resolved exactly once per version.
package modcache

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/saidctb/pykythe/internal/facts"
	"github.com/saidctb/pykythe/internal/symtab"
)

// ErrDivergent reports two inserts of different content under an identical
// key. Resolution is defined to be deterministic for a fixed version, so
// this is a version-key defect: fatal for the whole run, never reconciled
// by last-write-wins.
var ErrDivergent = errors.New("modcache: divergent content for identical key")

// Entry is one immutable cache entry: the finalized snapshot for a module
// at a version. Entries are never mutated after creation.
type Entry struct {
	ModuleFQN string                         `json:"module_fqn"`
	Version   string                         `json:"version"`
	Exports   *symtab.SymbolTable            `json:"exports"`
	Members   map[string]*symtab.SymbolTable `json:"members,omitempty"`
	Facts     []facts.Fact                   `json:"facts"`
}

// encode produces the entry's canonical payload. encoding/json writes map
// keys in sorted order and the symbol tables marshal as ordered arrays, so
// identical content always yields identical bytes.
func (e *Entry) encode() ([]byte, string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, "", fmt.Errorf("modcache: encode entry %s: %w", e.ModuleFQN, err)
	}
	return payload, fmt.Sprintf("%x", sha256.Sum256(payload)), nil
}

type cacheKey struct {
	fqn     string
	version string
}

type cached struct {
	entry       *Entry
	fingerprint string
}

// Cache combines an in-memory map with optional SQLite write-through
// persistence. All methods are safe for concurrent use; concurrent inserts
// for the same key reconcile as idempotent writes.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cached
	store   *Store // nil for memory-only caches
}

// NewCache creates a cache. store may be nil for a memory-only cache.
func NewCache(store *Store) *Cache {
	return &Cache{
		entries: make(map[cacheKey]cached),
		store:   store,
	}
}

// Lookup returns the entry for (fqn, version). A persisted entry is pulled
// into memory on first hit.
func (c *Cache) Lookup(fqn, version string) (*Entry, bool, error) {
	key := cacheKey{fqn, version}
	c.mu.RLock()
	hit, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return hit.entry, true, nil
	}
	if c.store == nil {
		return nil, false, nil
	}

	payload, fingerprint, found, err := c.store.Get(fqn, version)
	if err != nil || !found {
		return nil, false, err
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false, fmt.Errorf("modcache: decode persisted entry %s: %w", fqn, err)
	}
	c.mu.Lock()
	c.entries[key] = cached{entry: &entry, fingerprint: fingerprint}
	c.mu.Unlock()
	return &entry, true, nil
}

// Insert records an entry. Inserting the same key twice with equal content
// is a no-op; different content under the same key returns ErrDivergent.
func (c *Cache) Insert(entry *Entry) error {
	payload, fingerprint, err := entry.encode()
	if err != nil {
		return err
	}
	key := cacheKey{entry.ModuleFQN, entry.Version}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		c.mu.Unlock()
		if existing.fingerprint != fingerprint {
			return fmt.Errorf("%w: module %s version %s", ErrDivergent, entry.ModuleFQN, entry.Version)
		}
		return nil
	}
	c.entries[key] = cached{entry: entry, fingerprint: fingerprint}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.Put(entry.ModuleFQN, entry.Version, fingerprint, payload)
}

// Invalidate drops every entry recorded under version. Invalidation is
// coarse-grained by design: a single module's entry is never partially
// corrected.
func (c *Cache) Invalidate(version string) error {
	c.mu.Lock()
	for key := range c.entries {
		if key.version == version {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.DeleteVersion(version)
}

// Clear drops every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[cacheKey]cached)
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases the persistence layer, if any.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
