package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/medshift/staffing-platform/internal/identity"
)

type cacheEntry struct {
	fingerprint string
	set         PermissionSet
	expiresAt   time.Time
}

// ResolverCache memoizes Resolve output per user with a short TTL. Entries
// are fingerprinted by (role, grants hash, revocations hash) so a stale
// entry is also rejected when the underlying record changed between writes
// and invalidation.
type ResolverCache struct {
	mu      sync.RWMutex
	entries map[int64]cacheEntry
	ttl     time.Duration
	nowFn   func() time.Time
}

func NewResolverCache(ttl time.Duration) *ResolverCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ResolverCache{
		entries: make(map[int64]cacheEntry),
		ttl:     ttl,
		nowFn:   time.Now,
	}
}

// Resolve returns the effective permission set for the user, from cache when
// the fingerprint still matches and the TTL has not elapsed.
func (c *ResolverCache) Resolve(u *identity.User) PermissionSet {
	fp := fingerprint(u)
	now := c.nowFn()

	c.mu.RLock()
	entry, ok := c.entries[u.ID]
	c.mu.RUnlock()
	if ok && entry.fingerprint == fp && now.Before(entry.expiresAt) {
		return entry.set
	}

	set := ResolveUser(u)

	c.mu.Lock()
	c.entries[u.ID] = cacheEntry{
		fingerprint: fp,
		set:         set,
		expiresAt:   now.Add(c.ttl),
	}
	c.mu.Unlock()

	return set
}

// InvalidateUser drops the cached resolution for one user. Called on every
// identity store write to that user.
func (c *ResolverCache) InvalidateUser(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func fingerprint(u *identity.User) string {
	parts := []string{string(u.Role)}
	parts = append(parts, hashNames(u.PermissionGrants), hashNames(u.PermissionRevokes))
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func hashNames(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}
