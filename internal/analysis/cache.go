package analysis

import (
	"context"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CheckCache is the two-tier fingerprint cache: a process-local expirable LRU
// in front of the shared Redis tier. Reads are lock-free per key; the single
// in-flight computation per fingerprint is the only writer for that key.
type CheckCache struct {
	local *expirable.LRU[string, models.ViolationCheck]
	ttl   time.Duration
}

// NewCheckCache returns a cache holding up to size entries for ttl.
func NewCheckCache(size int, ttl time.Duration) *CheckCache {
	if size <= 0 {
		size = 4096
	}
	return &CheckCache{
		local: expirable.NewLRU[string, models.ViolationCheck](size, nil, ttl),
		ttl:   ttl,
	}
}

// Get returns the cached check and the tier that answered ("local" or
// "redis"), or ok=false on a miss. A Redis hit backfills the local tier.
func (c *CheckCache) Get(ctx context.Context, fingerprint string) (*models.ViolationCheck, string, bool) {
	if check, ok := c.local.Get(fingerprint); ok {
		return &check, "local", true
	}

	var check models.ViolationCheck
	found, err := cache.GetJSON(ctx, cache.CheckKey(fingerprint), &check)
	if err != nil || !found {
		return nil, "", false
	}
	c.local.Add(fingerprint, check)
	return &check, "redis", true
}

// Set stores the check in both tiers. The Redis write is best-effort; a
// Redis outage degrades to local-only caching.
func (c *CheckCache) Set(ctx context.Context, fingerprint string, check models.ViolationCheck) {
	c.local.Add(fingerprint, check)
	_ = cache.SetJSON(ctx, cache.CheckKey(fingerprint), check, c.ttl)
}
