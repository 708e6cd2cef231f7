package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Kind names the cacheable artifact families with distinct TTLs.
type Kind string

const (
	KindMacro    Kind = "macro"
	KindPolicy   Kind = "policy"
	KindSector   Kind = "sector"
	KindArtifact Kind = "artifact" // generic analyst artifact, keyed by {kind, symbol, day}
)

// TTLs holds the per-kind TTL table. The 5-minute snapshot TTL lives in
// the in-memory tier (MemoryStore), not here.
type TTLs struct {
	Macro    time.Duration
	Policy   time.Duration
	Sector   time.Duration
	Artifact time.Duration
}

// DefaultTTLs: macro 24h, policy news 6h, sector flows 1h. Analyst
// artifacts get 24h, the same horizon as macro, since they are derived from
// daily research and re-running an analyst node within the same trading day
// should hit cache.
func DefaultTTLs() TTLs {
	return TTLs{
		Macro:    24 * time.Hour,
		Policy:   6 * time.Hour,
		Sector:   1 * time.Hour,
		Artifact: 24 * time.Hour,
	}
}

func (t TTLs) forKind(k Kind) time.Duration {
	switch k {
	case KindMacro:
		return t.Macro
	case KindPolicy:
		return t.Policy
	case KindSector:
		return t.Sector
	default:
		return t.Artifact
	}
}

// Key builds the canonical "{kind}:{symbol?}:{date-bucket}" key. symbol
// may be empty for market-wide artifacts like macro data.
func Key(kind Kind, symbol, dateBucket string) string {
	if symbol == "" {
		return fmt.Sprintf("%s::%s", kind, dateBucket)
	}
	return fmt.Sprintf("%s:%s:%s", kind, symbol, dateBucket)
}

// Cache is the tier facade the rest of the AOC talks to: a persistent tier
// plus single-flight coalescing of concurrent misses on the same key. The
// in-memory snapshot tier is addressed directly via MemoryStore by the
// snapshot engine, since its TTL and eviction policy are unrelated to the
// persistent tiers this type manages.
type Cache struct {
	store *PersistentStore
	ttls  TTLs
	group singleflight.Group
}

// New builds a Cache over the given persistent store and TTL table.
func New(store *PersistentStore, ttls TTLs) *Cache {
	return &Cache{store: store, ttls: ttls}
}

// Get implements the get(key) -> (payload, age) | miss contract.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, time.Duration, bool) {
	doc, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, 0, false
	}
	return doc.Payload, time.Since(doc.CreatedAt), true
}

// Put implements put(key, payload) as an idempotent replace.
func (c *Cache) Put(ctx context.Context, kind Kind, key string, payload json.RawMessage) error {
	return c.store.Put(ctx, key, payload, c.ttls.forKind(kind))
}

// Invalidate explicitly deletes a key ahead of its TTL.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.store.Invalidate(ctx, key)
}

// Degraded reports whether the persistent tier is currently unreachable.
func (c *Cache) Degraded() bool {
	return c.store.Degraded()
}

// GetOrCompute is the cache-aside pattern the Probe and every analyst tool
// call use: on a hit, return the cached payload; on a miss, run compute
// exactly once even if N goroutines race on the same key, then cache and
// return the fresh result.
//
// A per-key wait timeout is not implemented as a separate mechanism here:
// singleflight.Group already blocks followers only until the one in-flight
// call returns, and every compute func is expected to honor ctx's deadline
// internally (the Facade's per-call timeouts), which bounds the wait
// without a second timer. A caller whose context expires gets ctx.Err()
// back immediately rather than blocking past it.
func (c *Cache) GetOrCompute(ctx context.Context, kind Kind, key string, compute func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if payload, _, ok := c.Get(ctx, key); ok {
		return payload, nil
	}

	type result struct {
		payload json.RawMessage
		err     error
	}

	resCh := make(chan result, 1)
	go func() {
		v, err, _ := c.group.Do(key, func() (any, error) {
			payload, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			if putErr := c.Put(ctx, kind, key, payload); putErr != nil {
				// persistence failure never invalidates a freshly computed
				// result; the cache tier degrading is not the caller's problem.
				_ = putErr
			}
			return payload, nil
		})
		if err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{payload: v.(json.RawMessage)}
	}()

	select {
	case r := <-resCh:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
