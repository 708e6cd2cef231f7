package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_PutGetRoundTripAndTTLExpiry(t *testing.T) {
	dir := t.TempDir()
	store := NewPersistentStore(nil, dir)
	c := New(store, TTLs{Macro: 30 * time.Millisecond, Policy: time.Hour, Sector: time.Hour, Artifact: time.Hour})

	ctx := context.Background()
	key := Key(KindMacro, "", "2026-07-31")
	payload := json.RawMessage(`{"gdp":5.2}`)

	if err := c.Put(ctx, KindMacro, key, payload); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, _, ok := c.Get(ctx, key)
	if !ok || string(got) != string(payload) {
		t.Fatalf("expected cache hit with matching payload, got ok=%v got=%s", ok, got)
	}

	time.Sleep(50 * time.Millisecond)

	if _, _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestCache_SingleFlightCoalescesConcurrentMisses(t *testing.T) {
	dir := t.TempDir()
	store := NewPersistentStore(nil, dir)
	c := New(store, DefaultTTLs())

	var calls int32
	compute := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return json.RawMessage(`{"v":1}`), nil
	}

	const n = 8
	results := make(chan json.RawMessage, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := c.GetOrCompute(context.Background(), KindSector, "sector::2026-07-31", compute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- v
		}()
	}

	for i := 0; i < n; i++ {
		<-results
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected producer invoked exactly once, got %d", got)
	}
}
