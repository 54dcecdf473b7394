package service

import (
	"testing"
	"time"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

func TestDecisionCacheRoundTrip(t *testing.T) {
	cache := newDecisionCache(8, time.Minute)
	key := cache.key(readAction(), "u1")

	if _, ok := cache.get(key); ok {
		t.Fatal("empty cache returned a hit")
	}

	want := policy.Decision{Effect: policy.EffectDeny, Reason: "blocked"}
	cache.put(key, want)

	got, ok := cache.get(key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got != want {
		t.Errorf("decision = %+v, want %+v", got, want)
	}
}

func TestDecisionCacheKeyDiscriminates(t *testing.T) {
	cache := newDecisionCache(8, time.Minute)
	base := cache.key(readAction(), "u1")

	if cache.key(readAction(), "u2") == base {
		t.Error("different users share a key")
	}
	if cache.key(deleteAction(), "u1") == base {
		t.Error("different action types share a key")
	}

	dryRun := action.NewRead(action.ReadSpec{
		CorrelationID: "c-read",
		ResourceType:  action.ResourceTag,
		ResourcePath:  "plc1/motor",
		Options:       action.Options{DryRun: true},
	})
	if cache.key(dryRun, "u1") == base {
		t.Error("dry-run flag does not affect the key")
	}
}

func TestDecisionCacheEvictsLRU(t *testing.T) {
	cache := newDecisionCache(2, time.Minute)

	k1 := cache.key(readAction(), "u1")
	k2 := cache.key(readAction(), "u2")
	k3 := cache.key(readAction(), "u3")

	cache.put(k1, policy.Decision{Effect: policy.EffectAllow})
	cache.put(k2, policy.Decision{Effect: policy.EffectAllow})

	// Touch k1 so k2 is the eviction candidate.
	if _, ok := cache.get(k1); !ok {
		t.Fatal("k1 missing before eviction")
	}

	cache.put(k3, policy.Decision{Effect: policy.EffectAllow})

	if _, ok := cache.get(k2); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := cache.get(k1); !ok {
		t.Error("recently used entry was evicted")
	}
	if got := cache.len(); got != 2 {
		t.Errorf("len = %d, want 2", got)
	}
}

func TestDecisionCacheTTL(t *testing.T) {
	cache := newDecisionCache(8, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	key := cache.key(readAction(), "u1")
	cache.put(key, policy.Decision{Effect: policy.EffectAllow})

	now = now.Add(59 * time.Second)
	if _, ok := cache.get(key); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := cache.get(key); ok {
		t.Error("entry survived past its TTL")
	}
	if got := cache.len(); got != 0 {
		t.Errorf("len = %d after expiry, want 0", got)
	}
}

func TestDecisionCachePurge(t *testing.T) {
	cache := newDecisionCache(8, time.Minute)
	cache.put(cache.key(readAction(), "u1"), policy.Decision{Effect: policy.EffectAllow})
	cache.put(cache.key(readAction(), "u2"), policy.Decision{Effect: policy.EffectAllow})

	cache.purge()

	if got := cache.len(); got != 0 {
		t.Errorf("len = %d after purge, want 0", got)
	}
}
