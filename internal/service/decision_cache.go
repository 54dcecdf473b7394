package service

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/action"
	"github.com/hoshdog/ignition-llm-gateway-sub002/internal/domain/policy"
)

const (
	defaultDecisionCacheSize = 4096
	defaultDecisionCacheTTL  = 30 * time.Second
)

// decisionCache is a TTL-bounded LRU for advisory policy decisions. Keys are
// xxhash digests of the evaluation inputs, so hot repeated evaluations (an
// agent probing the same resource in a loop) skip rule execution. Authorize
// never consults it; only Evaluate does.
type decisionCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	entries map[uint64]*list.Element
	now     func() time.Time
}

type decisionEntry struct {
	key      uint64
	decision policy.Decision
	expires  time.Time
}

func newDecisionCache(maxSize int, ttl time.Duration) *decisionCache {
	if maxSize <= 0 {
		maxSize = defaultDecisionCacheSize
	}
	if ttl <= 0 {
		ttl = defaultDecisionCacheTTL
	}
	return &decisionCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[uint64]*list.Element),
		now:     time.Now,
	}
}

// key hashes the fields that determine a decision. Payload contents are
// excluded: rules see only the action shape, never the data.
func (c *decisionCache) key(act *action.Action, userID string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(userID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(act.Type))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(act.ResourceType))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(act.ResourcePath)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatBool(act.Options.DryRun))
	_, _ = d.WriteString(strconv.FormatBool(act.Options.Force))
	_, _ = d.WriteString(strconv.FormatBool(act.IsDestructive()))
	_, _ = d.WriteString(strconv.FormatBool(act.Recursive))
	return d.Sum64()
}

func (c *decisionCache) get(key uint64) (policy.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return policy.Decision{}, false
	}
	entry := elem.Value.(*decisionEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return policy.Decision{}, false
	}
	c.order.MoveToFront(elem)
	return entry.decision, true
}

func (c *decisionCache) put(key uint64, decision policy.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*decisionEntry)
		entry.decision = decision
		entry.expires = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}
	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*decisionEntry).key)
	}
	elem := c.order.PushFront(&decisionEntry{
		key:      key,
		decision: decision,
		expires:  c.now().Add(c.ttl),
	})
	c.entries[key] = elem
}

// purge removes every cached decision, used when rules change at runtime.
func (c *decisionCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[uint64]*list.Element)
}

func (c *decisionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
