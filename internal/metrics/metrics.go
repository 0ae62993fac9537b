// Package metrics implements the lightweight sent/skipped/error counters
// the agent surfaces to its logs. Grounded on the teacher's
// campaign_processor.go, which tracks totalSent/totalFailed/totalSkipped
// as atomic.Int64 fields and logs them periodically; the dedup cache in
// front of the counters is grounded on webitel-im-delivery-service's
// PeerEnricher, which fronts a hot lookup with a bounded
// hashicorp/golang-lru/v2 cache.
//
// Dedup matters here because a crash-and-rehydrate or a retried burst can
// cause the same recipient+campaign outcome to be observed twice in one
// process lifetime; Counters only counts the first observation of a given
// key, so a restart mid-burst doesn't inflate the numbers it logs.
package metrics

import (
	"log"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// dedupCacheSize bounds how many recently-seen keys Counters remembers.
// Large enough to cover a single continuous-send burst's recipients
// without unbounded growth across a long-lived agent process.
const dedupCacheSize = 10000

// Counters tracks how many recipient outcomes the agent has recorded
// since process start, deduplicated by an LRU-bounded set of keys.
type Counters struct {
	sent    atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64

	seen *lru.Cache[string, struct{}]
}

// New constructs a ready-to-use Counters.
func New() *Counters {
	seen, _ := lru.New[string, struct{}](dedupCacheSize)
	return &Counters{seen: seen}
}

// RecordSent increments the sent counter unless key has already been
// recorded (under any outcome) since it last fell out of the dedup cache.
func (c *Counters) RecordSent(key string) {
	if c.markSeen(key) {
		return
	}
	c.sent.Add(1)
}

// RecordSkipped increments the skipped counter, same dedup rule as RecordSent.
func (c *Counters) RecordSkipped(key string) {
	if c.markSeen(key) {
		return
	}
	c.skipped.Add(1)
}

// RecordError increments the error counter, same dedup rule as RecordSent.
func (c *Counters) RecordError(key string) {
	if c.markSeen(key) {
		return
	}
	c.errors.Add(1)
}

// markSeen reports whether key has already been recorded, adding it to the
// dedup set if not. An empty key is never deduplicated: callers that don't
// have a natural per-recipient key (e.g. a one-off administrative action)
// can pass "" to always count.
func (c *Counters) markSeen(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := c.seen.Get(key); ok {
		return true
	}
	c.seen.Add(key, struct{}{})
	return false
}

// Snapshot returns the current sent, skipped, and error totals.
func (c *Counters) Snapshot() (sent, skipped, errors int64) {
	return c.sent.Load(), c.skipped.Load(), c.errors.Load()
}

// Log writes the current totals to the standard logger, in the same
// sent/failed/skipped shape the teacher's processor logs on each campaign
// run.
func (c *Counters) Log() {
	sent, skipped, errors := c.Snapshot()
	log.Printf("metrics: sent=%d skipped=%d errors=%d", sent, skipped, errors)
}
