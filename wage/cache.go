package wage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// DERIVATION CACHE
// =============================================================================
//
// Memoizes break-time and weekly-allowance results. Keys are built from every
// input the calculator reads, so a hit is always equal to a fresh
// computation as long as the policy fingerprints are complete.
//
// Reads load an immutable snapshot through an atomic pointer and never block.
// Writers take the mutex, copy the snapshot, add one entry and publish the
// copy. Invalidate publishes an empty snapshot.

// Cache kinds reported to a CacheObserver.
const (
	CacheKindBreak  = "break_time"
	CacheKindWeekly = "weekly_allowance"
)

// DefaultCacheEntries bounds each map; a full map is dropped on next write.
const DefaultCacheEntries = 4096

// CacheObserver receives cache events. Implementations must be safe for
// concurrent use.
type CacheObserver interface {
	CacheHit(kind string)
	CacheMiss(kind string)
	CacheInvalidated()
}

type cacheSnapshot struct {
	breaks map[string]BreakTime
	weekly map[string]WeeklyAllowance
}

func emptySnapshot() *cacheSnapshot {
	return &cacheSnapshot{
		breaks: make(map[string]BreakTime),
		weekly: make(map[string]WeeklyAllowance),
	}
}

// Cache is safe for concurrent use. The zero value is not usable; call NewCache.
type Cache struct {
	snap       atomic.Pointer[cacheSnapshot]
	mu         sync.Mutex
	maxEntries int
	observer   CacheObserver
}

// NewCache builds an empty cache. observer may be nil.
func NewCache(observer CacheObserver) *Cache {
	c := &Cache{maxEntries: DefaultCacheEntries, observer: observer}
	c.snap.Store(emptySnapshot())
	return c
}

// BreakTime returns the cached break for (duration, policy), computing it on
// a miss.
func (c *Cache) BreakTime(worked time.Duration, policy BreakPolicy) BreakTime {
	key := fmt.Sprintf("%d|%s", worked/time.Minute, policy.Fingerprint())
	if bt, ok := c.snap.Load().breaks[key]; ok {
		c.hit(CacheKindBreak)
		return bt
	}
	c.miss(CacheKindBreak)
	bt := CalculateBreakTime(worked, policy)

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	next := &cacheSnapshot{breaks: c.grow(cur.breaks), weekly: cur.weekly}
	next.breaks[key] = bt
	c.snap.Store(next)
	return bt
}

// WeeklyAllowance returns the cached weekly result for (records, job),
// computing it on a miss. Record order does not affect the key.
func (c *Cache) WeeklyAllowance(records []RatedSession, job Job) WeeklyAllowance {
	key := weeklyKey(records, job)
	if wa, ok := c.snap.Load().weekly[key]; ok {
		c.hit(CacheKindWeekly)
		return wa
	}
	c.miss(CacheKindWeekly)
	wa := calculateWeeklyAllowance(records, job, c.BreakTime)

	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.snap.Load()
	next := &cacheSnapshot{breaks: cur.breaks, weekly: c.growWeekly(cur.weekly)}
	next.weekly[key] = wa
	c.snap.Store(next)
	return wa
}

// Invalidate drops every entry. It must be called after any job policy or
// hourly rate change.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap.Store(emptySnapshot())
	c.mu.Unlock()
	if c.observer != nil {
		c.observer.CacheInvalidated()
	}
}

// Len returns the number of cached break and weekly entries.
func (c *Cache) Len() (breaks, weekly int) {
	s := c.snap.Load()
	return len(s.breaks), len(s.weekly)
}

func (c *Cache) hit(kind string) {
	if c.observer != nil {
		c.observer.CacheHit(kind)
	}
}

func (c *Cache) miss(kind string) {
	if c.observer != nil {
		c.observer.CacheMiss(kind)
	}
}

// grow copies m for the next snapshot, starting over when m is full.
func (c *Cache) grow(m map[string]BreakTime) map[string]BreakTime {
	if len(m) >= c.maxEntries {
		return make(map[string]BreakTime)
	}
	out := make(map[string]BreakTime, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (c *Cache) growWeekly(m map[string]WeeklyAllowance) map[string]WeeklyAllowance {
	if len(m) >= c.maxEntries {
		return make(map[string]WeeklyAllowance)
	}
	out := make(map[string]WeeklyAllowance, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// weeklyKey renders the job fingerprint plus every field the weekly
// calculator reads from the job's own records, sorted.
func weeklyKey(records []RatedSession, job Job) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		if r.JobID != job.ID {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s/%s/%s-%s/%s/%s/%s/%s/%t",
			r.ID, r.Date, r.StartTime, r.EndTime, r.WageType,
			r.FixedDailyWage, r.MealAllowance, r.HourlyRate, r.UnexcusedAbsence))
	}
	sort.Strings(parts)
	return job.PolicyFingerprint() + "#" + strings.Join(parts, ",")
}
