// Package stats implements the cache's five monotonic counters. Counters
// are atomic.Int64, the Go analogue of Java's LongAdder for this scale of
// contention, and are only ever incremented after a state transition has
// committed — never from inside a store.Compute callback.
package stats

import "sync/atomic"

// Counters holds the five accounting totals spec'd for the cache.
type Counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	removals  atomic.Int64
	evictions atomic.Int64
}

// RecordHit increments the hit counter.
func (c *Counters) RecordHit() { c.hits.Add(1) }

// RecordMiss increments the miss counter.
func (c *Counters) RecordMiss() { c.misses.Add(1) }

// RecordPut increments the put counter.
func (c *Counters) RecordPut() { c.puts.Add(1) }

// RecordRemoval increments the removal counter.
func (c *Counters) RecordRemoval() { c.removals.Add(1) }

// RecordEviction increments the eviction counter.
func (c *Counters) RecordEviction() { c.evictions.Add(1) }

// Clear resets every counter to zero.
func (c *Counters) Clear() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.puts.Store(0)
	c.removals.Store(0)
	c.evictions.Store(0)
}

// Hits returns the current hit count.
func (c *Counters) Hits() int64 { return c.hits.Load() }

// Misses returns the current miss count.
func (c *Counters) Misses() int64 { return c.misses.Load() }

// Puts returns the current put count.
func (c *Counters) Puts() int64 { return c.puts.Load() }

// Removals returns the current removal count.
func (c *Counters) Removals() int64 { return c.removals.Load() }

// Evictions returns the current eviction count.
func (c *Counters) Evictions() int64 { return c.evictions.Load() }

// Gets returns hits+misses, the total number of explicit read attempts.
func (c *Counters) Gets() int64 { return c.Hits() + c.Misses() }

// HitPercentage returns hits/(hits+misses) as a percentage, 0 if no gets
// have been recorded yet.
func (c *Counters) HitPercentage() float64 {
	gets := c.Gets()
	if gets == 0 {
		return 0
	}
	return float64(c.Hits()) / float64(gets) * 100
}

// MissPercentage returns misses/(hits+misses) as a percentage, 0 if no
// gets have been recorded yet.
func (c *Counters) MissPercentage() float64 {
	gets := c.Gets()
	if gets == 0 {
		return 0
	}
	return float64(c.Misses()) / float64(gets) * 100
}

// Snapshot is an immutable point-in-time read of every counter, returned
// to callers of Cache.Statistics so they can't observe torn updates
// across fields mid-read.
type Snapshot struct {
	Hits           int64
	Misses         int64
	Puts           int64
	Removals       int64
	Evictions      int64
	Gets           int64
	HitPercentage  float64
	MissPercentage float64
}

// Snapshot reads every counter into a single struct.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Hits:           c.Hits(),
		Misses:         c.Misses(),
		Puts:           c.Puts(),
		Removals:       c.Removals(),
		Evictions:      c.Evictions(),
		Gets:           c.Gets(),
		HitPercentage:  c.HitPercentage(),
		MissPercentage: c.MissPercentage(),
	}
}
