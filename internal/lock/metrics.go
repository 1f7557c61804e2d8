package lock

import (
	"sort"
	"sync"
	"time"
)

// DefaultCapacity bounds the sample buffer; long-run statistics are
// approximate once eviction starts.
const DefaultCapacity = 4096

type eventKind int

const (
	eventAcquire eventKind = iota
	eventRelease
	eventExtend
	eventFailure
)

type event struct {
	kind     eventKind
	resource string
	latency  time.Duration
	hold     time.Duration
	success  bool
	reason   string
}

// ResourceStats is the aggregate view over the buffered samples for one
// resource (or all resources when Resource is empty).
type ResourceStats struct {
	Resource          string           `json:"resource,omitempty"`
	Attempts          int64            `json:"attempts"`
	Successes         int64            `json:"successes"`
	Failures          int64            `json:"failures"`
	ContentionRate    float64          `json:"contention_rate"`
	AvgAcquireLatency time.Duration    `json:"avg_acquire_latency_ns"`
	AvgHold           time.Duration    `json:"avg_hold_ns"`
	Extensions        int64            `json:"extensions"`
	FailureReasons    map[string]int64 `json:"failure_reasons,omitempty"`
}

// Collector records lock events in a fixed-capacity ring buffer. It is
// purely observational: it never influences lock outcomes, and is safe
// to use from any number of goroutines.
type Collector struct {
	mu   sync.Mutex
	buf  []event
	next int
	full bool
}

// NewCollector creates a collector holding at most capacity samples.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Collector{buf: make([]event, capacity)}
}

// RecordAcquisition records one acquire attempt and its outcome.
func (c *Collector) RecordAcquisition(resource string, latency time.Duration, success bool) {
	c.push(event{kind: eventAcquire, resource: resource, latency: latency, success: success})
}

// RecordRelease records a successful release and how long the lease was held.
func (c *Collector) RecordRelease(resource string, hold time.Duration) {
	c.push(event{kind: eventRelease, resource: resource, hold: hold})
}

// RecordExtension records one lease extension.
func (c *Collector) RecordExtension(resource string) {
	c.push(event{kind: eventExtend, resource: resource})
}

// RecordFailure records why an acquisition failed.
func (c *Collector) RecordFailure(resource, reason string) {
	c.push(event{kind: eventFailure, resource: resource, reason: reason})
}

func (c *Collector) push(e event) {
	c.mu.Lock()
	c.buf[c.next] = e
	c.next++
	if c.next == len(c.buf) {
		c.next = 0
		c.full = true
	}
	c.mu.Unlock()
}

// snapshot copies the live samples out under the lock.
func (c *Collector) snapshot() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	if c.full {
		n = len(c.buf)
	}
	out := make([]event, n)
	if c.full {
		copy(out, c.buf[c.next:])
		copy(out[len(c.buf)-c.next:], c.buf[:c.next])
	} else {
		copy(out, c.buf[:n])
	}
	return out
}

// Stats aggregates the buffered samples for one resource. An empty
// resource aggregates everything.
func (c *Collector) Stats(resource string) ResourceStats {
	events := c.snapshot()
	stats := ResourceStats{Resource: resource}
	var latencySum, holdSum time.Duration
	var releases int64
	for _, e := range events {
		if resource != "" && e.resource != resource {
			continue
		}
		switch e.kind {
		case eventAcquire:
			stats.Attempts++
			latencySum += e.latency
			if e.success {
				stats.Successes++
			} else {
				stats.Failures++
			}
		case eventRelease:
			releases++
			holdSum += e.hold
		case eventExtend:
			stats.Extensions++
		case eventFailure:
			if stats.FailureReasons == nil {
				stats.FailureReasons = make(map[string]int64)
			}
			stats.FailureReasons[e.reason]++
		}
	}
	if stats.Attempts > 0 {
		stats.ContentionRate = float64(stats.Failures) / float64(stats.Attempts)
		stats.AvgAcquireLatency = latencySum / time.Duration(stats.Attempts)
	}
	if releases > 0 {
		stats.AvgHold = holdSum / time.Duration(releases)
	}
	return stats
}

// GlobalStats aggregates across every resource in the buffer.
func (c *Collector) GlobalStats() ResourceStats {
	return c.Stats("")
}

// TopContended ranks resources by contention rate, highest first, and
// returns up to limit entries with their full breakdown.
func (c *Collector) TopContended(limit int) []ResourceStats {
	events := c.snapshot()
	seen := make(map[string]struct{})
	for _, e := range events {
		seen[e.resource] = struct{}{}
	}

	out := make([]ResourceStats, 0, len(seen))
	for resource := range seen {
		out = append(out, c.Stats(resource))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContentionRate != out[j].ContentionRate {
			return out[i].ContentionRate > out[j].ContentionRate
		}
		return out[i].Attempts > out[j].Attempts
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
