// Package lock implements cross-process mutual exclusion on named
// resources, backed by Redis leases. A lease is a small value (resource,
// holder token, expiry); at most one live lease exists per resource.
// TTL expiry is the backstop when a holder crashes without releasing.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TTL tiers. Callers pick the tier matching the expected cost of the
// critical section; the tier bounds staleness after a crash.
const (
	TTLFast     = 5 * time.Second  // single-query operations
	TTLStandard = 15 * time.Second // multi-statement transactions
	TTLSlow     = 60 * time.Second // operations bound by external APIs
)

const (
	keyPrefix       = "lock:"
	defaultAttempts = 3
	defaultBackoff  = 50 * time.Millisecond
)

var (
	// ErrLockBusy is a normal, retryable outcome: another holder owns the
	// resource and bounded retries did not win it.
	ErrLockBusy = errors.New("lock busy")
	// ErrLockLost means the lease expired or was taken over before a
	// release/extend; the critical section already ended or overran.
	ErrLockLost = errors.New("lock no longer held")
)

// Release deletes the key only while the caller's token still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Extend refreshes the expiry only while the caller's token still owns it.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a held lock on one resource.
type Lease struct {
	Resource   string
	Token      string
	ExpiresAt  time.Time
	acquiredAt time.Time
}

// Coordinator acquires, extends, and releases leases against Redis.
type Coordinator struct {
	client   *redis.Client
	metrics  *Collector
	attempts int
	backoff  time.Duration
}

// NewCoordinator creates a lock coordinator. The collector may be nil;
// a no-op buffer of capacity 1 is used so callers never nil-check.
func NewCoordinator(client *redis.Client, metrics *Collector) *Coordinator {
	if client == nil {
		panic("redis client is required")
	}
	if metrics == nil {
		metrics = NewCollector(1)
	}
	return &Coordinator{
		client:   client,
		metrics:  metrics,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
}

// Metrics exposes the collector for the observability endpoints.
func (c *Coordinator) Metrics() *Collector {
	return c.metrics
}

// Acquire tries to take the lease with set-if-absent semantics, retrying
// a bounded number of times with a short backoff. Contention surfaces as
// ErrLockBusy, never as an unbounded wait.
func (c *Coordinator) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	start := time.Now()

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.metrics.RecordAcquisition(resource, time.Since(start), false)
				c.metrics.RecordFailure(resource, "context_cancelled")
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		ok, err := c.client.SetNX(ctx, keyPrefix+resource, token, ttl).Result()
		if err != nil {
			c.metrics.RecordAcquisition(resource, time.Since(start), false)
			c.metrics.RecordFailure(resource, "store_error")
			return nil, fmt.Errorf("lock store: %w", err)
		}
		if ok {
			now := time.Now()
			c.metrics.RecordAcquisition(resource, now.Sub(start), true)
			return &Lease{
				Resource:   resource,
				Token:      token,
				ExpiresAt:  now.Add(ttl),
				acquiredAt: now,
			}, nil
		}
	}

	c.metrics.RecordAcquisition(resource, time.Since(start), false)
	c.metrics.RecordFailure(resource, "busy")
	return nil, ErrLockBusy
}

// Extend pushes the lease expiry out by ttl. Extending a lease that
// already expired returns ErrLockLost; the caller decides whether its
// critical section may continue.
func (c *Coordinator) Extend(ctx context.Context, lease *Lease, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, c.client,
		[]string{keyPrefix + lease.Resource}, lease.Token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	if res == 0 {
		return ErrLockLost
	}
	lease.ExpiresAt = time.Now().Add(ttl)
	c.metrics.RecordExtension(lease.Resource)
	return nil
}

// Release drops the lease if the caller still owns it. Losing the lease
// to TTL expiry beforehand is logged, not raised: the section is over
// either way.
func (c *Coordinator) Release(ctx context.Context, lease *Lease) {
	hold := time.Since(lease.acquiredAt)
	res, err := releaseScript.Run(ctx, c.client,
		[]string{keyPrefix + lease.Resource}, lease.Token).Int()
	if err != nil {
		log.Printf("lock: release of %s failed: %v", lease.Resource, err)
		return
	}
	if res == 0 {
		log.Printf("lock: lease on %s already expired before release", lease.Resource)
		return
	}
	c.metrics.RecordRelease(lease.Resource, hold)
}

// WithLock runs fn while holding the resource lease, releasing on every
// exit path. fn's error passes through untouched.
func (c *Coordinator) WithLock(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}
	defer c.Release(ctx, lease)
	return fn(ctx)
}
