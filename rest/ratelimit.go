package rest

import (
	"context"
	"sync"
	"time"
)

// bucket is the learned quota state for one rate-limit bucket id. Routes
// that share a bucket id share this state.
type bucket struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
}

// RateLimiter blocks callers until their route's bucket has capacity.
// Bucket ids and quota state are learned from response metadata after each
// call; until a route has reported a bucket id it gets a provisional bucket
// keyed by the route itself.
type RateLimiter struct {
	mu            sync.Mutex
	routeToBucket map[string]string
	buckets       map[string]*bucket
	globalResetAt time.Time

	// now is replaceable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		routeToBucket: make(map[string]string),
		buckets:       make(map[string]*bucket),
		now:           time.Now,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RateLimiter) bucketFor(route string) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := route
	if id, ok := r.routeToBucket[route]; ok {
		key = id
	}
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{remaining: 1}
		r.buckets[key] = b
	}
	return b
}

// Reserve blocks until the route's bucket has capacity, then consumes one
// unit. A global rate-limit condition suspends every route until its reset.
func (r *RateLimiter) Reserve(ctx context.Context, route string) error {
	for {
		r.mu.Lock()
		globalWait := r.globalResetAt.Sub(r.now())
		r.mu.Unlock()
		if globalWait <= 0 {
			break
		}
		if err := r.sleep(ctx, globalWait); err != nil {
			return err
		}
	}

	b := r.bucketFor(route)
	for {
		b.mu.Lock()
		now := r.now()
		if !b.resetAt.IsZero() && !now.Before(b.resetAt) {
			// Window rolled over; assume capacity until headers say otherwise.
			b.remaining = 1
			b.resetAt = time.Time{}
		}
		if b.remaining > 0 || b.resetAt.IsZero() {
			// A zero resetAt means the bucket state is unknown: either the
			// route is unbucketed or no response has reported headers yet.
			// Unknown state is treated as capacity.
			if b.remaining > 0 {
				b.remaining--
			}
			b.mu.Unlock()
			return nil
		}
		wait := b.resetAt.Sub(now)
		b.mu.Unlock()

		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Update records the rate-limit state a response reported, remapping the
// route onto its real bucket id when one is present.
func (r *RateLimiter) Update(route string, meta Metadata) {
	now := r.now()

	if meta.Global {
		r.mu.Lock()
		r.globalResetAt = now.Add(meta.ResetAfter)
		r.mu.Unlock()
		return
	}

	if meta.Bucket == "" && meta.ResetAfter == 0 {
		// The response carried no rate-limit headers. Some endpoints are
		// unbucketed (interaction callbacks); writing zeroes here would
		// wrongly mark the route as exhausted with no reset in sight.
		return
	}

	if meta.Bucket != "" {
		r.mu.Lock()
		if previous, ok := r.routeToBucket[route]; !ok || previous != meta.Bucket {
			r.routeToBucket[route] = meta.Bucket
			// Migrate any provisional per-route bucket to the shared one.
			if b, exists := r.buckets[route]; exists {
				if _, shared := r.buckets[meta.Bucket]; !shared {
					r.buckets[meta.Bucket] = b
				}
				delete(r.buckets, route)
			}
		}
		r.mu.Unlock()
	}

	b := r.bucketFor(route)
	b.mu.Lock()
	b.remaining = meta.Remaining
	if meta.ResetAfter > 0 {
		b.resetAt = now.Add(meta.ResetAfter)
	}
	b.mu.Unlock()
}
