package gate

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cooldown allows Rate invocations per Per window, per bucket.
type Cooldown struct {
	Rate   int
	Per    time.Duration
	Bucket Scope
}

// CooldownError reports how long the bucket needs before the next token is
// available.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command is on cooldown, retry in %s", e.RetryAfter)
}

// cooldownBucket tracks one window: tokens left and when the window opened.
// The window starts on the first consume and resets entirely once Per has
// elapsed.
type cooldownBucket struct {
	tokens      int
	windowStart time.Time
}

// CooldownGate stores buckets in a TTL cache so idle buckets are evicted
// lazily once their window can no longer matter.
type CooldownGate struct {
	mu      sync.Mutex
	buckets *cache.Cache
	now     func() time.Time
}

func NewCooldownGate(now func() time.Time) *CooldownGate {
	return &CooldownGate{
		buckets: cache.New(cache.NoExpiration, 10*time.Minute),
		now:     now,
	}
}

// Acquire consumes one token from the bucket selected by the policy scope.
// A nil policy always admits.
func (g *CooldownGate) Acquire(name string, policy *Cooldown, keys KeySet) error {
	if policy == nil || policy.Rate <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s|%d|%s", name, policy.Bucket, keys.value(policy.Bucket))
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	var bucket *cooldownBucket
	if cached, ok := g.buckets.Get(key); ok {
		bucket = cached.(*cooldownBucket)
	}

	if bucket == nil || now.Sub(bucket.windowStart) >= policy.Per {
		bucket = &cooldownBucket{tokens: policy.Rate, windowStart: now}
		g.buckets.Set(key, bucket, policy.Per)
	}

	if bucket.tokens <= 0 {
		elapsed := now.Sub(bucket.windowStart)
		return &CooldownError{RetryAfter: policy.Per - elapsed}
	}

	bucket.tokens--
	return nil
}
