package gate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// MaxConcurrency bounds how many invocations of a command may be in flight
// per bucket. With Wait set, excess invocations block until a slot frees;
// otherwise they fail immediately.
type MaxConcurrency struct {
	Number int64
	Bucket Scope
	Wait   bool
}

type ConcurrencyError struct{}

func (e *ConcurrencyError) Error() string {
	return "too many concurrent invocations of this command"
}

// ConcurrencyGate hands out semaphore permits per (command, bucket key).
// Entries are reference counted and dropped once the last holder is gone, so
// per-user keys do not accumulate for the lifetime of the process.
type ConcurrencyGate struct {
	mu   sync.Mutex
	sems map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewConcurrencyGate() *ConcurrencyGate {
	return &ConcurrencyGate{
		sems: make(map[string]*slot),
	}
}

// checkout pins the key's slot. Every checkout must be paired with a
// checkin, whether or not a permit was obtained.
func (g *ConcurrencyGate) checkout(key string, size int64) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sems[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(size)}
		g.sems[key] = s
	}
	s.refs++
	return s
}

func (g *ConcurrencyGate) checkin(key string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(g.sems, key)
	}
}

// Acquire claims one slot. The returned release func is safe to call exactly
// once and must run when the handler completes, including on failure, so no
// slot ever leaks.
func (g *ConcurrencyGate) Acquire(ctx context.Context, name string, policy *MaxConcurrency, keys KeySet) (release func(), err error) {
	if policy == nil || policy.Number <= 0 {
		return func() {}, nil
	}

	key := fmt.Sprintf("%s|%d|%s", name, policy.Bucket, keys.value(policy.Bucket))
	s := g.checkout(key, policy.Number)

	if policy.Wait {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			g.checkin(key, s)
			return nil, err
		}
	} else if !s.sem.TryAcquire(1) {
		g.checkin(key, s)
		return nil, &ConcurrencyError{}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			g.checkin(key, s)
		})
	}, nil
}
