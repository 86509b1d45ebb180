package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to, making window math deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestCooldown_WindowReplenishment(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := New(WithClock(clock.Now))

	policy := &Cooldown{Rate: 2, Per: 10 * time.Second, Bucket: User}
	keys := KeySet{UserID: "alice"}

	acquire := func() (func(), error) {
		return g.Acquire(context.Background(), "ping", policy, nil, keys)
	}

	// two tokens in the window
	for i := 0; i < 2; i++ {
		release, err := acquire()
		require.NoError(t, err)
		release()
	}

	// third invocation within the window is rejected with the exact wait
	clock.Advance(3 * time.Second)
	_, err := acquire()
	var cooldownErr *CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, 7*time.Second, cooldownErr.RetryAfter)

	// a fresh window admits again
	clock.Advance(7 * time.Second)
	release, err := acquire()
	require.NoError(t, err)
	release()
}

func TestCooldown_BucketScopes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := New(WithClock(clock.Now))

	policy := &Cooldown{Rate: 1, Per: time.Minute, Bucket: User}

	_, err := g.Acquire(context.Background(), "ping", policy, nil, KeySet{UserID: "alice"})
	require.NoError(t, err)

	// a different user hits a different bucket
	_, err = g.Acquire(context.Background(), "ping", policy, nil, KeySet{UserID: "bob"})
	require.NoError(t, err)

	// same user again is throttled
	_, err = g.Acquire(context.Background(), "ping", policy, nil, KeySet{UserID: "alice"})
	assert.Error(t, err)

	// a different command with the same key is unaffected
	_, err = g.Acquire(context.Background(), "pong", policy, nil, KeySet{UserID: "alice"})
	assert.NoError(t, err)
}

func TestCooldown_MemberScopeCombinesGuildAndUser(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := New(WithClock(clock.Now))

	policy := &Cooldown{Rate: 1, Per: time.Minute, Bucket: Member}

	_, err := g.Acquire(context.Background(), "ping", policy, nil, KeySet{GuildID: "g1", UserID: "alice"})
	require.NoError(t, err)

	// same user in another guild is a distinct member
	_, err = g.Acquire(context.Background(), "ping", policy, nil, KeySet{GuildID: "g2", UserID: "alice"})
	assert.NoError(t, err)
}

func TestConcurrency_NonBlocking(t *testing.T) {
	g := New()

	policy := &MaxConcurrency{Number: 1, Bucket: User}
	keys := KeySet{UserID: "alice"}

	release, err := g.Acquire(context.Background(), "work", nil, policy, keys)
	require.NoError(t, err)

	// slot taken, second concurrent invocation fails immediately
	_, err = g.Acquire(context.Background(), "work", nil, policy, keys)
	var concurrencyErr *ConcurrencyError
	require.ErrorAs(t, err, &concurrencyErr)

	// a different bucket key is unaffected
	otherRelease, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{UserID: "bob"})
	require.NoError(t, err)
	otherRelease()

	// after release a new acquire succeeds
	release()
	release() // releasing twice must not free a second slot

	again, err := g.Acquire(context.Background(), "work", nil, policy, keys)
	require.NoError(t, err)

	_, err = g.Acquire(context.Background(), "work", nil, policy, keys)
	assert.Error(t, err, "double release must not leak an extra slot")
	again()
}

func TestConcurrency_ReleasedBucketsAreEvicted(t *testing.T) {
	g := New()
	policy := &MaxConcurrency{Number: 1, Bucket: User}

	bucketCount := func() int {
		g.concurrency.mu.Lock()
		defer g.concurrency.mu.Unlock()
		return len(g.concurrency.sems)
	}

	// a long-running process sees an unbounded stream of distinct user ids;
	// every fully released bucket must be dropped from the table
	for _, user := range []string{"alice", "bob", "carol"} {
		release, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{UserID: user})
		require.NoError(t, err)
		release()
	}
	assert.Zero(t, bucketCount())

	// held and contended buckets stay, rejections pin nothing
	release, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{UserID: "alice"})
	require.NoError(t, err)
	_, err = g.Acquire(context.Background(), "work", nil, policy, KeySet{UserID: "alice"})
	require.Error(t, err)
	assert.Equal(t, 1, bucketCount())

	release()
	release() // double release must not over-decrement the refcount
	assert.Zero(t, bucketCount())

	// a cancelled blocking acquire unpins its bucket too
	blocking := &MaxConcurrency{Number: 1, Bucket: User, Wait: true}
	release, err = g.Acquire(context.Background(), "work", nil, blocking, KeySet{UserID: "alice"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, "work", nil, blocking, KeySet{UserID: "alice"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Zero(t, bucketCount())
}

func TestConcurrency_Blocking(t *testing.T) {
	g := New()

	policy := &MaxConcurrency{Number: 1, Bucket: Global, Wait: true}

	release, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{})
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		blockedRelease, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{})
		if err == nil {
			blockedRelease()
		}
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("blocking acquire should wait for the slot")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked acquire never resumed after release")
	}
}

func TestConcurrency_BlockingHonorsContext(t *testing.T) {
	g := New()

	policy := &MaxConcurrency{Number: 1, Bucket: Global, Wait: true}
	release, err := g.Acquire(context.Background(), "work", nil, policy, KeySet{})
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = g.Acquire(ctx, "work", nil, policy, KeySet{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_CooldownFailureReleasesConcurrencySlot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := New(WithClock(clock.Now))

	cooldown := &Cooldown{Rate: 1, Per: time.Minute, Bucket: User}
	concurrency := &MaxConcurrency{Number: 1, Bucket: User}
	keys := KeySet{UserID: "alice"}

	release, err := g.Acquire(context.Background(), "work", cooldown, concurrency, keys)
	require.NoError(t, err)
	release()

	// cooldown now rejects; the concurrency slot must be given back
	_, err = g.Acquire(context.Background(), "work", cooldown, concurrency, keys)
	var cooldownErr *CooldownError
	require.ErrorAs(t, err, &cooldownErr)

	// proof: a fresh window can immediately claim the slot again
	clock.Advance(time.Minute)
	release, err = g.Acquire(context.Background(), "work", cooldown, concurrency, keys)
	require.NoError(t, err)
	release()
}

func TestGate_NilPoliciesAlwaysAdmit(t *testing.T) {
	g := New()

	for i := 0; i < 100; i++ {
		release, err := g.Acquire(context.Background(), "free", nil, nil, KeySet{})
		require.NoError(t, err)
		release()
	}
}
