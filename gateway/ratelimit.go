package gateway

import (
	"time"

	"github.com/bradfitz/iter"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// NewCommandRateLimiter returns a limiter for outgoing gateway commands.
// The gateway allows 120 commands per minute; a few calls are reserved so a
// heartbeat can always be sent.
func NewCommandRateLimiter() *rate.Limiter {
	burstSize := 120
	burstSize -= 4 // reserve 4 calls for heartbeat
	burstSize -= 1 // reserve one call, in case the peer requests a heartbeat

	return rate.NewLimiter(rate.Every(60*time.Second/time.Duration(burstSize)), burstSize)
}

// NewIdentifyRateLimiter returns the default local identify limiter: one
// identify per 5 seconds, regardless of shard id.
func NewIdentifyRateLimiter() *LocalIdentifyRateLimiter {
	return newChannelRateLimiter(1, 5*time.Second)
}

// LocalIdentifyRateLimiter is a channel backed token bucket. A background
// goroutine refills the bucket every burst duration until Close is called.
type LocalIdentifyRateLimiter struct {
	c      chan int
	window time.Duration
	closed atomic.Bool
}

func newChannelRateLimiter(burstCapacity int, burstDuration time.Duration) *LocalIdentifyRateLimiter {
	limiter := &LocalIdentifyRateLimiter{
		c:      make(chan int, burstCapacity),
		window: burstDuration,
	}

	go func() {
		refill := func() {
			burstSize := burstCapacity - len(limiter.c)

			for range iter.N(burstSize) {
				limiter.c <- 0
			}
		}

		t := time.NewTicker(burstDuration)
		defer t.Stop()

		refill()
		for {
			<-t.C

			if limiter.closed.Load() {
				break
			}

			refill()
		}
	}()

	return limiter
}

var _ IdentifyRateLimiter = &LocalIdentifyRateLimiter{}

func (rl *LocalIdentifyRateLimiter) Try(_ ShardID) (bool, time.Duration) {
	select {
	case <-rl.c:
		return true, 0
	default:
		return false, rl.window
	}
}

func (rl *LocalIdentifyRateLimiter) Close() error {
	rl.closed.Store(true)
	return nil
}
