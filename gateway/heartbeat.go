package gateway

import (
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/diskordpkg/engine/command"
)

// HeartbeatHandler runs the periodic heartbeat process for one connection.
// Configure is called by the state machine once the hello payload reveals
// the interval; Run is then started in its own goroutine.
type HeartbeatHandler interface {
	Configure(ctx *StateCtx, interval time.Duration)
	Run()
}

// DefaultHeartbeatHandler sends a heartbeat every interval and verifies that
// the previous one was acknowledged. A missing acknowledgment closes the
// connection with a restart code so the owner can resume the session.
type DefaultHeartbeatHandler struct {
	TextWriter  io.Writer
	CloseWriter io.Writer

	ctx      *StateCtx
	interval time.Duration
}

func (p *DefaultHeartbeatHandler) Configure(ctx *StateCtx, interval time.Duration) {
	if p.TextWriter == nil {
		panic("heartbeat handler: missing text writer")
	}
	if p.CloseWriter == nil {
		panic("heartbeat handler: missing close writer")
	}

	ctx.heartbeatACK.Store(true)
	p.ctx = ctx
	p.interval = interval
}

func (p *DefaultHeartbeatHandler) Run() {
	jitter := float64(rand.Intn(100)) / 100
	initialDelay := time.Duration(p.interval.Seconds()*jitter) * time.Second
	<-time.After(initialDelay)

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	for {
		if p.ctx.closed.Load() {
			return
		}
		if !p.ctx.heartbeatACK.CompareAndSwap(true, false) {
			// did not receive heart beat ack since last heartbeat
			break
		}

		seq := p.ctx.sequenceNumber.Load()
		seqStr := strconv.FormatInt(seq, 10)
		if err := p.ctx.Write(p.TextWriter, command.Heartbeat, []byte(seqStr)); err != nil {
			break
		}

		<-timer.C
	}

	if p.ctx.closed.Load() {
		return
	}

	// let the read loop observe the closure and trigger a resume
	_ = p.ctx.WriteRestartClose(p.CloseWriter)
}
