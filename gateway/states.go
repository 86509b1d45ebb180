package gateway

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/diskordpkg/engine/command"
	"github.com/diskordpkg/engine/json"
	"github.com/diskordpkg/engine/opcode"
)

// State represents a stage in the connection lifecycle. Process may mutate
// the StateCtx and install a successor state.
type State interface {
	Process(payload *Payload, pipe io.Writer) error
}

// StateCtx is the session record shared by all states: connection identity
// and the counters needed for a correct resume. It is mutated only by the
// owning connection's receive path, except for the atomics which the
// heartbeat goroutine also touches.
type StateCtx struct {
	heartbeatACK   atomic.Bool
	sequenceNumber atomic.Int64
	closed         atomic.Bool

	SessionID        string
	ResumeGatewayURL string

	client *Client
	state  State
}

func (ctx *StateCtx) SetState(state State) {
	ctx.state = state
}

func (ctx *StateCtx) Process(payload *Payload, pipe io.Writer) error {
	return ctx.state.Process(payload, pipe)
}

func (ctx *StateCtx) SequenceNumber() int64 {
	return ctx.sequenceNumber.Load()
}

func (ctx *StateCtx) Closed() bool {
	return ctx.closed.Load()
}

// Write sends a single command payload. Everything except heartbeats runs
// through the command rate limiter; identify payloads are gated once more by
// the identify rate limiter.
func (ctx *StateCtx) Write(pipe io.Writer, opc command.Type, payload json.RawMessage) (err error) {
	if ctx.closed.Load() {
		return net.ErrClosed
	}

	// heartbeat must always be sent; the limiter reserves headroom for it
	if opc != command.Heartbeat && ctx.client.commandRateLimiter != nil {
		reservation := ctx.client.commandRateLimiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			<-time.After(delay)
		}
	}
	if opc == command.Identify {
		if available, _ := ctx.client.identifyRateLimiter.Try(ctx.client.id); !available {
			return errors.New("identify rate limiter denied shard to identify")
		}
	}

	packet := Payload{
		Op:   opcode.Type(opc),
		Data: payload,
	}

	var data []byte
	data, err = json.Marshal(&packet)
	if err != nil {
		return err
	}

	if _, err = pipe.Write(data); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func (ctx *StateCtx) WriteNormalClose(pipe io.Writer) error {
	return ctx.WriteClose(pipe, NormalCloseCode)
}

func (ctx *StateCtx) WriteRestartClose(pipe io.Writer) error {
	return ctx.WriteClose(pipe, RestartCloseCode)
}

func (ctx *StateCtx) WriteClose(pipe io.Writer, code uint16) error {
	writeIfOpen := func() error {
		if ctx.closed.CompareAndSwap(false, true) {
			closeCodeBuf := make([]byte, 2)
			binary.BigEndian.PutUint16(closeCodeBuf, code)

			_, err := pipe.Write(closeCodeBuf)
			return err
		}
		return net.ErrClosed
	}

	if err := writeIfOpen(); err != nil {
		if !errors.Is(err, net.ErrClosed) && strings.Contains(err.Error(), "use of closed connection") {
			return net.ErrClosed
		}
		return err
	}
	return nil
}
