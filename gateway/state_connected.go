package gateway

import (
	"fmt"
	"io"
	"strconv"

	"github.com/diskordpkg/engine/command"
	"github.com/diskordpkg/engine/opcode"
)

// ConnectedState handles traffic after a successful handshake. The only
// possible transitions from here are ClosedState or ResumableClosedState.
type ConnectedState struct {
	*StateCtx
}

func (st *ConnectedState) String() string {
	return "connected"
}

func (st *ConnectedState) Process(payload *Payload, pipe io.Writer) error {
	switch payload.Op {
	case opcode.Heartbeat:
		seqStr := strconv.FormatInt(st.StateCtx.sequenceNumber.Load(), 10)
		if err := st.StateCtx.Write(pipe, command.Heartbeat, []byte(seqStr)); err != nil {
			st.StateCtx.SetState(&ClosedState{})
			return fmt.Errorf("peer requested heartbeat, but sending one failed. %w", err)
		}
	case opcode.HeartbeatACK:
		st.StateCtx.heartbeatACK.CompareAndSwap(false, true)
	case opcode.InvalidSession:
		st.StateCtx.SessionID = ""
		st.StateCtx.SetState(&ClosedState{})
		return &DiscordError{OpCode: payload.Op}
	case opcode.Reconnect:
		st.StateCtx.SetState(&ResumableClosedState{st.StateCtx})
		return &DiscordError{OpCode: payload.Op}
	case opcode.Dispatch:
		if st.StateCtx.client.eventHandler == nil {
			return nil
		}
		if st.StateCtx.client.allowlist != nil {
			if !st.StateCtx.client.allowlist.Contains(payload.EventName) {
				return nil
			}
		}

		st.StateCtx.client.eventHandler(st.StateCtx.client.id, payload.EventName, payload.Data)
	}

	return nil
}
