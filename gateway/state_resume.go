package gateway

import (
	"io"

	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/opcode"
)

// ResumeState wraps a ConnectedState until the resumed event arrives.
// Replayed dispatch events are processed as normal traffic in the meantime.
type ResumeState struct {
	*ConnectedState
}

func (st *ResumeState) String() string {
	return "resume"
}

func (st *ResumeState) Process(payload *Payload, pipe io.Writer) error {
	if err := st.ConnectedState.Process(payload, pipe); err != nil {
		return err
	}

	if payload.Op == opcode.Dispatch && payload.EventName == event.Resumed {
		// simply unwrap the existing connected state
		st.StateCtx.SetState(st.ConnectedState)
	}

	return nil
}
