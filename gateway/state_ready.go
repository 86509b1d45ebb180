package gateway

import (
	"fmt"
	"io"

	"github.com/diskordpkg/engine/json"
	"github.com/diskordpkg/engine/opcode"
)

// ReadyState expects the ready dispatch event which carries the session id
// and resume url needed for later resumes.
type ReadyState struct {
	*StateCtx
}

func (st *ReadyState) String() string {
	return "ready"
}

func (st *ReadyState) Process(payload *Payload, pipe io.Writer) error {
	if payload.Op != opcode.Dispatch {
		// heartbeat traffic may precede the ready event
		return (&ConnectedState{StateCtx: st.StateCtx}).Process(payload, pipe)
	}

	var ready Ready
	if err := json.Unmarshal(payload.Data, &ready); err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return fmt.Errorf("failed to extract session id from ready event. %w", err)
	}

	st.StateCtx.SessionID = ready.SessionID
	st.StateCtx.ResumeGatewayURL = ready.ResumeGatewayURL

	connected := &ConnectedState{StateCtx: st.StateCtx}
	st.StateCtx.SetState(connected)
	return connected.Process(payload, pipe)
}
