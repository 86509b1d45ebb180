package gateway

import (
	"fmt"
	"io"
	"time"

	"github.com/diskordpkg/engine/command"
	"github.com/diskordpkg/engine/json"
	"github.com/diskordpkg/engine/opcode"
)

// HelloState expects the initial hello payload, starts the heartbeat process
// and either identifies or resumes, depending on whether a previous session
// is held.
type HelloState struct {
	*StateCtx
	Identity *Identify
}

func (st *HelloState) String() string {
	return "hello"
}

func (st *HelloState) Process(payload *Payload, pipe io.Writer) error {
	if payload.Op != opcode.Hello {
		return fmt.Errorf("incorrect opcode: %d, wants %d", int(payload.Op), int(opcode.Hello))
	}

	var hello Hello
	if err := json.Unmarshal(payload.Data, &hello); err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return err
	}

	var handler HeartbeatHandler
	handler, st.StateCtx.client.heartbeatHandler = st.StateCtx.client.heartbeatHandler, nil
	handler.Configure(st.StateCtx, time.Duration(hello.HeartbeatIntervalMilli)*time.Millisecond)
	go handler.Run()

	if st.StateCtx.SessionID != "" {
		return st.resume(pipe)
	}
	return st.identify(pipe)
}

func (st *HelloState) identify(pipe io.Writer) error {
	data, err := json.Marshal(st.Identity)
	if err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return fmt.Errorf("unable to marshal identify payload. %w", err)
	}

	if err = st.StateCtx.Write(pipe, command.Identify, data); err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return err
	}

	st.StateCtx.SetState(&ReadyState{StateCtx: st.StateCtx})
	return nil
}

func (st *HelloState) resume(pipe io.Writer) error {
	data, err := json.Marshal(&Resume{
		BotToken:       st.Identity.BotToken,
		SessionID:      st.StateCtx.SessionID,
		SequenceNumber: st.StateCtx.sequenceNumber.Load(),
	})
	if err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return fmt.Errorf("unable to marshal resume payload. %w", err)
	}

	if err = st.StateCtx.Write(pipe, command.Resume, data); err != nil {
		st.StateCtx.SetState(&ClosedState{})
		return err
	}

	st.StateCtx.SetState(&ResumeState{&ConnectedState{StateCtx: st.StateCtx}})
	return nil
}
