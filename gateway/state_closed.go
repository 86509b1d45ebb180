package gateway

import (
	"io"
	"net"
)

// ClosedState is terminal. The session can not be resumed; a new client must
// identify from scratch.
type ClosedState struct{}

func (st *ClosedState) String() string {
	return "closed"
}

func (st *ClosedState) Process(_ *Payload, _ io.Writer) error {
	return net.ErrClosed
}

// ResumableClosedState is terminal for this client instance, but the session
// details it holds may seed a new client that resumes.
type ResumableClosedState struct {
	*StateCtx
}

func (st *ResumableClosedState) String() string {
	return "resumable-closed"
}

func (st *ResumableClosedState) Process(_ *Payload, _ io.Writer) error {
	return net.ErrClosed
}
