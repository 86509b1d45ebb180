package shard

import (
	"errors"
	"fmt"

	"github.com/diskordpkg/engine/closecode"
	"github.com/diskordpkg/engine/gateway"
)

// ConnectionError is fatal: the reconnect budget was exhausted. A peer
// rejecting the session with a non-resumable close code surfaces as a
// DiscordError instead.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gave up connecting after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WebsocketError wraps low level websocket failures. These are retryable by
// the reconnect loop.
type WebsocketError struct {
	Err error
}

func (e *WebsocketError) Error() string {
	return fmt.Errorf("websocket logic failed: %w", e.Err).Error()
}

func (e *WebsocketError) Unwrap() error {
	return e.Err
}

// handleError classifies why the event loop stopped. Close codes that allow
// a resume are converted to a resumable DiscordError; everything else
// invalidates the session.
func (s *Shard) handleError(err error) error {
	var websocketErr *gateway.WebsocketClosedError
	if errors.As(err, &websocketErr) {
		code := closecode.Type(websocketErr.Code)
		switch {
		case closecode.CanReconnectAfter(code):
			// session survives, resume on reconnect
		default:
			s.Client.InvalidateSession(&closePipe{shard: s})
		}
		return &gateway.DiscordError{CloseCode: code, Reason: websocketErr.Reason}
	}

	return err
}
