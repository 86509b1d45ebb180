// Package gateway implements the client side of a persistent real-time event
// stream connection: handshake, heartbeat, session resume and payload
// sequencing. It is transport agnostic; payloads are read from and written to
// plain io interfaces so the websocket layer can live elsewhere (see the
// shard package).
package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/diskordpkg/engine/closecode"
	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/intent"
	"github.com/diskordpkg/engine/json"
	"github.com/diskordpkg/engine/opcode"
)

type RawMessage = json.RawMessage

type ShardID uint

const (
	NormalCloseCode  uint16 = 1000
	RestartCloseCode uint16 = 1012
)

// Payload is the envelope for every frame exchanged with the gateway. It is
// immutable once decoded.
type Payload struct {
	Op        opcode.Type     `json:"op"`
	Data      json.RawMessage `json:"d"`
	Seq       int64           `json:"s,omitempty"`
	EventName event.Type      `json:"t,omitempty"`

	// CloseCode is populated by the transport layer when the peer sent a
	// close frame instead of a text frame.
	CloseCode closecode.Type `json:"-"`
}

func (p Payload) String() string {
	return fmt.Sprintf("{\n\t\"op\":%d,\n\t\"data\": %s\n\t\"seq\":%d\n}", p.Op, string(p.Data), p.Seq)
}

var ErrSequenceNumberSkipped = errors.New("the sequence number increased with more than 1, events lost")
var ErrOutOfSync = errors.New("sequence number was out of sync")

// DiscordError covers opcodes and close codes sent by the peer that force
// the connection into a closed state.
type DiscordError struct {
	CloseCode closecode.Type
	OpCode    opcode.Type
	Reason    string
}

func (c *DiscordError) Error() string {
	return fmt.Sprintf("[%d | %d]: %s", c.CloseCode, c.OpCode, c.Reason)
}

func (c DiscordError) CanReconnect() bool {
	return closecode.CanReconnectAfter(c.CloseCode) || opcode.CanReconnectAfter(c.OpCode)
}

// TransportError marks a failed write. The session itself may still be
// resumable; the caller decides by reconnecting with the stored sequence
// number.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Errorf("transport failure: %w", e.Err).Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type WebsocketClosedError struct {
	Code   uint16
	Reason string
}

var _ error = &WebsocketClosedError{}

func (err *WebsocketClosedError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", int64(err.Code), err.Reason)
}

// Handler is invoked for every whitelisted dispatch event.
type Handler func(ShardID, event.Type, RawMessage)

type IdentifyConnectionProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type Identify struct {
	BotToken       string      `json:"token"`
	Properties     interface{} `json:"properties"`
	Compress       bool        `json:"compress,omitempty"`
	LargeThreshold uint8       `json:"large_threshold,omitempty"`
	Shard          [2]int      `json:"shard"`
	Presence       interface{} `json:"presence"`
	Intents        intent.Type `json:"intents"`
}

type Hello struct {
	HeartbeatIntervalMilli int64 `json:"heartbeat_interval"`
}

type Ready struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

type Resume struct {
	BotToken       string `json:"token"`
	SessionID      string `json:"session_id"`
	SequenceNumber int64  `json:"seq"`
}

// IdentifyRateLimiter gates identify payloads, which the peer rate limits
// far stricter than other commands.
type IdentifyRateLimiter interface {
	Try(ShardID) (bool, time.Duration)
}
