package gateway

import (
	"errors"
	"io"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/diskordpkg/engine/command"
	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/intent"
	"github.com/diskordpkg/engine/internal/util"
	"github.com/diskordpkg/engine/opcode"
)

// NewClient instantiates a state machine for a single gateway connection.
// A client is single use: once it reaches a closed state a new client must
// be created, seeded with the previous session details for a resume.
func NewClient(botToken string, options ...Option) (*Client, error) {
	client := &Client{
		botToken: botToken,
		log:      zerolog.Nop(),
	}
	client.ctx = &StateCtx{client: client}

	for i := range options {
		if err := options[i](client); err != nil {
			return nil, err
		}
	}

	if client.intents == 0 && (len(client.guildEvents) > 0 || len(client.directMessageEvents) > 0) {
		// derive intents
		client.intents |= intent.GuildEventsToIntents(client.guildEvents)
		client.intents |= intent.DMEventsToIntents(client.directMessageEvents)

		// whitelisted events specified events only
		client.allowlist = util.Set[event.Type]{}
		client.allowlist.Add(client.guildEvents...)
		client.allowlist.Add(client.directMessageEvents...)

		// crucial for normal function
		client.allowlist.Add(event.Ready, event.Resumed)
	}

	// rate limits
	if client.commandRateLimiter == nil {
		client.commandRateLimiter = NewCommandRateLimiter()
	}
	if client.identifyRateLimiter == nil {
		limiter := NewIdentifyRateLimiter()
		client.identifyRateLimiter = limiter
		client.closers = append(client.closers, limiter)
	}

	// connection properties
	if client.connectionProperties == nil {
		client.connectionProperties = &IdentifyConnectionProperties{
			OS:      runtime.GOOS,
			Browser: "github.com/diskordpkg/engine",
			Device:  "github.com/diskordpkg/engine",
		}
	}

	// heartbeat
	if client.heartbeatHandler == nil {
		return nil, errors.New("missing heartbeat handler - use WithHeartbeatHandler")
	}

	// sharding
	if client.totalNumberOfShards == 0 {
		if client.id == 0 {
			client.totalNumberOfShards = 1
		} else {
			return nil, errors.New("missing shard count")
		}
	}
	if int(client.id) >= client.totalNumberOfShards {
		return nil, errors.New("shard id is higher than shard count")
	}

	client.ctx.state = &HelloState{
		StateCtx: client.ctx,
		Identity: &Identify{
			BotToken:       botToken,
			Properties:     &client.connectionProperties,
			Compress:       false,
			LargeThreshold: 0,
			Shard:          [2]int{int(client.id), client.totalNumberOfShards},
			Presence:       nil,
			Intents:        client.intents,
		},
	}
	return client, nil
}

type Client struct {
	botToken string
	id       ShardID

	// events that are not found in the allowlist are viewed as redundant
	// and are skipped / ignored
	allowlist           util.Set[event.Type]
	directMessageEvents []event.Type
	guildEvents         []event.Type

	intents intent.Type

	ctx                  *StateCtx
	commandRateLimiter   *rate.Limiter
	identifyRateLimiter  IdentifyRateLimiter
	heartbeatHandler     HeartbeatHandler
	connectionProperties interface{}
	totalNumberOfShards  int
	eventHandler         Handler
	closers              []io.Closer
	log                  zerolog.Logger
}

// ResumeDetails are available while a session is held and has not been
// invalidated. The returned values seed a successor client.
func (c *Client) ResumeDetails() (resumeGatewayURL string, sessionID string, sequenceNumber int64, err error) {
	if c.ctx.SessionID == "" {
		return "", "", 0, errors.New("no session to resume")
	}
	if _, dead := c.ctx.state.(*ClosedState); dead {
		return "", "", 0, errors.New("session was invalidated")
	}
	return c.ctx.ResumeGatewayURL, c.ctx.SessionID, c.ctx.sequenceNumber.Load(), nil
}

// InvalidateSession writes a normal close and forgets the session, forcing
// the next client to identify from scratch.
func (c *Client) InvalidateSession(pipe io.Writer) {
	_ = c.ctx.WriteNormalClose(pipe)
	c.ctx.SessionID = ""
	c.ctx.SetState(&ClosedState{})
}

func (c *Client) SequenceNumber() int64 {
	return c.ctx.sequenceNumber.Load()
}

func (c *Client) SessionID() string {
	return c.ctx.SessionID
}

// Connected reports whether the handshake completed and dispatch events are
// flowing.
func (c *Client) Connected() bool {
	switch c.ctx.state.(type) {
	case *ConnectedState, *ResumeState:
		return true
	default:
		return false
	}
}

func (c *Client) Closed() bool {
	return c.ctx.closed.Load()
}

func (c *Client) Close(pipe io.Writer) error {
	err := c.ctx.WriteNormalClose(pipe)
	for _, closer := range c.closers {
		_ = closer.Close()
	}
	return err
}

// CloseWithReconnectIntent writes a restart close code, signalling that the
// session should be resumed by a new client instance.
func (c *Client) CloseWithReconnectIntent(pipe io.Writer) error {
	err := c.ctx.WriteRestartClose(pipe)
	for _, closer := range c.closers {
		_ = closer.Close()
	}
	return err
}

// ProcessNextPayload runs one payload through the state machine. Dispatch
// payloads advance the sequence number monotonically; replays are dropped
// and gaps force a resumable close since events were lost.
func (c *Client) ProcessNextPayload(payload *Payload, pipe io.Writer) (err error) {
	if payload.Op == opcode.Dispatch {
		if !c.ctx.sequenceNumber.CompareAndSwap(payload.Seq-1, payload.Seq) {
			if c.ctx.sequenceNumber.Load() >= payload.Seq {
				// already handled
				return nil
			}

			c.ctx.SetState(&ResumableClosedState{c.ctx})
			return ErrOutOfSync
		}
	}

	return c.ctx.Process(payload, pipe)
}

func (c *Client) Write(pipe io.Writer, opc command.Type, payload RawMessage) error {
	return c.ctx.Write(pipe, opc, payload)
}
