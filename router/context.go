package router

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diskordpkg/engine/gate"
)

// Source states which gateway event produced an invocation.
type Source int

const (
	SourceMessage Source = iota
	SourceInteraction
)

// Responder sends the handler's reply back to the channel the invocation
// came from. The engine wires this to its REST client.
type Responder interface {
	Respond(ctx context.Context, channelID, content string) error
}

// Context carries everything a handler or check needs about one invocation.
// Each invocation gets a fresh Context with a unique ID for log correlation.
type Context struct {
	context.Context

	// ID uniquely identifies this invocation across logs and error reports.
	ID string

	Source    Source
	Command   *Definition
	Prefix    string
	UserID    string
	GuildID   string
	ChannelID string

	// RawContent is the message content after prefix stripping, empty for
	// interactions.
	RawContent string

	Log       zerolog.Logger
	responder Responder
	args      map[string]interface{}
}

func newContext(ctx context.Context, log zerolog.Logger, responder Responder) *Context {
	id := uuid.NewString()
	return &Context{
		Context:   ctx,
		ID:        id,
		Log:       log.With().Str("invocation", id).Logger(),
		responder: responder,
		args:      make(map[string]interface{}),
	}
}

// Keys builds the bucket key set for cooldown and concurrency gating.
func (c *Context) Keys() gate.KeySet {
	return gate.KeySet{
		UserID:    c.UserID,
		GuildID:   c.GuildID,
		ChannelID: c.ChannelID,
	}
}

// Reply sends content to the invocation's channel.
func (c *Context) Reply(content string) error {
	if c.responder == nil {
		return nil
	}
	return c.responder.Respond(c.Context, c.ChannelID, content)
}

// Arg returns the resolved argument value, or nil when absent.
func (c *Context) Arg(name string) interface{} {
	return c.args[name]
}

// StringArg returns the argument as a string, or "" when absent or of a
// different type.
func (c *Context) StringArg(name string) string {
	s, _ := c.args[name].(string)
	return s
}

func (c *Context) IntArg(name string) int64 {
	n, _ := c.args[name].(int64)
	return n
}

func (c *Context) FloatArg(name string) float64 {
	f, _ := c.args[name].(float64)
	return f
}

func (c *Context) BoolArg(name string) bool {
	b, _ := c.args[name].(bool)
	return b
}
