// Package engine ties the gateway, dispatcher, router, gate and REST client
// into one bot engine: events stream in over a sharded websocket connection,
// command-relevant events route through the registry on a worker pool, and
// handlers answer through the rate-limited REST client.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/diskordpkg/engine/dispatch"
	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/gate"
	"github.com/diskordpkg/engine/gateway"
	"github.com/diskordpkg/engine/json"
	"github.com/diskordpkg/engine/rest"
	"github.com/diskordpkg/engine/router"
	"github.com/diskordpkg/engine/shard"
)

const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

type Config struct {
	BotToken string

	// Prefix triggers message commands. Defaults to "!".
	Prefix string

	ShardID    uint
	ShardCount uint

	// GatewayURL defaults to the v10 json endpoint.
	GatewayURL string

	// Workers and QueueSize dimension the handler pool. Defaults: 16, 256.
	Workers   int
	QueueSize int

	Logger zerolog.Logger

	// Rest replaces the default REST client, mainly for tests.
	Rest *rest.Client

	// GatewayOptions are passed through to the gateway client, on top of the
	// engine's own wiring. Defaults subscribe to guild and direct messages
	// plus interactions.
	GatewayOptions []gateway.Option
}

// ErrorHandler receives every command failure. The error's Kind states the
// failure class; see router.Kind.
type ErrorHandler func(cerr *router.CommandError)

type Engine struct {
	cfg Config
	log zerolog.Logger

	shard      *shard.Shard
	dispatcher *dispatch.Dispatcher
	pool       *dispatch.Pool
	registry   *router.Registry
	gate       *gate.Gate
	rest       *rest.Client

	onError ErrorHandler

	runCtx   context.Context
	shutdown atomic.Bool
}

// restResponder lets handlers reply without seeing the REST client.
type restResponder struct {
	client *rest.Client
}

func (r *restResponder) Respond(ctx context.Context, channelID, content string) error {
	return r.client.CreateMessage(ctx, channelID, content)
}

func New(cfg Config) (*Engine, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("missing bot token")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultGatewayURL
	}
	if cfg.Workers == 0 {
		cfg.Workers = 16
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}

	e := &Engine{
		cfg:    cfg,
		log:    cfg.Logger,
		runCtx: context.Background(),
		gate:   gate.New(),
		rest:   cfg.Rest,
	}
	if e.rest == nil {
		e.rest = rest.NewClient(cfg.BotToken, rest.WithLogger(cfg.Logger))
	}

	e.registry = router.NewRegistry(
		router.WithGate(e.gate),
		router.WithLogger(cfg.Logger),
		router.WithResponder(&restResponder{client: e.rest}),
	)

	e.dispatcher = dispatch.NewDispatcher(cfg.Logger, nil)
	e.pool = dispatch.NewPool(cfg.Workers, cfg.QueueSize)

	e.dispatcher.On(event.MessageCreate, e.onMessageCreate)
	e.dispatcher.On(event.InteractionCreate, e.onInteractionCreate)

	options := cfg.GatewayOptions
	if len(options) == 0 {
		options = []gateway.Option{
			gateway.WithGuildEvents(event.MessageCreate, event.InteractionCreate),
			gateway.WithDirectMessageEvents(event.MessageCreate, event.InteractionCreate),
		}
	}
	if cfg.ShardCount > 0 {
		options = append(options, gateway.WithShardCount(int(cfg.ShardCount)))
	}

	sh, err := shard.NewShard(
		gateway.ShardID(cfg.ShardID),
		shard.Config{BotToken: cfg.BotToken, Logger: cfg.Logger},
		e.onGatewayEvent,
		options...,
	)
	if err != nil {
		return nil, fmt.Errorf("setting up shard: %w", err)
	}
	e.shard = sh

	return e, nil
}

// Command registers a top level command or group.
func (e *Engine) Command(def *router.Definition) error {
	return e.registry.Add(def)
}

// On registers a raw event listener alongside the command pipeline.
func (e *Engine) On(evt event.Type, fn dispatch.Listener) dispatch.Handle {
	return e.dispatcher.On(evt, fn)
}

// Off removes a listener registered with On.
func (e *Engine) Off(h dispatch.Handle) {
	e.dispatcher.Off(h)
}

// OnCommandError replaces the default error handler. All command failures
// funnel through here, tagged with a router.Kind.
func (e *Engine) OnCommandError(fn ErrorHandler) {
	e.onError = fn
}

// Rest exposes the rate-limited REST client for handler side effects beyond
// plain replies.
func (e *Engine) Rest() *rest.Client {
	return e.rest
}

// Run connects the shard and blocks until the context is cancelled or the
// connection fails fatally.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	return e.shard.Run(ctx, e.cfg.GatewayURL)
}

// Shutdown stops intake of new invocations, closes the gateway and waits
// for in-flight handlers until the context expires. Handlers are never
// forcibly cancelled.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdown.Store(true)
	_ = e.shard.Close()
	return e.pool.Shutdown(ctx)
}

// onGatewayEvent runs on the shard's read loop; it only hands the event to
// the pool so a slow listener can never stall heartbeats.
func (e *Engine) onGatewayEvent(_ gateway.ShardID, evt event.Type, data gateway.RawMessage) {
	err := e.pool.Submit(func() {
		e.dispatcher.Dispatch(evt, json.RawMessage(data))
	})
	if err != nil {
		e.log.Warn().Err(err).Str("event", string(evt)).Msg("dropping event")
	}
}

func (e *Engine) onMessageCreate(_ event.Type, data json.RawMessage) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	if msg.Author.Bot {
		return nil
	}

	content, ok := router.StripPrefix(msg.Content, e.cfg.Prefix)
	if !ok || e.shutdown.Load() {
		return nil
	}

	err := e.registry.Invoke(e.runCtx, router.Invocation{
		Source:    router.SourceMessage,
		Prefix:    e.cfg.Prefix,
		Content:   content,
		UserID:    msg.Author.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
	})
	if err != nil {
		e.reportCommandError(err)
	}
	return nil
}

func (e *Engine) onInteractionCreate(_ event.Type, data json.RawMessage) error {
	var interaction Interaction
	if err := json.Unmarshal(data, &interaction); err != nil {
		return fmt.Errorf("decoding interaction: %w", err)
	}
	// only application commands carry an invocable name
	if interaction.Type != 2 || e.shutdown.Load() {
		return nil
	}

	path, options := interaction.commandPath()
	err := e.registry.Invoke(e.runCtx, router.Invocation{
		Source:    router.SourceInteraction,
		Path:      path,
		Options:   options,
		UserID:    interaction.UserID(),
		GuildID:   interaction.GuildID,
		ChannelID: interaction.ChannelID,
	})
	if err != nil {
		e.reportCommandError(err)
	}
	return nil
}

// reportCommandError is the single point every command failure passes
// through. A custom handler sees the tagged error as-is; the default logs
// by failure class.
func (e *Engine) reportCommandError(err error) {
	var cerr *router.CommandError
	if !errors.As(err, &cerr) {
		cerr = &router.CommandError{Kind: router.KindUnknown, Err: err}
	}

	if e.onError != nil {
		e.onError(cerr)
		return
	}

	switch cerr.Kind {
	case router.KindCommandNotFound:
		e.log.Debug().Str("command", cerr.Command).Msg("unknown command")
	case router.KindMissingRequiredArgument, router.KindBadArgument, router.KindCheckFailure:
		e.log.Info().Err(cerr).Msg("command rejected")
	case router.KindCommandOnCooldown, router.KindMaxConcurrencyReached:
		e.log.Info().Err(cerr).Msg("command throttled")
	default:
		e.log.Error().Err(cerr).Msg("command failed")
	}
}
