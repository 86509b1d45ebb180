// Package shard owns the websocket connection for a single gateway client:
// dialing, the frame read loop, and reconnecting with session resume.
package shard

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/diskordpkg/engine/command"
	"github.com/diskordpkg/engine/event"
	"github.com/diskordpkg/engine/gateway"
)

type Config struct {
	BotToken string

	// Logger defaults to a nop logger.
	Logger zerolog.Logger

	// MaxReconnectAttempts bounds consecutive failed connection attempts
	// before Run gives up with a ConnectionError. Defaults to 5.
	MaxReconnectAttempts int

	// BackoffInitialInterval is the first reconnect delay; it doubles per
	// consecutive failure up to 30 seconds. Defaults to 1 second.
	BackoffInitialInterval time.Duration
}

func NewShard(id gateway.ShardID, conf Config, handler gateway.Handler, options ...gateway.Option) (*Shard, error) {
	if conf.MaxReconnectAttempts == 0 {
		conf.MaxReconnectAttempts = 5
	}

	s := &Shard{
		id:       id,
		botToken: conf.BotToken,
		handler:  handler,
		log:      conf.Logger,
		conf:     conf,
	}
	s.options = append(options,
		gateway.WithShardID(id),
		gateway.WithLogger(conf.Logger),
		gateway.WithEventHandler(s.onEvent),
	)
	s.serve = s.dialAndServe
	s.heartbeat = func() gateway.HeartbeatHandler {
		return &gateway.DefaultHeartbeatHandler{
			TextWriter:  &textPipe{shard: s},
			CloseWriter: &closePipe{shard: s},
		}
	}

	// validate options eagerly
	client, err := gateway.NewClient(conf.BotToken, s.clientOptions()...)
	if err != nil {
		return nil, err
	}
	s.Client = client

	return s, nil
}

type Shard struct {
	id       gateway.ShardID
	botToken string
	conf     Config
	options  []gateway.Option
	handler  gateway.Handler
	log      zerolog.Logger

	Conn        net.Conn
	Client      *gateway.Client
	textWriter  io.Writer
	closeWriter io.Writer

	// established flips once a ready or resumed event is seen for the
	// current connection attempt
	established atomic.Bool

	serve     func(ctx context.Context, dialURL string) error
	heartbeat func() gateway.HeartbeatHandler
}

// clientOptions builds the option set for a successor client. The heartbeat
// handler is single use: its Run goroutine belongs to one connection, so a
// shared instance would leak a stale heartbeater onto the next session.
// Every client gets a fresh one.
func (s *Shard) clientOptions() []gateway.Option {
	options := make([]gateway.Option, 0, len(s.options)+4)
	options = append(options, s.options...)
	return append(options, gateway.WithHeartbeatHandler(s.heartbeat()))
}

func (s *Shard) onEvent(id gateway.ShardID, evt event.Type, data gateway.RawMessage) {
	if evt == event.Ready || evt == event.Resumed {
		s.established.Store(true)
	}
	if s.handler != nil {
		s.handler(id, evt, data)
	}
}

type ioWriteFlusher struct {
	writer *wsutil.Writer
}

func (i *ioWriteFlusher) Write(p []byte) (n int, err error) {
	if n, err = i.writer.Write(p); err != nil {
		return n, err
	}
	return n, i.writer.Flush()
}

// textPipe defers to the writer created at dial time, so the gateway client
// can hold a writer reference before any connection exists.
type textPipe struct {
	shard *Shard
}

func (p *textPipe) Write(b []byte) (int, error) {
	if p.shard.textWriter == nil {
		return 0, net.ErrClosed
	}
	return p.shard.textWriter.Write(b)
}

// closePipe writes a close frame and arms a read deadline, so a read loop
// hanging on a dead network connection is forced to unblock.
type closePipe struct {
	shard *Shard
}

func (p *closePipe) Write(b []byte) (int, error) {
	if p.shard.closeWriter == nil {
		return 0, net.ErrClosed
	}

	n, err := p.shard.closeWriter.Write(b)
	if conn := p.shard.Conn; conn != nil {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	}
	return n, err
}

// Dial sets up the websocket connection before identifying with the gateway.
// The url must be complete and specify api version and encoding:
//
//	"wss://gateway.discord.gg/"                      => invalid
//	"wss://gateway.discord.gg/?v=10"                 => invalid
//	"wss://gateway.discord.gg/?v=10&encoding=json"   => valid
func (s *Shard) Dial(ctx context.Context, URLString string) (connection net.Conn, err error) {
	URLString, err = ValidateDialURL(URLString)
	if err != nil {
		return nil, err
	}

	conn, reader, _, err := ws.Dial(ctx, URLString)
	if err != nil {
		return nil, err
	}

	if reader != nil {
		defer ws.PutReader(reader)
		if reader.Size() > 0 {
			_ = conn.Close()
			return nil, errors.New("unable to handle data sent before the handshake completed")
		}
	}

	s.Conn = conn
	s.textWriter = s.writer(ws.OpText)
	s.closeWriter = s.writer(ws.OpClose)
	return conn, nil
}

func (s *Shard) writer(op ws.OpCode) io.Writer {
	return &ioWriteFlusher{wsutil.NewWriter(s.Conn, ws.StateClientSide, op)}
}

func (s *Shard) Write(opc command.Type, data []byte) error {
	return s.Client.Write(&textPipe{shard: s}, opc, data)
}

// Close closes the shard connection, the session can not be resumed.
func (s *Shard) Close() error {
	if s.Client.Closed() {
		return net.ErrClosed
	}

	_ = s.Client.Close(&closePipe{shard: s})
	if s.Conn != nil {
		_ = s.Conn.Close()
	}
	return nil
}

// EventLoop reads frames until the connection dies or the peer closes the
// session. The returned error describes why the loop stopped; HandleError
// has already classified whether the session survives.
func (s *Shard) EventLoop(ctx context.Context) error {
	defer func() {
		if !s.Client.Closed() {
			_ = s.Client.CloseWithReconnectIntent(&closePipe{shard: s})
			_ = s.Conn.Close()
		}
	}()

	controlHandler := wsutil.ControlFrameHandler(s.Conn, ws.StateClientSide)
	rd := wsutil.Reader{
		Source:          s.Conn,
		State:           ws.StateClientSide,
		CheckUTF8:       true,
		SkipHeaderCheck: false,
		OnIntermediate:  controlHandler,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := rd.NextFrame()
		if err != nil {
			_ = s.Conn.Close()

			closedConnection := strings.Contains(err.Error(), "use of closed network connection")
			closedConnection = closedConnection || strings.Contains(err.Error(), "use of closed connection")
			closedConnection = closedConnection || strings.Contains(err.Error(), "i/o timeout")
			if closedConnection || errors.Is(err, io.EOF) {
				return &WebsocketError{Err: net.ErrClosed}
			}
			return &WebsocketError{Err: err}
		}
		if hdr.OpCode.IsControl() {
			// the peer sends close frames as control frames, these must be handled
			if err := controlHandler(hdr, &rd); err != nil {
				var errClose wsutil.ClosedError
				if errors.As(err, &errClose) {
					return s.handleError(&gateway.WebsocketClosedError{
						Code:   uint16(errClose.Code),
						Reason: errClose.Reason,
					})
				}
				return &WebsocketError{Err: err}
			}
			continue
		}
		if hdr.OpCode&ws.OpText == 0 {
			// only text frames are expected, even for heartbeats
			if err := rd.Discard(); err != nil {
				return &WebsocketError{Err: err}
			}
			continue
		}

		payload, _, err := ReadPayload(&rd)
		if err != nil {
			return s.handleError(err)
		}

		if err := s.Client.ProcessNextPayload(payload, s.textWriter); err != nil {
			return s.handleError(err)
		}
	}
}
