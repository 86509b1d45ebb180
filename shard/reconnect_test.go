package shard

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/diskordpkg/engine/closecode"
	"github.com/diskordpkg/engine/gateway"
)

func newTestShard(t *testing.T, options ...gateway.Option) *Shard {
	t.Helper()

	s, err := NewShard(0, Config{
		BotToken:               "token",
		MaxReconnectAttempts:   5,
		BackoffInitialInterval: time.Millisecond,
	}, nil, options...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRun_GivesUpAfterConsecutiveFailures(t *testing.T) {
	s := newTestShard(t)

	serveCalls := 0
	s.serve = func(ctx context.Context, dialURL string) error {
		serveCalls++
		return &WebsocketError{Err: net.ErrClosed}
	}

	err := s.Run(context.Background(), "wss://gateway.discord.gg/?v=10&encoding=json")

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected a fatal connection error. Got %+v", err)
	}
	if connErr.Attempts != 5 {
		t.Errorf("expected to give up after 5 attempts, got %d", connErr.Attempts)
	}
	if serveCalls != 5 {
		t.Errorf("expected 5 serve attempts, got %d", serveCalls)
	}
}

func TestRun_EstablishedSessionResetsFailureCount(t *testing.T) {
	s := newTestShard(t)
	s.conf.MaxReconnectAttempts = 2

	serveCalls := 0
	s.serve = func(ctx context.Context, dialURL string) error {
		serveCalls++
		if serveCalls == 2 {
			// handshake completed before the connection dropped
			s.established.Store(true)
		}
		return &WebsocketError{Err: net.ErrClosed}
	}

	err := s.Run(context.Background(), "wss://gateway.discord.gg/?v=10&encoding=json")

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected a fatal connection error. Got %+v", err)
	}
	// call 1 fails, call 2 establishes and resets, calls 3+4 exhaust the budget
	if serveCalls != 4 {
		t.Errorf("an established session should reset the failure count, got %d serve attempts", serveCalls)
	}
}

func TestRun_FatalCloseCodeStopsImmediately(t *testing.T) {
	s := newTestShard(t)

	serveCalls := 0
	s.serve = func(ctx context.Context, dialURL string) error {
		serveCalls++
		s.established.Store(true)
		return &gateway.DiscordError{CloseCode: closecode.AuthenticationFailed}
	}

	err := s.Run(context.Background(), "wss://gateway.discord.gg/?v=10&encoding=json")

	var discordErr *gateway.DiscordError
	if !errors.As(err, &discordErr) {
		t.Fatalf("expected the close code to surface. Got %+v", err)
	}
	if discordErr.CloseCode != closecode.AuthenticationFailed {
		t.Errorf("wrong close code reported: %d", discordErr.CloseCode)
	}

	// not a budget exhaustion, must not masquerade as one
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		t.Errorf("a close code rejection reported as exhausted budget: %+v", err)
	}
	if serveCalls != 1 {
		t.Errorf("authentication failure must not be retried, got %d serve attempts", serveCalls)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	s := newTestShard(t)

	ctx, cancel := context.WithCancel(context.Background())
	s.serve = func(ctx context.Context, dialURL string) error {
		cancel()
		return &WebsocketError{Err: net.ErrClosed}
	}

	err := s.Run(ctx, "wss://gateway.discord.gg/?v=10&encoding=json")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation to surface. Got %+v", err)
	}
}

func TestPrepareForReconnect_PrefersResume(t *testing.T) {
	s := newTestShard(t,
		gateway.WithSessionID("sgrtxfh"),
		gateway.WithSequenceNumber(88),
		gateway.WithResumeGatewayURL("wss://resume.discord.gg/"),
	)

	url, err := s.prepareForReconnect("wss://gateway.discord.gg/?v=10&encoding=json")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(url, "resume.discord.gg") {
		t.Errorf("resume url should take precedence over the dial url. Got %s", url)
	}
	if _, err := ValidateDialURL(url); err != nil {
		t.Errorf("resume url should be dialable: %v", err)
	}

	if s.Client.SessionID() != "sgrtxfh" {
		t.Error("successor client was not seeded with the held session")
	}
	if s.Client.SequenceNumber() != 88 {
		t.Errorf("successor client lost the sequence number: %d", s.Client.SequenceNumber())
	}
}

func TestPrepareForReconnect_FreshHeartbeatHandler(t *testing.T) {
	s := newTestShard(t)

	// a heartbeat handler's Run goroutine is bound to one connection; reusing
	// the instance would leave a stale heartbeater running against the
	// successor session
	handlers := make(map[gateway.HeartbeatHandler]bool)
	s.heartbeat = func() gateway.HeartbeatHandler {
		handler := &gateway.DefaultHeartbeatHandler{
			TextWriter:  &textPipe{shard: s},
			CloseWriter: &closePipe{shard: s},
		}
		handlers[handler] = true
		return handler
	}

	for i := 0; i < 3; i++ {
		if _, err := s.prepareForReconnect("wss://gateway.discord.gg/?v=10&encoding=json"); err != nil {
			t.Fatal(err)
		}
	}

	if len(handlers) != 3 {
		t.Errorf("every successor client must get its own heartbeat handler, got %d for 3 reconnects", len(handlers))
	}
}

func TestPrepareForReconnect_FallsBackToIdentify(t *testing.T) {
	s := newTestShard(t)

	url, err := s.prepareForReconnect("wss://gateway.discord.gg/?v=10&encoding=json")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(url, "gateway.discord.gg") {
		t.Errorf("without a session the configured dial url must be used. Got %s", url)
	}
	if s.Client.SessionID() != "" {
		t.Error("successor client should start without a session")
	}
}
