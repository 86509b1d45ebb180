package shard

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/diskordpkg/engine/gateway"
)

// Run dials the gateway and keeps the connection alive until the context is
// cancelled or the reconnect budget runs out. A session that was established
// at least once resets the failure counter; the connection is resumed when
// possible and re-identified otherwise.
func (s *Shard) Run(ctx context.Context, dialURL string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.conf.BackoffInitialInterval
	if policy.InitialInterval == 0 {
		policy.InitialInterval = time.Second
	}
	policy.Multiplier = 2
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	policy.Reset()

	failures := 0
	url := dialURL

	for {
		s.established.Store(false)
		err := s.serve(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.established.Load() {
			failures = 0
			policy.Reset()
		} else {
			failures++
			if failures >= s.conf.MaxReconnectAttempts {
				return &ConnectionError{Attempts: failures, Err: err}
			}
		}

		// A close code that forbids reconnecting surfaces as-is; wrapping it
		// in a ConnectionError would misreport it as budget exhaustion.
		var discordErr *gateway.DiscordError
		if errors.As(err, &discordErr) && !discordErr.CanReconnect() {
			return err
		}

		var prepErr error
		if url, prepErr = s.prepareForReconnect(dialURL); prepErr != nil {
			return &ConnectionError{Attempts: failures, Err: prepErr}
		}

		s.log.Info().
			Err(err).
			Int("failures", failures).
			Str("url", url).
			Msg("gateway connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.NextBackOff()):
		}
	}
}

func (s *Shard) dialAndServe(ctx context.Context, dialURL string) error {
	if _, err := s.Dial(ctx, dialURL); err != nil {
		return &WebsocketError{Err: err}
	}
	return s.EventLoop(ctx)
}

// prepareForReconnect replaces the spent client. If the old client still
// holds a resumable session the successor is seeded with it, and the resume
// url takes precedence over the configured dial url.
func (s *Shard) prepareForReconnect(fallbackURL string) (string, error) {
	options := s.clientOptions()
	url := fallbackURL

	if resumeURL, sessionID, seq, err := s.Client.ResumeDetails(); err == nil {
		options = append(options,
			gateway.WithSessionID(sessionID),
			gateway.WithSequenceNumber(seq),
			gateway.WithResumeGatewayURL(resumeURL),
		)
		if resumeURL != "" {
			url = ResumeURL(resumeURL)
		}
	}

	client, err := gateway.NewClient(s.botToken, options...)
	if err != nil {
		return "", err
	}

	s.Client = client
	s.Conn = nil
	s.textWriter = nil
	s.closeWriter = nil
	return url, nil
}
