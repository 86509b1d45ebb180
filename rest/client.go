package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/diskordpkg/engine/json"
)

// Client combines the limiter and the transport: every call reserves the
// route's bucket, executes, then feeds the response headers back into the
// limiter. A 429 is retried once after the reported reset.
type Client struct {
	transport Transport
	limiter   *RateLimiter
	log       zerolog.Logger
}

type ClientOption func(*Client)

func WithTransport(transport Transport) ClientOption {
	return func(c *Client) {
		c.transport = transport
	}
}

func WithRateLimiter(limiter *RateLimiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(botToken string, options ...ClientOption) *Client {
	c := &Client{
		log: zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	if c.transport == nil {
		c.transport = &HTTPTransport{
			BaseURL:  "https://discord.com/api/v10",
			BotToken: botToken,
		}
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter()
	}
	return c
}

// Do runs one rate-limited exchange. Non-2xx statuses come back as an
// *HTTPError so handlers can inspect the status and body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	const maxAttempts = 2
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Reserve(ctx, req.Route); err != nil {
			return nil, err
		}

		resp, err := c.transport.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("rest: %s %s: %w", req.Method, req.Route, err)
		}
		c.limiter.Update(req.Route, resp.Metadata)

		if resp.StatusCode == http.StatusTooManyRequests && attempt+1 < maxAttempts {
			c.log.Warn().Str("route", req.Route).Dur("reset-after", resp.Metadata.ResetAfter).Msg("rate limited, retrying after reset")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp, &HTTPError{StatusCode: resp.StatusCode, Route: req.Route, Body: resp.Body}
		}
		return resp, nil
	}
}

// CreateMessage posts a plain text message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) error {
	body, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return err
	}

	_, err = c.Do(ctx, &Request{
		Method: http.MethodPost,
		Route:  "/channels/" + channelID + "/messages",
		Body:   body,
	})
	return err
}

// CreateInteractionResponse answers an interaction with a channel message.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, token, content string) error {
	body, err := json.Marshal(struct {
		Type int `json:"type"`
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}{
		Type: 4, // CHANNEL_MESSAGE_WITH_SOURCE
		Data: struct {
			Content string `json:"content"`
		}{Content: content},
	})
	if err != nil {
		return err
	}

	_, err = c.Do(ctx, &Request{
		Method: http.MethodPost,
		Route:  "/interactions/" + interactionID + "/" + url.PathEscape(token) + "/callback",
		Body:   body,
	})
	return err
}
