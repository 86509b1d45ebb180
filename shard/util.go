package shard

import (
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/diskordpkg/engine/gateway"
	"github.com/diskordpkg/engine/json"
)

// DeriveShardID distributes snowflakes over the given number of shards the
// same way the gateway does for guild events.
func DeriveShardID(snowflake uint64, totalNumberOfShards uint) gateway.ShardID {
	createdUnix := snowflake >> 22
	groups := uint64(totalNumberOfShards)
	return gateway.ShardID(createdUnix % groups)
}

var supportedAPIVersions = []string{
	"8", "9", "10",
}
var supportedAPICodecs = []string{
	"json",
}

var ErrURLScheme = errors.New("url scheme was not websocket (ws nor wss)")
var ErrUnsupportedAPIVersion = fmt.Errorf("only api version %+v is supported", supportedAPIVersions)
var ErrUnsupportedAPICodec = fmt.Errorf("only %+v encoding is supported", supportedAPICodecs)
var ErrIncompleteDialURL = errors.New("incomplete url is missing one or many of: 'version', 'encoding', 'scheme'")

func ValidateDialURL(URLString string) (string, error) {
	in := func(keyword string, slice []string) bool {
		for i := range slice {
			if keyword == slice[i] {
				return true
			}
		}
		return false
	}

	u, urlErr := url.Parse(URLString)
	if urlErr != nil {
		return "", urlErr
	}

	scheme := u.Scheme
	v := u.Query().Get("v")
	encoding := u.Query().Get("encoding")

	if v == "" || encoding == "" || scheme == "" {
		return "", ErrIncompleteDialURL
	}

	if scheme != "ws" && scheme != "wss" {
		return "", ErrURLScheme
	}
	if !in(v, supportedAPIVersions) {
		return "", ErrUnsupportedAPIVersion
	}
	if !in(encoding, supportedAPICodecs) {
		return "", ErrUnsupportedAPICodec
	}

	return u.String(), nil
}

// ResumeURL completes a bare resume url with the query parameters a dial
// requires. The gateway hands out resume urls without them.
func ResumeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := u.Query()
	if query.Get("v") == "" {
		query.Set("v", "10")
	}
	if query.Get("encoding") == "" {
		query.Set("encoding", "json")
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// ReadPayload drains the reader and decodes a single payload envelope.
func ReadPayload(client io.Reader) (*gateway.Payload, int, error) {
	data, err := io.ReadAll(client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read data. %w", err)
	}

	packet := &gateway.Payload{}
	if err = json.Unmarshal(data, packet); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal packet. %w", err)
	}

	return packet, len(data), nil
}
