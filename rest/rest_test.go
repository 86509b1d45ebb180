package rest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLimiter returns a limiter with a controllable clock whose sleeps
// advance the clock instead of blocking.
func testLimiter() (*RateLimiter, *[]time.Duration) {
	now := time.Unix(1000, 0)
	slept := &[]time.Duration{}

	limiter := NewRateLimiter()
	limiter.now = func() time.Time { return now }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		now = now.Add(d)
		return ctx.Err()
	}
	return limiter, slept
}

func TestRateLimiter_LearnsBucketState(t *testing.T) {
	limiter, slept := testLimiter()
	route := "/channels/123/messages"

	// provisional bucket admits the first call
	require.NoError(t, limiter.Reserve(context.Background(), route))

	limiter.Update(route, Metadata{Bucket: "abc", Remaining: 0, ResetAfter: 2 * time.Second})

	// exhausted bucket forces a wait until the reset
	require.NoError(t, limiter.Reserve(context.Background(), route))
	require.NotEmpty(t, *slept)
	assert.Equal(t, 2*time.Second, (*slept)[0])
}

func TestRateLimiter_RoutesShareBuckets(t *testing.T) {
	limiter, slept := testLimiter()
	routeA := "/channels/123/messages"
	routeB := "/channels/456/messages"

	require.NoError(t, limiter.Reserve(context.Background(), routeA))
	limiter.Update(routeA, Metadata{Bucket: "shared", Remaining: 0, ResetAfter: 5 * time.Second})

	require.NoError(t, limiter.Reserve(context.Background(), routeB))
	limiter.Update(routeB, Metadata{Bucket: "shared", Remaining: 0, ResetAfter: 5 * time.Second})

	// both routes now drain the same bucket; a third call must wait
	require.NoError(t, limiter.Reserve(context.Background(), routeA))
	assert.NotEmpty(t, *slept, "routes mapped to one bucket id must share quota")
}

func TestRateLimiter_UnbucketedRouteKeepsCapacity(t *testing.T) {
	limiter, slept := testLimiter()
	route := "/interactions/123/token/callback"

	// no rate-limit headers on any response; repeated calls must keep flowing
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Reserve(ctx, route))
		limiter.Update(route, Metadata{})
	}
	assert.Empty(t, *slept, "an unbucketed route must never be throttled")
}

func TestRateLimiter_HeaderlessResponseKeepsLearnedState(t *testing.T) {
	limiter, slept := testLimiter()
	route := "/channels/123/messages"

	require.NoError(t, limiter.Reserve(context.Background(), route))
	limiter.Update(route, Metadata{Bucket: "abc", Remaining: 0, ResetAfter: 2 * time.Second})

	// a stray response without headers must not clobber the learned quota
	limiter.Update(route, Metadata{})

	require.NoError(t, limiter.Reserve(context.Background(), route))
	require.NotEmpty(t, *slept)
	assert.Equal(t, 2*time.Second, (*slept)[0])
}

func TestRateLimiter_GlobalLock(t *testing.T) {
	limiter, slept := testLimiter()

	limiter.Update("/any", Metadata{Global: true, ResetAfter: 3 * time.Second})

	// every route suspends until the global reset passes
	require.NoError(t, limiter.Reserve(context.Background(), "/unrelated"))
	require.NotEmpty(t, *slept)
	assert.Equal(t, 3*time.Second, (*slept)[0])
}

func TestRateLimiter_ReserveHonorsContext(t *testing.T) {
	limiter, _ := testLimiter()
	route := "/channels/123/messages"

	require.NoError(t, limiter.Reserve(context.Background(), route))
	limiter.Update(route, Metadata{Bucket: "abc", Remaining: 0, ResetAfter: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Reserve(ctx, route))
}

// scriptedTransport replays canned responses in order.
type scriptedTransport struct {
	responses []*Response
	requests  []*Request
}

func (t *scriptedTransport) Do(_ context.Context, req *Request) (*Response, error) {
	t.requests = append(t.requests, req)
	resp := t.responses[0]
	if len(t.responses) > 1 {
		t.responses = t.responses[1:]
	}
	return resp, nil
}

func newTestClient(transport Transport) *Client {
	limiter, _ := testLimiter()
	return NewClient("token",
		WithTransport(transport),
		WithRateLimiter(limiter),
	)
}

func TestClient_PropagatesHTTPError(t *testing.T) {
	transport := &scriptedTransport{responses: []*Response{
		{StatusCode: http.StatusForbidden, Body: []byte(`{"message":"Missing Permissions"}`)},
	}}
	client := newTestClient(transport)

	_, err := client.Do(context.Background(), &Request{Method: http.MethodPost, Route: "/channels/123/messages"})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Contains(t, string(httpErr.Body), "Missing Permissions")
}

func TestClient_RetriesOnceAfter429(t *testing.T) {
	transport := &scriptedTransport{responses: []*Response{
		{StatusCode: http.StatusTooManyRequests, Metadata: Metadata{Bucket: "abc", Remaining: 0, ResetAfter: time.Second}},
		{StatusCode: http.StatusOK, Body: []byte(`{}`), Metadata: Metadata{Bucket: "abc", Remaining: 4, ResetAfter: time.Second}},
	}}
	client := newTestClient(transport)

	resp, err := client.Do(context.Background(), &Request{Method: http.MethodPost, Route: "/channels/123/messages"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, transport.requests, 2)
}

func TestClient_CreateMessage(t *testing.T) {
	transport := &scriptedTransport{responses: []*Response{
		{StatusCode: http.StatusOK, Body: []byte(`{}`)},
	}}
	client := newTestClient(transport)

	require.NoError(t, client.CreateMessage(context.Background(), "123", "hello"))
	require.Len(t, transport.requests, 1)

	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/channels/123/messages", req.Route)
	assert.Contains(t, string(req.Body), `"content":"hello"`)
}

func TestMetadataFromHeader(t *testing.T) {
	header := http.Header{}
	header.Set("X-RateLimit-Bucket", "abcd1234")
	header.Set("X-RateLimit-Remaining", "3")
	header.Set("X-RateLimit-Reset-After", "1.5")

	meta := metadataFromHeader(header)
	assert.Equal(t, "abcd1234", meta.Bucket)
	assert.Equal(t, 3, meta.Remaining)
	assert.Equal(t, 1500*time.Millisecond, meta.ResetAfter)
	assert.False(t, meta.Global)

	header.Set("X-RateLimit-Global", "true")
	assert.True(t, metadataFromHeader(header).Global)
}
