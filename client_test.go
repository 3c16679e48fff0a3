package xfeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	URL     string
	Headers map[string]string
}

type fakeDoer struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(call fakeCall) ([]byte, map[string]string, int, error)
}

func (d *fakeDoer) DoWithHeaderOrder(method, rawURL string, headers map[string]string, _ io.Reader, _ []string) ([]byte, map[string]string, int, error) {
	call := fakeCall{URL: rawURL, Headers: headers}
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
	return d.respond(call)
}

func (d *fakeDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

var testCreds = CookieJar{"auth_token": "tok", "ct0": "csrf-123", "twid": "u%3D1"}

func testClient(d *fakeDoer, mutate ...func(*ClientConfig)) *Client {
	cfg := ClientConfig{
		MinInterval:   -1,
		DisableJitter: true,
		Resolver:      &Resolver{Narrow: StaticSource(testCreds)},
		Signer: SignerFunc(func(context.Context, string, string) (string, error) {
			return "tx-test", nil
		}),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return newClient(cfg, d, "test-agent/1.0")
}

func respondWith(status int, body string) func(fakeCall) ([]byte, map[string]string, int, error) {
	return func(fakeCall) ([]byte, map[string]string, int, error) {
		return []byte(body), map[string]string{}, status, nil
	}
}

func TestFetchFollowingTimelineRequest(t *testing.T) {
	d := &fakeDoer{respond: respondWith(200, tweetParseBody)}
	c := testClient(d)

	batch, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{Count: 20, Cursor: "cur-1"})
	require.NoError(t, err)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "111", batch.Items[0].ID)
	assert.Equal(t, "cursor-abc", batch.NextCursor)

	require.Equal(t, 1, d.count())
	call := d.calls[0]
	u, err := url.Parse(call.URL)
	require.NoError(t, err)
	assert.Equal(t, "/i/api/graphql/_qO7FJzShSKYWi9gtboE6A/HomeLatestTimeline", u.Path)

	var vars map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("variables")), &vars))
	assert.Equal(t, map[string]any{
		"count":                  float64(20),
		"cursor":                 "cur-1",
		"includePromotedContent": false,
		"latestControlAvailable": true,
		"withCommunity":          false,
	}, vars)

	var features map[string]bool
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("features")), &features))
	assert.Len(t, features, 34)
	assert.True(t, features["view_counts_everywhere_api_enabled"])
	assert.False(t, features["rweb_video_screen_enabled"])

	h := call.Headers
	assert.Equal(t, "csrf-123", h["x-csrf-token"])
	assert.Equal(t, "tx-test", h["x-client-transaction-id"])
	assert.Equal(t, "https://x.com/home", h["referer"])
	assert.Equal(t, "auth_token=tok; ct0=csrf-123; twid=u%3D1;", h["cookie"])
	assert.Equal(t, "Bearer "+BearerToken, h["authorization"])
	assert.Equal(t, "OAuth2Session", h["x-twitter-auth-type"])
	assert.Equal(t, "test-agent/1.0", h["user-agent"])
}

func TestFetchFollowingTimelineDefaults(t *testing.T) {
	d := &fakeDoer{respond: respondWith(200, `{"data":{}}`)}
	token := EncodeCookieString("auth_token=other; ct0=other-csrf;")

	batch, err := testClient(d).FetchFollowingTimeline(context.Background(), TimelineRequest{CookieString: token})
	require.NoError(t, err)
	assert.Empty(t, batch.Items)
	assert.Empty(t, batch.NextCursor)

	u, err := url.Parse(d.calls[0].URL)
	require.NoError(t, err)
	vars := u.Query().Get("variables")
	assert.Contains(t, vars, `"count":40`)
	assert.NotContains(t, vars, "cursor")
	assert.Equal(t, "other-csrf", d.calls[0].Headers["x-csrf-token"])
}

func TestFetchFollowingTimelineNoSession(t *testing.T) {
	d := &fakeDoer{respond: respondWith(200, `{}`)}
	c := testClient(d, func(cfg *ClientConfig) { cfg.Resolver = &Resolver{} })

	_, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.ErrorIs(t, err, ErrSessionMissing)
	assert.Equal(t, CategoryExpiredSession, Classify(err))
	assert.Zero(t, d.count())
}

func TestFetchFollowingTimelineFailures(t *testing.T) {
	long := strings.Repeat("x", 2000)
	tests := []struct {
		name     string
		respond  func(fakeCall) ([]byte, map[string]string, int, error)
		target   error
		category Category
		check    func(t *testing.T, err error)
	}{
		{
			name:     "server error",
			respond:  respondWith(503, long),
			target:   ErrRequestFailed,
			category: CategoryConnectivity,
			check: func(t *testing.T, err error) {
				var re *RequestError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, 503, re.Status)
				assert.Len(t, re.BodyPrefix, 800)
				assert.Contains(t, err.Error(), "status=503")
			},
		},
		{
			name:     "unauthorized",
			respond:  respondWith(401, `{"errors":[{"code":32,"message":"Could not authenticate you."}]}`),
			target:   ErrRequestFailed,
			category: CategoryExpiredSession,
			check: func(t *testing.T, err error) {
				var re *RequestError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, 32, re.Code)
			},
		},
		{
			name:     "error payload without data",
			respond:  respondWith(200, `{"errors":[{"code":353,"message":"csrf"}]}`),
			target:   ErrRequestFailed,
			category: CategoryExpiredSession,
		},
		{
			name:     "invalid JSON",
			respond:  respondWith(200, "<html>\n  <body>maintenance</body>\n</html>"),
			target:   ErrResponseInvalid,
			category: CategoryUnexpectedResponse,
			check: func(t *testing.T, err error) {
				var re *ResponseError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, "<html> <body>maintenance</body> </html>", re.BodyPrefix)
			},
		},
		{
			name: "transport",
			respond: func(fakeCall) ([]byte, map[string]string, int, error) {
				return nil, nil, 0, errors.New("connection reset")
			},
			target:   ErrRequestFailed,
			category: CategoryConnectivity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testClient(&fakeDoer{respond: tt.respond}).FetchFollowingTimeline(context.Background(), TimelineRequest{})
			require.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.category, Classify(err))
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestFetchPartialErrorsKeepData(t *testing.T) {
	body := `{"errors":[{"code":131,"message":"partial"}],"data":{"home":{"home_timeline_urt":{"instructions":[]}}}}`
	_, err := testClient(&fakeDoer{respond: respondWith(200, body)}).FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.NoError(t, err)
}

func TestFetchRateLimitMarksEndpoint(t *testing.T) {
	d := &fakeDoer{respond: func(fakeCall) ([]byte, map[string]string, int, error) {
		return []byte(`{"errors":[{"code":88}]}`), map[string]string{"x-rate-limit-reset": "9999999999"}, 429, nil
	}}
	var outcomes []bool
	c := testClient(d, func(cfg *ClientConfig) {
		cfg.MetricsHook = func(endpoint string, success, rateLimited bool) {
			assert.Equal(t, "HomeLatestTimeline", endpoint)
			outcomes = append(outcomes, rateLimited)
		}
	})

	_, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	var re *RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 429, re.Status)

	_, err = c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 429, re.Status)
	assert.Contains(t, re.BodyPrefix, "rate limited until")
	assert.Equal(t, 1, d.count(), "second call must not reach the network")
	assert.Equal(t, []bool{true, true}, outcomes)
	assert.Equal(t, CategoryConnectivity, Classify(err))
}

func TestFetchSignerFailure(t *testing.T) {
	d := &fakeDoer{respond: func(call fakeCall) ([]byte, map[string]string, int, error) {
		if call.URL == xBase {
			return []byte("unavailable"), nil, 503, nil
		}
		return []byte(`{}`), nil, 200, nil
	}}
	c := testClient(d, func(cfg *ClientConfig) { cfg.Signer = nil })

	_, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.ErrorIs(t, err, ErrSigningFailed)
	var se *SigningError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "landing", se.Stage)
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Equal(t, CategoryConnectivity, Classify(err))

	require.Equal(t, 1, d.count(), "timeline must not be requested without a transaction id")
	assert.Equal(t, "auth_token=tok; ct0=csrf-123; twid=u%3D1;", d.calls[0].Headers["cookie"])
}

func TestSignerScriptFetchOmitsCookies(t *testing.T) {
	d := &fakeDoer{respond: func(call fakeCall) ([]byte, map[string]string, int, error) {
		if call.URL == xBase {
			return []byte(`<html><script>var m={"ondemand.s":"abc123"};</script></html>`), nil, 200, nil
		}
		return []byte(`x=(a[3], 16)`), nil, 200, nil
	}}
	c := testClient(d, func(cfg *ClientConfig) { cfg.Signer = nil })

	_, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.ErrorIs(t, err, ErrSigningFailed)

	require.Equal(t, 2, d.count())
	landing, script := d.calls[0], d.calls[1]
	assert.Equal(t, xBase, landing.URL)
	assert.Equal(t, "auth_token=tok; ct0=csrf-123; twid=u%3D1;", landing.Headers["cookie"])

	assert.True(t, strings.HasPrefix(script.URL, "https://abs.twimg.com/"), script.URL)
	assert.NotContains(t, script.Headers, "cookie")
	assert.NotContains(t, script.Headers, "x-csrf-token")
	assert.Equal(t, "script", script.Headers["sec-fetch-dest"])
}

func TestFetchEmptyTransactionID(t *testing.T) {
	d := &fakeDoer{respond: respondWith(200, `{}`)}
	c := testClient(d, func(cfg *ClientConfig) {
		cfg.Signer = SignerFunc(func(context.Context, string, string) (string, error) { return "", nil })
	})
	_, err := c.FetchFollowingTimeline(context.Background(), TimelineRequest{})
	require.ErrorIs(t, err, ErrSigningFailed)
	assert.Zero(t, d.count())
}

func TestClientPaginator(t *testing.T) {
	pages := map[string]string{
		"":   `{"data":{"entries":[` + tweetNode("1", "a", "one") + `,{"cursorType":"Bottom","value":"c1"}]}}`,
		"c1": `{"data":{"entries":[` + tweetNode("2", "b", "two") + `]}}`,
	}
	d := &fakeDoer{respond: func(call fakeCall) ([]byte, map[string]string, int, error) {
		u, _ := url.Parse(call.URL)
		var vars struct {
			Cursor string `json:"cursor"`
		}
		_ = json.Unmarshal([]byte(u.Query().Get("variables")), &vars)
		return []byte(pages[vars.Cursor]), nil, 200, nil
	}}

	res, err := testClient(d).NewPaginator(TimelineRequest{Count: 5}, 10).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopDone, res.StoppedBecause)
	assert.Equal(t, []string{"1", "2"}, ids(res.Items))
	assert.Equal(t, 2, d.count())
}

func TestRotatedCT0(t *testing.T) {
	assert.Equal(t, "fresh", rotatedCT0(map[string]string{"set-cookie": "ct0=fresh; Path=/; Domain=.x.com"}))
	assert.Empty(t, rotatedCT0(map[string]string{"set-cookie": "guest_id=1; Path=/"}))
	assert.Empty(t, rotatedCT0(nil))
	assert.Equal(t, "abc...", tokenPrefix("abc"))
}
