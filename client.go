package xfeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/anatolykoptev/go-xfeed/xtid"
	"golang.org/x/time/rate"
)

// doer is the transport surface of stealth.BrowserClient used here.
type doer interface {
	DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
}

// Client fetches and normalizes the following timeline of one X session.
type Client struct {
	http      doer
	xtid      *xtid.Signer
	limiter   *ratelimit.Limiter
	pace      *rate.Limiter
	cfg       ClientConfig
	userAgent string
}

// NewClient creates a fully-wired timeline client.
func NewClient(cfg ClientConfig) (*Client, error) {
	n := len(stealth.BuiltinProfiles)
	profile := stealth.BuiltinProfiles[((cfg.ProfileIndex%n)+n)%n]

	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(headerOrder),
		stealth.WithProfile(profile.TLSProfile),
	}
	if cfg.Proxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.Proxy))
		slog.Info("using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = profile.UserAgent
	}
	return newClient(cfg, bc, ua), nil
}

func newClient(cfg ClientConfig, d doer, userAgent string) *Client {
	cfg.defaults()
	pace := rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	if cfg.MinInterval < 0 {
		pace = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		http:      d,
		xtid:      xtid.NewSigner(cfg.LandingURL, nil),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		pace:      pace,
		cfg:       cfg,
		userAgent: userAgent,
	}
}

// FetchFollowingTimeline resolves credentials, signs and fetches one page of
// the following timeline and normalizes it.
func (c *Client) FetchFollowingTimeline(ctx context.Context, req TimelineRequest) (*TimelineBatch, error) {
	count := req.Count
	if count <= 0 {
		count = c.cfg.Count
	}

	creds, err := c.cfg.Resolver.Resolve(ctx, req.CookieString)
	if err != nil {
		return nil, err
	}
	slog.Debug("session resolved",
		slog.Bool("kdt", creds.KDT != ""),
		slog.Bool("twid", creds.TWID != ""))

	signer := c.cfg.Signer
	if signer == nil {
		signer = c.sessionSigner(creds)
	}
	txID, err := sign(ctx, signer, "GET", HomeLatestTimeline.Path())
	if err != nil {
		return nil, err
	}

	payload, err := c.FetchPage(ctx, creds, txID, count, req.Cursor)
	if err != nil {
		return nil, err
	}
	batch := Normalize(payload)
	slog.Debug("timeline page normalized",
		slog.Int("entries", batch.EntriesCount),
		slog.Int("items", len(batch.Items)),
		slog.Bool("has_next", batch.NextCursor != ""))
	return &batch, nil
}

// NewPaginator returns a Paginator over the following timeline. req.Cursor is
// ignored; maxPages <= 0 means unbounded.
func (c *Client) NewPaginator(req TimelineRequest, maxPages int) *Paginator {
	return NewPaginator(PageFunc(func(ctx context.Context, cursor string) (*TimelineBatch, error) {
		r := req
		r.Cursor = cursor
		return c.FetchFollowingTimeline(ctx, r)
	}), maxPages)
}

// get issues a paced GET.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, map[string]string, int, error) {
	if err := c.pace.Wait(ctx); err != nil {
		return nil, nil, 0, err
	}
	return c.http.DoWithHeaderOrder("GET", url, headers, nil, headerOrder)
}

// recordAPICall calls the metrics hook if configured.
func (c *Client) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}
