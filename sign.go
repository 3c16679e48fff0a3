package xfeed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go-xfeed/xtid"
)

// Signer produces the x-client-transaction-id for one request.
type Signer interface {
	Sign(ctx context.Context, method, path string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, method, path string) (string, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, method, path string) (string, error) {
	return f(ctx, method, path)
}

// sessionSigner signs with the landing page fetched under the user's cookies.
// Other hosts (the ondemand script CDN) are fetched without them.
func (c *Client) sessionSigner(creds Credentials) Signer {
	landing := hostOf(c.cfg.LandingURL)
	return c.xtid.WithFetcher(func(ctx context.Context, rawURL string) (string, error) {
		headers := assetHeaders(c.userAgent)
		if hostOf(rawURL) == landing {
			headers = landingHeaders(creds, c.userAgent)
		}
		body, _, status, err := c.get(ctx, rawURL, headers)
		if err != nil {
			return "", err
		}
		if status != 200 {
			return "", fmt.Errorf("HTTP %d for %s", status, rawURL)
		}
		return string(body), nil
	})
}

// sign runs signer and folds every failure into a *SigningError.
func sign(ctx context.Context, signer Signer, method, path string) (string, error) {
	id, err := signer.Sign(ctx, method, path)
	if err == nil {
		if id == "" {
			return "", &SigningError{Stage: xtid.StageDerive, Err: errors.New("empty transaction id")}
		}
		return id, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	var xe *xtid.Error
	if errors.As(err, &xe) {
		return "", &SigningError{Stage: xe.Stage, Err: xe.Err}
	}
	return "", &SigningError{Stage: xtid.StageDerive, Err: err}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
