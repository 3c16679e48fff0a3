package xfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register browser cookie stores
)

// CookieSource yields a raw cookie jar. A source with nothing to offer
// returns an empty jar and a nil error.
type CookieSource interface {
	Cookies(ctx context.Context) (CookieJar, error)
}

// StaticSource is an in-memory jar, typically the output of a login WebView.
type StaticSource CookieJar

// Cookies implements CookieSource.
func (s StaticSource) Cookies(context.Context) (CookieJar, error) {
	return CookieJar(s), nil
}

// JarFileSource reads a JSON cookie-jar export, e.g. {"auth_token":{"value":"..."},"ct0":"..."}.
// An array of {"name":..,"value":..} objects is accepted too.
type JarFileSource struct {
	Path string
}

// Cookies implements CookieSource.
func (s JarFileSource) Cookies(context.Context) (CookieJar, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CookieJar{}, nil
		}
		return nil, err
	}
	return ParseJarJSON(data)
}

// ParseJarJSON parses an exported cookie jar.
func ParseJarJSON(data []byte) (CookieJar, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err == nil {
		return NormalizeJar(raw), nil
	}
	var list []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: cookie jar JSON: %v", ErrCookieInvalid, err)
	}
	cookies := make([]*http.Cookie, 0, len(list))
	for _, c := range list {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return JarFromCookies(cookies), nil
}

// cookieDomains are the site domains whose cookies carry an X session.
var cookieDomains = []string{"x.com", "twitter.com"}

// BrowserSource reads X cookies from the local browsers' cookie stores.
type BrowserSource struct {
	// Domains overrides cookieDomains.
	Domains []string
}

// Cookies implements CookieSource. Stores that fail to open are skipped as long
// as at least one cookie was found elsewhere.
func (s BrowserSource) Cookies(ctx context.Context) (CookieJar, error) {
	domains := s.Domains
	if len(domains) == 0 {
		domains = cookieDomains
	}
	var found []*http.Cookie
	var lastErr error
	for _, domain := range domains {
		cookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
		if err != nil {
			lastErr = err
			slog.Debug("browser cookies: partial read", slog.String("domain", domain), slog.Any("error", err))
		}
		for _, c := range cookies {
			if c != nil && knownCookie(c.Name) {
				found = append(found, &c.Cookie)
			}
		}
	}
	if len(found) == 0 && lastErr != nil {
		return nil, fmt.Errorf("read browser cookies: %w", lastErr)
	}
	return JarFromCookies(found), nil
}

// Resolver produces complete credentials from an explicit token, a stored
// session or cookie sources, in that order.
type Resolver struct {
	// Narrow is the store the login flow writes to first.
	Narrow CookieSource
	// Shared is consulted when Narrow lacks mandatory cookies.
	Shared CookieSource
	Store  SessionStore
}

// Resolve returns credentials for a request. A non-empty token is decoded
// directly. When no token, no stored session and no cookies exist at all the
// error matches both ErrSessionMissing and ErrCookieInvalid.
func (r *Resolver) Resolve(ctx context.Context, token string) (Credentials, error) {
	if strings.TrimSpace(token) != "" {
		return DecodeSession(token)
	}
	if r.Store != nil {
		stored, err := r.Store.Load(ctx)
		if err != nil {
			return Credentials{}, fmt.Errorf("load stored session: %w", err)
		}
		if stored != "" {
			return DecodeSession(stored)
		}
	}
	jar, err := r.collect(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if len(jar) == 0 {
		return Credentials{}, errors.Join(ErrSessionMissing, ErrCookieInvalid)
	}
	return ResolveJar(jar)
}

// ResolveFromSources reads the cookie sources only, merging Shared under
// Narrow when Narrow is incomplete.
func (r *Resolver) ResolveFromSources(ctx context.Context) (Credentials, error) {
	jar, err := r.collect(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return ResolveJar(jar)
}

func (r *Resolver) collect(ctx context.Context) (CookieJar, error) {
	jar := CookieJar{}
	if r.Narrow != nil {
		narrow, err := r.Narrow.Cookies(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cookies: %w", err)
		}
		jar = narrow
	}
	if len(jar.Missing()) == 0 || r.Shared == nil {
		return jar, nil
	}

	shared, err := r.Shared.Cookies(ctx)
	if err != nil {
		// the narrow jar may still be usable or will report what is missing
		slog.Warn("shared cookie store unavailable", slog.Any("error", err))
		return jar, nil
	}
	merged := jar.Merge(shared)
	slog.Debug("merged shared cookie store",
		slog.Int("narrow", len(jar)),
		slog.Int("shared", len(shared)),
		slog.Bool("complete", len(merged.Missing()) == 0))
	return merged, nil
}
