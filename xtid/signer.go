// Package xtid computes the x-client-transaction-id header the X web app sends
// with every API call.
package xtid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Stages at which signing can fail.
const (
	StageLanding = "landing"
	StageScript  = "script"
	StageDerive  = "derive"
)

// Error reports the stage a signing attempt failed at.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("xtid %s: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Fetcher returns the body of a GET to url, or an error for non-200 responses.
type Fetcher func(ctx context.Context, url string) (string, error)

// Signer derives transaction ids from a freshly fetched landing page.
// The landing page carries rotating key material, so it is fetched on every
// Sign call; only the content-addressed ondemand script is cached.
type Signer struct {
	landingURL string
	fetch      Fetcher
	scripts    *scriptCache
}

type scriptCache struct {
	mu    sync.Mutex
	byURL map[string]string
}

// NewSigner returns a Signer that loads landingURL through fetch.
func NewSigner(landingURL string, fetch Fetcher) *Signer {
	return &Signer{
		landingURL: landingURL,
		fetch:      fetch,
		scripts:    &scriptCache{byURL: make(map[string]string)},
	}
}

// WithFetcher returns a Signer that fetches through fetch and shares the
// script cache of s. Use it to sign under a different session's cookies.
func (s *Signer) WithFetcher(fetch Fetcher) *Signer {
	return &Signer{landingURL: s.landingURL, fetch: fetch, scripts: s.scripts}
}

// Sign returns a transaction id for method and path.
func (s *Signer) Sign(ctx context.Context, method, path string) (string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return "", err
	}
	return keys.GenerateID(method, path), nil
}

// Keys fetches the landing page and derives the signing keys from it.
func (s *Signer) Keys(ctx context.Context) (*Keys, error) {
	page, err := s.fetch(ctx, s.landingURL)
	if err != nil {
		return nil, &Error{Stage: StageLanding, Err: err}
	}
	if page == "" {
		return nil, &Error{Stage: StageLanding, Err: fmt.Errorf("empty landing page")}
	}

	scriptURL := ondemandScriptURL(page)
	if scriptURL == "" {
		return nil, &Error{Stage: StageScript, Err: fmt.Errorf("ondemand.s URL not found in landing page")}
	}
	script, err := s.script(ctx, scriptURL)
	if err != nil {
		return nil, &Error{Stage: StageScript, Err: err}
	}

	keys, err := NewKeys(page, script)
	if err != nil {
		return nil, &Error{Stage: StageDerive, Err: err}
	}
	slog.Debug("xtid: keys derived", slog.String("anim_key", keys.animationKey[:min(8, len(keys.animationKey))]+"..."))
	return keys, nil
}

func (s *Signer) script(ctx context.Context, url string) (string, error) {
	s.scripts.mu.Lock()
	js, ok := s.scripts.byURL[url]
	s.scripts.mu.Unlock()
	if ok {
		return js, nil
	}

	js, err := s.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	s.scripts.mu.Lock()
	s.scripts.byURL[url] = js
	s.scripts.mu.Unlock()
	return js, nil
}
