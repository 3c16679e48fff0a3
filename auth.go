package xfeed

import (
	"context"
	"fmt"
	"log/slog"
)

// Auth captures credentials from cookie sources and keeps the encoded session
// in a SessionStore.
type Auth struct {
	Resolver *Resolver
	Store    SessionStore
}

// NewAuth wires an Auth whose resolver reads narrow, then shared cookies.
func NewAuth(narrow, shared CookieSource, store SessionStore) *Auth {
	return &Auth{
		Resolver: &Resolver{Narrow: narrow, Shared: shared},
		Store:    store,
	}
}

// LoadStoredSession returns the stored token, or "" if there is none.
func (a *Auth) LoadStoredSession(ctx context.Context) (string, error) {
	if a.Store == nil {
		return "", nil
	}
	return a.Store.Load(ctx)
}

// CaptureAndStoreSession reads the cookie sources and stores the resulting
// session. Fails with a *MissingCookiesError when mandatory cookies are absent.
func (a *Auth) CaptureAndStoreSession(ctx context.Context) (Credentials, error) {
	creds, err := a.Resolver.ResolveFromSources(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if a.Store != nil {
		if err := a.Store.Save(ctx, EncodeSession(creds)); err != nil {
			return Credentials{}, fmt.Errorf("store session: %w", err)
		}
	}
	slog.Info("session captured",
		slog.Bool("kdt", creds.KDT != ""),
		slog.Bool("twid", creds.TWID != ""))
	return creds, nil
}

// CaptureWithRetry runs CaptureAndStoreSession under p.
func (a *Auth) CaptureWithRetry(ctx context.Context, p RetryPolicy) (Credentials, error) {
	return Retry(ctx, p, func(ctx context.Context) (Credentials, error) {
		creds, err := a.CaptureAndStoreSession(ctx)
		if err != nil {
			slog.Debug("session capture attempt failed", slog.Any("error", err))
		}
		return creds, err
	})
}

// ClearSession removes the stored session, e.g. on logout.
func (a *Auth) ClearSession(ctx context.Context) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Clear(ctx)
}
