package xfeed

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJar(t *testing.T) {
	jar := NormalizeJar(map[string]any{
		"auth_token": map[string]any{"value": "  tok  "},
		"ct0":        "csrf",
		"kdt":        &http.Cookie{Name: "kdt", Value: "k"},
		"twid":       map[string]any{"value": 12},
		"guest_id":   "ignored",
		"lang":       "en",
	})
	assert.Equal(t, CookieJar{"auth_token": "tok", "ct0": "csrf", "kdt": "k"}, jar)
}

func TestResolveJarMissing(t *testing.T) {
	tests := []struct {
		name    string
		jar     CookieJar
		missing []string
	}{
		{"ct0 absent", CookieJar{"auth_token": "a", "twid": "u%3D1"}, []string{"ct0"}},
		{"both absent", CookieJar{"kdt": "k"}, []string{"auth_token", "ct0"}},
		{"empty jar", CookieJar{}, []string{"auth_token", "ct0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveJar(tt.jar)
			require.ErrorIs(t, err, ErrCookieMissingRequired)
			var mc *MissingCookiesError
			require.ErrorAs(t, err, &mc)
			assert.Equal(t, tt.missing, mc.Missing)
		})
	}
}

func TestResolveJarComplete(t *testing.T) {
	creds, err := ResolveJar(CookieJar{"auth_token": "a", "ct0": "c", "twid": "u%3D1"})
	require.NoError(t, err)
	assert.Equal(t, Credentials{AuthToken: "a", CT0: "c", TWID: "u%3D1"}, creds)
	assert.Equal(t, "auth_token=a; ct0=c; twid=u%3D1;", creds.CookieString())
}

func TestCookieStringRoundTrip(t *testing.T) {
	for _, s := range []string{
		"auth_token=a; ct0=c;",
		"auth_token=abc123; ct0=def456; kdt=k==; twid=u%3D99;",
		"ct0=only;",
		"weird=välüe; spaces here ;",
		"",
	} {
		got, err := DecodeCookieString(EncodeCookieString(s))
		if s == "" {
			require.ErrorIs(t, err, ErrCookieInvalid)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	creds := Credentials{AuthToken: "a1", CT0: "c=2", KDT: "k", TWID: "u%3D1"}
	got, err := DecodeSession(EncodeSession(creds))
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestDecodeSessionInvalid(t *testing.T) {
	for _, token := range []string{"", "   ", "%%%not-base64%%%", EncodeCookieString("no pairs at all")} {
		_, err := DecodeSession(token)
		require.Error(t, err, token)
		assert.True(t, errors.Is(err, ErrCookieInvalid), "token %q: %v", token, err)
	}

	_, err := DecodeSession(EncodeCookieString("auth_token=a;"))
	require.ErrorIs(t, err, ErrCookieMissingRequired)
}

func TestDecodeSessionUnpadded(t *testing.T) {
	token := "YXV0aF90b2tlbj1hOyBjdDA9Yzs" // "auth_token=a; ct0=c;" without padding
	creds, err := DecodeSession(token)
	require.NoError(t, err)
	assert.Equal(t, "a", creds.AuthToken)
	assert.Equal(t, "c", creds.CT0)
}

func TestJarMerge(t *testing.T) {
	narrow := CookieJar{"auth_token": "narrow", "kdt": "k"}
	shared := CookieJar{"auth_token": "shared", "ct0": "c"}
	assert.Equal(t, CookieJar{"auth_token": "narrow", "ct0": "c", "kdt": "k"}, narrow.Merge(shared))
}
