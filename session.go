package xfeed

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Cookie names understood by the timeline API, in serialization order.
const (
	CookieAuthToken = "auth_token"
	CookieCT0       = "ct0"
	CookieKDT       = "kdt"
	CookieTWID      = "twid"
)

var (
	cookieOrder     = []string{CookieAuthToken, CookieCT0, CookieKDT, CookieTWID}
	requiredCookies = []string{CookieAuthToken, CookieCT0}
)

// Credentials is a complete set of session cookies. AuthToken and CT0 are
// always non-empty on values returned by this package.
type Credentials struct {
	AuthToken string
	CT0       string
	KDT       string
	TWID      string
}

// CookieString serializes the credentials as "name=value; name=value;".
func (c Credentials) CookieString() string {
	parts := make([]string, 0, len(cookieOrder))
	for _, name := range cookieOrder {
		if v := c.value(name); v != "" {
			parts = append(parts, name+"="+v)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

func (c Credentials) value(name string) string {
	switch name {
	case CookieAuthToken:
		return c.AuthToken
	case CookieCT0:
		return c.CT0
	case CookieKDT:
		return c.KDT
	case CookieTWID:
		return c.TWID
	}
	return ""
}

// Jar returns the credentials as a cookie jar.
func (c Credentials) Jar() CookieJar {
	jar := CookieJar{}
	for _, name := range cookieOrder {
		if v := c.value(name); v != "" {
			jar[name] = v
		}
	}
	return jar
}

// CookieJar maps cookie names to trimmed values. Only known names are kept.
type CookieJar map[string]string

// NormalizeJar converts a raw cookie jar into a CookieJar. Values may be plain
// strings, {"value": "..."} wrappers or http.Cookie values.
func NormalizeJar(raw map[string]any) CookieJar {
	jar := CookieJar{}
	for name, v := range raw {
		if !knownCookie(name) {
			continue
		}
		if val := strings.TrimSpace(cookieValue(v)); val != "" {
			jar[name] = val
		}
	}
	return jar
}

func cookieValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["value"].(string)
		return s
	case map[string]string:
		return t["value"]
	case http.Cookie:
		return t.Value
	case *http.Cookie:
		if t != nil {
			return t.Value
		}
	}
	return ""
}

func knownCookie(name string) bool {
	for _, n := range cookieOrder {
		if n == name {
			return true
		}
	}
	return false
}

// JarFromCookies builds a jar from HTTP cookies. Later cookies with the same
// name do not override earlier ones.
func JarFromCookies(cookies []*http.Cookie) CookieJar {
	jar := CookieJar{}
	for _, c := range cookies {
		if c == nil || !knownCookie(c.Name) {
			continue
		}
		if _, ok := jar[c.Name]; ok {
			continue
		}
		if v := strings.TrimSpace(c.Value); v != "" {
			jar[c.Name] = v
		}
	}
	return jar
}

// Merge overlays j on top of fallback: values in j take precedence.
func (j CookieJar) Merge(fallback CookieJar) CookieJar {
	out := CookieJar{}
	for k, v := range fallback {
		out[k] = v
	}
	for k, v := range j {
		out[k] = v
	}
	return out
}

// Missing lists the mandatory cookie names absent from j.
func (j CookieJar) Missing() []string {
	var missing []string
	for _, name := range requiredCookies {
		if j[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// ResolveJar turns a jar into Credentials. Returns a *MissingCookiesError
// naming the absent mandatory cookies.
func ResolveJar(j CookieJar) (Credentials, error) {
	if missing := j.Missing(); len(missing) > 0 {
		return Credentials{}, &MissingCookiesError{Missing: missing}
	}
	return Credentials{
		AuthToken: j[CookieAuthToken],
		CT0:       j[CookieCT0],
		KDT:       j[CookieKDT],
		TWID:      j[CookieTWID],
	}, nil
}

// ParseCookieString parses "name=value; name=value;" into a jar.
// Values may contain '='.
func ParseCookieString(s string) CookieJar {
	jar := CookieJar{}
	for _, pair := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if knownCookie(name) && value != "" {
			jar[name] = value
		}
	}
	return jar
}

// EncodeCookieString encodes a cookie string as a session token.
func EncodeCookieString(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeCookieString reverses EncodeCookieString. Unpadded tokens are accepted.
func DecodeCookieString(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty session token", ErrCookieInvalid)
	}
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		var rawErr error
		if b, rawErr = base64.RawStdEncoding.DecodeString(token); rawErr != nil {
			return "", fmt.Errorf("%w: decode session token: %v", ErrCookieInvalid, err)
		}
	}
	return string(b), nil
}

// EncodeSession encodes credentials as a session token.
func EncodeSession(c Credentials) string {
	return EncodeCookieString(c.CookieString())
}

// DecodeSession decodes a session token into complete credentials.
func DecodeSession(token string) (Credentials, error) {
	s, err := DecodeCookieString(token)
	if err != nil {
		return Credentials{}, err
	}
	jar := ParseCookieString(s)
	if len(jar) == 0 {
		return Credentials{}, fmt.Errorf("%w: session token has no cookies", ErrCookieInvalid)
	}
	return ResolveJar(jar)
}
