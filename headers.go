package xfeed

import stealth "github.com/anatolykoptev/go-stealth"

// defaultUserAgent is used when no browser profile supplies one.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// timelineHeaders returns the headers of an authenticated GraphQL GET.
func timelineHeaders(creds Credentials, txID, userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	h := map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"x-csrf-token":              creds.CT0,
		"x-twitter-active-user":     "yes",
		"x-twitter-auth-type":       "OAuth2Session",
		"x-twitter-client-language": "en",
		"content-type":              "application/json",
		"cookie":                    creds.CookieString(),
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"accept-encoding":           "gzip, deflate, br",
		"cache-control":             "no-cache",
		"referer":                   homeURL,
		"origin":                    xBase,
		"sec-fetch-dest":            "empty",
		"sec-fetch-mode":            "cors",
		"sec-fetch-site":            "same-origin",
	}
	if txID != "" {
		h["x-client-transaction-id"] = txID
	}
	for k, v := range stealth.ClientHintsHeaders(userAgent) {
		h[k] = v
	}
	return h
}

// landingHeaders returns the headers of a logged-in document fetch.
func landingHeaders(creds Credentials, userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	h := map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "en-US,en;q=0.9",
		"accept-encoding": "gzip, deflate, br",
		"cache-control":   "no-cache",
		"user-agent":      userAgent,
		"sec-fetch-dest":  "document",
		"sec-fetch-mode":  "navigate",
		"sec-fetch-site":  "none",
	}
	if cookie := creds.CookieString(); cookie != "" {
		h["cookie"] = cookie
	}
	for k, v := range stealth.ClientHintsHeaders(userAgent) {
		h[k] = v
	}
	return h
}

// assetHeaders returns the headers of a cross-site script fetch. It carries no
// cookies.
func assetHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	h := map[string]string{
		"accept":          "*/*",
		"accept-language": "en-US,en;q=0.9",
		"accept-encoding": "gzip, deflate, br",
		"user-agent":      userAgent,
		"referer":         homeURL,
		"origin":          xBase,
		"sec-fetch-dest":  "script",
		"sec-fetch-mode":  "cors",
		"sec-fetch-site":  "cross-site",
	}
	for k, v := range stealth.ClientHintsHeaders(userAgent) {
		h[k] = v
	}
	return h
}

// headerOrder is the X web-app header order for TLS fingerprint consistency.
var headerOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-twitter-active-user",
	"x-twitter-auth-type",
	"x-twitter-client-language",
	"x-client-transaction-id",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
	"cache-control",
	"referer",
	"origin",
}
