package xfeed

import (
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// DefaultCount is the page size requested when none is given.
const DefaultCount = 40

// ClientConfig holds all configuration for the timeline client.
type ClientConfig struct {
	// Proxy is an optional proxy URL for all X traffic.
	Proxy string

	// ProfileIndex selects a builtin browser profile (TLS fingerprint + UA).
	ProfileIndex int

	// UserAgent overrides the profile's User-Agent.
	UserAgent string

	// Count is the default page size.
	Count int

	// RateLimit configures the per-endpoint request window.
	RateLimit ratelimit.Config

	// MinInterval is the minimum spacing between two remote requests.
	// Default: 250ms
	MinInterval time.Duration

	// DisableJitter skips the anti-fingerprint delay before timeline requests.
	DisableJitter bool

	// Resolver supplies credentials when a request carries no session token.
	Resolver *Resolver

	// Signer overrides the x-client-transaction-id signer.
	Signer Signer

	// MetricsHook is called on each API request for external metrics collection.
	// endpoint is the operation name, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)

	// TimelineURL and LandingURL override the remote endpoints (tests, mirrors).
	TimelineURL string
	LandingURL  string
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	if cfg.TimelineURL == "" {
		cfg.TimelineURL = HomeLatestTimeline.URL()
	}
	if cfg.LandingURL == "" {
		cfg.LandingURL = xBase
	}
	if cfg.Resolver == nil {
		cfg.Resolver = &Resolver{}
	}
}
