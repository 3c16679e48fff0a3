package xfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// bodyPrefixLen bounds the response body carried by errors.
const bodyPrefixLen = 800

// FetchPage issues one HomeLatestTimeline request and returns the parsed
// payload. It never retries.
func (c *Client) FetchPage(ctx context.Context, creds Credentials, txID string, count int, cursor string) (*Value, error) {
	ep := HomeLatestTimeline

	if c.limiter.IsRateLimited(ep.Name) || !c.limiter.Allow(ep.Name) {
		c.recordAPICall(ep.Name, false, true)
		until := c.limiter.AvailableAt(ep.Name)
		return nil, &RequestError{
			Status:     429,
			BodyPrefix: "rate limited until " + until.Format(time.RFC3339),
		}
	}

	if !c.cfg.DisableJitter {
		if err := stealth.DefaultJitter.Sleep(ctx); err != nil {
			return nil, err
		}
	}

	u := addGraphQLParams(c.cfg.TimelineURL, homeTimelineVariables(count, cursor), ep.Features)
	slog.Debug("requesting timeline", slog.Int("count", count), slog.Bool("cursor", cursor != ""))

	body, hdrs, status, err := c.get(ctx, u, timelineHeaders(creds, txID, c.userAgent))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.recordAPICall(ep.Name, false, false)
		return nil, &RequestError{Err: err}
	}

	switch {
	case status == 429:
		c.recordAPICall(ep.Name, false, true)
		c.limiter.MarkRateLimited(ep.Name, parseRateLimitReset(hdrs["x-rate-limit-reset"]))
		return nil, &RequestError{Status: status, BodyPrefix: bodyPrefix(body)}

	case status < 200 || status > 299:
		c.recordAPICall(ep.Name, false, false)
		_, code := classifyError(body)
		slog.Warn("timeline non-2xx", slog.Int("status", status), slog.Int("code", code))
		return nil, &RequestError{Status: status, Code: code, BodyPrefix: bodyPrefix(body)}
	}

	payload, err := ParseValue(body)
	if err != nil {
		c.recordAPICall(ep.Name, false, false)
		return nil, &ResponseError{BodyPrefix: bodyPrefix(body), Err: err}
	}

	if _, code := classifyError(body); code != 0 && !hasResponseData(payload) {
		c.recordAPICall(ep.Name, false, false)
		slog.Warn("timeline error payload", slog.Int("status", status), slog.Int("code", code))
		return nil, &RequestError{Status: status, Code: code, BodyPrefix: bodyPrefix(body)}
	}

	if ct0 := rotatedCT0(hdrs); ct0 != "" && ct0 != creds.CT0 {
		slog.Warn("server rotated ct0, stored session needs a refresh", slog.String("ct0", tokenPrefix(ct0)))
	}
	c.recordAPICall(ep.Name, true, false)
	return payload, nil
}

// bodyPrefix collapses whitespace and bounds the body for error context.
func bodyPrefix(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if r := []rune(s); len(r) > bodyPrefixLen {
		return string(r[:bodyPrefixLen])
	}
	return s
}

// hasResponseData reports whether the payload carries a non-null "data" field.
func hasResponseData(v *Value) bool {
	d := v.Get("data")
	return d != nil && d.Kind() != KindNull
}

// addGraphQLParams appends the JSON-encoded variables and features to base.
func addGraphQLParams(base string, variables, features map[string]any) string {
	v, _ := json.Marshal(variables)
	f, _ := json.Marshal(features)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%svariables=%s&features=%s", base, sep, url.QueryEscape(string(v)), url.QueryEscape(string(f)))
}
