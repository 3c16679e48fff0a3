package xfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Failure kinds of the timeline pipeline. Typed errors below match these with errors.Is.
var (
	ErrSessionMissing        = errors.New("no stored session")
	ErrCookieMissingRequired = errors.New("required cookies missing")
	ErrCookieInvalid         = errors.New("cookie data invalid")
	ErrSigningFailed         = errors.New("transaction signing failed")
	ErrRequestFailed         = errors.New("timeline request failed")
	ErrResponseInvalid       = errors.New("timeline response invalid")
)

// MissingCookiesError names the mandatory cookies absent from a jar.
type MissingCookiesError struct {
	Missing []string
}

func (e *MissingCookiesError) Error() string {
	return "missing required cookies: " + strings.Join(e.Missing, ", ")
}

func (e *MissingCookiesError) Is(target error) bool { return target == ErrCookieMissingRequired }

// SigningError is returned when the landing page could not be fetched or the
// transaction id could not be derived from it.
type SigningError struct {
	Stage string // landing, script or derive
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign %s: %v", e.Stage, e.Err)
}

func (e *SigningError) Is(target error) bool { return target == ErrSigningFailed }
func (e *SigningError) Unwrap() error        { return e.Err }

// RequestError reports a rejected or failed GraphQL call.
// Status is 0 when the request never produced an HTTP response.
type RequestError struct {
	Status     int
	Code       int // X API error code, when the body carried one
	BodyPrefix string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return "timeline request: " + e.Err.Error()
	case e.Code != 0:
		return fmt.Sprintf("timeline request failed status=%d code=%d bodyPrefix=%s", e.Status, e.Code, e.BodyPrefix)
	default:
		return fmt.Sprintf("timeline request failed status=%d bodyPrefix=%s", e.Status, e.BodyPrefix)
	}
}

func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }
func (e *RequestError) Unwrap() error        { return e.Err }

// ResponseError is returned for a 2xx response whose body is not valid JSON.
type ResponseError struct {
	BodyPrefix string
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("parse timeline JSON: %v (bodyPrefix=%s)", e.Err, e.BodyPrefix)
}

func (e *ResponseError) Is(target error) bool { return target == ErrResponseInvalid }
func (e *ResponseError) Unwrap() error        { return e.Err }

// Category groups failures by what the user can do about them.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryExpiredSession
	CategoryConnectivity
	CategoryUnexpectedResponse
)

func (c Category) String() string {
	switch c {
	case CategoryExpiredSession:
		return "expired_session"
	case CategoryConnectivity:
		return "connectivity"
	case CategoryUnexpectedResponse:
		return "unexpected_response"
	}
	return "unknown"
}

// Classify maps a pipeline error to its user-facing category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var reqErr *RequestError
	switch {
	case errors.Is(err, ErrSessionMissing),
		errors.Is(err, ErrCookieMissingRequired),
		errors.Is(err, ErrCookieInvalid):
		return CategoryExpiredSession
	case errors.Is(err, ErrSigningFailed):
		return CategoryConnectivity
	case errors.As(err, &reqErr):
		return classifyRequest(reqErr)
	case errors.Is(err, ErrResponseInvalid):
		return CategoryUnexpectedResponse
	}
	return CategoryUnknown
}

func classifyRequest(e *RequestError) Category {
	switch apiErrorClass(e.Code) {
	case errAuthExpired, errCSRF, errSuspended, errLocked:
		return CategoryExpiredSession
	case errBanned, errInternal:
		return CategoryConnectivity
	}
	switch {
	case e.Status == 0:
		return CategoryConnectivity
	case e.Status == 401 || e.Status == 403:
		return CategoryExpiredSession
	case e.Status == 429 || e.Status >= 500:
		return CategoryConnectivity
	}
	return CategoryUnexpectedResponse
}

// UserMessage returns a short sentence describing err for display.
func UserMessage(err error) string {
	switch Classify(err) {
	case CategoryExpiredSession:
		return "Your X session is missing or has expired. Please log in again."
	case CategoryConnectivity:
		return "Could not reach X right now. Check your connection and try again."
	case CategoryUnexpectedResponse:
		return "X returned an unexpected response. Please try again later."
	}
	return "Something went wrong while loading your timeline."
}

// errorClass categorizes X API error codes.
type errorClass int

const (
	errNone          errorClass = iota
	errBanned                   // 88: rate limit abuse
	errSuspended                // 64: account suspended
	errLocked                   // 326: account locked
	errCSRF                     // 353: csrf token mismatch
	errAuthExpired              // 32: could not authenticate
	errBlocked                  // 161: blocked from performing action
	errNotAuthorized            // 179, 219: not authorized
	errInternal                 // 131: internal error
)

func apiErrorClass(code int) errorClass {
	switch code {
	case 88:
		return errBanned
	case 64:
		return errSuspended
	case 326:
		return errLocked
	case 353:
		return errCSRF
	case 32:
		return errAuthExpired
	case 161:
		return errBlocked
	case 179, 219:
		return errNotAuthorized
	case 131:
		return errInternal
	}
	return errNone
}

// classifyError inspects a response body for known X error codes and returns
// the class and code of the first recognized one.
func classifyError(body []byte) (errorClass, int) {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone, 0
	}
	for _, e := range errResp.Errors {
		if c := apiErrorClass(e.Code); c != errNone {
			return c, e.Code
		}
	}
	return errNone, 0
}

// parseRateLimitReset parses the x-rate-limit-reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}
