// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/evidence-engine/internal/breaker"
	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/internal/ratelimit"
)

var (
	// ErrEmptyQuery is returned when a query has no searchable text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrBlocked is returned when a provider answers with a captcha or
	// anti-bot page instead of results.
	ErrBlocked = errors.New("request blocked by provider")

	// ErrInvalidURL is returned when a page URL is not an absolute http(s)
	// URL.
	ErrInvalidURL = errors.New("invalid page url")

	// ErrParse is returned when a response cannot be parsed into results.
	ErrParse = errors.New("could not parse provider response")

	// ErrNoProviderAvailable is returned when no registered provider is
	// eligible for a query.
	ErrNoProviderAvailable = errors.New("no search provider available")
)

// ErrorKind classifies search failures for callers and the HTTP API.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindBlocked     ErrorKind = "blocked"
	KindParse       ErrorKind = "parse"
	KindHTTPStatus  ErrorKind = "http-status"
	KindBreakerOpen ErrorKind = "breaker-open"
	KindRateLimited ErrorKind = "rate-limited"
	KindNoProvider  ErrorKind = "no-provider-available"
	KindTimeout     ErrorKind = "timeout"
	KindInvalid     ErrorKind = "invalid-query"
)

// ProviderError wraps a failure of one provider round-trip.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf classifies err. It returns "" for a nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoProviderAvailable) {
		return KindNoProvider
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	var se *httputil.StatusError
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidURL):
		return KindInvalid
	case errors.Is(err, breaker.ErrOpen):
		return KindBreakerOpen
	case errors.Is(err, ratelimit.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &se):
		if se.StatusCode == http.StatusForbidden {
			return KindBlocked
		}
		return KindHTTPStatus
	default:
		return KindNetwork
	}
}

// wrapProviderError attaches the provider name and kind to err unless it is
// already a *ProviderError of the same provider.
func wrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Provider == provider {
		return err
	}
	return &ProviderError{Provider: provider, Kind: KindOf(err), Err: err}
}
