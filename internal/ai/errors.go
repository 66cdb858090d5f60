package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/textbrief/pkg/models"
)

var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrUnknownProvider           = fmt.Errorf("%w: unknown provider", ErrInvalidInput)
	ErrProviderNotConfigured     = errors.New("preferred provider not configured")
	ErrNoProviderConfigured      = errors.New("no provider configured")
	ErrUpstreamHTTP              = errors.New("upstream returned non-success status")
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
	ErrEmptyUpstreamText         = errors.New("upstream returned empty text")
	ErrUnparsableAnalysis        = errors.New("analysis is not a JSON object")
	ErrAllProvidersFailed        = errors.New("all providers failed")
)

const (
	upstreamBodyExcerpt = 500
	unparsableExcerpt   = 100
)

// UpstreamHTTPError records a non-2xx provider response.
type UpstreamHTTPError struct {
	StatusCode int
	Body       string
}

func newUpstreamHTTPError(status int, body []byte) *UpstreamHTTPError {
	return &UpstreamHTTPError{StatusCode: status, Body: excerpt(string(body), upstreamBodyExcerpt)}
}

func (e *UpstreamHTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamHTTPError) Unwrap() error { return ErrUpstreamHTTP }

// UnparsableError carries the first characters of text that could not be parsed.
type UnparsableError struct {
	Excerpt string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnparsableAnalysis, e.Excerpt)
}

func (e *UnparsableError) Unwrap() error { return ErrUnparsableAnalysis }

// Attempt is one failed (provider, model) call.
type Attempt struct {
	Provider models.ProviderID
	Model    string
	Err      error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s (%s): %v", a.Provider, a.Model, a.Err)
}

// AllProvidersFailedError is the terminal cascade failure. Cause is set when
// the cascade stopped early because its context ended.
type AllProvidersFailedError struct {
	Attempts []Attempt
	Cause    error
}

func (e *AllProvidersFailedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrAllProvidersFailed.Error())
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(a.String())
	}
	return b.String()
}

func (e *AllProvidersFailedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrAllProvidersFailed, e.Cause}
	}
	return []error{ErrAllProvidersFailed}
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
