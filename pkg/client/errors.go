package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidURL is returned for URLs that cannot be requested at all.
	ErrInvalidURL = errors.New("invalid url")

	// ErrTooManyRedirects is returned when a request keeps being redirected.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// maxRedirects matches the limit of net/http's default redirect policy.
const maxRedirects = 10

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassTransient covers connection failures, timeouts and
	// connections dropped while reading the body. Only this class is retried.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassHTTP represents a response with a non-2xx status.
	ErrorClassHTTP ErrorClass = "http"

	// ErrorClassOther covers everything else: malformed URLs, cancelled
	// contexts, redirect loops, certificate failures, undecodable bodies.
	ErrorClassOther ErrorClass = "other"
)

// FetchError is the error returned by every failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Attempts   int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s error", e.URL, e.ErrorClass)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Class returns the error class of err, or "" when err is not a FetchError.
func Class(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.ErrorClass
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassTransient:
		return true
	case ErrorClassHTTP:
		// The API answered; asking again will not change the answer
		return false
	default:
		return false
	}
}

// classifyTransportError classifies an error returned by http.Client.Do.
// Transport failures count as transient unless the caller's context ended
// or the failure is one a retry cannot fix: a redirect loop or a
// certificate the host will keep presenting.
func classifyTransportError(ctx context.Context, err error) ErrorClass {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrorClassOther
	}
	if errors.Is(err, ErrTooManyRedirects) || isCertificateError(err) {
		return ErrorClassOther
	}
	return ErrorClassTransient
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// checkRedirect stops after maxRedirects hops with ErrTooManyRedirects.
func checkRedirect(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return ErrTooManyRedirects
	}
	return nil
}
