package justwatch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited marks responses that signal the request quota is exhausted.
	ErrRateLimited = errors.New("justwatch rate limited")
	// ErrEmptyQuery is returned before any request when the title is blank.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// StatusError is returned by fetchers when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// TransportError wraps network and HTTP failures other than rate limiting.
// Status is zero when no response was received.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("justwatch transport failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("justwatch transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that is not a valid search envelope.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode justwatch response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RateLimitError is returned when JustWatch answers 401, which it uses to
// signal an exhausted anonymous quota.
type RateLimitError struct {
	Status int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("justwatch request limit reached (status %d)", e.Status)
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRecoverable reports whether err only affects the current title: transport
// failures, malformed responses, and blank queries.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, ErrRateLimited) {
		return false
	}
	var transport *TransportError
	var parse *ParseError
	return errors.As(err, &transport) || errors.As(err, &parse) || errors.Is(err, ErrEmptyQuery)
}

func classifyFetchError(err error) error {
	var status *StatusError
	if errors.As(err, &status) {
		if status.Code == http.StatusUnauthorized {
			return &RateLimitError{Status: status.Code}
		}
		return &TransportError{Status: status.Code, Err: err}
	}
	return &TransportError{Err: err}
}
