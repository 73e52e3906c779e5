package video_batch

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrResolveTransport = errors.New("resolver request failed")
	ErrInvalidResponse  = errors.New("invalid resolver response")
	ErrNoPlayableURL    = errors.New("no playable url")
)

type ResolveErrorKind int

const (
	ResolveTransport ResolveErrorKind = iota
	ResolveInvalidResponse
	ResolveNoPlayableURL
)

func (k ResolveErrorKind) sentinel() error {
	switch k {
	case ResolveTransport:
		return ErrResolveTransport
	case ResolveInvalidResponse:
		return ErrInvalidResponse
	default:
		return ErrNoPlayableURL
	}
}

// ResolveError is returned by Resolver.Resolve and ExtractPlayURL. It matches the sentinel for its Kind with
// errors.Is, and unwraps to the underlying cause if there was one.
type ResolveError struct {
	Kind   ResolveErrorKind
	Detail string
	Err    error
}

func (e *ResolveError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

const unknownFetchReason = "unknown reason"

// FetchError is returned by Fetcher.Fetch once every attempt has failed. Reason describes the last attempt; Attempts
// holds the errors from all of them.
type FetchError struct {
	Reason   string
	Attempts *multierror.Error
}

func (e *FetchError) Error() string {
	return e.Reason
}

func (e *FetchError) Unwrap() error {
	return e.Attempts.ErrorOrNil()
}

func newFetchError(attempts *multierror.Error) *FetchError {
	reason := unknownFetchReason
	if attempts != nil && len(attempts.Errors) > 0 {
		reason = attempts.Errors[len(attempts.Errors)-1].Error()
	}
	return &FetchError{Reason: reason, Attempts: attempts}
}

// attemptError labels an error with the (1-based) attempt it belongs to.
type attemptError struct {
	attempt int
	err     error
}

func (e *attemptError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.attempt, e.err)
}

func (e *attemptError) Unwrap() error {
	return e.err
}
