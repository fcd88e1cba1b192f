package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

var (
	// ErrRateLimited is a single rate-limit response; callers retry on it.
	ErrRateLimited = errors.New("rate limited")
	// ErrRateLimitExceeded means the retry ceiling was hit.
	ErrRateLimitExceeded = errors.New("rate limit retries exhausted")
	// ErrUpstream matches any *UpstreamError.
	ErrUpstream                = errors.New("upstream error")
	ErrClassificationAmbiguous = errors.New("document classification ambiguous")
	ErrMissingPrerequisite     = errors.New("missing prerequisite")
	ErrCancelled               = errors.New("cancelled")
	ErrUnsupportedInput        = errors.New("unsupported input")
	// ErrNotFound is returned by record stores for missing keys.
	ErrNotFound = errors.New("not found")
)

// RateLimitError carries the server's retry hint, if any.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// UpstreamError is a non-2xx, non-rate-limit response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Code is a coarse error category for logs and notifications.
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeCancel       Code = "cancel"
	CodeRateLimit    Code = "rate_limit"
	CodeUpstream     Code = "upstream"
	CodeAmbiguous    Code = "ambiguous"
	CodePrerequisite Code = "prerequisite"
	CodeInput        Code = "input"
	CodeNetwork      Code = "network"
	CodeIO           Code = "io"
)

// Classify maps an error onto a Code using sentinels and stdlib error types only.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, ErrRateLimitExceeded) || errors.Is(err, ErrRateLimited) {
		return CodeRateLimit
	}
	if errors.Is(err, ErrUpstream) {
		return CodeUpstream
	}
	if errors.Is(err, ErrClassificationAmbiguous) {
		return CodeAmbiguous
	}
	if errors.Is(err, ErrMissingPrerequisite) {
		return CodePrerequisite
	}
	if errors.Is(err, ErrUnsupportedInput) {
		return CodeInput
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// IsCancelled reports whether err is a user stop rather than a failure.
func IsCancelled(err error) bool {
	return Classify(err) == CodeCancel
}
