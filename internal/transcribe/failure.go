package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/openai/openai-go/v3"
)

// Kind classifies a transcription failure.
type Kind string

const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindTimeout   Kind = "timeout"
	KindServer    Kind = "server"
	KindNetwork   Kind = "network"
	KindOther     Kind = "other"
)

// Failure is a classified provider error.
type Failure struct {
	Kind     Kind
	Provider string
	Status   int
	Err      error
}

func (f *Failure) Error() string {
	if f.Status > 0 {
		return fmt.Sprintf("%s transcription failed (%s, status %d): %v", f.Provider, f.Kind, f.Status, f.Err)
	}
	return fmt.Sprintf("%s transcription failed (%s): %v", f.Provider, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether re-recording and trying again could succeed.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindRateLimit, KindTimeout, KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// Hint is a short user-facing suggestion for the failure.
func (f *Failure) Hint() string {
	switch f.Kind {
	case KindAuth:
		return "check the provider API key"
	case KindRateLimit:
		return "rate limited; wait a moment"
	case KindTimeout:
		return "the provider timed out"
	case KindServer:
		return "the provider is having trouble"
	case KindNetwork:
		return "check the network connection"
	default:
		return "transcription failed"
	}
}

// IsRetryable reports whether err is a retryable Failure.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable()
}

// Classify wraps err in a Failure. nil stays nil and an existing Failure is returned
// unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Failure{Kind: kindForStatus(apiErr.StatusCode), Provider: provider, Status: apiErr.StatusCode, Err: err}
	}
	var se *statusError
	if errors.As(err, &se) {
		return &Failure{Kind: kindForStatus(se.status), Provider: provider, Status: se.status, Err: err}
	}

	kind := KindOther
	var netErr net.Error
	var closeErr *websocket.CloseError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &netErr), errors.As(err, &closeErr):
		kind = KindNetwork
	}
	return &Failure{Kind: kind, Provider: provider, Err: err}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	default:
		return KindOther
	}
}

// statusError carries an HTTP status from a provider that does not return typed
// errors.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.status)
	}
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}
