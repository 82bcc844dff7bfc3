package options

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goliatone/go-matricula/pkg/form"
)

// Request carries the driver snapshot of an edge.
type Request struct {
	// Edge names the dependency, used for logs and metrics.
	Edge string
	// Values holds driver values keyed by the field reference used in the
	// endpoint ({{field:name}}), usually the field base name.
	Values map[string]string
}

// Value returns the value for a field reference.
func (r Request) Value(name string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[name]
}

// Fetcher resolves the option list for a dependent field.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]form.Option, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, req Request) ([]form.Option, error)

// Fetch delegates to the underlying function.
func (fn FetcherFunc) Fetch(ctx context.Context, req Request) ([]form.Option, error) {
	return fn(ctx, req)
}

var (
	// ErrServerFailure is returned when an endpoint answers success:false.
	ErrServerFailure = errors.New("options: server reported failure")
	// ErrUnexpectedPayload is returned when no option list can be found in a
	// response.
	ErrUnexpectedPayload = errors.New("options: unexpected payload")
)

// HTTPError is implemented by errors that carry an HTTP status.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError wraps a non-2xx answer.
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// StatusOf returns the status label used by metrics: "ok", "canceled", the
// HTTP code of a StatusError, or "error".
func StatusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode())
	}
	if errors.Is(err, ErrServerFailure) {
		return "failure"
	}
	return "error"
}
