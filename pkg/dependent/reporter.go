package dependent

import (
	"log/slog"

	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
)

// Reporter receives the outcomes the operator does not see directly.
type Reporter interface {
	FetchFailed(edge string, req options.Request, err error)
	FieldCleared(field string, cause form.Cause)
	StaleDropped(edge string)
}

// LogReporter reports through a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r LogReporter) FetchFailed(edge string, req options.Request, err error) {
	r.logger().Warn("dependent options fetch failed",
		"edge", edge,
		"drivers", req.Values,
		"status", options.StatusOf(err),
		"error", err,
	)
}

func (r LogReporter) FieldCleared(field string, cause form.Cause) {
	r.logger().Debug("dependent field cleared", "field", field, "cause", cause.String())
}

func (r LogReporter) StaleDropped(edge string) {
	r.logger().Debug("stale options response dropped", "edge", edge)
}

// MultiReporter fans out to every non-nil reporter.
type MultiReporter []Reporter

func (m MultiReporter) FetchFailed(edge string, req options.Request, err error) {
	for _, r := range m {
		if r != nil {
			r.FetchFailed(edge, req, err)
		}
	}
}

func (m MultiReporter) FieldCleared(field string, cause form.Cause) {
	for _, r := range m {
		if r != nil {
			r.FieldCleared(field, cause)
		}
	}
}

func (m MultiReporter) StaleDropped(edge string) {
	for _, r := range m {
		if r != nil {
			r.StaleDropped(edge)
		}
	}
}
