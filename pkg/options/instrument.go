package options

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-matricula/pkg/form"
)

// Observer records the outcome of a fetch.
type Observer interface {
	ObserveFetch(edge, status string, elapsed time.Duration)
}

// Instrument wraps next so every fetch is logged and observed.
func Instrument(next Fetcher, observer Observer, logger *slog.Logger) Fetcher {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return FetcherFunc(func(ctx context.Context, req Request) ([]form.Option, error) {
		start := time.Now()
		opts, err := next.Fetch(ctx, req)
		elapsed := time.Since(start)
		status := StatusOf(err)
		if observer != nil {
			observer.ObserveFetch(req.Edge, status, elapsed)
		}
		if err != nil {
			logger.Debug("options fetch failed",
				"edge", req.Edge,
				"status", status,
				"elapsed", elapsed,
				"error", err,
			)
			return nil, err
		}
		logger.Debug("options fetched", "edge", req.Edge, "count", len(opts), "elapsed", elapsed)
		return opts, nil
	})
}
