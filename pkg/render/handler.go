package render

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PathOptionsFragment serves the <option> list of a dependent field.
const PathOptionsFragment = "/fragments/options/{field}"

// ErrUnknownField is returned by a Source for fields it does not serve.
var ErrUnknownField = errors.New("render: unknown field")

// Source resolves the options of field for the driver values in r.
type Source interface {
	Select(ctx context.Context, r *http.Request, field string) (Select, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context, r *http.Request, field string) (Select, error)

func (fn SourceFunc) Select(ctx context.Context, r *http.Request, field string) (Select, error) {
	return fn(ctx, r, field)
}

// Handler serves PathOptionsFragment. The "selected" query parameter marks
// the current value. A failed fetch renders an error alert with status 502.
func (f *Fragments) Handler(src Source, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		field := strings.TrimSpace(chi.URLParam(r, "field"))
		sel, err := src.Select(r.Context(), r, field)
		if errors.Is(err, ErrUnknownField) {
			http.NotFound(w, r)
			return
		}

		var buf bytes.Buffer
		status := http.StatusOK
		if err != nil {
			logger.Warn("options fragment failed", "field", field, "error", err)
			status = http.StatusBadGateway
			err = f.Alert(&buf, Message{Kind: "error", Body: "No se pudieron cargar las opciones"})
		} else {
			sel.Field = field
			sel.Selected = r.URL.Query().Get("selected")
			err = f.Options(&buf, sel)
		}
		if err != nil {
			logger.Error("render fragment", "field", field, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(buf.Bytes())
	})
}
