package catalogs

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-matricula/pkg/catalog"
	"github.com/goliatone/go-matricula/pkg/form"
)

type handler struct {
	opts Options
}

type territoryItem struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

type optionsResponse struct {
	Data []form.Option `json:"data"`
}

func (h handler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Guard != nil {
			if err := h.opts.Guard(r); err != nil {
				writeGuardError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h handler) cantons(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "provinciaID")
	if !ok {
		return
	}
	cantons, err := h.opts.Store.Cantons(r.Context(), id)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		h.fail(w, r, "cantones", err)
		return
	}
	out := make([]territoryItem, 0, len(cantons))
	for _, c := range cantons {
		out = append(out, territoryItem{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h handler) districts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cantonID")
	if !ok {
		return
	}
	districts, err := h.opts.Store.Districts(r.Context(), id)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		h.fail(w, r, "distritos", err)
		return
	}
	out := make([]territoryItem, 0, len(districts))
	for _, d := range districts {
		out = append(out, territoryItem{ID: d.ID, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// sections answers the dependent select of the enrollment formset.
func (h handler) sections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	institution, year, ok := h.schoolYear(w, r, r.URL.Query().Get("curso_lectivo"))
	if !ok {
		return
	}
	level, err := parseID(r.URL.Query().Get("nivel"))
	if err != nil {
		http.Error(w, "nivel requerido", http.StatusBadRequest)
		return
	}
	sections, err := h.opts.Store.Sections(ctx, institution, year, level)
	if err != nil {
		h.fail(w, r, "secciones", err)
		return
	}
	out := make([]form.Option, 0, len(sections))
	for _, s := range sections {
		out = append(out, form.Option{Value: strconv.FormatInt(s.ID, 10), Label: s.Label()})
	}
	writeJSON(w, http.StatusOK, optionsResponse{Data: out})
}

func (h handler) subgroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	institution, year, ok := h.schoolYear(w, r, r.URL.Query().Get("curso_lectivo"))
	if !ok {
		return
	}
	section, err := parseID(r.URL.Query().Get("seccion"))
	if err != nil {
		http.Error(w, "seccion requerida", http.StatusBadRequest)
		return
	}
	subgroups, err := h.opts.Store.Subgroups(ctx, institution, year, section)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		h.fail(w, r, "subgrupos", err)
		return
	}
	out := make([]form.Option, 0, len(subgroups))
	for _, s := range subgroups {
		out = append(out, form.Option{Value: strconv.FormatInt(s.ID, 10), Label: s.Label()})
	}
	writeJSON(w, http.StatusOK, optionsResponse{Data: out})
}

// schoolYear resolves the institution and checks the school year belongs to
// it. It writes the error response itself.
func (h handler) schoolYear(w http.ResponseWriter, r *http.Request, raw string) (int64, int64, bool) {
	institution, err := h.opts.Institution(r)
	if err != nil {
		writeGuardError(w, StatusError{Code: statusOf(err, http.StatusForbidden), Err: err})
		return 0, 0, false
	}
	year, err := parseID(raw)
	if err != nil {
		http.Error(w, "curso_lectivo requerido", http.StatusBadRequest)
		return 0, 0, false
	}
	if _, err := h.opts.Store.SchoolYear(r.Context(), institution, year); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			http.Error(w, "Curso lectivo no encontrado", http.StatusNotFound)
			return 0, 0, false
		}
		h.fail(w, r, "curso_lectivo", err)
		return 0, 0, false
	}
	return institution, year, true
}

func (h handler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.opts.Logger.Error("catalogs: query failed", "query", what, "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := parseID(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("catalogs: missing id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("catalogs: invalid id")
	}
	return id, nil
}

func statusOf(err error, fallback int) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		return httpErr.StatusCode()
	}
	return fallback
}
