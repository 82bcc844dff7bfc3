package catalogs

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-matricula/pkg/visibility"
)

// Result is one autocomplete entry.
type Result struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AutocompleteResponse follows the select2 results shape.
type AutocompleteResponse struct {
	Results    []Result   `json:"results"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	More bool `json:"more"`
}

// forwarded reads a value forwarded by the widget. The forward parameter is a
// JSON object of sibling field values; plain query parameters are accepted
// too.
func (h handler) forwarded(r *http.Request) map[string]string {
	out := map[string]string{}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get(h.opts.ForwardParam)); raw != "" {
		var values map[string]any
		if err := json.Unmarshal([]byte(raw), &values); err == nil {
			for key, value := range values {
				switch v := value.(type) {
				case string:
					out[key] = v
				case float64:
					out[key] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
		}
	}
	for key, values := range query {
		if key == h.opts.ForwardParam || key == h.opts.SearchParam || len(values) == 0 {
			continue
		}
		if _, ok := out[key]; !ok {
			out[key] = values[0]
		}
	}
	return out
}

type listFunc func(r *http.Request, institution, year int64, fwd map[string]string, q string) ([]Result, error)

type resolveFunc func(r *http.Request, fwd map[string]string) (int64, error)

// autocomplete runs list when the institution and the forwarded school year
// resolve, and answers an empty result list otherwise.
func (h handler) autocomplete(list listFunc) http.HandlerFunc {
	return h.autocompleteIn(h.activeInstitution, list)
}

func (h handler) autocompleteIn(resolve resolveFunc, list listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := []Result{}
		defer func() {
			writeJSON(w, http.StatusOK, AutocompleteResponse{Results: results})
		}()

		fwd := h.forwarded(r)
		institution, err := resolve(r, fwd)
		if err != nil {
			return
		}
		year, err := parseID(firstOf(fwd, "curso_lectivo", "curso_lectivo_id"))
		if err != nil {
			return
		}
		if _, err := h.opts.Store.SchoolYear(r.Context(), institution, year); err != nil {
			return
		}
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(h.opts.SearchParam)))
		found, err := list(r, institution, year, fwd, q)
		if err != nil {
			h.opts.Logger.Debug("catalogs: autocomplete query failed", "path", r.URL.Path, "error", err)
			return
		}
		if len(found) > h.opts.MaxResults {
			found = found[:h.opts.MaxResults]
		}
		if found != nil {
			results = found
		}
	}
}

func (h handler) activeInstitution(r *http.Request, _ map[string]string) (int64, error) {
	return h.opts.Institution(r)
}

// forwardedInstitution prefers the institution forwarded by the widget, which
// administrators of several institutions pick in the form, over the active
// one.
func (h handler) forwardedInstitution(r *http.Request, fwd map[string]string) (int64, error) {
	raw := firstOf(fwd, "institucion", "institucion_id")
	if raw == "" {
		return h.opts.Institution(r)
	}
	id, err := parseID(raw)
	if err != nil {
		return 0, err
	}
	if _, err := h.opts.Store.Institution(r.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

func firstOf(values map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
	}
	return ""
}

func (h handler) specialtyAutocomplete(r *http.Request, institution, year int64, fwd map[string]string, q string) ([]Result, error) {
	levelID, err := parseID(fwd["nivel"])
	if err != nil {
		return nil, nil
	}
	level, err := h.opts.Store.Level(r.Context(), levelID)
	if err != nil {
		return nil, err
	}
	if !visibility.RequiresSpecialty(level.Number) {
		return nil, nil
	}
	return h.offeredSpecialties(r, institution, year, q)
}

// courseSpecialtyAutocomplete lists every specialty offered in the school
// year, whatever the level.
func (h handler) courseSpecialtyAutocomplete(r *http.Request, institution, year int64, _ map[string]string, q string) ([]Result, error) {
	return h.offeredSpecialties(r, institution, year, q)
}

func (h handler) offeredSpecialties(r *http.Request, institution, year int64, q string) ([]Result, error) {
	list, err := h.opts.Store.Specialties(r.Context(), institution, year)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, s := range list {
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		out = append(out, Result{ID: strconv.FormatInt(s.ID, 10), Text: s.Name})
	}
	return out, nil
}

func (h handler) sectionAutocomplete(r *http.Request, institution, year int64, fwd map[string]string, q string) ([]Result, error) {
	levelID, err := parseID(fwd["nivel"])
	if err != nil {
		return nil, nil
	}
	list, err := h.opts.Store.Sections(r.Context(), institution, year, levelID)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, s := range list {
		if q != "" && !strings.Contains(strconv.Itoa(s.Number), q) {
			continue
		}
		out = append(out, Result{ID: strconv.FormatInt(s.ID, 10), Text: s.Label()})
	}
	return out, nil
}

func (h handler) subgroupAutocomplete(r *http.Request, institution, year int64, fwd map[string]string, q string) ([]Result, error) {
	sectionID, err := parseID(fwd["seccion"])
	if err != nil {
		return nil, nil
	}
	list, err := h.opts.Store.Subgroups(r.Context(), institution, year, sectionID)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, s := range list {
		if q != "" && !strings.Contains(strings.ToLower(s.Letter), q) {
			continue
		}
		out = append(out, Result{ID: strconv.FormatInt(s.ID, 10), Text: s.Label()})
	}
	return out, nil
}
