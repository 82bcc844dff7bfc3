package students

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-matricula/components/catalogs"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

const (
	PathLookup = "/matricula/api/buscar-estudiante/"
	PathLink   = "/matricula/api/agregar-estudiante-institucion/"
)

// Messages of the link endpoint.
const (
	msgLinked          = "Estudiante agregado a la institución"
	msgAlreadyLinked   = "El estudiante ya está registrado en esta institución"
	msgStudentNotFound = "Estudiante no encontrado"
	msgNoInstitution   = "No se pudo determinar la institución"
	msgStudentRequired = "ID de estudiante requerido"
)

type handler struct {
	opts Options
}

// RegisterRoutes registers the lookup and link endpoints on r.
func RegisterRoutes(r chi.Router, fns ...OptionFn) error {
	return RegisterRoutesWithOptions(r, NewOptions(fns...))
}

func RegisterRoutesWithOptions(r chi.Router, opts Options) error {
	if r == nil {
		return errors.New("students: missing router")
	}
	opts = NewOptions(func(o *Options) { *o = opts })
	if opts.Store == nil {
		return errors.New("students: missing store")
	}
	h := handler{opts: opts}
	r.Group(func(r chi.Router) {
		r.Use(h.guard)
		r.Get(PathLookup, h.lookup)
		r.Post(PathLink, h.link)
	})
	return nil
}

// Handler returns a router serving only the student endpoints.
func Handler(fns ...OptionFn) (http.Handler, error) {
	r := chi.NewRouter()
	if err := RegisterRoutes(r, fns...); err != nil {
		return nil, err
	}
	return r, nil
}

func (h handler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Guard != nil {
			if err := h.opts.Guard(r); err != nil {
				code := http.StatusForbidden
				var httpErr catalogs.HTTPError
				if errors.As(err, &httpErr) && httpErr.StatusCode() > 0 {
					code = httpErr.StatusCode()
				}
				http.Error(w, http.StatusText(code), code)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h handler) lookup(w http.ResponseWriter, r *http.Request) {
	identification := strings.TrimSpace(r.URL.Query().Get("identificacion"))
	if identification == "" {
		writeJSON(w, http.StatusBadRequest, LinkResponse{Error: "Identificación requerida"})
		return
	}
	ctx := r.Context()
	st, err := h.opts.Store.StudentByIdentification(ctx, identification)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusOK, LookupResponse{})
		return
	}
	if err != nil {
		h.fail(w, "lookup", err)
		return
	}

	resp := LookupResponse{Exists: true, Student: studentView(st)}
	active, activeErr := h.opts.Institution(r)
	if activeErr == nil && st.LinkedTo(active) {
		resp.AlreadyEnrolled = true
	}

	// The institution shown is where the student currently studies: the
	// active one when already enrolled there, otherwise the first link.
	current := int64(0)
	switch {
	case resp.AlreadyEnrolled:
		current = active
	case len(st.Institutions) > 0:
		current = st.Institutions[0]
	}
	if current > 0 {
		inst, err := h.opts.Store.Institution(ctx, current)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			h.fail(w, "institution", err)
			return
		}
		if err == nil {
			resp.Institution = &Institution{ID: inst.ID, Name: inst.Name}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h handler) link(w http.ResponseWriter, r *http.Request) {
	if !h.csrfValid(r) {
		writeJSON(w, http.StatusForbidden, LinkResponse{Error: "CSRF token inválido"})
		return
	}
	studentID, err := h.studentID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, LinkResponse{Error: msgStudentRequired})
		return
	}
	institution, err := h.opts.Institution(r)
	if err != nil {
		writeJSON(w, http.StatusOK, LinkResponse{Error: msgNoInstitution})
		return
	}

	err = h.opts.Store.LinkStudent(r.Context(), studentID, institution)
	switch {
	case err == nil:
		h.opts.Logger.Info("students: linked", "estudiante", studentID, "institucion", institution)
		writeJSON(w, http.StatusOK, LinkResponse{Success: true, Message: msgLinked})
	case errors.Is(err, catalog.ErrAlreadyLinked):
		writeJSON(w, http.StatusOK, LinkResponse{Error: msgAlreadyLinked})
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusOK, LinkResponse{Error: msgStudentNotFound})
	default:
		h.fail(w, "link", err)
	}
}

// studentID reads estudiante_id from a JSON or form encoded body.
func (h handler) studentID(r *http.Request) (int64, error) {
	raw := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			StudentID json.Number `json:"estudiante_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return 0, err
		}
		raw = body.StudentID.String()
	} else {
		raw = r.PostFormValue("estudiante_id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("students: invalid student id")
	}
	return id, nil
}

func (h handler) csrfValid(r *http.Request) bool {
	if h.opts.CSRFCookie == "" {
		return true
	}
	token := r.Header.Get(h.opts.CSRFHeader)
	cookie, err := r.Cookie(h.opts.CSRFCookie)
	if token == "" || err != nil || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) == 1
}

func (h handler) fail(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.opts.Logger.Error("students: query failed", "query", what, "error", err)
	writeJSON(w, http.StatusInternalServerError, LinkResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
