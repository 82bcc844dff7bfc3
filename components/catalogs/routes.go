package catalogs

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Route paths, kept from the admin the scripts were written against.
const (
	PathCantons               = "/catalogos/api/cantones/{provinciaID}/"
	PathDistricts             = "/catalogos/api/distritos/{cantonID}/"
	PathSpecialties           = "/matricula/get-especialidades-disponibles/"
	PathSections              = "/matricula/api/secciones/"
	PathSubgroups             = "/matricula/api/subgrupos/"
	PathSpecialtyAutocomplete = "/matricula/especialidad-autocomplete/"
	PathSectionAutocomplete   = "/matricula/seccion-autocomplete/"
	PathSubgroupAutocomplete  = "/matricula/subgrupo-autocomplete/"
	// PathCourseSpecialtyAutocomplete feeds the specialty of a subgroup
	// offering in the institutional configuration.
	PathCourseSpecialtyAutocomplete = "/config/especialidad-curso-lectivo-autocomplete/"
)

// RegisterRoutes registers every catalog endpoint on r.
func RegisterRoutes(r chi.Router, fns ...OptionFn) error {
	return RegisterRoutesWithOptions(r, NewOptions(fns...))
}

// RegisterRoutesWithOptions registers the endpoints using a pre-built Options
// value. Defaults are applied again so a zero value is usable.
func RegisterRoutesWithOptions(r chi.Router, opts Options) error {
	if r == nil {
		return errors.New("catalogs: missing router")
	}
	opts = NewOptions(func(o *Options) { *o = opts })
	if opts.Store == nil {
		return errors.New("catalogs: missing store")
	}
	h := handler{opts: opts}

	r.Group(func(r chi.Router) {
		r.Use(h.guard)
		r.Get(PathCantons, h.cantons)
		r.Get(PathDistricts, h.districts)
		r.HandleFunc(PathSpecialties, h.specialties)
		r.Get(PathSections, h.sections)
		r.Get(PathSubgroups, h.subgroups)
		r.Get(PathSpecialtyAutocomplete, h.autocomplete(h.specialtyAutocomplete))
		r.Get(PathSectionAutocomplete, h.autocomplete(h.sectionAutocomplete))
		r.Get(PathSubgroupAutocomplete, h.autocomplete(h.subgroupAutocomplete))
		r.Get(PathCourseSpecialtyAutocomplete, h.autocompleteIn(h.forwardedInstitution, h.courseSpecialtyAutocomplete))
	})
	return nil
}

// Handler returns a router serving only the catalog endpoints.
func Handler(fns ...OptionFn) (http.Handler, error) {
	r := chi.NewRouter()
	if err := RegisterRoutes(r, fns...); err != nil {
		return nil, err
	}
	return r, nil
}
