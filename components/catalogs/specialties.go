package catalogs

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-matricula/pkg/catalog"
)

// Messages of the specialty endpoint.
const (
	msgMethodNotAllowed   = "Método no permitido"
	msgSchoolYearRequired = "ID de curso lectivo requerido"
	msgNoInstitution      = "No se pudo determinar la institución"
	msgSchoolYearNotFound = "Curso lectivo no encontrado"
)

// SpecialtiesResponse is the payload of the specialty endpoint.
type SpecialtiesResponse struct {
	Success     bool                    `json:"success"`
	Specialties []catalog.SpecialtyView `json:"especialidades"`
	SchoolYear  string                  `json:"curso_lectivo"`
	Debug       SpecialtiesDebug        `json:"debug"`
}

// Failure is the payload of a rejected request.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type SpecialtiesDebug struct {
	InstitutionID   int64  `json:"institucion_id"`
	InstitutionName string `json:"institucion_nombre"`
	SchoolYearID    int64  `json:"curso_lectivo_id"`
	ActiveOfferings int    `json:"configuraciones_activas"`
	Total           int    `json:"total_especialidades"`
}

// specialties lists the specialties offered by the active institution in a
// school year. Domain failures answer 200 with success false.
func (h handler) specialties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Failure{Error: msgMethodNotAllowed})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, Failure{Error: err.Error()})
		return
	}
	raw := r.PostFormValue("curso_lectivo_id")
	if raw == "" {
		writeJSON(w, http.StatusOK, Failure{Error: msgSchoolYearRequired})
		return
	}
	yearID, err := parseID(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, Failure{Error: msgSchoolYearNotFound})
		return
	}

	ctx := r.Context()
	institutionID, err := h.opts.Institution(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Failure{Error: msgNoInstitution})
		return
	}
	year, err := h.opts.Store.SchoolYear(ctx, institutionID, yearID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSON(w, http.StatusOK, Failure{Error: msgSchoolYearNotFound})
			return
		}
		h.opts.Logger.Error("catalogs: school year lookup failed", "curso_lectivo", yearID, "error", err)
		writeJSON(w, http.StatusOK, Failure{Error: err.Error()})
		return
	}
	institution, err := h.opts.Store.Institution(ctx, institutionID)
	if err != nil {
		writeJSON(w, http.StatusOK, Failure{Error: msgNoInstitution})
		return
	}
	list, err := h.opts.Store.Specialties(ctx, institutionID, yearID)
	if err != nil {
		h.opts.Logger.Error("catalogs: specialties query failed", "curso_lectivo", yearID, "error", err)
		writeJSON(w, http.StatusOK, Failure{Error: err.Error()})
		return
	}
	if list == nil {
		list = []catalog.SpecialtyView{}
	}

	writeJSON(w, http.StatusOK, SpecialtiesResponse{
		Success:     true,
		Specialties: list,
		SchoolYear:  year.Name,
		Debug: SpecialtiesDebug{
			InstitutionID:   institution.ID,
			InstitutionName: institution.Name,
			SchoolYearID:    year.ID,
			ActiveOfferings: len(list),
			Total:           len(list),
		},
	})
}
