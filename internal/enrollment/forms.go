// Package enrollment declares the student and enrollment admin forms and the
// edges and visibility rules that keep them consistent.
package enrollment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goliatone/go-matricula/pkg/catalog"
	"github.com/goliatone/go-matricula/pkg/form"
)

// Form and formset names.
const (
	FormStudent = "estudiante"
	// RowPrefix is the formset prefix of the academic enrollments inlined in
	// the student form.
	RowPrefix = "matricula_set"
)

// Placeholders shown while a cascade has nothing to offer.
const (
	PlaceholderByLevel   = "Seleccione primero un curso lectivo y un nivel..."
	PlaceholderBySection = "Seleccione primero un curso lectivo y una sección..."
	PlaceholderByYear    = "Seleccione un curso lectivo primero"
)

// Plan Nacional section fields.
var (
	PlanNacionalChecks = []string{"posee_carnet", "posee_valvula", "usa_apoyo", "posee_control", "orden_alejamiento"}
	PlanNacionalTexts  = []string{"apoyo_cual", "tipo_condicion", "control_cual", "orden_alejamiento_nombre"}
)

// Labels are the operator-facing field labels keyed by base name.
var Labels = map[string]string{
	"tipo_estudiante":          "Tipo de estudiante",
	"identificacion":           "Identificación",
	"primer_apellido":          "Primer apellido",
	"segundo_apellido":         "Segundo apellido",
	"nombres":                  "Nombre(s)",
	"fecha_nacimiento":         "Fecha de nacimiento",
	"sexo":                     "Sexo",
	"nacionalidad":             "Nacionalidad",
	"correo":                   "Correo",
	"celular":                  "Celular",
	"telefono_casa":            "Teléfono de casa",
	"provincia":                "Provincia",
	"canton":                   "Cantón",
	"distrito":                 "Distrito",
	"direccion_exacta":         "Dirección exacta",
	"posee_carnet":             "¿Posee carnet de discapacidad?",
	"posee_valvula":            "¿Posee válvula?",
	"usa_apoyo":                "¿Usa algún apoyo?",
	"apoyo_cual":               "¿Cuál apoyo?",
	"tipo_condicion":           "Tipo de condición",
	"posee_control":            "¿Lleva control médico?",
	"control_cual":             "¿Cuál control?",
	"orden_alejamiento":        "¿Existe orden de alejamiento?",
	"orden_alejamiento_nombre": "Nombre de la persona con orden de alejamiento",
	"institucion":              "Institución",
	"curso_lectivo":            "Curso lectivo",
	"nivel":                    "Nivel",
	"especialidad":             "Especialidad",
	"seccion":                  "Sección",
	"subgrupo":                 "Subgrupo",
	"especialidad_curso":       "Especialidad del curso",
	"estado":                   "Estado",
}

// Choices are the option lists rendered with the form. Dependent selects
// start empty and are filled by the synchronizer.
type Choices struct {
	Provinces   []form.Option
	SchoolYears []form.Option
	Levels      []form.Option
	// Institutions, when set, adds an institution select to the standalone
	// enrollment form for administrators of several institutions.
	Institutions []form.Option
}

var (
	studentTypes = []form.Option{{Value: "PR", Label: "Plan regular"}, {Value: "PN", Label: "Plan nacional"}}
	sexes        = []form.Option{{Value: "F", Label: "Femenino"}, {Value: "M", Label: "Masculino"}}
	states       = []form.Option{
		{Value: "activo", Label: "Activo"},
		{Value: "retirado", Label: "Retirado"},
		{Value: "promovido", Label: "Promovido"},
		{Value: "repitente", Label: "Repitente"},
	}
)

// StudentSpecs declares the top-level fields of the student form.
func StudentSpecs(ch Choices) []form.Spec {
	specs := []form.Spec{
		{Name: "tipo_estudiante", Options: studentTypes, Value: "PR"},
		{Name: "identificacion", Kind: form.KindText},
		{Name: "primer_apellido", Kind: form.KindText},
		{Name: "segundo_apellido", Kind: form.KindText},
		{Name: "nombres", Kind: form.KindText},
		{Name: "fecha_nacimiento", Kind: form.KindText},
		{Name: "sexo", Options: sexes},
		{Name: "nacionalidad", Kind: form.KindText},
		{Name: "correo", Kind: form.KindText},
		{Name: "celular", Kind: form.KindText},
		{Name: "telefono_casa", Kind: form.KindText},
		{Name: "provincia", Options: ch.Provinces},
		{Name: "canton"},
		{Name: "distrito"},
		{Name: "direccion_exacta", Kind: form.KindText},
	}
	for _, name := range PlanNacionalChecks {
		specs = append(specs, form.Spec{Name: name, Kind: form.KindCheckbox, Hidden: true})
	}
	for _, name := range PlanNacionalTexts {
		specs = append(specs, form.Spec{Name: name, Kind: form.KindText, Hidden: true})
	}
	return specs
}

// EnrollmentSpecs declares the fields of one academic enrollment. They are
// used both for the standalone enrollment form and for formset rows.
func EnrollmentSpecs(ch Choices) []form.Spec {
	return []form.Spec{
		{Name: "curso_lectivo", Options: ch.SchoolYears},
		{Name: "nivel", Options: ch.Levels},
		{Name: "especialidad", Placeholder: PlaceholderByLevel, Hidden: true},
		{Name: "seccion", Placeholder: PlaceholderByLevel},
		{Name: "subgrupo", Placeholder: PlaceholderBySection},
		{Name: "especialidad_curso", Placeholder: PlaceholderByYear, Hidden: true},
		{Name: "estado", Options: states, Value: "activo"},
	}
}

// NewStudentForm builds the student form with no enrollment rows.
func NewStudentForm(ch Choices) (*form.Form, error) {
	return form.New(FormStudent, StudentSpecs(ch)...)
}

// NewEnrollmentForm builds the standalone enrollment form.
func NewEnrollmentForm(ch Choices) (*form.Form, error) {
	specs := EnrollmentSpecs(ch)
	if len(ch.Institutions) > 0 {
		specs = append([]form.Spec{{Name: "institucion", Options: ch.Institutions}}, specs...)
	}
	return form.New("matricula", specs...)
}

// AddEnrollment appends an enrollment row to a student form.
func AddEnrollment(f *form.Form, ch Choices) (form.Row, error) {
	return f.AddRow(RowPrefix, EnrollmentSpecs(ch)...)
}

// LoadChoices reads the static option lists of an institution from store.
func LoadChoices(ctx context.Context, store catalog.Store, institutionID int64) (Choices, error) {
	var ch Choices

	provinces, err := store.Provinces(ctx)
	if err != nil {
		return Choices{}, fmt.Errorf("enrollment: provinces: %w", err)
	}
	for _, p := range provinces {
		ch.Provinces = append(ch.Provinces, form.Option{Value: id(p.ID), Label: p.Name})
	}

	years, err := store.SchoolYears(ctx, institutionID)
	if err != nil {
		return Choices{}, fmt.Errorf("enrollment: school years: %w", err)
	}
	for _, y := range years {
		ch.SchoolYears = append(ch.SchoolYears, form.Option{Value: id(y.ID), Label: y.Name})
	}

	levels, err := store.Levels(ctx)
	if err != nil {
		return Choices{}, fmt.Errorf("enrollment: levels: %w", err)
	}
	for _, l := range levels {
		ch.Levels = append(ch.Levels, form.Option{Value: id(l.ID), Label: l.Label()})
	}
	return ch, nil
}

func id(v int64) string { return strconv.FormatInt(v, 10) }
