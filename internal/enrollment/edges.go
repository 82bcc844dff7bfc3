package enrollment

import (
	"github.com/goliatone/go-matricula/pkg/dependent"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
	"github.com/goliatone/go-matricula/pkg/visibility"
)

// Edge names.
const (
	EdgeCantons           = "cantones"
	EdgeDistricts         = "distritos"
	EdgeSpecialties       = "especialidades"
	EdgeSections          = "secciones"
	EdgeSubgroups         = "subgrupos"
	EdgeLevelSpecialty    = "nivel-especialidad"
	EdgeSpecialtySections = "especialidad-secciones"
	EdgeCourseSpecialties = "especialidades-curso"
)

// Rule names.
const (
	RuleSpecialtyLevel  = "especialidad-nivel"
	RulePlanNacional    = "plan-nacional"
	RuleSpecialtyCourse = "especialidad-curso"
)

// Endpoints returns the option endpoints of the fetch edges, keyed by edge
// name. URLs are relative to the server base URL.
func Endpoints() map[string]options.Endpoint {
	return map[string]options.Endpoint{
		EdgeCantons: {
			URL: "/catalogos/api/cantones/{{field:provincia}}/",
		},
		EdgeDistricts: {
			URL: "/catalogos/api/distritos/{{field:canton}}/",
		},
		EdgeSpecialties: {
			URL:           "/matricula/get-especialidades-disponibles/",
			Method:        "POST",
			DynamicParams: map[string]string{"curso_lectivo_id": "{{field:curso_lectivo}}"},
			ResultsPath:   "especialidades",
			CSRFHeader:    "X-CSRFToken",
		},
		EdgeSections: {
			URL: "/matricula/api/secciones/",
			DynamicParams: map[string]string{
				"curso_lectivo": "{{field:curso_lectivo}}",
				"nivel":         "{{field:nivel}}",
			},
			ResultsPath: "data",
		},
		EdgeSubgroups: {
			URL: "/matricula/api/subgrupos/",
			DynamicParams: map[string]string{
				"curso_lectivo": "{{field:curso_lectivo}}",
				"seccion":       "{{field:seccion}}",
			},
			ResultsPath: "data",
		},
		// The widget forwards its sibling values as one JSON object. An empty
		// institution leaves the choice to the institution header.
		EdgeCourseSpecialties: {
			URL: "/config/especialidad-curso-lectivo-autocomplete/",
			DynamicParams: map[string]string{
				"forward": `{"curso_lectivo_id":"{{field:curso_lectivo}}","institucion_id":"{{field:institucion}}"}`,
			},
			ResultsPath: "results",
		},
	}
}

// Edges returns the canonical edges. fetchers is keyed by edge name; a fetch
// edge without a fetcher is left out.
func Edges(fetchers map[string]options.Fetcher) []dependent.Edge {
	var edges []dependent.Edge
	fetch := func(edge dependent.Edge) {
		edge.Fetcher = fetchers[edge.Name]
		if edge.Fetcher == nil {
			return
		}
		edges = append(edges, edge)
	}

	fetch(dependent.Edge{
		Name:       EdgeCantons,
		Drivers:    []form.Pattern{"provincia"},
		Dependents: []form.Pattern{"canton"},
	})
	fetch(dependent.Edge{
		Name:       EdgeDistricts,
		Drivers:    []form.Pattern{"canton"},
		Dependents: []form.Pattern{"distrito"},
	})
	// A new school year or level invalidates the whole enrollment cascade.
	fetch(dependent.Edge{
		Name:       EdgeSpecialties,
		Drivers:    []form.Pattern{"curso_lectivo"},
		Dependents: []form.Pattern{"especialidad"},
		Policy:     dependent.ClearAlways,
	})
	fetch(dependent.Edge{
		Name:       EdgeSections,
		Drivers:    []form.Pattern{"curso_lectivo", "nivel"},
		Dependents: []form.Pattern{"seccion"},
		Policy:     dependent.ClearAlways,
	})
	fetch(dependent.Edge{
		Name:       EdgeSubgroups,
		Drivers:    []form.Pattern{"curso_lectivo", "seccion"},
		Dependents: []form.Pattern{"subgrupo"},
		Policy:     dependent.ClearAlways,
	})
	fetch(dependent.Edge{
		Name:       EdgeCourseSpecialties,
		Drivers:    []form.Pattern{"curso_lectivo"},
		Optional:   []form.Pattern{"institucion"},
		Dependents: []form.Pattern{"especialidad_curso"},
		Policy:     dependent.ClearAlways,
	})

	edges = append(edges,
		dependent.Edge{
			Name:       EdgeLevelSpecialty,
			Drivers:    []form.Pattern{"nivel"},
			Dependents: []form.Pattern{"especialidad"},
		},
		dependent.Edge{
			Name:       EdgeSpecialtySections,
			Drivers:    []form.Pattern{"especialidad"},
			Dependents: []form.Pattern{"seccion", "subgrupo"},
			Policy:     dependent.SkipFirst(dependent.ClearWhen(specialtyInPlay)),
		},
	)
	return edges
}

// specialtyInPlay holds when the selected level takes a specialty and the
// specialty selector is shown.
func specialtyInPlay(view dependent.View) bool {
	level, ok := visibility.LevelFromLabel(view.Label("nivel"))
	return ok && visibility.RequiresSpecialty(level) && view.Visible("especialidad")
}

// Rules returns the canonical visibility rules.
func Rules() []dependent.Rule {
	plan := make([]form.Pattern, 0, len(PlanNacionalChecks)+len(PlanNacionalTexts))
	for _, name := range PlanNacionalChecks {
		plan = append(plan, form.Pattern(name))
	}
	for _, name := range PlanNacionalTexts {
		plan = append(plan, form.Pattern(name))
	}

	return []dependent.Rule{
		{
			Name:      RuleSpecialtyLevel,
			Driver:    "nivel",
			Targets:   []form.Pattern{"especialidad"},
			Predicate: visibility.LevelRequiresSpecialty(),
		},
		{
			Name:      RulePlanNacional,
			Driver:    "tipo_estudiante",
			Targets:   plan,
			Predicate: visibility.ValueIn("PN"),
		},
		{
			Name:      RuleSpecialtyCourse,
			Driver:    "subgrupo",
			Targets:   []form.Pattern{"especialidad_curso"},
			Predicate: visibility.LevelRequiresSpecialty(),
		},
	}
}
