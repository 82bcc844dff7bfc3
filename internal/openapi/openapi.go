// Package openapi describes the HTTP endpoints as an OpenAPI 3 document.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-matricula/components/catalogs"
	"github.com/goliatone/go-matricula/components/students"
	"github.com/goliatone/go-matricula/pkg/render"
)

// Path of the document itself.
const PathDocument = "/openapi.json"

// PathMetrics is the Prometheus exposition path.
const PathMetrics = "/metrics"

// Operation is one method and path of the document.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
}

// Document builds the description of every route served by the matricula
// server. institutionHeader is the header the catalog endpoints read.
func Document(version, institutionHeader string) *openapi3.T {
	if institutionHeader == "" {
		institutionHeader = catalogs.DefaultOptions().InstitutionHeader
	}
	institution := &openapi3.ParameterRef{Value: openapi3.NewHeaderParameter(institutionHeader).
		WithDescription("Active institution of the session").
		WithSchema(openapi3.NewInt64Schema())}

	idList := openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("nombre", openapi3.NewStringSchema()))
	optionList := openapi3.NewObjectSchema().WithProperty("data", openapi3.NewArraySchema().
		WithItems(openapi3.NewObjectSchema().
			WithProperty("id", openapi3.NewStringSchema()).
			WithProperty("label", openapi3.NewStringSchema())))
	autocomplete := openapi3.NewObjectSchema().
		WithProperty("results", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().
			WithProperty("id", openapi3.NewStringSchema()).
			WithProperty("text", openapi3.NewStringSchema()))).
		WithProperty("pagination", openapi3.NewObjectSchema().WithProperty("more", openapi3.NewBoolSchema()))
	failure := openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("error", openapi3.NewStringSchema())
	specialties := openapi3.NewOneOfSchema(
		openapi3.NewObjectSchema().
			WithProperty("success", openapi3.NewBoolSchema()).
			WithProperty("especialidades", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().
				WithProperty("id", openapi3.NewInt64Schema()).
				WithProperty("nombre", openapi3.NewStringSchema()).
				WithProperty("modalidad", openapi3.NewStringSchema()))).
			WithProperty("curso_lectivo", openapi3.NewObjectSchema()).
			WithProperty("debug", openapi3.NewObjectSchema()),
		failure,
	)
	student := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("identificacion", openapi3.NewStringSchema()).
		WithProperty("nombre_completo", openapi3.NewStringSchema())
	lookup := openapi3.NewObjectSchema().
		WithProperty("existe", openapi3.NewBoolSchema()).
		WithPropertyRef("estudiante", openapi3.NewSchemaRef("", student.WithNullable())).
		WithProperty("institucion_activa", openapi3.NewObjectSchema().
			WithProperty("id", openapi3.NewInt64Schema()).
			WithProperty("nombre", openapi3.NewStringSchema()).WithNullable()).
		WithProperty("ya_esta_en_institucion", openapi3.NewBoolSchema())
	link := openapi3.NewObjectSchema().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("error", openapi3.NewStringSchema())

	paths := openapi3.NewPaths(
		openapi3.WithPath(catalogs.PathCantons, get("listCantons", "Cantons of a province",
			json200(idList), institution, pathInt("provinciaID"))),
		openapi3.WithPath(catalogs.PathDistricts, get("listDistricts", "Districts of a canton",
			json200(idList), institution, pathInt("cantonID"))),
		openapi3.WithPath(catalogs.PathSpecialties, &openapi3.PathItem{Post: operation(
			"listSpecialties", "Active specialties of a school year", json200(specialties),
			institution,
			headerString(students.DefaultOptions().CSRFHeader),
		).withFormBody("curso_lectivo_id")}),
		openapi3.WithPath(catalogs.PathSections, get("listSections", "Active sections of a level",
			json200(optionList), institution, queryInt("curso_lectivo"), queryInt("nivel"))),
		openapi3.WithPath(catalogs.PathSubgroups, get("listSubgroups", "Active subgroups of a section",
			json200(optionList), institution, queryInt("curso_lectivo"), queryInt("seccion"))),
		openapi3.WithPath(catalogs.PathSpecialtyAutocomplete, get("autocompleteSpecialty", "Specialty autocomplete",
			json200(autocomplete), institution, queryString("q"), queryString("forward"))),
		openapi3.WithPath(catalogs.PathSectionAutocomplete, get("autocompleteSection", "Section autocomplete",
			json200(autocomplete), institution, queryString("q"), queryString("forward"))),
		openapi3.WithPath(catalogs.PathSubgroupAutocomplete, get("autocompleteSubgroup", "Subgroup autocomplete",
			json200(autocomplete), institution, queryString("q"), queryString("forward"))),
		openapi3.WithPath(catalogs.PathCourseSpecialtyAutocomplete, get("autocompleteCourseSpecialty", "Specialties offered in a school year",
			json200(autocomplete), institution, queryString("q"), queryString("forward"))),
		openapi3.WithPath(students.PathLookup, get("lookupStudent", "Look a student up by identification",
			json200(lookup), institution, required(queryString("identificacion")))),
		openapi3.WithPath(students.PathLink, &openapi3.PathItem{Post: operation(
			"linkStudent", "Add a student to the active institution", json200(link),
			institution,
			headerString(students.DefaultOptions().CSRFHeader),
		).withFormBody("estudiante_id")}),
		openapi3.WithPath(render.PathOptionsFragment, get("optionsFragment", "Rendered <option> list of a dependent field",
			html200(), pathString("field"), queryString("selected"))),
		openapi3.WithPath(PathMetrics, get("metrics", "Prometheus exposition", text200())),
		openapi3.WithPath(PathDocument, get("openapi", "This document", json200(openapi3.NewObjectSchema()))),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Matrícula",
			Description: "Dependent option, student lookup and fragment endpoints of the enrollment admin",
			Version:     version,
		},
		Paths: paths,
	}
}

// Validate checks the document against the OpenAPI 3 rules.
func Validate(ctx context.Context, doc *openapi3.T) error {
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return fmt.Errorf("openapi: validate: %w", err)
	}
	return nil
}

// Operations lists the operations of doc ordered by path and method.
func Operations(doc *openapi3.T) []Operation {
	var out []Operation
	if doc == nil || doc.Paths == nil {
		return out
	}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			out = append(out, Operation{ID: id, Method: method, Path: path, Summary: op.Summary})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Handler serves doc as JSON. The document is encoded once.
func Handler(doc *openapi3.T) (http.Handler, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: encode: %w", err)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}), nil
}

type op struct{ *openapi3.Operation }

func operation(id, summary string, responses *openapi3.Responses, params ...*openapi3.ParameterRef) op {
	o := openapi3.NewOperation()
	o.OperationID = id
	o.Summary = summary
	o.Parameters = params
	o.Responses = responses
	return op{o}
}

func (o op) withFormBody(fields ...string) *openapi3.Operation {
	schema := openapi3.NewObjectSchema()
	for _, field := range fields {
		schema.WithProperty(field, openapi3.NewStringSchema())
	}
	o.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithFormDataSchema(schema)}
	return o.Operation
}

func get(id, summary string, responses *openapi3.Responses, params ...*openapi3.ParameterRef) *openapi3.PathItem {
	return &openapi3.PathItem{Get: operation(id, summary, responses, params...).Operation}
}

func json200(schema *openapi3.Schema) *openapi3.Responses {
	return openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("OK").WithJSONSchema(schema),
	}))
}

func html200() *openapi3.Responses {
	return openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("HTML fragment").
			WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/html"})),
	}))
}

func text200() *openapi3.Responses {
	return openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("Exposition format").
			WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"})),
	}))
}

func pathInt(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewInt64Schema())}
}

func pathString(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema())}
}

func queryInt(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewQueryParameter(name).WithSchema(openapi3.NewInt64Schema())}
}

func queryString(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewQueryParameter(name).WithSchema(openapi3.NewStringSchema())}
}

func headerString(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewHeaderParameter(name).WithSchema(openapi3.NewStringSchema())}
}

func required(ref *openapi3.ParameterRef) *openapi3.ParameterRef {
	ref.Value.WithRequired(true)
	return ref
}
