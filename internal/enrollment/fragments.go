package enrollment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
	"github.com/goliatone/go-matricula/pkg/render"
)

// dependentEdges maps each fetched field to its edge.
var dependentEdges = map[string]string{
	"canton":       EdgeCantons,
	"distrito":     EdgeDistricts,
	"especialidad": EdgeSpecialties,
	"seccion":      EdgeSections,
	"subgrupo":     EdgeSubgroups,

	"especialidad_curso": EdgeCourseSpecialties,
}

// optionalReferences may be missing from a fragment request; the endpoint
// falls back to the institution header.
var optionalReferences = map[string]bool{"institucion": true}

// Placeholder returns the empty-choice label of a dependent field.
func Placeholder(field string) string {
	switch field {
	case "especialidad", "seccion":
		return PlaceholderByLevel
	case "subgrupo":
		return PlaceholderBySection
	case "especialidad_curso":
		return PlaceholderByYear
	default:
		return form.DefaultPlaceholder
	}
}

// FragmentSource serves the option fragments of the dependent fields by
// calling the option endpoints with the driver values of the request query.
type FragmentSource struct {
	Client  *http.Client
	BaseURL string
	// Forward lists request headers copied to the endpoint call, such as the
	// institution header.
	Forward []string
}

var _ render.Source = FragmentSource{}

func (s FragmentSource) Select(ctx context.Context, r *http.Request, field string) (render.Select, error) {
	edge, ok := dependentEdges[field]
	if !ok {
		return render.Select{}, fmt.Errorf("%w: %s", render.ErrUnknownField, field)
	}
	endpoint := Endpoints()[edge]
	sel := render.Select{Field: field, Placeholder: Placeholder(field)}

	query := r.URL.Query()
	values := make(map[string]string)
	for _, name := range endpoint.FieldReferences() {
		value := strings.TrimSpace(query.Get(name))
		if value == "" && !optionalReferences[name] {
			return sel, nil
		}
		values[name] = value
	}

	httpOpts := []options.HTTPOption{
		options.WithClient(s.Client),
		options.WithBaseURL(s.BaseURL),
		options.WithCSRFToken(func() string { return r.Header.Get(endpoint.CSRFHeader) }),
	}
	for _, header := range s.Forward {
		if value := r.Header.Get(header); value != "" {
			httpOpts = append(httpOpts, options.WithHeader(header, value))
		}
	}
	fetcher, err := options.NewHTTP(endpoint, httpOpts...)
	if err != nil {
		return render.Select{}, err
	}
	opts, err := fetcher.Fetch(ctx, options.Request{Edge: edge, Values: values})
	if err != nil {
		return render.Select{}, err
	}
	sel.Options = opts
	return sel, nil
}
