package options

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Endpoint describes where and how the options of a dependent are fetched.
// Zero values fall back to GET with automatic envelope detection.
type Endpoint struct {
	URL           string            `yaml:"url" json:"url"`
	Method        string            `yaml:"method" json:"method,omitempty"`
	Params        map[string]string `yaml:"params" json:"params,omitempty"`
	DynamicParams map[string]string `yaml:"dynamic_params" json:"dynamicParams,omitempty"`
	ResultsPath   string            `yaml:"results_path" json:"resultsPath,omitempty"`
	Mapping       Mapping           `yaml:"mapping" json:"mapping,omitempty"`
	// CSRFHeader names the header that carries the CSRF token on unsafe
	// methods (the admin uses X-CSRFToken).
	CSRFHeader string `yaml:"csrf_header" json:"csrfHeader,omitempty"`
}

// Mapping remaps response keys to option value/label.
type Mapping struct {
	Value string `yaml:"value" json:"value,omitempty"`
	Label string `yaml:"label" json:"label,omitempty"`
}

// Envelope keys searched, in order, when ResultsPath is empty.
var envelopeKeys = []string{"data", "results", "especialidades", "options", "items"}

var fieldPlaceholder = regexp.MustCompile(`\{\{\s*field:([^\}\s]+)\s*\}\}`)

// Validate reports configuration errors.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.URL) == "" {
		return errors.New("options: endpoint url is required")
	}
	switch e.method() {
	case http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("options: endpoint %s: unsupported method %q", e.URL, e.Method)
	}
	return nil
}

func (e Endpoint) method() string {
	m := strings.ToUpper(strings.TrimSpace(e.Method))
	if m == "" {
		return http.MethodGet
	}
	return m
}

// FieldReferences lists the fields referenced by {{field:name}} placeholders
// in the URL and dynamic params, sorted.
func (e Endpoint) FieldReferences() []string {
	seen := make(map[string]struct{})
	collect := func(value string) {
		for _, match := range fieldPlaceholder.FindAllStringSubmatch(value, -1) {
			if name := strings.TrimSpace(match[1]); name != "" {
				seen[name] = struct{}{}
			}
		}
	}
	collect(e.URL)
	for _, value := range e.DynamicParams {
		collect(value)
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// expand replaces {{field:name}} placeholders using req. escape is applied to
// each substituted value.
func expand(template string, req Request, escape func(string) string) string {
	return fieldPlaceholder.ReplaceAllStringFunc(template, func(token string) string {
		match := fieldPlaceholder.FindStringSubmatch(token)
		value := req.Value(strings.TrimSpace(match[1]))
		if escape != nil {
			return escape(value)
		}
		return value
	})
}

// params merges static and resolved dynamic parameters. Dynamic values win.
func (e Endpoint) params(req Request) map[string]string {
	out := make(map[string]string, len(e.Params)+len(e.DynamicParams))
	for key, value := range e.Params {
		out[key] = value
	}
	for key, value := range e.DynamicParams {
		out[key] = expand(value, req, nil)
	}
	return out
}
