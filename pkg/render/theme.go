package render

import (
	"fmt"

	theme "github.com/goliatone/go-theme"
)

// Theme tokens read by the fragment templates.
const (
	TokenOptionClass = "option.class"
	TokenAlertPrefix = "alert."
)

// DefaultManifest is the admin theme. The "compact" variant is used by the
// CLI preview.
func DefaultManifest() *theme.Manifest {
	return &theme.Manifest{
		Name:    "matricula",
		Version: "1.0.0",
		Tokens: map[string]string{
			TokenOptionClass:                        "",
			TokenAlertPrefix + "available":          "alert alert-success",
			TokenAlertPrefix + "already_registered": "alert alert-warning",
			TokenAlertPrefix + "found_elsewhere":    "alert alert-info",
			TokenAlertPrefix + "error":              "alert alert-danger",
		},
		Variants: map[string]theme.Variant{
			"compact": {
				Tokens: map[string]string{
					TokenOptionClass: "compact",
				},
			},
		},
	}
}

// staticSelector selects variants of a single manifest.
type staticSelector struct {
	manifest *theme.Manifest
}

func (s staticSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	if name != "" && name != s.manifest.Name {
		return nil, fmt.Errorf("render: unknown theme %q", name)
	}
	if variant != "" {
		if _, ok := s.manifest.Variants[variant]; !ok {
			return nil, fmt.Errorf("render: theme %s has no variant %q", s.manifest.Name, variant)
		}
	}
	return &theme.Selection{Theme: s.manifest.Name, Variant: variant, Manifest: s.manifest}, nil
}

// tokens merges the selected variant over the manifest tokens.
func tokens(selection *theme.Selection) map[string]string {
	out := make(map[string]string)
	if selection == nil || selection.Manifest == nil {
		return out
	}
	for key, value := range selection.Manifest.Tokens {
		out[key] = value
	}
	if variant, ok := selection.Manifest.Variants[selection.Variant]; ok {
		for key, value := range variant.Tokens {
			out[key] = value
		}
	}
	return out
}
