package form

import (
	"regexp"
	"strings"
	"sync"
)

const templateMarker = "__prefix__"

// Pattern selects fields by name. Supported syntaxes:
//
//	"nivel"        exact name or formset base name
//	"*nivel*"      substring of the full name
//	"re:^id_\d+$"  regular expression over the full name
type Pattern string

var (
	patternCacheMu sync.Mutex
	patternCache   = map[string]*regexp.Regexp{}
)

// Match reports whether name is selected by the pattern. Template rows never
// match.
func (p Pattern) Match(name string) bool {
	if name == "" || isTemplateName(name) {
		return false
	}
	raw := strings.TrimSpace(string(p))
	switch {
	case raw == "":
		return false
	case strings.HasPrefix(raw, "re:"):
		re := compilePattern(strings.TrimPrefix(raw, "re:"))
		return re != nil && re.MatchString(name)
	case strings.HasPrefix(raw, "*") && strings.HasSuffix(raw, "*") && len(raw) > 2:
		return strings.Contains(name, strings.Trim(raw, "*"))
	default:
		return name == raw || baseName(name) == raw
	}
}

func compilePattern(expr string) *regexp.Regexp {
	patternCacheMu.Lock()
	defer patternCacheMu.Unlock()
	if re, ok := patternCache[expr]; ok {
		return re
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	patternCache[expr] = re
	return re
}

// Locate returns every non-template field matching the pattern, in
// declaration order.
func (f *Form) Locate(p Pattern) []*Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Field
	for _, field := range f.fields {
		if p.Match(field.name) {
			out = append(out, field)
		}
	}
	return out
}

// LocateOne returns the first field matching the pattern.
func (f *Form) LocateOne(p Pattern) (*Field, bool) {
	matches := f.Locate(p)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// LocateIn resolves a pattern relative to a formset row first, falling back
// to the top-level form fields.
func (f *Form) LocateIn(row *Row, p Pattern) (*Field, bool) {
	if row != nil {
		for _, field := range row.Fields {
			if p.Match(field.name) {
				return field, true
			}
		}
	}
	for _, field := range f.Locate(p) {
		if rowIndexOf(field.name) < 0 {
			return field, true
		}
	}
	return nil, false
}

func isTemplateName(name string) bool {
	return strings.Contains(name, templateMarker)
}

// BaseName strips the formset prefix from a field name:
// "items-0-seccion" becomes "seccion".
func BaseName(name string) string { return baseName(name) }

// baseName strips "<prefix>-<index>-" from formset field names.
func baseName(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return name
	}
	if !isDigits(parts[len(parts)-2]) && parts[len(parts)-2] != templateMarker {
		return name
	}
	return parts[len(parts)-1]
}

func rowIndexOf(name string) int {
	parts := strings.Split(name, "-")
	if len(parts) < 3 || !isDigits(parts[len(parts)-2]) {
		return -1
	}
	n := 0
	for _, r := range parts[len(parts)-2] {
		n = n*10 + int(r-'0')
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
