package visibility

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Grades that carry a technical specialty.
var specialtyLevels = []int{10, 11, 12}

var levelDigits = regexp.MustCompile(`\d{1,2}`)

// Ordinal names as printed by the level catalog, without accents. Longer
// names come first so "undecimo" is not read as "decimo".
var levelWords = []struct {
	word  string
	level int
}{
	{"duodecimo", 12},
	{"undecimo", 11},
	{"decimo", 10},
	{"noveno", 9},
	{"octavo", 8},
	{"septimo", 7},
	{"setimo", 7},
}

// LevelFromLabel extracts the grade number from a level label such as
// "Décimo (10)", "10°", "Sétimo" or a subgroup label like "10-1A".
func LevelFromLabel(label string) (int, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	if match := levelDigits.FindString(label); match != "" {
		n, err := strconv.Atoi(match)
		if err == nil {
			return n, true
		}
	}
	folded := foldAccents(strings.ToLower(label))
	for _, candidate := range levelWords {
		if strings.Contains(folded, candidate.word) {
			return candidate.level, true
		}
	}
	return 0, false
}

// RequiresSpecialty reports whether a grade takes a technical specialty.
func RequiresSpecialty(level int) bool {
	for _, l := range specialtyLevels {
		if l == level {
			return true
		}
	}
	return false
}

func foldAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
