package visibility_test

import (
	"testing"

	"github.com/goliatone/go-matricula/pkg/visibility"
)

func TestLevelFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  int
		ok    bool
	}{
		{"Décimo (10)", 10, true},
		{"Sétimo (7)", 7, true},
		{"10-1A", 10, true},
		{"12°", 12, true},
		{"Undécimo", 11, true},
		{"DUODÉCIMO", 12, true},
		{"Séptimo", 7, true},
		{"Noveno", 9, true},
		{"", 0, false},
		{"Preescolar", 0, false},
	}
	for _, tc := range cases {
		got, ok := visibility.LevelFromLabel(tc.label)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: expected (%d, %v), got (%d, %v)", tc.label, tc.want, tc.ok, got, ok)
		}
	}
}

func TestLevelRequiresSpecialty(t *testing.T) {
	pred := visibility.LevelRequiresSpecialty()

	for label, want := range map[string]bool{
		"Décimo (10)":    true,
		"Undécimo (11)":  true,
		"Duodécimo (12)": true,
		"Sétimo (7)":     false,
		"Noveno (9)":     false,
		"":               false,
	} {
		got, err := pred.Visible(visibility.DriverContext("1", label, nil))
		if err != nil {
			t.Fatalf("%q: %v", label, err)
		}
		if got != want {
			t.Fatalf("%q: expected %v, got %v", label, want, got)
		}
	}
}

func TestDriverContext_LevelFallsBackToValue(t *testing.T) {
	ctx := visibility.DriverContext("11", "", nil)
	if got := ctx.Values[visibility.KeyLevel]; got != 11 {
		t.Fatalf("expected level 11 from value, got %v", got)
	}
	ctx = visibility.DriverContext("3", "Sétimo (7)", nil)
	if got := ctx.Values[visibility.KeyLevel]; got != 7 {
		t.Fatalf("label must win over the id, got %v", got)
	}
}

func TestValueIn(t *testing.T) {
	pred := visibility.ValueIn("PN")
	if ok, _ := pred.Visible(visibility.DriverContext("PN", "Plan Nacional", nil)); !ok {
		t.Fatalf("expected PN visible")
	}
	if ok, _ := pred.Visible(visibility.DriverContext("PR", "Regular", nil)); ok {
		t.Fatalf("expected PR hidden")
	}
}

func TestRuleWithoutEvaluator(t *testing.T) {
	if _, err := visibility.Rule(nil, "x", "level > 1").Visible(visibility.Context{}); err == nil {
		t.Fatalf("expected error without evaluator")
	}
}
