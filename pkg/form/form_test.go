package form_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-matricula/pkg/form"
)

func newEnrollmentForm(t *testing.T) *form.Form {
	t.Helper()
	f, err := form.New("matricula",
		form.Spec{Name: "provincia", Placeholder: "----", Options: []form.Option{{Value: "1", Label: "San José"}, {Value: "2", Label: "Alajuela"}}},
		form.Spec{Name: "canton", Placeholder: "----"},
		form.Spec{Name: "identificacion", Kind: form.KindText},
		form.Spec{Name: "correo", Kind: form.KindText},
		form.Spec{Name: "matricula_set-__prefix__-nivel"},
	)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	return f
}

func TestField_SetRejectsUnknownChoice(t *testing.T) {
	f := newEnrollmentForm(t)
	provincia, _ := f.Field("provincia")

	if err := provincia.Set("9"); !errors.Is(err, form.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if err := provincia.Set("2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := provincia.Label(); got != "Alajuela" {
		t.Fatalf("expected label Alajuela, got %q", got)
	}
}

func TestField_SetOptionsKeepsOrClearsSelection(t *testing.T) {
	f := newEnrollmentForm(t)
	canton, _ := f.Field("canton")

	canton.SetOptions([]form.Option{{Value: "10", Label: "Central"}, {Value: "11", Label: "Escazú"}}, form.CauseSync)
	if err := canton.Set("11"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if cleared := canton.SetOptions([]form.Option{{Value: "11", Label: "Escazú"}, {Value: "12", Label: "Desamparados"}}, form.CauseSync); cleared {
		t.Fatalf("selection still available, should not be cleared")
	}
	if canton.Value() != "11" {
		t.Fatalf("expected selection kept, got %q", canton.Value())
	}

	if cleared := canton.SetOptions([]form.Option{{Value: "20", Label: "Alajuela"}}, form.CauseSync); !cleared {
		t.Fatalf("expected selection cleared")
	}
	if canton.Value() != "" {
		t.Fatalf("expected empty selection, got %q", canton.Value())
	}
}

func TestField_OptionsAreDeduplicatedWithPlaceholder(t *testing.T) {
	f := newEnrollmentForm(t)
	canton, _ := f.Field("canton")

	list := []form.Option{{Value: "10", Label: "Central"}, {Value: "10", Label: "Central"}, {Value: " ", Label: "blank"}, {Value: "11", Label: ""}}
	canton.SetOptions(list, form.CauseSync)
	canton.SetOptions(list, form.CauseSync)

	want := []form.Option{{Value: "", Label: "----"}, {Value: "10", Label: "Central"}, {Value: "11", Label: "11"}}
	if diff := cmp.Diff(want, canton.Options()); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestField_NotifiesOnlyOnEffectiveChange(t *testing.T) {
	f := newEnrollmentForm(t)
	provincia, _ := f.Field("provincia")

	var changes []string
	stop := provincia.Subscribe(func(change form.Change) {
		if change.Kind == form.ChangeValue {
			changes = append(changes, change.Old+"->"+change.New)
		}
	})

	_ = provincia.Set("1")
	_ = provincia.Set("1")
	_ = provincia.Set("2")
	stop()
	_ = provincia.Set("1")

	if diff := cmp.Diff([]string{"->1", "1->2"}, changes); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_ListenerMutationsAreDeliveredInOrder(t *testing.T) {
	f := newEnrollmentForm(t)
	provincia, _ := f.Field("provincia")
	canton, _ := f.Field("canton")

	var order []string
	provincia.Subscribe(func(change form.Change) {
		order = append(order, "provincia:"+change.New)
		canton.Reset(form.CauseSync)
	})
	canton.Subscribe(func(change form.Change) {
		order = append(order, "canton")
	})
	canton.SetOptions([]form.Option{{Value: "10", Label: "Central"}}, form.CauseSync)
	_ = canton.Set("10")
	order = nil

	_ = provincia.Set("1")

	want := []string{"provincia:1", "canton", "canton"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("delivery order mismatch (-want +got):\n%s", diff)
	}
	if canton.Value() != "" {
		t.Fatalf("expected canton cleared")
	}
}

func TestForm_LocateSkipsTemplateRows(t *testing.T) {
	f := newEnrollmentForm(t)
	row, err := f.AddRow("matricula_set", form.Spec{Name: "nivel"}, form.Spec{Name: "especialidad"})
	if err != nil {
		t.Fatalf("add row: %v", err)
	}

	got := f.Locate("nivel")
	if len(got) != 1 || got[0].Name() != "matricula_set-0-nivel" {
		t.Fatalf("unexpected locate result: %v", names(got))
	}
	if _, ok := row.Field("especialidad"); !ok {
		t.Fatalf("row field lookup failed")
	}
	if got := f.Locate("*prefix*"); len(got) != 0 {
		t.Fatalf("template rows must not match, got %v", names(got))
	}
	if got := f.Locate(`re:^matricula_set-\d+-`); len(got) != 2 {
		t.Fatalf("expected regexp match on both row fields, got %v", names(got))
	}
}

func TestForm_OnRowAddedIsScopedToForm(t *testing.T) {
	f := newEnrollmentForm(t)
	other := form.MustNew("otro")

	var rows []int
	f.OnRowAdded(func(row form.Row) { rows = append(rows, row.Index) })

	_, _ = f.AddRow("matricula_set", form.Spec{Name: "nivel"})
	_, _ = other.AddRow("matricula_set", form.Spec{Name: "nivel"})
	_, _ = f.AddRow("matricula_set", form.Spec{Name: "nivel"})

	if diff := cmp.Diff([]int{0, 1}, rows); diff != "" {
		t.Fatalf("row notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestForm_DeriveStopsAfterOperatorEdit(t *testing.T) {
	f := newEnrollmentForm(t)
	if _, ok := f.Derive("correo", "identificacion", form.StudentEmail); !ok {
		t.Fatalf("derive not bound")
	}
	identificacion, _ := f.Field("identificacion")
	correo, _ := f.Field("correo")

	_ = identificacion.Set("123456789")
	if got := correo.Value(); got != "123456789@est.mep.go.cr" {
		t.Fatalf("unexpected derived email %q", got)
	}

	_ = correo.Set("alumno@example.com")
	_ = identificacion.Set("987654321")
	if got := correo.Value(); got != "alumno@example.com" {
		t.Fatalf("edited email overwritten: %q", got)
	}
}

func TestForm_EnsureSelectedKeepsFilterValue(t *testing.T) {
	f := newEnrollmentForm(t)
	canton, _ := f.Field("canton")
	canton.Hide(form.CauseSync)

	f.EnsureSelected(map[string]string{"canton": "77"})

	if canton.Value() != "77" || canton.Label() != form.SelectedLabel || !canton.Visible() {
		t.Fatalf("unexpected filter state: value=%q label=%q visible=%v", canton.Value(), canton.Label(), canton.Visible())
	}
}

func TestOption_UnmarshalAcceptsEndpointShapes(t *testing.T) {
	payload := `[{"id": 3, "nombre": "Escazú"}, {"id": "4", "text": "Santa Ana"}, {"value": 5, "label": "Mora"}]`
	var opts []form.Option
	if err := json.Unmarshal([]byte(payload), &opts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []form.Option{{Value: "3", Label: "Escazú"}, {Value: "4", Label: "Santa Ana"}, {Value: "5", Label: "Mora"}}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func names(fields []*form.Field) []string {
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, field.Name())
	}
	return out
}

func TestForm_DrainWaitsForAnotherDrainer(t *testing.T) {
	f := form.MustNew("estudiante",
		form.Spec{Name: "identificacion", Kind: form.KindText},
		form.Spec{Name: "correo", Kind: form.KindText},
	)
	identificacion, _ := f.Field("identificacion")
	correo, _ := f.Field("correo")

	entered, hold := make(chan struct{}), make(chan struct{})
	var got []string
	f.OnChange(func(change form.Change) {
		got = append(got, change.Field.Name())
		if change.Field.Name() == "identificacion" {
			close(entered)
			<-hold
		}
	})

	go func() { _ = identificacion.Set("301230456") }()
	<-entered
	_ = correo.Set("301230456@est.mep.go.cr")

	drained := make(chan struct{})
	go func() {
		f.Drain()
		close(drained)
	}()
	select {
	case <-drained:
		t.Fatal("drain returned with a change still queued")
	case <-time.After(50 * time.Millisecond):
	}

	close(hold)
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not return after delivery")
	}
	if diff := cmp.Diff([]string{"identificacion", "correo"}, got); diff != "" {
		t.Fatalf("delivery mismatch (-want +got):\n%s", diff)
	}
}
