package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-matricula/pkg/dependent"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
	"github.com/goliatone/go-matricula/pkg/visibility"
)

type stubDriver struct {
	inputs    []string
	selectIdx []int
	confirm   []bool
	asked     []string
	info      []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.inputs) == 0 {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[0]
	s.inputs = s.inputs[1:]
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.confirm) == 0 {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[0]
	s.confirm = s.confirm[1:]
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.selectIdx) == 0 {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[0]
	s.selectIdx = s.selectIdx[1:]
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.info = append(s.info, msg)
	return nil
}

func newSyncedForm(t *testing.T) (*form.Form, *dependent.Synchronizer) {
	t.Helper()
	f := form.MustNew("estudiante",
		form.Spec{Name: "tipo_estudiante", Kind: form.KindSelect, Value: "PR", Options: []form.Option{
			{Value: "PR", Label: "Plan regular"},
			{Value: "PN", Label: "Plan nacional"},
		}},
		form.Spec{Name: "plan_beca", Kind: form.KindCheckbox, Hidden: true},
		form.Spec{Name: "provincia", Kind: form.KindSelect, Options: []form.Option{
			{Value: "1", Label: "San José"},
			{Value: "4", Label: "Heredia"},
		}},
		form.Spec{Name: "canton", Kind: form.KindSelect},
		form.Spec{Name: "nombres", Kind: form.KindText},
	)
	sync, err := dependent.New(f,
		dependent.WithEdges(dependent.Edge{
			Name:       "cantones",
			Drivers:    []form.Pattern{"provincia"},
			Dependents: []form.Pattern{"canton"},
			Fetcher: options.Static{Field: "provincia", Lists: map[string][]form.Option{
				"4": {{Value: "401", Label: "Heredia"}, {Value: "402", Label: "Barva"}},
			}},
		}),
		dependent.WithRules(dependent.Rule{
			Name:      "plan-nacional",
			Driver:    "tipo_estudiante",
			Targets:   []form.Pattern{"plan_beca"},
			Predicate: visibility.ValueIn("PN"),
		}),
	)
	if err != nil {
		t.Fatalf("synchronizer: %v", err)
	}
	if err := sync.Bind(context.Background()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	t.Cleanup(sync.Close)
	return f, sync
}

func TestSession_RunFollowsDependents(t *testing.T) {
	f, sync := newSyncedForm(t)
	driver := &stubDriver{
		selectIdx: []int{2, 2, 2},
		confirm:   []bool{true},
		inputs:    []string{"Ana Lucía"},
	}
	session, err := New(f, driver,
		WithSettle(sync.Wait),
		WithLabels(map[string]string{"nombres": "Nombre(s)"}),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	values, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]string{
		"tipo_estudiante": "PN",
		"plan_beca":       Checked,
		"provincia":       "4",
		"canton":          "402",
		"nombres":         "Ana Lucía",
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	wantAsked := []string{"tipo_estudiante", "plan_beca", "provincia", "canton", "Nombre(s)"}
	if diff := cmp.Diff(wantAsked, driver.asked); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_RunSkipsHiddenAndSkipped(t *testing.T) {
	f, sync := newSyncedForm(t)
	driver := &stubDriver{selectIdx: []int{1, 1}}
	session, err := New(f, driver, WithSettle(sync.Wait), WithSkip("nombres"))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	values, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if values["provincia"] != "1" || values["canton"] != "" {
		t.Fatalf("unexpected values: %v", values)
	}
	wantAsked := []string{"tipo_estudiante", "provincia"}
	if diff := cmp.Diff(wantAsked, driver.asked); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	if len(driver.info) != 1 {
		t.Fatalf("expected a notice for the empty canton select, got %v", driver.info)
	}
}

func TestSession_RunStopsOnAbort(t *testing.T) {
	f, sync := newSyncedForm(t)
	session, err := New(f, &stubDriver{}, WithSettle(sync.Wait))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := session.Run(context.Background()); err == nil {
		t.Fatal("expected the driver error")
	}
}

func TestSession_Summary(t *testing.T) {
	f, sync := newSyncedForm(t)
	provincia, _ := f.Field("provincia")
	if err := provincia.Set("4"); err != nil {
		t.Fatalf("set: %v", err)
	}
	sync.Wait()

	driver := &stubDriver{}
	session, err := New(f, driver)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Summary(context.Background()); err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := []string{"tipo_estudiante: Plan regular", "provincia: Heredia"}
	if diff := cmp.Diff(want, driver.info); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_RequiresFormAndDriver(t *testing.T) {
	if _, err := New(nil, &stubDriver{}); err == nil {
		t.Fatal("expected an error without a form")
	}
	if _, err := New(form.MustNew("x"), nil); err == nil {
		t.Fatal("expected an error without a driver")
	}
}
