package students_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-matricula/components/students"
	"github.com/goliatone/go-matricula/pkg/catalog"
	"github.com/goliatone/go-matricula/pkg/dependent"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newServer(t *testing.T, fns ...students.OptionFn) *httptest.Server {
	t.Helper()
	ds, err := catalog.DefaultDataset()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	store, err := catalog.NewMemory(ds)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h, err := students.Handler(append([]students.OptionFn{students.WithStore(store), students.WithLogger(quietLogger)}, fns...)...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, institution int64) *students.Client {
	t.Helper()
	c, err := students.NewClient(srv.URL,
		students.WithHTTPClient(srv.Client()),
		students.WithActiveInstitution(institution),
		students.WithCSRFToken(func() string { return "secreto" }),
	)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestSearch_UnknownIdentificationIsAvailable(t *testing.T) {
	c := newClient(t, newServer(t), 1)

	res, err := c.Search(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Outcome != students.OutcomeAvailable || res.CanCopy || res.Student != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Title != "✓ Identificación disponible" {
		t.Fatalf("unexpected title %q", res.Title)
	}
}

func TestSearch_FoundElsewhereOffersCopy(t *testing.T) {
	c := newClient(t, newServer(t), 1)

	res, err := c.Search(context.Background(), "112340567")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Outcome != students.OutcomeFoundElsewhere || !res.CanCopy {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Message, "Ana Lucía Rodríguez Mora") || !strings.Contains(res.Message, "Liceo de Heredia") {
		t.Fatalf("message misses name or current institution: %q", res.Message)
	}
	if res.Student.ProvinceID != "1" || res.Student.CantonID != "102" || res.Student.DistrictID != "10202" {
		t.Fatalf("unexpected address ids %+v", res.Student)
	}
}

func TestSearch_AlreadyRegistered(t *testing.T) {
	c := newClient(t, newServer(t), 1)

	res, err := c.Search(context.Background(), "208760123")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Outcome != students.OutcomeAlreadyRegistered || res.CanCopy {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Message, "CTP Mercedes Norte") {
		t.Fatalf("expected the active institution in %q", res.Message)
	}
}

func TestSearch_MissingIdentification(t *testing.T) {
	c := newClient(t, newServer(t), 1)

	_, err := c.Search(context.Background(), "  ")
	if !errors.Is(err, students.ErrMissingIdentification) {
		t.Fatalf("expected ErrMissingIdentification, got %v", err)
	}
	if got := students.Alert(err); got != "Por favor ingrese una identificación" {
		t.Fatalf("unexpected alert %q", got)
	}
}

func TestLookup_Payload(t *testing.T) {
	srv := newServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+students.PathLookup+"?identificacion=112340567", nil)
	req.Header.Set("X-Institucion-ID", "1")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["existe"] != true || payload["ya_esta_en_institucion"] != false {
		t.Fatalf("unexpected flags %v", payload)
	}
	inst, _ := payload["institucion_activa"].(map[string]any)
	if inst["nombre"] != "Liceo de Heredia" {
		t.Fatalf("unexpected institution %v", inst)
	}
	st, _ := payload["estudiante"].(map[string]any)
	if st["nombre_completo"] != "Ana Lucía Rodríguez Mora" {
		t.Fatalf("unexpected student %v", st)
	}

	res, err = srv.Client().Get(srv.URL + students.PathLookup)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without identification, got %d", res.StatusCode)
	}
}

func TestLink_AddsStudentOnce(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv, 1)

	resp, err := c.Link(context.Background(), 1)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if !resp.Success || resp.Message == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, err := c.Link(context.Background(), 1); err == nil || !strings.Contains(err.Error(), "ya está registrado") {
		t.Fatalf("expected already linked error, got %v", err)
	}

	res, err := c.Search(context.Background(), "112340567")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Outcome != students.OutcomeAlreadyRegistered {
		t.Fatalf("expected already registered after link, got %s", res.Outcome)
	}
}

func TestLink_RejectsMissingCSRF(t *testing.T) {
	srv := newServer(t)

	body := url.Values{"estudiante_id": {"1"}}.Encode()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+students.PathLink, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Institucion-ID", "1")
	req.Header.Set("X-CSRFToken", "uno")
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "otro"})

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.StatusCode)
	}
}

func TestInterpret(t *testing.T) {
	st := &students.Student{FullName: "José Pablo Vargas Solís", BirthDate: "2008-11-02"}
	inst := &students.Institution{ID: 2, Name: "Liceo de Heredia"}

	cases := []struct {
		name    string
		resp    students.LookupResponse
		outcome students.Outcome
		canCopy bool
	}{
		{"missing", students.LookupResponse{}, students.OutcomeAvailable, false},
		{"elsewhere", students.LookupResponse{Exists: true, Student: st, Institution: inst}, students.OutcomeFoundElsewhere, true},
		{"here", students.LookupResponse{Exists: true, Student: st, Institution: inst, AlreadyEnrolled: true}, students.OutcomeAlreadyRegistered, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := students.Interpret(tc.resp)
			if got.Outcome != tc.outcome || got.CanCopy != tc.canCopy {
				t.Fatalf("unexpected result %+v", got)
			}
		})
	}
}

func TestCopyInto_CascadesAddress(t *testing.T) {
	f := form.MustNew("estudiante",
		form.Spec{Name: "identificacion", Kind: form.KindText},
		form.Spec{Name: "primer_apellido", Kind: form.KindText},
		form.Spec{Name: "segundo_apellido", Kind: form.KindText},
		form.Spec{Name: "nombres", Kind: form.KindText},
		form.Spec{Name: "correo", Kind: form.KindText},
		form.Spec{Name: "celular", Kind: form.KindText},
		form.Spec{Name: "fecha_nacimiento", Kind: form.KindText},
		form.Spec{Name: "sexo", Options: []form.Option{{Value: "F", Label: "Femenino"}, {Value: "M", Label: "Masculino"}}},
		form.Spec{Name: "provincia", Options: []form.Option{{Value: "1", Label: "San José"}}},
		form.Spec{Name: "canton"},
		form.Spec{Name: "distrito"},
	)
	s, err := dependent.New(f,
		dependent.WithLogger(quietLogger),
		dependent.WithEdges(
			dependent.Edge{Name: "cantones", Drivers: []form.Pattern{"provincia"}, Dependents: []form.Pattern{"canton"},
				Fetcher: options.Static{Field: "provincia", Lists: map[string][]form.Option{"1": {{Value: "102", Label: "Escazú"}}}}},
			dependent.Edge{Name: "distritos", Drivers: []form.Pattern{"canton"}, Dependents: []form.Pattern{"distrito"},
				Fetcher: options.Static{Field: "canton", Lists: map[string][]form.Option{"102": {{Value: "10202", Label: "San Antonio"}}}}},
		),
	)
	if err != nil {
		t.Fatalf("synchronizer: %v", err)
	}
	if err := s.Bind(context.Background()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer s.Close()

	st := &students.Student{
		Identification: "112340567",
		FirstSurname:   "Rodríguez",
		SecondSurname:  "Mora",
		Names:          "Ana Lucía",
		Email:          "112340567@est.mep.go.cr",
		BirthDate:      "2009-03-14",
		Sex:            "F",
		ProvinceID:     "1",
		CantonID:       "102",
		DistrictID:     "10202",
	}
	if err := students.CopyInto(f, st, s); err != nil {
		t.Fatalf("copy: %v", err)
	}

	want := map[string]string{
		"identificacion":   "112340567",
		"primer_apellido":  "Rodríguez",
		"segundo_apellido": "Mora",
		"nombres":          "Ana Lucía",
		"correo":           "112340567@est.mep.go.cr",
		"celular":          "",
		"fecha_nacimiento": "2009-03-14",
		"sexo":             "F",
		"provincia":        "1",
		"canton":           "102",
		"distrito":         "10202",
	}
	if diff := cmp.Diff(want, f.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}
