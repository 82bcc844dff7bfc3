package catalogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-matricula/pkg/catalog"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
)

func newTestHandler(t *testing.T, fns ...OptionFn) http.Handler {
	t.Helper()
	ds, err := catalog.DefaultDataset()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	store, err := catalog.NewMemory(ds)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h, err := Handler(append([]OptionFn{WithStore(store)}, fns...)...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func serve(h http.Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func postSpecialties(h http.Handler, yearID string, institution string) *http.Response {
	body := url.Values{}
	if yearID != "" {
		body.Set("curso_lectivo_id", yearID)
	}
	req := httptest.NewRequest(http.MethodPost, PathSpecialties, strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if institution != "" {
		req.Header.Set("X-Institucion-ID", institution)
	}
	return serve(h, req)
}

func TestHandler_CantonsOrderedByName(t *testing.T) {
	h := newTestHandler(t)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/catalogos/api/cantones/1/", nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content-type, got %q", ct)
	}
	got := decode[[]territoryItem](t, res)
	want := []territoryItem{{101, "Central"}, {103, "Desamparados"}, {102, "Escazú"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cantons mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_UnknownProvinceAnswersEmptyList(t *testing.T) {
	h := newTestHandler(t)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/catalogos/api/cantones/99/", nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if got := decode[[]territoryItem](t, res); got == nil || len(got) != 0 {
		t.Fatalf("expected empty array, got %#v", got)
	}

	res = serve(h, httptest.NewRequest(http.MethodGet, "/catalogos/api/distritos/abc/", nil))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", res.StatusCode)
	}
}

func TestHandler_SpecialtiesForSchoolYear(t *testing.T) {
	h := newTestHandler(t)

	got := decode[SpecialtiesResponse](t, postSpecialties(h, "5", "1"))
	want := SpecialtiesResponse{
		Success: true,
		Specialties: []catalog.SpecialtyView{
			{ID: 6, Name: "Contabilidad", Modality: "Comercial y Servicios"},
			{ID: 3, Name: "Informática en Desarrollo de Software", Modality: "Comercial y Servicios"},
		},
		SchoolYear: "Curso Lectivo 2025",
		Debug: SpecialtiesDebug{
			InstitutionID:   1,
			InstitutionName: "CTP Mercedes Norte",
			SchoolYearID:    5,
			ActiveOfferings: 2,
			Total:           2,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_SpecialtiesFailures(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name        string
		res         func() *http.Response
		status      int
		wantMessage string
	}{
		{
			name: "method",
			res: func() *http.Response {
				return serve(h, httptest.NewRequest(http.MethodGet, PathSpecialties, nil))
			},
			status:      http.StatusMethodNotAllowed,
			wantMessage: msgMethodNotAllowed,
		},
		{
			name:        "missing school year",
			res:         func() *http.Response { return postSpecialties(h, "", "1") },
			status:      http.StatusOK,
			wantMessage: msgSchoolYearRequired,
		},
		{
			name:        "missing institution",
			res:         func() *http.Response { return postSpecialties(h, "5", "") },
			status:      http.StatusOK,
			wantMessage: msgNoInstitution,
		},
		{
			name:        "school year of another institution",
			res:         func() *http.Response { return postSpecialties(h, "9", "1") },
			status:      http.StatusOK,
			wantMessage: msgSchoolYearNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.res()
			if res.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, res.StatusCode)
			}
			got := decode[Failure](t, res)
			if got.Success || got.Error != tc.wantMessage {
				t.Fatalf("unexpected failure payload %+v", got)
			}
		})
	}
}

func TestHandler_DefaultInstitution(t *testing.T) {
	h := newTestHandler(t, WithDefaultInstitution(1))

	got := decode[SpecialtiesResponse](t, postSpecialties(h, "5", ""))
	if !got.Success || got.Debug.InstitutionID != 1 {
		t.Fatalf("expected default institution to resolve, got %+v", got)
	}
}

func TestHandler_SectionsAndSubgroups(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, PathSections+"?curso_lectivo=5&nivel=4", nil)
	req.Header.Set("X-Institucion-ID", "1")
	res := serve(h, req)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	sections := decode[optionsResponse](t, res)
	want := []form.Option{{Value: "41", Label: "10-1"}, {Value: "42", Label: "10-2"}}
	if diff := cmp.Diff(want, sections.Data); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}

	req = httptest.NewRequest(http.MethodGet, PathSubgroups+"?curso_lectivo=5&seccion=41", nil)
	req.Header.Set("X-Institucion-ID", "1")
	subgroups := decode[optionsResponse](t, serve(h, req))
	want = []form.Option{{Value: "411", Label: "10-1A"}, {Value: "412", Label: "10-1B"}}
	if diff := cmp.Diff(want, subgroups.Data); diff != "" {
		t.Fatalf("subgroups mismatch (-want +got):\n%s", diff)
	}

	req = httptest.NewRequest(http.MethodGet, PathSections+"?curso_lectivo=9&nivel=4", nil)
	req.Header.Set("X-Institucion-ID", "1")
	if res := serve(h, req); res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign school year, got %d", res.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, PathSections+"?curso_lectivo=5", nil)
	req.Header.Set("X-Institucion-ID", "1")
	if res := serve(h, req); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without level, got %d", res.StatusCode)
	}
}

func TestHandler_Autocompletes(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name  string
		path  string
		query url.Values
		want  []Result
	}{
		{
			name:  "specialty for tenth grade",
			path:  PathSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo":"5","nivel":"4"}`}},
			want:  []Result{{ID: "6", Text: "Contabilidad"}, {ID: "3", Text: "Informática en Desarrollo de Software"}},
		},
		{
			name:  "specialty filtered by q",
			path:  PathSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo":5,"nivel":4}`}, "q": {"INFOR"}},
			want:  []Result{{ID: "3", Text: "Informática en Desarrollo de Software"}},
		},
		{
			name:  "no specialty for seventh grade",
			path:  PathSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo":"5","nivel":"1"}`}},
			want:  []Result{},
		},
		{
			name:  "specialty requires level",
			path:  PathSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo":"5"}`}},
			want:  []Result{},
		},
		{
			name:  "sections by number",
			path:  PathSectionAutocomplete,
			query: url.Values{"curso_lectivo": {"5"}, "nivel": {"1"}, "q": {"2"}},
			want:  []Result{{ID: "12", Text: "7-2"}},
		},
		{
			name:  "subgroups by letter",
			path:  PathSubgroupAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo":"5","seccion":"11"}`}, "q": {"a"}},
			want:  []Result{{ID: "111", Text: "7-1A"}},
		},
		{
			name:  "course specialties for a school year",
			path:  PathCourseSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo_id":"5","institucion_id":""}`}},
			want:  []Result{{ID: "6", Text: "Contabilidad"}, {ID: "3", Text: "Informática en Desarrollo de Software"}},
		},
		{
			name:  "course specialties follow the school year",
			path:  PathCourseSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo_id":"6"}`}},
			want:  []Result{{ID: "7", Text: "Electrónica Industrial"}},
		},
		{
			name:  "forwarded institution must own the school year",
			path:  PathCourseSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"curso_lectivo_id":"5","institucion_id":"2"}`}},
			want:  []Result{},
		},
		{
			name:  "course specialties need a school year",
			path:  PathCourseSpecialtyAutocomplete,
			query: url.Values{"forward": {`{"institucion_id":"1"}`}},
			want:  []Result{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path+"?"+tc.query.Encode(), nil)
			req.Header.Set("X-Institucion-ID", "1")
			res := serve(h, req)
			if res.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.StatusCode)
			}
			got := decode[AutocompleteResponse](t, res)
			if diff := cmp.Diff(tc.want, got.Results); diff != "" {
				t.Fatalf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandler_AutocompleteWithoutInstitutionIsEmpty(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, PathSectionAutocomplete+"?curso_lectivo=5&nivel=1", nil)
	got := decode[AutocompleteResponse](t, serve(h, req))
	if got.Results == nil || len(got.Results) != 0 {
		t.Fatalf("expected empty results, got %#v", got.Results)
	}
}

func TestHandler_CourseSpecialtiesUseForwardedInstitution(t *testing.T) {
	h := newTestHandler(t)

	query := url.Values{"forward": {`{"curso_lectivo_id":"5","institucion_id":"1"}`}, "q": {"conta"}}
	req := httptest.NewRequest(http.MethodGet, PathCourseSpecialtyAutocomplete+"?"+query.Encode(), nil)
	got := decode[AutocompleteResponse](t, serve(h, req))
	if diff := cmp.Diff([]Result{{ID: "6", Text: "Contabilidad"}}, got.Results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	query = url.Values{"forward": {`{"curso_lectivo_id":"5","institucion_id":"99"}`}}
	req = httptest.NewRequest(http.MethodGet, PathCourseSpecialtyAutocomplete+"?"+query.Encode(), nil)
	req.Header.Set("X-Institucion-ID", "1")
	got = decode[AutocompleteResponse](t, serve(h, req))
	if len(got.Results) != 0 {
		t.Fatalf("unknown forwarded institution must answer no results, got %#v", got.Results)
	}
}

func TestHandler_GuardErrorStatus(t *testing.T) {
	h := newTestHandler(t, WithGuard(func(*http.Request) error {
		return StatusError{Code: http.StatusUnauthorized, Err: errors.New("login required")}
	}))

	res := serve(h, httptest.NewRequest(http.MethodGet, "/catalogos/api/cantones/1/", nil))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestRegisterRoutes_RequiresStore(t *testing.T) {
	if _, err := Handler(); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestHandler_ServesOptionFetchers(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, WithDefaultInstitution(1)))
	defer srv.Close()

	cantons, err := options.NewHTTP(options.Endpoint{URL: "/catalogos/api/cantones/{{field:provincia}}/"}, options.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("canton fetcher: %v", err)
	}
	got, err := cantons.Fetch(context.Background(), options.Request{Edge: "canton", Values: map[string]string{"provincia": "4"}})
	if err != nil {
		t.Fatalf("fetch cantons: %v", err)
	}
	if diff := cmp.Diff([]form.Option{{Value: "402", Label: "Barva"}, {Value: "401", Label: "Heredia"}}, got); diff != "" {
		t.Fatalf("cantons mismatch (-want +got):\n%s", diff)
	}

	specialties, err := options.NewHTTP(options.Endpoint{
		URL:           PathSpecialties,
		Method:        http.MethodPost,
		DynamicParams: map[string]string{"curso_lectivo_id": "{{field:curso_lectivo}}"},
		ResultsPath:   "especialidades",
	}, options.WithBaseURL(srv.URL), options.WithCSRFToken(func() string { return "token" }))
	if err != nil {
		t.Fatalf("specialty fetcher: %v", err)
	}
	got, err = specialties.Fetch(context.Background(), options.Request{Edge: "especialidad", Values: map[string]string{"curso_lectivo": "9"}})
	if !errors.Is(err, options.ErrServerFailure) {
		t.Fatalf("expected ErrServerFailure for foreign school year, got %v (%v)", err, got)
	}
}
