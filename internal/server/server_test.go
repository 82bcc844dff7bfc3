package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

func newServer(t *testing.T, fns ...config.OptionFn) *Server {
	t.Helper()
	ds, err := catalog.DefaultDataset()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	store, err := catalog.NewMemory(ds)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	cfg := config.New(append([]config.OptionFn{config.WithInstitution(1)}, fns...)...)
	srv, err := New(cfg, store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(config.Default(), nil); err == nil {
		t.Fatal("expected an error without a store")
	}
}

func TestServer_CatalogEndpoint(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/catalogos/api/cantones/4/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Barva") {
		t.Fatalf("expected Barva in %s", rec.Body.String())
	}
}

func TestServer_OptionsFragment(t *testing.T) {
	srv := newServer(t)

	rec := get(t, srv.Handler(), "/fragments/options/canton?provincia=4&selected=401")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	html := rec.Body.String()
	for _, want := range []string{
		`<option value="402">Barva</option>`,
		`<option value="401" selected>Heredia</option>`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in:\n%s", want, html)
		}
	}
	if strings.Index(html, "Barva") > strings.Index(html, ">Heredia<") {
		t.Fatalf("expected alphabetical order:\n%s", html)
	}
}

func TestServer_OptionsFragmentSections(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/fragments/options/seccion?curso_lectivo=5&nivel=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, want := range []string{`value="41">10-1<`, `value="42">10-2<`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected %q in:\n%s", want, rec.Body.String())
		}
	}
}

func TestServer_OptionsFragmentCourseSpecialties(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/fragments/options/especialidad_curso?curso_lectivo=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `value="7">Electrónica Industrial<`) {
		t.Fatalf("expected the 2026 specialty in:\n%s", rec.Body.String())
	}

	rec = get(t, srv.Handler(), "/fragments/options/especialidad_curso?institucion=1")
	if strings.Count(rec.Body.String(), "<option") != 1 {
		t.Fatalf("expected only the placeholder without a school year:\n%s", rec.Body.String())
	}
}

func TestServer_OptionsFragmentWithoutDriver(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/fragments/options/subgrupo")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Count(rec.Body.String(), "<option") != 1 {
		t.Fatalf("expected only the placeholder:\n%s", rec.Body.String())
	}
}

func TestServer_OptionsFragmentUnknownField(t *testing.T) {
	srv := newServer(t)
	if rec := get(t, srv.Handler(), "/fragments/options/nacionalidad"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_OptionsFragmentUpstreamFailure(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/fragments/options/canton?provincia=abc")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newServer(t)
	get(t, srv.Handler(), "/catalogos/api/cantones/1/")

	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `matricula_http_requests_total{code="200",method="GET",route="/catalogos/api/cantones/{provinciaID}/"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("expected %q in:\n%s", want, rec.Body.String())
	}
}

func TestServer_OpenAPIDocument(t *testing.T) {
	srv := newServer(t)
	rec := get(t, srv.Handler(), "/openapi.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var raw json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	doc, err := openapi3.NewLoader().LoadFromData(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Paths.Find("/fragments/options/{field}") == nil {
		t.Fatal("expected the fragment route to be documented")
	}
}

func TestInProcess_HonorsCanceledContext(t *testing.T) {
	called := false
	rt := InProcess(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "http://matricula.internal/", nil).WithContext(ctx)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected an error")
	}
	if called {
		t.Fatal("handler must not run for a canceled request")
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := newServer(t, config.WithAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_FragmentKeepsOuterRoute(t *testing.T) {
	srv := newServer(t)
	get(t, srv.Handler(), "/fragments/options/canton?provincia=4")

	rec := get(t, srv.Handler(), "/metrics")
	for _, want := range []string{
		`matricula_http_requests_total{code="200",method="GET",route="/fragments/options/{field}"} 1`,
		`matricula_http_requests_total{code="200",method="GET",route="/catalogos/api/cantones/{provinciaID}/"} 1`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected %q in:\n%s", want, rec.Body.String())
		}
	}
}
