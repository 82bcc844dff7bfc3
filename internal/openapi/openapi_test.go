package openapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-matricula/components/catalogs"
	"github.com/goliatone/go-matricula/components/students"
	"github.com/goliatone/go-matricula/pkg/catalog"
)

func TestDocument_Validates(t *testing.T) {
	doc := Document("test", "")
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
	lookup := doc.Paths.Find(students.PathLookup)
	if lookup == nil || lookup.Get == nil {
		t.Fatalf("expected lookup operation")
	}
	if got := lookup.Get.Parameters.GetByInAndName(openapi3.ParameterInHeader, "X-Institucion-ID"); got == nil {
		t.Fatalf("expected institution header parameter")
	}
}

func TestDocument_CoversRegisteredRoutes(t *testing.T) {
	ds, err := catalog.DefaultDataset()
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	store, err := catalog.NewMemory(ds)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	r := chi.NewRouter()
	if err := catalogs.RegisterRoutes(r, catalogs.WithStore(store)); err != nil {
		t.Fatalf("catalog routes: %v", err)
	}
	if err := students.RegisterRoutes(r, students.WithStore(store)); err != nil {
		t.Fatalf("student routes: %v", err)
	}

	documented := make(map[string]bool)
	for _, op := range Operations(Document("test", "")) {
		documented[op.Path] = true
	}
	err = chi.Walk(r, func(_, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !documented[route] {
			t.Errorf("route %s is not documented", route)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

func TestOperations_Sorted(t *testing.T) {
	ops := Operations(Document("test", ""))
	if len(ops) != 14 {
		t.Fatalf("expected 14 operations, got %d", len(ops))
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1].Path > ops[i].Path {
			t.Fatalf("operations not sorted: %s before %s", ops[i-1].Path, ops[i].Path)
		}
	}
}

func TestHandler_ServesLoadableDocument(t *testing.T) {
	h, err := Handler(Document("1.2.3", "X-Institucion"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + PathDocument)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	loaded, err := openapi3.NewLoader().LoadFromData(body)
	if err != nil {
		t.Fatalf("load served document: %v", err)
	}
	if loaded.Info.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", loaded.Info.Version)
	}
	if err := Validate(context.Background(), loaded); err != nil {
		t.Fatalf("validate served document: %v", err)
	}
}
