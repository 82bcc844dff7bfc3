package render

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"
)

var engineFiles = fstest.MapFS{
	"hola.tpl":    {Data: []byte(`Hola {{ name }} ({{ institucion }})`)},
	"roto.tpl":    {Data: []byte(`{{ name|noexiste }}`)},
	"fila.html":   {Data: []byte(`<tr>{{ name }}</tr>`)},
	"escapar.tpl": {Data: []byte(`{{ name }}`)},
}

func TestPongoEngine_Execute(t *testing.T) {
	engine, err := NewPongoEngine(engineFiles, WithGlobals(map[string]any{"institucion": "CTP Mercedes Norte"}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for i := 0; i < 2; i++ {
		var out strings.Builder
		if err := engine.Execute(&out, "hola", map[string]any{"name": "Ana"}); err != nil {
			t.Fatalf("execute: %v", err)
		}
		if got := out.String(); got != "Hola Ana (CTP Mercedes Norte)" {
			t.Fatalf("unexpected output %q", got)
		}
	}
	if len(engine.cache) != 1 {
		t.Fatalf("expected one cached template, got %d", len(engine.cache))
	}
}

func TestPongoEngine_EscapesByDefault(t *testing.T) {
	engine, err := NewPongoEngine(engineFiles)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	var out strings.Builder
	if err := engine.Execute(&out, "escapar", map[string]any{"name": "<b>10-1</b>"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out.String(), "<b>") {
		t.Fatalf("expected escaped output, got %q", out.String())
	}
}

func TestPongoEngine_Extension(t *testing.T) {
	engine, err := NewPongoEngine(engineFiles, WithExtension("html"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	var out strings.Builder
	if err := engine.Execute(&out, "fila", map[string]any{"name": "10-1A"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.String() != "<tr>10-1A</tr>" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPongoEngine_Errors(t *testing.T) {
	if _, err := NewPongoEngine(nil); err == nil {
		t.Fatal("expected an error without files")
	}

	engine, err := NewPongoEngine(engineFiles)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Execute(io.Discard, "falta", nil); err == nil {
		t.Fatal("expected an error for a missing template")
	}

	var out strings.Builder
	if err := engine.Execute(&out, "roto", map[string]any{"name": "Ana"}); err == nil {
		t.Fatal("expected an error for an unknown filter")
	}
	if out.Len() != 0 {
		t.Fatalf("nothing must be written on failure, got %q", out.String())
	}
}

type recordingEngine struct {
	names []string
	err   error
}

func (e *recordingEngine) Execute(w io.Writer, name string, data map[string]any) error {
	e.names = append(e.names, name)
	if e.err != nil {
		return e.err
	}
	_, err := io.WriteString(w, name)
	return err
}

func TestFragments_WithEngine(t *testing.T) {
	engine := &recordingEngine{}
	f := newFragments(t, WithEngine(engine))

	var out strings.Builder
	if err := f.Options(&out, Select{Field: "canton"}); err != nil {
		t.Fatalf("options: %v", err)
	}
	if err := f.Alert(&out, Message{Kind: "available", Title: "ok"}); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if out.String() != "optionsalert" {
		t.Fatalf("unexpected output %q", out.String())
	}

	engine.err = errors.New("boom")
	if err := f.Options(io.Discard, Select{Field: "canton"}); err == nil {
		t.Fatal("expected the engine error")
	}
}
