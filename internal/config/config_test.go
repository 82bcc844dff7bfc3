package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecode_AppliesDefaultsAndForm(t *testing.T) {
	raw := `
server:
  addr: ":9090"
  default_institution: 1
database:
  path: ":memory:"
form:
  edges:
    - name: subgrupos
      drivers: [curso_lectivo, seccion]
      dependents: [subgrupo]
      clear: always
      endpoint:
        url: /matricula/api/subgrupos/
        dynamic_params:
          curso_lectivo: "{{field:curso_lectivo}}"
          seccion: "{{field:seccion}}"
        results_path: data
  rules:
    - name: plan-nacional
      driver: tipo_estudiante
      targets: [posee_carnet]
      when: value == "PN"
`
	cfg, err := Decode(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.DefaultInstitution != 1 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 10*time.Second || cfg.Log.Level != "info" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Server, cfg.Log)
	}
	if len(cfg.Form.Edges) != 1 || cfg.Form.Edges[0].Endpoint == nil || cfg.Form.Edges[0].Endpoint.ResultsPath != "data" {
		t.Fatalf("unexpected edges %+v", cfg.Form.Edges)
	}
	if len(cfg.Form.Rules) != 1 || cfg.Form.Rules[0].When != `value == "PN"` {
		t.Fatalf("unexpected rules %+v", cfg.Form.Rules)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "servidor: {}\n",
		"clear policy": "form:\n  edges:\n    - {name: x, drivers: [a], dependents: [b], clear: sometimes}\n",
		"endpoint":     "form:\n  edges:\n    - {name: x, drivers: [a], dependents: [b], endpoint: {url: /x, method: DELETE}}\n",
		"rule targets": "form:\n  rules:\n    - {name: r, driver: a}\n",
		"log level":    "log:\n  level: loud\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecode_EmptyDocument(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAddr:        ":7000",
		EnvDB:          "/tmp/m.db",
		EnvInstitution: "2",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Database.Path != "/tmp/m.db" {
		t.Fatalf("env not applied: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.Server.DefaultInstitution != 2 || cfg.Client.Institution != 2 {
		t.Fatalf("institution not applied: %+v %+v", cfg.Server, cfg.Client)
	}

	env[EnvInstitution] = "dos"
	if err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err == nil {
		t.Fatalf("expected error for invalid institution")
	}
}

func TestLoad_FileEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matricula.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\nclient:\n  timeout: 3s\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvDB, ":memory:")

	cfg, err := Load(path, WithInstitution(1))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Database.Path != ":memory:" || cfg.Client.Timeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Client.Institution != 1 {
		t.Fatalf("override not applied")
	}
}

func TestNew_Clamps(t *testing.T) {
	cfg := New(WithAddr(""), func(c *Config) {
		c.Server.DefaultInstitution = -4
		c.Client.Timeout = -1
	})
	if cfg.Server.Addr != ":8080" || cfg.Server.DefaultInstitution != 0 || cfg.Client.Timeout <= 0 {
		t.Fatalf("unexpected clamp result %+v", cfg)
	}
}
