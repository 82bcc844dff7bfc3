// Package config loads the YAML configuration of the matricula server and
// CLI. Every value has a default; environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-matricula/pkg/options"
)

// Environment overrides.
const (
	EnvAddr        = "MATRICULA_ADDR"
	EnvDB          = "MATRICULA_DB"
	EnvLogLevel    = "MATRICULA_LOG_LEVEL"
	EnvInstitution = "MATRICULA_INSTITUCION"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
	Client   Client   `yaml:"client"`
	Form     Form     `yaml:"form"`
}

type Server struct {
	Addr string `yaml:"addr"`
	// DefaultInstitution is used by requests that carry no institution.
	DefaultInstitution int64         `yaml:"default_institution"`
	InstitutionHeader  string        `yaml:"institution_header"`
	CSRFCookie         string        `yaml:"csrf_cookie"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	// Path of the SQLite file; ":memory:" keeps the catalog in memory.
	Path string `yaml:"path"`
	// Seed is a dataset file loaded on start. Empty uses the bundled one.
	Seed        string `yaml:"seed"`
	SeedOnStart bool   `yaml:"seed_on_start"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Client configures the form session talking to a running server.
type Client struct {
	BaseURL     string        `yaml:"base_url"`
	Institution int64         `yaml:"institution"`
	Timeout     time.Duration `yaml:"timeout"`
	CSRFToken   string        `yaml:"csrf_token"`
}

// Form declares extra edges and visibility rules for the enrollment forms.
type Form struct {
	Edges []Edge `yaml:"edges"`
	Rules []Rule `yaml:"rules"`
}

// Edge declares a dependency between fields. Without an endpoint the edge
// only clears its dependents.
type Edge struct {
	Name         string            `yaml:"name"`
	Drivers      []string          `yaml:"drivers"`
	Optional     []string          `yaml:"optional"`
	Dependents   []string          `yaml:"dependents"`
	Endpoint     *options.Endpoint `yaml:"endpoint"`
	Clear        string            `yaml:"clear"`
	AllowPartial bool              `yaml:"allow_partial"`
}

// Clear policies accepted in Edge.Clear.
const (
	ClearDefault = ""
	ClearAlways  = "always"
	ClearNever   = "never"
)

// Rule declares a visibility rule. When is an expression over the driver
// (value, label, level) and the other form values.
type Rule struct {
	Name       string   `yaml:"name"`
	Driver     string   `yaml:"driver"`
	Targets    []string `yaml:"targets"`
	When       string   `yaml:"when"`
	KeepOnHide bool     `yaml:"keep_on_hide"`
}

type OptionFn func(*Config)

func Default() Config {
	return Config{
		Server: Server{
			Addr:               ":8080",
			DefaultInstitution: 0,
			InstitutionHeader:  "X-Institucion-ID",
			CSRFCookie:         "csrftoken",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			ShutdownTimeout:    5 * time.Second,
		},
		Database: Database{
			Path:        "data/matricula.db",
			SeedOnStart: true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Client: Client{
			BaseURL: "http://localhost:8080",
			Timeout: options.DefaultTimeout,
		},
	}
}

// New applies fns over the defaults and clamps invalid values.
func New(fns ...OptionFn) Config {
	cfg := Default()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&cfg)
	}
	return clamp(cfg)
}

func clamp(cfg Config) Config {
	def := Default()
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.DefaultInstitution < 0 {
		cfg.Server.DefaultInstitution = 0
	}
	if cfg.Server.InstitutionHeader == "" {
		cfg.Server.InstitutionHeader = def.Server.InstitutionHeader
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = def.Client.BaseURL
	}
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = def.Client.Timeout
	}
	return cfg
}

// Decode reads a YAML configuration over the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg = clamp(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path (when not empty), then applies the environment and fns.
func Load(path string, fns ...OptionFn) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()
		cfg, err = Decode(f)
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	for _, fn := range fns {
		if fn != nil {
			fn(&cfg)
		}
	}
	cfg = clamp(cfg)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides values from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvAddr); ok && strings.TrimSpace(v) != "" {
		c.Server.Addr = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDB); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvInstitution); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvInstitution, err)
		}
		c.Server.DefaultInstitution = id
		c.Client.Institution = id
	}
	return nil
}

// Validate reports invalid form declarations.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	for _, edge := range c.Form.Edges {
		if strings.TrimSpace(edge.Name) == "" {
			return errors.New("config: form edge without name")
		}
		if len(edge.Drivers) == 0 || len(edge.Dependents) == 0 {
			return fmt.Errorf("config: form edge %s: drivers and dependents are required", edge.Name)
		}
		switch edge.Clear {
		case ClearDefault, ClearAlways, ClearNever:
		default:
			return fmt.Errorf("config: form edge %s: unknown clear policy %q", edge.Name, edge.Clear)
		}
		if edge.Endpoint != nil {
			if err := edge.Endpoint.Validate(); err != nil {
				return fmt.Errorf("config: form edge %s: %w", edge.Name, err)
			}
		}
	}
	for _, rule := range c.Form.Rules {
		if strings.TrimSpace(rule.Name) == "" || strings.TrimSpace(rule.Driver) == "" {
			return errors.New("config: form rule requires name and driver")
		}
		if len(rule.Targets) == 0 {
			return fmt.Errorf("config: form rule %s: targets are required", rule.Name)
		}
	}
	return nil
}

// ParseLevel maps a level name to slog.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level %q: %w", level, err)
	}
	return l, nil
}

// Logger builds the process logger.
func (l Log) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func WithAddr(addr string) OptionFn {
	return func(c *Config) {
		if c == nil {
			return
		}
		c.Server.Addr = addr
	}
}

func WithDatabase(path string) OptionFn {
	return func(c *Config) {
		if c == nil {
			return
		}
		c.Database.Path = path
	}
}

func WithBaseURL(url string) OptionFn {
	return func(c *Config) {
		if c == nil {
			return
		}
		c.Client.BaseURL = url
	}
}

func WithInstitution(id int64) OptionFn {
	return func(c *Config) {
		if c == nil {
			return
		}
		c.Server.DefaultInstitution = id
		c.Client.Institution = id
	}
}
